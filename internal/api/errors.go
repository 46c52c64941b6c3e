package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// NotFoundError reports a missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// ForbiddenError reports a request without valid credentials.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }

// ValidationError carries one message per rejected field.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d error(s)", len(e.Errors))
}

// MissingParameterError names a required parameter the request left out.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing parameter %q", e.Name)
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Success bool     `json:"success"`
	Code    int      `json:"code,omitempty"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// classify maps an error to its status code and response body. Messages of
// unclassified errors are replaced unless debug is set.
func classify(err error, debug bool) (int, errorResponse) {
	var (
		notFound   *NotFoundError
		forbidden  *ForbiddenError
		validation *ValidationError
		missing    *MissingParameterError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound, errorResponse{Message: notFound.Error()}
	case errors.As(err, &forbidden):
		return http.StatusForbidden, errorResponse{Message: forbidden.Message}
	case errors.As(err, &missing):
		return http.StatusBadRequest, errorResponse{
			Code:    http.StatusBadRequest,
			Message: "A required parameter is missing: " + missing.Name,
		}
	case errors.As(err, &validation):
		return http.StatusBadRequest, errorResponse{Message: "Validation error", Errors: validation.Errors}
	}
	if debug {
		return http.StatusInternalServerError, errorResponse{Message: "Error: " + err.Error()}
	}
	return http.StatusInternalServerError, errorResponse{Message: "Unknown error"}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error, debug bool) {
	status, body := classify(err, debug)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
	} else {
		logger.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeJSONStatus(w, status, body)
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
