package requirement

import (
	"fmt"
	"strings"
)

// ValidationError represents a single problem with a requirement list.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult holds all validation errors for a list.
type ValidationResult struct {
	Errors []ValidationError
}

// Valid returns true if no validation errors were found.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Error returns a combined error message from all validation errors.
func (r ValidationResult) Error() string {
	if r.Valid() {
		return ""
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// Validate checks names and required values. Duplicate names are reported
// against the later entry.
func Validate(list []Requirement) ValidationResult {
	var result ValidationResult

	seen := make(map[string]int)
	for i, r := range list {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field: fmt.Sprintf("requirements[%d].name", i), Message: "required",
			})
		} else if first, dup := seen[name]; dup {
			result.Errors = append(result.Errors, ValidationError{
				Field:   fmt.Sprintf("requirements[%d].name", i),
				Message: fmt.Sprintf("duplicate name %q (first at index %d)", name, first),
			})
		} else {
			seen[name] = i
		}

		if strings.TrimSpace(r.Required) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field: fmt.Sprintf("requirements[%d].required", i), Message: "required",
			})
		}
	}

	return result
}
