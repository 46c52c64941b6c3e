// Package api serves check results and run history over HTTP as JSON.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cgast/envcheck/pkg/check"
	"github.com/cgast/envcheck/pkg/events"
	"github.com/cgast/envcheck/pkg/history"
)

// EvaluatorFunc builds a fresh evaluator, typically against a new runtime
// snapshot.
type EvaluatorFunc func(ctx context.Context) (*check.Evaluator, error)

// Options configures a Server.
type Options struct {
	// Token guards POST /api/check when set.
	Token string
	// Debug exposes raw messages of unexpected errors.
	Debug bool
	// MaxRuns prunes history after each saved run; zero keeps all.
	MaxRuns int
}

// Server is the HTTP JSON surface over an evaluator and its history.
type Server struct {
	evaluate EvaluatorFunc
	store    history.Store
	bus      events.EventBus
	logger   *zap.Logger
	opts     Options
	mux      *http.ServeMux

	mu      sync.Mutex
	current *check.Evaluator
	// gen counts invalidations; a build started before one is not installed.
	gen uint64
}

// listResponse is the body of GET /api/requirements.
type listResponse struct {
	Success    bool           `json:"success"`
	Data       []check.Export `json:"data"`
	Total      int            `json:"total"`
	FatalError bool           `json:"fatalError"`
	Summary    check.Summary  `json:"summary"`
}

type dataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// New creates a server. store and bus may be nil.
func New(evaluate EvaluatorFunc, store history.Store, bus events.EventBus, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		evaluate: evaluate,
		store:    store,
		bus:      bus,
		logger:   logger.Named("api"),
		opts:     opts,
		mux:      http.NewServeMux(),
	}

	s.mux.Handle("GET /api/requirements", s.handle(s.handleRequirements))
	s.mux.Handle("GET /api/requirements/{name}", s.handle(s.handleRequirement))
	s.mux.Handle("POST /api/check", s.handle(s.handleCheck))
	s.mux.Handle("GET /api/history", s.handle(s.handleHistory))
	s.mux.Handle("GET /api/history/diff", s.handle(s.handleDiff))
	s.mux.Handle("GET /api/history/{id}", s.handle(s.handleRun))
	s.mux.Handle("GET /api/events", s.handle(s.handleEvents))
	s.mux.Handle("GET /api/events/stream", s.handle(s.handleStream))

	return s
}

// Handler returns the routing handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves on port until ctx is cancelled.
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// Invalidate drops the current evaluation; the next read evaluates again.
func (s *Server) Invalidate() {
	s.mu.Lock()
	s.current = nil
	s.gen++
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(events.NewEvent(events.EventListChanged, nil))
	}
}

func (s *Server) handle(fn func(http.ResponseWriter, *http.Request) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			writeError(w, s.logger, err, s.opts.Debug)
		}
	})
}

// evaluator returns the current evaluator, creating one lazily. The build
// runs without holding s.mu; the first finished build wins.
func (s *Server) evaluator(ctx context.Context) (*check.Evaluator, error) {
	s.mu.Lock()
	current, gen := s.current, s.gen
	s.mu.Unlock()
	if current != nil {
		return current, nil
	}

	e, err := s.evaluate(ctx)
	if err != nil {
		return nil, fmt.Errorf("build evaluator: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return s.current, nil
	}
	if s.gen == gen {
		s.current = e
	}
	return e, nil
}

func (s *Server) handleRequirements(w http.ResponseWriter, r *http.Request) error {
	e, err := s.evaluator(r.Context())
	if err != nil {
		return err
	}
	list := e.Export()
	writeJSON(w, listResponse{
		Success:    true,
		Data:       list,
		Total:      len(list),
		FatalError: e.FatalError(),
		Summary:    check.Summarize(list),
	})
	return nil
}

func (s *Server) handleRequirement(w http.ResponseWriter, r *http.Request) error {
	name := r.PathValue("name")
	e, err := s.evaluator(r.Context())
	if err != nil {
		return err
	}
	for _, x := range e.Export() {
		if strings.EqualFold(x.Name, name) {
			writeJSON(w, dataResponse{Success: true, Data: x})
			return nil
		}
	}
	return &NotFoundError{Resource: "requirement", ID: name}
}

func (s *Server) authorize(r *http.Request) error {
	if s.opts.Token == "" {
		return nil
	}
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.Token)) != 1 {
		return &ForbiddenError{Message: "Invalid or missing auth"}
	}
	return nil
}

// handleCheck runs a fresh evaluation, makes it current and persists it.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) error {
	if err := s.authorize(r); err != nil {
		return err
	}

	e, err := s.evaluate(r.Context())
	if err != nil {
		return fmt.Errorf("build evaluator: %w", err)
	}
	run := history.NewRun(e.Export(), e.FatalError())

	s.mu.Lock()
	s.current = e
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Save(run); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		if s.opts.MaxRuns > 0 {
			if _, err := s.store.Prune(s.opts.MaxRuns); err != nil {
				s.logger.Warn("prune history", zap.Error(err))
			}
		}
		if s.bus != nil {
			s.bus.Publish(events.NewEvent(events.EventRunSaved, run.ID))
		}
	}

	s.logger.Info("check run finished",
		zap.String("id", run.ID),
		zap.Int("total", len(run.Results)),
		zap.Bool("fatal", run.FatalError),
	)
	writeJSONStatus(w, http.StatusCreated, dataResponse{Success: true, Data: run})
	return nil
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) error {
	runs := []history.Run{}
	if s.store != nil {
		stored, err := s.store.List()
		if err != nil {
			return fmt.Errorf("list history: %w", err)
		}
		runs = append(runs, stored...)
	}
	writeJSON(w, dataResponse{Success: true, Data: runs})
	return nil
}

func (s *Server) loadRun(id string) (history.Run, error) {
	if s.store == nil {
		return history.Run{}, &NotFoundError{Resource: "run", ID: id}
	}
	run, err := s.store.Get(id)
	if errors.Is(err, history.ErrNotFound) {
		return history.Run{}, &NotFoundError{Resource: "run", ID: id}
	}
	if err != nil {
		return history.Run{}, fmt.Errorf("load run %s: %w", id, err)
	}
	return run, nil
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) error {
	run, err := s.loadRun(r.PathValue("id"))
	if err != nil {
		return err
	}
	writeJSON(w, dataResponse{Success: true, Data: run})
	return nil
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" {
		return &MissingParameterError{Name: "from"}
	}
	if to == "" {
		return &MissingParameterError{Name: "to"}
	}

	a, err := s.loadRun(from)
	if err != nil {
		return err
	}
	b, err := s.loadRun(to)
	if err != nil {
		return err
	}

	changes := history.Diff(a, b)
	if changes == nil {
		changes = []history.Change{}
	}
	writeJSON(w, dataResponse{Success: true, Data: changes})
	return nil
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) error {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return &ValidationError{Errors: []string{"since: expected an RFC 3339 timestamp"}}
		}
		since = t
	}

	list := []events.Event{}
	if s.bus != nil {
		list = append(list, s.bus.History(since)...)
	}
	writeJSON(w, dataResponse{Success: true, Data: list})
	return nil
}

// handleStream sends the event history followed by live events as
// server-sent events until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) error {
	if s.bus == nil {
		return &NotFoundError{Resource: "event stream", ID: "bus"}
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		return errors.New("streaming not supported")
	}

	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for _, ev := range s.bus.History(time.Time{}) {
		writeEvent(w, ev)
	}
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			writeEvent(w, ev)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
}
