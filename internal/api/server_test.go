package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cgast/envcheck/pkg/check"
	"github.com/cgast/envcheck/pkg/events"
	"github.com/cgast/envcheck/pkg/history"
	"github.com/cgast/envcheck/pkg/phpruntime"
	"github.com/cgast/envcheck/pkg/requirement"
)

const checklist = `
requirements:
  - name: php
    required: 5.3.2
  - name: json
    required: "1"
  - name: gd
    required: 2.0.0
    weakRequired: true
`

const snapshot = `{
  "version": "8.1.2-1ubuntu2.14",
  "extensions": ["Core", "json"],
  "functions": [],
  "ini": {},
  "constants": {},
  "info": ""
}`

func evaluatorFunc(t *testing.T, bus events.EventBus) EvaluatorFunc {
	t.Helper()
	return func(context.Context) (*check.Evaluator, error) {
		snap, err := phpruntime.Decode([]byte(snapshot))
		if err != nil {
			return nil, err
		}
		src := requirement.BytesSource{Data: []byte(checklist), Format: requirement.FormatYAML}
		return check.NewEvaluator(src, snap, check.WithBus(bus)), nil
	}
}

func newTestServer(t *testing.T, opts Options) (*Server, *history.BoltStore, *events.MemoryBus) {
	t.Helper()
	store, err := history.NewBoltStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bus := events.NewMemoryBus()
	return New(evaluatorFunc(t, bus), store, bus, zap.NewNop(), opts), store, bus
}

func do(t *testing.T, s *Server, method, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func TestListRequirements(t *testing.T) {
	s, _, _ := newTestServer(t, Options{})

	w := do(t, s, http.MethodGet, "/api/requirements", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	resp := decode[listResponse](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.Total)
	assert.False(t, resp.FatalError)
	require.Len(t, resp.Data, 3)
	assert.Equal(t, "8.1.2", resp.Data[0].Version)
	assert.True(t, resp.Data[0].Result)
	assert.False(t, resp.Data[2].Result)
	assert.Equal(t, 1, resp.Summary.Advisory)
}

func TestGetRequirement(t *testing.T) {
	s, _, _ := newTestServer(t, Options{})

	w := do(t, s, http.MethodGet, "/api/requirements/JSON", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[struct {
		Success bool         `json:"success"`
		Data    check.Export `json:"data"`
	}](t, w)
	assert.Equal(t, "json", resp.Data.Name)
	assert.True(t, resp.Data.Result)

	w = do(t, s, http.MethodGet, "/api/requirements/zip", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decode[errorResponse](t, w)
	assert.False(t, body.Success)
	assert.Contains(t, body.Message, "zip")
}

func TestEvaluatorIsReused(t *testing.T) {
	builds := 0
	s := New(func(ctx context.Context) (*check.Evaluator, error) {
		builds++
		return evaluatorFunc(t, nil)(ctx)
	}, nil, nil, nil, Options{})

	do(t, s, http.MethodGet, "/api/requirements", nil)
	do(t, s, http.MethodGet, "/api/requirements/php", nil)
	assert.Equal(t, 1, builds)
}

func TestCheckRequiresToken(t *testing.T) {
	s, store, _ := newTestServer(t, Options{Token: "s3cret"})

	w := do(t, s, http.MethodPost, "/api/check", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Invalid or missing auth", decode[errorResponse](t, w).Message)

	w = do(t, s, http.MethodPost, "/api/check", http.Header{"Authorization": {"Bearer wrong"}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	runs, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestCheckPersistsRun(t *testing.T) {
	s, store, bus := newTestServer(t, Options{Token: "s3cret", MaxRuns: 2})
	auth := http.Header{"Authorization": {"Bearer s3cret"}}

	var ids []string
	for i := 0; i < 3; i++ {
		w := do(t, s, http.MethodPost, "/api/check", auth)
		require.Equal(t, http.StatusCreated, w.Code)
		resp := decode[struct {
			Data history.Run `json:"data"`
		}](t, w)
		require.NotEmpty(t, resp.Data.ID)
		assert.Len(t, resp.Data.Results, 3)
		ids = append(ids, resp.Data.ID)
	}

	runs, err := store.List()
	require.NoError(t, err)
	require.Len(t, runs, 2, "history is pruned to MaxRuns")
	assert.Equal(t, ids[1], runs[0].ID)

	saved := 0
	for _, ev := range bus.History(runs[0].Timestamp.AddDate(-1, 0, 0)) {
		if ev.Type == events.EventRunSaved {
			saved++
		}
	}
	assert.Equal(t, 3, saved)
}

func TestHistoryEndpoints(t *testing.T) {
	s, store, _ := newTestServer(t, Options{})

	a := history.NewRun([]check.Export{{Name: "php", Version: "7.4.3", Result: true}}, false)
	b := history.NewRun([]check.Export{{Name: "php", Version: "8.1.2", Result: true}}, false)
	require.NoError(t, store.Save(a))
	require.NoError(t, store.Save(b))

	w := do(t, s, http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Data []history.Run `json:"data"`
	}](t, w)
	assert.Len(t, list.Data, 2)

	w = do(t, s, http.MethodGet, "/api/history/"+a.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodGet, "/api/history/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodGet, "/api/history/diff?from="+a.ID+"&to="+b.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	diff := decode[struct {
		Data []history.Change `json:"data"`
	}](t, w)
	require.Len(t, diff.Data, 1)
	assert.Equal(t, history.ChangeModified, diff.Data[0].Type)

	w = do(t, s, http.MethodGet, "/api/history/diff?from="+a.ID, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[errorResponse](t, w)
	assert.Equal(t, http.StatusBadRequest, body.Code)
	assert.Contains(t, body.Message, "to")
}

func TestHistoryWithoutStore(t *testing.T) {
	s := New(evaluatorFunc(t, nil), nil, nil, nil, Options{})

	w := do(t, s, http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":[]}`, w.Body.String())

	w = do(t, s, http.MethodGet, "/api/history/abc", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodPost, "/api/check", nil)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestEventsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t, Options{})
	do(t, s, http.MethodGet, "/api/requirements", nil)

	w := do(t, s, http.MethodGet, "/api/events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[struct {
		Data []events.Event `json:"data"`
	}](t, w)
	require.NotEmpty(t, resp.Data)
	assert.Equal(t, events.EventListLoaded, resp.Data[0].Type)

	w = do(t, s, http.MethodGet, "/api/events?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[errorResponse](t, w)
	assert.Equal(t, "Validation error", body.Message)
	assert.Len(t, body.Errors, 1)
}

func TestUnexpectedErrorHidesMessage(t *testing.T) {
	failing := func(context.Context) (*check.Evaluator, error) {
		return nil, errors.New("php binary exploded")
	}

	s := New(failing, nil, nil, nil, Options{})
	w := do(t, s, http.MethodGet, "/api/requirements", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode[errorResponse](t, w)
	assert.Equal(t, "Unknown error", body.Message)

	s = New(failing, nil, nil, nil, Options{Debug: true})
	w = do(t, s, http.MethodGet, "/api/requirements", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.True(t, strings.Contains(decode[errorResponse](t, w).Message, "php binary exploded"))
}

func TestMethodNotAllowed(t *testing.T) {
	s, _, _ := newTestServer(t, Options{})
	w := do(t, s, http.MethodDelete, "/api/requirements", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestInvalidate(t *testing.T) {
	builds := 0
	bus := events.NewMemoryBus()
	s := New(func(ctx context.Context) (*check.Evaluator, error) {
		builds++
		return evaluatorFunc(t, nil)(ctx)
	}, nil, bus, nil, Options{})

	do(t, s, http.MethodGet, "/api/requirements", nil)
	s.Invalidate()
	do(t, s, http.MethodGet, "/api/requirements", nil)
	assert.Equal(t, 2, builds)

	published := bus.History(time.Time{})
	require.Len(t, published, 1)
	assert.Equal(t, events.EventListChanged, published[0].Type)
}

func TestStartStopsOnCancel(t *testing.T) {
	s := New(evaluatorFunc(t, nil), nil, nil, nil, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx, 0) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestSlowBuildDoesNotBlockInvalidate(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var builds atomic.Int32
	s := New(func(ctx context.Context) (*check.Evaluator, error) {
		if builds.Add(1) == 1 {
			close(started)
			<-release
		}
		return evaluatorFunc(t, nil)(ctx)
	}, nil, nil, nil, Options{})

	done := make(chan int, 1)
	go func() { done <- do(t, s, http.MethodGet, "/api/requirements", nil).Code }()
	<-started

	invalidated := make(chan struct{})
	go func() {
		s.Invalidate()
		close(invalidated)
	}()
	select {
	case <-invalidated:
	case <-time.After(2 * time.Second):
		t.Fatal("Invalidate waited for a running build")
	}

	close(release)
	assert.Equal(t, http.StatusOK, <-done)

	do(t, s, http.MethodGet, "/api/requirements", nil)
	assert.Equal(t, int32(2), builds.Load(), "a build that straddles an invalidation is not kept")
}

func TestEventStream(t *testing.T) {
	bus := events.NewMemoryBus()
	bus.Publish(events.NewEvent(events.EventListLoaded, nil))
	s := New(evaluatorFunc(t, bus), nil, bus, nil, Options{})

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	nextType := func() string {
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "event: ") {
				return strings.TrimPrefix(line, "event: ")
			}
		}
		return ""
	}

	assert.Equal(t, string(events.EventListLoaded), nextType(), "history is replayed first")
	bus.Publish(events.NewEvent(events.EventRunSaved, nil))
	assert.Equal(t, string(events.EventRunSaved), nextType(), "live events follow")
}

func TestEventStreamWithoutBus(t *testing.T) {
	s := New(evaluatorFunc(t, nil), nil, nil, nil, Options{})
	w := do(t, s, http.MethodGet, "/api/events/stream", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
