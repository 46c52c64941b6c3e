package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "requirements.yaml")
	require.NoError(t, os.WriteFile(path, []byte("requirements: []\n"), 0o644))

	changed := make(chan struct{}, 4)
	w, err := New(path, func() { changed <- struct{}{} }, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	w.Start(context.Background())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("requirements:\n  - name: php\n    required: 8.1\n"), 0o644))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatcherIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "requirements.yaml")
	require.NoError(t, os.WriteFile(path, []byte("requirements: []\n"), 0o644))

	var calls atomic.Int32
	w, err := New(path, func() { calls.Add(1) }, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	w.Start(context.Background())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestWatcherStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "requirements.yaml")

	w, err := New(path, func() {})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()

	select {
	case <-w.doneCh:
	case <-time.After(5 * time.Second):
		t.Fatal("event loop still running")
	}
	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

func TestNewMissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing", "requirements.yaml"), func() {})
	assert.Error(t, err)
}

func TestStopWithoutStart(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "requirements.yaml"), func() {})
	require.NoError(t, err)
	assert.NoError(t, w.Stop())
}
