// Package phpruntime inspects a PHP interpreter through its CLI binary.
// One run of an embedded probe script captures everything the requirement
// checks ask about; the resulting Snapshot answers from memory.
package phpruntime

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

//go:embed probe.php
var probeScript []byte

const (
	DefaultBinary  = "php"
	DefaultTimeout = 30 * time.Second
)

// Options controls how the interpreter is invoked.
type Options struct {
	Binary  string
	Timeout time.Duration
	// DiskPath is where free space is measured; the working directory when empty.
	DiskPath string
}

// Snapshot is what the probe script reported about one interpreter.
type Snapshot struct {
	PHPVersion    string             `json:"version"`
	Extensions    []string           `json:"extensions"`
	Functions     []string           `json:"functions"`
	Ini           map[string]*string `json:"ini"`
	Constants     map[string]string  `json:"constants"`
	InfoText      string             `json:"info"`
	GD            map[string]string  `json:"gd"`
	Curl          *string            `json:"curl"`
	SessionPath   *string            `json:"session_save_path"`
	IncludePathOK bool               `json:"include_path_extendable"`
	DiskPath      string             `json:"-"`

	once       sync.Once
	extensions map[string]bool
	functions  map[string]bool
	diskFree   func(path string) (float64, error)
}

// Collect runs the interpreter once and returns its snapshot.
func Collect(ctx context.Context, opts Options) (*Snapshot, error) {
	if opts.Binary == "" {
		opts.Binary = DefaultBinary
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	bin, err := exec.LookPath(opts.Binary)
	if err != nil {
		return nil, fmt.Errorf("locate php binary %q: %w", opts.Binary, err)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-d", "display_errors=stderr")
	cmd.Stdin = bytes.NewReader(probeScript)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("php probe timed out after %s", opts.Timeout)
		}
		return nil, fmt.Errorf("run php probe: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	snap, err := Decode(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	snap.DiskPath = opts.DiskPath
	return snap, nil
}

// Decode parses probe script output.
func Decode(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(bytes.TrimSpace(data), &snap); err != nil {
		return nil, fmt.Errorf("decode php probe output: %w", err)
	}
	if snap.PHPVersion == "" {
		return nil, fmt.Errorf("decode php probe output: missing version")
	}
	return &snap, nil
}

func (s *Snapshot) index() {
	s.once.Do(func() {
		s.extensions = make(map[string]bool, len(s.Extensions))
		for _, e := range s.Extensions {
			s.extensions[strings.ToLower(e)] = true
		}
		s.functions = make(map[string]bool, len(s.Functions))
		for _, f := range s.Functions {
			s.functions[strings.ToLower(f)] = true
		}
	})
}

func (s *Snapshot) Version() string { return s.PHPVersion }

// ExtensionLoaded matches case-insensitively, like the interpreter does.
func (s *Snapshot) ExtensionLoaded(name string) bool {
	s.index()
	return s.extensions[strings.ToLower(name)]
}

func (s *Snapshot) FunctionExists(name string) bool {
	s.index()
	return s.functions[strings.ToLower(name)]
}

// Setting reports a configuration directive. A directive that exists but
// has no value reads as "".
func (s *Snapshot) Setting(name string) (string, bool) {
	v, ok := s.Ini[name]
	if !ok {
		return "", false
	}
	if v == nil {
		return "", true
	}
	return *v, true
}

func (s *Snapshot) Constant(name string) (string, bool) {
	v, ok := s.Constants[name]
	return v, ok
}

func (s *Snapshot) Info() string { return s.InfoText }

func (s *Snapshot) GDInfo() (map[string]string, bool) {
	return s.GD, s.GD != nil
}

func (s *Snapshot) CurlVersion() (string, bool) {
	if s.Curl == nil {
		return "", false
	}
	return *s.Curl, true
}

func (s *Snapshot) SessionSavePath() string {
	if s.SessionPath == nil {
		return ""
	}
	return *s.SessionPath
}

func (s *Snapshot) IncludePathExtendable() bool { return s.IncludePathOK }

// DiskFreeSpace measures free bytes at DiskPath. Failures read as unknown.
func (s *Snapshot) DiskFreeSpace() (float64, bool) {
	path := s.DiskPath
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return 0, false
		}
		path = wd
	}
	measure := s.diskFree
	if measure == nil {
		measure = freeSpace
	}
	free, err := measure(path)
	if err != nil {
		return 0, false
	}
	return free, true
}
