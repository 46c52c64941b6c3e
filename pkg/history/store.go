// Package history persists check runs so results can be compared over time.
package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/cgast/envcheck/pkg/check"
)

var (
	bucketRuns = []byte("runs") // sequence key -> run
	bucketIDs  = []byte("ids")  // run id -> sequence key
)

// ErrNotFound is returned when no run has the requested ID.
var ErrNotFound = errors.New("run not found")

// Run is one persisted evaluation.
type Run struct {
	ID         string         `json:"id" yaml:"id"`
	Timestamp  time.Time      `json:"timestamp" yaml:"timestamp"`
	FatalError bool           `json:"fatalError" yaml:"fatalError"`
	Results    []check.Export `json:"results" yaml:"results"`
}

// NewRun stamps an exported list with a fresh ID and the current time.
func NewRun(results []check.Export, fatal bool) Run {
	return Run{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		FatalError: fatal,
		Results:    results,
	}
}

// Store keeps runs in insertion order.
type Store interface {
	Save(run Run) error
	Get(id string) (Run, error)
	List() ([]Run, error)
	Prune(max int) (int, error)
	Close() error
}

// BoltStore is a bbolt-backed Store.
type BoltStore struct {
	db *bolt.DB
	mu sync.RWMutex
}

// NewBoltStore opens (or creates) the history database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketRuns, bucketIDs} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Save appends a run. Runs without an ID get one.
func (s *BoltStore) Save(run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now().UTC()
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		runs := tx.Bucket(bucketRuns)
		ids := tx.Bucket(bucketIDs)
		if ids.Get([]byte(run.ID)) != nil {
			return fmt.Errorf("run %s already saved", run.ID)
		}

		seq, err := runs.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)

		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("marshal run: %w", err)
		}
		if err := runs.Put(key, data); err != nil {
			return err
		}
		return ids.Put([]byte(run.ID), key)
	})
}

func (s *BoltStore) Get(id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var run Run
	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(bucketIDs).Get([]byte(id))
		if key == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		data := tx.Bucket(bucketRuns).Get(key)
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &run)
	})
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// List returns every run, oldest first.
func (s *BoltStore) List() ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Run
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).ForEach(func(k, v []byte) error {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("unmarshal run %x: %w", k, err)
			}
			out = append(out, run)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Prune drops the oldest runs until at most max remain and reports how
// many were removed. A max of zero or less keeps everything.
func (s *BoltStore) Prune(max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		runs := tx.Bucket(bucketRuns)
		ids := tx.Bucket(bucketIDs)

		total := 0
		if err := runs.ForEach(func(_, _ []byte) error { total++; return nil }); err != nil {
			return err
		}
		excess := total - max
		if excess <= 0 {
			return nil
		}

		type victim struct{ key, id []byte }
		var victims []victim
		c := runs.Cursor()
		for k, v := c.First(); k != nil && len(victims) < excess; k, v = c.Next() {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("unmarshal run %x: %w", k, err)
			}
			victims = append(victims, victim{key: append([]byte(nil), k...), id: []byte(run.ID)})
		}

		for _, v := range victims {
			if err := runs.Delete(v.key); err != nil {
				return err
			}
			if err := ids.Delete(v.id); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
