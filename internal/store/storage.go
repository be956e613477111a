package store

import (
	"encoding/json"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const keyTelemetry = "telemetry"

// Telemetry is the lifetime search counters persisted across restarts.
type Telemetry struct {
	TotalSearches int64     `json:"total_searches"`
	TotalNodes    int64     `json:"total_nodes"`
	BestNPS       int64     `json:"best_nps"`
	LastSearch    time.Time `json:"last_search"`
}

// DefaultTelemetry returns an empty telemetry record.
func DefaultTelemetry() *Telemetry {
	return &Telemetry{}
}

// Store wraps BadgerDB for persisting lifetime engine telemetry.
type Store struct {
	db *badger.DB
}

// Open opens (creating if needed) the telemetry database in the
// platform's standard data directory.
func Open() (*Store, error) {
	dbDir, err := GetDatabaseDir()
	if err != nil {
		return nil, err
	}
	return OpenAt(dbDir)
}

// OpenAt opens the telemetry database at an explicit directory, used by
// tests and by a `-datadir` override flag.
func OpenAt(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load reads the persisted telemetry, returning a zero-valued record if
// none has been saved yet.
func (s *Store) Load() (*Telemetry, error) {
	t := DefaultTelemetry()

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyTelemetry))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, t)
		})
	})
	return t, err
}

// Save persists t.
func (s *Store) Save(t *Telemetry) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyTelemetry), data)
	})
}

// RecordSearch folds one completed search's node count and nps into the
// persisted telemetry; the UCI loop calls it right after every `go`
// search completes (`bench` does not record).
func (s *Store) RecordSearch(nodes int64, nps int64) error {
	t, err := s.Load()
	if err != nil {
		return err
	}
	t.TotalSearches++
	t.TotalNodes += nodes
	if nps > t.BestNPS {
		t.BestNPS = nps
	}
	t.LastSearch = time.Now()
	return s.Save(t)
}
