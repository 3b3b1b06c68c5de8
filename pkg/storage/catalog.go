package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/coattosintetico/termux-gps-tracker/pkg/types"
)

// RunStatus is the lifecycle phase of a recorded run
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusStopped RunStatus = "stopped"
	RunStatusFailed  RunStatus = "failed"
)

// ErrRunNotFound is returned when the catalog has no record for a run
var ErrRunNotFound = errors.New("run not found")

const runKeyPrefix = "run/"

// RunRecord describes one recording run and its document
type RunRecord struct {
	ID        string         `json:"id"`
	Path      string         `json:"path"`
	Provider  types.Provider `json:"provider"`
	Interval  time.Duration  `json:"interval"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at,omitempty"`
	Appended  int            `json:"appended"`
	Skipped   int            `json:"skipped"`
	Timeouts  int            `json:"timeouts"`
	Status    RunStatus      `json:"status"`
	Error     string         `json:"error,omitempty"`
}

// Catalog keeps a record of every run
type Catalog interface {
	// Put creates or replaces a run record
	Put(ctx context.Context, rec *RunRecord) error

	// Get returns the record of a single run
	Get(ctx context.Context, id string) (*RunRecord, error)

	// List returns all runs, oldest first
	List(ctx context.Context) ([]RunRecord, error)

	// Close closes the catalog
	Close() error
}

// Config holds storage configuration
type Config struct {
	RecordsDir       string
	CatalogPath      string
	CompressionLevel int
	CacheCapacity    int
	CacheTTL         time.Duration
}

// DefaultConfig returns default storage configuration
func DefaultConfig() *Config {
	return &Config{
		RecordsDir:       "records",
		CatalogPath:      "records/.catalog",
		CompressionLevel: 3,
		CacheCapacity:    8,
		CacheTTL:         time.Minute,
	}
}

// badgerCatalog implements Catalog using BadgerDB
type badgerCatalog struct {
	db *badger.DB
}

// NewCatalog opens the run catalog
func NewCatalog(cfg *Config) (Catalog, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	opts := badger.DefaultOptions(cfg.CatalogPath)
	opts.Logger = nil // Disable BadgerDB logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open run catalog: %w", err)
	}

	return &badgerCatalog{db: db}, nil
}

// Put implements Catalog.Put
func (c *badgerCatalog) Put(ctx context.Context, rec *RunRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		return fmt.Errorf("run record has no id")
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(generateKey(rec.ID), payload)
	})
}

// Get implements Catalog.Get
func (c *badgerCatalog) Get(ctx context.Context, id string) (*RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var payload []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(generateKey(id))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			payload = append([]byte{}, val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run record: %w", err)
	}

	var rec RunRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run record: %w", err)
	}

	return &rec, nil
}

// List implements Catalog.List
func (c *badgerCatalog) List(ctx context.Context) ([]RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []RunRecord
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(runKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec RunRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("failed to unmarshal run record: %w", err)
				}
				records = append(records, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})

	return records, nil
}

// Close implements Catalog.Close
func (c *badgerCatalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// generateKey generates the catalog key of a run
func generateKey(id string) []byte {
	return []byte(runKeyPrefix + id)
}
