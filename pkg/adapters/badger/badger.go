// Package badger stores replay runs in an embedded BadgerDB.
//
// Records live under "run/<runID>" and each project keeps an index of empty
// keys under "project/<projectID>/run/<runID>" so listing is a prefix scan.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/aretw0/promptloom/pkg/domain"
)

// Config controls how the database is opened.
type Config struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool

	SyncWrites bool

	// Logger receives badger's internal logs. Nil silences them.
	Logger *slog.Logger
}

// badgerLogger adapts slog to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// RunStore implements ports.RunStore on BadgerDB.
type RunStore struct {
	db *badger.DB
}

// Open opens (or creates) the database described by cfg.
func Open(cfg Config) (*RunStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &RunStore{db: db}, nil
}

// Close flushes and closes the database.
func (s *RunStore) Close() error {
	return s.db.Close()
}

func runKey(runID string) []byte {
	return []byte("run/" + runID)
}

func indexPrefix(projectID string) []byte {
	return []byte("project/" + projectID + "/run/")
}

// Save writes the record and its index entry in one transaction.
// Replacing a record under another project moves its index entry.
func (s *RunStore) Save(ctx context.Context, rec domain.RunRecord) error {
	if rec.RunID == "" {
		return fmt.Errorf("run id cannot be empty")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		prev, err := getRecord(txn, rec.RunID)
		switch {
		case err == nil && prev.ProjectID != rec.ProjectID:
			if err := txn.Delete(append(indexPrefix(prev.ProjectID), rec.RunID...)); err != nil {
				return err
			}
		case err != nil && !errors.Is(err, domain.ErrRunNotFound):
			return err
		}

		if err := txn.Set(runKey(rec.RunID), data); err != nil {
			return fmt.Errorf("failed to write run: %w", err)
		}
		return txn.Set(append(indexPrefix(rec.ProjectID), rec.RunID...), []byte{})
	})
}

func getRecord(txn *badger.Txn, runID string) (domain.RunRecord, error) {
	item, err := txn.Get(runKey(runID))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.RunRecord{}, domain.ErrRunNotFound
		}
		return domain.RunRecord{}, fmt.Errorf("failed to read run: %w", err)
	}

	var rec domain.RunRecord
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return domain.RunRecord{}, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return rec, nil
}

// Load retrieves a run record.
func (s *RunStore) Load(ctx context.Context, runID string) (domain.RunRecord, error) {
	var rec domain.RunRecord
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, runID)
		return err
	})
	return rec, err
}

// List scans the project's index and filters the referenced records.
func (s *RunStore) List(ctx context.Context, projectID string, filter domain.RunFilter) ([]domain.RunSummary, error) {
	var records []domain.RunRecord
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := indexPrefix(projectID)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			runID := string(it.Item().Key()[len(prefix):])
			rec, err := getRecord(txn, runID)
			if errors.Is(err, domain.ErrRunNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return domain.SelectRuns(records, filter), nil
}
