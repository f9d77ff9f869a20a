// Package store keeps partial tables between the counting workers and the merge stage.
//
// Partials are stored in BadgerDB under
//
//	run/<run id>/member/<member>/part/<partition>
//
// so the merge stage can read every partial of one member with a single prefix
// scan, and a failed partition can be dropped without touching the others.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/neurlang/rbnc/stats"
)

// Config configures the store
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging. Nil disables it.
	Logger *slog.Logger
}

// DefaultConfig returns a persistent configuration at path
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration for tests
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

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
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store holds partials of one or more runs
type Store struct {
	db *badger.DB
}

// Open opens or creates the store
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
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
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func runPrefix(run uuid.UUID) []byte {
	return []byte("run/" + run.String() + "/")
}

func memberPrefix(run uuid.UUID, member int) []byte {
	return fmt.Appendf(runPrefix(run), "member/%010d/", member)
}

func partialKey(run uuid.UUID, member, partition int) []byte {
	return fmt.Appendf(memberPrefix(run, member), "part/%010d", partition)
}

func parseKey(run uuid.UUID, key []byte) (member, partition int, err error) {
	rest := key[len(runPrefix(run)):]
	if _, err = fmt.Sscanf(string(rest), "member/%d/part/%d", &member, &partition); err != nil {
		return 0, 0, fmt.Errorf("bad key %q: %w", key, err)
	}
	return member, partition, nil
}

// PutPartition stores every partial of one partition in a single transaction,
// so a partition is either fully visible to the merge stage or not at all.
func (s *Store) PutPartition(run uuid.UUID, partition int, partials []stats.Partial) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, p := range partials {
			data, err := p.MarshalBinary()
			if err != nil {
				return err
			}
			if err := txn.Set(partialKey(run, p.Member, partition), data); err != nil {
				return fmt.Errorf("partition %d member %d: %w", partition, p.Member, err)
			}
		}
		return nil
	})
}

// keys lists the keys below prefix without fetching values
func (s *Store) keys(prefix []byte) (keys [][]byte, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return
}

// Members lists the members that have at least one partial in the run
func (s *Store) Members(run uuid.UUID) ([]int, error) {
	keys, err := s.keys(runPrefix(run))
	if err != nil {
		return nil, err
	}
	var out []int
	for _, k := range keys {
		m, _, err := parseKey(run, k)
		if err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1] != m {
			out = append(out, m)
		}
	}
	return out, nil
}

// Each calls fn for every stored partial of the member in partition order
func (s *Store) Each(run uuid.UUID, member int, fn func(partition int, p stats.Partial) error) error {
	prefix := memberPrefix(run, member)
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			_, partition, err := parseKey(run, item.Key())
			if err != nil {
				return err
			}
			var p stats.Partial
			if err := item.Value(p.UnmarshalBinary); err != nil {
				return fmt.Errorf("member %d partition %d: %w", member, partition, err)
			}
			if err := fn(partition, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// Partials returns every stored partial of the member
func (s *Store) Partials(run uuid.UUID, member int) (out []stats.Partial, err error) {
	err = s.Each(run, member, func(_ int, p stats.Partial) error {
		out = append(out, p)
		return nil
	})
	return
}

// DropPartition deletes every partial a partition contributed. A retried
// partition must be recomputed from scratch, never merged twice.
func (s *Store) DropPartition(run uuid.UUID, partition int) error {
	return s.drop(run, func(p int) bool { return p == partition })
}

// DropRun deletes every partial of the run
func (s *Store) DropRun(run uuid.UUID) error {
	return s.drop(run, func(int) bool { return true })
}

func (s *Store) drop(run uuid.UUID, match func(partition int) bool) error {
	keys, err := s.keys(runPrefix(run))
	if err != nil {
		return err
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		_, p, err := parseKey(run, k)
		if err != nil {
			return err
		}
		if match(p) {
			if err := wb.Delete(k); err != nil {
				return err
			}
		}
	}
	return wb.Flush()
}
