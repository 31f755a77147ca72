package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/specialistvlad/graphcraft/internal/types"
	"github.com/vmihailenco/msgpack/v5"
)

// Store persists artifacts across process restarts.
type Store interface {
	Get(ctx context.Context, key types.Digest) (*Artifact, error)
	Put(ctx context.Context, a *Artifact) error
	Close() error
}

var keyPrefix = []byte("artifact/")

// BadgerConfig configures OpenBadger.
type BadgerConfig struct {
	// Dir is the database directory. Required unless InMemory is set.
	Dir      string
	InMemory bool
	Logger   *slog.Logger
}

// BadgerStore is a Store backed by badger with msgpack-encoded values.
type BadgerStore struct {
	db *badger.DB
}

// badgerLogger adapts slog to badger's logger interface.
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

// OpenBadger opens or creates the store.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.New("artifact store: directory is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create artifact store directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open artifact store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func storeKey(key types.Digest) []byte {
	return append(append([]byte{}, keyPrefix...), key[:]...)
}

// Get loads an artifact. Unknown keys return ErrNotFound.
func (s *BadgerStore) Get(ctx context.Context, key types.Digest) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var a Artifact
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storeKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &a)
		})
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Put stores a. An existing artifact under the same key is replaced.
func (s *BadgerStore) Put(ctx context.Context, a *Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := msgpack.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(storeKey(a.Key), data)
	})
}

// Len counts the stored artifacts.
func (s *BadgerStore) Len() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Close closes the database.
func (s *BadgerStore) Close() error { return s.db.Close() }
