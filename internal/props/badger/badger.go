// Package badger implements props.Table on an embedded Badger database.
// Each property is one key, evprop/<eventID>/<key>, holding the JSON value.
package badger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v3"

	"github.com/alfredjeanlab/eventfeed/internal/props"
)

const keyPrefix = "evprop/"

// Config configures Open.
type Config struct {
	// Dir holds the database files. Ignored when InMemory is set.
	Dir      string
	InMemory bool
	Logger   *slog.Logger
	// LogLevel is the minimum level badger itself logs at.
	LogLevel slog.Level
}

// Table is a props.Table backed by Badger.
type Table struct {
	db *badger.DB
}

var (
	_ props.Table   = (*Table)(nil)
	_ props.Batcher = (*Table)(nil)
)

// Open opens or creates the database described by cfg.
func Open(cfg Config) (*Table, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions(cfg.Dir).
		WithInMemory(cfg.InMemory).
		WithLogger(&slogAdapter{logger: logger.WithGroup("badger")}).
		WithMemTableSize(16 << 20)
	opts = withLogLevel(opts, cfg.LogLevel)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Dir, err)
	}
	return &Table{db: db}, nil
}

func withLogLevel(opts badger.Options, l slog.Level) badger.Options {
	switch {
	case l <= slog.LevelDebug:
		return opts.WithLoggingLevel(badger.DEBUG)
	case l <= slog.LevelInfo:
		return opts.WithLoggingLevel(badger.INFO)
	case l <= slog.LevelWarn:
		return opts.WithLoggingLevel(badger.WARNING)
	default:
		return opts.WithLoggingLevel(badger.ERROR)
	}
}

func eventPrefix(eventID string) []byte {
	return []byte(keyPrefix + eventID + "/")
}

func propKey(eventID, key string) []byte {
	return append(eventPrefix(eventID), key...)
}

func (t *Table) Set(ctx context.Context, eventID, key string, value any) error {
	return t.SetAll(ctx, eventID, map[string]any{key: value})
}

// SetAll writes every value in one transaction.
func (t *Table) SetAll(ctx context.Context, eventID string, values map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.db.Update(func(txn *badger.Txn) error {
		for k, v := range values {
			data, err := props.Encode(k, v)
			if err != nil {
				return err
			}
			if err := txn.Set(propKey(eventID, k), data); err != nil {
				return fmt.Errorf("set %s/%s: %w", eventID, k, err)
			}
		}
		return nil
	})
}

func (t *Table) GetAll(ctx context.Context, eventID string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]any)
	prefix := eventPrefix(eventID)
	err := t.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := strings.TrimPrefix(string(item.Key()), string(prefix))
			data, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("read %s/%s: %w", eventID, key, err)
			}
			v, err := props.Decode(key, data)
			if err != nil {
				return err
			}
			out[key] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Table) Delete(ctx context.Context, eventID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	prefix := eventPrefix(eventID)
	return t.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return fmt.Errorf("delete %s: %w", k, err)
			}
		}
		return nil
	})
}

func (t *Table) Close() error {
	return t.db.Close()
}
