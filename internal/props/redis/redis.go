// Package redis implements props.Table on Redis, one hash per event at
// feed:event:<eventID>:props with JSON-encoded field values.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alfredjeanlab/eventfeed/internal/props"
)

// Config configures Open.
type Config struct {
	Addr     string
	Password string
	DB       int
	// DialTimeout bounds connection attempts. Zero uses the client default.
	DialTimeout time.Duration
}

// Table is a props.Table backed by Redis hashes.
type Table struct {
	rdb *redis.Client
}

var (
	_ props.Table   = (*Table)(nil)
	_ props.Batcher = (*Table)(nil)
)

// NewClient builds a client for cfg without contacting the server.
func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
}

// Open connects to Redis and verifies the connection with PING.
func Open(ctx context.Context, cfg Config) (*Table, error) {
	rdb := NewClient(cfg)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}
	return New(rdb), nil
}

// New wraps an existing client. Close closes it.
func New(rdb *redis.Client) *Table {
	return &Table{rdb: rdb}
}

func hashKey(eventID string) string {
	return "feed:event:" + eventID + ":props"
}

func encodeFields(values map[string]any) (map[string]any, error) {
	fields := make(map[string]any, len(values))
	for k, v := range values {
		data, err := props.Encode(k, v)
		if err != nil {
			return nil, err
		}
		fields[k] = string(data)
	}
	return fields, nil
}

func decodeFields(fields map[string]string) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for k, raw := range fields {
		v, err := props.Decode(k, []byte(raw))
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (t *Table) Set(ctx context.Context, eventID, key string, value any) error {
	return t.SetAll(ctx, eventID, map[string]any{key: value})
}

// SetAll writes every value with a single HSET.
func (t *Table) SetAll(ctx context.Context, eventID string, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	fields, err := encodeFields(values)
	if err != nil {
		return err
	}
	if err := t.rdb.HSet(ctx, hashKey(eventID), fields).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", hashKey(eventID), err)
	}
	return nil
}

func (t *Table) GetAll(ctx context.Context, eventID string) (map[string]any, error) {
	fields, err := t.rdb.HGetAll(ctx, hashKey(eventID)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", hashKey(eventID), err)
	}
	return decodeFields(fields)
}

func (t *Table) Delete(ctx context.Context, eventID string) error {
	if err := t.rdb.Del(ctx, hashKey(eventID)).Err(); err != nil {
		return fmt.Errorf("del %s: %w", hashKey(eventID), err)
	}
	return nil
}

func (t *Table) Close() error {
	return t.rdb.Close()
}
