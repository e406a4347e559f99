// Package redis provides a Redis-backed storage driver. Each record is a JSON
// string key; a sorted set scored by completion time indexes them.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/papercomputeco/ssechat/pkg/storage"
)

const defaultPrefix = "ssechat"

// Options configures the Redis driver.
type Options struct {
	Addr     string
	Username string
	Password string
	DB       int

	// Prefix namespaces every key. Defaults to "ssechat".
	Prefix string

	// TTL expires records after the given duration. Zero keeps them forever.
	TTL time.Duration
}

// Driver implements storage.Driver using Redis.
type Driver struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewDriver connects to Redis and verifies the connection.
func NewDriver(ctx context.Context, opts Options) (*Driver, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}

	return &Driver{client: client, prefix: prefix, ttl: opts.TTL}, nil
}

func (d *Driver) turnKey(id string) string {
	return fmt.Sprintf("%s:turn:%s", d.prefix, id)
}

func (d *Driver) indexKey() string {
	return d.prefix + ":turns"
}

// Put stores a record. Returns true if the record was newly inserted.
func (d *Driver) Put(ctx context.Context, rec *storage.Record) (bool, error) {
	if rec == nil {
		return false, errors.New("cannot store nil record")
	}
	if rec.ID == "" {
		return false, errors.New("cannot store record without an id")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("failed to marshal turn: %w", err)
	}

	inserted, err := d.client.SetNX(ctx, d.turnKey(rec.ID), data, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to save turn %s: %w", rec.ID, err)
	}
	if !inserted {
		return false, nil
	}

	err = d.client.ZAdd(ctx, d.indexKey(), &redis.Z{
		Score:  float64(rec.CompletedAt.UnixMilli()),
		Member: rec.ID,
	}).Err()
	if err != nil {
		return true, fmt.Errorf("failed to index turn %s: %w", rec.ID, err)
	}

	return true, nil
}

// Get retrieves a record by its ID.
func (d *Driver) Get(ctx context.Context, id string) (*storage.Record, error) {
	data, err := d.client.Get(ctx, d.turnKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load turn %s: %w", id, err)
	}

	rec := &storage.Record{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal turn %s: %w", id, err)
	}
	return rec, nil
}

// List returns records, most recently completed first. Index entries whose
// record expired are dropped from the index.
func (d *Driver) List(ctx context.Context, limit int) ([]*storage.Record, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	ids, err := d.client.ZRevRange(ctx, d.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get turn index: %w", err)
	}

	records := []*storage.Record{}
	if len(ids) == 0 {
		return records, nil
	}

	pipe := d.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, d.turnKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}

	var expired []any
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			expired = append(expired, ids[i])
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load turn %s: %w", ids[i], err)
		}

		rec := &storage.Record{}
		if err := json.Unmarshal(data, rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn %s: %w", ids[i], err)
		}
		records = append(records, rec)
	}

	if len(expired) > 0 {
		d.client.ZRem(ctx, d.indexKey(), expired...)
	}

	return records, nil
}

// Close closes the Redis client.
func (d *Driver) Close() error {
	return d.client.Close()
}
