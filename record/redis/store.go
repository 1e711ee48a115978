// Package redis provides a durable record.Store backed by Redis. Each flow
// maps to one hash keyed by identity key, so an Upsert is a single HSET and
// the store stays crash-consistent at upsert granularity.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	backend "github.com/redis/go-redis/v9"

	"github.com/hupe1980/leadflow/record"
	"github.com/hupe1980/leadflow/schema"
)

// Store implements record.Store using Redis hashes.
type Store struct {
	client *backend.Client
	prefix string
}

// Option configures the store.
type Option func(*Store)

// WithPrefix sets the key prefix for record hashes.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "leadflow:records:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(flow schema.Flow) string {
	return s.prefix + flow.String()
}

// ReadAll implements record.Store. Records are ordered by creation time.
func (s *Store) ReadAll(ctx context.Context, flow schema.Flow) ([]record.Persisted, error) {
	rows, err := s.client.HGetAll(ctx, s.key(flow)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read records from redis: %w", err)
	}

	records := make([]record.Persisted, 0, len(rows))
	for field, raw := range rows {
		var rec record.Persisted
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record %q: %w", field, err)
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].Key < records[j].Key
	})
	return records, nil
}

// Upsert implements record.Store.
func (s *Store) Upsert(ctx context.Context, flow schema.Flow, rec record.Persisted) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := s.client.HSet(ctx, s.key(flow), rec.Key, data).Err(); err != nil {
		return fmt.Errorf("failed to write record to redis: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
