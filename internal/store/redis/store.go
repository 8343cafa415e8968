package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
)

// maxTxRetries bounds optimistic-lock retries of WATCH transactions.
const maxTxRetries = 8

// Store is the per-user document store backed by Redis.
type Store struct {
	client *redis.Client
	now    func() time.Time
	newID  func() string

	// replaceWatched runs in ReplaceAll once every index is watched.
	replaceWatched func()
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source used for createdAt/archivedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides document id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client exposes the underlying client (health checks).
func (s *Store) Client() *redis.Client {
	return s.client
}

// Now returns the store clock.
func (s *Store) Now() time.Time {
	return s.now()
}

// NewID returns a fresh document id.
func (s *Store) NewID() string {
	return s.newID()
}

func uidFrom(ctx context.Context) (string, error) {
	u, err := domain.RequireUser(ctx)
	if err != nil {
		return "", err
	}
	return u.UID, nil
}

func checkNamespace(ns domain.Namespace) error {
	if !ns.Valid() {
		return fmt.Errorf("%w: unknown namespace %q", domain.ErrInvalidInput, ns)
	}
	return nil
}

// score orders documents by creation time. Microseconds keep the value exact in a float64.
func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}

// watch runs fn inside WATCH/MULTI and retries when a watched key changed.
func (s *Store) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("transaction aborted after %d conflicting attempts: %w", maxTxRetries, redis.TxFailedErr)
}

// reader is the read surface shared by *redis.Client and *redis.Tx.
type reader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	ZRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	ZRevRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

// getJSON loads a JSON document, mapping a missing key to domain.ErrNotFound.
func getJSON(ctx context.Context, c reader, key string, v any) error {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

func unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return nil
}

func mustJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return data, nil
}
