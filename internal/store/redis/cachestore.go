package redis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheEntry is one stored response of an offline cache.
type CacheEntry struct {
	URL      string      `json:"url"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"storedAt"`
}

// OpenCache registers a cache name. Opening an existing cache is a no-op.
func (s *Store) OpenCache(ctx context.Context, name string) error {
	if err := s.client.SAdd(ctx, KeyCaches, name).Err(); err != nil {
		return fmt.Errorf("failed to open cache %s: %w", name, err)
	}
	return nil
}

// CacheNames lists every registered cache.
func (s *Store) CacheNames(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, KeyCaches).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list caches: %w", err)
	}
	return names, nil
}

// PutCacheEntry stores a response under its URL.
func (s *Store) PutCacheEntry(ctx context.Context, cache string, e *CacheEntry) error {
	data, err := mustJSON(e)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, KeyCaches, cache)
		pipe.HSet(ctx, CacheKey(cache), e.URL, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store %s in %s: %w", e.URL, cache, err)
	}
	return nil
}

// GetCacheEntry returns the stored response for url, or nil on a miss.
func (s *Store) GetCacheEntry(ctx context.Context, cache, url string) (*CacheEntry, error) {
	data, err := s.client.HGet(ctx, CacheKey(cache), url).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s from %s: %w", url, cache, err)
	}
	var e CacheEntry
	if err := unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// DeleteCache drops a cache and all of its entries.
func (s *Store) DeleteCache(ctx context.Context, name string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, CacheKey(name))
		pipe.SRem(ctx, KeyCaches, name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete cache %s: %w", name, err)
	}
	return nil
}

// CacheEntries returns every response stored in a cache.
func (s *Store) CacheEntries(ctx context.Context, cache string) ([]*CacheEntry, error) {
	raw, err := s.client.HGetAll(ctx, CacheKey(cache)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list entries of %s: %w", cache, err)
	}
	entries := make([]*CacheEntry, 0, len(raw))
	for _, data := range raw {
		var e CacheEntry
		if err := unmarshal([]byte(data), &e); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, nil
}

// DeleteCacheEntries removes the given URLs from a cache.
func (s *Store) DeleteCacheEntries(ctx context.Context, cache string, urls ...string) error {
	if len(urls) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, CacheKey(cache), urls...).Err(); err != nil {
		return fmt.Errorf("failed to evict from %s: %w", cache, err)
	}
	return nil
}

// CacheLen is the number of responses stored in a cache.
func (s *Store) CacheLen(ctx context.Context, cache string) (int64, error) {
	n, err := s.client.HLen(ctx, CacheKey(cache)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count entries of %s: %w", cache, err)
	}
	return n, nil
}
