package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/dsl-grades/grade-hub/internal/domain/grade"
)

type hashStore interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, values map[string]string) error
}

// MarkerCache serves the session markers from a Redis hash in front of the
// document store. The store stays authoritative: writes go to it first and
// a cache miss reloads from it.
type MarkerCache struct {
	cache hashStore
	store grade.MarkerRepository
	key   string
}

// NewMarkerCache wraps store with a Redis read-through cache.
func NewMarkerCache(c *Cache, store grade.MarkerRepository) *MarkerCache {
	return &MarkerCache{cache: c, store: store, key: c.Key("markers")}
}

var _ grade.MarkerRepository = (*MarkerCache)(nil)

// CurrentSession returns the cached markers, loading them on a miss.
func (m *MarkerCache) CurrentSession(ctx context.Context) (grade.Session, error) {
	vals, err := m.cache.HGetAll(ctx, m.key)
	if err == nil {
		return grade.Session{
			Written: vals[string(grade.StreamWritten)],
			Project: vals[string(grade.StreamProject)],
		}, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		return grade.Session{}, fmt.Errorf("read marker cache: %w", err)
	}

	s, err := m.store.CurrentSession(ctx)
	if err != nil {
		return grade.Session{}, err
	}
	if err := m.fill(ctx, s); err != nil {
		return grade.Session{}, err
	}
	return s, nil
}

// SetMarker writes through to the store, then refills the cache with both
// markers as the store now holds them. The cached hash always carries both
// fields, even when it was cold before the write.
func (m *MarkerCache) SetMarker(ctx context.Context, stream grade.Stream, key string) error {
	if err := m.store.SetMarker(ctx, stream, key); err != nil {
		return err
	}
	s, err := m.store.CurrentSession(ctx)
	if err != nil {
		return err
	}
	return m.fill(ctx, s)
}

func (m *MarkerCache) fill(ctx context.Context, s grade.Session) error {
	if err := m.cache.HSet(ctx, m.key, map[string]string{
		string(grade.StreamWritten): s.Written,
		string(grade.StreamProject): s.Project,
	}); err != nil {
		return fmt.Errorf("fill marker cache: %w", err)
	}
	return nil
}
