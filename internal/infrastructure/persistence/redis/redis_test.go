package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsl-grades/grade-hub/internal/domain/grade"
	"github.com/dsl-grades/grade-hub/internal/domain/shared"
	"github.com/dsl-grades/grade-hub/internal/infrastructure/persistence/memory"
)

type fakeRedis struct {
	mu      sync.Mutex
	extends int
	hashes  map[string]map[string]string
	strings map[string]string
	reads   int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{hashes: map[string]map[string]string{}, strings: map[string]string{}}
}

func (f *fakeRedis) HGetAll(_ context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	h, ok := f.hashes[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out, nil
}

func (f *fakeRedis) HSet(_ context.Context, key string, values map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		h = map[string]string{}
		f.hashes[key] = h
	}
	for k, v := range values {
		h[k] = v
	}
	return nil
}

func (f *fakeRedis) SetNX(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.strings[key]; ok {
		return false, nil
	}
	f.strings[key] = value
	return true, nil
}

func (f *fakeRedis) ExtendIfValue(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.strings[key] != value {
		return false, nil
	}
	f.extends++
	return true, nil
}

func (f *fakeRedis) extensions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.extends
}

func (f *fakeRedis) DeleteIfValue(_ context.Context, key, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.strings[key] != value {
		return false, nil
	}
	delete(f.strings, key)
	return true, nil
}

func TestMarkerCache_ReadThrough(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMarkerRepository()
	require.NoError(t, store.SetMarker(ctx, grade.StreamWritten, "29/01/2024"))

	fake := newFakeRedis()
	mc := &MarkerCache{cache: fake, store: store, key: "gradehub:markers"}

	s, err := mc.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, grade.Session{Written: "29/01/2024"}, s)
	assert.Equal(t, "29/01/2024", fake.hashes["gradehub:markers"]["written"])

	// served from the cache even if the store changes underneath
	require.NoError(t, store.SetMarker(ctx, grade.StreamWritten, "10/02/2024"))
	s, err = mc.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "29/01/2024", s.Written)
}

func TestMarkerCache_WriteThrough(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMarkerRepository()
	fake := newFakeRedis()
	mc := &MarkerCache{cache: fake, store: store, key: "k"}

	require.NoError(t, mc.SetMarker(ctx, grade.StreamProject, "10/02/2024"))

	stored, err := store.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10/02/2024", stored.Project)

	s, err := mc.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10/02/2024", s.Project)
}

func TestMarkerCache_ColdCacheKeepsOtherStream(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMarkerRepository()
	require.NoError(t, store.SetMarker(ctx, grade.StreamProject, "P1"))

	fake := newFakeRedis()
	mc := &MarkerCache{cache: fake, store: store, key: "k"}

	require.NoError(t, mc.SetMarker(ctx, grade.StreamWritten, "29/01/2024"))

	s, err := mc.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, grade.Session{Written: "29/01/2024", Project: "P1"}, s)
}

type failingHash struct{ fakeRedis }

func (f *failingHash) HGetAll(context.Context, string) (map[string]string, error) {
	return nil, errors.New("connection reset")
}

func TestMarkerCache_CacheError(t *testing.T) {
	mc := &MarkerCache{cache: &failingHash{}, store: memory.NewMarkerRepository(), key: "k"}

	_, err := mc.CurrentSession(context.Background())
	assert.ErrorContains(t, err, "connection reset")
}

func TestLock_SingleWriter(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	l := &Lock{store: fake, prefix: "gradehub:lock:", ttl: time.Minute}

	release, err := l.Acquire(ctx, "ingest")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "ingest")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrLocked)

	require.NoError(t, release(ctx))

	release2, err := l.Acquire(ctx, "ingest")
	require.NoError(t, err)

	// a stale release must not free the new holder
	require.NoError(t, release(ctx))
	assert.Contains(t, fake.strings, "gradehub:lock:ingest")
	require.NoError(t, release2(ctx))
	assert.Empty(t, fake.strings)
}

func TestLock_RenewsLeaseWhileHeld(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	l := &Lock{store: fake, prefix: "gradehub:lock:", ttl: 30 * time.Millisecond}

	release, err := l.Acquire(ctx, "ingest")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return fake.extensions() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, release(ctx))
	after := fake.extensions()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, fake.extensions())
	assert.Empty(t, fake.strings)
}

func TestConfig_Addr(t *testing.T) {
	assert.Equal(t, "localhost:6379", DefaultConfig().Addr())

	_, err := Config{URL: "not a url"}.options()
	assert.ErrorIs(t, err, ErrCacheConnection)

	opts, err := Config{URL: "redis://:secret@cache:6380/2"}.options()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
}
