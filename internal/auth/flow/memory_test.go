package flow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, clock *fakeClock, opts ...MemoryStoreOption) *MemoryStore {
	t.Helper()
	opts = append([]MemoryStoreOption{WithClock(clock.Now), WithCleanupInterval(0)}, opts...)
	s := NewMemoryStore(opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMemoryStore_PutTake(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, clock, WithTTL(time.Minute))

	require.NoError(t, s.Put(ctx, "state-1", Entry{Strategy: "github", Verifier: "v"}))
	assert.Equal(t, 1, s.Len())

	got, err := s.Take(ctx, "state-1")
	require.NoError(t, err)
	assert.Equal(t, "github", got.Strategy)
	assert.Equal(t, "v", got.Verifier)
	assert.Equal(t, clock.Now(), got.CreatedAt)
	assert.Equal(t, clock.Now().Add(time.Minute), got.ExpiresAt)
	assert.Equal(t, 0, s.Len())

	_, err = s.Take(ctx, "state-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_TakeUnknown(t *testing.T) {
	s := newTestStore(t, newFakeClock())
	_, err := s.Take(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_RejectsEmptyState(t *testing.T) {
	s := newTestStore(t, newFakeClock())
	assert.Error(t, s.Put(context.Background(), "", Entry{Strategy: "github"}))
}

func TestMemoryStore_DuplicateState(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, clock, WithTTL(time.Minute))

	require.NoError(t, s.Put(ctx, "dup", Entry{Strategy: "a"}))
	assert.ErrorIs(t, s.Put(ctx, "dup", Entry{Strategy: "b"}), ErrStateExists)

	// once the first one expired the state may be bound again
	clock.Advance(2 * time.Minute)
	require.NoError(t, s.Put(ctx, "dup", Entry{Strategy: "b"}))
	got, err := s.Take(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Strategy)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, clock, WithTTL(time.Minute))

	require.NoError(t, s.Put(ctx, "old", Entry{Strategy: "google"}))
	clock.Advance(time.Minute + time.Second)

	_, err := s.Take(ctx, "old")
	assert.ErrorIs(t, err, ErrExpired)
	assert.Equal(t, 0, s.Len(), "expired entry should be removed on take")
}

func TestMemoryStore_EvictsOldestWhenFull(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, clock, WithMaxEntries(2))

	require.NoError(t, s.Put(ctx, "first", Entry{Strategy: "a"}))
	clock.Advance(time.Second)
	require.NoError(t, s.Put(ctx, "second", Entry{Strategy: "b"}))
	clock.Advance(time.Second)
	require.NoError(t, s.Put(ctx, "third", Entry{Strategy: "c"}))

	assert.Equal(t, 2, s.Len())
	_, err := s.Take(ctx, "first")
	assert.ErrorIs(t, err, ErrNotFound)

	for _, state := range []string{"second", "third"} {
		_, err := s.Take(ctx, state)
		assert.NoError(t, err, state)
	}
}

func TestMemoryStore_SweepRemovesExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, clock, WithTTL(time.Minute))

	require.NoError(t, s.Put(ctx, "a", Entry{Strategy: "a"}))
	clock.Advance(30 * time.Second)
	require.NoError(t, s.Put(ctx, "b", Entry{Strategy: "b"}))
	clock.Advance(45 * time.Second)

	s.cleanupExpired()
	assert.Equal(t, 1, s.Len())

	_, err := s.Take(ctx, "b")
	assert.NoError(t, err)
}

func TestMemoryStore_BackgroundSweep(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(WithTTL(10*time.Millisecond), WithCleanupInterval(5*time.Millisecond))
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Put(ctx, "abandoned", Entry{Strategy: "discord"}))
	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemoryStore_Close(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(WithCleanupInterval(time.Millisecond))

	require.NoError(t, s.Put(ctx, "x", Entry{Strategy: "x"}))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Put(ctx, "y", Entry{Strategy: "y"}), ErrClosed)
	_, err := s.Take(ctx, "x")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_ConcurrentTakeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newFakeClock())
	require.NoError(t, s.Put(ctx, "race", Entry{Strategy: "github"}))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Take(ctx, "race"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
