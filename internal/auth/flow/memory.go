package flow

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/brizzai/passport/internal/logger"
	"go.uber.org/zap"
)

const (
	DefaultTTL             = 10 * time.Minute
	DefaultCleanupInterval = time.Minute
	DefaultMaxEntries      = 10000
)

// Compile-time interface compliance check.
var _ Store = (*MemoryStore)(nil)

type timedEntry struct {
	state string
	entry Entry
}

// MemoryStore is an in-memory Store. Entries live for the configured TTL and
// the store never holds more than maxEntries; when full, the oldest entry is
// evicted. Since every entry gets the same TTL, creation order is also expiry
// order, so the list front is always the next entry to expire.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List

	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
	now             func() time.Time

	closed      bool
	closeOnce   sync.Once
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithTTL sets how long a pending flow stays valid.
func WithTTL(ttl time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMaxEntries bounds the number of pending flows. Zero disables the bound.
func WithMaxEntries(n int) MemoryStoreOption {
	return func(s *MemoryStore) {
		if n >= 0 {
			s.maxEntries = n
		}
	}
}

// WithCleanupInterval sets how often expired entries are swept. Zero disables
// the background sweep; expired entries are then only dropped lazily.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		if interval >= 0 {
			s.cleanupInterval = interval
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates a MemoryStore and starts the background sweep.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		entries:         make(map[string]*list.Element),
		order:           list.New(),
		ttl:             DefaultTTL,
		maxEntries:      DefaultMaxEntries,
		cleanupInterval: DefaultCleanupInterval,
		now:             time.Now,
		stopCleanup:     make(chan struct{}),
		cleanupDone:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cleanupInterval > 0 {
		go s.cleanupLoop()
	} else {
		close(s.cleanupDone)
	}

	return s
}

// Put records a pending flow for state. CreatedAt and ExpiresAt are set by the
// store.
func (s *MemoryStore) Put(_ context.Context, state string, entry Entry) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	now := s.now()
	if el, ok := s.entries[state]; ok {
		if !now.After(el.Value.(*timedEntry).entry.ExpiresAt) {
			return ErrStateExists
		}
		s.remove(el)
	}

	s.evictExpired(now)
	for s.maxEntries > 0 && s.order.Len() >= s.maxEntries {
		oldest := s.order.Front()
		logger.Warn("Evicting oldest pending flow, store is full",
			zap.String("strategy", oldest.Value.(*timedEntry).entry.Strategy),
			zap.Int("max_entries", s.maxEntries),
		)
		s.remove(oldest)
	}

	entry.CreatedAt = now
	entry.ExpiresAt = now.Add(s.ttl)
	s.entries[state] = s.order.PushBack(&timedEntry{state: state, entry: entry})
	return nil
}

// Take removes and returns the pending flow for state. An expired entry is
// removed as well and reported as ErrExpired.
func (s *MemoryStore) Take(_ context.Context, state string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Entry{}, ErrClosed
	}

	el, ok := s.entries[state]
	if !ok {
		return Entry{}, ErrNotFound
	}
	s.remove(el)

	entry := el.Value.(*timedEntry).entry
	if s.now().After(entry.ExpiresAt) {
		return Entry{}, ErrExpired
	}
	return entry, nil
}

// Len returns the number of entries currently held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Close stops the background sweep and drops all entries.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.entries = make(map[string]*list.Element)
		s.order.Init()
		s.mu.Unlock()

		if s.cleanupInterval > 0 {
			close(s.stopCleanup)
		}
		<-s.cleanupDone
	})
	return nil
}

func (s *MemoryStore) cleanupLoop() {
	defer close(s.cleanupDone)

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanupExpired()
		}
	}
}

func (s *MemoryStore) cleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := s.evictExpired(s.now()); n > 0 {
		logger.Debug("Swept expired pending flows", zap.Int("count", n))
	}
}

// evictExpired drops expired entries from the front of the list. Callers hold mu.
func (s *MemoryStore) evictExpired(now time.Time) int {
	n := 0
	for el := s.order.Front(); el != nil; el = s.order.Front() {
		if !now.After(el.Value.(*timedEntry).entry.ExpiresAt) {
			break
		}
		s.remove(el)
		n++
	}
	return n
}

func (s *MemoryStore) remove(el *list.Element) {
	delete(s.entries, el.Value.(*timedEntry).state)
	s.order.Remove(el)
}
