package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/andryanduta/predikta/internal/platform/logging"
	"github.com/andryanduta/predikta/internal/platform/resilience"
)

// PersistedEntry is the serialized form of one cache entry. Values are
// stored as raw JSON so the snapshot survives process restarts without the
// store knowing the concrete value type.
type PersistedEntry struct {
	Value    []byte    `json:"value"`
	StoredAt time.Time `json:"stored_at"`
}

// Persister is an optional durable backend for a Store. Implementations
// must treat Save as a full-snapshot overwrite.
type Persister interface {
	Load(ctx context.Context) (map[string]PersistedEntry, error)
	Save(ctx context.Context, snapshot map[string]PersistedEntry) error
}

type entry struct {
	value    any
	storedAt time.Time
}

// Store is a TTL key/value cache. Expired entries are evicted lazily on
// read. When a Persister is attached, every Set/Clear snapshots the full
// map; persistence failures are logged and swallowed, never returned.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	flight  resilience.SingleFlight

	persister Persister
	encode    func(any) ([]byte, error)
	decode    func([]byte) (any, error)
	logger    *logging.Logger
	now       func() time.Time
}

type Option func(*Store)

// WithPersistence attaches a durable backend plus the value codec used to
// round-trip entries through it.
func WithPersistence(p Persister, encode func(any) ([]byte, error), decode func([]byte) (any, error)) Option {
	return func(s *Store) {
		s.persister = p
		s.encode = encode
		s.decode = decode
	}
}

func WithLogger(logger *logging.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source. Used by tests to simulate expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(ctx context.Context, ttl time.Duration, opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]entry),
		ttl:     ttl,
		logger:  logging.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reload(ctx)
	return s
}

func (s *Store) Get(_ context.Context, key string) (any, bool) {
	if key == "" {
		return nil, false
	}

	now := s.now()
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.ttl > 0 && now.Sub(e.storedAt) >= s.ttl {
		s.evictIfUnchanged(key, e.storedAt)
		return nil, false
	}

	return e.value, true
}

// evictIfUnchanged removes key only if the entry still carries storedAt.
// A Set racing between the read lock and this delete refreshes the
// timestamp, and that fresh entry must survive.
func (s *Store) evictIfUnchanged(key string, storedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[key]; ok && cur.storedAt.Equal(storedAt) {
		delete(s.entries, key)
	}
}

func (s *Store) Set(ctx context.Context, key string, value any) {
	if key == "" {
		return
	}

	s.mu.Lock()
	s.entries[key] = entry{
		value:    value,
		storedAt: s.now(),
	}
	s.mu.Unlock()

	s.snapshot(ctx)
}

func (s *Store) Delete(ctx context.Context, key string) {
	if key == "" {
		return
	}

	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()

	s.snapshot(ctx)
}

func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.entries = make(map[string]entry)
	s.mu.Unlock()

	s.snapshot(ctx)
}

// Len counts live entries only; entries past their TTL are dropped first.
func (s *Store) Len() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ttl > 0 {
		for key, e := range s.entries {
			if now.Sub(e.storedAt) >= s.ttl {
				delete(s.entries, key)
			}
		}
	}
	return len(s.entries)
}

// GetOrLoad returns the cached value for key, or runs loader exactly once
// across concurrent callers and caches its result.
func (s *Store) GetOrLoad(ctx context.Context, key string, loader func(context.Context) (any, error)) (any, error) {
	if loader == nil {
		return nil, fmt.Errorf("loader is required")
	}
	if key == "" {
		return loader(ctx)
	}

	if value, ok := s.Get(ctx, key); ok {
		return value, nil
	}

	value, err, _ := s.flight.Do(key, func() (any, error) {
		if cached, ok := s.Get(ctx, key); ok {
			return cached, nil
		}

		loaded, loadErr := loader(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		s.Set(ctx, key, loaded)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}

	return value, nil
}

func (s *Store) reload(ctx context.Context) {
	if s.persister == nil || s.decode == nil {
		return
	}

	persisted, err := s.persister.Load(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "cache reload failed, starting empty", "error", err)
		return
	}

	now := s.now()
	restored := 0
	s.mu.Lock()
	for key, pe := range persisted {
		if key == "" || len(pe.Value) == 0 {
			continue
		}
		if s.ttl > 0 && now.Sub(pe.StoredAt) >= s.ttl {
			continue
		}
		value, decodeErr := s.decode(pe.Value)
		if decodeErr != nil {
			s.logger.WarnContext(ctx, "cache entry decode failed, skipping", "key", key, "error", decodeErr)
			continue
		}
		s.entries[key] = entry{value: value, storedAt: pe.StoredAt}
		restored++
	}
	s.mu.Unlock()

	if restored > 0 {
		s.logger.InfoContext(ctx, "cache restored from durable store", "entries", restored)
	}
}

func (s *Store) snapshot(ctx context.Context) {
	if s.persister == nil || s.encode == nil {
		return
	}

	s.mu.RLock()
	out := make(map[string]PersistedEntry, len(s.entries))
	for key, e := range s.entries {
		raw, err := s.encode(e.value)
		if err != nil {
			s.logger.WarnContext(ctx, "cache entry encode failed, skipping", "key", key, "error", err)
			continue
		}
		out[key] = PersistedEntry{Value: raw, StoredAt: e.storedAt}
	}
	s.mu.RUnlock()

	if err := s.persister.Save(ctx, out); err != nil {
		s.logger.WarnContext(ctx, "cache snapshot failed, continuing in-memory", "error", err)
	}
}
