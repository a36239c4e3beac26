package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
)

func TestStore_SetGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore(ctx, time.Hour)

	store.Set(ctx, "team-PL-64", "liverpool")

	value, ok := store.Get(ctx, "team-PL-64")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if value != "liverpool" {
		t.Fatalf("value = %v", value)
	}

	if _, ok := store.Get(ctx, "team-PL-57"); ok {
		t.Fatal("expected miss for unknown key")
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	store := NewStore(ctx, 10*time.Minute, WithClock(clock))
	store.Set(ctx, "fixtures-PL-7", 42)

	if _, ok := store.Get(ctx, "fixtures-PL-7"); !ok {
		t.Fatal("expected hit before expiry")
	}

	mu.Lock()
	now = now.Add(10 * time.Minute)
	mu.Unlock()

	if _, ok := store.Get(ctx, "fixtures-PL-7"); ok {
		t.Fatal("expected miss after TTL elapsed")
	}
	if got := store.Len(); got != 0 {
		t.Fatalf("Len() = %d after expiry", got)
	}
}

func TestStore_RefreshedEntrySurvivesStaleEviction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	store := NewStore(ctx, 10*time.Minute, WithClock(clock))
	store.Set(ctx, "standings-PL", "stale")
	staleStoredAt := now

	// A writer refreshes the entry after a reader has judged it expired
	// but before that reader's delete runs.
	mu.Lock()
	now = now.Add(10 * time.Minute)
	mu.Unlock()
	store.Set(ctx, "standings-PL", "fresh")

	store.evictIfUnchanged("standings-PL", staleStoredAt)

	value, ok := store.Get(ctx, "standings-PL")
	if !ok || value != "fresh" {
		t.Fatalf("refreshed entry lost: value = %v, ok = %v", value, ok)
	}
}

func TestStore_GetOrLoadSingleFlight(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore(ctx, time.Hour)

	var loads int32
	const workers = 10
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			value, err := store.GetOrLoad(ctx, "standings-PL", func(context.Context) (any, error) {
				atomic.AddInt32(&loads, 1)
				time.Sleep(10 * time.Millisecond)
				return 20, nil
			})
			if err != nil {
				t.Errorf("GetOrLoad: %v", err)
			}
			if value != 20 {
				t.Errorf("value = %v", value)
			}
		}()
	}

	close(start)
	wg.Wait()

	if got := atomic.LoadInt32(&loads); got != 1 {
		t.Fatalf("loader ran %d times, want 1", got)
	}
}

func TestStore_GetOrLoadErrorNotCached(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore(ctx, time.Hour)
	boom := errors.New("upstream down")

	if _, err := store.GetOrLoad(ctx, "standings-SA", func(context.Context) (any, error) {
		return nil, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}

	// A later load must run again and can succeed.
	value, err := store.GetOrLoad(ctx, "standings-SA", func(context.Context) (any, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("GetOrLoad after failure: %v", err)
	}
	if value != "ok" {
		t.Fatalf("value = %v", value)
	}
}

type memoryPersister struct {
	mu       sync.Mutex
	snapshot map[string]PersistedEntry
	saveErr  error
	loadErr  error
	saves    int
}

func (p *memoryPersister) Load(context.Context) (map[string]PersistedEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	out := make(map[string]PersistedEntry, len(p.snapshot))
	for k, v := range p.snapshot {
		out[k] = v
	}
	return out, nil
}

func (p *memoryPersister) Save(_ context.Context, snapshot map[string]PersistedEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveErr != nil {
		return p.saveErr
	}
	p.snapshot = snapshot
	p.saves++
	return nil
}

func decodeString(raw []byte) (any, error) {
	var s string
	if err := sonic.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func TestStore_PersistenceRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	persister := &memoryPersister{}

	store := NewStore(ctx, time.Hour, WithPersistence(persister, sonic.Marshal, decodeString))
	store.Set(ctx, "team-PL-64", "liverpool")
	store.Set(ctx, "team-PL-57", "arsenal")

	// A fresh store over the same persister restores the entries.
	restored := NewStore(ctx, time.Hour, WithPersistence(persister, sonic.Marshal, decodeString))
	value, ok := restored.Get(ctx, "team-PL-64")
	if !ok || value != "liverpool" {
		t.Fatalf("restored value = %v, ok = %v", value, ok)
	}
	if got := restored.Len(); got != 2 {
		t.Fatalf("restored Len() = %d", got)
	}
}

func TestStore_PersistenceSkipsExpiredEntries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	persister := &memoryPersister{
		snapshot: map[string]PersistedEntry{
			"stale": {Value: []byte(`"old"`), StoredAt: time.Now().Add(-2 * time.Hour)},
			"live":  {Value: []byte(`"new"`), StoredAt: time.Now()},
		},
	}

	store := NewStore(ctx, time.Hour, WithPersistence(persister, sonic.Marshal, decodeString))

	if _, ok := store.Get(ctx, "stale"); ok {
		t.Fatal("expired entry must not be restored")
	}
	if value, ok := store.Get(ctx, "live"); !ok || value != "new" {
		t.Fatalf("live entry = %v, ok = %v", value, ok)
	}
}

func TestStore_PersistenceFailuresAreSwallowed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	persister := &memoryPersister{saveErr: fmt.Errorf("disk full"), loadErr: fmt.Errorf("corrupt")}

	store := NewStore(ctx, time.Hour, WithPersistence(persister, sonic.Marshal, decodeString))
	store.Set(ctx, "key", "value")

	value, ok := store.Get(ctx, "key")
	if !ok || value != "value" {
		t.Fatalf("in-memory value survived = %v, ok = %v", value, ok)
	}
}

func TestStore_ClearSnapshotsEmptyState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	persister := &memoryPersister{}

	store := NewStore(ctx, time.Hour, WithPersistence(persister, sonic.Marshal, decodeString))
	store.Set(ctx, "key", "value")
	store.Clear(ctx)

	if got := store.Len(); got != 0 {
		t.Fatalf("Len() = %d after clear", got)
	}
	persister.mu.Lock()
	defer persister.mu.Unlock()
	if len(persister.snapshot) != 0 {
		t.Fatalf("persisted snapshot has %d entries after clear", len(persister.snapshot))
	}
}
