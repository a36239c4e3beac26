package requestqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/andryanduta/predikta/internal/platform/logging"
)

type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sleeps = append(r.sleeps, d)
	return nil
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.sleeps))
	copy(out, r.sleeps)
	return out
}

func newTestQueue(t *testing.T, cfg Config, rec *sleepRecorder) *Queue {
	t.Helper()
	opts := []Option{WithJitter(func() time.Duration { return 0 })}
	if rec != nil {
		opts = append(opts, WithSleeper(rec.sleep))
	} else {
		opts = append(opts, WithSleeper(func(context.Context, time.Duration) error { return nil }))
	}
	q := New(cfg, logging.NewNop(), opts...)
	t.Cleanup(q.Close)
	return q
}

func TestSubmit_ReturnsOperationResult(t *testing.T) {
	q := newTestQueue(t, Config{}, nil)

	value, err := q.Submit(context.Background(), func(context.Context) (any, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if value != 42 {
		t.Fatalf("value = %v", value)
	}
}

func TestSubmit_FIFOOrder(t *testing.T) {
	q := newTestQueue(t, Config{RequestDelay: time.Millisecond}, nil)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 1; i <= 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Stagger submissions so enqueue order is deterministic.
			time.Sleep(time.Duration(i) * 20 * time.Millisecond)
			_, _ = q.Submit(context.Background(), func(context.Context) (any, error) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil, nil
			})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i, got := range order {
		if got != i+1 {
			t.Fatalf("order = %v, want ascending", order)
		}
	}
}

func TestSubmit_EnforcesDelayBetweenStarts(t *testing.T) {
	rec := &sleepRecorder{}
	q := newTestQueue(t, Config{RequestDelay: time.Second}, rec)

	op := func(context.Context) (any, error) { return nil, nil }

	if _, err := q.Submit(context.Background(), op); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	// The first operation starts immediately.
	if sleeps := rec.recorded(); len(sleeps) != 0 {
		t.Fatalf("sleeps after first op = %v, want none", sleeps)
	}

	if _, err := q.Submit(context.Background(), op); err != nil {
		t.Fatalf("second submit: %v", err)
	}

	// The second start waits out the remainder of the 1s gap; the first
	// op finished near-instantly, so the wait is just shy of the full delay.
	sleeps := rec.recorded()
	if len(sleeps) != 1 {
		t.Fatalf("sleeps = %v, want exactly one gap wait", sleeps)
	}
	if sleeps[0] <= 900*time.Millisecond || sleeps[0] > time.Second {
		t.Fatalf("gap wait = %v, want in (900ms, 1s]", sleeps[0])
	}
}

func TestSubmit_TerminalErrorNotRetried(t *testing.T) {
	q := newTestQueue(t, Config{}, nil)

	calls := 0
	boom := errors.New("bad request")
	_, err := q.Submit(context.Background(), func(context.Context) (any, error) {
		calls++
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestSubmit_RateLimitRetriedInPlace(t *testing.T) {
	rec := &sleepRecorder{}
	q := newTestQueue(t, Config{BaseRetryWait: 100 * time.Millisecond}, rec)

	calls := 0
	value, err := q.Submit(context.Background(), func(context.Context) (any, error) {
		calls++
		if calls < 3 {
			return nil, fmt.Errorf("%w: status=429", ErrRateLimited)
		}
		return "recovered", nil
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if value != "recovered" {
		t.Fatalf("value = %v", value)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}

	// Backoff doubles per attempt: base*2, base*4.
	sleeps := rec.recorded()
	if len(sleeps) != 2 {
		t.Fatalf("sleeps = %v, want 2 retry waits", sleeps)
	}
	if sleeps[0] != 200*time.Millisecond || sleeps[1] != 400*time.Millisecond {
		t.Fatalf("backoff = %v", sleeps)
	}
}

func TestSubmit_RateLimitRetriesExhausted(t *testing.T) {
	q := newTestQueue(t, Config{MaxAttempts: 3}, &sleepRecorder{})

	calls := 0
	_, err := q.Submit(context.Background(), func(context.Context) (any, error) {
		calls++
		return nil, fmt.Errorf("%w: status=429", ErrRateLimited)
	})
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("err = %v, want ErrRateLimitExceeded", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestSubmit_AdaptiveDelayBump(t *testing.T) {
	cfg := Config{
		RequestDelay:    time.Second,
		MaxAttempts:     10,
		AdaptAfter:      2,
		DelayStep:       500 * time.Millisecond,
		MaxRequestDelay: 2 * time.Second,
	}
	q := newTestQueue(t, cfg, &sleepRecorder{})

	calls := 0
	_, err := q.Submit(context.Background(), func(context.Context) (any, error) {
		calls++
		if calls < 5 {
			return nil, fmt.Errorf("%w: status=429", ErrRateLimited)
		}
		return nil, nil
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// The 3rd and 4th consecutive rate limits each bump the delay, but
	// growth is capped at MaxRequestDelay.
	if got := q.RequestDelay(); got != 2*time.Second {
		t.Fatalf("RequestDelay() = %v, want 2s", got)
	}
}

func TestSubmit_AfterCloseFails(t *testing.T) {
	q := New(Config{}, logging.NewNop(),
		WithSleeper(func(context.Context, time.Duration) error { return nil }),
		WithJitter(func() time.Duration { return 0 }),
	)
	q.Close()

	if _, err := q.Submit(context.Background(), func(context.Context) (any, error) {
		return nil, nil
	}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
}

func TestSubmit_CanceledContext(t *testing.T) {
	q := newTestQueue(t, Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := q.Submit(ctx, func(ctx context.Context) (any, error) {
		return nil, ctx.Err()
	}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestLen_CountsUnstartedWork(t *testing.T) {
	q := newTestQueue(t, Config{}, nil)

	if got := q.Len(); got != 0 {
		t.Fatalf("Len() = %d on idle queue", got)
	}
}
