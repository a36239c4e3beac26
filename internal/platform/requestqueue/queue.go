package requestqueue

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andryanduta/predikta/internal/platform/logging"
)

var (
	// ErrRateLimited marks an operation failure caused by an upstream
	// "too many requests" response. Operations wrap it so the queue knows
	// to retry in place instead of advancing.
	ErrRateLimited = errors.New("rate limited by upstream")

	// ErrRateLimitExceeded is returned by Submit once retries are exhausted.
	ErrRateLimitExceeded = errors.New("rate limit retries exhausted")

	ErrQueueClosed = errors.New("request queue is closed")
)

// Operation is a unit of upstream work processed by the queue.
type Operation func(ctx context.Context) (any, error)

type Config struct {
	// RequestDelay is the minimum gap between the starts of two
	// consecutive operations.
	RequestDelay time.Duration
	// MaxAttempts bounds executions of a single operation, retries included.
	MaxAttempts int
	// BaseRetryWait is doubled each retry attempt before jitter is added.
	BaseRetryWait time.Duration
	// MaxJitter bounds the random extra wait per retry.
	MaxJitter time.Duration
	// MaxRequestDelay caps the adaptive delay growth.
	MaxRequestDelay time.Duration
	// AdaptAfter is how many consecutive rate-limit hits trigger a
	// permanent RequestDelay bump.
	AdaptAfter int
	// DelayStep is the size of one adaptive bump.
	DelayStep time.Duration
}

func (c Config) withDefaults() Config {
	if c.RequestDelay <= 0 {
		c.RequestDelay = 2 * time.Second
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 5
	}
	if c.BaseRetryWait <= 0 {
		c.BaseRetryWait = 1500 * time.Millisecond
	}
	if c.MaxJitter < 0 {
		c.MaxJitter = 0
	} else if c.MaxJitter == 0 {
		c.MaxJitter = time.Second
	}
	if c.MaxRequestDelay <= 0 {
		c.MaxRequestDelay = 5 * time.Second
	}
	if c.AdaptAfter < 1 {
		c.AdaptAfter = 3
	}
	if c.DelayStep <= 0 {
		c.DelayStep = 500 * time.Millisecond
	}
	return c
}

type job struct {
	ctx    context.Context
	op     Operation
	result chan outcome
}

type outcome struct {
	value any
	err   error
}

// Queue serializes upstream calls through a single worker. Submissions run
// strictly FIFO, at most one in flight, with a minimum delay between the
// starts of consecutive operations. Rate-limited operations are retried in
// place with exponential backoff plus jitter; the queue never advances past
// an operation that is still retrying.
type Queue struct {
	cfg    Config
	logger *logging.Logger

	jobs    chan *job
	pending atomic.Int64
	delay   atomic.Int64 // current RequestDelay in nanoseconds

	closeOnce sync.Once
	closed    chan struct{}
	drained   chan struct{}

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

type Option func(*Queue)

// WithSleeper overrides how the worker waits. Tests inject a fake to avoid
// real time passing.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(q *Queue) {
		if sleep != nil {
			q.sleep = sleep
		}
	}
}

// WithJitter overrides the retry jitter source.
func WithJitter(jitter func() time.Duration) Option {
	return func(q *Queue) {
		if jitter != nil {
			q.jitter = jitter
		}
	}
}

func New(cfg Config, logger *logging.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = logging.Default()
	}
	cfg = cfg.withDefaults()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var rngMu sync.Mutex

	q := &Queue{
		cfg:     cfg,
		logger:  logger,
		jobs:    make(chan *job, 1024),
		closed:  make(chan struct{}),
		drained: make(chan struct{}),
		sleep:   sleepContext,
		jitter: func() time.Duration {
			if cfg.MaxJitter <= 0 {
				return 0
			}
			rngMu.Lock()
			defer rngMu.Unlock()
			return time.Duration(rng.Int63n(int64(cfg.MaxJitter)))
		},
	}
	q.delay.Store(int64(cfg.RequestDelay))

	for _, opt := range opts {
		opt(q)
	}

	go q.run()
	return q
}

// Submit enqueues op and blocks until it completes, fails terminally, or
// exhausts its retries. A submitted operation always runs to resolution
// even if the caller gives up waiting.
func (q *Queue) Submit(ctx context.Context, op Operation) (any, error) {
	if op == nil {
		return nil, fmt.Errorf("operation is required")
	}

	j := &job{ctx: ctx, op: op, result: make(chan outcome, 1)}
	q.pending.Add(1)

	select {
	case q.jobs <- j:
	case <-q.closed:
		q.pending.Add(-1)
		return nil, ErrQueueClosed
	case <-ctx.Done():
		q.pending.Add(-1)
		return nil, ctx.Err()
	}

	select {
	case out := <-j.result:
		return out.value, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len reports how many submitted operations have not started yet.
func (q *Queue) Len() int {
	return int(q.pending.Load())
}

// RequestDelay reports the current (possibly adapted) inter-request delay.
func (q *Queue) RequestDelay() time.Duration {
	return time.Duration(q.delay.Load())
}

// Close stops the worker after the current operation resolves. Queued but
// unstarted operations fail with ErrQueueClosed.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.closed)
	})
	<-q.drained
}

func (q *Queue) run() {
	defer close(q.drained)

	var lastStart time.Time
	consecutiveRateLimits := 0

	for {
		select {
		case <-q.closed:
			q.failPending()
			return
		case j := <-q.jobs:
			q.pending.Add(-1)

			if wait := q.RequestDelay() - time.Since(lastStart); !lastStart.IsZero() && wait > 0 {
				if err := q.sleep(j.ctx, wait); err != nil {
					j.result <- outcome{err: err}
					continue
				}
			}
			lastStart = time.Now()

			j.result <- q.execute(j, &consecutiveRateLimits)
		}
	}
}

func (q *Queue) failPending() {
	for {
		select {
		case j := <-q.jobs:
			q.pending.Add(-1)
			j.result <- outcome{err: ErrQueueClosed}
		default:
			return
		}
	}
}

func (q *Queue) execute(j *job, consecutiveRateLimits *int) outcome {
	for attempt := 1; ; attempt++ {
		value, err := j.op(j.ctx)
		if err == nil {
			*consecutiveRateLimits = 0
			return outcome{value: value}
		}
		if !errors.Is(err, ErrRateLimited) {
			return outcome{err: err}
		}

		*consecutiveRateLimits++
		if attempt >= q.cfg.MaxAttempts {
			return outcome{err: fmt.Errorf("%w: gave up after %d attempts: %v", ErrRateLimitExceeded, attempt, err)}
		}

		// Repeated 429s mean the provider wants us slower for good.
		if *consecutiveRateLimits > q.cfg.AdaptAfter {
			bumped := min(q.RequestDelay()+q.cfg.DelayStep, q.cfg.MaxRequestDelay)
			if bumped != q.RequestDelay() {
				q.delay.Store(int64(bumped))
				q.logger.WarnContext(j.ctx, "request delay increased after repeated rate limits",
					"request_delay", bumped,
					"consecutive_rate_limits", *consecutiveRateLimits,
				)
			}
		}

		wait := q.cfg.BaseRetryWait*(1<<attempt) + q.jitter()
		q.logger.WarnContext(j.ctx, "rate limited, retrying in place",
			"attempt", attempt,
			"max_attempts", q.cfg.MaxAttempts,
			"wait", wait,
		)
		if sleepErr := q.sleep(j.ctx, wait); sleepErr != nil {
			return outcome{err: sleepErr}
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
