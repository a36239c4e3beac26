package resilience

import "time"

const (
	defaultFailureThreshold = 5
	defaultOpenTimeout      = 15 * time.Second
	defaultHalfOpenMaxReq   = 2
)

// CircuitBreakerConfig tunes a CircuitBreaker. Zero or out-of-range
// fields fall back to defaults. Enabled is advisory: the breaker itself
// is always live, callers consult the flag to decide whether to route
// through it.
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	OpenTimeout      time.Duration
	HalfOpenMaxReq   int
}

func (c CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	if c.FailureThreshold < 1 {
		c.FailureThreshold = defaultFailureThreshold
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = defaultOpenTimeout
	}
	if c.HalfOpenMaxReq < 1 {
		c.HalfOpenMaxReq = defaultHalfOpenMaxReq
	}
	return c
}

// NewBreaker builds a breaker from the config with defaults applied.
func (c CircuitBreakerConfig) NewBreaker() *CircuitBreaker {
	c = c.withDefaults()
	return &CircuitBreaker{
		failureThreshold: c.FailureThreshold,
		openTimeout:      c.OpenTimeout,
		halfOpenMaxReq:   c.HalfOpenMaxReq,
		state:            CircuitStateClosed,
		clock:            time.Now,
	}
}
