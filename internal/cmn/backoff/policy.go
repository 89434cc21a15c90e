package backoff

import (
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// ErrRetriesExhausted is returned by a policy once no further attempt is allowed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryPolicy computes the wait before the next attempt.
type RetryPolicy interface {
	// ComputeNextInterval returns the duration to wait before retry number
	// retryCount, or ErrRetriesExhausted.
	ComputeNextInterval(retryCount int, err error) (time.Duration, error)
}

const defaultMaxInterval = 10 * time.Second

// ExponentialBackoffPolicy multiplies the interval by BackoffFactor after each retry.
type ExponentialBackoffPolicy struct {
	InitialInterval time.Duration
	BackoffFactor   float64
	MaxInterval     time.Duration
	// MaxRetries of 0 means unlimited.
	MaxRetries int
}

// NewExponentialBackoffPolicy returns a doubling policy capped at 10s.
func NewExponentialBackoffPolicy(initialInterval time.Duration) *ExponentialBackoffPolicy {
	return &ExponentialBackoffPolicy{
		InitialInterval: initialInterval,
		BackoffFactor:   2.0,
		MaxInterval:     defaultMaxInterval,
	}
}

func (p *ExponentialBackoffPolicy) ComputeNextInterval(retryCount int, _ error) (time.Duration, error) {
	if p.MaxRetries > 0 && retryCount >= p.MaxRetries {
		return 0, ErrRetriesExhausted
	}
	interval := float64(p.InitialInterval) * math.Pow(p.BackoffFactor, float64(retryCount))
	if p.MaxInterval > 0 && interval > float64(p.MaxInterval) {
		interval = float64(p.MaxInterval)
	}
	return time.Duration(interval), nil
}

// ConstantBackoffPolicy waits the same interval between every attempt.
type ConstantBackoffPolicy struct {
	Interval   time.Duration
	MaxRetries int
}

// NewConstantBackoffPolicy returns an unlimited constant policy.
func NewConstantBackoffPolicy(interval time.Duration) *ConstantBackoffPolicy {
	return &ConstantBackoffPolicy{Interval: interval}
}

func (p *ConstantBackoffPolicy) ComputeNextInterval(retryCount int, _ error) (time.Duration, error) {
	if p.MaxRetries > 0 && retryCount >= p.MaxRetries {
		return 0, ErrRetriesExhausted
	}
	return p.Interval, nil
}

// JitterFunc randomizes an interval.
type JitterFunc func(time.Duration) time.Duration

// FullJitter picks a uniformly random interval in [0, d].
func FullJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(d) + 1))
}

type jitterPolicy struct {
	base   RetryPolicy
	jitter JitterFunc
}

// WithJitter wraps base so every computed interval passes through jitter.
func WithJitter(base RetryPolicy, jitter JitterFunc) RetryPolicy {
	return &jitterPolicy{base: base, jitter: jitter}
}

func (p *jitterPolicy) ComputeNextInterval(retryCount int, err error) (time.Duration, error) {
	d, computeErr := p.base.ComputeNextInterval(retryCount, err)
	if computeErr != nil {
		return 0, computeErr
	}
	return p.jitter(d), nil
}
