// Package retry provides a configurable retry policy for blocking platform
// calls: a maximum attempt count, a fixed or exponential backoff between
// attempts, and a predicate deciding which errors are worth retrying.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
)

// =============================================================================
// Policy
// =============================================================================

// Strategy selects how the wait between attempts grows.
type Strategy string

const (
	StrategyFixed       Strategy = "fixed"
	StrategyExponential Strategy = "exponential"
)

const (
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMaxInterval     = 10 * time.Second
)

// Policy describes how an operation is retried. The zero value behaves like
// a single attempt with no waiting.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// Strategy selects fixed or exponential backoff. Defaults to fixed.
	Strategy Strategy

	// InitialInterval is the wait after the first failure.
	InitialInterval time.Duration

	// MaxInterval caps the exponential backoff.
	MaxInterval time.Duration

	// Retryable reports whether an error is transient. A nil predicate
	// retries every error.
	Retryable func(error) bool
}

// None returns a single-attempt policy.
func None() *Policy {
	return &Policy{MaxAttempts: 1}
}

// =============================================================================
// Execution
// =============================================================================

// Do runs fn until it succeeds, the attempt budget is exhausted, the error is
// not retryable, or ctx is cancelled. The last error is returned wrapped with
// the operation name.
func (p *Policy) Do(ctx context.Context, op string, fn func() error) error {
	if p == nil {
		return fn()
	}

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	b := p.newBackoff()
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			wait := b.Duration()
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: %w", op, ctx.Err())
			case <-time.After(wait):
			}
		}

		if err = fn(); err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return fmt.Errorf("%s: %w", op, err)
		}
		if ctx.Err() != nil {
			break
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, err)
}

// newBackoff builds the wait generator for one Do call. The generator is
// stateful, so each invocation gets its own.
func (p *Policy) newBackoff() *backoff.Backoff {
	initial := p.InitialInterval
	if initial <= 0 {
		initial = DefaultInitialInterval
	}
	max := p.MaxInterval
	if max < initial {
		max = DefaultMaxInterval
	}
	if max < initial {
		max = initial
	}

	factor := 1.0
	if p.Strategy == StrategyExponential {
		factor = 2.0
	}

	return &backoff.Backoff{
		Min:    initial,
		Max:    max,
		Factor: factor,
		Jitter: false,
	}
}
