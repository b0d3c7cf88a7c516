package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")
var errFatal = errors.New("fatal")

func fastPolicy(maxAttempts int) *Policy {
	return &Policy{
		MaxAttempts:     maxAttempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), "op", func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), "op", func() error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), "push demo", func() error {
		calls++
		return errTransient
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, errTransient)
	assert.Contains(t, err.Error(), "push demo")
}

func TestDo_StopsOnNonRetryableError(t *testing.T) {
	p := fastPolicy(5)
	p.Retryable = func(err error) bool { return !errors.Is(err, errFatal) }

	calls := 0
	err := p.Do(context.Background(), "op", func() error {
		calls++
		return errFatal
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, errFatal)
}

func TestDo_StopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := &Policy{MaxAttempts: 10, InitialInterval: time.Minute}
	calls := 0
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, "op", func() error {
			calls++
			close(started)
			return errTransient
		})
	}()

	<-started
	cancel()
	select {
	case err := <-done:
		// Cancellation lands either during the backoff sleep or right after
		// the attempt; both must abort without further attempts.
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
	assert.Equal(t, 1, calls)
}

func TestDo_NilPolicyRunsOnce(t *testing.T) {
	var p *Policy
	calls := 0
	err := p.Do(context.Background(), "op", func() error {
		calls++
		return errTransient
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ZeroValueRunsOnce(t *testing.T) {
	var p Policy
	calls := 0
	err := p.Do(context.Background(), "op", func() error {
		calls++
		return errTransient
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestNone_SingleAttempt(t *testing.T) {
	calls := 0
	err := None().Do(context.Background(), "op", func() error {
		calls++
		return errTransient
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestNewBackoff_FixedStrategy(t *testing.T) {
	p := &Policy{
		Strategy:        StrategyFixed,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
	}
	b := p.newBackoff()
	assert.Equal(t, 100*time.Millisecond, b.Duration())
	assert.Equal(t, 100*time.Millisecond, b.Duration())
	assert.Equal(t, 100*time.Millisecond, b.Duration())
}

func TestNewBackoff_ExponentialStrategy(t *testing.T) {
	p := &Policy{
		Strategy:        StrategyExponential,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
	}
	b := p.newBackoff()
	assert.Equal(t, 100*time.Millisecond, b.Duration())
	assert.Equal(t, 200*time.Millisecond, b.Duration())
	assert.Equal(t, 400*time.Millisecond, b.Duration())
}
