package resilience

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

// RetryConfig is the backoff policy applied to provider requests.
type RetryConfig struct {
	// MaxAttempts counts the first try. 1 disables retries.
	MaxAttempts int
	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps every wait, including provider Retry-After hints.
	MaxBackoff time.Duration
	// Multiplier grows the wait after each retry.
	Multiplier float64
	// ShouldRetry classifies errors. Nil means IsRetryableStatus.
	ShouldRetry func(err error) bool
	// OnRetry is called before each wait with the 1-based retry number.
	OnRetry func(attempt int, err error)
	// Sleep waits between attempts and must fail once ctx ends.
	// Nil means SleepContext.
	Sleep func(ctx context.Context, d time.Duration) error
}

// ProviderRetryConfig is the job board policy: three retries after the first
// attempt, waiting 1s, 2s, then 4s, never more than 10s.
func ProviderRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    4,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2,
		ShouldRetry:    IsRetryableStatus,
	}
}

// FromRetryConfig builds a provider policy from config values. maxRetries
// counts retries after the first attempt; other non-positive values keep the
// provider defaults.
func FromRetryConfig(maxRetries, initialBackoffMs, maxBackoffMs int, multiplier float64) RetryConfig {
	cfg := ProviderRetryConfig()
	if maxRetries >= 0 {
		cfg.MaxAttempts = maxRetries + 1
	}
	if initialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}
	if multiplier > 0 {
		cfg.Multiplier = multiplier
	}
	return cfg
}

func (c RetryConfig) normalized() RetryConfig {
	def := ProviderRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = def.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = def.MaxBackoff
	}
	if c.Multiplier <= 0 {
		c.Multiplier = def.Multiplier
	}
	if c.ShouldRetry == nil {
		c.ShouldRetry = IsRetryableStatus
	}
	if c.Sleep == nil {
		c.Sleep = SleepContext
	}
	return c
}

// wait is the delay before retry n (1-based). A provider Retry-After hint
// replaces a shorter computed delay; MaxBackoff bounds both.
func (c RetryConfig) wait(n int, err error) time.Duration {
	d := time.Duration(float64(c.InitialBackoff) * math.Pow(c.Multiplier, float64(n-1)))
	if hint := retryHint(err); hint > d {
		d = hint
	}
	if d > c.MaxBackoff || d < 0 {
		d = c.MaxBackoff
	}
	return d
}

// Do runs fn until it succeeds, returns an error the policy does not retry,
// or attempts run out. The last error is returned unmodified. A cancelled
// context ends the loop without another attempt.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for functions that return a value.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.normalized()

	var zero T
	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		switch {
		case err == nil:
			return val, nil
		case attempt >= cfg.MaxAttempts, ctx.Err() != nil, !cfg.ShouldRetry(err):
			return zero, err
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}
		if cfg.Sleep(ctx, cfg.wait(attempt, err)) != nil {
			return zero, err
		}
	}
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryLogger returns an OnRetry callback that logs each retry of a
// provider operation.
func RetryLogger(provider, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("resilience: retrying provider request",
			zap.String("provider", provider),
			zap.String("operation", operation),
			zap.Int("retry", attempt),
			zap.Error(err),
		)
	}
}
