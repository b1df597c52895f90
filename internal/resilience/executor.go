package resilience

import (
	"context"
	"time"
)

// Executor runs provider requests through a per-provider sliding window and
// the retry policy. Every attempt, including retries, passes the window.
type Executor struct {
	provider string
	window   *SlidingWindow
	retry    RetryConfig
	breaker  *Breaker
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRetryConfig replaces the default provider retry policy.
func WithRetryConfig(cfg RetryConfig) ExecutorOption {
	return func(e *Executor) {
		if cfg.ShouldRetry == nil {
			cfg.ShouldRetry = IsRetryableStatus
		}
		cfg.Sleep = e.retry.Sleep
		cfg.OnRetry = e.retry.OnRetry
		e.retry = cfg
	}
}

// WithBreaker attaches a breaker. Breakers are off by default.
func WithBreaker(b *Breaker) ExecutorOption {
	return func(e *Executor) { e.breaker = b }
}

// WithOnRetry registers a callback invoked before each retry sleep.
func WithOnRetry(fn func(attempt int, err error)) ExecutorOption {
	return func(e *Executor) { e.retry.OnRetry = fn }
}

// WithClock injects the clock and sleeper used by both the window and the
// retry backoff.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) ExecutorOption {
	return func(e *Executor) {
		e.window.nowFunc = now
		e.window.sleep = sleep
		e.retry.Sleep = sleep
	}
}

// NewExecutor creates an Executor for provider with the given ceilings.
func NewExecutor(provider string, limits WindowLimits, opts ...ExecutorOption) *Executor {
	e := &Executor{
		provider: provider,
		window:   NewSlidingWindow(limits),
		retry:    ProviderRetryConfig(),
	}
	e.retry.OnRetry = RetryLogger(provider, "request")
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Provider returns the provider id the executor serves.
func (e *Executor) Provider() string {
	return e.provider
}

// Window exposes the executor's rate limit window.
func (e *Executor) Window() *SlidingWindow {
	return e.window
}

// Execute runs fn under the window and retry policy. The final error is
// returned unmodified.
func (e *Executor) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	return Do(ctx, e.retry, func(ctx context.Context) error {
		return e.attempt(ctx, fn)
	})
}

// ExecuteVal is Execute for functions that return a value.
func ExecuteVal[T any](ctx context.Context, e *Executor, fn func(ctx context.Context) (T, error)) (T, error) {
	return DoVal(ctx, e.retry, func(ctx context.Context) (T, error) {
		var val T
		err := e.attempt(ctx, func(ctx context.Context) error {
			var ferr error
			val, ferr = fn(ctx)
			return ferr
		})
		return val, err
	})
}

func (e *Executor) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := e.window.Wait(ctx); err != nil {
		return err
	}
	if e.breaker != nil {
		return e.breaker.Call(ctx, fn)
	}
	return fn(ctx)
}
