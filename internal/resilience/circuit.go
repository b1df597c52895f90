// Package resilience provides rate limiting, retry and circuit breaking for
// job board API calls.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// BreakerState is the position of a provider breaker. The numeric values are
// exported as the circuit state gauge.
type BreakerState int

const (
	// StateClosed lets every request through.
	StateClosed BreakerState = iota
	// StateOpen rejects requests until the cooldown elapses.
	StateOpen
	// StateHalfOpen admits one probe request at a time.
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrCircuitOpen is returned without calling the provider while its breaker
// is open, or while a half-open probe is already in flight.
var ErrCircuitOpen = eris.New("resilience: provider circuit open")

// BreakerConfig holds the trip and recovery settings of one breaker.
type BreakerConfig struct {
	// Threshold is the number of consecutive counted failures that opens
	// the breaker.
	Threshold int
	// Cooldown is how long an open breaker rejects before it allows a probe.
	Cooldown time.Duration
	// Probes is the number of successful probes that close it again.
	Probes int
	// Counts reports whether an error counts as a failure. Errors it
	// rejects leave the failure streak untouched. Nil counts every error.
	Counts func(err error) bool
	// OnChange observes every transition.
	OnChange func(provider string, from, to BreakerState)
}

const (
	defaultThreshold = 5
	defaultCooldown  = 30 * time.Second
)

// BreakerSettings converts config values to a BreakerConfig. Non-positive
// values keep the defaults of five failures and thirty seconds.
func BreakerSettings(threshold, cooldownSecs int) BreakerConfig {
	cfg := BreakerConfig{Threshold: defaultThreshold, Cooldown: defaultCooldown, Probes: 1}
	if threshold > 0 {
		cfg.Threshold = threshold
	}
	if cooldownSecs > 0 {
		cfg.Cooldown = time.Duration(cooldownSecs) * time.Second
	}
	return cfg
}

// Breaker stops calling a provider that keeps failing. It is safe for
// concurrent use.
type Breaker struct {
	provider string
	cfg      BreakerConfig

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	passed   int
	probing  bool

	now func() time.Time
}

// NewBreaker creates a closed breaker for provider.
func NewBreaker(provider string, cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaultThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 1
	}
	if cfg.Counts == nil {
		cfg.Counts = func(err error) bool { return err != nil }
	}
	return &Breaker{provider: provider, cfg: cfg, now: time.Now}
}

// Call runs fn unless the breaker rejects it, then records the outcome.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}
	err = fn(ctx)
	b.record(probe, err)
	return err
}

// State reports the breaker position. An open breaker whose cooldown has
// elapsed reads as half-open even before a probe arrives.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.cooled() {
		return StateHalfOpen
	}
	return b.state
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures, b.passed, b.probing = 0, 0, false
	b.moveTo(StateClosed)
}

func (b *Breaker) cooled() bool {
	return b.now().Sub(b.openedAt) >= b.cfg.Cooldown
}

// admit decides whether a call may proceed and whether it is a probe.
func (b *Breaker) admit() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if !b.cooled() {
			return false, ErrCircuitOpen
		}
		b.moveTo(StateHalfOpen)
	}
	if b.state == StateHalfOpen {
		if b.probing {
			return false, ErrCircuitOpen
		}
		b.probing = true
		return true, nil
	}
	return false, nil
}

func (b *Breaker) record(probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.probing = false
	}
	failed := err != nil && b.cfg.Counts(err)

	switch {
	case !failed && b.state == StateHalfOpen:
		b.passed++
		if b.passed >= b.cfg.Probes {
			b.failures, b.passed = 0, 0
			b.moveTo(StateClosed)
		}
	case !failed:
		b.failures = 0
	case b.state == StateHalfOpen:
		b.trip()
	default:
		b.failures++
		if b.failures >= b.cfg.Threshold {
			b.trip()
		}
	}
}

func (b *Breaker) trip() {
	b.openedAt = b.now()
	b.passed = 0
	b.moveTo(StateOpen)
}

func (b *Breaker) moveTo(to BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.cfg.OnChange != nil {
		b.cfg.OnChange(b.provider, from, to)
	}
}
