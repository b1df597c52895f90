package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream")

func failCalls(b *Breaker, n int) {
	for range n {
		_ = b.Call(context.Background(), func(context.Context) error { return errUpstream })
	}
}

func okCall(context.Context) error { return nil }

func TestBreaker_ClosedPassesThrough(t *testing.T) {
	b := NewBreaker("reed", BreakerConfig{})

	var calls int
	err := b.Call(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker("reed", BreakerConfig{Threshold: 3, Cooldown: time.Minute})

	failCalls(b, 2)
	require.NoError(t, b.Call(context.Background(), okCall))
	failCalls(b, 2)
	assert.Equal(t, StateClosed, b.State(), "a success resets the streak")

	failCalls(b, 1)
	assert.Equal(t, StateOpen, b.State())

	err := b.Call(context.Background(), func(context.Context) error {
		t.Error("provider called while open")
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreaker_ProbeClosesAfterCooldown(t *testing.T) {
	clock := newFakeClock()
	var moves []string
	b := NewBreaker("seek", BreakerConfig{
		Threshold: 1,
		Cooldown:  30 * time.Second,
		OnChange: func(provider string, from, to BreakerState) {
			assert.Equal(t, "seek", provider)
			moves = append(moves, from.String()+">"+to.String())
		},
	})
	b.now = clock.Now

	failCalls(b, 1)
	clock.Advance(29 * time.Second)
	assert.Equal(t, StateOpen, b.State())

	clock.Advance(time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Call(context.Background(), okCall))
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>closed"}, moves)
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	clock := newFakeClock()
	b := NewBreaker("seek", BreakerConfig{Threshold: 1, Cooldown: time.Second})
	b.now = clock.Now

	failCalls(b, 1)
	clock.Advance(2 * time.Second)
	failCalls(b, 1)
	assert.Equal(t, StateOpen, b.State())

	clock.Advance(500 * time.Millisecond)
	assert.ErrorIs(t, b.Call(context.Background(), okCall), ErrCircuitOpen, "cooldown restarts on a failed probe")
}

func TestBreaker_SingleProbeInFlight(t *testing.T) {
	clock := newFakeClock()
	b := NewBreaker("dice", BreakerConfig{Threshold: 1, Cooldown: time.Second})
	b.now = clock.Now
	failCalls(b, 1)
	clock.Advance(time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Call(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	assert.ErrorIs(t, b.Call(context.Background(), okCall), ErrCircuitOpen)
	close(release)
	wg.Wait()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_RequiresConfiguredProbes(t *testing.T) {
	clock := newFakeClock()
	b := NewBreaker("dice", BreakerConfig{Threshold: 1, Cooldown: time.Second, Probes: 2})
	b.now = clock.Now
	failCalls(b, 1)
	clock.Advance(time.Second)

	require.NoError(t, b.Call(context.Background(), okCall))
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Call(context.Background(), okCall))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_CountsFilter(t *testing.T) {
	b := NewBreaker("naukri", BreakerConfig{Threshold: 1, Counts: IsRetryableStatus})

	_ = b.Call(context.Background(), func(context.Context) error { return &statusErr{code: 404} })
	assert.Equal(t, StateClosed, b.State())

	_ = b.Call(context.Background(), func(context.Context) error { return &statusErr{code: 503} })
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_Reset(t *testing.T) {
	var moves int
	b := NewBreaker("naukri", BreakerConfig{Threshold: 1, OnChange: func(string, BreakerState, BreakerState) { moves++ }})
	failCalls(b, 1)
	b.Reset()
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 2, moves)
}

func TestBreakerSettings(t *testing.T) {
	cfg := BreakerSettings(8, 45)
	assert.Equal(t, 8, cfg.Threshold)
	assert.Equal(t, 45*time.Second, cfg.Cooldown)
	assert.Equal(t, 1, cfg.Probes)

	def := BreakerSettings(0, -1)
	assert.Equal(t, 5, def.Threshold)
	assert.Equal(t, 30*time.Second, def.Cooldown)
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(9).String())
}
