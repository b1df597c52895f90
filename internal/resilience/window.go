package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// WindowLimits is a pair of request ceilings. Zero disables a ceiling.
type WindowLimits struct {
	PerMinute int `json:"per_minute" yaml:"per_minute"`
	PerHour   int `json:"per_hour" yaml:"per_hour"`
}

// DefaultWindowLimits applies to providers that do not declare their own.
var DefaultWindowLimits = WindowLimits{PerMinute: 60, PerHour: 1000}

// Override returns l with any positive field of o replacing its counterpart.
func (l WindowLimits) Override(o WindowLimits) WindowLimits {
	if o.PerMinute > 0 {
		l.PerMinute = o.PerMinute
	}
	if o.PerHour > 0 {
		l.PerHour = o.PerHour
	}
	return l
}

// SlidingWindow is a timestamp-log limiter over one-minute and one-hour
// windows. One window belongs to one provider client; it is safe for
// concurrent use by searches of different users.
type SlidingWindow struct {
	limits WindowLimits

	mu  sync.Mutex
	log []time.Time

	// nowFunc and sleep allow test injection of time.
	nowFunc func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewSlidingWindow creates a window enforcing limits.
func NewSlidingWindow(limits WindowLimits) *SlidingWindow {
	return &SlidingWindow{
		limits:  limits,
		nowFunc: time.Now,
		sleep:   SleepContext,
	}
}

// Limits returns the configured ceilings.
func (w *SlidingWindow) Limits() WindowLimits {
	return w.limits
}

// Wait blocks until a request fits under both ceilings, then records it.
func (w *SlidingWindow) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "resilience: rate limit wait")
	}
	for {
		w.mu.Lock()
		now := w.nowFunc()
		w.prune(now)
		delay := w.delay(now)
		if delay <= 0 {
			w.log = append(w.log, now)
			w.mu.Unlock()
			return nil
		}
		w.mu.Unlock()

		if err := w.sleep(ctx, delay); err != nil {
			return eris.Wrap(err, "resilience: rate limit wait")
		}
	}
}

// Len returns the number of requests recorded within the last hour.
func (w *SlidingWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(w.nowFunc())
	return len(w.log)
}

// prune drops entries at least one hour old. Caller holds mu.
func (w *SlidingWindow) prune(now time.Time) {
	cut := 0
	for cut < len(w.log) && now.Sub(w.log[cut]) >= time.Hour {
		cut++
	}
	if cut > 0 {
		w.log = append(w.log[:0], w.log[cut:]...)
	}
}

// delay returns how long until the oldest entry holding a full window ages
// out, or zero when neither ceiling is reached. Caller holds mu.
func (w *SlidingWindow) delay(now time.Time) time.Duration {
	var wait time.Duration

	if w.limits.PerMinute > 0 {
		first := len(w.log)
		for i, ts := range w.log {
			if now.Sub(ts) < time.Minute {
				first = i
				break
			}
		}
		if len(w.log)-first >= w.limits.PerMinute {
			wait = w.log[first].Add(time.Minute).Sub(now)
		}
	}

	if w.limits.PerHour > 0 && len(w.log) >= w.limits.PerHour {
		if d := w.log[0].Add(time.Hour).Sub(now); d > wait {
			wait = d
		}
	}

	return wait
}
