// Package scheduler runs the periodic OAuth token refresh sweep.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/jobsearch-cli/internal/config"
	"github.com/sells-group/jobsearch-cli/internal/metrics"
	"github.com/sells-group/jobsearch-cli/internal/model"
)

const (
	defaultSpec   = "@every 15m"
	defaultWindow = 30 * time.Minute
	defaultRate   = 5.0
	sweepLimit    = 500
)

// Connections is the connection manager surface the sweep drives.
type Connections interface {
	DueForRefresh(ctx context.Context, window time.Duration, limit int) ([]model.Connection, error)
	RefreshConnection(ctx context.Context, userID, connectionID string) (*model.Connection, error)
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Due       int   `json:"due"`
	Refreshed int   `json:"refreshed"`
	Failed    int   `json:"failed"`
	Expired   int64 `json:"expired"`
}

// Scheduler wraps robfig/cron and runs the refresh sweep on a schedule.
type Scheduler struct {
	cron    *cron.Cron
	conns   Connections
	metrics *metrics.Metrics
	spec    string
	window  time.Duration
	rate    float64
	nowFunc func() time.Time

	mu      sync.Mutex
	entryID cron.EntryID
	initial sync.WaitGroup
}

// New creates a Scheduler from cfg. Zero values select a 15 minute
// schedule, a 30 minute refresh window and 5 refreshes per second.
func New(conns Connections, cfg config.SchedulerConfig, m *metrics.Metrics) *Scheduler {
	s := &Scheduler{
		conns:   conns,
		metrics: m,
		spec:    cfg.RefreshSpec,
		window:  time.Duration(cfg.RefreshWindowMins) * time.Minute,
		rate:    cfg.UsersPerSecond,
		nowFunc: time.Now,
	}
	if s.spec == "" {
		s.spec = defaultSpec
	}
	if s.window <= 0 {
		s.window = defaultWindow
	}
	if s.rate <= 0 {
		s.rate = defaultRate
	}
	logger := cronLogger{log: zap.L().Sugar()}
	s.cron = cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	return s
}

// Start registers the sweep and starts the cron loop. One sweep also runs
// immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(s.spec, func() {
		if _, err := s.Sweep(ctx); err != nil {
			zap.L().Error("scheduler: sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return eris.Wrapf(err, "scheduler: add sweep %q", s.spec)
	}
	s.entryID = id
	s.cron.Start()
	zap.L().Info("scheduler: started", zap.String("spec", s.spec))

	s.initial.Add(1)
	go func() {
		defer s.initial.Done()
		if _, err := s.Sweep(ctx); err != nil {
			zap.L().Error("scheduler: initial sweep failed", zap.Error(err))
		}
	}()
	return nil
}

// Stop stops the cron loop and waits for running sweeps, including the
// initial one, to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.initial.Wait()
	zap.L().Info("scheduler: stopped")
}

// Next returns the next scheduled sweep time, or zero before Start.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Sweep refreshes every connection expiring within the window, paced by
// the rate limiter, then expires connections that cannot be refreshed.
// Individual refresh failures are counted, not returned.
func (s *Scheduler) Sweep(ctx context.Context) (*SweepResult, error) {
	due, err := s.conns.DueForRefresh(ctx, s.window, sweepLimit)
	if err != nil {
		return nil, eris.Wrap(err, "scheduler: load due connections")
	}

	res := &SweepResult{Due: len(due)}
	limiter := rate.NewLimiter(rate.Limit(s.rate), 1)
	for _, c := range due {
		if err := limiter.Wait(ctx); err != nil {
			return res, eris.Wrap(err, "scheduler: sweep interrupted")
		}
		_, err := s.conns.RefreshConnection(ctx, c.UserID, c.ID)
		s.metrics.ObserveRefresh(c.ProviderID, err)
		if err != nil {
			res.Failed++
			zap.L().Warn("scheduler: refresh failed",
				zap.String("connection_id", c.ID),
				zap.String("provider", c.ProviderID),
				zap.Error(err),
			)
			continue
		}
		res.Refreshed++
	}

	if res.Expired, err = s.conns.ExpireStale(ctx, s.nowFunc()); err != nil {
		return res, eris.Wrap(err, "scheduler: expire stale")
	}

	zap.L().Info("scheduler: sweep complete",
		zap.Int("due", res.Due),
		zap.Int("refreshed", res.Refreshed),
		zap.Int("failed", res.Failed),
		zap.Int64("expired", res.Expired),
	)
	return res, nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw("scheduler: cron "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw("scheduler: cron "+msg, append(keysAndValues, "error", err)...)
}
