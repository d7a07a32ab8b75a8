package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/tevino/abool/v2"

	"github.com/randalmurphal/calc/pkg/calc/observability"
)

// Sweeper periodically deletes sessions that have been idle longer than a TTL.
type Sweeper struct {
	store     Store
	ttl       time.Duration
	interval  time.Duration
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	now       func() time.Time
	running   *abool.AtomicBool
	scheduler gocron.Scheduler
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepLogger sets the logger. Default: slog.Default().
func WithSweepLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSweepMetrics sets the metrics recorder. Default: no-op.
func WithSweepMetrics(m observability.MetricsRecorder) SweeperOption {
	return func(s *Sweeper) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithSweepClock overrides the time source used by scheduled sweeps.
func WithSweepClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSweeper creates a sweeper that removes sessions idle for longer than ttl,
// checking every interval once started.
func NewSweeper(store Store, ttl, interval time.Duration, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		store:    store,
		ttl:      ttl,
		interval: interval,
		logger:   slog.Default(),
		metrics:  observability.NoopMetrics{},
		now:      time.Now,
		running:  abool.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start schedules the periodic sweep. Calling Start twice is an error.
func (s *Sweeper) Start() error {
	if s.scheduler != nil {
		return errors.New("sweeper already started")
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			if _, err := s.Sweep(s.now()); err != nil {
				observability.LogSweepError(s.logger, err)
			}
		}),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("schedule sweep: %w", err)
	}
	scheduler.Start()
	s.scheduler = scheduler
	return nil
}

// Stop shuts the scheduler down, waiting for a running sweep to finish.
func (s *Sweeper) Stop() error {
	if s.scheduler == nil {
		return nil
	}
	err := s.scheduler.Shutdown()
	s.scheduler = nil
	return err
}

// Sweep deletes every session whose last access is more than the TTL before
// now and returns how many were removed. If another sweep is in progress it
// returns 0 at once.
func (s *Sweeper) Sweep(now time.Time) (int, error) {
	if !s.running.SetToIf(false, true) {
		return 0, nil
	}
	defer s.running.UnSet()

	done := observability.TimedOperation()
	start := time.Now()

	cutoff := now.Add(-s.ttl)
	ids, err := s.store.ListIdle(cutoff)
	if err != nil {
		return 0, fmt.Errorf("list idle sessions: %w", err)
	}

	// Sessions touched since ListIdle are kept.
	removed := 0
	var errs []error
	for _, id := range ids {
		ok, err := s.store.DeleteIfIdle(id, cutoff)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			removed++
		}
	}

	s.metrics.RecordSweep(context.Background(), removed, time.Since(start))
	if removed > 0 {
		observability.LogSweep(s.logger, removed, done())
	}
	return removed, errors.Join(errs...)
}
