package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ecomwatch/collector/config"
)

// ErrRunInProgress is returned when a trigger fires while a run is still
// executing. One run at a time: sites pace themselves, and the rendered
// browser session cannot be shared.
var ErrRunInProgress = errors.New("collect: a run is already in progress")

// Scheduler owns the daily trigger for a Runner. It is constructed and
// held by the process entry point; starting it is optional (the runner
// works on demand without one).
type Scheduler struct {
	runner   *Runner
	schedule config.Schedule
	logger   *slog.Logger

	cron *cron.Cron
	busy atomic.Bool
}

// NewScheduler wraps a Runner with a trigger configured by sched.
func NewScheduler(runner *Runner, sched config.Schedule, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{runner: runner, schedule: sched, logger: logger}
}

// Start arms the daily cron trigger. A disabled schedule is a no-op, not
// an error.
func (s *Scheduler) Start() error {
	if !s.schedule.Enabled {
		s.logger.Info("collect: schedule disabled")
		return nil
	}

	spec, err := cronSpec(s.schedule.Time)
	if err != nil {
		return err
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(spec, func() {
		if _, err := s.Trigger(context.Background()); errors.Is(err, ErrRunInProgress) {
			s.logger.Warn("collect: scheduled run skipped, previous run still executing")
		} else if err != nil {
			s.logger.Error("collect: scheduled run failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("collect: schedule: %w", err)
	}
	s.cron.Start()

	if next, ok := s.NextRun(); ok {
		s.logger.Info("collect: schedule armed", "daily_at", s.schedule.Time, "next_run", next)
	}
	return nil
}

// Stop disarms the trigger and waits for a job started by it to return.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Trigger runs synchronously, guarded against overlap.
func (s *Scheduler) Trigger(ctx context.Context) (Summary, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return Summary{}, ErrRunInProgress
	}
	defer s.busy.Store(false)
	return s.runner.RunAll(ctx)
}

// TriggerAsync starts a run in the background, reserving the overlap guard
// before returning so a caller racing another trigger gets ErrRunInProgress
// immediately.
func (s *Scheduler) TriggerAsync() error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	go func() {
		defer s.busy.Store(false)
		if _, err := s.runner.RunAll(context.Background()); err != nil {
			s.logger.Error("collect: background run failed", "error", err)
		}
	}()
	return nil
}

// Busy reports whether a run is executing right now.
func (s *Scheduler) Busy() bool {
	return s.busy.Load()
}

// NextRun returns the next scheduled fire time, if the trigger is armed.
func (s *Scheduler) NextRun() (time.Time, bool) {
	if s.cron == nil {
		return time.Time{}, false
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}, false
	}
	return entries[0].Next, true
}

// cronSpec converts an HH:MM wall time into a daily cron expression.
func cronSpec(hhmm string) (string, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return "", fmt.Errorf("collect: schedule time %q: %w", hhmm, err)
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}
