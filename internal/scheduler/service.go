package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Service wraps a Scheduler in robfig/cron's wall-clock trigger,
// registering the T-5/T/T+10 sequence named in spec.md §4.9 against
// the engine's configured window start and timezone. Adapted from the
// cron.New(cron.WithSeconds())/AddFunc job-registration pattern used
// for the trader's background jobs.
type Service struct {
	sched    *Scheduler
	cron     *cron.Cron
	logger   *zap.Logger
	location *time.Location
	window   time.Duration
}

// NewService builds a Service ready to Start. hhmm is "HH:MM" in the
// engine's configured timezone (spec.md §6 "window start HH:MM").
func NewService(sched *Scheduler, logger *zap.Logger, hhmm, timezone string, window time.Duration) (*Service, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid timezone %q: %w", timezone, err)
	}
	hour, minute, err := parseHHMM(hhmm)
	if err != nil {
		return nil, err
	}

	c := cron.New(cron.WithLocation(loc))
	svc := &Service{sched: sched, cron: c, logger: logger, location: loc, window: window}

	warmupHour, warmupMinute := minusFiveMinutes(hour, minute)
	warmupSpec := fmt.Sprintf("%d %d * * 1-5", warmupMinute, warmupHour)
	windowSpec := fmt.Sprintf("%d %d * * 1-5", minute, hour)

	if _, err := c.AddFunc(warmupSpec, svc.runWarmupTick); err != nil {
		return nil, fmt.Errorf("scheduler: register warmup job: %w", err)
	}
	if _, err := c.AddFunc(windowSpec, svc.runWindowTick); err != nil {
		return nil, fmt.Errorf("scheduler: register window job: %w", err)
	}

	return svc, nil
}

// Start begins the cron loop. Schedules run in their own goroutines;
// Start returns immediately.
func (s *Service) Start() { s.cron.Start() }

// Stop blocks until any in-flight job finishes.
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Service) runWarmupTick() {
	asOf := time.Now().In(s.location)
	candidates := s.sched.store.Symphonies.ListActive()
	s.sched.warmupTickers(context.Background(), candidates, asOf)
}

func (s *Service) runWindowTick() {
	asOf := time.Now().In(s.location)
	deadline := asOf.Add(s.window)
	result, err := s.sched.RunWindow(context.Background(), asOf, deadline)
	if err != nil {
		s.logger.Error("window run failed", zap.Error(err))
		return
	}
	s.logger.Info("window complete",
		zap.Int("attempted", result.Attempted), zap.Int("succeeded", result.Succeeded),
		zap.Int("skipped", result.Skipped), zap.Int("failed", result.Failed))
}

func parseHHMM(hhmm string) (hour, minute int, err error) {
	parts := strings.Split(hhmm, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("scheduler: window start must be HH:MM, got %q", hhmm)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("scheduler: invalid hour in %q: %w", hhmm, err)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("scheduler: invalid minute in %q: %w", hhmm, err)
	}
	return hour, minute, nil
}

// minusFiveMinutes computes the T-5 trigger time from the window
// start, borrowing from the hour (and wrapping midnight) when the
// window starts within the first 5 minutes of an hour.
func minusFiveMinutes(hour, minute int) (int, int) {
	total := hour*60 + minute - 5
	if total < 0 {
		total += 24 * 60
	}
	return total / 60, total % 60
}
