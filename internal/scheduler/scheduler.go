package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/credit-risk/internal/service"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Runner executes one analysis run
type Runner interface {
	RunAnalysis(ctx context.Context, asOf time.Time) (*service.Report, error)
}

// Scheduler triggers analysis runs on a cron schedule. Every run covers the
// calendar day it starts on, in UTC.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	log     logrus.FieldLogger
	timeout time.Duration
	now     func() time.Time
}

// New parses a standard five-field cron spec
func New(spec string, runner Runner, timeout time.Duration, log logrus.FieldLogger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		runner:  runner,
		log:     log,
		timeout: timeout,
		now:     time.Now,
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid run schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.log.Infof("Next analysis run at %s", e.Next.Format(time.RFC3339))
	}
}

// Stop prevents new runs and returns a context that is done once a running
// one has finished
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	asOf := s.now().UTC().Truncate(24 * time.Hour)
	if _, err := s.runner.RunAnalysis(ctx, asOf); err != nil {
		if errors.Is(err, service.ErrRunInProgress) {
			s.log.Warn("Skipping scheduled run, previous run still in progress")
			return
		}
		s.log.Errorf("Scheduled analysis run failed: %v", err)
	}
}
