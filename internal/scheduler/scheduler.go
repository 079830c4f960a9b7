package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "planynov/internal/log"
)

// Job is a unit of periodic work. Errors are logged, never fatal.
type Job func(ctx context.Context) error

// Scheduler runs jobs on cron schedules until its context is canceled.
type Scheduler struct {
	c *cron.Cron
}

// New returns a Scheduler evaluating schedules in loc.
func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		c: cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Add registers job under name on a standard five-field cron spec.
func (s *Scheduler) Add(ctx context.Context, name, spec string, job Job) error {
	_, err := s.c.AddFunc(spec, func() {
		started := time.Now()
		if err := job(ctx); err != nil {
			appLog.Error("scheduled job failed", err, "job", name)
			return
		}
		appLog.Debug("scheduled job done", "job", name, "duration_ms", time.Since(started).Milliseconds())
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	appLog.Info("job scheduled", "job", name, "spec", spec)
	return nil
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.c.Start()
	<-ctx.Done()
	<-s.c.Stop().Done()
}
