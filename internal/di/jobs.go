package di

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/aristath/docpoller/internal/config"
	"github.com/aristath/docpoller/internal/scheduler"
)

// RegisterJobs sets up cron mode when a schedule is configured. Without a
// schedule the poller's own interval loop runs and triggers go to it.
func RegisterJobs(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.Poller == nil {
		return fmt.Errorf("container has no poller")
	}

	if cfg.Schedule == "" {
		container.Trigger = container.Poller
		return nil
	}

	sched := scheduler.New(log)
	job := container.Poller.Job(ctx)
	if err := sched.AddJob(cfg.Schedule, job); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
	}

	container.Scheduler = sched
	container.PollJob = job
	manual := &scheduledTrigger{scheduler: sched, job: job, log: log}
	container.manual = manual
	container.Trigger = manual
	return nil
}

// scheduledTrigger runs the poll job outside its schedule. At most one manual
// run is pending at a time; the poller skips it if a cycle is already in
// progress.
type scheduledTrigger struct {
	scheduler *scheduler.Scheduler
	job       scheduler.Job
	log       zerolog.Logger

	pending atomic.Bool
	wg      sync.WaitGroup
}

// Trigger returns false when a manual run is already pending.
func (t *scheduledTrigger) Trigger() bool {
	if !t.pending.CompareAndSwap(false, true) {
		return false
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.pending.Store(false)
		if err := t.scheduler.RunNow(t.job); err != nil {
			t.log.Warn().Err(err).Str("job", t.job.Name()).Msg("Manual run did not complete")
		}
	}()
	return true
}

// Wait blocks until every manual run has returned.
func (t *scheduledTrigger) Wait() {
	t.wg.Wait()
}
