package runner

import (
	"context"

	"github.com/robfig/cron/v3"

	"research-agent/internal/logger"
)

// retryTickSpec drives the dead-letter retry sweep independently of the
// collection/sync schedule; every 5 minutes is frequent enough that the
// 60s/120s/240s backoff ladder never waits much longer than its
// own next-attempt time.
const retryTickSpec = "*/5 * * * *"

// Scheduler drives a Runner's recurring jobs: the daily collection run
// (scheduling.collection_time), the weekly Notion sync (scheduling.sync_day),
// and the dead-letter retry sweep, via a single *cron.Cron with one
// AddFunc per job and Start/Stop lifecycle methods.
type Scheduler struct {
	runner *Runner
	cron   *cron.Cron
}

// NewScheduler registers every recurring job against runner's configured
// cron specs. A malformed cron spec is a ConfigError-equivalent failure
// here: the run refuses to start rather than silently never firing.
func NewScheduler(runner *Runner) (*Scheduler, error) {
	c := cron.New()

	if _, err := c.AddFunc(runner.cfg.Scheduling.CollectionTime, func() {
		runScheduledJob("collection", func(ctx context.Context) error {
			_, err := runner.Run(ctx)
			return err
		})
	}); err != nil {
		return nil, err
	}

	if _, err := c.AddFunc(runner.cfg.Scheduling.SyncDay, func() {
		runScheduledJob("notion_sync", runner.RunNotionSync)
	}); err != nil {
		return nil, err
	}

	if _, err := c.AddFunc(retryTickSpec, func() {
		runScheduledJob("dead_letter_retry", runner.ProcessDueDeadLetters)
	}); err != nil {
		return nil, err
	}

	return &Scheduler{runner: runner, cron: c}, nil
}

// Start begins running registered jobs on their schedules. Non-blocking:
// robfig/cron manages its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler, waiting for any in-flight job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func runScheduledJob(name string, fn func(ctx context.Context) error) {
	logger.Info("scheduled job starting", "job", name)
	if err := fn(context.Background()); err != nil {
		logger.Warn("scheduled job failed", "job", name, "error", err.Error())
		return
	}
	logger.Info("scheduled job finished", "job", name)
}
