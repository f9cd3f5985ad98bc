// Package jobs runs periodic maintenance on a cron schedule: repairing
// cached unread counters and keeping the webhook subscription alive.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/andrrrrey/avito-crm/internal/repo"
	"github.com/andrrrrey/avito-crm/internal/services"
)

var jobRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "scheduled_job_runs_total",
		Help: "Scheduled job runs by job and outcome.",
	},
	[]string{"job", "outcome"},
)

func init() {
	prometheus.MustRegister(jobRuns)
}

// Job is a named unit of periodic work.
type Job func(ctx context.Context) error

// Scheduler wraps a cron runner. Overlapping runs of the same job are
// skipped and panics are recovered.
type Scheduler struct {
	c       *cron.Cron
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler returns a stopped scheduler. Each run gets timeout.
func NewScheduler(timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	l := cronLogger{log.Logger.With().Str("component", "cron").Logger()}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		c: cron.New(
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers job under spec. An empty spec disables the job.
func (s *Scheduler) Add(name, spec string, job Job) error {
	if spec == "" {
		log.Info().Str("job", name).Msg("scheduled job disabled")
		return nil
	}
	if _, err := s.c.AddFunc(spec, func() { s.run(name, job) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	log.Info().Str("job", name).Str("spec", spec).Msg("scheduled job registered")
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := job(ctx); err != nil {
		jobRuns.WithLabelValues(name, "error").Inc()
		log.Warn().Err(err).Str("job", name).Dur("elapsed", time.Since(start)).Msg("scheduled job failed")
		return
	}
	jobRuns.WithLabelValues(name, "ok").Inc()
	log.Debug().Str("job", name).Dur("elapsed", time.Since(start)).Msg("scheduled job done")
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int { return len(s.c.Entries()) }

// Start begins running jobs in the background.
func (s *Scheduler) Start() { s.c.Start() }

// Stop prevents new runs and waits for running ones until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.c.Stop()
	select {
	case <-done.Done():
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

// ReconcileUnread repairs unread counters that drifted from the messages.
func ReconcileUnread(db *gorm.DB) Job {
	return func(ctx context.Context) error {
		n, err := repo.RecomputeAllUnread(ctx, db)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Info().Int64("repaired", n).Msg("unread counters reconciled")
		}
		return nil
	}
}

// WebhookWatchdog re-subscribes the public webhook URL when the provider
// no longer lists it.
func WebhookWatchdog(subs *services.Subscriptions) Job {
	return func(ctx context.Context) error {
		created, err := subs.Ensure(ctx)
		if err != nil {
			return err
		}
		if created {
			log.Warn().Msg("webhook subscription was missing and has been restored")
		}
		return nil
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ l zerolog.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.l.Debug().Fields(kv).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Error().Err(err).Fields(kv).Msg(msg)
}
