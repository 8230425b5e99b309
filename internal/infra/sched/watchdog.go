// File: internal/infra/sched/watchdog.go
package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"ai-generation-queue/internal/domain/ports/repository"
	"ai-generation-queue/internal/infra/metrics"
	redisinfra "ai-generation-queue/internal/infra/redis"
)

const stuckScanLimit = 100

// Watchdog periodically reaps processing jobs whose heartbeat went silent
// past the timeout: crashed workers, lost backends. Reaped jobs follow the
// same bounded-retry policy as live failures. Claims use conditional
// updates, so a watchdog racing an alive worker is harmless; the redis lock
// only keeps replicas from scanning in lockstep.
type Watchdog struct {
	interval time.Duration
	timeout  time.Duration
	jobs     repository.JobRepository
	locker   redisinfra.Locker
	now      func() time.Time
	log      *zerolog.Logger
}

func NewWatchdog(interval, timeout time.Duration, jobs repository.JobRepository, locker redisinfra.Locker, logger *zerolog.Logger) *Watchdog {
	wdLog := logger.With().Str("component", "Watchdog").Logger()
	return &Watchdog{
		interval: interval,
		timeout:  timeout,
		jobs:     jobs,
		locker:   locker,
		now:      time.Now,
		log:      &wdLog,
	}
}

func (w *Watchdog) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("timeout", w.timeout).Msg("starting watchdog")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping watchdog")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.Sweep(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("watchdog sweep error")
			}
			if n > 0 {
				metrics.IncJobsReaped(n)
				w.log.Info().Int("count", n).Msg("stuck jobs reaped")
			}
		}
	}
}

// Sweep reaps one batch of timed-out processing jobs and returns how many
// were transitioned.
func (w *Watchdog) Sweep(ctx context.Context) (int, error) {
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, "watchdog:sweep", w.interval)
		if err != nil {
			if errors.Is(err, redisinfra.ErrLockHeld) {
				return 0, nil
			}
			// Redis down: sweep anyway, conditional updates keep it safe.
			w.log.Warn().Err(err).Msg("sweep lock unavailable")
		} else {
			defer func() { _ = w.locker.Unlock(ctx, "watchdog:sweep", token) }()
		}
	}

	cutoff := w.now().Add(-w.timeout)
	stuck, err := w.jobs.ListStuckProcessing(ctx, cutoff, stuckScanLimit)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, job := range stuck {
		var won bool
		var err error
		if job.Attempts < job.MaxAttempts {
			won, err = w.jobs.Requeue(ctx, job.ID, "request timed out")
			if won {
				metrics.IncJobRequeued(string(job.Kind), "timeout")
			}
		} else {
			won, err = w.jobs.Fail(ctx, job.ID, "request timed out")
			if won {
				metrics.IncJobFinished(string(job.Kind), "failed")
			}
		}
		if err != nil {
			w.log.Error().Err(err).Str("job_id", job.ID).Msg("reap transition failed")
			continue
		}
		if !won {
			// The worker finished between our scan and the update.
			continue
		}
		reaped++
		w.log.Warn().Str("job_id", job.ID).Int("attempt", job.Attempts).
			Int("max_attempts", job.MaxAttempts).Msg("stuck job reaped")
	}
	return reaped, nil
}
