// File: internal/infra/worker/supervisor.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ai-generation-queue/internal/domain"
	"ai-generation-queue/internal/domain/model"
	"ai-generation-queue/internal/domain/ports/adapter"
	"ai-generation-queue/internal/domain/ports/repository"
	"ai-generation-queue/internal/infra/metrics"
	"ai-generation-queue/internal/usecase"
)

// Supervisor drives the execution side of the queue: it polls the
// dispatcher for claimable jobs, hands each claimed job to the pool and
// walks it through key acquisition, the backend call and the terminal
// transition. A failed attempt re-queues while attempts remain, otherwise
// the job fails for good.
type Supervisor struct {
	dispatcher usecase.Dispatcher
	keys       usecase.KeyPool
	jobs       repository.JobRepository
	gen        adapter.GenerationAdapter
	store      adapter.ArtifactStore

	pollInterval time.Duration
	wake         chan struct{}
	log          *zerolog.Logger
}

func NewSupervisor(
	dispatcher usecase.Dispatcher,
	keys usecase.KeyPool,
	jobs repository.JobRepository,
	gen adapter.GenerationAdapter,
	store adapter.ArtifactStore,
	pollInterval time.Duration,
	logger *zerolog.Logger,
) *Supervisor {
	l := logger.With().Str("component", "Supervisor").Logger()
	return &Supervisor{
		dispatcher:   dispatcher,
		keys:         keys,
		jobs:         jobs,
		gen:          gen,
		store:        store,
		pollInterval: pollInterval,
		wake:         make(chan struct{}, 1),
		log:          &l,
	}
}

// Wake nudges the poll loop without waiting for the next tick. Safe to call
// from any goroutine; never blocks.
func (s *Supervisor) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Start runs the poll loop until ctx is cancelled. Should be run in a
// goroutine.
func (s *Supervisor) Start(ctx context.Context, pool *Pool) {
	s.log.Info().Dur("poll_interval", s.pollInterval).Msg("supervisor started")
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("supervisor stopping")
			return
		case <-ticker.C:
		case <-s.wake:
		}
		s.drain(ctx, pool)
	}
}

// drain submits tasks until the dispatcher has nothing left to hand out.
// Each pass claims at most one job, so concurrency caps stay enforced at
// the dispatcher, not here.
func (s *Supervisor) drain(ctx context.Context, pool *Pool) {
	for {
		job, err := s.dispatcher.DispatchNext(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("dispatch failed")
			return
		}
		if job == nil {
			return
		}
		claimed := job
		if err := pool.Submit(func(ctx context.Context) error {
			s.execute(ctx, claimed)
			return nil
		}); err != nil {
			// Pool saturated. The job stays processing; the watchdog will
			// reclaim it if nothing picks it up.
			s.log.Warn().Err(err).Str("job_id", claimed.ID).Msg("pool rejected job")
			s.retryOrFail(ctx, claimed, "worker pool saturated")
			return
		}
	}
}

// execute runs one attempt of a claimed job to a terminal transition.
func (s *Supervisor) execute(ctx context.Context, job *model.Job) {
	log := s.log.With().Str("job_id", job.ID).Str("kind", string(job.Kind)).Logger()
	log.Info().Int("attempt", job.Attempts).Msg("executing job")
	start := time.Now()

	key, err := s.keys.Acquire(ctx, model.ServiceForKind(job.Kind))
	if err != nil {
		if errors.Is(err, domain.ErrNoResourceKey) {
			s.retryOrFail(ctx, job, "no api key available")
		} else {
			s.retryOrFail(ctx, job, fmt.Sprintf("key acquisition failed: %v", err))
		}
		return
	}
	if err := s.jobs.SetResourceKey(ctx, job.ID, key.ID); err != nil {
		log.Error().Err(err).Msg("could not record resource key")
	}
	s.progress(ctx, job.ID, 10)

	result, err := s.gen.Generate(ctx, job.Kind, job.Prompt, job.Meta, key.Credential, func(p int) {
		// Backend milestones land between key acquisition and upload.
		if p > 10 && p < 90 {
			s.progress(ctx, job.ID, p)
		}
	})
	if err != nil {
		metrics.ObserveGenerationLatency(string(job.Kind), "error", time.Since(start))
		s.retryOrFail(ctx, job, err.Error())
		return
	}
	s.progress(ctx, job.ID, 90)

	ref := result.Ref
	if result.IsRaw() {
		// Final persistence uses a fresh context so a caller cancel after
		// the paid backend call cannot lose the artifact.
		ref, err = s.store.Store(context.WithoutCancel(ctx), result.Bytes, artifactPath(job, result.ContentType))
		if err != nil {
			s.retryOrFail(ctx, job, fmt.Sprintf("artifact upload failed: %v", err))
			return
		}
	}

	won, err := s.jobs.Complete(context.WithoutCancel(ctx), job.ID, ref)
	if err != nil {
		log.Error().Err(err).Msg("completion write failed")
		return
	}
	if !won {
		// The watchdog reclaimed the job mid-flight. The late result is
		// dropped; the re-queued attempt owns the job now.
		log.Warn().Msg("job no longer processing at completion")
		return
	}
	metrics.ObserveGenerationLatency(string(job.Kind), "ok", time.Since(start))
	metrics.IncJobFinished(string(job.Kind), "completed")
	log.Info().Dur("duration", time.Since(start)).Msg("job completed")
}

// retryOrFail applies the bounded-retry policy after a failed attempt.
func (s *Supervisor) retryOrFail(ctx context.Context, job *model.Job, reason string) {
	ctx = context.WithoutCancel(ctx)
	if job.Attempts < job.MaxAttempts {
		won, err := s.jobs.Requeue(ctx, job.ID, reason)
		if err != nil || !won {
			s.log.Error().Err(err).Str("job_id", job.ID).Msg("requeue failed")
			return
		}
		metrics.IncJobRequeued(string(job.Kind), "attempt_failed")
		s.log.Warn().Str("job_id", job.ID).Str("reason", reason).
			Int("attempt", job.Attempts).Int("max_attempts", job.MaxAttempts).Msg("job re-queued")
		return
	}
	won, err := s.jobs.Fail(ctx, job.ID, reason)
	if err != nil || !won {
		s.log.Error().Err(err).Str("job_id", job.ID).Msg("fail transition failed")
		return
	}
	metrics.IncJobFinished(string(job.Kind), "failed")
	s.log.Error().Str("job_id", job.ID).Str("reason", reason).Msg("job failed permanently")
}

func (s *Supervisor) progress(ctx context.Context, jobID string, p int) {
	if err := s.jobs.UpdateProgress(ctx, jobID, p); err != nil {
		s.log.Debug().Err(err).Str("job_id", jobID).Msg("progress update failed")
	}
}

func artifactPath(job *model.Job, contentType string) string {
	ext := map[string]string{
		"image/png":  ".png",
		"image/jpeg": ".jpg",
		"audio/mpeg": ".mp3",
		"audio/wav":  ".wav",
		"video/mp4":  ".mp4",
	}[contentType]
	return fmt.Sprintf("%s/%s/%s%s", job.UserID, job.Kind, job.ID, ext)
}
