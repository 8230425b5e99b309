// File: internal/usecase/jobs_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"ai-generation-queue/internal/domain"
	"ai-generation-queue/internal/domain/model"
	"ai-generation-queue/internal/domain/ports/repository"
	"ai-generation-queue/internal/infra/metrics"
)

// PositionIndex is the read side of the advisory queue position cache.
type PositionIndex interface {
	Replace(ctx context.Context, positions map[string]int) error
	Get(ctx context.Context, jobID string) (int, error)
}

// JobService exposes the user-facing job operations: status lookup and the
// explicit retry and cancel transitions. All mutations check ownership.
type JobService interface {
	GetStatus(ctx context.Context, jobID, callerID string) (*model.Job, error)
	Retry(ctx context.Context, jobID, callerID string) (*model.Job, error)
	Cancel(ctx context.Context, jobID, callerID string) (*model.Job, error)
}

type JobUseCase struct {
	jobs      repository.JobRepository
	positions PositionIndex
	wakers    []Waker
	log       *zerolog.Logger
}

var _ JobService = (*JobUseCase)(nil)

func NewJobUseCase(jobs repository.JobRepository, positions PositionIndex, logger *zerolog.Logger, wakers ...Waker) *JobUseCase {
	l := logger.With().Str("component", "Jobs").Logger()
	return &JobUseCase{jobs: jobs, positions: positions, wakers: wakers, log: &l}
}

// GetStatus returns the job, overlaying the advisory queue position for
// waiting jobs. A stale or missing cache entry leaves the position at zero;
// it never fails the lookup.
func (uc *JobUseCase) GetStatus(ctx context.Context, jobID, callerID string) (*model.Job, error) {
	job, err := uc.jobs.FindByID(ctx, nil, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != callerID {
		return nil, domain.ErrNotOwner
	}
	if job.Status.IsWaiting() && uc.positions != nil {
		if pos, err := uc.positions.Get(ctx, jobID); err == nil {
			job.QueuePosition = pos
		}
	}
	return job, nil
}

// Retry re-queues a failed job in place. The job keeps its identity, its
// original creation time and the tokens already charged; only the error is
// cleared. No new charge is made.
func (uc *JobUseCase) Retry(ctx context.Context, jobID, callerID string) (*model.Job, error) {
	job, err := uc.jobs.FindByID(ctx, nil, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != callerID {
		return nil, domain.ErrNotOwner
	}
	if _, err := model.NextStatus(job.Status, model.EventUserRetry); err != nil {
		return nil, err
	}

	ok, err := uc.jobs.RetryFailed(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("retry job %s: %w", jobID, err)
	}
	if !ok {
		// The job left the failed state between our read and the update.
		return nil, domain.ErrInvalidTransition
	}
	metrics.IncJobRequeued(string(job.Kind), "user_retry")
	uc.log.Info().Str("job_id", jobID).Str("user_id", callerID).Msg("job re-queued by user")

	for _, w := range uc.wakers {
		w.Wake()
	}
	return uc.jobs.FindByID(ctx, nil, jobID)
}

// Cancel withdraws a waiting job. Jobs already processing or terminal
// cannot be cancelled.
func (uc *JobUseCase) Cancel(ctx context.Context, jobID, callerID string) (*model.Job, error) {
	job, err := uc.jobs.FindByID(ctx, nil, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != callerID {
		return nil, domain.ErrNotOwner
	}
	if _, err := model.NextStatus(job.Status, model.EventCancel); err != nil {
		return nil, err
	}

	ok, err := uc.jobs.Cancel(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("cancel job %s: %w", jobID, err)
	}
	if !ok {
		return nil, domain.ErrInvalidTransition
	}
	uc.log.Info().Str("job_id", jobID).Str("user_id", callerID).Msg("job cancelled")
	return uc.jobs.FindByID(ctx, nil, jobID)
}

// IsRejection reports whether err is one of the typed admission or
// transition rejections a caller can act on, as opposed to an internal
// failure.
func IsRejection(err error) bool {
	return errors.Is(err, domain.ErrInvalidRequest) ||
		errors.Is(err, domain.ErrQueueLimitExceeded) ||
		errors.Is(err, domain.ErrInsufficientTokens) ||
		errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrNotOwner)
}
