package repository

import (
	"context"
	"time"

	"ai-generation-queue/internal/domain/model"
)

// ProcessingCounts is a snapshot of in-flight load used by the dispatcher to
// enforce the global and per-tier concurrency caps.
type ProcessingCounts struct {
	Total  int
	ByTier map[string]int
}

// QueuePosition pairs a waiting job with its recomputed advisory rank.
type QueuePosition struct {
	JobID    string
	Position int
}

// JobRepository persists jobs. All status transitions are conditional updates
// keyed on the expected prior status, so concurrent workers can never claim
// or finalize the same job twice; methods returning bool report whether this
// caller won the transition.
type JobRepository interface {
	Save(ctx context.Context, tx Tx, job *model.Job) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)

	// CountActiveByUser counts the user's non-terminal jobs
	// (queued, pending, processing) for admission control.
	CountActiveByUser(ctx context.Context, tx Tx, userID string) (int, error)

	CountProcessing(ctx context.Context) (ProcessingCounts, error)

	// ListWaiting returns the dispatch candidate window: jobs with status
	// queued or pending ordered by priority descending then creation time
	// ascending, limited to limit.
	ListWaiting(ctx context.Context, limit int) ([]*model.Job, error)

	// Claim atomically transitions a waiting job to processing, increments
	// attempts, stamps StartedAt and resets progress. Returns false when a
	// concurrent dispatcher won the job first.
	Claim(ctx context.Context, id string) (*model.Job, bool, error)

	// UpdateProgress records a progress milestone for a processing job.
	// Progress is monotonically non-decreasing within one attempt.
	UpdateProgress(ctx context.Context, id string, progress int) error

	Complete(ctx context.Context, id, result string) (bool, error)
	Requeue(ctx context.Context, id, reason string) (bool, error)
	Fail(ctx context.Context, id, reason string) (bool, error)

	// RetryFailed is the user-initiated failed→queued transition: clears the
	// error, bumps RetryCount, preserves attempts and creation time.
	RetryFailed(ctx context.Context, id string) (bool, error)

	// Cancel transitions a waiting job to cancelled.
	Cancel(ctx context.Context, id string) (bool, error)

	SetResourceKey(ctx context.Context, id, keyID string) error

	// ListStuckProcessing returns processing jobs not updated since cutoff,
	// for the watchdog.
	ListStuckProcessing(ctx context.Context, cutoff time.Time, limit int) ([]*model.Job, error)

	// RecomputeQueuePositions reassigns 1..N over all waiting jobs in
	// dispatch order and returns the assignment. Advisory only.
	RecomputeQueuePositions(ctx context.Context) ([]QueuePosition, error)
}
