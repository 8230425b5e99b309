// File: internal/usecase/indexer_uc.go
package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"ai-generation-queue/internal/domain/ports/repository"
)

// QueueIndexer refreshes the advisory queue positions of waiting jobs.
type QueueIndexer interface {
	Reindex(ctx context.Context) (int, error)
}

type IndexerUseCase struct {
	jobs      repository.JobRepository
	positions PositionIndex
	log       *zerolog.Logger
}

var _ QueueIndexer = (*IndexerUseCase)(nil)

func NewIndexerUseCase(jobs repository.JobRepository, positions PositionIndex, logger *zerolog.Logger) *IndexerUseCase {
	l := logger.With().Str("component", "Indexer").Logger()
	return &IndexerUseCase{jobs: jobs, positions: positions, log: &l}
}

// Reindex reassigns positions 1..N over the waiting jobs in dispatch order
// and mirrors the result into the cache. Positions are advisory: a stale
// view never blocks dispatch, so a cache write failure is only logged.
func (uc *IndexerUseCase) Reindex(ctx context.Context) (int, error) {
	assigned, err := uc.jobs.RecomputeQueuePositions(ctx)
	if err != nil {
		return 0, fmt.Errorf("recompute queue positions: %w", err)
	}
	if uc.positions != nil {
		m := make(map[string]int, len(assigned))
		for _, qp := range assigned {
			m[qp.JobID] = qp.Position
		}
		if err := uc.positions.Replace(ctx, m); err != nil {
			uc.log.Warn().Err(err).Msg("position cache refresh failed")
		}
	}
	return len(assigned), nil
}
