// File: internal/usecase/dispatch_uc.go
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

// Dispatcher hands out the next runnable job, honoring the global and
// per-tier concurrency caps.
type Dispatcher interface {
	// DispatchNext claims at most one waiting job. A nil job with a nil
	// error means nothing is currently dispatchable.
	DispatchNext(ctx context.Context) (*model.Job, error)
}

type DispatchUseCase struct {
	jobs            repository.JobRepository
	tiers           repository.TierRepository
	globalCap       int
	candidateWindow int
	log             *zerolog.Logger
}

var _ Dispatcher = (*DispatchUseCase)(nil)

func NewDispatchUseCase(jobs repository.JobRepository, tiers repository.TierRepository, globalCap, candidateWindow int, logger *zerolog.Logger) *DispatchUseCase {
	l := logger.With().Str("component", "Dispatch").Logger()
	return &DispatchUseCase{
		jobs:            jobs,
		tiers:           tiers,
		globalCap:       globalCap,
		candidateWindow: candidateWindow,
		log:             &l,
	}
}

// DispatchNext reads the processing counts, scans a bounded window of the
// highest-priority waiting jobs and claims the first one whose tier still
// has headroom. The claim is a conditional update, so two dispatchers
// racing on the same job produce exactly one winner; the loser just moves
// on to the next candidate.
func (uc *DispatchUseCase) DispatchNext(ctx context.Context) (*model.Job, error) {
	counts, err := uc.jobs.CountProcessing(ctx)
	if err != nil {
		return nil, fmt.Errorf("count processing: %w", err)
	}
	metrics.SetProcessing(counts.Total)
	if counts.Total >= uc.globalCap {
		metrics.IncDispatchSkip("global_cap")
		return nil, nil
	}

	candidates, err := uc.jobs.ListWaiting(ctx, uc.candidateWindow)
	if err != nil {
		return nil, fmt.Errorf("list waiting: %w", err)
	}
	if len(candidates) == 0 {
		metrics.IncDispatchSkip("empty")
		return nil, nil
	}

	for _, cand := range candidates {
		limit, err := uc.tierCap(ctx, cand.Tier.Name)
		if err != nil {
			return nil, err
		}
		if counts.ByTier[cand.Tier.Name] >= limit {
			metrics.IncDispatchSkip("tier_cap")
			continue
		}

		job, won, err := uc.jobs.Claim(ctx, cand.ID)
		if err != nil {
			return nil, fmt.Errorf("claim job %s: %w", cand.ID, err)
		}
		if !won {
			// Another dispatcher got there first.
			metrics.IncDispatchClaim("lost")
			continue
		}
		metrics.IncDispatchClaim("won")
		metrics.SetProcessing(counts.Total + 1)
		uc.log.Debug().Str("job_id", job.ID).Str("tier", job.Tier.Name).Msg("job claimed")
		return job, nil
	}
	return nil, nil
}

// tierCap looks up the live concurrency limit for a tier, falling back to
// the free default when the tier row has since been removed.
func (uc *DispatchUseCase) tierCap(ctx context.Context, name string) (int, error) {
	tier, err := uc.tiers.FindByName(ctx, nil, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return defaultFreeTier.MaxConcurrentRequests, nil
		}
		return 0, fmt.Errorf("resolve tier %q: %w", name, err)
	}
	return tier.MaxConcurrentRequests, nil
}
