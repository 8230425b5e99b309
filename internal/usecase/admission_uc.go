// File: internal/usecase/admission_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ai-generation-queue/internal/domain"
	"ai-generation-queue/internal/domain/model"
	"ai-generation-queue/internal/domain/ports/repository"
	"ai-generation-queue/internal/infra/metrics"
)

// Waker is an opportunistic nudge to a background loop. Wake must never
// block; the poll tick remains the correctness backstop.
type Waker interface {
	Wake()
}

// SubmitRequest is a new generation job as received from the caller.
type SubmitRequest struct {
	UserID string
	Kind   string
	Prompt string
	Meta   model.JobMetadata
}

// AdmissionController validates, prices and enqueues new jobs.
type AdmissionController interface {
	Submit(ctx context.Context, req SubmitRequest) (*model.Job, error)
}

type AdmissionUseCase struct {
	jobs     repository.JobRepository
	tiers    repository.TierRepository
	accounts repository.AccountRepository
	ledger   TokenLedger
	wakers   []Waker
	log      *zerolog.Logger
}

var _ AdmissionController = (*AdmissionUseCase)(nil)

func NewAdmissionUseCase(
	jobs repository.JobRepository,
	tiers repository.TierRepository,
	accounts repository.AccountRepository,
	ledger TokenLedger,
	logger *zerolog.Logger,
	wakers ...Waker,
) *AdmissionUseCase {
	l := logger.With().Str("component", "Admission").Logger()
	return &AdmissionUseCase{
		jobs:     jobs,
		tiers:    tiers,
		accounts: accounts,
		ledger:   ledger,
		wakers:   wakers,
		log:      &l,
	}
}

// defaultFreeTier is the fallback when no tier row exists at all, so
// admission keeps working on an unseeded database.
var defaultFreeTier = model.TierConfig{
	Name:                  model.TierFree,
	MaxConcurrentRequests: 1,
	PriorityLevel:         1,
	MaxQueueSize:          5,
	MaxAttempts:           3,
}

// Submit runs the admission pipeline: validate, resolve tier, enforce the
// per-tier queue size, charge tokens, persist the queued job. Every
// rejection is recorded as a failed job so it stays visible for audit, and
// the returned error carries the typed reason. Tokens are only ever charged
// on a job that ends up queued.
func (uc *AdmissionUseCase) Submit(ctx context.Context, req SubmitRequest) (*model.Job, error) {
	kind, kindErr := model.ParseKind(req.Kind)
	if req.UserID == "" || req.Prompt == "" || kindErr != nil {
		job := uc.recordRejection(ctx, req, kind, domain.ErrInvalidRequest)
		metrics.IncJobSubmitted(req.Kind, "invalid_request")
		return job, domain.ErrInvalidRequest
	}

	tier, err := uc.resolveTier(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	active, err := uc.jobs.CountActiveByUser(ctx, nil, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("count active jobs: %w", err)
	}
	if active >= tier.MaxQueueSize {
		job := uc.recordRejection(ctx, req, kind, domain.ErrQueueLimitExceeded)
		metrics.IncJobSubmitted(req.Kind, "queue_limit")
		uc.log.Debug().Str("user_id", req.UserID).Int("active", active).Int("max", tier.MaxQueueSize).
			Msg("submission rejected: queue limit")
		return job, domain.ErrQueueLimitExceeded
	}

	cost := tier.TokenCost(kind)
	charged, err := uc.ledger.Charge(ctx, req.UserID, int64(cost), "generation:"+string(kind))
	if err != nil {
		return nil, fmt.Errorf("charge tokens: %w", err)
	}
	if !charged {
		job := uc.recordRejection(ctx, req, kind, domain.ErrInsufficientTokens)
		metrics.IncJobSubmitted(req.Kind, "insufficient_tokens")
		return job, domain.ErrInsufficientTokens
	}

	job, err := model.NewJob(req.UserID, kind, req.Prompt, req.Meta, *tier)
	if err != nil {
		// Should be unreachable after validation; give the tokens back
		// rather than keep a charge with no queued job behind it.
		_ = uc.ledger.Refund(ctx, req.UserID, int64(cost), "admission rollback")
		return nil, err
	}
	job.TokensCharged = cost
	if err := uc.jobs.Save(ctx, nil, job); err != nil {
		_ = uc.ledger.Refund(ctx, req.UserID, int64(cost), "admission rollback")
		return nil, fmt.Errorf("persist job: %w", err)
	}

	metrics.IncJobSubmitted(req.Kind, "queued")
	uc.log.Info().Str("job_id", job.ID).Str("user_id", req.UserID).Str("kind", string(kind)).
		Int("cost", cost).Msg("job admitted")

	for _, w := range uc.wakers {
		w.Wake()
	}
	return job, nil
}

func (uc *AdmissionUseCase) resolveTier(ctx context.Context, userID string) (*model.TierConfig, error) {
	tierName := model.TierFree
	acc, err := uc.accounts.FindByID(ctx, nil, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("resolve account: %w", err)
		}
		return nil, domain.ErrNotFound
	}
	if acc.Tier != "" {
		tierName = acc.Tier
	}

	tier, err := uc.tiers.FindByName(ctx, nil, tierName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			t := defaultFreeTier
			return &t, nil
		}
		return nil, fmt.Errorf("resolve tier: %w", err)
	}
	return tier, nil
}

// recordRejection persists an audit-visible failed job. Rejected submissions
// are never silently dropped, even when required fields are missing.
func (uc *AdmissionUseCase) recordRejection(ctx context.Context, req SubmitRequest, kind model.GenerationKind, reason error) *model.Job {
	now := time.Now()
	job := &model.Job{
		ID:        model.NewJobID(),
		UserID:    req.UserID,
		Kind:      kind,
		Prompt:    req.Prompt,
		Meta:      req.Meta,
		Status:    model.JobStatusFailed,
		Error:     reason.Error(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.jobs.Save(ctx, nil, job); err != nil {
		uc.log.Error().Err(err).Str("user_id", req.UserID).Msg("failed to record rejected submission")
	}
	return job
}
