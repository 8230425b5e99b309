// File: internal/usecase/keypool_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"ai-generation-queue/internal/domain"
	"ai-generation-queue/internal/domain/model"
	"ai-generation-queue/internal/domain/ports/repository"
	"ai-generation-queue/internal/infra/metrics"
)

// KeyPool allocates external-service credentials with per-key daily quotas.
type KeyPool interface {
	Acquire(ctx context.Context, service string) (*model.ResourceKey, error)
	Deactivate(ctx context.Context, keyID string) error
}

type KeyPoolUseCase struct {
	keys repository.ResourceKeyRepository
	// now is swappable so tests can pin the day window.
	now func() time.Time
	log *zerolog.Logger
}

var _ KeyPool = (*KeyPoolUseCase)(nil)

func NewKeyPoolUseCase(keys repository.ResourceKeyRepository, logger *zerolog.Logger) *KeyPoolUseCase {
	l := logger.With().Str("component", "KeyPool").Logger()
	return &KeyPoolUseCase{keys: keys, now: time.Now, log: &l}
}

// Acquire returns the least-loaded active key for service inside the current
// UTC day, with its usage already incremented. domain.ErrNoResourceKey when
// the pool is exhausted; callers treat that as a recoverable condition, not a
// hard job failure.
func (uc *KeyPoolUseCase) Acquire(ctx context.Context, service string) (*model.ResourceKey, error) {
	key, err := uc.keys.AcquireLeastLoaded(ctx, service, uc.now())
	if err != nil {
		if errors.Is(err, domain.ErrNoResourceKey) {
			metrics.IncKeyAcquisition(service, "exhausted")
			uc.log.Warn().Str("service", service).Msg("resource key pool exhausted")
		}
		return nil, err
	}
	metrics.IncKeyAcquisition(service, "ok")
	metrics.SetKeyUsage(service, key.ID, key.UsageToday)
	return key, nil
}

func (uc *KeyPoolUseCase) Deactivate(ctx context.Context, keyID string) error {
	if err := uc.keys.Deactivate(ctx, keyID); err != nil {
		return err
	}
	uc.log.Info().Str("key_id", keyID).Msg("resource key deactivated")
	return nil
}
