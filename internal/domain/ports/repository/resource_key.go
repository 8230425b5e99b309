package repository

import (
	"context"
	"time"

	"ai-generation-queue/internal/domain/model"
)

// ResourceKeyRepository owns the credential pool. Selection and usage
// increment form one atomic step per key.
type ResourceKeyRepository interface {
	Save(ctx context.Context, tx Tx, key *model.ResourceKey) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.ResourceKey, error)
	ListByService(ctx context.Context, service string) ([]*model.ResourceKey, error)

	// AcquireLeastLoaded picks the active key for service with the lowest
	// usage inside the given UTC day window, below its daily limit, ties
	// broken by lexicographic key ID. The returned key already has its usage
	// incremented and LastUsedAt stamped. domain.ErrNoResourceKey when no
	// key qualifies.
	AcquireLeastLoaded(ctx context.Context, service string, day time.Time) (*model.ResourceKey, error)

	Deactivate(ctx context.Context, id string) error
}
