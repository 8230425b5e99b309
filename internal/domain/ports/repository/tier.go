package repository

import (
	"context"

	"ai-generation-queue/internal/domain/model"
)

// TierRepository serves tier reference data. Read-mostly; implementations may
// cache aggressively since admission embeds a snapshot anyway.
type TierRepository interface {
	Save(ctx context.Context, tx Tx, tier *model.TierConfig) error
	FindByName(ctx context.Context, tx Tx, name string) (*model.TierConfig, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.TierConfig, error)
}
