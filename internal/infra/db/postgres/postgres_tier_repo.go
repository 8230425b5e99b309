package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-generation-queue/internal/domain"
	"ai-generation-queue/internal/domain/model"
	"ai-generation-queue/internal/domain/ports/repository"
)

var _ repository.TierRepository = (*tierRepo)(nil)

type tierRepo struct {
	pool *pgxpool.Pool
}

func NewTierRepo(pool *pgxpool.Pool) *tierRepo {
	return &tierRepo{pool: pool}
}

func (r *tierRepo) Save(ctx context.Context, tx repository.Tx, tier *model.TierConfig) error {
	const q = `
INSERT INTO tiers (name, max_concurrent_requests, priority_level, max_queue_size, max_attempts)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (name) DO UPDATE SET
  max_concurrent_requests = EXCLUDED.max_concurrent_requests,
  priority_level = EXCLUDED.priority_level,
  max_queue_size = EXCLUDED.max_queue_size,
  max_attempts = EXCLUDED.max_attempts;`
	_, err := execSQL(ctx, r.pool, tx, q,
		tier.Name, tier.MaxConcurrentRequests, tier.PriorityLevel, tier.MaxQueueSize, tier.MaxAttempts)
	return err
}

func (r *tierRepo) FindByName(ctx context.Context, tx repository.Tx, name string) (*model.TierConfig, error) {
	row, err := pickRow(ctx, r.pool, tx, `
SELECT name, max_concurrent_requests, priority_level, max_queue_size, max_attempts
  FROM tiers WHERE name=$1;`, name)
	if err != nil {
		return nil, err
	}
	var t model.TierConfig
	if err := row.Scan(&t.Name, &t.MaxConcurrentRequests, &t.PriorityLevel, &t.MaxQueueSize, &t.MaxAttempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *tierRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.TierConfig, error) {
	rows, err := pickRows(ctx, r.pool, tx, `
SELECT name, max_concurrent_requests, priority_level, max_queue_size, max_attempts
  FROM tiers ORDER BY priority_level DESC;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.TierConfig
	for rows.Next() {
		var t model.TierConfig
		if err := rows.Scan(&t.Name, &t.MaxConcurrentRequests, &t.PriorityLevel, &t.MaxQueueSize, &t.MaxAttempts); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
