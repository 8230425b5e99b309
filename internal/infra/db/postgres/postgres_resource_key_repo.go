package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-generation-queue/internal/domain"
	"ai-generation-queue/internal/domain/model"
	"ai-generation-queue/internal/domain/ports/repository"
)

var _ repository.ResourceKeyRepository = (*resourceKeyRepo)(nil)

type resourceKeyRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewResourceKeyRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *resourceKeyRepo {
	return &resourceKeyRepo{pool: pool, tm: tm}
}

const keyColumns = `id, service, credential, daily_limit, usage_day, usage_today, last_used_at, is_active`

func scanKey(row pgx.Row) (*model.ResourceKey, error) {
	var k model.ResourceKey
	err := row.Scan(&k.ID, &k.Service, &k.Credential, &k.DailyLimit,
		&k.UsageDay, &k.UsageToday, &k.LastUsedAt, &k.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &k, nil
}

func (r *resourceKeyRepo) Save(ctx context.Context, tx repository.Tx, key *model.ResourceKey) error {
	const q = `
INSERT INTO resource_keys (` + keyColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  credential = EXCLUDED.credential,
  daily_limit = EXCLUDED.daily_limit,
  is_active = EXCLUDED.is_active;`
	_, err := execSQL(ctx, r.pool, tx, q,
		key.ID, key.Service, key.Credential, key.DailyLimit,
		model.UTCDay(key.UsageDay), key.UsageToday, key.LastUsedAt, key.IsActive)
	return err
}

func (r *resourceKeyRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ResourceKey, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+keyColumns+` FROM resource_keys WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	return scanKey(row)
}

func (r *resourceKeyRepo) ListByService(ctx context.Context, service string) ([]*model.ResourceKey, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+keyColumns+` FROM resource_keys WHERE service=$1 ORDER BY id;`, service)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.ResourceKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// AcquireLeastLoaded implements the pool selection rule as one transaction:
// lock the best candidate row, bump its usage, return it. A key whose
// usage_day predates the window counts as unused today and its counter
// restarts at 1. FOR UPDATE SKIP LOCKED keeps two concurrent acquirers from
// selecting the same key while one is mid-increment; the loser simply sees
// the next-best candidate.
func (r *resourceKeyRepo) AcquireLeastLoaded(ctx context.Context, service string, day time.Time) (*model.ResourceKey, error) {
	window := model.UTCDay(day)
	var acquired *model.ResourceKey

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		row, err := pickRow(ctx, r.pool, tx, `
UPDATE resource_keys
   SET usage_today = CASE WHEN usage_day = $2 THEN usage_today + 1 ELSE 1 END,
       usage_day   = $2,
       last_used_at = now()
 WHERE id = (
       SELECT id FROM resource_keys
        WHERE service = $1
          AND is_active
          AND (usage_day < $2 OR usage_today < daily_limit)
        ORDER BY CASE WHEN usage_day = $2 THEN usage_today ELSE 0 END ASC, id ASC
        LIMIT 1
        FOR UPDATE SKIP LOCKED)
RETURNING `+keyColumns+`;`, service, window)
		if err != nil {
			return err
		}
		k, err := scanKey(row)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrNoResourceKey
			}
			return err
		}
		acquired = k
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acquired, nil
}

func (r *resourceKeyRepo) Deactivate(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE resource_keys SET is_active=false WHERE id=$1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
