package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-generation-queue/internal/domain"
	"ai-generation-queue/internal/domain/model"
	"ai-generation-queue/internal/domain/ports/repository"
)

var _ repository.AccountRepository = (*accountRepo)(nil)

type accountRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewAccountRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *accountRepo {
	return &accountRepo{pool: pool, tm: tm}
}

func (r *accountRepo) Save(ctx context.Context, tx repository.Tx, acc *model.UserAccount) error {
	acc.UpdatedAt = time.Now()
	const q = `
INSERT INTO user_accounts (id, username, tier, balance, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET
  username = EXCLUDED.username,
  tier = EXCLUDED.tier,
  updated_at = EXCLUDED.updated_at;`
	_, err := execSQL(ctx, r.pool, tx, q,
		acc.ID, acc.Username, acc.Tier, acc.Balance, acc.CreatedAt, acc.UpdatedAt)
	return err
}

func (r *accountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.UserAccount, error) {
	row, err := pickRow(ctx, r.pool, tx, `
SELECT id, username, tier, balance, created_at, updated_at
  FROM user_accounts WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	var a model.UserAccount
	if err := row.Scan(&a.ID, &a.Username, &a.Tier, &a.Balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Debit subtracts amount and appends the ledger entry in one transaction.
// The balance guard lives in the UPDATE itself, so concurrent charges against
// the same user serialize on the row and no reader ever observes a negative
// balance.
func (r *accountRepo) Debit(ctx context.Context, userID string, amount int64, reason string) (bool, error) {
	if amount <= 0 {
		return false, domain.ErrInvalidArgument
	}
	charged := false
	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		row, err := pickRow(ctx, r.pool, tx, `
UPDATE user_accounts
   SET balance = balance - $2, updated_at = now()
 WHERE id = $1 AND balance >= $2
RETURNING balance;`, userID, amount)
		if err != nil {
			return err
		}
		var resulting int64
		if err := row.Scan(&resulting); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Either the user does not exist or the balance is short;
				// a second lookup inside the same tx tells them apart.
				if _, ferr := r.FindByID(ctx, tx, userID); ferr != nil {
					return ferr
				}
				return nil // insufficient balance, no mutation
			}
			return err
		}
		if err := r.appendEntry(ctx, tx, userID, -amount, reason, resulting); err != nil {
			return err
		}
		charged = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return charged, nil
}

func (r *accountRepo) Credit(ctx context.Context, userID string, amount int64, reason string) error {
	if amount <= 0 {
		return domain.ErrInvalidArgument
	}
	return r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		row, err := pickRow(ctx, r.pool, tx, `
UPDATE user_accounts
   SET balance = balance + $2, updated_at = now()
 WHERE id = $1
RETURNING balance;`, userID, amount)
		if err != nil {
			return err
		}
		var resulting int64
		if err := row.Scan(&resulting); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound
			}
			return err
		}
		return r.appendEntry(ctx, tx, userID, amount, reason, resulting)
	})
}

func (r *accountRepo) appendEntry(ctx context.Context, tx repository.Tx, userID string, delta int64, reason string, resulting int64) error {
	const q = `
INSERT INTO token_transactions (id, user_id, delta, reason, resulting_balance, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	_, err := execSQL(ctx, r.pool, tx, q,
		uuid.NewString(), userID, delta, reason, resulting, time.Now())
	return err
}

func (r *accountRepo) ListTransactions(ctx context.Context, userID string, limit int) ([]*model.TokenTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, delta, reason, resulting_balance, created_at
  FROM token_transactions
 WHERE user_id=$1
 ORDER BY created_at DESC
 LIMIT $2;`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.TokenTransaction
	for rows.Next() {
		var t model.TokenTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Delta, &t.Reason, &t.ResultingBalance, &t.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
