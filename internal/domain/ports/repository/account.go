package repository

import (
	"context"

	"ai-generation-queue/internal/domain/model"
)

// AccountRepository owns token balances and the append-only ledger.
type AccountRepository interface {
	Save(ctx context.Context, tx Tx, acc *model.UserAccount) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.UserAccount, error)

	// Debit atomically checks the balance, subtracts amount and appends a
	// ledger entry in one transaction. Returns false (and mutates nothing)
	// when the balance is insufficient; domain.ErrNotFound for unknown users.
	Debit(ctx context.Context, userID string, amount int64, reason string) (bool, error)

	// Credit is the symmetric ledger-backed deposit. It never fails for
	// valid users.
	Credit(ctx context.Context, userID string, amount int64, reason string) error

	ListTransactions(ctx context.Context, userID string, limit int) ([]*model.TokenTransaction, error)
}
