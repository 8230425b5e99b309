// File: internal/usecase/ledger_uc.go
package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"ai-generation-queue/internal/domain"
	"ai-generation-queue/internal/domain/model"
	"ai-generation-queue/internal/domain/ports/repository"
	"ai-generation-queue/internal/infra/metrics"
)

// TokenLedger gates admission on token balances. Atomicity lives in the
// repository (balance guard + ledger append in one transaction); this layer
// owns reasons, metrics and logging.
type TokenLedger interface {
	Charge(ctx context.Context, userID string, amount int64, reason string) (bool, error)
	Refund(ctx context.Context, userID string, amount int64, reason string) error
	Balance(ctx context.Context, userID string) (int64, error)
	History(ctx context.Context, userID string, limit int) ([]*model.TokenTransaction, error)
}

type LedgerUseCase struct {
	accounts repository.AccountRepository
	log      *zerolog.Logger
}

var _ TokenLedger = (*LedgerUseCase)(nil)

func NewLedgerUseCase(accounts repository.AccountRepository, logger *zerolog.Logger) *LedgerUseCase {
	l := logger.With().Str("component", "TokenLedger").Logger()
	return &LedgerUseCase{accounts: accounts, log: &l}
}

// Charge debits the user. Returns false without mutating anything when the
// balance is short; domain.ErrNotFound for unknown users.
func (uc *LedgerUseCase) Charge(ctx context.Context, userID string, amount int64, reason string) (bool, error) {
	ok, err := uc.accounts.Debit(ctx, userID, amount, reason)
	if err != nil {
		metrics.IncLedgerOp("charge", "error")
		return false, err
	}
	if !ok {
		metrics.IncLedgerOp("charge", "rejected")
		uc.log.Debug().Str("user_id", userID).Int64("amount", amount).Msg("charge rejected: insufficient balance")
		return false, nil
	}
	metrics.IncLedgerOp("charge", "ok")
	metrics.AddTokensMoved("charge", amount)
	return true, nil
}

// Refund credits tokens back. Never fails for valid users.
func (uc *LedgerUseCase) Refund(ctx context.Context, userID string, amount int64, reason string) error {
	if err := uc.accounts.Credit(ctx, userID, amount, reason); err != nil {
		metrics.IncLedgerOp("refund", "error")
		return err
	}
	metrics.IncLedgerOp("refund", "ok")
	metrics.AddTokensMoved("refund", amount)
	uc.log.Info().Str("user_id", userID).Int64("amount", amount).Str("reason", reason).Msg("tokens refunded")
	return nil
}

func (uc *LedgerUseCase) Balance(ctx context.Context, userID string) (int64, error) {
	acc, err := uc.accounts.FindByID(ctx, nil, userID)
	if err != nil {
		return 0, err
	}
	if acc.IsZero() {
		return 0, domain.ErrNotFound
	}
	return acc.Balance, nil
}

func (uc *LedgerUseCase) History(ctx context.Context, userID string, limit int) ([]*model.TokenTransaction, error) {
	return uc.accounts.ListTransactions(ctx, userID, limit)
}
