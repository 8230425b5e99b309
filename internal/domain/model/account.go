package model

import (
	"time"

	"github.com/google/uuid"

	"ai-generation-queue/internal/domain"
)

// UserAccount holds the token balance gating admission. The balance is never
// negative; every mutation leaves exactly one TokenTransaction behind.
type UserAccount struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Tier      string    `json:"tier"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewUserAccount(id, username, tier string, initialBalance int64) (*UserAccount, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if username == "" || initialBalance < 0 {
		return nil, domain.ErrInvalidArgument
	}
	if tier == "" {
		tier = TierFree
	}
	now := time.Now()
	return &UserAccount{
		ID:        id,
		Username:  username,
		Tier:      tier,
		Balance:   initialBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (a *UserAccount) IsZero() bool { return a == nil || a.ID == "" }

// TokenTransaction is an immutable ledger entry. Created only by the token
// ledger, never mutated or deleted. Delta is negative for charges, positive
// for credits; ResultingBalance captures the balance after applying it.
type TokenTransaction struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Delta            int64     `json:"delta"`
	Reason           string    `json:"reason"`
	ResultingBalance int64     `json:"resulting_balance"`
	CreatedAt        time.Time `json:"created_at"`
}
