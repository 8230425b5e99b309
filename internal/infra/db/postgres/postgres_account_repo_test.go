//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ai-generation-queue/internal/domain"
	"ai-generation-queue/internal/domain/model"
)

func TestAccountRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	tm := NewTxManager(testPool)
	repo := NewAccountRepo(testPool, tm)

	seedAccount := func(t *testing.T, balance int64) *model.UserAccount {
		t.Helper()
		cleanup(t)
		acc, err := model.NewUserAccount("u1", "alice", model.TierFree, balance)
		if err != nil {
			t.Fatalf("NewUserAccount: %v", err)
		}
		if err := repo.Save(ctx, nil, acc); err != nil {
			t.Fatalf("save account: %v", err)
		}
		return acc
	}

	t.Run("debit writes balance and ledger atomically", func(t *testing.T) {
		seedAccount(t, 100)

		ok, err := repo.Debit(ctx, "u1", 30, "generation:image")
		if err != nil || !ok {
			t.Fatalf("Debit = (%v, %v), want accepted", ok, err)
		}

		acc, _ := repo.FindByID(ctx, nil, "u1")
		if acc.Balance != 70 {
			t.Errorf("balance = %d, want 70", acc.Balance)
		}
		txs, err := repo.ListTransactions(ctx, "u1", 10)
		if err != nil || len(txs) != 1 {
			t.Fatalf("ListTransactions = (%d, %v), want 1 entry", len(txs), err)
		}
		if txs[0].Delta != -30 || txs[0].ResultingBalance != 70 {
			t.Errorf("ledger entry = %+v", txs[0])
		}
	})

	t.Run("debit past balance mutates nothing", func(t *testing.T) {
		seedAccount(t, 25)

		ok, err := repo.Debit(ctx, "u1", 30, "generation:image")
		if err != nil {
			t.Fatalf("Debit: %v", err)
		}
		if ok {
			t.Fatal("debit accepted past the balance")
		}
		acc, _ := repo.FindByID(ctx, nil, "u1")
		if acc.Balance != 25 {
			t.Errorf("balance = %d, want untouched 25", acc.Balance)
		}
		txs, _ := repo.ListTransactions(ctx, "u1", 10)
		if len(txs) != 0 {
			t.Errorf("rejected debit left %d ledger entries", len(txs))
		}
	})

	t.Run("debit unknown user", func(t *testing.T) {
		cleanup(t)
		if _, err := repo.Debit(ctx, "ghost", 10, "x"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("concurrent debits never overdraw", func(t *testing.T) {
		seedAccount(t, 100)

		const spenders = 10
		var wg sync.WaitGroup
		accepted := make(chan struct{}, spenders)
		for i := 0; i < spenders; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := repo.Debit(ctx, "u1", 30, "generation:image")
				if err != nil {
					t.Errorf("Debit: %v", err)
					return
				}
				if ok {
					accepted <- struct{}{}
				}
			}()
		}
		wg.Wait()
		close(accepted)

		wins := 0
		for range accepted {
			wins++
		}
		if wins != 3 {
			t.Errorf("accepted debits = %d, want 3", wins)
		}
		acc, _ := repo.FindByID(ctx, nil, "u1")
		if acc.Balance != 10 {
			t.Errorf("balance = %d, want 10", acc.Balance)
		}
		txs, _ := repo.ListTransactions(ctx, "u1", 20)
		if len(txs) != wins {
			t.Errorf("ledger entries = %d, want %d", len(txs), wins)
		}
	})

	t.Run("credit appends a positive ledger entry", func(t *testing.T) {
		seedAccount(t, 10)

		if err := repo.Credit(ctx, "u1", 40, "admin refund"); err != nil {
			t.Fatalf("Credit: %v", err)
		}
		acc, _ := repo.FindByID(ctx, nil, "u1")
		if acc.Balance != 50 {
			t.Errorf("balance = %d, want 50", acc.Balance)
		}
		txs, _ := repo.ListTransactions(ctx, "u1", 10)
		if len(txs) != 1 || txs[0].Delta != 40 {
			t.Errorf("ledger = %+v", txs)
		}
	})
}
