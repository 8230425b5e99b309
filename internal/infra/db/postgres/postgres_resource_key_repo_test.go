//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-generation-queue/internal/domain"
	"ai-generation-queue/internal/domain/model"
)

func TestResourceKeyRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	tm := NewTxManager(testPool)
	repo := NewResourceKeyRepo(testPool, tm)

	seedKey := func(t *testing.T, id string, limit int) {
		t.Helper()
		key, err := model.NewResourceKey(id, model.ServiceOpenAI, "secret-"+id, limit)
		if err != nil {
			t.Fatalf("NewResourceKey: %v", err)
		}
		if err := repo.Save(ctx, nil, key); err != nil {
			t.Fatalf("save key: %v", err)
		}
	}

	day := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	t.Run("acquire increments usage and balances load", func(t *testing.T) {
		cleanup(t)
		seedKey(t, "key-a", 10)
		seedKey(t, "key-b", 10)

		first, err := repo.AcquireLeastLoaded(ctx, model.ServiceOpenAI, day)
		if err != nil {
			t.Fatalf("AcquireLeastLoaded: %v", err)
		}
		if first.ID != "key-a" || first.UsageToday != 1 {
			t.Errorf("first = %s usage=%d, want key-a usage=1", first.ID, first.UsageToday)
		}

		second, err := repo.AcquireLeastLoaded(ctx, model.ServiceOpenAI, day)
		if err != nil {
			t.Fatalf("AcquireLeastLoaded: %v", err)
		}
		if second.ID != "key-b" {
			t.Errorf("second = %s, want least-loaded key-b", second.ID)
		}
	})

	t.Run("pool exhaustion", func(t *testing.T) {
		cleanup(t)
		seedKey(t, "key-a", 1)

		if _, err := repo.AcquireLeastLoaded(ctx, model.ServiceOpenAI, day); err != nil {
			t.Fatalf("AcquireLeastLoaded: %v", err)
		}
		_, err := repo.AcquireLeastLoaded(ctx, model.ServiceOpenAI, day)
		if !errors.Is(err, domain.ErrNoResourceKey) {
			t.Fatalf("err = %v, want ErrNoResourceKey", err)
		}
	})

	t.Run("usage window resets on a new day", func(t *testing.T) {
		cleanup(t)
		seedKey(t, "key-a", 1)

		if _, err := repo.AcquireLeastLoaded(ctx, model.ServiceOpenAI, day); err != nil {
			t.Fatalf("AcquireLeastLoaded: %v", err)
		}
		nextDay := day.Add(24 * time.Hour)
		key, err := repo.AcquireLeastLoaded(ctx, model.ServiceOpenAI, nextDay)
		if err != nil {
			t.Fatalf("AcquireLeastLoaded next day: %v", err)
		}
		if key.UsageToday != 1 {
			t.Errorf("usageToday = %d, want reset window at 1", key.UsageToday)
		}
	})

	t.Run("deactivated keys are skipped", func(t *testing.T) {
		cleanup(t)
		seedKey(t, "key-a", 10)
		seedKey(t, "key-b", 10)

		if err := repo.Deactivate(ctx, "key-a"); err != nil {
			t.Fatalf("Deactivate: %v", err)
		}
		key, err := repo.AcquireLeastLoaded(ctx, model.ServiceOpenAI, day)
		if err != nil {
			t.Fatalf("AcquireLeastLoaded: %v", err)
		}
		if key.ID != "key-b" {
			t.Errorf("acquired %s, want key-b", key.ID)
		}
	})

	t.Run("services draw from separate pools", func(t *testing.T) {
		cleanup(t)
		seedKey(t, "key-a", 10)

		_, err := repo.AcquireLeastLoaded(ctx, model.ServiceGemini, day)
		if !errors.Is(err, domain.ErrNoResourceKey) {
			t.Fatalf("err = %v, want ErrNoResourceKey for empty gemini pool", err)
		}
	})
}
