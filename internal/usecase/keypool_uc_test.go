// File: internal/usecase/keypool_uc_test.go
//go:build !integration

package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-generation-queue/internal/domain"
	"ai-generation-queue/internal/domain/model"
)

func mkKey(t *testing.T, id, service string, limit int) model.ResourceKey {
	t.Helper()
	k, err := model.NewResourceKey(id, service, "secret-"+id, limit)
	if err != nil {
		t.Fatalf("NewResourceKey: %v", err)
	}
	return *k
}

func TestAcquirePrefersLeastLoaded(t *testing.T) {
	repo := newMemKeyRepo(
		mkKey(t, "key-a", model.ServiceOpenAI, 10),
		mkKey(t, "key-b", model.ServiceOpenAI, 10),
	)
	uc := NewKeyPoolUseCase(repo, testLogger())
	ctx := context.Background()

	// Ties break lexicographically, then load balancing alternates.
	first, err := uc.Acquire(ctx, model.ServiceOpenAI)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if first.ID != "key-a" {
		t.Fatalf("first = %s, want key-a on lexicographic tie-break", first.ID)
	}
	if first.UsageToday != 1 {
		t.Errorf("usageToday = %d, want 1 after acquisition", first.UsageToday)
	}

	second, err := uc.Acquire(ctx, model.ServiceOpenAI)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if second.ID != "key-b" {
		t.Fatalf("second = %s, want least-loaded key-b", second.ID)
	}
}

func TestAcquireExhaustedPool(t *testing.T) {
	repo := newMemKeyRepo(mkKey(t, "key-a", model.ServiceOpenAI, 1))
	uc := NewKeyPoolUseCase(repo, testLogger())
	ctx := context.Background()

	if _, err := uc.Acquire(ctx, model.ServiceOpenAI); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := uc.Acquire(ctx, model.ServiceOpenAI); !errors.Is(err, domain.ErrNoResourceKey) {
		t.Fatalf("err = %v, want ErrNoResourceKey", err)
	}
}

func TestAcquireQuotaResetsNextUTCDay(t *testing.T) {
	repo := newMemKeyRepo(mkKey(t, "key-a", model.ServiceOpenAI, 1))
	uc := NewKeyPoolUseCase(repo, testLogger())
	ctx := context.Background()

	day := time.Date(2026, 8, 29, 23, 50, 0, 0, time.UTC)
	uc.now = func() time.Time { return day }
	if _, err := uc.Acquire(ctx, model.ServiceOpenAI); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := uc.Acquire(ctx, model.ServiceOpenAI); !errors.Is(err, domain.ErrNoResourceKey) {
		t.Fatalf("err = %v, want exhaustion within the day", err)
	}

	// Ten minutes later the UTC day flips and the quota window resets.
	uc.now = func() time.Time { return day.Add(10 * time.Minute) }
	key, err := uc.Acquire(ctx, model.ServiceOpenAI)
	if err != nil {
		t.Fatalf("Acquire after day rollover: %v", err)
	}
	if key.UsageToday != 1 {
		t.Errorf("usageToday = %d, want fresh window at 1", key.UsageToday)
	}
}

func TestAcquireSkipsInactiveKeys(t *testing.T) {
	repo := newMemKeyRepo(
		mkKey(t, "key-a", model.ServiceOpenAI, 10),
		mkKey(t, "key-b", model.ServiceOpenAI, 10),
	)
	uc := NewKeyPoolUseCase(repo, testLogger())
	ctx := context.Background()

	if err := uc.Deactivate(ctx, "key-a"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	key, err := uc.Acquire(ctx, model.ServiceOpenAI)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if key.ID != "key-b" {
		t.Fatalf("acquired %s, want key-b only", key.ID)
	}
}

func TestAcquireServiceIsolation(t *testing.T) {
	repo := newMemKeyRepo(mkKey(t, "key-a", model.ServiceGemini, 10))
	uc := NewKeyPoolUseCase(repo, testLogger())

	if _, err := uc.Acquire(context.Background(), model.ServiceOpenAI); !errors.Is(err, domain.ErrNoResourceKey) {
		t.Fatalf("err = %v, want ErrNoResourceKey for the other service's pool", err)
	}
}
