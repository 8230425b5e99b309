// File: cmd/seed/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"ai-generation-queue/internal/config"
	"ai-generation-queue/internal/domain/model"
	pg "ai-generation-queue/internal/infra/db/postgres"
)

// Creates the schema and seeds reference data: the three tiers, a couple of
// demo resource keys and demo accounts. Safe to run repeatedly.

const schema = `
CREATE TABLE IF NOT EXISTS user_accounts (
    id          TEXT PRIMARY KEY,
    username    TEXT NOT NULL,
    tier        TEXT NOT NULL DEFAULT 'free',
    balance     BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS token_transactions (
    id                TEXT PRIMARY KEY,
    user_id           TEXT NOT NULL REFERENCES user_accounts(id),
    delta             BIGINT NOT NULL,
    reason            TEXT NOT NULL DEFAULT '',
    resulting_balance BIGINT NOT NULL,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_token_tx_user ON token_transactions (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS tiers (
    name                    TEXT PRIMARY KEY,
    max_concurrent_requests INT NOT NULL,
    priority_level          INT NOT NULL,
    max_queue_size          INT NOT NULL,
    max_attempts            INT NOT NULL
);

CREATE TABLE IF NOT EXISTS resource_keys (
    id           TEXT PRIMARY KEY,
    service      TEXT NOT NULL,
    credential   TEXT NOT NULL,
    daily_limit  INT NOT NULL,
    usage_day    TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
    usage_today  INT NOT NULL DEFAULT 0,
    last_used_at TIMESTAMPTZ,
    is_active    BOOLEAN NOT NULL DEFAULT true
);
CREATE INDEX IF NOT EXISTS idx_resource_keys_service ON resource_keys (service) WHERE is_active;

CREATE TABLE IF NOT EXISTS generation_jobs (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    kind            TEXT NOT NULL,
    prompt          TEXT NOT NULL DEFAULT '',
    meta            JSONB NOT NULL DEFAULT '{}',
    status          TEXT NOT NULL,
    priority        INT NOT NULL DEFAULT 0,
    tier            JSONB NOT NULL DEFAULT '{}',
    attempts        INT NOT NULL DEFAULT 0,
    max_attempts    INT NOT NULL DEFAULT 3,
    retry_count     INT NOT NULL DEFAULT 0,
    tokens_charged  INT NOT NULL DEFAULT 0,
    progress        INT NOT NULL DEFAULT 0,
    resource_key_id TEXT,
    result          TEXT NOT NULL DEFAULT '',
    error           TEXT NOT NULL DEFAULT '',
    queue_position  INT NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL,
    started_at      TIMESTAMPTZ,
    completed_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_jobs_waiting
    ON generation_jobs (priority DESC, created_at ASC, id ASC)
    WHERE status IN ('queued', 'pending');
CREATE INDEX IF NOT EXISTS idx_jobs_user_active
    ON generation_jobs (user_id)
    WHERE status IN ('queued', 'pending', 'processing');
CREATE INDEX IF NOT EXISTS idx_jobs_stuck
    ON generation_jobs (updated_at)
    WHERE status = 'processing';
`

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: also seed demo keys and accounts")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, schema); err != nil {
		log.Fatalf("apply schema: %v", err)
	}
	fmt.Println("schema applied")

	tm := pg.NewTxManager(pool)
	tierRepo := pg.NewTierRepo(pool)
	keyRepo := pg.NewResourceKeyRepo(pool, tm)
	accountRepo := pg.NewAccountRepo(pool, tm)

	tiers := []model.TierConfig{
		{Name: model.TierFree, MaxConcurrentRequests: 1, PriorityLevel: 1, MaxQueueSize: 5, MaxAttempts: 3},
		{Name: model.TierPremium, MaxConcurrentRequests: 3, PriorityLevel: 5, MaxQueueSize: 20, MaxAttempts: 3},
		{Name: model.TierEnterprise, MaxConcurrentRequests: 5, PriorityLevel: 10, MaxQueueSize: 50, MaxAttempts: 5},
	}
	for i := range tiers {
		if err := tierRepo.Save(ctx, nil, &tiers[i]); err != nil {
			log.Fatalf("seed tier %q: %v", tiers[i].Name, err)
		}
		fmt.Printf("seeded tier: %s (concurrency=%d, priority=%d, queue=%d, attempts=%d)\n",
			tiers[i].Name, tiers[i].MaxConcurrentRequests, tiers[i].PriorityLevel,
			tiers[i].MaxQueueSize, tiers[i].MaxAttempts)
	}

	if !*devMode {
		fmt.Println("seeding complete (run with -dev for demo keys and accounts)")
		return
	}

	keys := []struct {
		id, service, credential string
		limit                   int
	}{
		{"openai-demo-1", model.ServiceOpenAI, "sk-demo-openai-1", 100},
		{"openai-demo-2", model.ServiceOpenAI, "sk-demo-openai-2", 100},
		{"gemini-demo-1", model.ServiceGemini, "demo-gemini-1", 50},
	}
	for _, k := range keys {
		key, err := model.NewResourceKey(k.id, k.service, k.credential, k.limit)
		if err != nil {
			log.Fatalf("build key %q: %v", k.id, err)
		}
		if err := keyRepo.Save(ctx, nil, key); err != nil {
			log.Fatalf("seed key %q: %v", k.id, err)
		}
		fmt.Printf("seeded key: %s (service=%s, daily_limit=%d)\n", k.id, k.service, k.limit)
	}

	accounts := []struct {
		id, username, tier string
		balance            int64
	}{
		{"demo-free", "demo-free", model.TierFree, 100},
		{"demo-premium", "demo-premium", model.TierPremium, 1000},
		{"demo-enterprise", "demo-enterprise", model.TierEnterprise, 10000},
	}
	for _, a := range accounts {
		acc, err := model.NewUserAccount(a.id, a.username, a.tier, a.balance)
		if err != nil {
			log.Fatalf("build account %q: %v", a.id, err)
		}
		if err := accountRepo.Save(ctx, nil, acc); err != nil {
			log.Fatalf("seed account %q: %v", a.id, err)
		}
		fmt.Printf("seeded account: %s (tier=%s, balance=%d)\n", a.id, a.tier, a.balance)
	}

	fmt.Println("seeding complete")
}
