package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-generation-queue/internal/domain/model"
	"ai-generation-queue/internal/domain/ports/repository"
	"ai-generation-queue/internal/infra/metrics"
	red "ai-generation-queue/internal/infra/redis"
)

var _ repository.TierRepository = (*tierRepoCacheDecorator)(nil)

// Tier rows are read on every admission and change rarely; the decorator
// keeps them in redis so the hot path skips the database.
type tierRepoCacheDecorator struct {
	inner repository.TierRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewTierRepoCacheDecorator(inner repository.TierRepository, cache red.RedisClient) repository.TierRepository {
	return &tierRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   1 * time.Hour,
	}
}

func (d *tierRepoCacheDecorator) FindByName(ctx context.Context, tx repository.Tx, name string) (*model.TierConfig, error) {
	key := fmt.Sprintf("tier:%s", name)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		metrics.IncCacheRequest("tier", "hit")
		var tier model.TierConfig
		if json.Unmarshal([]byte(val), &tier) == nil {
			return &tier, nil
		}
	}

	metrics.IncCacheRequest("tier", "miss")
	tier, err := d.inner.FindByName(ctx, tx, name)
	if err != nil {
		return nil, err
	}
	if tier != nil {
		bytes, _ := json.Marshal(tier)
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return tier, nil
}

// Writes must invalidate both the single entry and the full list.
func (d *tierRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, tier *model.TierConfig) error {
	_ = d.cache.Del(ctx, fmt.Sprintf("tier:%s", tier.Name), "tiers:all")
	return d.inner.Save(ctx, tx, tier)
}

func (d *tierRepoCacheDecorator) ListAll(ctx context.Context, tx repository.Tx) ([]*model.TierConfig, error) {
	key := "tiers:all"
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		metrics.IncCacheRequest("tier_list", "hit")
		var tiers []*model.TierConfig
		if json.Unmarshal([]byte(val), &tiers) == nil {
			return tiers, nil
		}
	}

	metrics.IncCacheRequest("tier_list", "miss")
	tiers, err := d.inner.ListAll(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(tiers) > 0 {
		bytes, _ := json.Marshal(tiers)
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return tiers, nil
}
