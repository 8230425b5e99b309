package redis

import (
	"context"
	"strconv"
	"time"
)

// PositionCache mirrors the advisory queue positions computed by the indexer
// so status reads don't touch the jobs table for display data. The whole
// hash expires after ttl, so positions vanish if the indexer stops running.
type PositionCache struct {
	cli RedisClient
	ttl time.Duration
}

func NewPositionCache(c RedisClient, ttl time.Duration) *PositionCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &PositionCache{cli: c, ttl: ttl}
}

const positionsKey = "queue:positions"

// Replace swaps in the freshly computed ranking.
func (p *PositionCache) Replace(ctx context.Context, positions map[string]int) error {
	if len(positions) == 0 {
		return p.cli.Del(ctx, positionsKey)
	}
	vals := make(map[string]interface{}, len(positions))
	for id, pos := range positions {
		vals[id] = pos
	}
	if err := p.cli.Del(ctx, positionsKey); err != nil {
		return err
	}
	if err := p.cli.HSet(ctx, positionsKey, vals); err != nil {
		return err
	}
	return p.cli.Expire(ctx, positionsKey, p.ttl)
}

// Get returns the advisory position of a job, 0 when unknown.
func (p *PositionCache) Get(ctx context.Context, jobID string) (int, error) {
	v, err := p.cli.HGet(ctx, positionsKey, jobID)
	if err != nil {
		if err == Nil {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, nil
	}
	return n, nil
}
