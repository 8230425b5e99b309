// File: internal/infra/sched/indexer.go
package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	redisinfra "ai-generation-queue/internal/infra/redis"
	"ai-generation-queue/internal/usecase"
)

// IndexerWorker refreshes advisory queue positions on a fixed cadence and
// on demand via Wake. Positions are display data only, so a skipped or
// failed pass costs nothing but staleness.
type IndexerWorker struct {
	interval time.Duration
	indexer  usecase.QueueIndexer
	locker   redisinfra.Locker
	wake     chan struct{}
	log      *zerolog.Logger
}

func NewIndexerWorker(interval time.Duration, indexer usecase.QueueIndexer, locker redisinfra.Locker, logger *zerolog.Logger) *IndexerWorker {
	idxLog := logger.With().Str("component", "IndexerWorker").Logger()
	return &IndexerWorker{
		interval: interval,
		indexer:  indexer,
		locker:   locker,
		wake:     make(chan struct{}, 1),
		log:      &idxLog,
	}
}

// Wake schedules a reindex pass outside the regular cadence. Never blocks.
func (w *IndexerWorker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *IndexerWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting queue indexer")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping queue indexer")
			return ctx.Err()
		case <-ticker.C:
		case <-w.wake:
		}
		w.pass(ctx)
	}
}

func (w *IndexerWorker) pass(ctx context.Context) {
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, "indexer:pass", w.interval)
		if err != nil {
			if errors.Is(err, redisinfra.ErrLockHeld) {
				return
			}
			w.log.Warn().Err(err).Msg("indexer lock unavailable")
		} else {
			defer func() { _ = w.locker.Unlock(ctx, "indexer:pass", token) }()
		}
	}

	n, err := w.indexer.Reindex(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("reindex pass failed")
		return
	}
	w.log.Debug().Int("waiting", n).Msg("queue positions refreshed")
}
