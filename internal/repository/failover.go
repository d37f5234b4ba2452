package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"waitline/internal/models"
	"waitline/internal/queue"

	"github.com/rs/zerolog"
)

// FailoverSnapshotCache serves from the primary cache until it fails, then
// switches to the fallback and probes the primary again after a minute.
type FailoverSnapshotCache struct {
	primary  queue.Cache
	fallback queue.Cache
	logger   *zerolog.Logger

	isDown    atomic.Bool
	checkMu   sync.Mutex
	lastCheck time.Time
}

func NewFailoverSnapshotCache(primary, fallback queue.Cache, logger *zerolog.Logger) *FailoverSnapshotCache {
	return &FailoverSnapshotCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverSnapshotCache) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary snapshot cache failed, falling back to memory")
	r.isDown.Store(true)
	r.checkMu.Lock()
	r.lastCheck = time.Now()
	r.checkMu.Unlock()
}

func (r *FailoverSnapshotCache) shouldProbe() bool {
	r.checkMu.Lock()
	defer r.checkMu.Unlock()
	if time.Since(r.lastCheck) <= time.Minute {
		return false
	}
	r.lastCheck = time.Now()
	return true
}

func (r *FailoverSnapshotCache) Get(ctx context.Context, shopID int64) (*models.QueueSnapshot, error) {
	if !r.isDown.Load() {
		snap, err := r.primary.Get(ctx, shopID)
		if err == nil {
			return snap, nil
		}
		r.markDown(err)
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && r.shouldProbe() {
		snap, err := r.primary.Get(ctx, shopID)
		if err == nil {
			r.isDown.Store(false)
			return snap, nil
		}
	}

	return r.fallback.Get(ctx, shopID)
}

func (r *FailoverSnapshotCache) Set(ctx context.Context, shopID int64, snap *models.QueueSnapshot) error {
	if !r.isDown.Load() {
		err := r.primary.Set(ctx, shopID, snap)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.Set(ctx, shopID, snap)
}

// Invalidate always clears both layers: a stale snapshot left in a recovered
// primary would otherwise resurface after failback.
func (r *FailoverSnapshotCache) Invalidate(ctx context.Context, shopID int64) error {
	var primaryErr error
	if !r.isDown.Load() {
		primaryErr = r.primary.Invalidate(ctx, shopID)
		if primaryErr != nil {
			r.markDown(primaryErr)
		}
	}

	if err := r.fallback.Invalidate(ctx, shopID); err != nil {
		return err
	}
	return primaryErr
}
