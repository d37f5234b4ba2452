package repository

import (
	"context"
	"sync"
	"time"

	"waitline/internal/models"
)

// MemorySnapshotCache is the in-process fallback cache. Entries expire after
// the configured TTL; expired entries read as a miss.
type MemorySnapshotCache struct {
	snapshots sync.Map
	ttl       time.Duration
}

type memoryEntry struct {
	snap      *models.QueueSnapshot
	expiresAt time.Time
}

func NewMemorySnapshotCache(ttl time.Duration) *MemorySnapshotCache {
	return &MemorySnapshotCache{
		ttl: ttl,
	}
}

func (r *MemorySnapshotCache) Get(ctx context.Context, shopID int64) (*models.QueueSnapshot, error) {
	val, ok := r.snapshots.Load(shopID)
	if !ok {
		return nil, nil
	}
	entry := val.(*memoryEntry)
	if time.Now().After(entry.expiresAt) {
		r.snapshots.Delete(shopID)
		return nil, nil
	}
	return entry.snap, nil
}

func (r *MemorySnapshotCache) Set(ctx context.Context, shopID int64, snap *models.QueueSnapshot) error {
	r.snapshots.Store(shopID, &memoryEntry{
		snap:      snap,
		expiresAt: time.Now().Add(r.ttl),
	})
	return nil
}

func (r *MemorySnapshotCache) Invalidate(ctx context.Context, shopID int64) error {
	r.snapshots.Delete(shopID)
	return nil
}
