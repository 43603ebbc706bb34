package cache

import (
	"context"
	"time"
)

// LayeredCache is a two-level cache: L1 in process, L2 shared (redis).
type LayeredCache struct {
	local    BytesCache
	shared   BytesCache
	localTTL time.Duration
}

// NewLayeredCache writes through to both levels. L2 hits are copied into L1 for localTTL,
// since L2 does not report the remaining lifetime.
func NewLayeredCache(local, shared BytesCache, localTTL time.Duration) *LayeredCache {
	return &LayeredCache{local: local, shared: shared, localTTL: localTTL}
}

func (lc *LayeredCache) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	if b, ok, err := lc.local.GetBytes(ctx, key); err == nil && ok {
		return b, true, nil
	}

	b, ok, err := lc.shared.GetBytes(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = lc.local.SetBytes(ctx, key, b, lc.localTTL)
	return b, true, nil
}

func (lc *LayeredCache) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	// Shared level first so a failed write never leaves L1 ahead of L2.
	if err := lc.shared.SetBytes(ctx, key, value, ttl); err != nil {
		return err
	}
	return lc.local.SetBytes(ctx, key, value, min(ttl, lc.localTTL))
}
