package checkpoint

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/supragya/InterchainRelayer/types"
)

// CachingSyncer remembers fetched checkpoints. A signed checkpoint at a
// given index never changes, so only hits are cached; misses and the latest
// index always go to the backing store.
type CachingSyncer struct {
	CheckpointSyncer
	cache *lru.TwoQueueCache
}

func NewCachingSyncer(inner CheckpointSyncer, size int) (*CachingSyncer, error) {
	cache, err := lru.New2Q(size)
	if err != nil {
		return nil, err
	}
	return &CachingSyncer{CheckpointSyncer: inner, cache: cache}, nil
}

func (c *CachingSyncer) FetchCheckpoint(ctx context.Context, family types.HashFamily, index uint32) (*types.SignedCheckpointWithMessageID, error) {
	key := fmt.Sprintf("%s/%d", family.Name(), index)
	if v, ok := c.cache.Get(key); ok {
		return v.(*types.SignedCheckpointWithMessageID), nil
	}
	signed, err := c.CheckpointSyncer.FetchCheckpoint(ctx, family, index)
	if err != nil || signed == nil {
		return signed, err
	}
	c.cache.Add(key, signed)
	return signed, nil
}
