package checkpoint

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/supragya/InterchainRelayer/types"
)

// redisClient is the subset of *redis.Client used by RedisStorage.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisStorage keeps checkpoints under "<prefix>:<name>" keys. Entries never
// expire; checkpoints are immutable once signed.
type RedisStorage struct {
	rdb    redisClient
	prefix string
}

func NewRedisStorage(rdb redisClient, prefix string) *RedisStorage {
	return &RedisStorage{rdb: rdb, prefix: prefix}
}

func (r *RedisStorage) key(name string) string {
	if r.prefix == "" {
		return name
	}
	return r.prefix + ":" + name
}

func (r *RedisStorage) LatestIndex(ctx context.Context) (uint32, bool, error) {
	v, err := r.rdb.Get(ctx, r.key(indexKey)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "reading latest index from redis")
	}
	index, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, false, errors.Wrap(err, "decoding latest index")
	}
	return uint32(index), true, nil
}

func (r *RedisStorage) FetchCheckpoint(ctx context.Context, family types.HashFamily, index uint32) (*types.SignedCheckpointWithMessageID, error) {
	v, err := r.rdb.Get(ctx, r.key(checkpointKey(family, index))).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading checkpoint %d from redis", index)
	}
	var signed types.SignedCheckpointWithMessageID
	if err := json.Unmarshal([]byte(v), &signed); err != nil {
		return nil, errors.Wrapf(err, "decoding checkpoint %d", index)
	}
	return &signed, nil
}

func (r *RedisStorage) WriteCheckpoint(ctx context.Context, family types.HashFamily, signed *types.SignedCheckpointWithMessageID) error {
	data, err := json.Marshal(signed)
	if err != nil {
		return err
	}
	key := r.key(checkpointKey(family, signed.Value.Checkpoint.Index))
	return errors.Wrapf(r.rdb.Set(ctx, key, data, 0).Err(), "writing %s to redis", key)
}

func (r *RedisStorage) UpdateLatestIndex(ctx context.Context, index uint32) error {
	return errors.Wrap(r.rdb.Set(ctx, r.key(indexKey), strconv.FormatUint(uint64(index), 10), 0).Err(), "writing latest index to redis")
}
