package checkpoint

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/supragya/InterchainRelayer/types"
)

// ErrLocalSyncerNotAllowed is returned for file:// locations unless local
// syncers were explicitly enabled.
var ErrLocalSyncerNotAllowed = errors.New("local checkpoint syncers are not allowed")

// CheckpointSyncer reads and writes one validator's signed checkpoints.
type CheckpointSyncer interface {
	// LatestIndex reports the highest index the validator has signed, false
	// if nothing was written yet.
	LatestIndex(ctx context.Context) (uint32, bool, error)
	// FetchCheckpoint returns nil, nil when no checkpoint exists at index.
	FetchCheckpoint(ctx context.Context, family types.HashFamily, index uint32) (*types.SignedCheckpointWithMessageID, error)
	WriteCheckpoint(ctx context.Context, family types.HashFamily, signed *types.SignedCheckpointWithMessageID) error
	UpdateLatestIndex(ctx context.Context, index uint32) error
}

const indexKey = "index.json"

// checkpointKey names the object holding the checkpoint at index. Keccak
// checkpoints keep the historical name; other families carry a suffix.
func checkpointKey(family types.HashFamily, index uint32) string {
	if family.Name() == types.Keccak256.Name() {
		return fmt.Sprintf("checkpoint_%d_with_id.json", index)
	}
	return fmt.Sprintf("checkpoint_%d_with_id_%s.json", index, family.Name())
}

// ParseLocation builds a syncer from an announced storage location.
// Supported forms are file:///path/to/dir and
// redis://[user:pass@]host:port/db?prefix=name.
func ParseLocation(location string, allowLocal bool) (CheckpointSyncer, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing checkpoint syncer location %q", location)
	}
	switch u.Scheme {
	case "file":
		if !allowLocal {
			return nil, ErrLocalSyncerNotAllowed
		}
		path := u.Path
		if u.Host != "" {
			path = u.Host + path
		}
		if path == "" {
			return nil, errors.Errorf("empty path in checkpoint syncer location %q", location)
		}
		return NewLocalStorage(path), nil
	case "redis", "rediss":
		query := u.Query()
		prefix := strings.TrimSpace(query.Get("prefix"))
		query.Del("prefix")
		u.RawQuery = query.Encode()
		opts, err := redis.ParseURL(u.String())
		if err != nil {
			return nil, errors.Wrapf(err, "parsing redis location %q", location)
		}
		return NewRedisStorage(redis.NewClient(opts), prefix), nil
	default:
		return nil, errors.Errorf("unknown checkpoint syncer location scheme %q", u.Scheme)
	}
}
