package checkpoint

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ValidatorAnnounce reports where validators publish their checkpoints.
// Locations for a validator are in announcement order, oldest first.
type ValidatorAnnounce interface {
	StorageLocations(ctx context.Context, validators []common.Address) ([][]string, error)
}

// StaticAnnounce serves storage locations from configuration.
type StaticAnnounce map[common.Address][]string

func (s StaticAnnounce) StorageLocations(ctx context.Context, validators []common.Address) ([][]string, error) {
	out := make([][]string, len(validators))
	for i, v := range validators {
		out[i] = s[v]
	}
	return out, nil
}

const fetchedCheckpointCacheSize = 500

// SyncerBuilder turns a validator set into a MultisigCheckpointSyncer.
// Syncers are shared between validator sets that announce the same
// location.
type SyncerBuilder struct {
	announce   ValidatorAnnounce
	allowLocal bool

	mu         sync.Mutex
	byLocation map[string]CheckpointSyncer
}

func NewSyncerBuilder(announce ValidatorAnnounce, allowLocal bool) *SyncerBuilder {
	return &SyncerBuilder{
		announce:   announce,
		allowLocal: allowLocal,
		byLocation: make(map[string]CheckpointSyncer),
	}
}

// Build returns a quorum view over validators. Validators without a usable
// location are left out; they simply never contribute signatures.
func (b *SyncerBuilder) Build(ctx context.Context, validators []common.Address) (*MultisigCheckpointSyncer, error) {
	locations, err := b.announce.StorageLocations(ctx, validators)
	if err != nil {
		return nil, errors.Wrap(err, "fetching validator storage locations")
	}
	if len(locations) != len(validators) {
		return nil, errors.Errorf("got storage locations for %d of %d validators", len(locations), len(validators))
	}

	syncers := make(map[common.Address]CheckpointSyncer)
	for i, validator := range validators {
		// latest announcement wins
		for j := len(locations[i]) - 1; j >= 0; j-- {
			syncer, err := b.syncerFor(locations[i][j])
			if err != nil {
				if errors.Cause(err) == ErrLocalSyncerNotAllowed {
					log.Debug("Skipping local checkpoint syncer for validator ", validator.Hex())
				} else {
					log.Warn("Unusable checkpoint syncer location for validator ", validator.Hex(), ": ", err)
				}
				continue
			}
			syncers[validator] = syncer
			break
		}
		if _, ok := syncers[validator]; !ok {
			log.Warn("No checkpoint syncer for validator ", validator.Hex())
		}
	}
	return NewMultisigCheckpointSyncer(syncers), nil
}

func (b *SyncerBuilder) syncerFor(location string) (CheckpointSyncer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.byLocation[location]; ok {
		return s, nil
	}
	inner, err := ParseLocation(location, b.allowLocal)
	if err != nil {
		return nil, err
	}
	s, err := NewCachingSyncer(inner, fetchedCheckpointCacheSize)
	if err != nil {
		return nil, err
	}
	b.byLocation[location] = s
	return s, nil
}
