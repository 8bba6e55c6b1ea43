package checkpoint

import (
	"context"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/supragya/InterchainRelayer/types"
)

// MultisigCheckpointSyncer assembles quorum checkpoints from the stores of
// a validator set.
type MultisigCheckpointSyncer struct {
	syncers map[common.Address]CheckpointSyncer
}

func NewMultisigCheckpointSyncer(syncers map[common.Address]CheckpointSyncer) *MultisigCheckpointSyncer {
	return &MultisigCheckpointSyncer{syncers: syncers}
}

// FetchCheckpoint returns the quorum checkpoint at exactly index, or nil
// when the validators have not reached quorum there.
func (m *MultisigCheckpointSyncer) FetchCheckpoint(ctx context.Context, family types.HashFamily,
	validators []common.Address, threshold int, index uint32) (*types.QuorumCheckpoint, error) {
	start, ok, err := m.quorumCeiling(ctx, validators, threshold)
	if err != nil || !ok {
		return nil, err
	}
	if start < index {
		log.Debug("Highest quorum index ", start, " below requested index ", index)
		return nil, nil
	}
	return m.quorumAt(ctx, family, validators, threshold, index)
}

// FetchCheckpointInRange returns the highest quorum checkpoint within
// [minimumIndex, maximumIndex], or nil when there is none.
func (m *MultisigCheckpointSyncer) FetchCheckpointInRange(ctx context.Context, family types.HashFamily,
	validators []common.Address, threshold int, minimumIndex, maximumIndex uint32) (*types.QuorumCheckpoint, error) {
	start, ok, err := m.quorumCeiling(ctx, validators, threshold)
	if err != nil || !ok {
		return nil, err
	}
	if start > maximumIndex {
		start = maximumIndex
	}
	if start < minimumIndex {
		log.Debug("Highest quorum index ", start, " below minimum ", minimumIndex)
		return nil, nil
	}

	for index := int64(start); index >= int64(minimumIndex); index-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		quorum, err := m.quorumAt(ctx, family, validators, threshold, uint32(index))
		if err != nil {
			return nil, err
		}
		if quorum != nil {
			return quorum, nil
		}
	}
	return nil, nil
}

// quorumCeiling returns the threshold-th highest latest index, the highest
// index that could possibly have quorum. False when too few validators have
// signed anything.
func (m *MultisigCheckpointSyncer) quorumCeiling(ctx context.Context, validators []common.Address, threshold int) (uint32, bool, error) {
	if threshold < 1 || threshold > len(validators) {
		return 0, false, errors.Errorf("invalid threshold %d for %d validators", threshold, len(validators))
	}
	latest, err := m.latestIndices(ctx, validators)
	if err != nil {
		return 0, false, err
	}
	if len(latest) < threshold {
		log.Debug("Not enough validators have signed checkpoints, have ", len(latest), " need ", threshold)
		return 0, false, nil
	}
	sort.Slice(latest, func(i, j int) bool { return latest[i] > latest[j] })
	return latest[threshold-1], true, nil
}

func (m *MultisigCheckpointSyncer) latestIndices(ctx context.Context, validators []common.Address) ([]uint32, error) {
	var (
		indices  []uint32
		attempts int
		failures int
		lastErr  error
	)
	for _, validator := range validators {
		syncer, ok := m.syncers[validator]
		if !ok {
			continue
		}
		attempts++
		index, found, err := syncer.LatestIndex(ctx)
		if err != nil {
			log.WithFields(log.Fields{"validator": validator.Hex()}).Debug("Failed to fetch latest index: ", err)
			failures++
			lastErr = err
			continue
		}
		if found {
			indices = append(indices, index)
		}
	}
	if attempts > 0 && failures == attempts {
		return nil, errors.Wrap(lastErr, "fetching latest index from every validator failed")
	}
	return indices, nil
}

type signedGroup struct {
	value      types.CheckpointWithMessageID
	signatures []types.Signature
	signers    map[common.Address]struct{}
}

func (m *MultisigCheckpointSyncer) quorumAt(ctx context.Context, family types.HashFamily,
	validators []common.Address, threshold int, index uint32) (*types.QuorumCheckpoint, error) {
	var (
		groups   = map[common.Hash]*signedGroup{}
		attempts int
		failures int
		lastErr  error
	)
	for _, validator := range validators {
		syncer, ok := m.syncers[validator]
		if !ok {
			continue
		}
		attempts++
		fields := log.Fields{"validator": validator.Hex(), "index": index}

		signed, err := syncer.FetchCheckpoint(ctx, family, index)
		if err != nil {
			log.WithFields(fields).Debug("Failed to fetch signed checkpoint: ", err)
			failures++
			lastErr = err
			continue
		}
		if signed == nil {
			continue
		}
		if signed.Value.Checkpoint.Index != index {
			log.WithFields(fields).Debug("Checkpoint index mismatch, got ", signed.Value.Checkpoint.Index)
			continue
		}
		signer, err := signed.Recover(family)
		if err != nil || signer != validator {
			log.WithFields(fields).Debug("Checkpoint not signed by validator, recovered ", signer.Hex())
			continue
		}

		hash := signed.Value.SigningHash(family)
		group, ok := groups[hash]
		if !ok {
			group = &signedGroup{value: signed.Value, signers: map[common.Address]struct{}{}}
			groups[hash] = group
		}
		if _, dup := group.signers[validator]; dup {
			continue
		}
		group.signers[validator] = struct{}{}
		group.signatures = append(group.signatures, signed.Signature)

		if len(group.signers) >= threshold {
			log.WithFields(fields).Debug("Found quorum checkpoint with ", len(group.signers), " signatures")
			return &types.QuorumCheckpoint{Checkpoint: group.value, Signatures: group.signatures}, nil
		}
	}
	if attempts > 0 && failures == attempts {
		return nil, errors.Wrapf(lastErr, "fetching checkpoint %d from every validator failed", index)
	}
	return nil, nil
}
