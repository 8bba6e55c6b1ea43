package metadata

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/supragya/InterchainRelayer/accumulator"
	"github.com/supragya/InterchainRelayer/types"
)

// QuorumStore is the attestation store scoped to one validator set.
type QuorumStore interface {
	// FetchCheckpoint looks up the quorum at exactly index.
	FetchCheckpoint(ctx context.Context, family types.HashFamily, validators []common.Address,
		threshold int, index uint32) (*types.QuorumCheckpoint, error)
	// FetchCheckpointInRange returns the highest quorum within the range.
	FetchCheckpointInRange(ctx context.Context, family types.HashFamily, validators []common.Address,
		threshold int, minimumIndex, maximumIndex uint32) (*types.QuorumCheckpoint, error)
}

// MultisigMetadata is everything a multisig security module may need to
// verify a message. MerkleIndex and Proof are only set by resolvers whose
// module verifies inclusion.
type MultisigMetadata struct {
	Checkpoint  types.Checkpoint
	MessageID   common.Hash
	Signatures  []types.Signature
	MerkleIndex *uint32
	Proof       *accumulator.Proof
}

// Resolver fetches the attestations for one multisig module type.
// Resolve returns nil, nil while no usable quorum exists.
type Resolver interface {
	Tokens() []Token
	Resolve(ctx context.Context, msg *types.Message, validators []common.Address,
		threshold uint8, store QuorumStore) (*MultisigMetadata, error)
}

func checkThreshold(validators []common.Address, threshold uint8) error {
	if threshold < 1 || int(threshold) > len(validators) {
		return errors.Errorf("threshold %d out of range for %d validators", threshold, len(validators))
	}
	return nil
}

// MessageIDResolver serves modules that verify a quorum signature over the
// message id alone.
type MessageIDResolver struct{}

func (MessageIDResolver) Tokens() []Token {
	return []Token{TokenCheckpointMailbox, TokenCheckpointRoot, TokenSignatures}
}

func (MessageIDResolver) Resolve(ctx context.Context, msg *types.Message, validators []common.Address,
	threshold uint8, store QuorumStore) (*MultisigMetadata, error) {
	if err := checkThreshold(validators, threshold); err != nil {
		return nil, err
	}
	// checkpoints are signed in the destination's hash family
	family := types.HashFamilyOf(msg.Destination)

	quorum, err := store.FetchCheckpoint(ctx, family, validators, int(threshold), msg.Nonce)
	if err != nil {
		return nil, errors.Wrap(err, "fetching message id multisig metadata")
	}
	if quorum == nil {
		return nil, nil
	}

	id := msg.ID()
	if quorum.Checkpoint.MessageID != id {
		log.Warn("Quorum checkpoint message id ", quorum.Checkpoint.MessageID.Hex(),
			" does not match message id ", id.Hex())
		return nil, nil
	}

	return &MultisigMetadata{
		Checkpoint: quorum.Checkpoint.Checkpoint,
		MessageID:  quorum.Checkpoint.MessageID,
		Signatures: quorum.Signatures,
	}, nil
}

// ProverLookup returns the merkle prover tracking an origin, nil if the
// origin is not indexed.
type ProverLookup func(origin uint32) *accumulator.Prover

// MerkleRootResolver serves modules that verify a quorum-signed root plus
// an inclusion proof of the message.
type MerkleRootResolver struct {
	Provers ProverLookup
}

func (MerkleRootResolver) Tokens() []Token {
	return []Token{
		TokenCheckpointMailbox,
		TokenCheckpointIndex,
		TokenCheckpointMessageID,
		TokenMerkleProof,
		TokenMessageMerkleLeafIndex,
		TokenSignatures,
	}
}

func (r MerkleRootResolver) Resolve(ctx context.Context, msg *types.Message, validators []common.Address,
	threshold uint8, store QuorumStore) (*MultisigMetadata, error) {
	if err := checkThreshold(validators, threshold); err != nil {
		return nil, err
	}
	var prover *accumulator.Prover
	if r.Provers != nil {
		prover = r.Provers(msg.Origin)
	}
	if prover == nil {
		return nil, errors.Errorf("no merkle prover for origin %d", msg.Origin)
	}

	count := prover.Count()
	if count <= uint64(msg.Nonce) {
		log.Debug("Message ", msg.Nonce, " not yet in merkle prover of origin ", msg.Origin)
		return nil, nil
	}

	family := types.HashFamilyOf(msg.Destination)
	quorum, err := store.FetchCheckpointInRange(ctx, family, validators, int(threshold), msg.Nonce, uint32(count-1))
	if err != nil {
		return nil, errors.Wrap(err, "fetching merkle root multisig metadata")
	}
	if quorum == nil {
		return nil, nil
	}

	cp := quorum.Checkpoint.Checkpoint
	proof, err := prover.ProveAt(msg.Nonce, uint64(cp.Index)+1)
	if err != nil {
		return nil, errors.Wrap(err, "building merkle proof")
	}
	if proof.Leaf != msg.IDForMerkleTree() {
		log.Warn("Merkle prover leaf ", proof.Leaf.Hex(), " does not match message ", msg.String())
		return nil, nil
	}
	if root := proof.Root(types.HashFamilyOf(msg.Origin)); root != cp.Root {
		log.Warn("Quorum checkpoint root ", cp.Root.Hex(), " does not match proof root ", root.Hex())
		return nil, nil
	}

	index := msg.Nonce
	return &MultisigMetadata{
		Checkpoint:  cp,
		MessageID:   quorum.Checkpoint.MessageID,
		Signatures:  quorum.Signatures,
		MerkleIndex: &index,
		Proof:       &proof,
	}, nil
}
