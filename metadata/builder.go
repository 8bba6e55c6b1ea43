package metadata

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/supragya/InterchainRelayer/chains"
	"github.com/supragya/InterchainRelayer/types"
)

// StoreBuilder scopes the attestation store to a validator set.
type StoreBuilder interface {
	Build(ctx context.Context, validators []common.Address) (QuorumStore, error)
}

type StoreBuilderFunc func(ctx context.Context, validators []common.Address) (QuorumStore, error)

func (f StoreBuilderFunc) Build(ctx context.Context, validators []common.Address) (QuorumStore, error) {
	return f(ctx, validators)
}

type validatorSet struct {
	validators []common.Address
	threshold  uint8
}

// BaseBuilder produces metadata for the security module guarding a
// recipient on one destination.
type BaseBuilder struct {
	ism            chains.InterchainSecurityModule
	stores         StoreBuilder
	resolvers      map[chains.ModuleType]Resolver
	validatorCache *lru.TwoQueueCache
}

func NewBaseBuilder(ism chains.InterchainSecurityModule, stores StoreBuilder, provers ProverLookup) (*BaseBuilder, error) {
	vCache, err := lru.New2Q(500)
	if err != nil {
		return nil, err
	}
	return &BaseBuilder{
		ism:    ism,
		stores: stores,
		resolvers: map[chains.ModuleType]Resolver{
			chains.ModuleMessageIDMultisig:  MessageIDResolver{},
			chains.ModuleMerkleRootMultisig: MerkleRootResolver{Provers: provers},
		},
		validatorCache: vCache,
	}, nil
}

// Build returns metadata for msg under the module at ismAddress. A nil
// result with nil error means the metadata cannot be built yet.
func (b *BaseBuilder) Build(ctx context.Context, ismAddress common.Hash, msg *types.Message) ([]byte, error) {
	moduleType, err := b.ism.ModuleType(ctx, ismAddress)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching module type of ism %s", ismAddress.Hex())
	}

	if moduleType == chains.ModuleNull {
		return []byte{}, nil
	}
	resolver, ok := b.resolvers[moduleType]
	if !ok {
		return nil, errors.Errorf("unsupported module type %s for ism %s", moduleType, ismAddress.Hex())
	}

	set, err := b.getValidators(ctx, ismAddress, msg)
	if err != nil {
		return nil, err
	}
	if len(set.validators) == 0 {
		log.Info("No validators returned by ism ", ismAddress.Hex(), " for ", msg.String())
		return nil, nil
	}

	store, err := b.stores.Build(ctx, set.validators)
	if err != nil {
		return nil, errors.Wrap(err, "building checkpoint syncer")
	}
	meta, err := resolver.Resolve(ctx, msg, set.validators, set.threshold, store)
	if err != nil || meta == nil {
		return nil, err
	}
	return Format(resolver.Tokens(), set.validators, set.threshold, meta)
}

func (b *BaseBuilder) getValidators(ctx context.Context, ismAddress common.Hash, msg *types.Message) (validatorSet, error) {
	key := fmt.Sprintf("%s/%d", ismAddress.Hex(), msg.Origin)
	if v, ok := b.validatorCache.Get(key); ok {
		return v.(validatorSet), nil
	}
	validators, threshold, err := b.ism.ValidatorsAndThreshold(ctx, ismAddress, msg)
	if err != nil {
		return validatorSet{}, errors.Wrapf(err, "fetching validators of ism %s", ismAddress.Hex())
	}
	set := validatorSet{validators: validators, threshold: threshold}
	if len(validators) > 0 {
		b.validatorCache.Add(key, set)
	}
	return set, nil
}
