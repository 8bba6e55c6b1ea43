package accumulator

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sasha-s/go-deadlock"

	"github.com/supragya/InterchainRelayer/types"
)

// Proof is a merkle inclusion proof for one leaf.
type Proof struct {
	Leaf  common.Hash
	Index uint32
	Path  [TreeDepth]common.Hash
}

// Root is the root the proof commits to.
func (p Proof) Root(family types.HashFamily) common.Hash {
	return BranchRoot(family, p.Leaf, p.Path, p.Index)
}

// Prover keeps every leaf of an origin tree so that inclusion proofs can be
// produced against any earlier leaf count. Leaves must be fed in nonce order.
type Prover struct {
	mu     deadlock.RWMutex
	family types.HashFamily
	leaves []common.Hash
	tree   IncrementalMerkle
}

func NewProver(family types.HashFamily) *Prover {
	return &Prover{family: family, tree: Empty(family)}
}

func (p *Prover) Ingest(leaf common.Hash) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	next, err := p.tree.Ingest(leaf)
	if err != nil {
		return err
	}
	p.tree = next
	p.leaves = append(p.leaves, leaf)
	return nil
}

func (p *Prover) Count() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tree.Count()
}

func (p *Prover) Root() common.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tree.Root()
}

// Tree returns a snapshot of the incremental tree.
func (p *Prover) Tree() IncrementalMerkle {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tree
}

// RootAt returns the root of the tree holding the first count leaves.
func (p *Prover) RootAt(count uint64) (common.Hash, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if count > uint64(len(p.leaves)) {
		return common.Hash{}, errors.Errorf("root at count %d requested, prover holds %d leaves", count, len(p.leaves))
	}
	t := Empty(p.family)
	for _, leaf := range p.leaves[:count] {
		t, _ = t.Ingest(leaf)
	}
	return t.Root(), nil
}

// ProveAt builds the proof for leafIndex against the tree as it was when
// it held count leaves.
func (p *Prover) ProveAt(leafIndex uint32, count uint64) (Proof, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if count > uint64(len(p.leaves)) {
		return Proof{}, errors.Errorf("proof at count %d requested, prover holds %d leaves", count, len(p.leaves))
	}
	if uint64(leafIndex) >= count {
		return Proof{}, errors.Errorf("leaf %d not in tree of %d leaves", leafIndex, count)
	}

	zeros := ZeroHashes(p.family)
	proof := Proof{Leaf: p.leaves[leafIndex], Index: leafIndex}
	layer := append([]common.Hash{}, p.leaves[:count]...)
	idx := uint64(leafIndex)
	for i := 0; i < TreeDepth; i++ {
		sibling := idx ^ 1
		if sibling < uint64(len(layer)) {
			proof.Path[i] = layer[sibling]
		} else {
			proof.Path[i] = zeros[i]
		}
		next := make([]common.Hash, (len(layer)+1)/2)
		for j := range next {
			left := layer[2*j]
			right := zeros[i]
			if 2*j+1 < len(layer) {
				right = layer[2*j+1]
			}
			next[j] = p.family.Hash(left[:], right[:])
		}
		layer = next
		idx /= 2
	}
	return proof, nil
}
