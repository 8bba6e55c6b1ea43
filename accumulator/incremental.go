package accumulator

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/supragya/InterchainRelayer/types"
)

const (
	TreeDepth = 32
	// MaxLeaves is the capacity of a depth-32 tree. The last slot stays
	// empty, as in the on-chain tree.
	MaxLeaves uint64 = 1<<TreeDepth - 1
)

// ErrTreeFull is returned when ingesting past MaxLeaves. It signals a
// misconfigured origin, never a condition that clears on retry.
var ErrTreeFull = errors.New("merkle tree full")

var (
	zeroHashesMu sync.Mutex
	zeroHashes   = map[string]*[TreeDepth + 1]common.Hash{}
)

// ZeroHashes returns the roots of empty subtrees of height 0..TreeDepth for
// family. Index TreeDepth is the root of the empty tree.
func ZeroHashes(family types.HashFamily) [TreeDepth + 1]common.Hash {
	zeroHashesMu.Lock()
	defer zeroHashesMu.Unlock()
	if z, ok := zeroHashes[family.Name()]; ok {
		return *z
	}
	var z [TreeDepth + 1]common.Hash
	for i := 0; i < TreeDepth; i++ {
		z[i+1] = family.Hash(z[i][:], z[i][:])
	}
	zeroHashes[family.Name()] = &z
	return z
}

// IncrementalMerkle is the append-only commitment tree kept by an origin
// mailbox. Only the left frontier (branch) is stored. It is a value type:
// Ingest returns the next state and leaves the receiver untouched, so a
// copy handed to another goroutine never changes underneath it.
type IncrementalMerkle struct {
	branch [TreeDepth]common.Hash
	count  uint64
	family types.HashFamily
}

// New restores a tree from persisted or fetched state.
func New(family types.HashFamily, branch [TreeDepth]common.Hash, count uint64) IncrementalMerkle {
	return IncrementalMerkle{branch: branch, count: count, family: family}
}

func Empty(family types.HashFamily) IncrementalMerkle {
	return IncrementalMerkle{family: family}
}

func (t IncrementalMerkle) Count() uint64 { return t.count }

func (t IncrementalMerkle) Branch() [TreeDepth]common.Hash { return t.branch }

func (t IncrementalMerkle) Family() types.HashFamily { return t.family }

// Ingest appends leaf and returns the resulting tree.
func (t IncrementalMerkle) Ingest(leaf common.Hash) (IncrementalMerkle, error) {
	if t.count >= MaxLeaves {
		return t, ErrTreeFull
	}
	t.count++
	size := t.count
	node := leaf
	for i := 0; i < TreeDepth; i++ {
		if size&1 == 1 {
			t.branch[i] = node
			return t, nil
		}
		node = t.family.Hash(t.branch[i][:], node[:])
		size /= 2
	}
	// unreachable while count <= MaxLeaves
	return t, nil
}

// Root folds the branch into the tree root, padding absent right siblings
// with zero hashes.
func (t IncrementalMerkle) Root() common.Hash {
	zeros := ZeroHashes(t.family)
	var node common.Hash
	for i := 0; i < TreeDepth; i++ {
		if (t.count>>uint(i))&1 == 1 {
			node = t.family.Hash(t.branch[i][:], node[:])
		} else {
			node = t.family.Hash(node[:], zeros[i][:])
		}
	}
	return node
}

// BranchRoot computes the root implied by leaf sitting at index with the
// given sibling path.
func BranchRoot(family types.HashFamily, leaf common.Hash, path [TreeDepth]common.Hash, index uint32) common.Hash {
	current := leaf
	for i := 0; i < TreeDepth; i++ {
		if (index>>uint(i))&1 == 1 {
			current = family.Hash(path[i][:], current[:])
		} else {
			current = family.Hash(current[:], path[i][:])
		}
	}
	return current
}
