package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"
)

// HashFamily is a 32-byte content hash. Two families are in use: Keccak256
// for ethereum-protocol domains and Blake2b256 for cardano-protocol domains.
type HashFamily interface {
	Name() string
	Hash(data ...[]byte) common.Hash
}

var (
	Keccak256  HashFamily = keccakFamily{}
	Blake2b256 HashFamily = blake2bFamily{}
)

type keccakFamily struct{}

func (keccakFamily) Name() string { return "keccak256" }

func (keccakFamily) Hash(data ...[]byte) common.Hash {
	return crypto.Keccak256Hash(data...)
}

type blake2bFamily struct{}

func (blake2bFamily) Name() string { return "blake2b" }

func (blake2bFamily) Hash(data ...[]byte) common.Hash {
	h, _ := blake2b.New256(nil) // only fails for oversized keys
	for _, b := range data {
		h.Write(b)
	}
	return common.BytesToHash(h.Sum(nil))
}
