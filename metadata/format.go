package metadata

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Token is one field of a multisig metadata blob.
type Token int

const (
	TokenCheckpointMailbox Token = iota
	TokenCheckpointRoot
	TokenCheckpointIndex
	TokenCheckpointMessageID
	TokenMessageMerkleLeafIndex
	TokenMerkleProof
	TokenThreshold
	TokenValidators
	TokenSignatures
)

func (t Token) String() string {
	switch t {
	case TokenCheckpointMailbox:
		return "checkpoint_mailbox"
	case TokenCheckpointRoot:
		return "checkpoint_root"
	case TokenCheckpointIndex:
		return "checkpoint_index"
	case TokenCheckpointMessageID:
		return "checkpoint_message_id"
	case TokenMessageMerkleLeafIndex:
		return "message_merkle_leaf_index"
	case TokenMerkleProof:
		return "merkle_proof"
	case TokenThreshold:
		return "threshold"
	case TokenValidators:
		return "validators"
	case TokenSignatures:
		return "signatures"
	default:
		return fmt.Sprintf("token(%d)", int(t))
	}
}

// ErrMalformedMetadata marks metadata that can never be formatted, as
// opposed to metadata that is not available yet.
var ErrMalformedMetadata = errors.New("malformed metadata")

// Format lays out metadata as the concatenation of tokens. Validators are
// left-padded to 32 bytes; signatures keep the order they were collected in.
func Format(tokens []Token, validators []common.Address, threshold uint8, meta *MultisigMetadata) ([]byte, error) {
	if meta == nil {
		return nil, errors.Wrap(ErrMalformedMetadata, "formatting nil metadata")
	}
	var out []byte
	for _, token := range tokens {
		switch token {
		case TokenCheckpointMailbox:
			out = append(out, meta.Checkpoint.MailboxAddress[:]...)
		case TokenCheckpointRoot:
			out = append(out, meta.Checkpoint.Root[:]...)
		case TokenCheckpointIndex:
			out = appendUint32(out, meta.Checkpoint.Index)
		case TokenCheckpointMessageID:
			out = append(out, meta.MessageID[:]...)
		case TokenMessageMerkleLeafIndex:
			if meta.MerkleIndex == nil {
				return nil, errors.Wrapf(ErrMalformedMetadata, "metadata has no %s", token)
			}
			out = appendUint32(out, *meta.MerkleIndex)
		case TokenMerkleProof:
			if meta.Proof == nil {
				return nil, errors.Wrapf(ErrMalformedMetadata, "metadata has no %s", token)
			}
			for _, node := range meta.Proof.Path {
				out = append(out, node[:]...)
			}
		case TokenThreshold:
			out = append(out, threshold)
		case TokenValidators:
			for _, v := range validators {
				padded := common.BytesToHash(v.Bytes())
				out = append(out, padded[:]...)
			}
		case TokenSignatures:
			for _, sig := range meta.Signatures {
				out = append(out, sig.Bytes()...)
			}
		default:
			return nil, errors.Wrapf(ErrMalformedMetadata, "unknown metadata token %s", token)
		}
	}
	return out, nil
}

func appendUint32(out []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(out, b[:]...)
}
