package types

import (
	"crypto/ecdsa"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// SignatureLength is the size of an r || s || v signature.
const SignatureLength = 65

var domainHashSuffix = []byte("HYPERLANE")

// Checkpoint states that, as of leaf count Index+1, the origin mailbox's
// commitment root was Root.
type Checkpoint struct {
	MailboxAddress common.Hash `json:"mailbox_address"`
	MailboxDomain  uint32      `json:"mailbox_domain"`
	Root           common.Hash `json:"root"`
	Index          uint32      `json:"index"`
}

// CheckpointWithMessageID binds a message id to a checkpoint, asserting the
// message was included at that point.
type CheckpointWithMessageID struct {
	Checkpoint Checkpoint  `json:"checkpoint"`
	MessageID  common.Hash `json:"message_id"`
}

// DomainHash commits to the mailbox the checkpoint was taken from.
func DomainHash(family HashFamily, domain uint32, mailbox common.Hash) common.Hash {
	var d [4]byte
	binary.BigEndian.PutUint32(d[:], domain)
	return family.Hash(d[:], mailbox[:], domainHashSuffix)
}

// SigningHash is the digest validators attest to.
func (c CheckpointWithMessageID) SigningHash(family HashFamily) common.Hash {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], c.Checkpoint.Index)
	domainHash := DomainHash(family, c.Checkpoint.MailboxDomain, c.Checkpoint.MailboxAddress)
	return family.Hash(domainHash[:], c.Checkpoint.Root[:], idx[:], c.MessageID[:])
}

// EthSignedMessageHash wraps the signing hash in the EIP-191 personal
// message envelope; this is what the validator key actually signs.
func (c CheckpointWithMessageID) EthSignedMessageHash(family HashFamily) common.Hash {
	h := c.SigningHash(family)
	return crypto.Keccak256Hash([]byte("\x19Ethereum Signed Message:\n32"), h[:])
}

// Signature is a recoverable secp256k1 signature.
type Signature struct {
	R common.Hash `json:"r"`
	S common.Hash `json:"s"`
	V uint64      `json:"v"`
}

// SignatureFromBytes parses r || s || v. v may be 0/1 or 27/28.
func SignatureFromBytes(b []byte) (Signature, error) {
	if len(b) != SignatureLength {
		return Signature{}, errors.Errorf("invalid signature length %d", len(b))
	}
	v := uint64(b[64])
	if v < 27 {
		v += 27
	}
	return Signature{
		R: common.BytesToHash(b[:32]),
		S: common.BytesToHash(b[32:64]),
		V: v,
	}, nil
}

// Bytes returns r || s || v with v in {27, 28}.
func (s Signature) Bytes() []byte {
	out := make([]byte, SignatureLength)
	copy(out[:32], s.R[:])
	copy(out[32:64], s.S[:])
	out[64] = byte(s.V)
	return out
}

// recoveryBytes returns r || s || recid as expected by crypto.SigToPub.
func (s Signature) recoveryBytes() ([]byte, error) {
	v := s.V
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return nil, errors.Errorf("invalid signature recovery id %d", s.V)
	}
	out := s.Bytes()
	out[64] = byte(v)
	return out, nil
}

// SignedCheckpointWithMessageID is one validator's attestation.
type SignedCheckpointWithMessageID struct {
	Value     CheckpointWithMessageID `json:"value"`
	Signature Signature               `json:"signature"`
}

// Recover returns the address of the key that produced the signature.
func (s *SignedCheckpointWithMessageID) Recover(family HashFamily) (common.Address, error) {
	sig, err := s.Signature.recoveryBytes()
	if err != nil {
		return common.Address{}, err
	}
	digest := s.Value.EthSignedMessageHash(family)
	pub, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "recovering checkpoint signer")
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// SignCheckpoint produces a validator attestation for value.
func SignCheckpoint(key *ecdsa.PrivateKey, family HashFamily, value CheckpointWithMessageID) (*SignedCheckpointWithMessageID, error) {
	digest := value.EthSignedMessageHash(family)
	raw, err := crypto.Sign(digest[:], key)
	if err != nil {
		return nil, errors.Wrap(err, "signing checkpoint")
	}
	sig, err := SignatureFromBytes(raw)
	if err != nil {
		return nil, err
	}
	return &SignedCheckpointWithMessageID{Value: value, Signature: sig}, nil
}

// QuorumCheckpoint is a checkpoint signed by at least a threshold of a
// validator set. Signatures are ordered by the validator set's order.
type QuorumCheckpoint struct {
	Checkpoint CheckpointWithMessageID
	Signatures []Signature
}
