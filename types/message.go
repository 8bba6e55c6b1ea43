package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// MessagePrefixLen is the size of the fixed-width header preceding the body.
const MessagePrefixLen = 77

// Message is a dispatched interchain message. Values are treated as
// immutable once observed on the origin.
type Message struct {
	Version     uint8
	Nonce       uint32
	Origin      uint32
	Sender      common.Hash
	Destination uint32
	Recipient   common.Hash
	Body        []byte
}

// Encode returns the canonical wire encoding: version, nonce, origin,
// sender, destination, recipient and body, big-endian, no length prefixes.
func (m *Message) Encode() []byte {
	buf := make([]byte, MessagePrefixLen, MessagePrefixLen+len(m.Body))
	buf[0] = m.Version
	binary.BigEndian.PutUint32(buf[1:5], m.Nonce)
	binary.BigEndian.PutUint32(buf[5:9], m.Origin)
	copy(buf[9:41], m.Sender[:])
	binary.BigEndian.PutUint32(buf[41:45], m.Destination)
	copy(buf[45:77], m.Recipient[:])
	return append(buf, m.Body...)
}

// DecodeMessage parses the canonical encoding. The body takes whatever
// follows the fixed header.
func DecodeMessage(raw []byte) (*Message, error) {
	if len(raw) < MessagePrefixLen {
		return nil, errors.Errorf("message too short: %d bytes, need at least %d", len(raw), MessagePrefixLen)
	}
	m := &Message{
		Version:     raw[0],
		Nonce:       binary.BigEndian.Uint32(raw[1:5]),
		Origin:      binary.BigEndian.Uint32(raw[5:9]),
		Sender:      common.BytesToHash(raw[9:41]),
		Destination: binary.BigEndian.Uint32(raw[41:45]),
		Recipient:   common.BytesToHash(raw[45:77]),
	}
	m.Body = append([]byte{}, raw[MessagePrefixLen:]...)
	return m, nil
}

// ID is the message identifier, hashed with the destination domain's family.
func (m *Message) ID() common.Hash {
	return HashFamilyOf(m.Destination).Hash(m.Encode())
}

// IDForMerkleTree is the leaf inserted into the origin's commitment tree,
// hashed with the origin domain's family.
func (m *Message) IDForMerkleTree() common.Hash {
	return HashFamilyOf(m.Origin).Hash(m.Encode())
}

func (m *Message) String() string {
	return fmt.Sprintf("Message{id: %s, nonce: %d, origin: %d, destination: %d}",
		m.ID().Hex(), m.Nonce, m.Origin, m.Destination)
}

// GoString includes every field, for debug logging.
func (m *Message) GoString() string {
	return fmt.Sprintf("Message{id: %s, version: %d, nonce: %d, origin: %s, sender: %s, destination: %s, recipient: %s, body: 0x%s}",
		m.ID().Hex(), m.Version, m.Nonce, fmtDomain(m.Origin), m.Sender.Hex(),
		fmtDomain(m.Destination), m.Recipient.Hex(), hex.EncodeToString(m.Body))
}

func fmtDomain(id uint32) string {
	d, _ := LookupDomain(id)
	return d.String()
}
