package types

import (
	"fmt"
	"strings"
	"sync"
)

// Protocol identifies the ledger family a domain belongs to. The protocol,
// not the call site, decides which hash family message ids and checkpoints
// are computed with.
type Protocol int

const (
	ProtocolEthereum Protocol = iota
	ProtocolCardano
)

func (p Protocol) String() string {
	switch p {
	case ProtocolEthereum:
		return "ethereum"
	case ProtocolCardano:
		return "cardano"
	default:
		return fmt.Sprintf("protocol(%d)", int(p))
	}
}

// HashFamily returns the content hash used by domains of this protocol.
func (p Protocol) HashFamily() HashFamily {
	switch p {
	case ProtocolCardano:
		return Blake2b256
	default:
		return Keccak256
	}
}

// Domain is a ledger participating in message passing.
type Domain struct {
	ID       uint32
	Name     string
	Protocol Protocol
}

func (d Domain) Family() HashFamily {
	return d.Protocol.HashFamily()
}

func (d Domain) String() string {
	return fmt.Sprintf("%s (%d)", d.Name, d.ID)
}

// DANGER - Do not change mappings for known domains.
// Message ids and checkpoint signatures depend on these.
var knownDomains = map[uint32]Domain{
	1:        {1, "ethereum", ProtocolEthereum},
	5:        {5, "goerli", ProtocolEthereum},
	10:       {10, "optimism", ProtocolEthereum},
	56:       {56, "bsc", ProtocolEthereum},
	97:       {97, "bsctestnet", ProtocolEthereum},
	100:      {100, "gnosis", ProtocolEthereum},
	137:      {137, "polygon", ProtocolEthereum},
	420:      {420, "optimismgoerli", ProtocolEthereum},
	1284:     {1284, "moonbeam", ProtocolEthereum},
	1287:     {1287, "moonbasealpha", ProtocolEthereum},
	13371:    {13371, "test1", ProtocolEthereum},
	13372:    {13372, "test2", ProtocolEthereum},
	13373:    {13373, "test3", ProtocolEthereum},
	42161:    {42161, "arbitrum", ProtocolEthereum},
	42220:    {42220, "celo", ProtocolEthereum},
	43113:    {43113, "fuji", ProtocolEthereum},
	43114:    {43114, "avalanche", ProtocolEthereum},
	44787:    {44787, "alfajores", ProtocolEthereum},
	80001:    {80001, "mumbai", ProtocolEthereum},
	112233:   {112233, "cardanotest1", ProtocolCardano},
	421613:   {421613, "arbitrumgoerli", ProtocolEthereum},
	11155111: {11155111, "sepolia", ProtocolEthereum},
}

var domainsMu sync.RWMutex

// RegisterDomain adds or replaces a domain in the registry. Used by
// configuration to describe chains that are not compiled in.
func RegisterDomain(d Domain) {
	domainsMu.Lock()
	knownDomains[d.ID] = d
	domainsMu.Unlock()
}

// LookupDomain returns the registered domain for id. Unregistered ids are
// reported as ethereum-protocol domains with a synthetic name.
func LookupDomain(id uint32) (Domain, bool) {
	domainsMu.RLock()
	d, ok := knownDomains[id]
	domainsMu.RUnlock()
	if !ok {
		return Domain{ID: id, Name: fmt.Sprintf("unknown-%d", id), Protocol: ProtocolEthereum}, false
	}
	return d, true
}

func LookupDomainByName(name string) (Domain, bool) {
	name = strings.ToLower(name)
	domainsMu.RLock()
	defer domainsMu.RUnlock()
	for _, d := range knownDomains {
		if d.Name == name {
			return d, true
		}
	}
	return Domain{}, false
}

// HashFamilyOf returns the hash family of domain id.
func HashFamilyOf(id uint32) HashFamily {
	d, _ := LookupDomain(id)
	return d.Family()
}
