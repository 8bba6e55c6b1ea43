package chains

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/supragya/InterchainRelayer/accumulator"
	"github.com/supragya/InterchainRelayer/types"
)

// TxOutcome describes an included process transaction.
type TxOutcome struct {
	TxID     common.Hash
	Executed bool
	GasUsed  *big.Int
	GasPrice *big.Int
}

// CostEstimate is the expected cost of processing a message.
type CostEstimate struct {
	GasLimit *big.Int
	GasPrice *big.Int
	// L2GasLimit is set by rollups that price L1 data separately.
	L2GasLimit *big.Int
}

// Mailbox is the destination side of message delivery. Every method must be
// safe to call repeatedly for the same message.
type Mailbox interface {
	Domain() types.Domain
	Delivered(ctx context.Context, id common.Hash) (bool, error)
	RecipientIsm(ctx context.Context, recipient common.Hash) (common.Hash, error)
	Process(ctx context.Context, msg *types.Message, metadata []byte, gasLimit *big.Int) (TxOutcome, error)
	EstimateCost(ctx context.Context, msg *types.Message, metadata []byte) (CostEstimate, error)
}

// ModuleType identifies the verification scheme of a security module.
type ModuleType uint8

// DANGER - Do not change mappings. Values are reported by on-chain modules.
const (
	ModuleUnused ModuleType = iota
	ModuleRouting
	ModuleAggregation
	ModuleLegacyMultisig
	ModuleMerkleRootMultisig
	ModuleMessageIDMultisig
	ModuleNull
)

func (m ModuleType) String() string {
	switch m {
	case ModuleUnused:
		return "unused"
	case ModuleRouting:
		return "routing"
	case ModuleAggregation:
		return "aggregation"
	case ModuleLegacyMultisig:
		return "legacy_multisig"
	case ModuleMerkleRootMultisig:
		return "merkle_root_multisig"
	case ModuleMessageIDMultisig:
		return "message_id_multisig"
	case ModuleNull:
		return "null"
	default:
		return fmt.Sprintf("module_type(%d)", uint8(m))
	}
}

// InterchainSecurityModule reads security module configuration on the
// destination.
type InterchainSecurityModule interface {
	ModuleType(ctx context.Context, ism common.Hash) (ModuleType, error)
	ValidatorsAndThreshold(ctx context.Context, ism common.Hash, msg *types.Message) ([]common.Address, uint8, error)
}

// OriginIndexer supplies dispatched messages of one origin in nonce order.
type OriginIndexer interface {
	Domain() types.Domain
	FetchMessages(ctx context.Context, fromNonce uint32, limit int) ([]types.Message, error)
	// Tree returns the origin mailbox's commitment tree and the root the
	// mailbox itself reports.
	Tree(ctx context.Context) (accumulator.IncrementalMerkle, common.Hash, error)
}
