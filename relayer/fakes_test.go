package relayer

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/supragya/InterchainRelayer/accumulator"
	"github.com/supragya/InterchainRelayer/chains"
	"github.com/supragya/InterchainRelayer/types"
)

// fakeChain is an in-memory chain acting as origin, mailbox and ism.
type fakeChain struct {
	mu     sync.Mutex
	domain types.Domain

	messages   []types.Message
	fetchErr   error
	treeErr    error
	rootOffset bool
	// gap drops the message with this nonce from fetch results.
	gap *uint32

	validators []common.Address
	threshold  uint8
	delivered  map[common.Hash]bool
	processed  []common.Hash
}

var (
	_ chains.Mailbox                  = (*fakeChain)(nil)
	_ chains.InterchainSecurityModule = (*fakeChain)(nil)
	_ chains.OriginIndexer            = (*fakeChain)(nil)
)

func newFakeChain(id uint32) *fakeChain {
	d, _ := types.LookupDomain(id)
	return &fakeChain{domain: d, delivered: map[common.Hash]bool{}}
}

func (f *fakeChain) dispatch(destination uint32, body string) *types.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := types.Message{
		Version:     3,
		Nonce:       uint32(len(f.messages)),
		Origin:      f.domain.ID,
		Sender:      common.HexToHash("0x5e4d"),
		Destination: destination,
		Recipient:   common.HexToHash("0x4ec1"),
		Body:        []byte(body),
	}
	f.messages = append(f.messages, msg)
	return &msg
}

func (f *fakeChain) Domain() types.Domain { return f.domain }

func (f *fakeChain) FetchMessages(ctx context.Context, fromNonce uint32, limit int) ([]types.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []types.Message
	for _, m := range f.messages {
		if m.Nonce < fromNonce || len(out) >= limit {
			continue
		}
		if f.gap != nil && m.Nonce == *f.gap {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeChain) Tree(ctx context.Context) (accumulator.IncrementalMerkle, common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.treeErr != nil {
		return accumulator.IncrementalMerkle{}, common.Hash{}, f.treeErr
	}
	tree := accumulator.Empty(f.domain.Family())
	for _, m := range f.messages {
		var err error
		if tree, err = tree.Ingest(m.IDForMerkleTree()); err != nil {
			return accumulator.IncrementalMerkle{}, common.Hash{}, err
		}
	}
	root := tree.Root()
	if f.rootOffset {
		root[0] ^= 0xff
	}
	return tree, root, nil
}

func (f *fakeChain) Delivered(ctx context.Context, id common.Hash) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.delivered[id], nil
}

func (f *fakeChain) RecipientIsm(ctx context.Context, recipient common.Hash) (common.Hash, error) {
	return common.HexToHash("0x15"), nil
}

func (f *fakeChain) Process(ctx context.Context, msg *types.Message, metadata []byte, gasLimit *big.Int) (chains.TxOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(metadata) == 0 {
		return chains.TxOutcome{}, errors.New("empty metadata")
	}
	id := msg.ID()
	f.delivered[id] = true
	f.processed = append(f.processed, id)
	return chains.TxOutcome{TxID: id, Executed: true, GasUsed: big.NewInt(50000), GasPrice: big.NewInt(1)}, nil
}

func (f *fakeChain) EstimateCost(ctx context.Context, msg *types.Message, metadata []byte) (chains.CostEstimate, error) {
	return chains.CostEstimate{GasLimit: big.NewInt(80000), GasPrice: big.NewInt(1)}, nil
}

func (f *fakeChain) ModuleType(ctx context.Context, ism common.Hash) (chains.ModuleType, error) {
	return chains.ModuleMessageIDMultisig, nil
}

func (f *fakeChain) ValidatorsAndThreshold(ctx context.Context, ism common.Hash, msg *types.Message) ([]common.Address, uint8, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validators, f.threshold, nil
}

func (f *fakeChain) processedIDs() []common.Hash {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]common.Hash(nil), f.processed...)
}

func (f *fakeChain) asChain() Chain {
	return Chain{Domain: f.domain, Mailbox: f, Ism: f, Indexer: f}
}
