package submitter

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/supragya/InterchainRelayer/chains"
	"github.com/supragya/InterchainRelayer/types"
)

const (
	testOrigin      = 13371
	testDestination = 13372
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeMailbox struct {
	mu               sync.Mutex
	domain           types.Domain
	delivered        map[common.Hash]bool
	deliveredErr     error
	processErr       error
	revert           bool
	deliverOnProcess bool
	gasEstimate      int64
	processed        []common.Hash
}

func newFakeMailbox() *fakeMailbox {
	d, _ := types.LookupDomain(testDestination)
	return &fakeMailbox{
		domain:           d,
		delivered:        map[common.Hash]bool{},
		deliverOnProcess: true,
		gasEstimate:      100000,
	}
}

func (f *fakeMailbox) Domain() types.Domain { return f.domain }

func (f *fakeMailbox) Delivered(ctx context.Context, id common.Hash) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.delivered[id], f.deliveredErr
}

func (f *fakeMailbox) RecipientIsm(ctx context.Context, recipient common.Hash) (common.Hash, error) {
	return common.HexToHash("0x15"), nil
}

func (f *fakeMailbox) Process(ctx context.Context, msg *types.Message, metadata []byte, gasLimit *big.Int) (chains.TxOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.processErr != nil {
		return chains.TxOutcome{}, f.processErr
	}
	f.processed = append(f.processed, msg.ID())
	if f.revert {
		return chains.TxOutcome{TxID: common.HexToHash("0x7e"), Executed: false}, nil
	}
	if f.deliverOnProcess {
		f.delivered[msg.ID()] = true
	}
	return chains.TxOutcome{TxID: common.HexToHash("0x7a"), Executed: true, GasUsed: big.NewInt(f.gasEstimate)}, nil
}

func (f *fakeMailbox) EstimateCost(ctx context.Context, msg *types.Message, metadata []byte) (chains.CostEstimate, error) {
	return chains.CostEstimate{GasLimit: big.NewInt(f.gasEstimate), GasPrice: big.NewInt(1)}, nil
}

func (f *fakeMailbox) processedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.processed)
}

type fakeMetadata struct {
	mu       sync.Mutex
	metadata []byte
	err      error
}

func (f *fakeMetadata) Build(ctx context.Context, ism common.Hash, msg *types.Message) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metadata, f.err
}

var testPolicy = Policy{
	BackoffBase:    time.Second,
	BackoffMax:     8 * time.Second,
	ConfirmDelay:   10 * time.Second,
	ConfirmTimeout: time.Minute,
}

func testMessage(origin, nonce uint32) *types.Message {
	return &types.Message{
		Nonce:       nonce,
		Origin:      origin,
		Sender:      common.HexToHash("0x0ca1"),
		Destination: testDestination,
		Recipient:   common.HexToHash("0x0ef1"),
		Body:        []byte{byte(nonce)},
	}
}

func newTestContext(clock *fakeClock) (*MessageContext, *fakeMailbox, *fakeMetadata) {
	mailbox := newFakeMailbox()
	meta := &fakeMetadata{metadata: []byte{0x01}}
	return &MessageContext{
		Destination: mailbox,
		Metadata:    meta,
		Policy:      testPolicy,
		Clock:       clock.Now,
	}, mailbox, meta
}
