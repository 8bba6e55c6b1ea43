package chains

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supragya/InterchainRelayer/types"
)

type flakyMailbox struct {
	calls int
	err   error
}

func (f *flakyMailbox) Domain() types.Domain {
	d, _ := types.LookupDomain(13372)
	return d
}

func (f *flakyMailbox) Delivered(ctx context.Context, id common.Hash) (bool, error) {
	f.calls++
	return f.err == nil, f.err
}

func (f *flakyMailbox) RecipientIsm(ctx context.Context, recipient common.Hash) (common.Hash, error) {
	f.calls++
	return recipient, f.err
}

func (f *flakyMailbox) Process(ctx context.Context, msg *types.Message, metadata []byte, gasLimit *big.Int) (TxOutcome, error) {
	f.calls++
	return TxOutcome{Executed: f.err == nil}, f.err
}

func (f *flakyMailbox) EstimateCost(ctx context.Context, msg *types.Message, metadata []byte) (CostEstimate, error) {
	f.calls++
	return CostEstimate{GasLimit: big.NewInt(1)}, f.err
}

func TestWithBreaker_PassesThrough(t *testing.T) {
	inner := &flakyMailbox{}
	m := WithBreaker(inner, DefaultBreakerSettings)

	delivered, err := m.Delivered(context.Background(), common.Hash{})
	require.NoError(t, err)
	assert.True(t, delivered)

	ism, err := m.RecipientIsm(context.Background(), common.HexToHash("0x05"))
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x05"), ism)

	outcome, err := m.Process(context.Background(), &types.Message{}, nil, nil)
	require.NoError(t, err)
	assert.True(t, outcome.Executed)

	est, err := m.EstimateCost(context.Background(), &types.Message{}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), est.GasLimit.Int64())
	assert.Equal(t, inner.Domain(), m.Domain())
}

func TestWithBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyMailbox{err: errors.New("rpc down")}
	m := WithBreaker(inner, BreakerSettings{ConsecutiveFailures: 3, OpenTimeout: time.Hour})

	for i := 0; i < 3; i++ {
		_, err := m.Delivered(context.Background(), common.Hash{})
		require.EqualError(t, err, "rpc down")
	}
	_, err := m.Delivered(context.Background(), common.Hash{})
	assert.Equal(t, gobreaker.ErrOpenState, err)
	assert.Equal(t, 3, inner.calls)
}
