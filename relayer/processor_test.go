package relayer

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supragya/InterchainRelayer/accumulator"
	"github.com/supragya/InterchainRelayer/submitter"
)

func newTestProcessor(origin *fakeChain, dests ...*fakeChain) (*MessageProcessor, map[uint32]*submitter.Scheduler) {
	schedulers := map[uint32]*submitter.Scheduler{}
	destinations := map[uint32]destination{}
	for _, d := range dests {
		s := submitter.NewScheduler(d.domain, nil, nil)
		schedulers[d.domain.ID] = s
		destinations[d.domain.ID] = destination{
			scheduler: s,
			mctx:      &submitter.MessageContext{Destination: d, Policy: submitter.DefaultPolicy},
		}
	}
	return NewMessageProcessor(origin, destinations, 2, time.Millisecond, time.Millisecond), schedulers
}

func TestMessageProcessor_StepRoutesInNonceOrder(t *testing.T) {
	ctx := context.Background()
	origin := newFakeChain(13371)
	dest := newFakeChain(13372)
	p, schedulers := newTestProcessor(origin, dest)

	origin.dispatch(13372, "a")
	origin.dispatch(13373, "unconfigured")
	origin.dispatch(13372, "b")

	taken, err := p.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, taken)
	taken, err = p.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, taken)
	taken, err = p.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, taken)

	assert.Equal(t, uint32(3), p.NextNonce())
	assert.Equal(t, uint64(3), p.Prover().Count())
	// the message for 13373 is indexed but not queued anywhere
	assert.Equal(t, 2, schedulers[13372].Len())

	tree, root, err := origin.Tree(ctx)
	require.NoError(t, err)
	assert.Equal(t, root, p.Prover().Root())
	assert.Equal(t, tree.Count(), p.Prover().Count())
}

func TestMessageProcessor_StopsAtGap(t *testing.T) {
	ctx := context.Background()
	origin := newFakeChain(13371)
	dest := newFakeChain(13372)
	p, schedulers := newTestProcessor(origin, dest)
	for i := 0; i < 4; i++ {
		origin.dispatch(13372, "m")
	}
	p.batchSize = 10

	gap := uint32(1)
	origin.gap = &gap
	taken, err := p.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, taken)
	assert.Equal(t, uint32(1), p.NextNonce())

	origin.gap = nil
	taken, err = p.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, taken)
	assert.Equal(t, 4, schedulers[13372].Len())
}

func TestMessageProcessor_FetchErrorIsTransient(t *testing.T) {
	origin := newFakeChain(13371)
	p, _ := newTestProcessor(origin, newFakeChain(13372))
	origin.dispatch(13372, "a")
	origin.fetchErr = errors.New("connection refused")

	taken, err := p.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, taken)
	assert.Equal(t, uint32(0), p.NextNonce())
}

func TestMessageProcessor_CheckTree(t *testing.T) {
	ctx := context.Background()

	t.Run("in step", func(t *testing.T) {
		origin := newFakeChain(13371)
		p, _ := newTestProcessor(origin, newFakeChain(13372))
		origin.dispatch(13372, "a")
		origin.dispatch(13372, "b")
		_, err := p.Step(ctx)
		require.NoError(t, err)
		require.NoError(t, p.CheckTree(ctx))
	})

	t.Run("origin ahead of prover", func(t *testing.T) {
		origin := newFakeChain(13371)
		p, _ := newTestProcessor(origin, newFakeChain(13372))
		origin.dispatch(13372, "a")
		_, err := p.Step(ctx)
		require.NoError(t, err)
		origin.dispatch(13372, "b")
		require.NoError(t, p.CheckTree(ctx))
	})

	t.Run("prover ahead of origin", func(t *testing.T) {
		origin := newFakeChain(13371)
		p, _ := newTestProcessor(origin, newFakeChain(13372))
		origin.dispatch(13372, "a")
		origin.dispatch(13372, "b")
		_, err := p.Step(ctx)
		require.NoError(t, err)
		origin.messages = origin.messages[:1]
		require.NoError(t, p.CheckTree(ctx))
	})

	t.Run("origin root inconsistent", func(t *testing.T) {
		origin := newFakeChain(13371)
		p, _ := newTestProcessor(origin, newFakeChain(13372))
		origin.dispatch(13372, "a")
		origin.rootOffset = true
		err := p.CheckTree(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reports root")
	})

	t.Run("prover diverged", func(t *testing.T) {
		origin := newFakeChain(13371)
		p, _ := newTestProcessor(origin, newFakeChain(13372))
		origin.dispatch(13372, "a")
		_, err := p.Step(ctx)
		require.NoError(t, err)
		origin.messages[0].Body = []byte("rewritten")
		err = p.CheckTree(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "prover root")
	})

	t.Run("tree fetch error is transient", func(t *testing.T) {
		origin := newFakeChain(13371)
		p, _ := newTestProcessor(origin, newFakeChain(13372))
		origin.treeErr = errors.New("timeout")
		require.NoError(t, p.CheckTree(ctx))
	})
}

func TestMessageProcessor_UsesOriginHashFamily(t *testing.T) {
	origin := newFakeChain(112233)
	p, _ := newTestProcessor(origin, newFakeChain(13372))
	assert.Equal(t, accumulator.Empty(origin.domain.Family()).Root(), p.Prover().Root())

	origin.dispatch(13372, "a")
	_, err := p.Step(context.Background())
	require.NoError(t, err)
	_, root, err := origin.Tree(context.Background())
	require.NoError(t, err)
	assert.Equal(t, root, p.Prover().Root())
}
