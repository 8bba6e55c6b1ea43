package chains

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/supragya/InterchainRelayer/types"
)

// BreakerSettings configures WithBreaker.
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
}

var DefaultBreakerSettings = BreakerSettings{ConsecutiveFailures: 5, OpenTimeout: 30 * time.Second}

type breakerMailbox struct {
	Mailbox
	cb *gobreaker.CircuitBreaker
}

// WithBreaker wraps a Mailbox in a circuit breaker. While open, calls fail
// immediately with gobreaker.ErrOpenState instead of reaching the chain.
func WithBreaker(m Mailbox, settings BreakerSettings) Mailbox {
	name := m.Domain().String()
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Destination ", name, " circuit breaker ", from.String(), " -> ", to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || err == context.Canceled
		},
	})
	return &breakerMailbox{Mailbox: m, cb: cb}
}

func (b *breakerMailbox) Delivered(ctx context.Context, id common.Hash) (bool, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.Mailbox.Delivered(ctx, id)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (b *breakerMailbox) RecipientIsm(ctx context.Context, recipient common.Hash) (common.Hash, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.Mailbox.RecipientIsm(ctx, recipient)
	})
	if err != nil {
		return common.Hash{}, err
	}
	return v.(common.Hash), nil
}

func (b *breakerMailbox) Process(ctx context.Context, msg *types.Message, metadata []byte, gasLimit *big.Int) (TxOutcome, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.Mailbox.Process(ctx, msg, metadata, gasLimit)
	})
	if err != nil {
		return TxOutcome{}, err
	}
	return v.(TxOutcome), nil
}

func (b *breakerMailbox) EstimateCost(ctx context.Context, msg *types.Message, metadata []byte) (CostEstimate, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.Mailbox.EstimateCost(ctx, msg, metadata)
	})
	if err != nil {
		return CostEstimate{}, err
	}
	return v.(CostEstimate), nil
}
