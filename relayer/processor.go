package relayer

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/supragya/InterchainRelayer/accumulator"
	"github.com/supragya/InterchainRelayer/chains"
	"github.com/supragya/InterchainRelayer/submitter"
	"github.com/supragya/InterchainRelayer/types"
)

// destination is where messages for one domain are queued.
type destination struct {
	scheduler *submitter.Scheduler
	mctx      *submitter.MessageContext
}

// MessageProcessor follows the dispatched messages of one origin. It keeps
// the origin's merkle prover in step with the indexer and hands every
// message to the scheduler of its destination.
type MessageProcessor struct {
	origin       chains.OriginIndexer
	prover       *accumulator.Prover
	destinations map[uint32]destination

	nextNonce         uint32
	batchSize         int
	pollInterval      time.Duration
	treeCheckInterval time.Duration

	log *log.Entry
}

func NewMessageProcessor(origin chains.OriginIndexer, destinations map[uint32]destination,
	batchSize int, pollInterval, treeCheckInterval time.Duration) *MessageProcessor {
	domain := origin.Domain()
	return &MessageProcessor{
		origin:            origin,
		prover:            accumulator.NewProver(domain.Family()),
		destinations:      destinations,
		batchSize:         batchSize,
		pollInterval:      pollInterval,
		treeCheckInterval: treeCheckInterval,
		log:               log.WithField("origin", domain.Name),
	}
}

func (p *MessageProcessor) Domain() types.Domain { return p.origin.Domain() }

func (p *MessageProcessor) Prover() *accumulator.Prover { return p.prover }

// NextNonce is the nonce of the next message the processor expects.
func (p *MessageProcessor) NextNonce() uint32 { return p.nextNonce }

// Step fetches one batch of messages and returns how many were taken in.
// Transient indexer trouble is logged and reported as zero progress; the
// error is set only when the processor cannot go on.
func (p *MessageProcessor) Step(ctx context.Context) (int, error) {
	msgs, err := p.origin.FetchMessages(ctx, p.nextNonce, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil
		}
		p.log.Warn("Error fetching messages from nonce ", p.nextNonce, ": ", err)
		return 0, nil
	}

	taken := 0
	for i := range msgs {
		msg := msgs[i]
		if msg.Nonce < p.nextNonce {
			p.log.Debug("Skipping already processed nonce ", msg.Nonce)
			continue
		}
		if msg.Nonce > p.nextNonce {
			p.log.Warn("Indexer skipped from nonce ", p.nextNonce, " to ", msg.Nonce, ", refetching")
			break
		}

		if err := p.prover.Ingest(msg.IDForMerkleTree()); err != nil {
			if errors.Is(err, accumulator.ErrTreeFull) {
				p.log.Error("Merkle prover is full at nonce ", msg.Nonce)
			}
			return taken, errors.Wrapf(err, "ingesting %s", msg.String())
		}
		p.nextNonce++
		taken++
		p.route(&msg)
	}
	return taken, nil
}

func (p *MessageProcessor) route(msg *types.Message) {
	dest, ok := p.destinations[msg.Destination]
	if !ok {
		p.log.Debug("No destination configured for ", msg.String(), ", skipping")
		return
	}
	dest.scheduler.Push(submitter.NewPendingMessage(msg, dest.mctx))
}

// CheckTree compares the prover against the origin's own tree. A mismatch
// means the indexed messages do not match what the origin committed to.
func (p *MessageProcessor) CheckTree(ctx context.Context) error {
	tree, reported, err := p.origin.Tree(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn("Error fetching origin merkle tree: ", err)
		}
		return nil
	}
	if root := tree.Root(); root != reported {
		return errors.Errorf("origin %s reports root %s for a tree with root %s",
			p.origin.Domain(), reported.Hex(), root.Hex())
	}

	count := tree.Count()
	if count > p.prover.Count() {
		p.log.Debug("Prover at ", p.prover.Count(), " leaves, origin tree at ", count)
		return nil
	}
	ours, err := p.prover.RootAt(count)
	if err != nil {
		return err
	}
	if ours != reported {
		return errors.Errorf("prover root %s at count %d differs from origin %s root %s",
			ours.Hex(), count, p.origin.Domain(), reported.Hex())
	}
	return nil
}

// Run polls the origin until ctx ends or the processor hits an error it
// cannot recover from.
func (p *MessageProcessor) Run(ctx context.Context) error {
	p.log.Info("Starting message processor for ", p.origin.Domain())
	poll := time.NewTicker(p.pollInterval)
	defer poll.Stop()
	check := time.NewTicker(p.treeCheckInterval)
	defer check.Stop()

	for {
		for {
			taken, err := p.Step(ctx)
			if err != nil {
				return err
			}
			if taken < p.batchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-check.C:
			if err := p.CheckTree(ctx); err != nil {
				p.log.Error("Merkle tree check failed: ", err)
				return err
			}
		case <-poll.C:
		}
	}
}
