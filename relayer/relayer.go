// Package relayer wires indexers, attestation stores and destination
// submitters into a running relayer.
package relayer

import (
	"context"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/supragya/InterchainRelayer/accumulator"
	"github.com/supragya/InterchainRelayer/chains"
	"github.com/supragya/InterchainRelayer/chains/rpc"
	"github.com/supragya/InterchainRelayer/checkpoint"
	"github.com/supragya/InterchainRelayer/config"
	"github.com/supragya/InterchainRelayer/metadata"
	"github.com/supragya/InterchainRelayer/submitter"
	"github.com/supragya/InterchainRelayer/types"
)

// Chain bundles the collaborators of one relay chain.
type Chain struct {
	Domain  types.Domain
	Mailbox chains.Mailbox
	Ism     chains.InterchainSecurityModule
	Indexer chains.OriginIndexer
}

type Relayer struct {
	settings   *config.Settings
	schedulers []*submitter.Scheduler
	processors map[uint32]*MessageProcessor
}

// New connects to every relay chain over its rpcurl.
func New(settings *config.Settings, metrics *submitter.Metrics) (*Relayer, error) {
	var relayChains []Chain
	for _, name := range settings.SortedRelayChains() {
		domain, err := settings.Domain(name)
		if err != nil {
			return nil, err
		}
		client := rpc.NewClient(domain, settings.Chains[name].RPCURL)
		relayChains = append(relayChains, Chain{Domain: domain, Mailbox: client, Ism: client, Indexer: client})
	}
	return NewWithChains(settings, relayChains, metrics)
}

// NewWithChains builds a relayer over already connected chains.
func NewWithChains(settings *config.Settings, relayChains []Chain, metrics *submitter.Metrics) (*Relayer, error) {
	r := &Relayer{
		settings:   settings,
		processors: make(map[uint32]*MessageProcessor),
	}

	syncers := checkpoint.NewSyncerBuilder(
		checkpoint.StaticAnnounce(settings.ValidatorLocations()),
		settings.AllowLocalCheckpointSyncers,
	)
	stores := metadata.StoreBuilderFunc(func(ctx context.Context, validators []common.Address) (metadata.QuorumStore, error) {
		s, err := syncers.Build(ctx, validators)
		if err != nil {
			return nil, err
		}
		return s, nil
	})

	var gasLimit *big.Int
	if settings.TransactionGasLimit > 0 {
		gasLimit = new(big.Int).SetUint64(settings.TransactionGasLimit)
	}
	policy := submitter.Policy{
		BackoffBase:    settings.Submitter.BackoffBase,
		BackoffMax:     settings.Submitter.BackoffMax,
		ConfirmDelay:   settings.Submitter.ConfirmDelay,
		ConfirmTimeout: settings.Submitter.ConfirmTimeout,
	}
	breaker := chains.BreakerSettings{
		ConsecutiveFailures: settings.Breaker.ConsecutiveFailures,
		OpenTimeout:         settings.Breaker.OpenTimeout,
	}

	destinations := make(map[uint32]destination)
	for _, c := range relayChains {
		types.RegisterDomain(c.Domain)
		if _, ok := destinations[c.Domain.ID]; ok {
			return nil, errors.Errorf("domain %s configured twice", c.Domain)
		}

		builder, err := metadata.NewBaseBuilder(c.Ism, stores, r.prover)
		if err != nil {
			return nil, err
		}
		mailbox := c.Mailbox
		if breaker.ConsecutiveFailures > 0 {
			mailbox = chains.WithBreaker(mailbox, breaker)
		}
		scheduler := submitter.NewScheduler(c.Domain, metrics, nil)
		r.schedulers = append(r.schedulers, scheduler)
		destinations[c.Domain.ID] = destination{
			scheduler: scheduler,
			mctx: &submitter.MessageContext{
				Destination:             mailbox,
				Metadata:                builder,
				TransactionGasLimit:     gasLimit,
				SkipTransactionGasLimit: settings.SkipsGasLimit(c.Domain.ID),
				Policy:                  policy,
			},
		}
	}

	for _, c := range relayChains {
		r.processors[c.Domain.ID] = NewMessageProcessor(c.Indexer, destinations,
			settings.BatchSize, settings.PollInterval, settings.TreeCheckInterval)
	}
	return r, nil
}

func (r *Relayer) prover(origin uint32) *accumulator.Prover {
	p, ok := r.processors[origin]
	if !ok {
		return nil
	}
	return p.Prover()
}

// Run relays until ctx ends or a component fails critically.
func (r *Relayer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range r.schedulers {
		s := s
		g.Go(func() error {
			return s.Run(ctx, r.settings.Submitter.Workers)
		})
	}
	for _, p := range r.processors {
		p := p
		g.Go(func() error {
			return p.Run(ctx)
		})
	}
	if addr := r.settings.MetricsAddr; addr != "" {
		g.Go(func() error {
			return serveMetrics(ctx, addr)
		})
	}
	return g.Wait()
}

func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("Serving metrics on ", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "serving metrics")
	}
	return nil
}
