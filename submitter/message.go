package submitter

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/supragya/InterchainRelayer/chains"
	meta "github.com/supragya/InterchainRelayer/metadata"
	"github.com/supragya/InterchainRelayer/types"
)

// MetadataBuilder builds security metadata for a message. A nil slice with
// nil error means the metadata is not available yet.
type MetadataBuilder interface {
	Build(ctx context.Context, ism common.Hash, msg *types.Message) ([]byte, error)
}

// Policy holds retry timings.
type Policy struct {
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// ConfirmDelay is the wait between inclusion and the first confirm.
	ConfirmDelay time.Duration
	// ConfirmTimeout is how long a submitted message may stay undelivered
	// before it is prepared again.
	ConfirmTimeout time.Duration
}

var DefaultPolicy = Policy{
	BackoffBase:    5 * time.Second,
	BackoffMax:     30 * time.Minute,
	ConfirmDelay:   10 * time.Second,
	ConfirmTimeout: 10 * time.Minute,
}

// backoff returns BackoffBase doubled for every retry after the first,
// capped at BackoffMax.
func (p Policy) backoff(retries uint32) time.Duration {
	d := p.BackoffBase
	for i := uint32(1); i < retries && d < p.BackoffMax; i++ {
		d *= 2
	}
	if d > p.BackoffMax {
		d = p.BackoffMax
	}
	return d
}

// MessageContext is shared by every message bound for one destination.
type MessageContext struct {
	Destination chains.Mailbox
	Metadata    MetadataBuilder
	// TransactionGasLimit caps the gas of a process transaction; nil for
	// no cap.
	TransactionGasLimit *big.Int
	// SkipTransactionGasLimit exempts this destination from the cap.
	SkipTransactionGasLimit bool
	Policy                  Policy
	Clock                   Clock
}

type submissionData struct {
	metadata []byte
	gasLimit *big.Int
}

// PendingMessage drives one message to delivery.
type PendingMessage struct {
	message *types.Message
	mctx    *MessageContext

	// submitted is set while a transaction of ours awaits confirmation.
	submitted   bool
	submittedAt time.Time
	// everSubmitted tells our own delivery apart from someone else's.
	everSubmitted bool
	data          *submissionData

	retries          uint32
	nextAttemptAfter time.Time
	hasNextAttempt   bool

	log *log.Entry
}

var _ PendingOperation = (*PendingMessage)(nil)

func NewPendingMessage(msg *types.Message, mctx *MessageContext) *PendingMessage {
	return &PendingMessage{
		message: msg,
		mctx:    mctx,
		log: log.WithFields(log.Fields{
			"id":          msg.ID().Hex(),
			"nonce":       msg.Nonce,
			"origin":      msg.Origin,
			"destination": msg.Destination,
		}),
	}
}

func (m *PendingMessage) Domain() types.Domain {
	return m.mctx.Destination.Domain()
}

func (m *PendingMessage) NextAttemptAfter() (time.Time, bool) {
	return m.nextAttemptAfter, m.hasNextAttempt
}

func (m *PendingMessage) String() string {
	return m.message.String()
}

type failMode int

const (
	retryNotReady failMode = iota
	retryReprepare
	failCritical
)

// opTry classifies a failed step: retry paths log a warning and back off,
// critical ones log an error and carry the wrapped error out.
func (m *PendingMessage) opTry(err error, step string, mode failMode) OperationResult {
	switch mode {
	case failCritical:
		m.log.Error("Error when ", step, ": ", err)
		return OperationResult{Kind: CriticalFailure, Err: errors.Wrapf(err, "when %s for %s", step, m.message.String())}
	case retryReprepare:
		m.log.Warn("Error when ", step, ": ", err)
		return m.reprepare()
	default:
		m.log.Warn("Error when ", step, ": ", err)
		return m.notReady()
	}
}

func (m *PendingMessage) notReady() OperationResult {
	m.backoff()
	return OperationResult{Kind: NotReady}
}

func (m *PendingMessage) reprepare() OperationResult {
	m.data = nil
	m.backoff()
	return OperationResult{Kind: Reprepare}
}

func (m *PendingMessage) backoff() {
	m.retries++
	m.nextAttemptAfter = m.mctx.Clock.now().Add(m.mctx.Policy.backoff(m.retries))
	m.hasNextAttempt = true
}

func (m *PendingMessage) Prepare(ctx context.Context) OperationResult {
	dest := m.mctx.Destination.Domain()
	if m.message.Destination != dest.ID {
		return m.opTry(errors.Errorf("message for domain %d queued on %s", m.message.Destination, dest),
			"checking message destination", failCritical)
	}

	id := m.message.ID()
	delivered, err := m.mctx.Destination.Delivered(ctx, id)
	if err != nil {
		return m.opTry(err, "checking message delivery status", retryNotReady)
	}
	if delivered {
		if m.everSubmitted {
			m.log.Debug("Message delivered by our earlier submission")
			m.submitted = true
			return OperationResult{Kind: Success}
		}
		m.log.Info("Message already delivered, dropping")
		return OperationResult{Kind: Drop}
	}

	ism, err := m.mctx.Destination.RecipientIsm(ctx, m.message.Recipient)
	if err != nil {
		return m.opTry(err, "fetching recipient ism", retryNotReady)
	}

	metadata, err := m.mctx.Metadata.Build(ctx, ism, m.message)
	if err != nil {
		if errors.Is(err, meta.ErrMalformedMetadata) {
			return m.opTry(err, "building metadata", failCritical)
		}
		return m.opTry(err, "building metadata", retryNotReady)
	}
	if metadata == nil {
		m.log.Info("Could not fetch metadata, message not ready")
		return m.notReady()
	}

	estimate, err := m.mctx.Destination.EstimateCost(ctx, m.message, metadata)
	if err != nil {
		return m.opTry(err, "estimating costs for process call", retryNotReady)
	}
	gasLimit := estimate.GasLimit
	if limit := m.mctx.TransactionGasLimit; limit != nil && !m.mctx.SkipTransactionGasLimit && gasLimit.Cmp(limit) > 0 {
		m.log.Info("Message gas limit ", gasLimit, " exceeds transaction gas limit ", limit)
		return m.notReady()
	}

	m.data = &submissionData{metadata: metadata, gasLimit: gasLimit}
	m.hasNextAttempt = false
	return OperationResult{Kind: Success}
}

func (m *PendingMessage) Submit(ctx context.Context) OperationResult {
	if m.submitted {
		return OperationResult{Kind: Success}
	}
	if m.data == nil {
		m.log.Debug("No prepared submission data")
		return m.reprepare()
	}

	data := m.data
	m.data = nil
	outcome, err := m.mctx.Destination.Process(ctx, m.message, data.metadata, data.gasLimit)
	if err != nil {
		return m.opTry(err, "submitting message", retryReprepare)
	}
	if !outcome.Executed {
		m.log.Info("Transaction ", outcome.TxID.Hex(), " reverted, preparing again")
		return m.reprepare()
	}

	now := m.mctx.Clock.now()
	m.log.Info("Message processed in transaction ", outcome.TxID.Hex())
	m.submitted = true
	m.everSubmitted = true
	m.submittedAt = now
	m.retries = 0
	m.nextAttemptAfter = now.Add(m.mctx.Policy.ConfirmDelay)
	m.hasNextAttempt = true
	return OperationResult{Kind: Success}
}

func (m *PendingMessage) Confirm(ctx context.Context) OperationResult {
	delivered, err := m.mctx.Destination.Delivered(ctx, m.message.ID())
	if err != nil {
		return m.opTry(err, "confirming message delivery", retryNotReady)
	}
	if delivered {
		m.log.Info("Message delivery confirmed")
		return OperationResult{Kind: Success}
	}

	if m.mctx.Clock.now().Sub(m.submittedAt) < m.mctx.Policy.ConfirmTimeout {
		m.log.Debug("Delivery not yet confirmed")
		return m.notReady()
	}
	m.log.Warn("Message not delivered within ", m.mctx.Policy.ConfirmTimeout, " of submission, preparing again")
	m.submitted = false
	return m.reprepare()
}
