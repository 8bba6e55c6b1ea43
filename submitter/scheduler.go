package submitter

import (
	"container/heap"
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sasha-s/go-deadlock"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/supragya/InterchainRelayer/types"
)

const (
	// idleWait bounds how long an idle worker sleeps without a push.
	idleWait         = time.Minute
	throughputPeriod = 60 * time.Second
)

type entry struct {
	op    PendingOperation
	phase Phase
	seq   uint64
	index int
}

// opQueue implements heap.Interface ordered by compareOperations, with
// insertion order as the last tie break.
type opQueue []*entry

func (q opQueue) Len() int { return len(q) }

func (q opQueue) Less(i, j int) bool {
	if c := compareOperations(q[i].op, q[j].op); c != 0 {
		return c < 0
	}
	return q[i].seq < q[j].seq
}

func (q opQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *opQueue) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *opQueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// Scheduler runs the pending operations of one destination. Selection
// happens under a single lock; phases run outside it.
type Scheduler struct {
	domain types.Domain
	clock  Clock

	mu       deadlock.Mutex
	queue    opQueue
	seq      uint64
	inFlight int
	byPhase  map[Phase]int
	// notify is closed and replaced whenever the queue changes.
	notify chan struct{}

	metrics    *Metrics
	throughput *throughput
}

func NewScheduler(domain types.Domain, metrics *Metrics, clock Clock) *Scheduler {
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &Scheduler{
		domain:     domain,
		clock:      clock,
		byPhase:    make(map[Phase]int),
		notify:     make(chan struct{}),
		metrics:    metrics,
		throughput: newThroughput(domain.Name),
	}
}

func (s *Scheduler) Domain() types.Domain { return s.domain }

// Push queues a new operation at the Prepare phase.
func (s *Scheduler) Push(op PendingOperation) {
	s.mu.Lock()
	s.pushLocked(&entry{op: op, phase: PhasePrepare})
	s.mu.Unlock()
}

func (s *Scheduler) pushLocked(e *entry) {
	s.seq++
	e.seq = s.seq
	heap.Push(&s.queue, e)
	s.setPhaseCount(e.phase, 1)
	close(s.notify)
	s.notify = make(chan struct{})
}

func (s *Scheduler) setPhaseCount(phase Phase, delta int) {
	s.byPhase[phase] += delta
	s.metrics.QueueLength.With("destination", s.domain.Name, "phase", phase.String()).Set(float64(s.byPhase[phase]))
}

// Len is the number of queued operations, excluding those running.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// InFlight is the number of operations whose phase is running.
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// pop removes the head if it is due.
func (s *Scheduler) pop() *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	if next, ok := s.queue[0].op.NextAttemptAfter(); ok && next.After(s.clock.now()) {
		return nil
	}
	e := heap.Pop(&s.queue).(*entry)
	s.setPhaseCount(e.phase, -1)
	s.inFlight++
	return e
}

// Step runs the current phase of the highest-priority due operation. It
// reports whether anything ran; the error is set only by a critical failure.
func (s *Scheduler) Step(ctx context.Context) (bool, error) {
	e := s.pop()
	if e == nil {
		return false, nil
	}

	var res OperationResult
	switch e.phase {
	case PhasePrepare:
		res = e.op.Prepare(ctx)
	case PhaseSubmit:
		res = e.op.Submit(ctx)
	case PhaseConfirm:
		res = e.op.Confirm(ctx)
	}
	return true, s.apply(e, res)
}

func (s *Scheduler) apply(e *entry, res OperationResult) error {
	s.metrics.Outcomes.With("destination", s.domain.Name, "phase", e.phase.String(), "result", res.Kind.String()).Add(1)
	s.throughput.putInfo(e.phase.String()+"/"+res.Kind.String(), 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--

	switch res.Kind {
	case Success:
		if e.phase == PhaseConfirm {
			log.Debug("Operation done on ", s.domain.Name)
			return nil
		}
		e.phase++
	case NotReady:
	case Reprepare:
		e.phase = PhasePrepare
	case Drop:
		log.Debug("Operation dropped on ", s.domain.Name)
		return nil
	case CriticalFailure:
		s.metrics.CriticalFailures.With("destination", s.domain.Name).Add(1)
		err := res.Err
		if err == nil {
			err = errors.New("critical failure without error")
		}
		log.Error("Critical failure on ", s.domain.Name, " in ", e.phase, ": ", err)
		return errors.Wrapf(err, "%s operation failed critically", s.domain.Name)
	default:
		return errors.Errorf("unknown operation result %s", res.Kind)
	}
	s.pushLocked(e)
	return nil
}

// wait blocks until the queue changes, the head may be due, or ctx ends.
func (s *Scheduler) wait(ctx context.Context) error {
	s.mu.Lock()
	notify := s.notify
	d := idleWait
	if len(s.queue) > 0 {
		if next, ok := s.queue[0].op.NextAttemptAfter(); ok {
			d = next.Sub(s.clock.now())
		} else {
			d = 0
		}
	}
	s.mu.Unlock()

	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-notify:
	case <-timer.C:
	}
	return nil
}

// Run drives the queue with workers goroutines until ctx ends or an
// operation fails critically.
func (s *Scheduler) Run(ctx context.Context, workers int) error {
	if workers < 1 {
		workers = 1
	}
	log.Info("Starting submitter for ", s.domain, " with ", workers, " workers")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.throughput.presentThroughput(ctx, throughputPeriod)
		return nil
	})
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				ran, err := s.Step(ctx)
				if err != nil {
					return err
				}
				if ran {
					continue
				}
				if err := s.wait(ctx); err != nil {
					return nil
				}
			}
		})
	}
	return g.Wait()
}
