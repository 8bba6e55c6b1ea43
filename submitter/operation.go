package submitter

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/supragya/InterchainRelayer/types"
)

// ResultKind tells the scheduler what to do with an operation after a
// phase ran.
type ResultKind int

const (
	// Success promotes the operation to its next phase.
	Success ResultKind = iota
	// NotReady keeps the operation in its phase until its next attempt.
	NotReady
	// Reprepare sends the operation back to Prepare.
	Reprepare
	// Drop forgets the operation.
	Drop
	// CriticalFailure removes the operation and surfaces Err.
	CriticalFailure
)

func (k ResultKind) String() string {
	switch k {
	case Success:
		return "success"
	case NotReady:
		return "not_ready"
	case Reprepare:
		return "reprepare"
	case Drop:
		return "drop"
	case CriticalFailure:
		return "critical_failure"
	default:
		return fmt.Sprintf("result(%d)", int(k))
	}
}

type OperationResult struct {
	Kind ResultKind
	Err  error
}

// Phase is the step an operation runs next.
type Phase int

const (
	PhasePrepare Phase = iota
	PhaseSubmit
	PhaseConfirm
)

func (p Phase) String() string {
	switch p {
	case PhasePrepare:
		return "prepare"
	case PhaseSubmit:
		return "submit"
	case PhaseConfirm:
		return "confirm"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// PendingOperation is work that ends in a transaction on Domain.
//
// Prepare runs before every submission and builds whatever Submit needs.
// Submit sends the transaction and waits for inclusion. Confirm checks the
// result is safe from reorgs.
type PendingOperation interface {
	Domain() types.Domain
	// NextAttemptAfter is the earliest time the operation may run again;
	// false if it may run right away.
	NextAttemptAfter() (time.Time, bool)
	Prepare(ctx context.Context) OperationResult
	Submit(ctx context.Context) OperationResult
	Confirm(ctx context.Context) OperationResult
}

// Clock returns the current time.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// compareOperations orders operations for the scheduler. Operations never
// attempted come first, then earlier next attempts. Untried operations from
// one origin go in nonce order; across origins the message id decides.
// Mixing the two keys makes this no strict weak order once several origins
// share a queue: the heap still yields every operation, in approximate order.
func compareOperations(a, b PendingOperation) int {
	at, aSet := a.NextAttemptAfter()
	bt, bSet := b.NextAttemptAfter()
	switch {
	case aSet && bSet:
		switch {
		case at.Before(bt):
			return -1
		case bt.Before(at):
			return 1
		}
		return 0
	case !aSet && bSet:
		return -1
	case aSet && !bSet:
		return 1
	}

	switch a := a.(type) {
	case *PendingMessage:
		switch b := b.(type) {
		case *PendingMessage:
			return compareMessages(a.message, b.message)
		}
	}
	return 0
}

func compareMessages(a, b *types.Message) int {
	if a.Origin == b.Origin {
		switch {
		case a.Nonce < b.Nonce:
			return -1
		case a.Nonce > b.Nonce:
			return 1
		}
		return 0
	}
	aID, bID := a.ID(), b.ID()
	return bytes.Compare(aID[:], bID[:])
}
