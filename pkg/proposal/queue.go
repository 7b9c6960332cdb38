// Package proposal decouples agent-suggested commands from their validation
// and execution. Agents only ever submit proposals; every proposal is
// re-validated through the Guard before any event is appended, and failures
// land on a dead-letter channel as typed values instead of being logged and
// swallowed.
package proposal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/deedgrid/spine/pkg/contracts"
)

// ErrQueueFull is returned when a bounded queue cannot accept a proposal.
var ErrQueueFull = errors.New("proposal: queue is full")

// ErrQueueClosed is returned when reading from a closed queue.
var ErrQueueClosed = errors.New("proposal: queue is closed")

// Queue is the message-passing boundary between proposal submission and
// validation. How proposals arrive is a collaborator concern; the spine's
// contract is only "validate before append".
type Queue interface {
	Submit(ctx context.Context, p contracts.ProposedCommand) error
	Next(ctx context.Context) (contracts.ProposedCommand, error)
}

// DeadLetter records a proposal that could not be executed, and why.
type DeadLetter struct {
	Proposal contracts.ProposedCommand
	Err      error
	At       time.Time
}

// MemoryQueue is a bounded in-process queue.
type MemoryQueue struct {
	ch chan contracts.ProposedCommand
}

// NewMemoryQueue creates a queue with the given capacity.
func NewMemoryQueue(capacity int) *MemoryQueue {
	return &MemoryQueue{ch: make(chan contracts.ProposedCommand, capacity)}
}

// Submit enqueues a proposal, assigning an ID and submission time when the
// submitter left them empty.
func (q *MemoryQueue) Submit(ctx context.Context, p contracts.ProposedCommand) error {
	if p.ProposalID == "" {
		p.ProposalID = uuid.NewString()
	}
	if p.SubmittedAt.IsZero() {
		p.SubmittedAt = time.Now().UTC()
	}
	select {
	case q.ch <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Next blocks until a proposal is available or the context ends.
func (q *MemoryQueue) Next(ctx context.Context) (contracts.ProposedCommand, error) {
	select {
	case p, ok := <-q.ch:
		if !ok {
			return contracts.ProposedCommand{}, ErrQueueClosed
		}
		return p, nil
	case <-ctx.Done():
		return contracts.ProposedCommand{}, ctx.Err()
	}
}

// Close stops the queue. Pending proposals remain readable.
func (q *MemoryQueue) Close() { close(q.ch) }
