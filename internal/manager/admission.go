package manager

import (
	"context"
	"errors"
	"time"
)

// gate admits generations: a bounded FIFO queue in front of a single
// in-flight slot.
type gate struct {
	genCh   chan struct{} // size 1: single in-flight generation
	queueCh chan struct{} // buffered: queue slots
	maxWait time.Duration
}

func newGate(depth int, maxWait time.Duration) *gate {
	return &gate{
		genCh:   make(chan struct{}, 1),
		queueCh: make(chan struct{}, depth),
		maxWait: maxWait,
	}
}

// acquire reserves a queue slot and then the in-flight slot.
// Returns a release func to be deferred.
func (g *gate) acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	timer := time.NewTimer(g.maxWait)
	defer timer.Stop()
	select {
	case g.queueCh <- struct{}{}:
	case <-ctx.Done():
		return func() {}, waitErr(ctx, "deadline reached waiting for a queue slot")
	case <-timer.C:
		return func() {}, tooBusyError{reason: "queue full"}
	}

	acquired := false
	defer func() {
		if !acquired {
			<-g.queueCh
		}
	}()
	select {
	case g.genCh <- struct{}{}:
		acquired = true
		return func() { <-g.genCh; <-g.queueCh }, nil
	case <-ctx.Done():
		return func() {}, waitErr(ctx, "deadline reached waiting for the generation slot")
	case <-timer.C:
		return func() {}, tooBusyError{reason: "generation slot wait timed out"}
	}
}

// waitErr reports a caller deadline that fires while queued as too busy;
// cancellation is passed through.
func waitErr(ctx context.Context, reason string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return tooBusyError{reason: reason}
	}
	return ctx.Err()
}

// queued returns the number of callers holding a queue slot, in-flight included.
func (g *gate) queued() int { return len(g.queueCh) }

func (g *gate) inflight() int { return len(g.genCh) }
