package vecadd

import (
	"context"
	"time"
)

// Event is the completion token of a launch. A launch returns before its
// programs have run; read the output only after Wait returns.
type Event struct {
	done     chan struct{}
	err      error
	programs int
	start    time.Time
	end      time.Time
}

func newEvent(programs int) *Event {
	return &Event{
		done:     make(chan struct{}),
		programs: programs,
	}
}

// complete records the outcome and releases waiters. Called exactly once.
func (e *Event) complete(start time.Time, err error) {
	e.start = start
	e.end = time.Now()
	e.err = err
	close(e.done)
}

// Done returns a channel closed once every program of the launch finished.
func (e *Event) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the launch completes and returns its error, if any.
func (e *Event) Wait() error {
	<-e.done
	return e.err
}

// WaitContext is Wait bounded by ctx. A cancelled wait does not stop the
// launch, which keeps running to completion.
func (e *Event) WaitContext(ctx context.Context) error {
	select {
	case <-e.done:
		return e.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Query reports whether the launch has completed, without blocking.
func (e *Event) Query() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Err returns the launch error once completed, nil before.
func (e *Event) Err() error {
	if !e.Query() {
		return nil
	}
	return e.err
}

// Programs returns the number of programs the launch dispatched.
func (e *Event) Programs() int {
	return e.programs
}

// Elapsed returns the execution time of the grid, measured on the stream
// from the moment the launch started running. It waits for completion.
func (e *Event) Elapsed() time.Duration {
	<-e.done
	return e.end.Sub(e.start)
}
