package pipeline

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded stops a retry sequence once a newer write of the same
// entity has been submitted; the newer write carries the full state.
var ErrSuperseded = errors.New("superseded by a newer write")

// Write is the handle of one asynchronous remote write
type Write struct {
	ID      string
	Entity  string
	Seq     uint64
	applied bool

	once     sync.Once
	done     chan struct{}
	err      error
	attempts int
}

func newWrite(id, entity string, seq uint64) *Write {
	return &Write{
		ID:      id,
		Entity:  entity,
		Seq:     seq,
		applied: true,
		done:    make(chan struct{}),
	}
}

// Skipped returns a completed Write for a mutation that was not applied
// locally (for example because nobody is signed in)
func Skipped(entity string, err error) *Write {
	w := &Write{Entity: entity, done: make(chan struct{})}
	w.finish(0, err)
	return w
}

func (w *Write) finish(attempts int, err error) {
	w.once.Do(func() {
		w.attempts = attempts
		w.err = err
		close(w.done)
	})
}

// Applied reports whether the optimistic local update happened
func (w *Write) Applied() bool {
	return w.applied
}

// Done is closed when the remote outcome is known
func (w *Write) Done() <-chan struct{} {
	return w.done
}

// Wait blocks until the remote outcome is known or ctx is done. A write that
// was superseded by a newer one for the same entity returns nil.
func (w *Write) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
	}
	if errors.Is(w.err, ErrSuperseded) {
		return nil
	}
	return w.err
}

// Err returns the remote outcome; only meaningful after Done is closed
func (w *Write) Err() error {
	select {
	case <-w.done:
		return w.err
	default:
		return nil
	}
}

// Superseded reports whether a newer write of the entity replaced this one
func (w *Write) Superseded() bool {
	return errors.Is(w.Err(), ErrSuperseded)
}

// Attempts returns how many remote calls were made
func (w *Write) Attempts() int {
	<-w.done
	return w.attempts
}
