package hub

import (
	"context"
	"errors"
	"sync"

	"github.com/jpalmerr/safetypole/internal/state"
)

// Subscriber is one live connection eligible to receive snapshots.
//
// ID must be unique per connection and stable for its lifetime. Send must
// honour ctx: the hub cancels it when the delivery timeout expires.
//
// If a Subscriber also implements Close() error, the hub calls it once when
// the subscriber is evicted or unsubscribed.
type Subscriber interface {
	ID() string
	Send(ctx context.Context, snap state.Snapshot) error
}

// ErrSubscriberClosed is returned by [ChanSubscriber.Send] after Close.
var ErrSubscriberClosed = errors.New("subscriber closed")

// ChanSubscriber is a [Subscriber] backed by a buffered channel. A consumer
// that falls behind fills the buffer; the next Send then blocks until the
// delivery timeout and the subscriber is evicted.
type ChanSubscriber struct {
	id string
	ch chan state.Snapshot

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewChanSubscriber creates a [ChanSubscriber] with the given buffer size.
// A non-positive size defaults to 8.
func NewChanSubscriber(id string, buffer int) *ChanSubscriber {
	if buffer <= 0 {
		buffer = 8
	}
	return &ChanSubscriber{
		id:   id,
		ch:   make(chan state.Snapshot, buffer),
		done: make(chan struct{}),
	}
}

// ID returns the subscriber ID.
func (c *ChanSubscriber) ID() string {
	return c.id
}

// Snapshots returns the channel of delivered snapshots.
func (c *ChanSubscriber) Snapshots() <-chan state.Snapshot {
	return c.ch
}

// Done is closed when the subscriber is closed by the hub or its owner.
func (c *ChanSubscriber) Done() <-chan struct{} {
	return c.done
}

// Send queues snap, waiting for buffer space until ctx is done.
func (c *ChanSubscriber) Send(ctx context.Context, snap state.Snapshot) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrSubscriberClosed
	}

	select {
	case c.ch <- snap:
		return nil
	case <-c.done:
		return ErrSubscriberClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close marks the subscriber closed and signals Done. The snapshot channel
// is left open so a pending Send never panics. Safe to call more than once.
func (c *ChanSubscriber) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}
