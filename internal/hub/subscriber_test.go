package hub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jpalmerr/safetypole/internal/state"
)

func TestChanSubscriber_SendAndReceive(t *testing.T) {
	s := NewChanSubscriber("c1", 2)
	if s.ID() != "c1" {
		t.Errorf("ID() = %q, want %q", s.ID(), "c1")
	}

	if err := s.Send(context.Background(), state.Snapshot{Seq: 7}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	got := <-s.Snapshots()
	if got.Seq != 7 {
		t.Errorf("Seq = %d, want 7", got.Seq)
	}
}

func TestChanSubscriber_FullBufferHonoursContext(t *testing.T) {
	s := NewChanSubscriber("c1", 1)
	if err := s.Send(context.Background(), state.Snapshot{Seq: 1}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Send(ctx, state.Snapshot{Seq: 2})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Send() error = %v, want deadline exceeded", err)
	}
}

func TestChanSubscriber_SendAfterClose(t *testing.T) {
	s := NewChanSubscriber("c1", 0)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	select {
	case <-s.Done():
	default:
		t.Fatal("Done() not closed after Close")
	}

	if err := s.Send(context.Background(), state.Snapshot{}); !errors.Is(err, ErrSubscriberClosed) {
		t.Errorf("Send() error = %v, want ErrSubscriberClosed", err)
	}
}

func TestChanSubscriber_EvictedByHub(t *testing.T) {
	store := state.NewStore()
	h := newTestHub(store, WithDeliveryTimeout(20*time.Millisecond))

	s := NewChanSubscriber("lagging", 1)
	h.Subscribe(s)

	// nobody drains the channel: the first publish fills it, the second times out
	h.Publish(context.Background())
	store.Update(state.Reading{})
	h.Publish(context.Background())

	if h.Has("lagging") {
		t.Error("lagging subscriber still a member")
	}
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Error("evicted subscriber's Done() not closed")
	}
}
