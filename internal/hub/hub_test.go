package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jpalmerr/safetypole/internal/state"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingSubscriber records every snapshot it receives and can be told to
// fail or block.
type recordingSubscriber struct {
	id string

	mu       sync.Mutex
	received []state.Snapshot
	fail     error
	block    bool
	closed   atomic.Int32
	onSend   func()
}

func newRecorder(id string) *recordingSubscriber {
	return &recordingSubscriber{id: id}
}

func (r *recordingSubscriber) ID() string { return r.id }

func (r *recordingSubscriber) Send(ctx context.Context, snap state.Snapshot) error {
	r.mu.Lock()
	fail, block, onSend := r.fail, r.block, r.onSend
	r.mu.Unlock()

	if onSend != nil {
		onSend()
	}
	if fail != nil {
		return fail
	}
	if block {
		<-ctx.Done()
		return ctx.Err()
	}

	r.mu.Lock()
	r.received = append(r.received, snap)
	r.mu.Unlock()
	return nil
}

func (r *recordingSubscriber) Close() error {
	r.closed.Add(1)
	return nil
}

func (r *recordingSubscriber) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.received)
}

func (r *recordingSubscriber) seqs() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint64, len(r.received))
	for i, s := range r.received {
		out[i] = s.Seq
	}
	return out
}

func newTestHub(store Snapshotter, opts ...Option) *Hub {
	return New(store, append([]Option{WithLogger(testLogger())}, opts...)...)
}

func TestHub_PublishDeliversSameSnapshotToAll(t *testing.T) {
	store := state.NewStore()
	store.Update(state.Reading{Primary: 900, Secondary: 200})
	h := newTestHub(store)

	subs := []*recordingSubscriber{newRecorder("a"), newRecorder("b"), newRecorder("c")}
	for _, s := range subs {
		if !h.Subscribe(s) {
			t.Fatalf("Subscribe(%s) = false", s.id)
		}
	}

	report := h.Publish(context.Background())
	if report.Delivered != 3 || report.Evicted != 0 || report.Seq != 1 {
		t.Errorf("Publish() report = %+v", report)
	}

	for _, s := range subs {
		if s.count() != 1 {
			t.Fatalf("subscriber %s received %d snapshots, want 1", s.id, s.count())
		}
		if got := s.received[0].Status; got != state.StatusWarning {
			t.Errorf("subscriber %s status = %v, want WARNING", s.id, got)
		}
	}
}

func TestHub_FanOutIsolation(t *testing.T) {
	store := state.NewStore()
	h := newTestHub(store)

	s1, s2, s3 := newRecorder("1"), newRecorder("2"), newRecorder("3")
	s2.fail = errors.New("connection reset")
	h.Subscribe(s1)
	h.Subscribe(s2)
	h.Subscribe(s3)

	store.Update(state.Reading{Primary: 10})
	report := h.Publish(context.Background())

	if s1.count() != 1 || s3.count() != 1 {
		t.Errorf("healthy subscribers received %d and %d snapshots, want 1 each", s1.count(), s3.count())
	}
	if h.Has("2") {
		t.Error("failing subscriber still a member after publish")
	}
	if s2.closed.Load() != 1 {
		t.Errorf("failing subscriber closed %d times, want 1", s2.closed.Load())
	}
	if report.Evicted != 1 || report.Delivered != 2 {
		t.Errorf("Publish() report = %+v, want 2 delivered and 1 evicted", report)
	}
	if h.Len() != 2 {
		t.Errorf("Len() = %d, want 2", h.Len())
	}
}

func TestHub_SlowSubscriberTimesOut(t *testing.T) {
	store := state.NewStore()
	h := newTestHub(store, WithDeliveryTimeout(50*time.Millisecond))

	slow, fast := newRecorder("slow"), newRecorder("fast")
	slow.block = true
	h.Subscribe(slow)
	h.Subscribe(fast)

	start := time.Now()
	h.Publish(context.Background())
	elapsed := time.Since(start)

	if elapsed > time.Second {
		t.Errorf("Publish() took %s with a blocked subscriber", elapsed)
	}
	if fast.count() != 1 {
		t.Errorf("fast subscriber received %d snapshots, want 1", fast.count())
	}
	if h.Has("slow") {
		t.Error("slow subscriber should have been evicted")
	}
}

func TestHub_SubscribeIsSetLike(t *testing.T) {
	h := newTestHub(state.NewStore())
	s := newRecorder("dup")

	if !h.Subscribe(s) {
		t.Fatal("first Subscribe() = false")
	}
	if h.Subscribe(s) {
		t.Error("second Subscribe() = true, want false")
	}

	h.Publish(context.Background())
	if s.count() != 1 {
		t.Errorf("received %d snapshots, want exactly 1", s.count())
	}
}

func TestHub_UnsubscribeUnknownIsNoop(t *testing.T) {
	h := newTestHub(state.NewStore())
	h.Unsubscribe("missing")

	s := newRecorder("x")
	h.Subscribe(s)
	h.Unsubscribe("x")
	h.Unsubscribe("x")

	if s.closed.Load() != 1 {
		t.Errorf("Close() called %d times, want 1", s.closed.Load())
	}
	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.Len())
	}
}

// TestHub_UnsubscribeDuringPublish removes one subscriber from inside
// another subscriber's delivery. The removed subscriber must not receive
// the snapshot of that publish.
func TestHub_UnsubscribeDuringPublish(t *testing.T) {
	store := state.NewStore()
	h := newTestHub(store)

	victim := newRecorder("victim")
	victimGate := make(chan struct{})
	victim.onSend = func() { <-victimGate }

	trigger := newRecorder("trigger")
	unsubscribed := make(chan struct{})
	var once sync.Once
	trigger.onSend = func() {
		once.Do(func() {
			go func() {
				h.Unsubscribe("victim")
				close(unsubscribed)
			}()
		})
	}

	h.Subscribe(trigger)
	h.Subscribe(victim)

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(victimGate)
	}()

	h.Publish(context.Background())
	<-unsubscribed

	if h.Has("victim") {
		t.Error("victim still a member")
	}

	// a second publish must not reach the removed subscriber
	before := victim.count()
	store.Update(state.Reading{})
	h.Publish(context.Background())
	if victim.count() != before {
		t.Errorf("removed subscriber received a snapshot after Unsubscribe returned")
	}
	if trigger.count() != 2 {
		t.Errorf("trigger received %d snapshots, want 2", trigger.count())
	}
}

func TestHub_NoDeliveryAfterUnsubscribeReturns(t *testing.T) {
	store := state.NewStore()
	h := newTestHub(store)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			store.Update(state.Reading{Primary: 1})
			h.Publish(context.Background())
		}
	}()

	for i := 0; i < 50; i++ {
		s := newRecorder(fmt.Sprintf("s%d", i))
		h.Subscribe(s)
		time.Sleep(time.Millisecond)
		h.Unsubscribe(s.id)
		after := s.count()
		time.Sleep(2 * time.Millisecond)
		if s.count() != after {
			t.Fatalf("subscriber %s received a snapshot after Unsubscribe returned", s.id)
		}
	}

	close(stop)
	wg.Wait()
}

func TestHub_ConcurrentMembershipAndPublish(t *testing.T) {
	store := state.NewStore()
	h := newTestHub(store)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := fmt.Sprintf("%d-%d", i, j)
				h.Subscribe(newRecorder(id))
				h.Unsubscribe(id)
			}
		}(i)
	}
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				store.Update(state.Reading{Primary: float64(j)})
				h.Publish(context.Background())
			}
		}()
	}
	wg.Wait()

	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.Len())
	}
}

func TestHub_DeliveryOrderPerSubscriber(t *testing.T) {
	store := state.NewStore()
	h := newTestHub(store)
	s := newRecorder("ordered")
	h.Subscribe(s)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				store.Update(state.Reading{})
				h.Publish(context.Background())
			}
		}()
	}
	wg.Wait()

	seqs := s.seqs()
	for i := 1; i < len(seqs); i++ {
		if seqs[i] < seqs[i-1] {
			t.Fatalf("snapshot %d delivered after %d", seqs[i], seqs[i-1])
		}
	}
}

func TestHub_CancelledPublishDoesNotEvict(t *testing.T) {
	h := newTestHub(state.NewStore())
	s := newRecorder("blocked")
	s.block = true
	h.Subscribe(s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.Publish(ctx)

	if !h.Has("blocked") {
		t.Error("subscriber evicted because of a cancelled publish context")
	}
}

func TestHub_CloseDropsEveryone(t *testing.T) {
	h := newTestHub(state.NewStore())
	a, b := newRecorder("a"), newRecorder("b")
	h.Subscribe(a)
	h.Subscribe(b)

	h.Close()

	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.Len())
	}
	if a.closed.Load() != 1 || b.closed.Load() != 1 {
		t.Error("Close() did not close every subscriber")
	}
	if r := h.Publish(context.Background()); r.Delivered != 0 {
		t.Errorf("Publish() after Close delivered %d", r.Delivered)
	}
}

func TestHub_Phase(t *testing.T) {
	h := newTestHub(state.NewStore())
	s := newRecorder("p")

	if _, ok := h.Phase("p"); ok {
		t.Error("Phase() reported a member before Subscribe")
	}
	h.Subscribe(s)
	if p, ok := h.Phase("p"); !ok || p != PhaseActive {
		t.Errorf("Phase() = %v, %v; want active, true", p, ok)
	}
	h.Unsubscribe("p")
	if p, ok := h.Phase("p"); ok || p != PhaseClosed {
		t.Errorf("Phase() after Unsubscribe = %v, %v; want closed, false", p, ok)
	}
}

func TestPhase_String(t *testing.T) {
	tests := map[Phase]string{
		PhaseConnecting: "connecting",
		PhaseActive:     "active",
		PhaseClosed:     "closed",
		Phase(9):        "Phase(9)",
	}
	for p, want := range tests {
		if p.String() != want {
			t.Errorf("Phase(%d).String() = %q, want %q", int(p), p.String(), want)
		}
	}
}

func TestDeliveryError_Unwrap(t *testing.T) {
	cause := errors.New("broken pipe")
	err := error(&DeliveryError{ID: "x", Err: cause})

	if !errors.Is(err, cause) {
		t.Error("DeliveryError should unwrap to its cause")
	}
	var derr *DeliveryError
	if !errors.As(err, &derr) || derr.ID != "x" {
		t.Errorf("errors.As() = %+v", derr)
	}
}
