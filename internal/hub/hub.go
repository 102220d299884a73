package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jpalmerr/safetypole/internal/state"
)

// defaultDeliveryTimeout bounds a single delivery so one slow subscriber
// cannot stall a publish cycle.
const defaultDeliveryTimeout = 2 * time.Second

// Phase is the lifecycle phase of a subscriber.
type Phase int

const (
	// PhaseConnecting is the phase before the subscriber joins the hub.
	PhaseConnecting Phase = iota
	// PhaseActive subscribers receive every publish.
	PhaseActive
	// PhaseClosed is terminal. A closed subscriber never receives again.
	PhaseClosed
)

// String returns the lower-case phase name.
func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseActive:
		return "active"
	case PhaseClosed:
		return "closed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// DeliveryError reports a failed delivery to one subscriber.
type DeliveryError struct {
	ID  string
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to subscriber %s: %v", e.ID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Snapshotter provides the state published by the hub.
type Snapshotter interface {
	Snapshot() state.Snapshot
}

// Report summarises one publish.
type Report struct {
	// Seq is the sequence number of the published snapshot.
	Seq       uint64
	Delivered int
	Evicted   int
}

// Option configures a [Hub].
type Option func(*Hub)

// WithDeliveryTimeout bounds each delivery. Non-positive values are ignored.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithLogger sets the logger for membership and delivery events.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Hub owns the subscriber set and publishes snapshots to it.
//
// Membership may change at any time, including during a publish: a publish
// delivers to a stable copy of the membership, and a subscriber removed
// mid-publish is skipped. Publishes are serialized, and a subscriber never
// receives a snapshot older than one it already received.
type Hub struct {
	source  Snapshotter
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.RWMutex
	members map[string]*member

	publishMu sync.Mutex
}

// New creates a [Hub] publishing snapshots taken from source.
func New(source Snapshotter, opts ...Option) *Hub {
	h := &Hub{
		source:  source,
		timeout: defaultDeliveryTimeout,
		logger:  slog.Default(),
		members: make(map[string]*member),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe adds sub to the hub and activates it. Adding an ID that is
// already a member is a no-op and returns false.
func (h *Hub) Subscribe(sub Subscriber) bool {
	m := &member{sub: sub, phase: PhaseConnecting}

	h.mu.Lock()
	if _, exists := h.members[sub.ID()]; exists {
		h.mu.Unlock()
		return false
	}
	m.activate()
	h.members[sub.ID()] = m
	n := len(h.members)
	h.mu.Unlock()

	h.logger.Debug("subscriber added", "subscriber_id", sub.ID(), "subscribers", n)
	return true
}

// Unsubscribe removes the subscriber with the given ID. Unknown IDs are
// ignored.
//
// If a delivery to the subscriber is in flight, Unsubscribe waits for it
// (at most the delivery timeout); once it returns, the subscriber receives
// nothing more. Unsubscribe must not be called from within Send.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	m, ok := h.members[id]
	if ok {
		delete(h.members, id)
	}
	n := len(h.members)
	h.mu.Unlock()

	if !ok {
		return
	}
	if m.close() {
		h.logger.Debug("subscriber removed", "subscriber_id", id, "subscribers", n)
	}
}

// Publish takes one snapshot and delivers it to every active subscriber.
//
// Deliveries run concurrently, each bounded by the delivery timeout. A
// subscriber whose delivery fails is evicted. Failures are never returned
// to the caller; they only appear in the [Report] and the log.
func (h *Hub) Publish(ctx context.Context) Report {
	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	snap := h.source.Snapshot()
	report := Report{Seq: snap.Seq}

	h.mu.RLock()
	members := make([]*member, 0, len(h.members))
	for _, m := range h.members {
		members = append(members, m)
	}
	h.mu.RUnlock()

	if len(members) == 0 {
		return report
	}

	sent := make([]bool, len(members))
	errs := make([]error, len(members))

	var wg sync.WaitGroup
	for i, m := range members {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sent[i], errs[i] = m.deliver(ctx, h.timeout, snap)
		}()
	}
	wg.Wait()

	for i, m := range members {
		if sent[i] {
			report.Delivered++
			continue
		}
		if errs[i] == nil {
			continue
		}
		// deliveries cut short by shutdown are not the subscriber's fault
		if ctx.Err() != nil {
			continue
		}
		derr := &DeliveryError{ID: m.sub.ID(), Err: errs[i]}
		if h.evict(m) {
			report.Evicted++
			h.logger.Warn("evicting subscriber", "subscriber_id", derr.ID, "seq", snap.Seq, "error", derr.Error())
		}
	}

	return report
}

// evict removes m if it is still the registered member for its ID and
// closes it. Returns true if this call closed it.
func (h *Hub) evict(m *member) bool {
	id := m.sub.ID()
	h.mu.Lock()
	if cur, ok := h.members[id]; ok && cur == m {
		delete(h.members, id)
	}
	h.mu.Unlock()
	return m.close()
}

// Close removes and closes every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	members := h.members
	h.members = make(map[string]*member)
	h.mu.Unlock()

	for _, m := range members {
		m.close()
	}
}

// Len returns the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members)
}

// Has reports whether id is an active subscriber.
func (h *Hub) Has(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.members[id]
	return ok
}

// Phase returns the phase of the member with the given ID. The boolean is
// false if id is not a member; removed subscribers are forgotten.
func (h *Hub) Phase(id string) (Phase, bool) {
	h.mu.RLock()
	m, ok := h.members[id]
	h.mu.RUnlock()
	if !ok {
		return PhaseClosed, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase, true
}

// member is the hub's record of one subscriber. mu serializes delivery
// against closing, so a closed member is never sent to.
type member struct {
	sub Subscriber

	mu      sync.Mutex
	phase   Phase
	lastSeq uint64
}

func (m *member) activate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseConnecting {
		m.phase = PhaseActive
	}
}

// deliver sends snap unless the member is closed or has already received
// a newer snapshot. It reports whether the snapshot was sent.
func (m *member) deliver(ctx context.Context, timeout time.Duration, snap state.Snapshot) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseActive || snap.Seq < m.lastSeq {
		return false, nil
	}

	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := m.sub.Send(dctx, snap); err != nil {
		return false, err
	}
	m.lastSeq = snap.Seq
	return true, nil
}

// close moves the member to PhaseClosed and closes the subscriber if it
// supports it. Returns false if the member was already closed.
func (m *member) close() bool {
	m.mu.Lock()
	if m.phase == PhaseClosed {
		m.mu.Unlock()
		return false
	}
	m.phase = PhaseClosed
	m.mu.Unlock()

	if c, ok := m.sub.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	return true
}
