package state

import (
	"sync"
	"time"
)

const (
	// HistoryLimit is the maximum number of alerts retained.
	HistoryLimit = 10

	// defaultVoltage is the auxiliary voltage reported before any source
	// provides one.
	defaultVoltage = 230.0

	alertTimeLayout = "15:04:05"
)

// Option configures a [Store].
type Option func(*Store)

// WithAlertPolicy sets the policy deciding which ticks append alerts.
// Defaults to [AlertEveryTick].
func WithAlertPolicy(p AlertPolicy) Option {
	return func(s *Store) {
		s.policy = p
	}
}

// WithClock sets the clock used to timestamp alerts. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is the single shared state of the monitor.
//
// All fields are guarded by one RWMutex: [Store.Update] commits readings,
// classification and history in a single critical section, so a reader
// never sees the reading of one tick paired with the classification of
// another.
type Store struct {
	mu     sync.RWMutex
	cur    Snapshot
	policy AlertPolicy
	now    func() time.Time
}

// NewStore creates an empty [Store] reporting SAFE.
func NewStore(opts ...Option) *Store {
	s := &Store{
		cur: Snapshot{
			Voltage: defaultVoltage,
			Status:  StatusSafe,
		},
		policy: AlertEveryTick,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update replaces the current reading, reclassifies it and commits the
// result. The returned [Classification] carries the alert appended to
// history by this update, if any.
func (s *Store) Update(r Reading) Classification {
	c := Classify(r.Primary, r.Secondary)

	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Alert != nil && s.policy.emits(s.cur.Status, c.Status) {
		c.Alert.Time = s.now().Format(alertTimeLayout)
		s.pushAlert(*c.Alert)
	} else {
		c.Alert = nil
	}

	s.cur.Seq++
	s.cur.Primary = r.Primary
	s.cur.Secondary = r.Secondary
	if r.Aux != nil {
		s.cur.Voltage = r.Aux.Voltage
		s.cur.Position = r.Aux.Position
	}
	s.cur.Status = c.Status
	s.cur.IndicatorOn = c.IndicatorOn
	s.cur.AlarmOn = c.AlarmOn

	return c
}

// pushAlert inserts a at the head of the history and evicts the oldest
// entries beyond [HistoryLimit]. Callers must hold s.mu.
//
// The history slice is replaced rather than shifted in place so snapshots
// taken earlier never share a backing array with the live state.
func (s *Store) pushAlert(a Alert) {
	n := len(s.cur.Alerts) + 1
	if n > HistoryLimit {
		n = HistoryLimit
	}
	alerts := make([]Alert, n)
	alerts[0] = a
	copy(alerts[1:], s.cur.Alerts)
	s.cur.Alerts = alerts
}

// Snapshot returns a consistent copy of the current state. The returned
// value shares no memory with the store.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.cur
	snap.Alerts = make([]Alert, len(s.cur.Alerts))
	copy(snap.Alerts, s.cur.Alerts)
	return snap
}
