package safetypole

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jpalmerr/safetypole/dashboard"
	"github.com/jpalmerr/safetypole/internal/hub"
	"github.com/jpalmerr/safetypole/internal/sampler"
	"github.com/jpalmerr/safetypole/internal/server"
	"github.com/jpalmerr/safetypole/internal/state"
)

const (
	defaultSampleInterval  = 500 * time.Millisecond
	defaultPort            = 8000
	defaultDeliveryTimeout = 2 * time.Second
)

var (
	// ErrNotRunning is returned by [Monitor.Submit] when the monitor has not
	// been started or has already stopped.
	ErrNotRunning = errors.New("monitor is not running")

	// ErrAlreadyRunning is returned by [Monitor.Start] if the monitor is
	// already running.
	ErrAlreadyRunning = errors.New("monitor is already running")
)

// Monitor samples a utility pole's sensors, classifies every reading and
// pushes the resulting state to every connected dashboard.
//
// A Monitor is created with [New] and run with [Monitor.Start]:
//
//	m, err := safetypole.New(safetypole.WithPort(8000))
//	if err != nil {
//	    slog.Error("failed to create monitor", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	m.Start(ctx) // blocks until context cancelled
//
// Every reading, sampled or submitted, flows through a single goroutine
// that commits it to the state store, publishes the new state to all
// subscribers and then invokes the registered callbacks.
type Monitor struct {
	title             string
	source            Source
	sampleInterval    time.Duration
	port              int
	logger            *slog.Logger
	alertPolicy       AlertPolicy
	deliveryTimeout   time.Duration
	snapshotCallbacks []func(Snapshot)
	alertCallbacks    []func(Alert)

	mu        sync.Mutex
	running   bool
	overrides chan override
	stopped   <-chan struct{}
}

// override is a manual reading waiting for the pipeline goroutine.
type override struct {
	reading state.Reading
	applied chan struct{}
}

// New creates a [Monitor] with the given options.
//
// Defaults:
//   - Source: [SimulatedSource]
//   - Sample interval: 500ms
//   - Port: 8000
//   - Alert policy: [AlertEveryTick]
//   - Delivery timeout: 2s
//
// Returns an error if any option is invalid.
func New(opts ...Option) (*Monitor, error) {
	cfg := &monitorConfig{
		sampleInterval:  defaultSampleInterval,
		port:            defaultPort,
		alertPolicy:     AlertEveryTick,
		deliveryTimeout: defaultDeliveryTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	src := cfg.source
	if src == nil {
		sim, err := SimulatedSource()
		if err != nil {
			return nil, err
		}
		src = &sim
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		title:             cfg.title,
		source:            *src,
		sampleInterval:    cfg.sampleInterval,
		port:              cfg.port,
		logger:            logger,
		alertPolicy:       cfg.alertPolicy,
		deliveryTimeout:   cfg.deliveryTimeout,
		snapshotCallbacks: cfg.snapshotCallbacks,
		alertCallbacks:    cfg.alertCallbacks,
	}, nil
}

// Start opens the measurement source, starts sampling and serves the
// dashboard and subscription endpoints.
//
// Start is a blocking call that runs until ctx is cancelled, then stops
// sampling, disconnects every subscriber and returns nil. If the source
// cannot be opened the failure is logged and the monitor keeps serving the
// last known state; manual overrides via [Monitor.Submit] still work.
//
// Returns an error if the HTTP server fails to start or if the monitor is
// already running.
func (m *Monitor) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}

	policy, err := state.ParseAlertPolicy(string(m.alertPolicy))
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	overrides := make(chan override)
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.running = true
	m.overrides = overrides
	m.stopped = runCtx.Done()
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.overrides = nil
		m.stopped = nil
		m.mu.Unlock()
	}()

	m.logger.Info("safetypole starting", "source", m.source.String(), "alert_policy", string(m.alertPolicy))

	store := state.NewStore(state.WithAlertPolicy(policy))
	broadcaster := hub.New(store, hub.WithDeliveryTimeout(m.deliveryTimeout), hub.WithLogger(m.logger))

	var readings <-chan state.Reading
	var smp *sampler.Sampler
	live, err := m.source.open()
	if err != nil {
		m.logger.Error("measurement feed unavailable", "source", m.source.String(), "error", err)
	} else {
		smp = sampler.New(live, m.sampleInterval, m.logger)
		smp.Start(runCtx)
		readings = smp.Readings()
		m.logger.Info("sampling configured", "interval", m.sampleInterval.String())
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.consume(runCtx, readings, overrides, store, broadcaster)
	}()

	// cleanup stops the producer first, then waits for the pipeline to
	// drain, then drops every subscriber
	cleanup := func() {
		cancel()
		if smp != nil {
			smp.Stop()
		}
		wg.Wait()
		broadcaster.Close()
	}

	backend := monitorBackend{store: store, hub: broadcaster, monitor: m}
	httpServer := server.NewServer(backend, m.port, dashboard.Assets, m.title, m.logger)
	if err := httpServer.Start(runCtx); err != nil {
		cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	m.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", m.port))

	<-ctx.Done()
	cleanup()
	m.logger.Info("safetypole stopped")
	return nil
}

// Submit feeds a manual reading pair through the same path as sampled
// readings. It returns once the reading has been committed; subscribers and
// callbacks are updated right after.
//
// Returns [ErrNotRunning] if the monitor is not running, ctx's error if ctx
// ends first, or an error if a value is NaN or infinite.
func (m *Monitor) Submit(ctx context.Context, electricField, current float64) error {
	if !finite(electricField) || !finite(current) {
		return fmt.Errorf("readings must be finite, got (%v, %v)", electricField, current)
	}

	m.mu.Lock()
	overrides, stopped := m.overrides, m.stopped
	m.mu.Unlock()
	if overrides == nil {
		return ErrNotRunning
	}

	req := override{
		reading: state.Reading{Primary: electricField, Secondary: current},
		applied: make(chan struct{}),
	}

	select {
	case overrides <- req:
	case <-stopped:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.applied:
		return nil
	case <-stopped:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// consume is the pipeline goroutine: the only writer of store.
func (m *Monitor) consume(ctx context.Context, readings <-chan state.Reading, overrides <-chan override, store *state.Store, broadcaster *hub.Hub) {
	prev := state.StatusSafe
	for {
		select {
		case r, ok := <-readings:
			if !ok {
				// a nil channel blocks forever, leaving overrides in charge
				readings = nil
				m.logger.Warn("sampling stopped, serving last known state")
				continue
			}
			prev = m.apply(ctx, store, broadcaster, r, prev, "sampled")

		case req := <-overrides:
			prev = m.apply(ctx, store, broadcaster, req.reading, prev, "override")
			close(req.applied)

		case <-ctx.Done():
			return
		}
	}
}

// apply commits one reading, publishes it and runs the callbacks. It
// returns the committed status.
func (m *Monitor) apply(ctx context.Context, store *state.Store, broadcaster *hub.Hub, r state.Reading, prev state.Status, origin string) state.Status {
	c := store.Update(r)

	if c.Status != prev {
		m.logger.Info("status changed",
			"from", prev.String(),
			"to", c.Status.String(),
			"e_field", r.Primary,
			"current", r.Secondary,
			"origin", origin,
		)
	}
	if c.Alert != nil {
		attrs := []any{"level", string(c.Alert.Level), "message", c.Alert.Message, "e_field", r.Primary, "current", r.Secondary}
		if c.Alert.Level == state.LevelDanger {
			m.logger.Error("alert raised", attrs...)
		} else {
			m.logger.Warn("alert raised", attrs...)
		}
	}

	report := broadcaster.Publish(ctx)
	m.logger.Debug("state published",
		"seq", report.Seq,
		"delivered", report.Delivered,
		"evicted", report.Evicted,
		"origin", origin,
	)

	if len(m.snapshotCallbacks) > 0 {
		snap := snapshotFromState(store.Snapshot())
		for _, cb := range m.snapshotCallbacks {
			invokeCallbackSafe(cb, snap, m.logger)
		}
	}
	if c.Alert != nil && len(m.alertCallbacks) > 0 {
		alert := alertFromState(*c.Alert)
		for _, cb := range m.alertCallbacks {
			invokeCallbackSafe(cb, alert, m.logger)
		}
	}

	return c.Status
}

// Port returns the configured HTTP port.
func (m *Monitor) Port() int {
	return m.port
}

// SampleInterval returns the configured sampling interval.
func (m *Monitor) SampleInterval() time.Duration {
	return m.sampleInterval
}

// Source returns the configured measurement source.
func (m *Monitor) Source() Source {
	return m.source
}

// monitorBackend adapts the running pipeline to the HTTP layer.
type monitorBackend struct {
	store   *state.Store
	hub     *hub.Hub
	monitor *Monitor
}

func (b monitorBackend) Snapshot() state.Snapshot {
	return b.store.Snapshot()
}

func (b monitorBackend) Subscribe(sub hub.Subscriber) bool {
	return b.hub.Subscribe(sub)
}

func (b monitorBackend) Unsubscribe(id string) {
	b.hub.Unsubscribe(id)
}

func (b monitorBackend) Submit(ctx context.Context, r state.Reading) error {
	return b.monitor.Submit(ctx, r.Primary, r.Secondary)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// invokeCallbackSafe calls a callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe[T any](cb func(T), v T, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("callback panicked", "panic", r)
		}
	}()
	cb(v)
}
