package sampler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/safetypole/internal/feed"
	"github.com/jpalmerr/safetypole/internal/state"
)

// Sampler pulls readings from a source and emits them on [Sampler.Readings].
//
// The sampler samples immediately on start, then once per interval. A
// self-paced source (see feed.SelfPaced) is read back to back and sets its
// own cadence.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Sampler struct {
	source   feed.Source
	interval time.Duration
	readings chan state.Reading
	logger   *slog.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu        sync.Mutex
	started   bool
	stopped   bool
	closeOnce sync.Once
}

// New creates a [Sampler] for source ticking every interval.
//
// The sampler must be started with [Sampler.Start] and stopped with
// [Sampler.Stop]. Stop closes the source.
func New(source feed.Source, interval time.Duration, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{
		source:   source,
		interval: interval,
		readings: make(chan state.Reading, 1),
		logger:   logger,
	}
}

// Readings returns the channel of sampled readings. It is closed when the
// loop ends, either because the sampler was stopped or because the feed
// became unavailable.
func (s *Sampler) Readings() <-chan state.Reading {
	return s.readings
}

// Start begins the sampling loop in a background goroutine.
//
// Start is idempotent; calls after the first are no-ops, and Start after
// Stop does nothing.
func (s *Sampler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.closeOnce.Do(func() { close(s.readings) })

		if feed.IsSelfPaced(s.source) {
			s.runSelfPaced(loopCtx)
			return
		}
		s.runTicker(loopCtx)
	}()
}

// Stop ends the loop, closes the source and waits for the loop goroutine
// to exit. Stop is idempotent and safe to call before Start.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	// closing the source unblocks a read pending on a device
	if err := s.source.Close(); err != nil {
		s.logger.Debug("measurement source close failed", "error", err)
	}

	s.wg.Wait()
	s.closeOnce.Do(func() { close(s.readings) })
}

func (s *Sampler) runTicker(ctx context.Context) {
	if !s.sampleOnce(ctx) {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.sampleOnce(ctx) {
				return
			}
		}
	}
}

func (s *Sampler) runSelfPaced(ctx context.Context) {
	for ctx.Err() == nil {
		if !s.sampleOnce(ctx) {
			return
		}
	}
}

// sampleOnce reads one sample and emits it. It returns false when the loop
// must end.
func (s *Sampler) sampleOnce(ctx context.Context) bool {
	r, err := s.safeNext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		if errors.Is(err, feed.ErrMalformed) {
			s.logger.Warn("skipping malformed sample", "error", err)
			return true
		}
		s.logger.Error("measurement feed stopped", "error", err)
		return false
	}

	select {
	case s.readings <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

// safeNext calls the source with panic recovery. A panic is logged with a
// correlation ID and reported as a malformed sample so the loop continues.
func (s *Sampler) safeNext(ctx context.Context) (r state.Reading, err error) {
	defer func() {
		if p := recover(); p != nil {
			correlationID := uuid.NewString()
			s.logger.Error("measurement source panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", p),
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("%w: source panic (correlation_id: %s)", feed.ErrMalformed, correlationID)
		}
	}()
	return s.source.Next(ctx)
}
