package feed

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jpalmerr/safetypole/internal/state"
)

// walkMax is the full-scale value of the 12-bit ADC the random walk emulates.
const walkMax = 4095

// SimOption configures a synthetic source.
type SimOption func(*simConfig)

type simConfig struct {
	rng *rand.Rand
	now func() time.Time
}

// WithRand sets the random generator. Tests use a seeded generator for
// reproducible output.
func WithRand(rng *rand.Rand) SimOption {
	return func(c *simConfig) {
		if rng != nil {
			c.rng = rng
		}
	}
}

// WithSimClock sets the clock driving the waveform phase.
func WithSimClock(now func() time.Time) SimOption {
	return func(c *simConfig) {
		if now != nil {
			c.now = now
		}
	}
}

func newSimConfig(opts []SimOption) simConfig {
	cfg := simConfig{
		rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Wave is a synthetic [Source] producing a smooth waveform plus bounded
// jitter on each channel, a nominal 230 V supply and a jittered position
// fix. Readings are clamped to be non-negative.
type Wave struct {
	mu  sync.Mutex
	cfg simConfig
}

// NewWave creates a [Wave] source.
func NewWave(opts ...SimOption) *Wave {
	return &Wave{cfg: newSimConfig(opts)}
}

// Next returns the reading for the current instant.
func (w *Wave) Next(ctx context.Context) (state.Reading, error) {
	if err := ctx.Err(); err != nil {
		return state.Reading{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	rng := w.cfg.rng
	t := float64(w.cfg.now().UnixNano()) / float64(time.Second)

	return state.Reading{
		Primary:   math.Max(0, 200+math.Sin(t)*100+jitter(rng, 50)),
		Secondary: math.Max(0, 20+math.Sin(t/2)*50+jitter(rng, 10)),
		Aux: &state.Auxiliary{
			Voltage: 230 + jitter(rng, 5),
			Position: state.Position{
				Latitude:   10.0 + jitter(rng, 0.001),
				Longitude:  76.0 + jitter(rng, 0.001),
				Accuracy:   float64(5 + rng.IntN(11)),
				Satellites: 7 + rng.IntN(6),
			},
		},
	}, nil
}

// Close is a no-op.
func (w *Wave) Close() error {
	return nil
}

// jitter returns a uniform value in [-span/2, span/2).
func jitter(rng *rand.Rand, span float64) float64 {
	return (rng.Float64() - 0.5) * span
}

// RandomWalk is a synthetic [Source] where each channel moves by a bounded
// random step per sample and stays within the 12-bit ADC range. It carries
// no auxiliary context.
type RandomWalk struct {
	mu        sync.Mutex
	cfg       simConfig
	primary   int
	secondary int
}

// NewRandomWalk creates a [RandomWalk] source starting at zero.
func NewRandomWalk(opts ...SimOption) *RandomWalk {
	return &RandomWalk{cfg: newSimConfig(opts)}
}

// Next advances the walk by one step.
func (w *RandomWalk) Next(ctx context.Context) (state.Reading, error) {
	if err := ctx.Err(); err != nil {
		return state.Reading{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.primary = clamp(w.primary+w.cfg.rng.IntN(201)-100, 0, walkMax)
	w.secondary = clamp(w.secondary+w.cfg.rng.IntN(241)-120, 0, walkMax)

	return state.Reading{
		Primary:   float64(w.primary),
		Secondary: float64(w.secondary),
	}, nil
}

// Close is a no-op.
func (w *RandomWalk) Close() error {
	return nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
