// Package sampler runs the sampling loop of SafetyPole.
//
// This package is internal to SafetyPole. A [Sampler] pulls readings from a
// feed.Source at a fixed cadence (or back to back for self-paced sources)
// and emits them on a channel. The consumer of that channel owns the state
// store and the broadcast hub, so the sampler never touches shared state.
//
// Malformed samples are logged and skipped. An unavailable feed ends the
// loop and closes the channel without affecting anything downstream.
package sampler
