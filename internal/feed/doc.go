// Package feed provides the measurement sources of SafetyPole.
//
// This package is internal to SafetyPole. A [Source] yields one
// [state.Reading] per call to Next. Implementations:
//
//   - [Wave]: synthetic smooth waveform with bounded jitter on each channel
//   - [RandomWalk]: synthetic bounded random walk
//   - [LineSource]: line-oriented text feed, typically a serial port opened
//     with [OpenSerial]
//
// Lines are parsed by a [Parser]; [ParseLabeled] reads
// "E-Field:900|Current:200" and [ParseCSV] reads "900,200".
//
// Errors are classified with two sentinels: [ErrMalformed] for a sample
// that should be skipped and [ErrUnavailable] for a feed that can no
// longer produce data.
package feed
