// Package safetypole monitors a utility pole for a snapped or sagging
// conductor and streams its safety state to live dashboards.
//
// A [Monitor] samples two channels, the electric field near the pole and
// the conductor current, classifies every reading as SAFE, WARNING or
// DANGER against fixed thresholds, keeps the ten most recent alerts and
// pushes the new state to every connected observer.
//
// # Quick Start
//
//	m, _ := safetypole.New() // simulated sensor on port 8000
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	m.Start(ctx) // blocks until context is cancelled
//
// # Sources
//
// Readings come from a [Source]:
//
//   - [SimulatedSource]: sine wave with voltage and GNSS context
//   - [RandomWalkSource]: bounded random walk shaped like raw ADC counts
//   - [SerialSource]: the sensor board over a serial port (8N1, 115200 baud)
//   - [FileSource]: a file, named pipe or standard input
//   - [ReaderSource]: any [io.Reader]
//
// Line-based sources decode each line with a [LineParser]. The firmware
// formats "E-Field:900|Current:200" ([LabeledParser]) and "900,200"
// ([CSVParser]) are built in; [DefaultParser] accepts both.
//
// # Classification
//
//	e_field > 1200 or current > 1500  ->  DANGER   indicator on, alarm on
//	e_field >  800 or current > 1000  ->  WARNING  indicator on
//	otherwise                         ->  SAFE
//
// # Observers
//
// The HTTP server exposes the embedded dashboard at "/", the current state
// at "/api/state", live updates over WebSocket at "/ws" and over
// Server-Sent Events at "/api/sse", and a manual override at
// "/api/readings". In-process observers use [WithSnapshotCallback] and
// [WithAlertCallback].
//
// # Architecture
//
//   - internal/feed: measurement sources and line parsers
//   - internal/sampler: the sampling loop
//   - internal/state: classifier, alert history and state store
//   - internal/hub: subscriber set and fan-out
//   - internal/server: HTTP, WebSocket and SSE
//   - dashboard: embedded web UI assets
package safetypole
