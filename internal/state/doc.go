// Package state holds the live safety state of a monitored pole.
//
// This package is internal to SafetyPole. It owns the single mutable record
// that the sampling loop writes and every subscriber reads:
//
//   - [Store]: the lock-protected state with one write path ([Store.Update])
//     and one read path ([Store.Snapshot])
//   - [Classify]: the pure threshold policy applied on every update
//   - [Snapshot]: an immutable copy of the state handed to consumers
//   - [Message]: the fixed JSON schema pushed to subscribers
//
// The alert history is bounded to [HistoryLimit] entries, newest first.
package state
