// Package hub fans state snapshots out to live subscribers.
//
// This package is internal to SafetyPole. The main components are:
//
//   - [Hub]: owns the dynamic subscriber set and publishes snapshots
//   - [Subscriber]: one live connection able to receive snapshots
//   - [ChanSubscriber]: a channel-backed subscriber for pull-style transports
//   - [Phase]: the lifecycle of a subscriber (connecting, active, closed)
//
// A publish takes one snapshot and delivers it to every member
// concurrently, each delivery bounded by a timeout. A member whose delivery
// fails is evicted; the others are unaffected.
package hub
