// Package server provides the HTTP surface of SafetyPole.
//
// It serves the embedded dashboard, the current state as JSON, two live
// subscription transports (Server-Sent Events at "/api/sse" and WebSocket
// at "/ws") and a manual override route for injecting a reading pair.
//
// Every live connection is registered with the broadcast hub as one
// subscriber, identified by a random UUID, and removed again when the
// connection ends. The server shuts down gracefully with a 5-second
// timeout when its context is cancelled.
//
// Users of the safetypole library should not need to interact with this
// package directly. The server is started by [safetypole.Monitor.Start].
package server
