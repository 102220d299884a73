// Package dashboard provides the embedded web UI assets for SafetyPole.
//
// This package uses Go's embed directive to include the dashboard HTML, CSS,
// and JavaScript at compile time. This enables single-binary deployment
// without external asset files.
//
// The embedded assets are served by the server package at the root path ("/").
// Users of the safetypole library should not need to interact with this
// package directly.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Live status page; {{.Title}} is replaced at serve time
//
// The page connects to /ws and falls back to /api/sse, and posts manual
// readings to /api/readings.
//
//go:embed assets/*
var Assets embed.FS
