package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"
)

// phase is one band the simulated pole dwells in.
type phase struct {
	name        string
	field, amps float64
	spread      float64
}

var phases = []phase{
	{name: "safe", field: 450, amps: 600, spread: 120},
	{name: "warning", field: 950, amps: 1100, spread: 80},
	{name: "danger", field: 1450, amps: 1700, spread: 150},
}

// RunFeedSimulator writes firmware-style lines ("E-Field:<v>|Current:<v>")
// to w every 200ms until ctx is done or a write fails. The pole changes
// band every 20-60 seconds.
func RunFeedSimulator(ctx context.Context, w io.Writer) {
	idx := 0
	nextChangeAt := time.Now().Add(time.Duration(20+rand.Intn(41)) * time.Second)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if time.Now().After(nextChangeAt) {
			old := phases[idx].name
			idx = (idx + 1) % len(phases)
			nextChangeAt = time.Now().Add(time.Duration(20+rand.Intn(41)) * time.Second)
			slog.Info("feed phase change", "from", old, "to", phases[idx].name)
		}

		p := phases[idx]
		field := p.field + (rand.Float64()*2-1)*p.spread
		amps := p.amps + (rand.Float64()*2-1)*p.spread
		if _, err := fmt.Fprintf(w, "E-Field:%.1f|Current:%.1f\n", field, amps); err != nil {
			slog.Warn("feed simulator stopped", "error", err)
			return
		}
	}
}
