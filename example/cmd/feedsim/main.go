// Standalone feed simulator for testing the CLI without hardware.
//
// It prints firmware-style lines to stdout, cycling the pole through the
// safe, warning and danger bands every 20-60 seconds.
//
// Usage:
//
//	go run ./example/cmd/feedsim | go run ./cmd/safetypole serve -c example/config.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	// logs go to stderr so stdout carries only feed lines
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bands := []struct {
		name        string
		field, amps float64
	}{
		{"safe", 450, 600},
		{"warning", 950, 1100},
		{"danger", 1450, 1700},
	}

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
			old := bands[idx].name
			idx = (idx + 1) % len(bands)
			nextChangeAt = time.Now().Add(time.Duration(20+rand.Intn(41)) * time.Second)
			slog.Info("band change", "from", old, "to", bands[idx].name)
		}

		b := bands[idx]
		field := b.field + (rand.Float64()*2-1)*100
		amps := b.amps + (rand.Float64()*2-1)*100
		if _, err := fmt.Printf("E-Field:%.1f|Current:%.1f\n", field, amps); err != nil {
			os.Exit(1)
		}
	}
}
