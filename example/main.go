package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jpalmerr/safetypole"
)

func main() {
	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the simulator plays the pole's firmware; its lines reach the monitor
	// through a pipe exactly as they would through a serial port
	pr, pw := io.Pipe()
	go func() {
		RunFeedSimulator(ctx, pw)
		_ = pw.Close()
	}()

	src, err := safetypole.ReaderSource(pr, safetypole.WithParser(safetypole.LabeledParser))
	if err != nil {
		slog.Error("failed to create source", "error", err)
		os.Exit(1)
	}

	m, err := safetypole.New(
		safetypole.WithSource(src),
		safetypole.WithPort(8000),
		safetypole.WithTitle("SafetyPole Demo"),
		safetypole.WithAlertPolicy(safetypole.AlertOnTransition),
		safetypole.WithAlertCallback(func(a safetypole.Alert) {
			fmt.Printf("  !! %s %s: %s\n", a.Time, a.Level, a.Message)
		}),
	)
	if err != nil {
		slog.Error("failed to create monitor", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   SafetyPole Demo                                     ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8000 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   The simulated pole moves between SAFE, WARNING      ║")
	fmt.Println("  ║   and DANGER every 20-60 seconds.                     ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	if err := m.Start(ctx); err != nil {
		slog.Error("safetypole error", "error", err)
		os.Exit(1)
	}
}
