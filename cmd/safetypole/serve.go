package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/safetypole"
	"github.com/jpalmerr/safetypole/config"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
)

// serveCmd starts the monitor and its dashboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the monitor and dashboard server",
	Long: `Start the SafetyPole monitor.

The monitor will:
  - Load configuration from the specified YAML file, if any
  - Open the configured measurement source and start sampling
  - Serve the dashboard UI and the live /ws and /api/sse streams

If the measurement source cannot be opened the dashboard still starts and
shows the last known state; readings can be submitted by hand.

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  safetypole serve
  safetypole serve -c config.yaml --log-format text
  safetypole serve --config /etc/safetypole/config.yaml --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (defaults to a simulated feed)")
	serveCmd.Flags().String("log-format", "json", "log format: json or text")
	serveCmd.Flags().String("log-level", "info", "log level: debug, info, warn, or error")
}

func runServe(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("log-format")
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := newLogger(os.Stderr, format, level)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"source", cfg.Source.Type,
		"alert_policy", cfg.AlertPolicy,
	)
	logger.Info("starting server",
		"port", cfg.Port,
		"sample_interval", cfg.SampleInterval.Duration().String(),
	)

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}
	opts = append(opts, safetypole.WithLogger(logger))

	m, err := safetypole.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start monitor - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- m.Start(ctx)
	}()

	// wait for monitor to finish
	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}

// loadConfig reads the --config file, or parses an empty document for
// the built-in defaults when no file is given.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		return config.Parse(nil)
	}
	return config.Load(configFile)
}
