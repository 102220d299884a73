// Package main is the entry point for the safetypole CLI.
//
// SafetyPole can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	safetypole serve -c config.yaml    # Start the monitor and dashboard
//	safetypole validate -c config.yaml # Validate configuration
//	safetypole version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "safetypole",
	Short: "A live safety monitor for utility poles",
	Long: `SafetyPole samples the electric field and conductor current of a
utility pole, classifies every reading as SAFE, WARNING or DANGER and
pushes the live state to a web dashboard over WebSocket and Server-Sent
Events.

Quick start:
  1. Create a config file (safetypole.yaml)
  2. Run: safetypole serve -c safetypole.yaml
  3. Open http://localhost:8000 in your browser

Without a config file the monitor runs on a simulated feed:
  safetypole serve

Example config:
  port: 8000
  sample_interval: 500ms
  source:
    type: serial
    port: /dev/ttyUSB0
    baud_rate: 115200`,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this safetypole binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "safetypole %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
