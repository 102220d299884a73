package main

import (
	"fmt"

	"github.com/jpalmerr/safetypole/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the monitor.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a SafetyPole configuration file without starting the monitor.

This command parses the YAML, expands environment variables, validates
all fields and builds the measurement source. It does not open the serial
port or file. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  safetypole validate -c config.yaml
  safetypole validate --config /etc/safetypole/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	src, err := config.BuildSource(cfg.Source)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	policy := cfg.AlertPolicy
	if policy == "" {
		policy = "every_tick"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:            %d\n", cfg.Port)
	fmt.Fprintf(out, "  Sample interval: %s\n", cfg.SampleInterval.Duration())
	fmt.Fprintf(out, "  Alert policy:    %s\n", policy)
	fmt.Fprintf(out, "  Source:          %s\n", src)

	return nil
}
