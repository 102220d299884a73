// Package config provides YAML configuration parsing for SafetyPole.
//
// This package enables running SafetyPole as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Pole 17 - Riverside
//	port: 8000
//	sample_interval: 500ms
//	alert_policy: on_transition
//
//	source:
//	  type: serial
//	  port: ${SAFETYPOLE_SERIAL:-/dev/ttyUSB0}
//	  baud_rate: 115200
//	  format: labeled
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// minSampleInterval and maxSampleInterval mirror the library bounds.
	minSampleInterval = 50 * time.Millisecond
	maxSampleInterval = time.Minute

	defaultPort           = 8000
	defaultSampleInterval = 500 * time.Millisecond
)

// Source types.
const (
	SourceSimulated = "simulated"
	SourceSerial    = "serial"
	SourceFile      = "file"
)

// Simulation modes for the simulated source.
const (
	ModeWave = "wave"
	ModeWalk = "walk"
)

// Line formats for serial and file sources.
const (
	FormatAuto    = "auto"
	FormatLabeled = "labeled"
	FormatCSV     = "csv"
)

// Config is the root configuration structure for SafetyPole.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "SafetyPole" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8000.
	Port int `yaml:"port"`

	// SampleInterval is the time between samples of a paced source.
	// Accepts duration strings like "500ms" or "2s". Defaults to 500ms.
	SampleInterval Duration `yaml:"sample_interval"`

	// AlertPolicy is "every_tick" (default) or "on_transition".
	AlertPolicy string `yaml:"alert_policy"`

	// DeliveryTimeout bounds a single push to one subscriber.
	// Defaults to the library default when unset.
	DeliveryTimeout Duration `yaml:"delivery_timeout"`

	// Source selects where measurements come from. Defaults to a
	// simulated wave.
	Source SourceConfig `yaml:"source"`
}

// SourceConfig describes the measurement source.
type SourceConfig struct {
	// Type is "simulated", "serial" or "file". Defaults to "simulated".
	Type string `yaml:"type"`

	// Mode is the simulation shape for type simulated: "wave" (default)
	// or "walk".
	Mode string `yaml:"mode"`

	// Seed makes a simulated source reproducible. Zero means unseeded.
	Seed uint64 `yaml:"seed"`

	// Port is the serial device for type serial, e.g. /dev/ttyUSB0 or COM3.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	Port string `yaml:"port"`

	// BaudRate is the serial line speed. Defaults to 115200.
	BaudRate int `yaml:"baud_rate"`

	// Path is the file or named pipe for type file. "-" reads stdin.
	// Supports environment variable substitution.
	Path string `yaml:"path"`

	// Format is the line format for serial and file sources: "auto"
	// (default), "labeled" or "csv".
	Format string `yaml:"format"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in the title and the source port and
// path. Defaults are applied for Port (8000), SampleInterval (500ms) and
// the source (simulated wave).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.SampleInterval == 0 {
		cfg.SampleInterval = Duration(defaultSampleInterval)
	}
	if cfg.Source.Type == "" {
		cfg.Source.Type = SourceSimulated
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	title, err := expandEnvVars(c.Title)
	if err != nil {
		return fmt.Errorf("title: %w", err)
	}
	c.Title = title

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if d := c.SampleInterval.Duration(); d < minSampleInterval || d > maxSampleInterval {
		return fmt.Errorf("sample_interval must be between %s and %s, got %s", minSampleInterval, maxSampleInterval, d)
	}

	switch c.AlertPolicy {
	case "", "every_tick", "on_transition":
	default:
		return fmt.Errorf("alert_policy must be 'every_tick' or 'on_transition', got %q", c.AlertPolicy)
	}

	if c.DeliveryTimeout < 0 {
		return fmt.Errorf("delivery_timeout cannot be negative, got %s", c.DeliveryTimeout.Duration())
	}

	return c.Source.expandAndValidate()
}

func (s *SourceConfig) expandAndValidate() error {
	switch s.Type {
	case SourceSimulated:
		switch s.Mode {
		case "", ModeWave, ModeWalk:
		default:
			return fmt.Errorf("source: mode must be 'wave' or 'walk', got %q", s.Mode)
		}
		if s.Port != "" || s.Path != "" || s.BaudRate != 0 || s.Format != "" {
			return fmt.Errorf("source: type simulated takes only mode and seed")
		}

	case SourceSerial:
		port, err := expandEnvVars(s.Port)
		if err != nil {
			return fmt.Errorf("source: port: %w", err)
		}
		s.Port = port
		if s.Port == "" {
			return fmt.Errorf("source: type serial requires a port")
		}
		if s.BaudRate < 0 {
			return fmt.Errorf("source: baud_rate must be positive, got %d", s.BaudRate)
		}
		if err := s.validateLineSource(); err != nil {
			return err
		}

	case SourceFile:
		path, err := expandEnvVars(s.Path)
		if err != nil {
			return fmt.Errorf("source: path: %w", err)
		}
		s.Path = path
		if s.Path == "" {
			return fmt.Errorf("source: type file requires a path")
		}
		if s.BaudRate != 0 {
			return fmt.Errorf("source: baud_rate applies only to type serial")
		}
		if err := s.validateLineSource(); err != nil {
			return err
		}

	default:
		return fmt.Errorf("source: unknown type %q (expected 'simulated', 'serial', or 'file')", s.Type)
	}

	return nil
}

// validateLineSource checks the fields shared by serial and file sources.
func (s *SourceConfig) validateLineSource() error {
	if s.Mode != "" || s.Seed != 0 {
		return fmt.Errorf("source: mode and seed apply only to type simulated")
	}
	switch s.Format {
	case "", FormatAuto, FormatLabeled, FormatCSV:
		return nil
	default:
		return fmt.Errorf("source: format must be 'auto', 'labeled', or 'csv', got %q", s.Format)
	}
}
