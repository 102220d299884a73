package safetypole

import "errors"

// sourceConfig holds mutable state during source construction.
type sourceConfig struct {
	baud   int
	parser LineParser
	seed   *uint64
}

// SourceOption configures a [Source] during construction.
//
// Options return an error if validation fails, or if they do not apply to
// the kind of source being built.
//
// Built-in options: [WithBaudRate], [WithParser], [WithSeed].
type SourceOption func(*sourceConfig) error

// WithBaudRate sets the serial line speed. Only valid for [SerialSource].
//
// Example:
//
//	src, err := safetypole.SerialSource("/dev/ttyUSB0",
//	    safetypole.WithBaudRate(9600),
//	)
//
// Returns an error if the rate is zero or negative.
func WithBaudRate(baud int) SourceOption {
	return func(cfg *sourceConfig) error {
		if baud <= 0 {
			return errors.New("baud rate must be positive")
		}
		cfg.baud = baud
		return nil
	}
}

// WithParser sets how lines of a serial, file or reader source are
// decoded. Defaults to [DefaultParser].
//
// Returns an error if the parser is nil.
func WithParser(p LineParser) SourceOption {
	return func(cfg *sourceConfig) error {
		if p == nil {
			return errors.New("parser cannot be nil")
		}
		cfg.parser = p
		return nil
	}
}

// WithSeed makes a simulated or random-walk source reproducible.
func WithSeed(seed uint64) SourceOption {
	return func(cfg *sourceConfig) error {
		cfg.seed = &seed
		return nil
	}
}
