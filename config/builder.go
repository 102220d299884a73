package config

import (
	"github.com/jpalmerr/safetypole"
)

// BuildOptions converts parsed configuration into SDK options.
//
// The returned options are ready to pass to [safetypole.New]; callers
// usually append their own, such as a logger.
func BuildOptions(cfg *Config) ([]safetypole.Option, error) {
	src, err := BuildSource(cfg.Source)
	if err != nil {
		return nil, err
	}

	opts := []safetypole.Option{
		safetypole.WithSource(src),
		safetypole.WithPort(cfg.Port),
		safetypole.WithSampleInterval(cfg.SampleInterval.Duration()),
	}

	if cfg.Title != "" {
		opts = append(opts, safetypole.WithTitle(cfg.Title))
	}
	if cfg.AlertPolicy != "" {
		opts = append(opts, safetypole.WithAlertPolicy(safetypole.AlertPolicy(cfg.AlertPolicy)))
	}
	if cfg.DeliveryTimeout != 0 {
		opts = append(opts, safetypole.WithDeliveryTimeout(cfg.DeliveryTimeout.Duration()))
	}

	return opts, nil
}

// BuildSource converts a SourceConfig into an SDK Source.
func BuildSource(sc SourceConfig) (safetypole.Source, error) {
	var opts []safetypole.SourceOption

	switch sc.Type {
	case "", SourceSimulated:
		if sc.Seed != 0 {
			opts = append(opts, safetypole.WithSeed(sc.Seed))
		}
		if sc.Mode == ModeWalk {
			return safetypole.RandomWalkSource(opts...)
		}
		return safetypole.SimulatedSource(opts...)

	case SourceSerial:
		if sc.BaudRate != 0 {
			opts = append(opts, safetypole.WithBaudRate(sc.BaudRate))
		}
		if p := buildParser(sc.Format); p != nil {
			opts = append(opts, safetypole.WithParser(p))
		}
		return safetypole.SerialSource(sc.Port, opts...)

	default:
		if p := buildParser(sc.Format); p != nil {
			opts = append(opts, safetypole.WithParser(p))
		}
		return safetypole.FileSource(sc.Path, opts...)
	}
}

// buildParser maps a format name to a line parser.
// Returns nil for auto/empty formats (SDK uses DefaultParser).
func buildParser(format string) safetypole.LineParser {
	switch format {
	case FormatLabeled:
		return safetypole.LabeledParser
	case FormatCSV:
		return safetypole.CSVParser
	default:
		return nil
	}
}
