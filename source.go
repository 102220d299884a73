package safetypole

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/jpalmerr/safetypole/internal/feed"
)

// SourceKind identifies where a [Source] takes its measurements from.
type SourceKind string

const (
	// SourceSimulated is the built-in sine wave generator with voltage and
	// GNSS context.
	SourceSimulated SourceKind = "simulated"

	// SourceRandomWalk is the built-in bounded random walk (0..4095 per
	// channel), shaped like raw ADC counts.
	SourceRandomWalk SourceKind = "walk"

	// SourceSerial reads lines from a serial port.
	SourceSerial SourceKind = "serial"

	// SourceFile reads lines from a file, named pipe or standard input.
	SourceFile SourceKind = "file"

	// SourceReader reads lines from a caller-supplied [io.Reader].
	SourceReader SourceKind = "reader"
)

// Source describes the measurement feed of a [Monitor].
//
// Source is immutable after creation and only describes the feed; the
// device, file or generator is opened when the monitor starts and closed
// when it stops. Create one with [SimulatedSource], [RandomWalkSource],
// [SerialSource], [FileSource] or [ReaderSource].
type Source struct {
	kind   SourceKind
	target string
	baud   int
	parser LineParser
	reader io.Reader
	seed   *uint64
}

// Kind returns where the source takes its measurements from.
func (s Source) Kind() SourceKind {
	return s.kind
}

// Target returns the serial port or file path, or "" for other kinds.
func (s Source) Target() string {
	return s.target
}

// BaudRate returns the serial baud rate. Zero for non-serial sources.
func (s Source) BaudRate() int {
	return s.baud
}

// String describes the source for logs.
func (s Source) String() string {
	switch s.kind {
	case SourceSerial:
		return fmt.Sprintf("serial %s @ %d baud", s.target, s.baud)
	case SourceFile:
		if s.target == "-" {
			return "file stdin"
		}
		return "file " + s.target
	case "":
		return "none"
	default:
		return string(s.kind)
	}
}

// SimulatedSource returns a [Source] producing a smooth sine wave with
// jitter on both channels, a 230 V line voltage and a GNSS fix.
//
// Accepts [WithSeed] for reproducible output.
func SimulatedSource(opts ...SourceOption) (Source, error) {
	return newSource(SourceSimulated, "", opts)
}

// RandomWalkSource returns a [Source] producing a bounded random walk on
// both channels. It carries no voltage or GNSS context.
//
// Accepts [WithSeed] for reproducible output.
func RandomWalkSource(opts ...SourceOption) (Source, error) {
	return newSource(SourceRandomWalk, "", opts)
}

// SerialSource returns a [Source] reading lines from the serial port at
// path, for example "/dev/ttyUSB0" or "COM3". The port is opened in 8N1 mode
// at 115200 baud unless [WithBaudRate] says otherwise.
//
// Returns an error if port is empty or an option is invalid. A port that
// does not exist is only detected when the monitor starts.
func SerialSource(port string, opts ...SourceOption) (Source, error) {
	if port == "" {
		return Source{}, errors.New("serial port cannot be empty")
	}
	src, err := newSource(SourceSerial, port, opts)
	if err != nil {
		return Source{}, err
	}
	if src.baud == 0 {
		src.baud = feed.DefaultBaudRate
	}
	return src, nil
}

// FileSource returns a [Source] reading lines from the file at path. The
// path "-" reads standard input, for piping a device through another tool.
//
// Stopping the monitor does not wait for a pending read on standard input;
// one goroutine stays blocked in that read until the next line or EOF.
//
// Returns an error if path is empty or an option is invalid.
func FileSource(path string, opts ...SourceOption) (Source, error) {
	if path == "" {
		return Source{}, errors.New("file path cannot be empty")
	}
	return newSource(SourceFile, path, opts)
}

// ReaderSource returns a [Source] reading lines from r. If r implements
// [io.Closer] it is closed when the monitor stops.
//
// Returns an error if r is nil or an option is invalid.
func ReaderSource(r io.Reader, opts ...SourceOption) (Source, error) {
	if r == nil {
		return Source{}, errors.New("reader cannot be nil")
	}
	src, err := newSource(SourceReader, "", opts)
	if err != nil {
		return Source{}, err
	}
	src.reader = r
	return src, nil
}

func newSource(kind SourceKind, target string, opts []SourceOption) (Source, error) {
	cfg := &sourceConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Source{}, err
		}
	}

	lineBased := kind == SourceSerial || kind == SourceFile || kind == SourceReader
	if cfg.parser != nil && !lineBased {
		return Source{}, fmt.Errorf("%s source does not read lines; WithParser does not apply", kind)
	}
	if cfg.baud != 0 && kind != SourceSerial {
		return Source{}, fmt.Errorf("%s source has no baud rate; WithBaudRate does not apply", kind)
	}
	if cfg.seed != nil && lineBased {
		return Source{}, fmt.Errorf("%s source is not simulated; WithSeed does not apply", kind)
	}

	return Source{
		kind:   kind,
		target: target,
		baud:   cfg.baud,
		parser: cfg.parser,
		seed:   cfg.seed,
	}, nil
}

// open creates the live feed described by s.
func (s Source) open() (feed.Source, error) {
	parser := feed.Parser(s.parser)
	if s.parser == nil {
		parser = feed.ParseAny
	}

	switch s.kind {
	case SourceSimulated:
		return feed.NewWave(s.simOptions()...), nil
	case SourceRandomWalk:
		return feed.NewRandomWalk(s.simOptions()...), nil
	case SourceSerial:
		return feed.OpenSerial(s.target, s.baud, parser)
	case SourceFile:
		return feed.OpenFile(s.target, parser)
	case SourceReader:
		return feed.NewLineSource(s.reader, parser), nil
	default:
		return nil, fmt.Errorf("%w: unknown source kind %q", feed.ErrUnavailable, s.kind)
	}
}

func (s Source) simOptions() []feed.SimOption {
	if s.seed == nil {
		return nil
	}
	return []feed.SimOption{feed.WithRand(rand.New(rand.NewPCG(*s.seed, *s.seed)))}
}
