package feed

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/jpalmerr/safetypole/internal/state"
)

// maxLineSize bounds a single feed line. A longer line is discarded up to
// the next newline and reported as malformed.
const maxLineSize = 4096

// lineResult is one line, or the error that ended reading it.
type lineResult struct {
	line string
	err  error
}

// LineSource reads one measurement per line from a text stream such as a
// serial port, a pipe or a file.
//
// Lines are read by a background goroutine started on the first call to
// [LineSource.Next], so Next returns as soon as its context ends even when
// the underlying read cannot be interrupted.
type LineSource struct {
	r     io.Reader
	br    *bufio.Reader
	parse Parser

	startOnce sync.Once
	lines     chan lineResult
	done      chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// NewLineSource creates a [LineSource] reading from r. If parse is nil,
// [ParseAny] is used. If r implements io.Closer it is closed by Close.
func NewLineSource(r io.Reader, parse Parser) *LineSource {
	if parse == nil {
		parse = ParseAny
	}
	return &LineSource{
		r:     r,
		br:    bufio.NewReaderSize(r, maxLineSize),
		parse: parse,
		lines: make(chan lineResult),
		done:  make(chan struct{}),
	}
}

// Next blocks until a line is available and parses it.
//
// A line the parser rejects, or one longer than 4096 bytes, returns an
// error wrapping [ErrMalformed]. The end of the stream, a read failure or
// a closed source returns an error wrapping [ErrUnavailable]. If ctx ends
// first, its error is returned.
func (s *LineSource) Next(ctx context.Context) (state.Reading, error) {
	if err := ctx.Err(); err != nil {
		return state.Reading{}, err
	}

	s.startOnce.Do(func() { go s.readLoop() })

	var res lineResult
	select {
	case r, ok := <-s.lines:
		if !ok {
			return state.Reading{}, fmt.Errorf("%w: %w", ErrUnavailable, io.EOF)
		}
		res = r
	case <-s.done:
		return state.Reading{}, fmt.Errorf("%w: source closed", ErrUnavailable)
	case <-ctx.Done():
		return state.Reading{}, ctx.Err()
	}
	if res.err != nil {
		return state.Reading{}, res.err
	}

	line := strings.TrimSpace(res.line)
	if line == "" {
		return state.Reading{}, fmt.Errorf("%w: empty line", ErrMalformed)
	}

	primary, secondary, err := s.parse(line)
	if err != nil {
		if !errors.Is(err, ErrMalformed) {
			err = fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		return state.Reading{}, err
	}
	if !finite(primary) || !finite(secondary) {
		return state.Reading{}, fmt.Errorf("%w: %q: non-finite value", ErrMalformed, line)
	}
	return state.Reading{Primary: primary, Secondary: secondary}, nil
}

// readLoop hands lines to Next one at a time until the stream ends or the
// source is closed.
func (s *LineSource) readLoop() {
	defer close(s.lines)
	for {
		line, err := s.readLine()
		select {
		case s.lines <- lineResult{line: line, err: err}:
		case <-s.done:
			return
		}
		if errors.Is(err, ErrUnavailable) {
			return
		}
	}
}

// readLine returns the next line without its terminator. An overlong line
// is consumed through its newline and returned as an [ErrMalformed] error.
// A final line without a newline is returned before EOF is reported.
func (s *LineSource) readLine() (string, error) {
	data, err := s.br.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		for errors.Is(err, bufio.ErrBufferFull) {
			_, err = s.br.ReadSlice('\n')
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return "", fmt.Errorf("%w: line exceeds %d bytes", ErrMalformed, maxLineSize)
	}
	if err != nil {
		if errors.Is(err, io.EOF) && len(data) > 0 {
			return string(data), nil
		}
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return string(data), nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SelfPaced reports true: the device decides the cadence.
func (s *LineSource) SelfPaced() bool {
	return true
}

// Close closes the underlying reader if it is closable. Safe to call more
// than once and concurrently with a blocked Next.
func (s *LineSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if c, ok := s.r.(io.Closer); ok {
			s.closeErr = c.Close()
		}
	})
	return s.closeErr
}

// OpenFile opens a file, named pipe or character device and returns a
// [LineSource] reading from it. The path "-" reads standard input.
//
// Closing a stdin source does not interrupt a read already in progress:
// Next and Close return at once, but the reading goroutine stays blocked
// until the next line or EOF arrives.
//
// Returns an error wrapping [ErrUnavailable] if the path cannot be opened.
func OpenFile(path string, parse Parser) (*LineSource, error) {
	if path == "-" {
		return NewLineSource(os.Stdin, parse), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return NewLineSource(f, parse), nil
}
