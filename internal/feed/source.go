package feed

import (
	"context"
	"errors"

	"github.com/jpalmerr/safetypole/internal/state"
)

var (
	// ErrMalformed marks a sample that could not be parsed. The sample is
	// skipped; the feed itself is still usable.
	ErrMalformed = errors.New("malformed measurement")

	// ErrUnavailable marks a feed that cannot be opened or read any more.
	ErrUnavailable = errors.New("measurement feed unavailable")
)

// Source yields measurement readings.
//
// Next returns the next reading. Implementations return an error wrapping
// [ErrMalformed] for a bad sample and [ErrUnavailable] when the feed is
// gone. Close releases the underlying device, unblocking a pending Next.
type Source interface {
	Next(ctx context.Context) (state.Reading, error)
	Close() error
}

// SelfPaced is implemented by sources whose Next blocks until the device
// emits a sample. The sampler reads such sources back to back instead of
// on a ticker.
type SelfPaced interface {
	SelfPaced() bool
}

// IsSelfPaced reports whether src paces itself.
func IsSelfPaced(src Source) bool {
	sp, ok := src.(SelfPaced)
	return ok && sp.SelfPaced()
}
