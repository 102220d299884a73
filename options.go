package safetypole

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	// MinSampleInterval and MaxSampleInterval bound [WithSampleInterval].
	MinSampleInterval = 50 * time.Millisecond
	MaxSampleInterval = time.Minute
)

// AlertPolicy decides which classified readings append to the alert
// history.
type AlertPolicy string

const (
	// AlertEveryTick appends an alert for every reading in the warning or
	// danger band. A sustained breach fills the history with repeats.
	AlertEveryTick AlertPolicy = "every_tick"

	// AlertOnTransition appends an alert only when the status moves from
	// SAFE to WARNING, or from any other status to DANGER.
	AlertOnTransition AlertPolicy = "on_transition"
)

// monitorConfig holds mutable state during Monitor construction.
type monitorConfig struct {
	title             string
	source            *Source
	sampleInterval    time.Duration
	port              int
	logger            *slog.Logger
	alertPolicy       AlertPolicy
	deliveryTimeout   time.Duration
	snapshotCallbacks []func(Snapshot)
	alertCallbacks    []func(Alert)
}

// Option configures a [Monitor] during construction.
//
// Options return an error if validation fails, and [New] returns the first
// such error.
type Option func(*monitorConfig) error

// WithSource sets the measurement feed. Defaults to [SimulatedSource].
//
// Example:
//
//	src, err := safetypole.SerialSource("/dev/ttyUSB0")
//	if err != nil {
//	    return err
//	}
//	m, err := safetypole.New(safetypole.WithSource(src))
//
// Returns an error for the zero [Source].
func WithSource(src Source) Option {
	return func(cfg *monitorConfig) error {
		if src.kind == "" {
			return errors.New("source must be created with a Source constructor")
		}
		cfg.source = &src
		return nil
	}
}

// WithSampleInterval sets how often a simulated source is sampled.
//
// Line-based sources (serial, file, reader) ignore it: the device emits at
// its own pace and every line is read as it arrives. Defaults to 500ms.
//
// Returns an error if the interval is outside 50ms to 1m.
func WithSampleInterval(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d < MinSampleInterval || d > MaxSampleInterval {
			return fmt.Errorf("sample interval must be between %s and %s, got %s", MinSampleInterval, MaxSampleInterval, d)
		}
		cfg.sampleInterval = d
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard and subscription
// endpoints. Defaults to 8000.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *monitorConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and
// header. If not specified, defaults to "SafetyPole".
func WithTitle(title string) Option {
	return func(cfg *monitorConfig) error {
		cfg.title = title
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Monitor.
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *monitorConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithAlertPolicy sets when alerts are appended to the history.
// Defaults to [AlertEveryTick].
//
// Returns an error for an unknown policy.
func WithAlertPolicy(p AlertPolicy) Option {
	return func(cfg *monitorConfig) error {
		switch p {
		case AlertEveryTick, AlertOnTransition:
			cfg.alertPolicy = p
			return nil
		default:
			return fmt.Errorf("unknown alert policy %q", p)
		}
	}
}

// WithDeliveryTimeout bounds how long one subscriber may take to accept a
// state update before it is disconnected. Defaults to 2s.
//
// Returns an error if the duration is zero or negative.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("delivery timeout must be positive")
		}
		cfg.deliveryTimeout = d
		return nil
	}
}

// WithSnapshotCallback registers a function called with the committed
// state after every reading, sampled or submitted.
//
// Callbacks run synchronously on the pipeline goroutine, in registration
// order, after subscribers have been updated. They must not block. Panics
// are recovered and logged.
//
// Nil callbacks are silently ignored.
func WithSnapshotCallback(cb func(Snapshot)) Option {
	return func(cfg *monitorConfig) error {
		if cb == nil {
			return nil
		}
		cfg.snapshotCallbacks = append(cfg.snapshotCallbacks, cb)
		return nil
	}
}

// WithAlertCallback registers a function called once for every alert
// appended to the history. The alert policy applies: suppressed alerts
// are not reported.
//
// Example:
//
//	m, err := safetypole.New(
//	    safetypole.WithAlertCallback(func(a safetypole.Alert) {
//	        if a.Level == safetypole.AlertDanger {
//	            pager.Notify(a.Message)
//	        }
//	    }),
//	)
//
// The same rules as [WithSnapshotCallback] apply. Nil callbacks are
// silently ignored.
func WithAlertCallback(cb func(Alert)) Option {
	return func(cfg *monitorConfig) error {
		if cb == nil {
			return nil
		}
		cfg.alertCallbacks = append(cfg.alertCallbacks, cb)
		return nil
	}
}
