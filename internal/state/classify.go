package state

import "fmt"

// Thresholds applied by [Classify]. A channel is over a threshold when it is
// strictly greater than it.
const (
	PrimaryWarnThreshold     = 800.0
	SecondaryWarnThreshold   = 1000.0
	PrimaryDangerThreshold   = 1200.0
	SecondaryDangerThreshold = 1500.0
)

const (
	warningMessage = "Approaching unsafe threshold"
	dangerMessage  = "Threshold exceeded! Possible snapped conductor"
)

// Classification is the derived status of a reading.
type Classification struct {
	Status      Status
	IndicatorOn bool
	AlarmOn     bool

	// Alert is the alert committed to history by this update, or nil.
	// [Classify] fills it for every reading in a band; [Store.Update]
	// clears it when the alert policy suppresses emission.
	Alert *Alert
}

// Classify maps a measurement pair to a [Classification]. It is pure: the
// returned alert has no timestamp.
func Classify(primary, secondary float64) Classification {
	if primary <= PrimaryWarnThreshold && secondary <= SecondaryWarnThreshold {
		return Classification{Status: StatusSafe}
	}

	if primary > PrimaryDangerThreshold || secondary > SecondaryDangerThreshold {
		return Classification{
			Status:      StatusDanger,
			IndicatorOn: true,
			AlarmOn:     true,
			Alert:       &Alert{Level: LevelDanger, Message: dangerMessage},
		}
	}

	return Classification{
		Status:      StatusWarning,
		IndicatorOn: true,
		Alert:       &Alert{Level: LevelWarning, Message: warningMessage},
	}
}

// AlertPolicy decides which classified ticks append to the alert history.
type AlertPolicy int

const (
	// AlertEveryTick appends an alert on every tick inside the warning or
	// danger band, so a sustained breach accumulates repeated alerts.
	AlertEveryTick AlertPolicy = iota

	// AlertOnTransition appends only when the status moves from SAFE to
	// WARNING or from any other status to DANGER.
	AlertOnTransition
)

// String returns the configuration name of the policy.
func (p AlertPolicy) String() string {
	switch p {
	case AlertEveryTick:
		return "every_tick"
	case AlertOnTransition:
		return "on_transition"
	default:
		return fmt.Sprintf("AlertPolicy(%d)", int(p))
	}
}

// ParseAlertPolicy parses the configuration name of a policy.
// An empty string selects [AlertEveryTick].
func ParseAlertPolicy(s string) (AlertPolicy, error) {
	switch s {
	case "", "every_tick":
		return AlertEveryTick, nil
	case "on_transition":
		return AlertOnTransition, nil
	default:
		return 0, fmt.Errorf("unknown alert policy %q (expected 'every_tick' or 'on_transition')", s)
	}
}

// emits reports whether a tick moving from prev to next appends an alert.
func (p AlertPolicy) emits(prev, next Status) bool {
	switch next {
	case StatusSafe:
		return false
	case StatusWarning:
		return p == AlertEveryTick || prev == StatusSafe
	case StatusDanger:
		return p == AlertEveryTick || prev != StatusDanger
	}
	return false
}
