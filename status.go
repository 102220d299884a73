package safetypole

import "github.com/jpalmerr/safetypole/internal/state"

// Status is the safety classification of the latest reading.
//
// Status is a string type holding one of [StatusSafe], [StatusWarning] or
// [StatusDanger]. The values are the ones carried on the wire.
type Status string

const (
	// StatusSafe means both channels are inside the normal band.
	StatusSafe Status = "SAFE"

	// StatusWarning means the electric field exceeds 800 or the current
	// exceeds 1000, without reaching the danger band.
	StatusWarning Status = "WARNING"

	// StatusDanger means the electric field exceeds 1200 or the current
	// exceeds 1500. The alarm is on.
	StatusDanger Status = "DANGER"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// AlertLevel is the severity of an [Alert].
type AlertLevel string

const (
	AlertWarning AlertLevel = "warning"
	AlertDanger  AlertLevel = "danger"
)

// Alert is one entry of the alert history.
type Alert struct {
	Level   AlertLevel
	Message string

	// Time is the wall-clock time the alert was raised, formatted 15:04:05.
	Time string
}

// Position is the GNSS fix reported with the readings.
type Position struct {
	Latitude   float64
	Longitude  float64
	Accuracy   float64
	Satellites int
}

// Snapshot is a consistent copy of the monitor state after one update.
//
// Snapshot is immutable after creation; the Alerts slice is owned by the
// snapshot and is newest first.
type Snapshot struct {
	// Seq increases by one with every committed reading.
	Seq uint64

	// ElectricField is the primary channel.
	ElectricField float64

	// Current is the secondary channel.
	Current float64

	// Voltage is the auxiliary line voltage, kept from the last source
	// that reported one.
	Voltage float64

	Position Position

	Status      Status
	IndicatorOn bool
	AlarmOn     bool

	Alerts []Alert
}

func snapshotFromState(s state.Snapshot) Snapshot {
	alerts := make([]Alert, len(s.Alerts))
	for i, a := range s.Alerts {
		alerts[i] = alertFromState(a)
	}
	return Snapshot{
		Seq:           s.Seq,
		ElectricField: s.Primary,
		Current:       s.Secondary,
		Voltage:       s.Voltage,
		Position:      Position(s.Position),
		Status:        Status(s.Status),
		IndicatorOn:   s.IndicatorOn,
		AlarmOn:       s.AlarmOn,
		Alerts:        alerts,
	}
}

func alertFromState(a state.Alert) Alert {
	return Alert{
		Level:   AlertLevel(a.Level),
		Message: a.Message,
		Time:    a.Time,
	}
}
