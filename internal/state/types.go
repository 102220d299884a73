package state

// Status is the safety classification of the latest reading.
type Status string

const (
	// StatusSafe means both channels are inside the normal band.
	StatusSafe Status = "SAFE"

	// StatusWarning means at least one channel crossed the warning threshold.
	StatusWarning Status = "WARNING"

	// StatusDanger means at least one channel crossed the danger threshold.
	StatusDanger Status = "DANGER"
)

// String returns the status as a string.
func (s Status) String() string {
	return string(s)
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusSafe, StatusWarning, StatusDanger:
		return true
	}
	return false
}

// Level is the severity of an [Alert].
type Level string

const (
	LevelWarning Level = "warning"
	LevelDanger  Level = "danger"
)

// Position is a GNSS fix reported alongside the electrical readings.
type Position struct {
	Latitude   float64
	Longitude  float64
	Accuracy   float64
	Satellites int
}

// Auxiliary is the context a source may attach to a reading.
type Auxiliary struct {
	Voltage  float64
	Position Position
}

// Reading is one sampled measurement pair for a single tick.
//
// Primary is the electric-field channel and Secondary the conductor-current
// channel. Aux is nil when the source carries no auxiliary context (a serial
// feed or a manual override); the store then keeps the previous values.
type Reading struct {
	Primary   float64
	Secondary float64
	Aux       *Auxiliary
}

// Alert is a single entry of the alert history. Alerts are never modified
// after creation.
type Alert struct {
	Level   Level
	Message string
	// Time is the wall-clock time of the alert with second precision (15:04:05).
	Time string
}

// Snapshot is a consistent, immutable copy of the state at one commit.
type Snapshot struct {
	// Seq counts committed updates. Zero means nothing was committed yet.
	Seq uint64

	Primary   float64
	Secondary float64
	Voltage   float64
	Position  Position

	Status      Status
	IndicatorOn bool
	AlarmOn     bool

	// Alerts is newest first and owned by the snapshot.
	Alerts []Alert
}
