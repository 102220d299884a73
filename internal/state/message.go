package state

import (
	"fmt"
	"math"
)

// Message is the JSON record pushed to every subscriber on each tick.
//
// The schema is fixed; readings are rounded to one decimal place.
type Message struct {
	PrimaryReading   float64         `json:"primary_reading"`
	SecondaryReading float64         `json:"secondary_reading"`
	AuxiliaryVoltage float64         `json:"auxiliary_voltage"`
	Position         PositionMessage `json:"position"`
	IndicatorOn      bool            `json:"indicator_on"`
	AlarmOn          bool            `json:"alarm_on"`
	Status           string          `json:"status"`
	Alerts           []AlertMessage  `json:"alerts"`
}

// PositionMessage is the position block of a [Message].
type PositionMessage struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Accuracy   float64 `json:"accuracy"`
	Satellites int     `json:"satellites"`
}

// AlertMessage is one alert history entry of a [Message].
type AlertMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Time    string `json:"time"`
}

// NewMessage converts a snapshot into its wire form.
//
// Returns an error if the snapshot cannot be represented: a non-finite
// number, an unknown status, or a history longer than [HistoryLimit].
func NewMessage(snap Snapshot) (Message, error) {
	if err := validate(snap); err != nil {
		return Message{}, err
	}

	alerts := make([]AlertMessage, len(snap.Alerts))
	for i, a := range snap.Alerts {
		alerts[i] = AlertMessage{
			Type:    string(a.Level),
			Message: a.Message,
			Time:    a.Time,
		}
	}

	return Message{
		PrimaryReading:   round1(snap.Primary),
		SecondaryReading: round1(snap.Secondary),
		AuxiliaryVoltage: round1(snap.Voltage),
		Position: PositionMessage{
			Latitude:   snap.Position.Latitude,
			Longitude:  snap.Position.Longitude,
			Accuracy:   snap.Position.Accuracy,
			Satellites: snap.Position.Satellites,
		},
		IndicatorOn: snap.IndicatorOn,
		AlarmOn:     snap.AlarmOn,
		Status:      string(snap.Status),
		Alerts:      alerts,
	}, nil
}

func validate(snap Snapshot) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"primary_reading", snap.Primary},
		{"secondary_reading", snap.Secondary},
		{"auxiliary_voltage", snap.Voltage},
		{"position.latitude", snap.Position.Latitude},
		{"position.longitude", snap.Position.Longitude},
		{"position.accuracy", snap.Position.Accuracy},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%s is not a finite number: %v", f.name, f.value)
		}
	}

	if !snap.Status.Valid() {
		return fmt.Errorf("unknown status %q", snap.Status)
	}
	if len(snap.Alerts) > HistoryLimit {
		return fmt.Errorf("alert history holds %d entries, limit is %d", len(snap.Alerts), HistoryLimit)
	}
	for i, a := range snap.Alerts {
		if a.Level != LevelWarning && a.Level != LevelDanger {
			return fmt.Errorf("alerts[%d]: unknown level %q", i, a.Level)
		}
		if a.Message == "" {
			return fmt.Errorf("alerts[%d]: message is empty", i)
		}
	}
	return nil
}

// round1 rounds v to one decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
