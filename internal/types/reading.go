package types

import (
	"math"
	"time"
)

// StationID identifies one of the fixed reference stations.
type StationID string

// Point is a 2-D coordinate in the station plane.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Reading is what a single station reports: its distance to the emitter and
// the words of the message it managed to receive. An empty string marks a
// word the station missed.
type Reading struct {
	Distance float64
	Message  []string
}

// Validate checks the distance is a usable, non-negative number.
func (r Reading) Validate(station StationID) error {
	if math.IsNaN(r.Distance) || math.IsInf(r.Distance, 0) {
		return &ValidationError{Field: "distance", Message: "distance for '" + string(station) + "' must be a finite number"}
	}
	if r.Distance < 0 {
		return &ValidationError{Field: "distance", Message: "distance for '" + string(station) + "' must not be negative"}
	}
	return nil
}

// PendingReading is a reading held by the accumulator, as exposed for inspection.
type PendingReading struct {
	Station    StationID `json:"station"`
	Distance   float64   `json:"distance"`
	Message    []string  `json:"message"`
	ReceivedAt time.Time `json:"received_at"`
}

// Result is a decoded emitter position together with its reconstructed message.
type Result struct {
	Position Point  `json:"position"`
	Message  string `json:"message"`
}
