package restserver

import (
	"encoding/json"
	"fmt"

	"github.com/chrissnell/quasar/internal/types"
)

// maxBodyBytes caps request bodies accepted by the decoding endpoints
const maxBodyBytes = 1 << 20

// SplitAckResponse acknowledges a stored split reading
type SplitAckResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error     string `json:"error"`
	Status    int    `json:"status"`
	Timestamp int64  `json:"timestamp"`
	Details   any    `json:"details,omitempty"`
}

// HealthResponse is returned by /healthz
type HealthResponse struct {
	Service string `json:"service"`
	Status  string `json:"status"`
	Version string `json:"version"`
}

// incomplete builds the error returned when a reading lacks a required field
func incomplete(label string) error {
	return &types.ValidationError{Message: fmt.Sprintf("incomplete data for satellite '%s'; 'distance' and 'message' are required", label)}
}

// isNull reports whether a field is absent or JSON null
func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// parseReading extracts distance and message from a decoded JSON object sent
// for the satellite named label.
func parseReading(obj map[string]json.RawMessage, label string) (types.Reading, error) {
	rawDistance, rawMessage := obj["distance"], obj["message"]
	if isNull(rawDistance) || isNull(rawMessage) {
		return types.Reading{}, incomplete(label)
	}

	var distance float64
	if err := json.Unmarshal(rawDistance, &distance); err != nil {
		return types.Reading{}, &types.ValidationError{Field: "distance", Message: fmt.Sprintf("the distance for '%s' must be a number", label)}
	}

	var words []*string
	if err := json.Unmarshal(rawMessage, &words); err != nil {
		return types.Reading{}, &types.ValidationError{Field: "message", Message: fmt.Sprintf("the message for '%s' must be a list of words", label)}
	}

	message := make([]string, len(words))
	for i, w := range words {
		if w != nil {
			message[i] = *w
		}
	}

	reading := types.Reading{Distance: distance, Message: message}
	if err := reading.Validate(types.StationID(label)); err != nil {
		return types.Reading{}, err
	}
	return reading, nil
}
