package types

import (
	"fmt"
	"strings"
)

// ValidationError reports malformed, missing or wrongly typed input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// UnknownStationError is a ValidationError for a station name that is not in the registry.
type UnknownStationError struct {
	Station StationID
	Known   []StationID
}

func (e *UnknownStationError) Error() string {
	names := make([]string, len(e.Known))
	for i, k := range e.Known {
		names[i] = string(k)
	}
	return fmt.Sprintf("unknown satellite '%s'; valid satellites are: %s", e.Station, strings.Join(names, ", "))
}

// InsufficientDataError means a decode was attempted before every station reported.
type InsufficientDataError struct {
	Missing []StationID
}

func (e *InsufficientDataError) Error() string {
	names := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		names[i] = string(m)
	}
	return "not enough information to decode; missing data from: " + strings.Join(names, ", ")
}

// GeometryError means the readings are present but the position cannot be solved,
// e.g. the stations are collinear.
type GeometryError struct {
	Reason string
}

func (e *GeometryError) Error() string {
	return "unable to solve emitter position: " + e.Reason
}
