package decoder

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/chrissnell/quasar/internal/stations"
	"github.com/chrissnell/quasar/internal/types"
)

type countingObserver struct {
	calls int
}

func (c *countingObserver) ObserveLocate(time.Duration) {
	c.calls++
}

func scenario() map[types.StationID]types.Reading {
	return map[types.StationID]types.Reading{
		stations.Kenobi:    {Distance: 100, Message: []string{"este", "", "mensaje"}},
		stations.Skywalker: {Distance: 115.5, Message: []string{"", "es", "", ""}},
		stations.Sato:      {Distance: 142.7, Message: []string{"", "", "", "secreto"}},
	}
}

func TestDecode(t *testing.T) {
	obs := &countingObserver{}
	d := New(stations.Default(), WithLocateObserver(obs))

	result, err := d.Decode(scenario())
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}

	if result.Message != "este es mensaje secreto" {
		t.Errorf("message = %q, want %q", result.Message, "este es mensaje secreto")
	}
	if math.Abs(result.Position.X-(-487.2859125)) > 1e-6 || math.Abs(result.Position.Y-1557.014225) > 1e-6 {
		t.Errorf("position = %+v", result.Position)
	}
	if obs.calls != 1 {
		t.Errorf("observer called %d times, want 1", obs.calls)
	}
}

func TestDecodeMissingStation(t *testing.T) {
	d := New(stations.Default())
	readings := scenario()
	delete(readings, stations.Skywalker)

	_, err := d.Decode(readings)
	var insufficient *types.InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if len(insufficient.Missing) != 1 || insufficient.Missing[0] != stations.Skywalker {
		t.Errorf("missing = %v, want [skywalker]", insufficient.Missing)
	}
}

func TestDecodeUnknownStation(t *testing.T) {
	d := New(stations.Default())
	readings := scenario()
	readings["vader"] = types.Reading{Distance: 1}

	_, err := d.Decode(readings)
	var unknown *types.UnknownStationError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownStationError, got %v", err)
	}
}

func TestDecodeNegativeDistance(t *testing.T) {
	d := New(stations.Default())
	readings := scenario()
	readings[stations.Sato] = types.Reading{Distance: -3}

	_, err := d.Decode(readings)
	var valErr *types.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
