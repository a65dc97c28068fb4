package app

import (
	"math"
	"testing"

	"github.com/chrissnell/quasar/internal/stations"
	"github.com/chrissnell/quasar/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewServicesWiresMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	services, err := NewServices(reg)
	if err != nil {
		t.Fatalf("NewServices: %v", err)
	}

	readings := map[types.StationID]types.Reading{
		stations.Kenobi:    {Distance: 100, Message: []string{"este", "", "mensaje"}},
		stations.Skywalker: {Distance: 115.5, Message: []string{"", "es", "", ""}},
		stations.Sato:      {Distance: 142.7, Message: []string{"", "", "", "secreto"}},
	}
	for id, r := range readings {
		if err := services.Accumulator.Submit(id, r); err != nil {
			t.Fatalf("Submit(%s): %v", id, err)
		}
	}
	if got := testutil.ToFloat64(services.Metrics.PendingReadings); got != 3 {
		t.Errorf("pending gauge = %v, want 3", got)
	}

	result, err := services.Accumulator.TryDrain()
	if err != nil {
		t.Fatalf("TryDrain: %v", err)
	}
	if result.Message != "este es mensaje secreto" {
		t.Errorf("message = %q", result.Message)
	}
	if math.Abs(result.Position.X-(-487.2859125)) > 1e-6 || math.Abs(result.Position.Y-1557.014225) > 1e-6 {
		t.Errorf("position = %+v", result.Position)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var solves uint64
	for _, mf := range families {
		if mf.GetName() == "quasar_locate_duration_seconds" {
			solves = mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	if solves != 1 {
		t.Errorf("locate duration samples = %d, want 1", solves)
	}
	if got := testutil.ToFloat64(services.Metrics.PendingReadings); got != 0 {
		t.Errorf("pending gauge after drain = %v, want 0", got)
	}
}

func TestNewServicesTwiceOnSameRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewServices(reg); err != nil {
		t.Fatalf("first NewServices: %v", err)
	}
	if _, err := NewServices(reg); err != nil {
		t.Fatalf("second NewServices on the same registry: %v", err)
	}
}
