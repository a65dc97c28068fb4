// Package metrics exposes decoder and accumulator activity as Prometheus metrics.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chrissnell/quasar/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Decode modes.
const (
	ModeBatch = "batch"
	ModeSplit = "split"
)

// Decode outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeValidation   = "validation"
	OutcomeInsufficient = "insufficient_data"
	OutcomeGeometry     = "geometry"
	OutcomeInternal     = "internal"
)

// Collector holds the service metrics. A nil *Collector is valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Decodes         *prometheus.CounterVec
	Submissions     *prometheus.CounterVec
	PendingReadings prometheus.Gauge
	LocateDuration  prometheus.Histogram
}

// NewCollector registers the service metrics against reg. A nil reg uses the
// default Prometheus registry.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	decodes, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quasar_decode_requests_total",
		Help: "Decode attempts by mode and outcome.",
	}, []string{"mode", "outcome"}), "quasar_decode_requests_total")
	if err != nil {
		return nil, err
	}

	submissions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quasar_station_submissions_total",
		Help: "Accepted split readings by station.",
	}, []string{"station"}), "quasar_station_submissions_total")
	if err != nil {
		return nil, err
	}

	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "quasar_pending_readings",
		Help: "Stations currently holding a pending split reading.",
	})
	if err := reg.Register(pending); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(prometheus.Gauge)
		if !ok {
			return nil, fmt.Errorf("collector quasar_pending_readings already registered with incompatible type")
		}
		pending = existing
	}

	locate := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "quasar_locate_duration_seconds",
		Help:    "Time spent solving the emitter position.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
	})
	if err := reg.Register(locate); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(prometheus.Histogram)
		if !ok {
			return nil, fmt.Errorf("collector quasar_locate_duration_seconds already registered with incompatible type")
		}
		locate = existing
	}

	return &Collector{
		gatherer:        gatherer,
		Decodes:         decodes,
		Submissions:     submissions,
		PendingReadings: pending,
		LocateDuration:  locate,
	}, nil
}

// Handler serves the gathered metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// ObserveDecode counts one decode attempt, classified by err.
func (c *Collector) ObserveDecode(mode string, err error) {
	if c == nil || c.Decodes == nil {
		return
	}
	c.Decodes.WithLabelValues(mode, Outcome(err)).Inc()
}

// ObserveSubmission counts an accepted split reading.
func (c *Collector) ObserveSubmission(station types.StationID) {
	if c == nil || c.Submissions == nil {
		return
	}
	c.Submissions.WithLabelValues(string(station)).Inc()
}

// SetPending updates the pending readings gauge.
func (c *Collector) SetPending(count int) {
	if c == nil || c.PendingReadings == nil {
		return
	}
	c.PendingReadings.Set(float64(count))
}

// ObserveLocate records a position solve duration.
func (c *Collector) ObserveLocate(d time.Duration) {
	if c == nil || c.LocateDuration == nil {
		return
	}
	c.LocateDuration.Observe(d.Seconds())
}

// Outcome maps an error to its outcome label.
func Outcome(err error) string {
	var (
		validation   *types.ValidationError
		unknown      *types.UnknownStationError
		insufficient *types.InsufficientDataError
		geometry     *types.GeometryError
	)
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &validation), errors.As(err, &unknown):
		return OutcomeValidation
	case errors.As(err, &insufficient):
		return OutcomeInsufficient
	case errors.As(err, &geometry):
		return OutcomeGeometry
	default:
		return OutcomeInternal
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
