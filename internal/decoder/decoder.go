// Package decoder turns a complete set of station readings into an emitter
// position and the reconstructed message.
package decoder

import (
	"time"

	"github.com/chrissnell/quasar/internal/locator"
	"github.com/chrissnell/quasar/internal/message"
	"github.com/chrissnell/quasar/internal/stations"
	"github.com/chrissnell/quasar/internal/types"
)

// LocateObserver receives the duration of every position solve.
type LocateObserver interface {
	ObserveLocate(d time.Duration)
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLocateObserver reports solve durations to o.
func WithLocateObserver(o LocateObserver) Option {
	return func(d *Decoder) {
		d.observer = o
	}
}

// Decoder is stateless apart from its fixed registry and may be shared freely.
type Decoder struct {
	registry *stations.Registry
	observer LocateObserver
}

// New creates a decoder for the stations in registry.
func New(registry *stations.Registry, opts ...Option) *Decoder {
	d := &Decoder{registry: registry}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the station registry the decoder works against.
func (d *Decoder) Registry() *stations.Registry {
	return d.registry
}

// Missing returns, in canonical order, the stations absent from readings.
func (d *Decoder) Missing(readings map[types.StationID]types.Reading) []types.StationID {
	var missing []types.StationID
	for _, id := range d.registry.Order() {
		if _, ok := readings[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// Decode locates the emitter and rebuilds its message. readings must hold
// exactly one reading for every registered station.
func (d *Decoder) Decode(readings map[types.StationID]types.Reading) (types.Result, error) {
	for id := range readings {
		if _, err := d.registry.Lookup(string(id)); err != nil {
			return types.Result{}, err
		}
	}

	if missing := d.Missing(readings); len(missing) > 0 {
		return types.Result{}, &types.InsufficientDataError{Missing: missing}
	}

	var (
		distances [3]float64
		messages  [3][]string
	)
	for i, id := range d.registry.Order() {
		r := readings[id]
		if err := r.Validate(id); err != nil {
			return types.Result{}, err
		}
		distances[i] = r.Distance
		messages[i] = r.Message
	}

	start := time.Now()
	position, err := locator.Locate(distances, d.registry.Positions())
	if d.observer != nil {
		d.observer.ObserveLocate(time.Since(start))
	}
	if err != nil {
		return types.Result{}, err
	}

	return types.Result{
		Position: position,
		Message:  message.Reconstruct(messages),
	}, nil
}
