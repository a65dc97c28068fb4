// Package stations holds the fixed set of reference stations and their positions.
package stations

import "github.com/chrissnell/quasar/internal/types"

const (
	Kenobi    types.StationID = "kenobi"
	Skywalker types.StationID = "skywalker"
	Sato      types.StationID = "sato"
)

// Registry maps station identifiers to their positions. The order of Order()
// is the canonical order used by every calculation.
type Registry struct {
	order     [3]types.StationID
	positions map[types.StationID]types.Point
}

// Default returns the registry of the three known stations.
func Default() *Registry {
	return &Registry{
		order: [3]types.StationID{Kenobi, Skywalker, Sato},
		positions: map[types.StationID]types.Point{
			Kenobi:    {X: -500, Y: -200},
			Skywalker: {X: 100, Y: -100},
			Sato:      {X: 500, Y: 100},
		},
	}
}

// Order returns the station identifiers in canonical order.
func (r *Registry) Order() [3]types.StationID {
	return r.order
}

// Positions returns the station positions in canonical order.
func (r *Registry) Positions() [3]types.Point {
	var p [3]types.Point
	for i, id := range r.order {
		p[i] = r.positions[id]
	}
	return p
}

// Position returns the position of a single station.
func (r *Registry) Position(id types.StationID) (types.Point, bool) {
	p, ok := r.positions[id]
	return p, ok
}

// Known reports whether id names a registered station.
func (r *Registry) Known(id types.StationID) bool {
	_, ok := r.positions[id]
	return ok
}

// Lookup resolves a station name, returning an UnknownStationError for names
// outside the registry.
func (r *Registry) Lookup(name string) (types.StationID, error) {
	id := types.StationID(name)
	if !r.Known(id) {
		return "", &types.UnknownStationError{Station: id, Known: r.order[:]}
	}
	return id, nil
}
