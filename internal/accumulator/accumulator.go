// Package accumulator collects station readings that arrive in separate
// requests until all stations have reported and the message can be decoded.
package accumulator

import (
	"sync"
	"time"

	"github.com/chrissnell/quasar/internal/stations"
	"github.com/chrissnell/quasar/internal/types"
)

// Decoder computes a result from a complete set of readings.
type Decoder interface {
	Decode(readings map[types.StationID]types.Reading) (types.Result, error)
}

// PendingObserver is told the number of pending readings after every change.
type PendingObserver interface {
	SetPending(count int)
}

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithPendingObserver reports pending-state size changes to o.
func WithPendingObserver(o PendingObserver) Option {
	return func(a *Accumulator) {
		a.observer = o
	}
}

// WithClock overrides the clock used to stamp received readings.
func WithClock(now func() time.Time) Option {
	return func(a *Accumulator) {
		a.now = now
	}
}

type pendingReading struct {
	reading    types.Reading
	receivedAt time.Time
}

// Accumulator holds at most one pending reading per station. All methods are
// safe for concurrent use; each one runs as a single critical section.
type Accumulator struct {
	mu       sync.Mutex
	registry *stations.Registry
	decoder  Decoder
	pending  map[types.StationID]pendingReading
	observer PendingObserver
	now      func() time.Time
}

// New creates an empty accumulator for the stations in registry.
func New(registry *stations.Registry, decoder Decoder, opts ...Option) *Accumulator {
	a := &Accumulator{
		registry: registry,
		decoder:  decoder,
		pending:  make(map[types.StationID]pendingReading, len(registry.Order())),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Submit stores the reading for station, replacing any earlier one.
func (a *Accumulator) Submit(station types.StationID, reading types.Reading) error {
	if _, err := a.registry.Lookup(string(station)); err != nil {
		return err
	}
	if err := reading.Validate(station); err != nil {
		return err
	}

	words := make([]string, len(reading.Message))
	copy(words, reading.Message)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.pending[station] = pendingReading{
		reading:    types.Reading{Distance: reading.Distance, Message: words},
		receivedAt: a.now(),
	}
	a.notify()
	return nil
}

// TryDrain decodes the pending readings once every station has reported.
// On success the pending state is cleared. On any failure it is left as is.
func (a *Accumulator) TryDrain() (types.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var missing []types.StationID
	readings := make(map[types.StationID]types.Reading, len(a.pending))
	for _, id := range a.registry.Order() {
		p, ok := a.pending[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		readings[id] = p.reading
	}
	if len(missing) > 0 {
		return types.Result{}, &types.InsufficientDataError{Missing: missing}
	}

	result, err := a.decoder.Decode(readings)
	if err != nil {
		return types.Result{}, err
	}

	a.clear()
	return result, nil
}

// Pending returns a copy of the pending readings in canonical station order.
func (a *Accumulator) Pending() []types.PendingReading {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]types.PendingReading, 0, len(a.pending))
	for _, id := range a.registry.Order() {
		p, ok := a.pending[id]
		if !ok {
			continue
		}
		words := make([]string, len(p.reading.Message))
		copy(words, p.reading.Message)
		out = append(out, types.PendingReading{
			Station:    id,
			Distance:   p.reading.Distance,
			Message:    words,
			ReceivedAt: p.receivedAt,
		})
	}
	return out
}

// Len returns the number of stations with a pending reading.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Reset discards every pending reading and returns how many there were.
func (a *Accumulator) Reset() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	discarded := len(a.pending)
	a.clear()
	return discarded
}

// clear must be called with mu held.
func (a *Accumulator) clear() {
	a.pending = make(map[types.StationID]pendingReading, len(a.registry.Order()))
	a.notify()
}

func (a *Accumulator) notify() {
	if a.observer != nil {
		a.observer.SetPending(len(a.pending))
	}
}
