// Package main drives a running quasar instance with synthetic station
// readings for a known emitter and checks the decoded answer.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chrissnell/quasar/internal/log"
	"github.com/chrissnell/quasar/internal/stations"
	"github.com/chrissnell/quasar/internal/types"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Transmission is one synthetic emitter broadcast as heard by every station
type Transmission struct {
	Emitter  types.Point
	Message  string
	Readings map[types.StationID]types.Reading
}

// Simulator synthesises transmissions and submits them to the service
type Simulator struct {
	baseURL  string
	client   *http.Client
	registry *stations.Registry
	rng      *rand.Rand
	dropRate float64
	msgpack  bool
}

// NewSimulator creates a simulator against the API at baseURL
func NewSimulator(baseURL string, seed int64, dropRate float64, useMsgPack bool) *Simulator {
	return &Simulator{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: 10 * time.Second},
		registry: stations.Default(),
		rng:      rand.New(rand.NewSource(seed)),
		dropRate: dropRate,
		msgpack:  useMsgPack,
	}
}

// Synthesize builds the readings each station would report for a message sent
// from emitter. Every word is dropped by some stations but always survives in
// at least one of them.
func (s *Simulator) Synthesize(emitter types.Point, message string) Transmission {
	words := strings.Fields(message)
	order := s.registry.Order()

	copies := make([][]string, len(order))
	for i := range copies {
		copies[i] = make([]string, len(words))
	}
	for w, word := range words {
		keeper := s.rng.Intn(len(order))
		for i := range order {
			if i == keeper || s.rng.Float64() >= s.dropRate {
				copies[i][w] = word
			}
		}
	}

	readings := make(map[types.StationID]types.Reading, len(order))
	for i, id := range order {
		p, _ := s.registry.Position(id)
		readings[id] = types.Reading{
			Distance: math.Hypot(emitter.X-p.X, emitter.Y-p.Y),
			Message:  copies[i],
		}
	}

	return Transmission{Emitter: emitter, Message: strings.Join(words, " "), Readings: readings}
}

// RandomEmitter picks an emitter position inside a square of the given half-width
func (s *Simulator) RandomEmitter(halfWidth float64) types.Point {
	return types.Point{
		X: (s.rng.Float64()*2 - 1) * halfWidth,
		Y: (s.rng.Float64()*2 - 1) * halfWidth,
	}
}

type satellite struct {
	Name     string   `json:"name"`
	Distance float64  `json:"distance"`
	Message  []string `json:"message"`
}

// SendBatch decodes tx through POST /topsecret
func (s *Simulator) SendBatch(ctx context.Context, tx Transmission) (types.Result, error) {
	var body struct {
		Satellites []satellite `json:"satellites"`
	}
	for _, id := range s.registry.Order() {
		r := tx.Readings[id]
		body.Satellites = append(body.Satellites, satellite{Name: string(id), Distance: r.Distance, Message: r.Message})
	}

	var result types.Result
	err := s.do(ctx, http.MethodPost, "/topsecret", body, &result)
	return result, err
}

// SendSplit submits every reading through POST /topsecret_split/{name} and
// then decodes them with GET /topsecret_split
func (s *Simulator) SendSplit(ctx context.Context, tx Transmission) (types.Result, error) {
	order := s.registry.Order()
	for _, i := range s.rng.Perm(len(order)) {
		id := order[i]
		r := tx.Readings[id]
		body := map[string]any{"distance": r.Distance, "message": r.Message}
		if err := s.do(ctx, http.MethodPost, "/topsecret_split/"+string(id), body, nil); err != nil {
			return types.Result{}, fmt.Errorf("submitting %s: %w", id, err)
		}
	}

	var result types.Result
	err := s.do(ctx, http.MethodGet, "/topsecret_split", nil, &result)
	return result, err
}

func (s *Simulator) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	url := s.baseURL + path
	if s.msgpack {
		url += "?format=msgpack"
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, s.errorText(data))
	}
	if out == nil {
		return nil
	}
	if s.msgpack {
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.SetCustomStructTag("json")
		return dec.Decode(out)
	}
	return json.Unmarshal(data, out)
}

func (s *Simulator) errorText(data []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if s.msgpack {
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.SetCustomStructTag("json")
		if dec.Decode(&e) == nil && e.Error != "" {
			return e.Error
		}
	} else if json.Unmarshal(data, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(data))
}

// Verify compares a decoded result with the transmission that produced it
func Verify(tx Transmission, result types.Result, tolerance float64) error {
	if result.Message != tx.Message {
		return fmt.Errorf("message %q, want %q", result.Message, tx.Message)
	}
	if d := math.Hypot(result.Position.X-tx.Emitter.X, result.Position.Y-tx.Emitter.Y); d > tolerance {
		return fmt.Errorf("position %+v is %.6f away from %+v", result.Position, d, tx.Emitter)
	}
	return nil
}

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:8080", "Base URL of the quasar REST API")
		mode      = flag.String("mode", "split", "Submission mode: 'split' or 'batch'")
		message   = flag.String("message", "este es un mensaje secreto", "Message broadcast by the emitter")
		count     = flag.Int("count", 1, "Number of transmissions to send (0 runs until interrupted)")
		interval  = flag.Duration("interval", time.Second, "Delay between transmissions")
		halfWidth = flag.Float64("area", 2000, "Half-width of the square emitters are placed in")
		dropRate  = flag.Float64("drop", 0.5, "Probability that a station misses a word")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
		useMsgPk  = flag.Bool("msgpack", false, "Request MessagePack responses")
		debug     = flag.Bool("debug", false, "Turn on debugging output")
	)
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *mode != "split" && *mode != "batch" {
		log.Errorf("unsupported mode %q; use 'split' or 'batch'", *mode)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim := NewSimulator(*baseURL, *seed, *dropRate, *useMsgPk)
	failures := 0

	for i := 0; *count == 0 || i < *count; i++ {
		tx := sim.Synthesize(sim.RandomEmitter(*halfWidth), *message)

		var (
			result types.Result
			err    error
		)
		if *mode == "batch" {
			result, err = sim.SendBatch(ctx, tx)
		} else {
			result, err = sim.SendSplit(ctx, tx)
		}
		if err == nil {
			err = Verify(tx, result, 1e-6)
		}

		if err != nil {
			failures++
			log.Errorw("transmission failed", "n", i+1, "emitter", tx.Emitter, "error", err)
		} else {
			log.Infow("transmission decoded", "n", i+1, "position", result.Position, "message", result.Message)
		}

		select {
		case <-ctx.Done():
			log.Info("interrupted")
			if failures > 0 {
				os.Exit(1)
			}
			return
		case <-time.After(*interval):
		}
	}

	if failures > 0 {
		log.Errorf("%d transmissions failed", failures)
		os.Exit(1)
	}
}
