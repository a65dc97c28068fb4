package restserver

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chrissnell/quasar/internal/accumulator"
	"github.com/chrissnell/quasar/internal/controllers"
	"github.com/chrissnell/quasar/internal/decoder"
	"github.com/chrissnell/quasar/internal/metrics"
	"github.com/chrissnell/quasar/internal/stations"
	"github.com/chrissnell/quasar/internal/types"
	"github.com/chrissnell/quasar/pkg/config"
	"github.com/chrissnell/quasar/pkg/responseformat"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const scenarioBatch = `{"satellites":[
	{"name":"kenobi","distance":100,"message":["este","","mensaje"]},
	{"name":"skywalker","distance":115.5,"message":["","es","",""]},
	{"name":"sato","distance":142.7,"message":["","","","secreto"]}
]}`

var scenarioSplit = map[string]string{
	"kenobi":    `{"distance":100,"message":["este","","mensaje"]}`,
	"skywalker": `{"distance":115.5,"message":["","es","",""]}`,
	"sato":      `{"distance":142.7,"message":["","","","secreto"]}`,
}

func newTestController(t *testing.T, rc config.RESTServerData) (*Controller, *controllers.Services) {
	t.Helper()

	collector, err := metrics.NewCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	registry := stations.Default()
	dec := decoder.New(registry, decoder.WithLocateObserver(collector))
	services := &controllers.Services{
		Decoder:     dec,
		Accumulator: accumulator.New(registry, dec, accumulator.WithPendingObserver(collector)),
		Metrics:     collector,
		StartedAt:   time.Now(),
	}

	ctrl, err := NewController(context.Background(), &sync.WaitGroup{}, rc, services, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return ctrl, services
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeResult(t *testing.T, rr *httptest.ResponseRecorder) types.Result {
	t.Helper()
	var result types.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result %q: %v", rr.Body.String(), err)
	}
	return result
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response %q: %v", rr.Body.String(), err)
	}
	return resp
}

func checkScenarioResult(t *testing.T, result types.Result) {
	t.Helper()
	if result.Message != "este es mensaje secreto" {
		t.Errorf("message = %q, want %q", result.Message, "este es mensaje secreto")
	}
	if math.Abs(result.Position.X-(-487.2859125)) > 1e-6 || math.Abs(result.Position.Y-1557.014225) > 1e-6 {
		t.Errorf("position = %+v", result.Position)
	}
}

func TestTopSecretScenario(t *testing.T) {
	ctrl, services := newTestController(t, config.RESTServerData{})
	h := ctrl.Handler()

	for _, path := range []string{"/topsecret", "/topsecret/"} {
		t.Run(path, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, path, scenarioBatch)
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
			}
			if ct := rr.Header().Get("Content-Type"); ct != responseformat.ContentTypeJSON {
				t.Errorf("Content-Type = %q", ct)
			}
			checkScenarioResult(t, decodeResult(t, rr))
		})
	}

	if services.Accumulator.Len() != 0 {
		t.Errorf("batch decode touched the accumulator: %d pending", services.Accumulator.Len())
	}
	if got := testutil.ToFloat64(services.Metrics.Decodes.WithLabelValues(metrics.ModeBatch, metrics.OutcomeOK)); got != 2 {
		t.Errorf("batch ok decodes = %v, want 2", got)
	}
}

func TestTopSecretRejectsBadInput(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantError string
	}{
		{name: "empty body", body: "", wantError: "JSON object"},
		{name: "not json", body: "satellites", wantError: "JSON object"},
		{name: "json array", body: `[1,2,3]`, wantError: "JSON object"},
		{name: "no satellites", body: `{}`, wantError: "'satellites'"},
		{name: "satellites not a list", body: `{"satellites":"kenobi"}`, wantError: "must be a list"},
		{
			name:      "two satellites",
			body:      `{"satellites":[{"name":"kenobi","distance":1,"message":[]},{"name":"sato","distance":1,"message":[]}]}`,
			wantError: "3 satellites",
		},
		{
			name:      "unknown satellite",
			body:      `{"satellites":[{"name":"vader","distance":1,"message":[]},{"name":"kenobi","distance":1,"message":[]},{"name":"sato","distance":1,"message":[]}]}`,
			wantError: "unknown satellite 'vader'",
		},
		{
			name:      "duplicate satellite",
			body:      `{"satellites":[{"name":"kenobi","distance":1,"message":[]},{"name":"kenobi","distance":2,"message":[]},{"name":"sato","distance":1,"message":[]}]}`,
			wantError: "more than once",
		},
		{
			name:      "trailing data",
			body:      scenarioBatch + " trailing",
			wantError: "single JSON object",
		},
		{
			name:      "second object",
			body:      scenarioBatch + ` {}`,
			wantError: "single JSON object",
		},
		{
			name:      "name is a number",
			body:      `{"satellites":[{"name":123,"distance":1,"message":[]},{"name":"kenobi","distance":1,"message":[]},{"name":"sato","distance":1,"message":[]}]}`,
			wantError: "'name' must be a string",
		},
		{
			name:      "missing name",
			body:      `{"satellites":[{"distance":1,"message":[]},{"name":"kenobi","distance":1,"message":[]},{"name":"sato","distance":1,"message":[]}]}`,
			wantError: "incomplete data",
		},
		{
			name:      "missing distance",
			body:      `{"satellites":[{"name":"kenobi","message":[]},{"name":"skywalker","distance":1,"message":[]},{"name":"sato","distance":1,"message":[]}]}`,
			wantError: "incomplete data for satellite 'kenobi'",
		},
		{
			name:      "distance is a string",
			body:      `{"satellites":[{"name":"kenobi","distance":"far","message":[]},{"name":"skywalker","distance":1,"message":[]},{"name":"sato","distance":1,"message":[]}]}`,
			wantError: "must be a number",
		},
		{
			name:      "message is a string",
			body:      `{"satellites":[{"name":"kenobi","distance":1,"message":"hello"},{"name":"skywalker","distance":1,"message":[]},{"name":"sato","distance":1,"message":[]}]}`,
			wantError: "must be a list of words",
		},
		{
			name:      "negative distance",
			body:      `{"satellites":[{"name":"kenobi","distance":-1,"message":[]},{"name":"skywalker","distance":1,"message":[]},{"name":"sato","distance":1,"message":[]}]}`,
			wantError: "must not be negative",
		},
	}

	ctrl, services := newTestController(t, config.RESTServerData{})
	h := ctrl.Handler()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/topsecret", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body %s", rr.Code, rr.Body.String())
			}
			resp := decodeError(t, rr)
			if resp.Status != http.StatusBadRequest || !strings.Contains(resp.Error, tt.wantError) {
				t.Errorf("error = %+v, want containing %q", resp, tt.wantError)
			}
			if resp.Timestamp == 0 {
				t.Error("timestamp not set")
			}
		})
	}

	want := float64(len(tests))
	if got := testutil.ToFloat64(services.Metrics.Decodes.WithLabelValues(metrics.ModeBatch, metrics.OutcomeValidation)); got != want {
		t.Errorf("batch validation decodes = %v, want %v", got, want)
	}
}

func TestTopSecretNullWordsAreGaps(t *testing.T) {
	ctrl, _ := newTestController(t, config.RESTServerData{})
	body := `{"satellites":[
		{"name":"kenobi","distance":100,"message":["este",null,"mensaje"]},
		{"name":"skywalker","distance":115.5,"message":[null,"es"]},
		{"name":"sato","distance":142.7,"message":[null,null,null,"secreto"]}
	]}`

	rr := do(t, ctrl.Handler(), http.MethodPost, "/topsecret", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	checkScenarioResult(t, decodeResult(t, rr))
}

func TestSplitFlow(t *testing.T) {
	ctrl, services := newTestController(t, config.RESTServerData{})
	h := ctrl.Handler()

	paths := map[string]string{
		"kenobi":    "/topsecret_split/kenobi",
		"skywalker": "/topsecret_split/skywalker/",
		"sato":      "/topsecret_split/sato",
	}
	for _, name := range []string{"kenobi", "skywalker", "sato"} {
		rr := do(t, h, http.MethodPost, paths[name], scenarioSplit[name])
		if rr.Code != http.StatusOK {
			t.Fatalf("submit %s: status = %d, body %s", name, rr.Code, rr.Body.String())
		}
		var ack SplitAckResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &ack); err != nil {
			t.Fatalf("decode ack: %v", err)
		}
		if ack.Message != "data for '"+name+"' received and stored" {
			t.Errorf("ack = %q", ack.Message)
		}
	}

	if got := testutil.ToFloat64(services.Metrics.PendingReadings); got != 3 {
		t.Errorf("pending gauge = %v, want 3", got)
	}

	rr := do(t, h, http.MethodGet, "/topsecret_split/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("drain: status = %d, body %s", rr.Code, rr.Body.String())
	}
	checkScenarioResult(t, decodeResult(t, rr))

	rr = do(t, h, http.MethodGet, "/topsecret_split", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second drain: status = %d, want 404", rr.Code)
	}
	resp := decodeError(t, rr)
	details, ok := resp.Details.(map[string]any)
	if !ok {
		t.Fatalf("details = %#v, want a map", resp.Details)
	}
	if missing, _ := details["missing"].([]any); len(missing) != 3 {
		t.Errorf("missing = %v, want all three stations", details["missing"])
	}

	if got := testutil.ToFloat64(services.Metrics.Decodes.WithLabelValues(metrics.ModeSplit, metrics.OutcomeInsufficient)); got != 1 {
		t.Errorf("split insufficient decodes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(services.Metrics.Submissions.WithLabelValues("kenobi")); got != 1 {
		t.Errorf("kenobi submissions = %v, want 1", got)
	}
}

func TestSplitPartialDrainKeepsState(t *testing.T) {
	ctrl, services := newTestController(t, config.RESTServerData{})
	h := ctrl.Handler()

	for _, name := range []string{"kenobi", "sato"} {
		if rr := do(t, h, http.MethodPost, "/topsecret_split/"+name, scenarioSplit[name]); rr.Code != http.StatusOK {
			t.Fatalf("submit %s: status = %d", name, rr.Code)
		}
	}

	rr := do(t, h, http.MethodGet, "/topsecret_split", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if resp := decodeError(t, rr); !strings.Contains(resp.Error, "skywalker") {
		t.Errorf("error = %q, want it to name skywalker", resp.Error)
	}
	if services.Accumulator.Len() != 2 {
		t.Fatalf("pending = %d after failed drain, want 2", services.Accumulator.Len())
	}

	if rr := do(t, h, http.MethodPost, "/topsecret_split/skywalker", scenarioSplit["skywalker"]); rr.Code != http.StatusOK {
		t.Fatalf("submit skywalker: status = %d", rr.Code)
	}
	rr = do(t, h, http.MethodGet, "/topsecret_split", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("drain: status = %d, body %s", rr.Code, rr.Body.String())
	}
	checkScenarioResult(t, decodeResult(t, rr))
}

func TestSplitSubmitErrors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantError  string
	}{
		{name: "unknown satellite", path: "/topsecret_split/vader", body: scenarioSplit["kenobi"], wantStatus: http.StatusNotFound, wantError: "unknown satellite 'vader'"},
		{name: "missing message", path: "/topsecret_split/kenobi", body: `{"distance":100}`, wantStatus: http.StatusBadRequest, wantError: "incomplete data for satellite 'kenobi'"},
		{name: "null body", path: "/topsecret_split/kenobi", body: `null`, wantStatus: http.StatusBadRequest, wantError: "incomplete data"},
		{name: "invalid json", path: "/topsecret_split/kenobi", body: `{"distance":`, wantStatus: http.StatusBadRequest, wantError: "JSON object"},
		{name: "distance not a number", path: "/topsecret_split/sato", body: `{"distance":"1","message":[]}`, wantStatus: http.StatusBadRequest, wantError: "must be a number"},
		{name: "message not a list", path: "/topsecret_split/sato", body: `{"distance":1,"message":{"a":1}}`, wantStatus: http.StatusBadRequest, wantError: "list of words"},
	}

	ctrl, services := newTestController(t, config.RESTServerData{})
	h := ctrl.Handler()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, tt.path, tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if resp := decodeError(t, rr); !strings.Contains(resp.Error, tt.wantError) {
				t.Errorf("error = %q, want containing %q", resp.Error, tt.wantError)
			}
		})
	}

	if services.Accumulator.Len() != 0 {
		t.Errorf("rejected submissions were stored: %d pending", services.Accumulator.Len())
	}
}

func TestSplitResubmitOverwrites(t *testing.T) {
	ctrl, services := newTestController(t, config.RESTServerData{})
	h := ctrl.Handler()

	do(t, h, http.MethodPost, "/topsecret_split/kenobi", `{"distance":1,"message":["old"]}`)
	do(t, h, http.MethodPost, "/topsecret_split/kenobi", scenarioSplit["kenobi"])

	pending := services.Accumulator.Pending()
	if len(pending) != 1 || pending[0].Distance != 100 || pending[0].Message[0] != "este" {
		t.Errorf("pending = %+v, want the second submission only", pending)
	}
}

func TestRoutingErrors(t *testing.T) {
	ctrl, _ := newTestController(t, config.RESTServerData{})
	h := ctrl.Handler()

	if rr := do(t, h, http.MethodGet, "/topsecret", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /topsecret status = %d, want 405", rr.Code)
	}
	rr := do(t, h, http.MethodGet, "/nowhere", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("GET /nowhere status = %d, want 404", rr.Code)
	}
	if rr.Header().Get(requestIDHeader) == "" {
		t.Error("404 response has no request ID")
	}
}

func TestHealthMsgPack(t *testing.T) {
	ctrl, _ := newTestController(t, config.RESTServerData{})

	rr := do(t, ctrl.Handler(), http.MethodGet, "/healthz?format=msgpack", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != responseformat.ContentTypeMsgPack {
		t.Fatalf("Content-Type = %q", ct)
	}

	var health map[string]any
	if err := msgpack.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatalf("msgpack decode: %v", err)
	}
	if health["status"] != "ok" || health["service"] != "quasar" {
		t.Errorf("health = %v", health)
	}
}

func TestRequestID(t *testing.T) {
	ctrl, _ := newTestController(t, config.RESTServerData{})
	h := ctrl.Handler()

	rr := do(t, h, http.MethodGet, "/healthz", "")
	if _, err := uuid.Parse(rr.Header().Get(requestIDHeader)); err != nil {
		t.Errorf("generated request ID %q is not a uuid: %v", rr.Header().Get(requestIDHeader), err)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get(requestIDHeader); got != "abc-123" {
		t.Errorf("request ID = %q, want the client's", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	ctrl, _ := newTestController(t, config.RESTServerData{})

	req := httptest.NewRequest(http.MethodOptions, "/topsecret", nil)
	req.Header.Set("Origin", "https://falcon.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	ctrl.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	ctrl, _ := newTestController(t, config.RESTServerData{})
	h := requestIDMiddleware(ctrl.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rr := do(t, h, http.MethodGet, "/", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	resp := decodeError(t, rr)
	if resp.Error != msgInternal || strings.Contains(rr.Body.String(), "boom") {
		t.Errorf("body = %s, want a generic message", rr.Body.String())
	}
}

func TestToErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		unknown    int
		wantStatus int
		wantError  string
	}{
		{"validation", &types.ValidationError{Message: "bad"}, http.StatusNotFound, http.StatusBadRequest, "bad"},
		{"unknown in body", &types.UnknownStationError{Station: "x"}, http.StatusBadRequest, http.StatusBadRequest, "unknown satellite 'x'"},
		{"unknown in path", &types.UnknownStationError{Station: "x"}, http.StatusNotFound, http.StatusNotFound, "unknown satellite 'x'"},
		{"insufficient", &types.InsufficientDataError{Missing: []types.StationID{"sato"}}, http.StatusBadRequest, http.StatusNotFound, "sato"},
		{"geometry", &types.GeometryError{Reason: "collinear stations"}, http.StatusBadRequest, http.StatusNotFound, msgCannotDetermine},
		{"internal", context.DeadlineExceeded, http.StatusBadRequest, http.StatusInternalServerError, msgInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := toErrorResponse(tt.err, tt.unknown)
			if status != tt.wantStatus || resp.Status != tt.wantStatus {
				t.Errorf("status = %d/%d, want %d", status, resp.Status, tt.wantStatus)
			}
			if !strings.Contains(resp.Error, tt.wantError) {
				t.Errorf("error = %q, want containing %q", resp.Error, tt.wantError)
			}
		})
	}
}

func TestOversizedBody(t *testing.T) {
	ctrl, _ := newTestController(t, config.RESTServerData{})

	body := `{"distance":1,"message":["` + strings.Repeat("a", maxBodyBytes) + `"]}`
	req := httptest.NewRequest(http.MethodPost, "/topsecret_split/kenobi", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	ctrl.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if resp := decodeError(t, rr); !strings.Contains(resp.Error, "exceeds") {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestTrailingWhitespaceAccepted(t *testing.T) {
	ctrl, _ := newTestController(t, config.RESTServerData{})

	rr := do(t, ctrl.Handler(), http.MethodPost, "/topsecret", scenarioBatch+"\n\t \n")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	checkScenarioResult(t, decodeResult(t, rr))
}

func TestOverflowIsInternalError(t *testing.T) {
	ctrl, services := newTestController(t, config.RESTServerData{})
	h := ctrl.Handler()

	huge := strings.Replace(scenarioBatch, `"distance":100`, `"distance":1e200`, 1)
	rr := do(t, h, http.MethodPost, "/topsecret", huge)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("batch status = %d, want 500; body %s", rr.Code, rr.Body.String())
	}
	resp := decodeError(t, rr)
	if resp.Error != msgInternal || resp.Details != nil {
		t.Errorf("batch error = %+v, want a generic internal error", resp)
	}
	if got := testutil.ToFloat64(services.Metrics.Decodes.WithLabelValues(metrics.ModeBatch, metrics.OutcomeInternal)); got != 1 {
		t.Errorf("batch internal decodes = %v, want 1", got)
	}

	splits := map[string]string{
		"kenobi":    `{"distance":1e200,"message":["este","","mensaje"]}`,
		"skywalker": scenarioSplit["skywalker"],
		"sato":      scenarioSplit["sato"],
	}
	for name, body := range splits {
		if rr := do(t, h, http.MethodPost, "/topsecret_split/"+name, body); rr.Code != http.StatusOK {
			t.Fatalf("submit %s: status = %d", name, rr.Code)
		}
	}
	rr = do(t, h, http.MethodGet, "/topsecret_split", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("split status = %d, want 500; body %s", rr.Code, rr.Body.String())
	}
	if resp := decodeError(t, rr); resp.Error != msgInternal {
		t.Errorf("split error = %q", resp.Error)
	}
	if services.Accumulator.Len() != 3 {
		t.Errorf("failed drain cleared state: %d pending", services.Accumulator.Len())
	}
}

func TestGRPCHealthSharesPort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	collector, err := metrics.NewCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	registry := stations.Default()
	dec := decoder.New(registry)
	services := &controllers.Services{
		Decoder:     dec,
		Accumulator: accumulator.New(registry, dec),
		Metrics:     collector,
		StartedAt:   time.Now(),
	}

	ctrl, err := NewController(ctx, &wg, config.RESTServerData{GRPCHealth: true}, services, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if err := ctrl.StartControllerOn(ln); err != nil {
		t.Fatalf("StartControllerOn: %v", err)
	}
	defer func() {
		cancel()
		wg.Wait()
	}()

	addr := ln.Addr().String()

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()

	checkCtx, checkCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer checkCancel()
	resp, err := healthpb.NewHealthClient(conn).Check(checkCtx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("health Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("health status = %v, want SERVING", resp.GetStatus())
	}

	httpResp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		t.Errorf("GET /healthz status = %d", httpResp.StatusCode)
	}
}
