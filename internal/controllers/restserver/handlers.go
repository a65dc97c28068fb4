package restserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/chrissnell/quasar/internal/constants"
	"github.com/chrissnell/quasar/internal/metrics"
	"github.com/chrissnell/quasar/internal/types"
	"github.com/chrissnell/quasar/pkg/responseformat"
	"github.com/gorilla/mux"
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// TopSecret decodes the position and message from the readings of all three
// satellites sent in one request. The accumulator is not touched.
func (h *Handlers) TopSecret(w http.ResponseWriter, req *http.Request) {
	services := h.controller.services

	var result types.Result
	readings, err := h.parseBatch(w, req)
	if err == nil {
		result, err = services.Decoder.Decode(readings)
	}
	services.Metrics.ObserveDecode(metrics.ModeBatch, err)

	if err != nil {
		h.writeError(w, req, err, http.StatusBadRequest)
		return
	}
	h.writeResponse(w, req, http.StatusOK, result)
}

// SubmitSplit stores the reading of a single satellite for a later decode
func (h *Handlers) SubmitSplit(w http.ResponseWriter, req *http.Request) {
	services := h.controller.services
	name := mux.Vars(req)["satellite_name"]

	station, err := services.Decoder.Registry().Lookup(name)
	if err != nil {
		h.writeError(w, req, err, http.StatusNotFound)
		return
	}

	obj, err := decodeObject(w, req)
	if err != nil {
		h.writeError(w, req, err, http.StatusNotFound)
		return
	}
	if obj == nil {
		h.writeError(w, req, incomplete(name), http.StatusNotFound)
		return
	}

	reading, err := parseReading(obj, name)
	if err != nil {
		h.writeError(w, req, err, http.StatusNotFound)
		return
	}

	if err := services.Accumulator.Submit(station, reading); err != nil {
		h.writeError(w, req, err, http.StatusNotFound)
		return
	}
	services.Metrics.ObserveSubmission(station)

	h.writeResponse(w, req, http.StatusOK, SplitAckResponse{
		Message: fmt.Sprintf("data for '%s' received and stored", name),
	})
}

// DecodeSplit decodes the readings accumulated through SubmitSplit. The
// pending readings are cleared only when decoding succeeds.
func (h *Handlers) DecodeSplit(w http.ResponseWriter, req *http.Request) {
	services := h.controller.services

	result, err := services.Accumulator.TryDrain()
	services.Metrics.ObserveDecode(metrics.ModeSplit, err)

	if err != nil {
		h.writeError(w, req, err, http.StatusNotFound)
		return
	}
	h.writeResponse(w, req, http.StatusOK, result)
}

// Health reports liveness
func (h *Handlers) Health(w http.ResponseWriter, req *http.Request) {
	h.writeResponse(w, req, http.StatusOK, HealthResponse{
		Service: constants.ServiceName,
		Status:  "ok",
		Version: constants.Version,
	})
}

// NotFound answers requests for unknown paths
func (h *Handlers) NotFound(w http.ResponseWriter, req *http.Request) {
	h.writeResponse(w, req, http.StatusNotFound, ErrorResponse{
		Error:     fmt.Sprintf("no route for %s %s", req.Method, req.URL.Path),
		Status:    http.StatusNotFound,
		Timestamp: nowUnix(),
	})
}

// MethodNotAllowed answers requests using the wrong method on a known path
func (h *Handlers) MethodNotAllowed(w http.ResponseWriter, req *http.Request) {
	h.writeResponse(w, req, http.StatusMethodNotAllowed, ErrorResponse{
		Error:     fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path),
		Status:    http.StatusMethodNotAllowed,
		Timestamp: nowUnix(),
	})
}

// parseBatch reads a {"satellites": [...]} body into one reading per station
func (h *Handlers) parseBatch(w http.ResponseWriter, req *http.Request) (map[types.StationID]types.Reading, error) {
	obj, err := decodeObject(w, req)
	if err != nil {
		return nil, err
	}

	rawSatellites, ok := obj["satellites"]
	if !ok || isNull(rawSatellites) {
		return nil, &types.ValidationError{Field: "satellites", Message: "invalid data; expected a JSON object with 'satellites'"}
	}

	var satellites []map[string]json.RawMessage
	if err := json.Unmarshal(rawSatellites, &satellites); err != nil {
		return nil, &types.ValidationError{Field: "satellites", Message: "'satellites' must be a list of objects"}
	}

	registry := h.controller.services.Decoder.Registry()
	if len(satellites) != len(registry.Order()) {
		return nil, &types.ValidationError{Field: "satellites", Message: fmt.Sprintf("data from %d satellites is required (kenobi, skywalker, sato)", len(registry.Order()))}
	}

	readings := make(map[types.StationID]types.Reading, len(satellites))
	for _, sat := range satellites {
		raw, ok := sat["name"]
		if !ok || isNull(raw) {
			return nil, &types.ValidationError{Field: "name", Message: "incomplete data for a satellite; 'name', 'distance' and 'message' are required"}
		}
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return nil, &types.ValidationError{Field: "name", Message: "'name' must be a string"}
		}
		if name == "" {
			return nil, &types.ValidationError{Field: "name", Message: "incomplete data for a satellite; 'name', 'distance' and 'message' are required"}
		}

		station, err := registry.Lookup(name)
		if err != nil {
			return nil, err
		}
		if _, dup := readings[station]; dup {
			return nil, &types.ValidationError{Field: "name", Message: fmt.Sprintf("satellite '%s' appears more than once", name)}
		}

		reading, err := parseReading(sat, name)
		if err != nil {
			return nil, err
		}
		readings[station] = reading
	}

	return readings, nil
}

// decodeObject reads the request body as a single JSON object. A JSON null
// body yields a nil map.
func decodeObject(w http.ResponseWriter, req *http.Request) (map[string]json.RawMessage, error) {
	req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
	dec := json.NewDecoder(req.Body)

	var obj map[string]json.RawMessage
	if err := dec.Decode(&obj); err != nil {
		return nil, bodyError(err, "request body must be a JSON object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, bodyError(err, "request body must contain a single JSON object")
	}
	return obj, nil
}

func bodyError(err error, message string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		message = fmt.Sprintf("request body exceeds %d bytes", maxBodyBytes)
	}
	return &types.ValidationError{Message: message}
}

func (h *Handlers) writeResponse(w http.ResponseWriter, req *http.Request, status int, data any) {
	if err := h.formatter.WriteResponse(w, req, status, data); err != nil {
		h.controller.logger.Errorf("error writing response for %s: %v", req.URL.Path, err)
	}
}

// writeError maps err onto an error response. Unexpected errors are logged and
// reported without their details.
func (h *Handlers) writeError(w http.ResponseWriter, req *http.Request, err error, unknownStationStatus int) {
	status, resp := toErrorResponse(err, unknownStationStatus)
	if status == http.StatusInternalServerError {
		h.controller.logger.Errorw("request failed",
			"request_id", requestIDFromContext(req.Context()),
			"path", req.URL.Path,
			"error", err,
		)
	}
	h.writeResponse(w, req, status, resp)
}
