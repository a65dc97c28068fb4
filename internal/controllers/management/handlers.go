package management

import (
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/chrissnell/quasar/internal/constants"
	"github.com/chrissnell/quasar/internal/log"
	"github.com/chrissnell/quasar/pkg/config"
)

// Handlers contains the HTTP handlers for the management API
type Handlers struct {
	controller *Controller
}

// NewHandlers creates a new Handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
	}
}

// StatusResponse is returned by /api/status
type StatusResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	StartedAt     int64   `json:"started_at"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Pending       int     `json:"pending"`
	Timestamp     int64   `json:"timestamp"`
}

// SystemInfo represents basic system information
type SystemInfo struct {
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	Hostname     string `json:"hostname"`
	GoVersion    string `json:"go_version"`
	Goroutines   int    `json:"goroutines"`
	Timestamp    int64  `json:"timestamp"`
}

// sendJSON sends a JSON response with a 200 status
func (h *Handlers) sendJSON(w http.ResponseWriter, data any) {
	h.sendJSONWithStatus(w, http.StatusOK, data)
}

// sendJSONWithStatus sends a JSON response with a specific status code
func (h *Handlers) sendJSONWithStatus(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.controller.logger.Errorf("error encoding management response: %v", err)
	}
}

// sendError sends an error response in JSON format
func (h *Handlers) sendError(w http.ResponseWriter, statusCode int, message string, err error) {
	errorResponse := map[string]any{
		"error":     message,
		"status":    statusCode,
		"timestamp": time.Now().Unix(),
	}

	if err != nil {
		errorResponse["details"] = err.Error()
	}

	h.sendJSONWithStatus(w, statusCode, errorResponse)
}

// GetAuthStatus reports whether the request carries a valid token
func (h *Handlers) GetAuthStatus(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, map[string]any{
		"authenticated": h.controller.authorized(r),
	})
}

// GetStatus returns version, uptime and the number of pending split readings
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	services := h.controller.services
	now := time.Now()

	h.sendJSON(w, StatusResponse{
		Status:        "ok",
		Version:       constants.Version,
		StartedAt:     services.StartedAt.Unix(),
		UptimeSeconds: now.Sub(services.StartedAt).Seconds(),
		Pending:       services.Accumulator.Len(),
		Timestamp:     now.Unix(),
	})
}

// GetConfig returns the current configuration with secrets removed
func (h *Handlers) GetConfig(w http.ResponseWriter, r *http.Request) {
	if h.controller.ConfigProvider == nil {
		h.sendError(w, http.StatusServiceUnavailable, "No config provider available", nil)
		return
	}

	configData, err := h.controller.ConfigProvider.LoadConfig()
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to load configuration", err)
		return
	}

	h.sendJSON(w, map[string]any{
		"config":           sanitizeConfig(configData),
		"read_only":        h.controller.ConfigProvider.IsReadOnly(),
		"timestamp":        time.Now().Unix(),
		"controller_count": len(configData.Controllers),
	})
}

// sanitizeConfig returns a copy of cfg without the management token
func sanitizeConfig(cfg *config.ConfigData) config.ConfigData {
	out := config.ConfigData{
		Logging:     cfg.Logging,
		Controllers: make([]config.ControllerData, len(cfg.Controllers)),
	}
	for i, c := range cfg.Controllers {
		out.Controllers[i] = c
		if c.ManagementAPI != nil {
			mc := *c.ManagementAPI
			if mc.AuthToken != "" {
				mc.AuthToken = "[REDACTED]"
			}
			out.Controllers[i].ManagementAPI = &mc
		}
	}
	return out
}

// GetSystemInfo returns basic system information
func (h *Handlers) GetSystemInfo(w http.ResponseWriter, r *http.Request) {
	hostname, _ := os.Hostname()

	h.sendJSON(w, SystemInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		Hostname:     hostname,
		GoVersion:    runtime.Version(),
		Goroutines:   runtime.NumGoroutine(),
		Timestamp:    time.Now().Unix(),
	})
}

// GetPending returns the split readings waiting for a decode
func (h *Handlers) GetPending(w http.ResponseWriter, r *http.Request) {
	pending := h.controller.services.Accumulator.Pending()

	h.sendJSON(w, map[string]any{
		"pending":   pending,
		"count":     len(pending),
		"timestamp": time.Now().Unix(),
	})
}

// ResetPending discards every pending split reading
func (h *Handlers) ResetPending(w http.ResponseWriter, r *http.Request) {
	discarded := h.controller.services.Accumulator.Reset()

	h.controller.logger.Infof("pending readings reset via management API (%d discarded)", discarded)
	h.sendJSON(w, map[string]any{
		"success":   true,
		"discarded": discarded,
	})
}

// GetHTTPLogs returns recent requests served by the REST API. The optional
// limit query parameter caps the number of entries.
func (h *Handlers) GetHTTPLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.sendError(w, http.StatusBadRequest, "limit must be a non-negative integer", err)
			return
		}
		limit = n
	}

	entries := log.GetHTTPLogBuffer().GetEntries(limit)
	h.sendJSON(w, map[string]any{
		"logs":  entries,
		"count": len(entries),
	})
}

// ClearHTTPLogs empties the HTTP request log buffer
func (h *Handlers) ClearHTTPLogs(w http.ResponseWriter, r *http.Request) {
	log.GetHTTPLogBuffer().Clear()
	h.sendJSON(w, map[string]any{"success": true})
}
