package log

import (
	"fmt"
	"sync"
	"time"
)

// HTTP log buffer is separate from the main log
var httpLogBuffer *LogBuffer
var httpLogBufferOnce sync.Once

// HTTPRequestInfo describes one served HTTP request
type HTTPRequestInfo struct {
	RequestID  string
	Method     string
	Path       string
	Status     int
	Duration   time.Duration
	Size       int
	RemoteAddr string
	UserAgent  string
	Err        error
}

// GetHTTPLogBuffer returns the HTTP log buffer instance, creating it if necessary
func GetHTTPLogBuffer() *LogBuffer {
	httpLogBufferOnce.Do(func() {
		httpLogBuffer = NewLogBuffer(1000) // Keep last 1000 HTTP log entries
	})
	return httpLogBuffer
}

// LogHTTPRequest records a request in the HTTP log buffer and emits it at debug level
func LogHTTPRequest(info HTTPRequestInfo) {
	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     "info",
		Message:   fmt.Sprintf("%s %s %d %v %d bytes", info.Method, info.Path, info.Status, info.Duration, info.Size),
		Fields: map[string]any{
			"method":      info.Method,
			"path":        info.Path,
			"status":      info.Status,
			"duration_ms": info.Duration.Milliseconds(),
			"size":        info.Size,
			"remote_addr": info.RemoteAddr,
			"user_agent":  info.UserAgent,
		},
	}

	if info.RequestID != "" {
		entry.Fields["request_id"] = info.RequestID
	}

	if info.Err != nil {
		entry.Level = "error"
		entry.Fields["error"] = info.Err.Error()
	}

	GetHTTPLogBuffer().AddEntry(entry)

	Debugw("http request",
		"request_id", info.RequestID,
		"method", info.Method,
		"path", info.Path,
		"status", info.Status,
		"duration", info.Duration,
	)
}
