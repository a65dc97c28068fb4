package controllers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/quasar/internal/accumulator"
	"github.com/chrissnell/quasar/internal/decoder"
	"github.com/chrissnell/quasar/internal/metrics"
	"go.uber.org/zap"
)

// ShutdownTimeout bounds how long a controller waits for in-flight requests
const ShutdownTimeout = 10 * time.Second

// Services are the application components shared by every controller
type Services struct {
	Decoder     *decoder.Decoder
	Accumulator *accumulator.Accumulator
	Metrics     *metrics.Collector
	StartedAt   time.Time
}

// ListenAddress joins a listen address and port, applying defaults for empty values
func ListenAddress(addr string, port int, defaultAddr string, defaultPort int) string {
	if addr == "" {
		addr = defaultAddr
	}
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(addr, fmt.Sprintf("%d", port))
}

// ServeHTTP runs srv on ln in a goroutine tracked by wg and shuts it down when
// ctx is cancelled. TLS is used when both cert and key are set.
func ServeHTTP(ctx context.Context, wg *sync.WaitGroup, logger *zap.SugaredLogger, name string, srv *http.Server, ln net.Listener, cert, key string) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		var err error
		if cert != "" && key != "" {
			err = srv.ServeTLS(ln, cert, key)
		} else {
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("%s error: %v", name, err)
		}
	}()

	go func() {
		<-ctx.Done()
		logger.Infof("Shutting down the %s...", name)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("%s shutdown error: %v", name, err)
		}
	}()
}
