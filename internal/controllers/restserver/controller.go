package restserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/chrissnell/quasar/internal/controllers"
	"github.com/chrissnell/quasar/pkg/config"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/soheilhy/cmux"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	defaultListenAddr = "0.0.0.0"
	defaultPort       = 8080
)

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.RESTServerData
	services   *controllers.Services
	Server     http.Server
	GRPCServer *grpc.Server
	health     *health.Server
	logger     *zap.SugaredLogger
	handlers   *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, rc config.RESTServerData, services *controllers.Services, logger *zap.SugaredLogger) (*Controller, error) {
	if services == nil || services.Decoder == nil || services.Accumulator == nil {
		return nil, fmt.Errorf("REST server requires a decoder and an accumulator")
	}

	if rc.ListenAddr == "" {
		logger.Infof("rest.listen-addr not provided; defaulting to %s (all interfaces)", defaultListenAddr)
	}
	if rc.Port == 0 {
		logger.Infof("rest.port not provided; defaulting to %d", defaultPort)
	}
	if len(rc.CORSOrigins) == 0 {
		rc.CORSOrigins = []string{"*"}
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: rc,
		services:   services,
		logger:     logger,
	}
	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = controllers.ListenAddress(rc.ListenAddr, rc.Port, defaultListenAddr, defaultPort)
	ctrl.Server.Handler = ctrl.Handler()

	if rc.GRPCHealth {
		if rc.Cert != "" && rc.Key != "" {
			logger.Warn("gRPC health service is not available when the REST server uses TLS; disabling it")
		} else {
			ctrl.health = health.NewServer()
			ctrl.GRPCServer = grpc.NewServer()
			healthpb.RegisterHealthServer(ctrl.GRPCServer, ctrl.health)
		}
	}

	return ctrl, nil
}

// Handler returns the complete HTTP handler: routes wrapped in CORS and the
// request middleware.
func (c *Controller) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins(c.restConfig.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Accept", requestIDHeader}),
		handlers.ExposedHeaders([]string{requestIDHeader}),
	)
	return cors(c.setupRouter())
}

// StartController listens on the configured address and starts serving
func (c *Controller) StartController() error {
	ln, err := net.Listen("tcp", c.Server.Addr)
	if err != nil {
		return fmt.Errorf("REST server could not listen on %s: %w", c.Server.Addr, err)
	}
	return c.StartControllerOn(ln)
}

// StartControllerOn serves on an existing listener. When the gRPC health
// service is enabled the listener is shared with it.
func (c *Controller) StartControllerOn(ln net.Listener) error {
	c.logger.Infof("Starting REST server controller on %s...", ln.Addr())

	if c.GRPCServer == nil {
		controllers.ServeHTTP(c.ctx, c.wg, c.logger, "REST server", &c.Server, ln, c.restConfig.Cert, c.restConfig.Key)
		return nil
	}

	m := cmux.New(ln)
	grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := m.Match(cmux.Any())

	c.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	controllers.ServeHTTP(c.ctx, c.wg, c.logger, "REST server", &c.Server, httpL, "", "")

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		if err := c.GRPCServer.Serve(grpcL); err != nil && !errors.Is(err, grpc.ErrServerStopped) && !errors.Is(err, cmux.ErrListenerClosed) && !errors.Is(err, cmux.ErrServerClosed) {
			c.logger.Errorf("gRPC health service error: %v", err)
		}
	}()
	go func() {
		defer c.wg.Done()
		if err := m.Serve(); err != nil && !errors.Is(err, net.ErrClosed) {
			c.logger.Debugf("REST listener multiplexer stopped: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.health.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), controllers.ShutdownTimeout)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
		c.GRPCServer.Stop()
		m.Close()
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints. Every route is
// registered with and without a trailing slash; redirecting would turn a
// POST into a GET.
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(requestIDMiddleware, c.loggingMiddleware, c.recoveryMiddleware)

	for _, path := range []string{"/topsecret", "/topsecret/"} {
		router.HandleFunc(path, c.handlers.TopSecret).Methods(http.MethodPost)
	}
	for _, path := range []string{"/topsecret_split/{satellite_name}", "/topsecret_split/{satellite_name}/"} {
		router.HandleFunc(path, c.handlers.SubmitSplit).Methods(http.MethodPost)
	}
	for _, path := range []string{"/topsecret_split", "/topsecret_split/"} {
		router.HandleFunc(path, c.handlers.DecodeSplit).Methods(http.MethodGet)
	}
	for _, path := range []string{"/healthz", "/healthz/"} {
		router.HandleFunc(path, c.handlers.Health).Methods(http.MethodGet)
	}

	router.NotFoundHandler = requestIDMiddleware(http.HandlerFunc(c.handlers.NotFound))
	router.MethodNotAllowedHandler = requestIDMiddleware(http.HandlerFunc(c.handlers.MethodNotAllowed))

	return router
}
