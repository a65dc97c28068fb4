package management

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/quasar/internal/controllers"
	"github.com/chrissnell/quasar/pkg/config"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	defaultListenAddr = "127.0.0.1"
	defaultPort       = 8081
)

// Controller represents the management API controller
type Controller struct {
	ctx              context.Context
	wg               *sync.WaitGroup
	managementConfig config.ManagementAPIData
	ConfigProvider   config.ConfigProvider
	services         *controllers.Services
	Server           http.Server
	logger           *zap.SugaredLogger
	handlers         *Handlers
}

// NewController creates a new management API controller
func NewController(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, mc config.ManagementAPIData, services *controllers.Services, logger *zap.SugaredLogger) (*Controller, error) {
	if services == nil || services.Accumulator == nil {
		return nil, fmt.Errorf("management API requires an accumulator")
	}

	ctrl := &Controller{
		ctx:              ctx,
		wg:               wg,
		managementConfig: mc,
		ConfigProvider:   configProvider,
		services:         services,
		logger:           logger,
	}

	if mc.Port == 0 {
		logger.Infof("management API port not specified; defaulting to %d", defaultPort)
	}
	if mc.ListenAddr == "" {
		logger.Infof("management API listen-addr not provided; defaulting to %s (localhost only)", defaultListenAddr)
	}

	if mc.AuthToken == "" {
		ctrl.managementConfig.AuthToken = generateAuthToken()
		ctrl.saveAuthToken()
		logger.Info("═══════════════════════════════════════════════════════════════")
		logger.Info("        NEW MANAGEMENT API ACCESS TOKEN GENERATED             ")
		logger.Info("═══════════════════════════════════════════════════════════════")
		logger.Infof("   Token: %s", ctrl.managementConfig.AuthToken)
		logger.Info("   Send it as 'Authorization: Bearer <token>' on /api requests")
		logger.Info("═══════════════════════════════════════════════════════════════")
	}

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = controllers.ListenAddress(mc.ListenAddr, mc.Port, defaultListenAddr, defaultPort)
	ctrl.Server.Handler = ctrl.setupRouter()

	return ctrl, nil
}

// saveAuthToken persists a generated token when the config backend is writable
func (c *Controller) saveAuthToken() {
	if c.ConfigProvider == nil || c.ConfigProvider.IsReadOnly() {
		c.logger.Info("configuration is read-only; the generated management token changes on every restart")
		return
	}
	updater, ok := c.ConfigProvider.(config.ControllerUpdater)
	if !ok {
		return
	}

	mc := c.managementConfig
	err := updater.UpdateController(config.ControllerTypeManagement, &config.ControllerData{
		Type:          config.ControllerTypeManagement,
		ManagementAPI: &mc,
	})
	if err != nil {
		c.logger.Errorf("Failed to save auth token to the configuration database: %v", err)
	}
}

// StartController starts the management API server
func (c *Controller) StartController() error {
	ln, err := net.Listen("tcp", c.Server.Addr)
	if err != nil {
		return fmt.Errorf("management API could not listen on %s: %w", c.Server.Addr, err)
	}

	c.logger.Infof("Starting management API controller on %s...", ln.Addr())
	controllers.ServeHTTP(c.ctx, c.wg, c.logger, "management API server", &c.Server, ln, c.managementConfig.Cert, c.managementConfig.Key)
	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(c.loggingMiddleware)

	router.Handle("/metrics", c.services.Metrics.Handler()).Methods("GET")
	router.HandleFunc("/auth/status", c.handlers.GetAuthStatus).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.Use(c.authMiddleware)

	api.HandleFunc("/status", c.handlers.GetStatus).Methods("GET")
	api.HandleFunc("/config", c.handlers.GetConfig).Methods("GET")
	api.HandleFunc("/system/info", c.handlers.GetSystemInfo).Methods("GET")

	api.HandleFunc("/pending", c.handlers.GetPending).Methods("GET")
	api.HandleFunc("/pending", c.handlers.ResetPending).Methods("DELETE")

	api.HandleFunc("/logs/http", c.handlers.GetHTTPLogs).Methods("GET")
	api.HandleFunc("/logs/http", c.handlers.ClearHTTPLogs).Methods("DELETE")

	return router
}

// loggingMiddleware logs all requests except for the log viewer itself
func (c *Controller) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		if r.URL.Path != "/api/logs/http" && r.URL.Path != "/metrics" {
			c.logger.Infof("%s %s %s %v", r.Method, r.RequestURI, r.RemoteAddr, time.Since(start))
		}
	})
}

// authMiddleware validates the bearer token
func (c *Controller) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.authorized(r) {
			next.ServeHTTP(w, r)
			return
		}
		c.logger.Debugf("Auth failed for %s - no valid bearer token", r.URL.Path)
		c.handlers.sendError(w, http.StatusUnauthorized, "Authentication required", nil)
	})
}

func (c *Controller) authorized(r *http.Request) bool {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return false
	}
	return tokenMatches(header[len(prefix):], c.managementConfig.AuthToken)
}
