package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/chrissnell/quasar/internal/accumulator"
	"github.com/chrissnell/quasar/internal/controllers"
	"github.com/chrissnell/quasar/internal/decoder"
	"github.com/chrissnell/quasar/internal/log"
	"github.com/chrissnell/quasar/internal/managers"
	"github.com/chrissnell/quasar/internal/metrics"
	"github.com/chrissnell/quasar/internal/stations"
	"github.com/chrissnell/quasar/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
	registerer     prometheus.Registerer
}

// New creates a new application instance. Metrics are registered with the
// default Prometheus registry.
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
		registerer:     prometheus.DefaultRegisterer,
	}
}

// NewServices builds the registry, decoder and accumulator shared by the
// controllers and wires their metrics into reg.
func NewServices(reg prometheus.Registerer) (*controllers.Services, error) {
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("error registering metrics: %w", err)
	}

	registry := stations.Default()
	dec := decoder.New(registry, decoder.WithLocateObserver(collector))

	return &controllers.Services{
		Decoder:     dec,
		Accumulator: accumulator.New(registry, dec, accumulator.WithPendingObserver(collector)),
		Metrics:     collector,
		StartedAt:   time.Now(),
	}, nil
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	services, err := NewServices(a.registerer)
	if err != nil {
		return err
	}

	cm, err := managers.NewControllerManager(ctx, &wg, a.configProvider, services, a.logger)
	if err != nil {
		return err
	}
	if err := cm.StartControllers(); err != nil {
		cancel()
		wg.Wait()
		return err
	}

	log.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	log.Info("waiting for all controllers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
