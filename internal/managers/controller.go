package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/chrissnell/quasar/internal/controllers"
	"github.com/chrissnell/quasar/internal/controllers/management"
	"github.com/chrissnell/quasar/internal/controllers/restserver"
	"github.com/chrissnell/quasar/pkg/config"
	"go.uber.org/zap"
)

// ControllerManager interface for the controller manager
type ControllerManager interface {
	StartControllers() error
}

// Controller is an interface that provides standard methods for the HTTP controllers
type Controller interface {
	StartController() error
}

// NewControllerManager creates a new controller manager
func NewControllerManager(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, services *controllers.Services, logger *zap.SugaredLogger) (ControllerManager, error) {
	cfgData, err := configProvider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}

	cm := &controllerManager{
		ctx:            ctx,
		wg:             wg,
		configProvider: configProvider,
		services:       services,
		logger:         logger,
		controllers:    make([]Controller, 0, len(cfgData.Controllers)),
	}

	for _, con := range cfgData.Controllers {
		controller, err := cm.createController(con)
		if err != nil {
			return nil, fmt.Errorf("error creating %s controller: %w", con.Type, err)
		}
		cm.controllers = append(cm.controllers, controller)
	}

	return cm, nil
}

type controllerManager struct {
	ctx            context.Context
	wg             *sync.WaitGroup
	configProvider config.ConfigProvider
	services       *controllers.Services
	logger         *zap.SugaredLogger
	controllers    []Controller
}

func (c *controllerManager) StartControllers() error {
	c.logger.Info("Starting controller manager...")

	for _, controller := range c.controllers {
		if err := controller.StartController(); err != nil {
			return fmt.Errorf("error starting controller: %w", err)
		}
	}

	c.logger.Infof("Started %d controllers successfully", len(c.controllers))
	return nil
}

// createController creates a controller based on the controller configuration
func (c *controllerManager) createController(cc config.ControllerData) (Controller, error) {
	switch cc.Type {
	case config.ControllerTypeREST:
		return restserver.NewController(c.ctx, c.wg, *cc.RESTServer, c.services, c.logger)
	case config.ControllerTypeManagement:
		return management.NewController(c.ctx, c.wg, c.configProvider, *cc.ManagementAPI, c.services, c.logger)
	default:
		return nil, fmt.Errorf("unknown controller type: %s", cc.Type)
	}
}
