package config

import "fmt"

// Controller types
const (
	ControllerTypeREST       = "rest"
	ControllerTypeManagement = "management"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetLogging() (*LoggingData, error)
	GetControllers() ([]ControllerData, error)

	IsReadOnly() bool
	Close() error
}

// ControllerUpdater is implemented by providers that can persist a single
// controller's configuration
type ControllerUpdater interface {
	UpdateController(controllerType string, controller *ControllerData) error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Logging     LoggingData      `json:"logging"`
	Controllers []ControllerData `json:"controllers,omitempty"`
}

// LoggingData controls log verbosity and the optional rotated log file
type LoggingData struct {
	Debug      bool   `json:"debug,omitempty"`
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
	Compress   bool   `json:"compress,omitempty"`
}

// ControllerData holds the configuration for the HTTP controllers
type ControllerData struct {
	Type          string             `json:"type,omitempty"`
	RESTServer    *RESTServerData    `json:"rest,omitempty"`
	ManagementAPI *ManagementAPIData `json:"management,omitempty"`
}

// RESTServerData configures the public decoding API
type RESTServerData struct {
	Cert        string   `json:"cert,omitempty"`
	Key         string   `json:"key,omitempty"`
	Port        int      `json:"port,omitempty"`
	ListenAddr  string   `json:"listen_addr,omitempty"`
	CORSOrigins []string `json:"cors_origins,omitempty"`
	GRPCHealth  bool     `json:"grpc_health,omitempty"`
}

// ManagementAPIData configures the operator API
type ManagementAPIData struct {
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	Port       int    `json:"port,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty"`
	AuthToken  string `json:"auth_token,omitempty"`
}

// Validate checks controller entries are known and not duplicated
func (c *ConfigData) Validate() error {
	seen := make(map[string]bool)
	for i, con := range c.Controllers {
		switch con.Type {
		case ControllerTypeREST:
			if con.RESTServer == nil {
				return fmt.Errorf("controller %d: type %q has no rest section", i, con.Type)
			}
		case ControllerTypeManagement:
			if con.ManagementAPI == nil {
				return fmt.Errorf("controller %d: type %q has no management section", i, con.Type)
			}
		default:
			return fmt.Errorf("controller %d: unknown controller type: %q", i, con.Type)
		}
		if seen[con.Type] {
			return fmt.Errorf("controller type %q configured more than once", con.Type)
		}
		seen[con.Type] = true
	}
	if !seen[ControllerTypeREST] {
		return fmt.Errorf("a %q controller must be configured", ControllerTypeREST)
	}
	return nil
}

// Default returns a configuration with the REST API on 0.0.0.0:8080 and the
// management API on 127.0.0.1:8081
func Default() *ConfigData {
	return &ConfigData{
		Controllers: []ControllerData{
			{
				Type: ControllerTypeREST,
				RESTServer: &RESTServerData{
					ListenAddr:  "0.0.0.0",
					Port:        8080,
					CORSOrigins: []string{"*"},
				},
			},
			{
				Type: ControllerTypeManagement,
				ManagementAPI: &ManagementAPIData{
					ListenAddr: "127.0.0.1",
					Port:       8081,
				},
			},
		},
	}
}
