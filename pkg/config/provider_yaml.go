package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// YAML representations of the configuration sections
type configYAML struct {
	Logging     LoggingYAML      `yaml:"logging,omitempty"`
	Controllers []ControllerYAML `yaml:"controllers,omitempty"`
}

type LoggingYAML struct {
	Debug      bool   `yaml:"debug,omitempty"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max-size-mb,omitempty"`
	MaxBackups int    `yaml:"max-backups,omitempty"`
	MaxAgeDays int    `yaml:"max-age-days,omitempty"`
	Compress   bool   `yaml:"compress,omitempty"`
}

type ControllerYAML struct {
	Type          string             `yaml:"type,omitempty"`
	RESTServer    *RESTServerYAML    `yaml:"rest,omitempty"`
	ManagementAPI *ManagementAPIYAML `yaml:"management,omitempty"`
}

type RESTServerYAML struct {
	Cert        string   `yaml:"cert,omitempty"`
	Key         string   `yaml:"key,omitempty"`
	Port        int      `yaml:"port,omitempty"`
	ListenAddr  string   `yaml:"listen-addr,omitempty"`
	CORSOrigins []string `yaml:"cors-origins,omitempty"`
	GRPCHealth  bool     `yaml:"grpc-health,omitempty"`
}

type ManagementAPIYAML struct {
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	ListenAddr string `yaml:"listen-addr,omitempty"`
	AuthToken  string `yaml:"auth-token,omitempty"`
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	if y.config != nil {
		return y.config, nil
	}

	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := parseYAML(cfgFile)
	if err != nil {
		return nil, err
	}

	y.config = config
	return config, nil
}

func parseYAML(data []byte) (*ConfigData, error) {
	var yamlConfig configYAML
	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return nil, fmt.Errorf("error parsing YAML configuration: %w", err)
	}

	// Convert to our internal format
	config := &ConfigData{
		Logging: LoggingData{
			Debug:      yamlConfig.Logging.Debug,
			File:       yamlConfig.Logging.File,
			MaxSizeMB:  yamlConfig.Logging.MaxSizeMB,
			MaxBackups: yamlConfig.Logging.MaxBackups,
			MaxAgeDays: yamlConfig.Logging.MaxAgeDays,
			Compress:   yamlConfig.Logging.Compress,
		},
		Controllers: make([]ControllerData, len(yamlConfig.Controllers)),
	}

	for i, controller := range yamlConfig.Controllers {
		config.Controllers[i] = ControllerData{
			Type: controller.Type,
		}

		if controller.RESTServer != nil {
			config.Controllers[i].RESTServer = &RESTServerData{
				Cert:        controller.RESTServer.Cert,
				Key:         controller.RESTServer.Key,
				Port:        controller.RESTServer.Port,
				ListenAddr:  controller.RESTServer.ListenAddr,
				CORSOrigins: controller.RESTServer.CORSOrigins,
				GRPCHealth:  controller.RESTServer.GRPCHealth,
			}
		}

		if controller.ManagementAPI != nil {
			config.Controllers[i].ManagementAPI = &ManagementAPIData{
				Cert:       controller.ManagementAPI.Cert,
				Key:        controller.ManagementAPI.Key,
				Port:       controller.ManagementAPI.Port,
				ListenAddr: controller.ManagementAPI.ListenAddr,
				AuthToken:  controller.ManagementAPI.AuthToken,
			}
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// GetLogging returns the logging configuration
func (y *YAMLProvider) GetLogging() (*LoggingData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &config.Logging, nil
}

// GetControllers returns controller configurations
func (y *YAMLProvider) GetControllers() ([]ControllerData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return config.Controllers, nil
}

// IsReadOnly returns true since YAML provider is read-only
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}
