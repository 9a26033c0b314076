// Package config loads and validates DocuFS configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DOCUFS_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// One config file drives both daemons; the coordinator reads the
// `coordinator` section, a storage node reads the `node` section, and both
// share `logging` and `metrics`.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the root DocuFS configuration.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics configures the optional Prometheus/admin HTTP endpoint.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Coordinator configures the central coordinator daemon.
	Coordinator CoordinatorConfig `mapstructure:"coordinator" yaml:"coordinator"`

	// Node configures a storage node daemon.
	Node NodeConfig `mapstructure:"node" yaml:"node"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is the output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures the admin HTTP server exposing /metrics,
// /healthz and the node table.
type MetricsConfig struct {
	// Enabled controls whether the admin HTTP server is started.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// ListenAddr is the host:port the admin server binds.
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// CoordinatorConfig configures the coordinator daemon.
type CoordinatorConfig struct {
	// ListenAddr is the host:port clients and nodes connect to.
	ListenAddr string `mapstructure:"listen_addr" validate:"required" yaml:"listen_addr"`

	// DataDir holds registry.dat, cache/ and backups/.
	DataDir string `mapstructure:"data_dir" validate:"required" yaml:"data_dir"`

	// HeartbeatInterval is the cadence of the failure detector.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" validate:"gt=0" yaml:"heartbeat_interval"`

	// HeartbeatGrace is how long a node may miss beats before it is
	// marked FAILED.
	HeartbeatGrace time.Duration `mapstructure:"heartbeat_grace" validate:"gt=0" yaml:"heartbeat_grace"`

	// ControlTimeout bounds one request/reply exchange on a control
	// channel.
	ControlTimeout time.Duration `mapstructure:"control_timeout" validate:"gt=0" yaml:"control_timeout"`

	// ExecEnabled gates the EXEC operation. Off by default: EXEC runs
	// user-supplied file content under a shell on the coordinator host.
	ExecEnabled bool `mapstructure:"exec_enabled" yaml:"exec_enabled"`

	// ExecTimeout bounds one EXEC shell invocation.
	ExecTimeout time.Duration `mapstructure:"exec_timeout" validate:"gt=0" yaml:"exec_timeout"`
}

// NodeConfig configures a storage node daemon.
type NodeConfig struct {
	// ID is the node identity. Re-registering with a known id is a
	// rejoin and preserves file metadata on the coordinator.
	ID string `mapstructure:"id" yaml:"id"`

	// CoordinatorAddr is the coordinator's host:port.
	CoordinatorAddr string `mapstructure:"coordinator_addr" yaml:"coordinator_addr"`

	// ClientPort is the port serving client data sessions.
	ClientPort int `mapstructure:"client_port" validate:"omitempty,min=1,max=65535" yaml:"client_port"`

	// ControlPort is advertised in the registration frame. The control
	// channel itself rides the registration connection, so nothing binds
	// this port. 0 derives client_port + 1000.
	ControlPort int `mapstructure:"control_port" validate:"omitempty,min=0,max=65535" yaml:"control_port"`

	// DataDir holds storage/<id>/ and backups/<id>/.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	// AdvertiseIP overrides the UDP-probe address discovery.
	AdvertiseIP string `mapstructure:"advertise_ip" yaml:"advertise_ip"`

	// StreamDelay is the pacing between STREAM word frames.
	StreamDelay time.Duration `mapstructure:"stream_delay" yaml:"stream_delay"`
}

// ControlPortOrDefault returns the control port, deriving client_port+1000
// when unset.
func (n *NodeConfig) ControlPortOrDefault() int {
	if n.ControlPort != 0 {
		return n.ControlPort
	}
	return n.ClientPort + 1000
}

// Load loads configuration from file, environment, and defaults.
// An empty configPath searches the default location and falls back to
// pure defaults when nothing is found.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// SaveConfig writes cfg to path in YAML, creating parent directories.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetDefaultConfigPath returns $XDG_CONFIG_HOME/docufs/config.yaml
// (or ~/.config/docufs/config.yaml).
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docufs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "docufs")
}

// setupViper configures environment overrides and the config file search.
// Example override: DOCUFS_LOGGING_LEVEL=DEBUG.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("DOCUFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks parses "10s"-style strings into time.Duration.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(durationDecodeHook())
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}
