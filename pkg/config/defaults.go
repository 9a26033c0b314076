package config

import (
	"strings"
	"time"
)

// Wire-level defaults. The heartbeat numbers are part of the failure
// detector contract: one beat every 10 s, FAILED after 60 s of silence.
const (
	DefaultListenAddr        = "0.0.0.0:9090"
	DefaultHeartbeatInterval = 10 * time.Second
	DefaultHeartbeatGrace    = 60 * time.Second
	DefaultControlTimeout    = 15 * time.Second
	DefaultExecTimeout       = 30 * time.Second
	DefaultStreamDelay       = 100 * time.Millisecond
	DefaultMetricsAddr       = "127.0.0.1:9190"
)

// GetDefaultConfig returns a complete configuration with defaults applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills any unspecified fields with defaults. Zero values
// are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applyCoordinatorDefaults(&cfg.Coordinator)
	applyNodeDefaults(&cfg.Node)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultMetricsAddr
	}
}

func applyCoordinatorDefaults(cfg *CoordinatorConfig) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "."
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.HeartbeatGrace == 0 {
		cfg.HeartbeatGrace = DefaultHeartbeatGrace
	}
	if cfg.ControlTimeout == 0 {
		cfg.ControlTimeout = DefaultControlTimeout
	}
	if cfg.ExecTimeout == 0 {
		cfg.ExecTimeout = DefaultExecTimeout
	}
}

func applyNodeDefaults(cfg *NodeConfig) {
	if cfg.CoordinatorAddr == "" {
		cfg.CoordinatorAddr = "127.0.0.1:9090"
	}
	if cfg.ClientPort == 0 {
		cfg.ClientPort = 9101
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "."
	}
	if cfg.StreamDelay == 0 {
		cfg.StreamDelay = DefaultStreamDelay
	}
}
