package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration against the struct validation tags and
// a few cross-field rules the tags cannot express.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			msgs := make([]string, 0, len(errs))
			for _, fe := range errs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)",
					fieldPath(fe), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration:\n  %s", strings.Join(msgs, "\n  "))
		}
		return err
	}

	if cfg.Coordinator.HeartbeatGrace < cfg.Coordinator.HeartbeatInterval {
		return fmt.Errorf("coordinator.heartbeat_grace (%s) must be >= coordinator.heartbeat_interval (%s)",
			cfg.Coordinator.HeartbeatGrace, cfg.Coordinator.HeartbeatInterval)
	}
	if cfg.Node.ControlPort != 0 && cfg.Node.ControlPort == cfg.Node.ClientPort {
		return fmt.Errorf("node.control_port must differ from node.client_port")
	}
	return nil
}

// ValidateNode checks the fields a storage node actually needs at startup.
// The shared config file may legitimately leave them empty on a
// coordinator-only host.
func ValidateNode(cfg *NodeConfig) error {
	if cfg.ID == "" {
		return fmt.Errorf("node.id is required")
	}
	if strings.ContainsAny(cfg.ID, "/\\ ") {
		return fmt.Errorf("node.id %q must not contain path separators or spaces", cfg.ID)
	}
	if cfg.CoordinatorAddr == "" {
		return fmt.Errorf("node.coordinator_addr is required")
	}
	if cfg.ClientPort <= 0 || cfg.ClientPort > 65535 {
		return fmt.Errorf("node.client_port %d out of range", cfg.ClientPort)
	}
	return nil
}

func fieldPath(fe validator.FieldError) string {
	// Trim the root struct name: "Config.Coordinator.ListenAddr" reads
	// better as "coordinator.listen_addr"-ish namespace.
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}
