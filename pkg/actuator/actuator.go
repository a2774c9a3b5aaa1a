package actuator

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openfroyo/vnflcm/pkg/engine"
	"github.com/openfroyo/vnflcm/pkg/transports/ssh"
)

// Actuator kinds accepted by New.
const (
	KindDryRun = "dry-run"
	KindHook   = "hook"
	KindSSH    = "ssh"
)

// Config selects and configures an actuator.
type Config struct {
	Kind string

	// Command is the hook command of the hook and ssh kinds.
	Command string

	// SSH and StagingDir are only used by the ssh kind.
	SSH        ssh.Config
	StagingDir string
}

// New returns the actuator of the configured kind. Actuators holding
// connections also implement io.Closer.
func New(cfg Config, logger zerolog.Logger) (engine.Actuator, error) {
	switch cfg.Kind {
	case KindDryRun, "":
		return NewDryRun(logger), nil
	case KindHook:
		return NewHook(HookConfig{Command: cfg.Command}, logger)
	case KindSSH:
		return NewRemote(RemoteConfig{
			SSH:        cfg.SSH,
			Command:    cfg.Command,
			StagingDir: cfg.StagingDir,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown actuator kind: %s", cfg.Kind)
	}
}
