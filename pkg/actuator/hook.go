package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/vnflcm/pkg/engine"
)

// ExitTempFail is the hook exit status reporting a transient failure.
const ExitTempFail = 75

const (
	// maxStderr bounds the hook output quoted in errors.
	maxStderr = 512

	// waitDelay bounds how long a killed hook may hold its output open.
	waitDelay = 2 * time.Second
)

// HookConfig configures a Hook.
type HookConfig struct {
	// Command is run through Shell when Args is empty, otherwise it is
	// executed directly with Args.
	Command string
	Args    []string

	// Shell defaults to /bin/sh.
	Shell string

	// WorkDir is the working directory of the hook.
	WorkDir string

	// Env is added to the inherited environment.
	Env map[string]string
}

// Hook actuates steps by running an external command.
type Hook struct {
	cfg    HookConfig
	logger zerolog.Logger
}

// NewHook creates a hook actuator.
func NewHook(cfg HookConfig, logger zerolog.Logger) (*Hook, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("hook command is required")
	}
	if cfg.Shell == "" {
		cfg.Shell = "/bin/sh"
	}

	return &Hook{
		cfg:    cfg,
		logger: logger.With().Str("component", "actuator").Str("actuator", KindHook).Logger(),
	}, nil
}

// Actuate implements engine.Actuator.
func (h *Hook) Actuate(ctx context.Context, req engine.ActuationRequest) error {
	fqn := req.Step.FQN.String()
	op := string(req.Step.Operation)

	stdin, err := json.Marshal(req.Entity)
	if err != nil {
		return engine.NewPermanentError("failed to encode entity", err).
			WithResource(fqn).WithOperation(op).WithCode(engine.ErrCodeActuatorFailed)
	}

	var cmd *exec.Cmd
	if len(h.cfg.Args) > 0 {
		cmd = exec.CommandContext(ctx, h.cfg.Command, h.cfg.Args...)
	} else {
		cmd = exec.CommandContext(ctx, h.cfg.Shell, "-c", h.cfg.Command)
	}
	if h.cfg.WorkDir != "" {
		cmd.Dir = h.cfg.WorkDir
	}
	cmd.Env = append(os.Environ(), stepEnv(req, h.cfg.Env)...)
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	duration := time.Since(start)

	h.logger.Debug().
		Str("fqn", fqn).
		Str("operation", op).
		Dur("duration", duration).
		Str("stdout", strings.TrimSpace(stdout.String())).
		Msg("Hook finished")

	if err == nil {
		return nil
	}

	// the context error wins over the kill it caused
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("hook interrupted: %w", ctxErr)
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return engine.NewPermanentError("failed to execute hook", err).
			WithResource(fqn).WithOperation(op).WithCode(engine.ErrCodeActuatorFailed)
	}

	msg := fmt.Sprintf("hook exited with status %d", exitErr.ExitCode())
	if tail := tailOf(stderr.String()); tail != "" {
		msg += ": " + tail
	}

	var e *engine.EngineError
	if exitErr.ExitCode() == ExitTempFail {
		e = engine.NewTransientError(msg, err)
	} else {
		e = engine.NewPermanentError(msg, err)
	}
	return e.WithResource(fqn).
		WithOperation(op).
		WithCode(engine.ErrCodeActuatorFailed).
		WithDetail("exit_code", exitErr.ExitCode())
}

// stepEnv returns extra, sorted by key, followed by the step variables.
func stepEnv(req engine.ActuationRequest, extra map[string]string) []string {
	env := make([]string, 0, len(extra)+6)
	for _, k := range slices.Sorted(maps.Keys(extra)) {
		env = append(env, k+"="+extra[k])
	}
	return append(env,
		"VNFLCM_CONTEXT="+req.Context,
		"VNFLCM_RUN_ID="+req.RunID,
		"VNFLCM_STEP_TYPE="+string(req.Step.Type),
		"VNFLCM_STEP_FQN="+req.Step.FQN.String(),
		"VNFLCM_STEP_ACTION="+string(req.Step.Action),
		"VNFLCM_STEP_OPERATION="+string(req.Step.Operation),
	)
}

func tailOf(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		s = "..." + s[len(s)-maxStderr:]
	}
	return s
}
