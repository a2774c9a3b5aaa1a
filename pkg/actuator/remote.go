package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/vnflcm/pkg/engine"
	"github.com/openfroyo/vnflcm/pkg/transports/ssh"
)

// DefaultStagingDir is the remote directory entity payloads are staged in.
const DefaultStagingDir = "/tmp/vnflcm"

// RemoteConfig configures a Remote actuator.
type RemoteConfig struct {
	SSH ssh.Config

	// Command is run through the remote login shell.
	Command string

	// StagingDir defaults to DefaultStagingDir.
	StagingDir string

	// Env is exported before Command runs.
	Env map[string]string
}

// Remote actuates steps by running a command on an actuation host over
// SSH. The entity is staged through SFTP and also written to the command's
// standard input.
type Remote struct {
	cfg    RemoteConfig
	client *ssh.Client
	logger zerolog.Logger
}

// NewRemote creates a remote actuator. The connection is opened by the
// first step.
func NewRemote(cfg RemoteConfig, logger zerolog.Logger) (*Remote, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("remote command is required")
	}
	if cfg.StagingDir == "" {
		cfg.StagingDir = DefaultStagingDir
	}

	client, err := ssh.NewClient(cfg.SSH, logger)
	if err != nil {
		return nil, err
	}

	return &Remote{
		cfg:    cfg,
		client: client,
		logger: logger.With().Str("component", "actuator").Str("actuator", KindSSH).Logger(),
	}, nil
}

// Actuate implements engine.Actuator.
func (r *Remote) Actuate(ctx context.Context, req engine.ActuationRequest) error {
	fqn := req.Step.FQN.String()
	op := string(req.Step.Operation)

	payload, err := json.Marshal(req.Entity)
	if err != nil {
		return engine.NewPermanentError("failed to encode entity", err).
			WithResource(fqn).WithOperation(op).WithCode(engine.ErrCodeActuatorFailed)
	}

	staged := r.stagingPath(req)
	if _, err := r.client.Upload(ctx, bytes.NewReader(payload), staged, 0o600); err != nil {
		return r.transportError(ctx, "failed to stage entity", err, fqn, op)
	}
	defer func() {
		if err := r.client.Remove(context.WithoutCancel(ctx), staged); err != nil {
			r.logger.Warn().Err(err).Str("staged", staged).Msg("Failed to remove staged entity")
		}
	}()

	start := time.Now()
	res, err := r.client.Run(ctx, r.command(req, staged), bytes.NewReader(payload))
	if err != nil {
		return r.transportError(ctx, "failed to run remote hook", err, fqn, op)
	}

	r.logger.Debug().
		Str("fqn", fqn).
		Str("operation", op).
		Int("exit_code", res.ExitCode).
		Dur("duration", time.Since(start)).
		Str("stdout", strings.TrimSpace(res.Stdout)).
		Msg("Remote hook finished")

	if res.ExitCode == 0 {
		return nil
	}

	msg := fmt.Sprintf("remote hook exited with status %d", res.ExitCode)
	if tail := tailOf(res.Stderr); tail != "" {
		msg += ": " + tail
	}

	var e *engine.EngineError
	if res.ExitCode == ExitTempFail {
		e = engine.NewTransientError(msg, nil)
	} else {
		e = engine.NewPermanentError(msg, nil)
	}
	return e.WithResource(fqn).
		WithOperation(op).
		WithCode(engine.ErrCodeActuatorFailed).
		WithDetail("exit_code", res.ExitCode).
		WithDetail("host", r.cfg.SSH.Host)
}

// Close closes the SSH connection.
func (r *Remote) Close() error {
	return r.client.Close()
}

// command exports the step variables and runs the configured command.
func (r *Remote) command(req engine.ActuationRequest, staged string) string {
	var b strings.Builder
	b.WriteString("export")
	for _, kv := range stepEnv(req, r.cfg.Env) {
		k, v, _ := strings.Cut(kv, "=")
		b.WriteString(" " + k + "=" + shellQuote(v))
	}
	b.WriteString(" VNFLCM_ENTITY_FILE=" + shellQuote(staged))
	b.WriteString("; " + r.cfg.Command)
	return b.String()
}

// stagingPath returns the remote payload path of the step, unique within
// its run.
func (r *Remote) stagingPath(req engine.ActuationRequest) string {
	name := strings.ReplaceAll(strings.Trim(req.Step.FQN.String(), "/"), "/", "_")
	file := fmt.Sprintf("%s-%s.json", strings.ToLower(string(req.Step.Type)), name)
	return path.Join(r.cfg.StagingDir, req.RunID, file)
}

func (r *Remote) transportError(ctx context.Context, msg string, err error, fqn, op string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("remote hook interrupted: %w", ctxErr)
	}

	var e *engine.EngineError
	if ssh.IsTemporary(err) {
		e = engine.NewTransientError(msg, err)
	} else {
		e = engine.NewPermanentError(msg, err)
	}
	return e.WithResource(fqn).
		WithOperation(op).
		WithCode(engine.ErrCodeActuatorFailed).
		WithDetail("host", r.cfg.SSH.Host)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
