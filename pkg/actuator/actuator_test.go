package actuator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/vnflcm/pkg/engine"
	"github.com/openfroyo/vnflcm/pkg/transports/ssh"
)

func nodeRequest() engine.ActuationRequest {
	return engine.ActuationRequest{
		RunID:   "run-1",
		Context: "lab",
		Step: engine.Step{
			Type:      engine.EntityNode,
			FQN:       engine.MustParseFQN("/vnf1/t1/web/n1"),
			Action:    engine.ActionAdd,
			Operation: engine.OperationCreate,
		},
		Entity: &engine.Node{
			FQN:    engine.MustParseFQN("/vnf1/t1/web/n1"),
			Type:   engine.EntityNode,
			Name:   "n1",
			Flavor: "small",
			State:  engine.StateDefined,
		},
	}
}

func TestNew(t *testing.T) {
	a, err := New(Config{Kind: KindDryRun}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &DryRun{}, a)

	a, err = New(Config{Kind: KindHook, Command: "true"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Hook{}, a)

	_, err = New(Config{Kind: KindHook}, zerolog.Nop())
	assert.Error(t, err)

	a, err = New(Config{
		Kind:    KindSSH,
		Command: "true",
		SSH:     ssh.Config{Host: "vnf-host", User: "vnf", AuthMethod: ssh.AuthMethodPassword, Password: "x", InsecureIgnoreHostKey: true},
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Remote{}, a)

	_, err = New(Config{Kind: KindSSH, Command: "true"}, zerolog.Nop())
	assert.ErrorContains(t, err, "host is required")

	_, err = New(Config{Kind: "cloud"}, zerolog.Nop())
	assert.EqualError(t, err, "unknown actuator kind: cloud")
}

func TestDryRun(t *testing.T) {
	d := NewDryRun(zerolog.Nop())

	require.NoError(t, d.Actuate(context.Background(), nodeRequest()))
	reqs := d.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/vnf1/t1/web/n1", reqs[0].Step.FQN.String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Actuate(ctx, nodeRequest()), context.Canceled)
	assert.Len(t, d.Requests(), 1)
}

func TestHook_PassesStep(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")

	h, err := NewHook(HookConfig{
		Command: `printf '%s|%s|%s|%s|%s|%s\n' "$VNFLCM_CONTEXT" "$VNFLCM_RUN_ID" "$VNFLCM_STEP_TYPE" "$VNFLCM_STEP_FQN" "$VNFLCM_STEP_OPERATION" "$EXTRA" > out; cat >> out`,
		WorkDir: dir,
		Env:     map[string]string{"EXTRA": "x"},
	}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, h.Actuate(context.Background(), nodeRequest()))

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.SplitN(string(content), "\n", 2)
	assert.Equal(t, "lab|run-1|Node|/vnf1/t1/web/n1|create|x", lines[0])
	assert.Contains(t, lines[1], `"fqn":"/vnf1/t1/web/n1"`)
	assert.Contains(t, lines[1], `"flavor":"small"`)
}

func TestHook_NilEntity(t *testing.T) {
	dir := t.TempDir()
	h, err := NewHook(HookConfig{Command: "cat > stdin", WorkDir: dir}, zerolog.Nop())
	require.NoError(t, err)

	req := nodeRequest()
	req.Entity = nil
	require.NoError(t, h.Actuate(context.Background(), req))

	content, err := os.ReadFile(filepath.Join(dir, "stdin"))
	require.NoError(t, err)
	assert.Equal(t, "null", string(content))
}

func TestHook_Failures(t *testing.T) {
	tests := []struct {
		name          string
		cfg           HookConfig
		wantTransient bool
		wantMsg       string
	}{
		{
			name:          "tempfail",
			cfg:           HookConfig{Command: "echo 'quota busy' >&2; exit 75"},
			wantTransient: true,
			wantMsg:       "hook exited with status 75: quota busy",
		},
		{
			name:    "permanent",
			cfg:     HookConfig{Command: "exit 3"},
			wantMsg: "hook exited with status 3",
		},
		{
			name:    "missing binary",
			cfg:     HookConfig{Command: "/nonexistent/hook", Args: []string{"run"}},
			wantMsg: "failed to execute hook",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHook(tt.cfg, zerolog.Nop())
			require.NoError(t, err)

			err = h.Actuate(context.Background(), nodeRequest())
			require.Error(t, err)
			assert.Equal(t, tt.wantTransient, engine.IsRetryable(err))
			assert.Equal(t, engine.ErrCodeActuatorFailed, engine.CodeOf(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Contains(t, err.Error(), "resource=/vnf1/t1/web/n1")
		})
	}
}

func TestHook_Timeout(t *testing.T) {
	h, err := NewHook(HookConfig{Command: "exec sleep 5"}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = h.Actuate(ctx, nodeRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
