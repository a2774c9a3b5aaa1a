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
	"github.com/openfroyo/vnflcm/pkg/transports/ssh/sshtest"
)

func newRemote(t *testing.T, server *sshtest.Server, command string) (*Remote, string) {
	t.Helper()

	staging := t.TempDir()
	r, err := NewRemote(RemoteConfig{
		SSH: ssh.Config{
			Host:              server.Host(),
			Port:              server.Port(),
			User:              sshtest.User,
			AuthMethod:        ssh.AuthMethodPassword,
			Password:          sshtest.Password,
			KnownHostsPath:    server.KnownHosts(t),
			ConnectionTimeout: 5 * time.Second,
		},
		Command:    command,
		StagingDir: staging,
		Env:        map[string]string{"EXTRA": "it's"},
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	return r, staging
}

func TestRemote_PassesStep(t *testing.T) {
	server := sshtest.NewServer(t)
	out := filepath.Join(t.TempDir(), "out")

	r, staging := newRemote(t, server,
		`printf '%s|%s|%s|%s|%s\n' "$VNFLCM_CONTEXT" "$VNFLCM_RUN_ID" "$VNFLCM_STEP_FQN" "$VNFLCM_STEP_OPERATION" "$EXTRA" > `+out+
			`; cat >> `+out+`; echo >> `+out+`; cat "$VNFLCM_ENTITY_FILE" >> `+out)

	require.NoError(t, r.Actuate(context.Background(), nodeRequest()))

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(string(content), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "lab|run-1|/vnf1/t1/web/n1|create|it's", lines[0])
	assert.Contains(t, lines[1], `"flavor":"small"`)
	assert.Equal(t, lines[1], lines[2])

	assert.NoFileExists(t, filepath.Join(staging, "run-1", "node-vnf1_t1_web_n1.json"))

	cmds := server.Commands()
	require.Len(t, cmds, 1)
	assert.True(t, strings.HasPrefix(cmds[0], "export EXTRA='it'\\''s' VNFLCM_CONTEXT='lab'"))
}

func TestRemote_Failures(t *testing.T) {
	server := sshtest.NewServer(t)

	tests := []struct {
		name          string
		command       string
		wantTransient bool
		wantMsg       string
	}{
		{
			name:          "tempfail",
			command:       "echo 'quota busy' >&2; exit 75",
			wantTransient: true,
			wantMsg:       "remote hook exited with status 75: quota busy",
		},
		{
			name:    "permanent",
			command: "exit 3",
			wantMsg: "remote hook exited with status 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newRemote(t, server, tt.command)

			err := r.Actuate(context.Background(), nodeRequest())
			require.Error(t, err)
			assert.Equal(t, tt.wantTransient, engine.IsRetryable(err))
			assert.Equal(t, engine.ErrCodeActuatorFailed, engine.CodeOf(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Contains(t, err.Error(), "resource=/vnf1/t1/web/n1")
		})
	}
}

func TestRemote_Unreachable(t *testing.T) {
	server := sshtest.NewServer(t)
	r, _ := newRemote(t, server, "true")
	server.Close()

	err := r.Actuate(context.Background(), nodeRequest())
	require.Error(t, err)
	assert.True(t, engine.IsRetryable(err))
	assert.Contains(t, err.Error(), "failed to stage entity")
}

func TestRemote_Interrupted(t *testing.T) {
	server := sshtest.NewServer(t)
	r, _ := newRemote(t, server, "sleep 5")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := r.Actuate(ctx, nodeRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, `'plain'`, shellQuote("plain"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
	assert.Equal(t, `''`, shellQuote(""))
}
