package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dbPolicy = `# Databases keep their nodes.
# Checked on every plan.
# severity: error
package custom.db

import rego.v1

# rule comment
deny contains msg if {
	some step in input.plan.steps
	step.operation == "delete"
	msg := step.fqn
}
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadFromFile_Rego(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	path := filepath.Join(t.TempDir(), "db-nodes.rego")
	writeFile(t, path, dbPolicy)

	policy, err := loader.loadFromFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "db-nodes", policy.Name)
	assert.Equal(t, "Databases keep their nodes. Checked on every plan.", policy.Description)
	assert.Equal(t, SeverityError, policy.Severity)
	assert.Equal(t, dbPolicy, policy.Rego)
	assert.Equal(t, path, policy.Source)
	assert.True(t, policy.Enabled)
	assert.False(t, policy.Builtin)
}

func TestLoadFromFile_JSON(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	dir := t.TempDir()

	path := filepath.Join(dir, "naming.json")
	writeFile(t, path, `{"description": "names", "rego": "package naming\n"}`)

	policy, err := loader.loadFromFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "naming", policy.Name)
	assert.Equal(t, SeverityWarning, policy.Severity)
	assert.True(t, policy.Enabled)

	bad := filepath.Join(dir, "bad.json")
	writeFile(t, bad, `{"severity": "fatal"}`)
	_, err = loader.loadFromFile(context.Background(), bad)
	assert.Error(t, err)

	_, err = loader.loadFromFile(context.Background(), filepath.Join(dir, "absent.rego"))
	assert.Error(t, err)
}

func TestLoadFromPaths(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "a.rego"), "package a\n")
	writeFile(t, filepath.Join(dir, "nested", "b.rego"), "package b\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	writeFile(t, filepath.Join(dir, "broken.json"), "{")

	policies, err := loader.LoadFromPaths(context.Background(), []string{dir})
	require.NoError(t, err)

	var names []string
	for _, p := range policies {
		names = append(names, p.Name)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, names)

	_, err = loader.LoadFromPaths(context.Background(), []string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestEngine_LoadPolicies(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "db-nodes.rego"), dbPolicy)

	eng := newTestEngine(t, ModeEnforcing)
	require.NoError(t, eng.LoadPolicies(ctx, []string{dir}))

	p, err := eng.GetPolicy("db-nodes")
	require.NoError(t, err)
	assert.Equal(t, SeverityError, p.Severity)
	assert.Len(t, eng.ListPolicies(), 5)
}

func TestLoader_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.rego"), "package a\n")

	loader := NewLoader(zerolog.Nop()).WithReloadDelay(20 * time.Millisecond)
	defer loader.StopWatching()

	reloaded := make(chan []Policy, 4)
	require.NoError(t, loader.Watch(ctx, []string{dir}, func(policies []Policy) error {
		reloaded <- policies
		return nil
	}))

	writeFile(t, filepath.Join(dir, "b.rego"), "package b\n")

	select {
	case policies := <-reloaded:
		assert.Len(t, policies, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("policies were not reloaded")
	}
}
