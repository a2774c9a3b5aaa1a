package lifecycle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/vnflcm/pkg/actuator"
	"github.com/openfroyo/vnflcm/pkg/engine"
	"github.com/openfroyo/vnflcm/pkg/policy"
	"github.com/openfroyo/vnflcm/pkg/stores"
	"github.com/openfroyo/vnflcm/pkg/telemetry"
)

func meta(fqn string) engine.StatementMeta {
	return engine.StatementMeta{FQN: engine.MustParseFQN(fqn)}
}

func labBatch() engine.Batch {
	return engine.Batch{
		&engine.VNFStatement{StatementMeta: meta("/vnf1")},
		&engine.TenantStatement{
			StatementMeta: meta("/vnf1/t1"),
			Flavors:       []engine.Flavor{{Name: "small", VCPUs: 1, RAM: 1024, Disk: 10}},
		},
		&engine.NetworkStatement{StatementMeta: meta("/vnf1/t1/net1"), IPv4: &engine.IPConfig{CIDR: "10.1.0.0/24"}},
		&engine.InternalComponentStatement{
			StatementMeta: meta("/vnf1/t1/web"),
			Flavor:        engine.StringPtr("small"),
			Sizing:        &engine.Sizing{Min: 1, Max: 3, Size: 1},
			Interfaces:    []engine.Interface{{Name: "eth0", Network: "net1"}},
		},
		&engine.NodeStatement{StatementMeta: meta("/vnf1/t1/web/n1")},
	}
}

func newTestStore(t *testing.T) *stores.SQLiteStore {
	t.Helper()

	store, err := stores.NewSQLiteStore(stores.Config{Path: stores.MemoryPath})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { store.Close() })

	return store
}

func newTestManager(t *testing.T, mode policy.Mode) (*Manager, *stores.SQLiteStore) {
	t.Helper()

	store := newTestStore(t)
	pe, err := policy.NewEngine(zerolog.Nop(), mode)
	require.NoError(t, err)

	opts := engine.DefaultExecutorOptions()
	opts.BaseBackoff = time.Millisecond

	m := NewManager(store, Options{
		Policy:    pe,
		Telemetry: telemetry.NewNop(),
		Executor:  opts,
		Actor:     "tester",
		Logger:    zerolog.Nop(),
	})
	return m, store
}

func eventTypes(t *testing.T, store stores.Store, filter stores.EventFilter) []string {
	t.Helper()

	events, err := store.ListEvents(context.Background(), filter, 100, 0)
	require.NoError(t, err)

	var types []string
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func TestManager_Apply(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t, policy.ModeAdvisory)

	model, err := m.Apply(ctx, "lab", labBatch())
	require.NoError(t, err)
	assert.Equal(t, 1, model.Version)
	assert.True(t, model.Consistent)

	stored, err := m.Model(ctx, "lab", Latest)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Version)
	require.Len(t, stored.VNFs, 1)
	assert.Equal(t, "/vnf1", stored.VNFs[0].FQN.String())

	// a statement below a missing VNF rejects the whole batch
	_, err = m.Apply(ctx, "lab", engine.Batch{
		&engine.VNFStatement{StatementMeta: meta("/vnf2")},
		&engine.TenantStatement{StatementMeta: meta("/vnf9/t1")},
	})
	require.Error(t, err)
	assert.Equal(t, engine.ErrorClassContext, engine.ClassOf(err))

	latest, err := store.LatestModel(ctx, "lab")
	require.NoError(t, err)
	assert.Equal(t, 1, latest.Version)

	empty, err := m.Model(ctx, "other", Latest)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Version)
	assert.Equal(t, "other", empty.Context)

	_, err = m.Model(ctx, "lab", 7)
	assert.True(t, errors.Is(err, stores.ErrNotFound))

	assert.Equal(t,
		[]string{telemetry.EventTypeModelApplied, telemetry.EventTypeModelRejected},
		eventTypes(t, store, stores.EventFilter{}),
	)

	action := AuditModelRejected
	entries, err := store.ListAuditEntries(ctx, &action, nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "tester", entries[0].Actor)
	assert.Equal(t, "lab", *entries[0].Context)
}

func TestManager_Diff(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, policy.ModeAdvisory)

	_, err := m.Apply(ctx, "lab", labBatch())
	require.NoError(t, err)

	delta, err := m.Diff(ctx, "lab", 0, Latest)
	require.NoError(t, err)
	assert.Equal(t, 0, delta.From)
	assert.Equal(t, 1, delta.To)
	require.Len(t, delta.VNFs, 1)
	assert.Equal(t, engine.ActionAdd, delta.VNFs[0].Action)

	delta, err = m.Diff(ctx, "lab", Previous, Latest)
	require.NoError(t, err)
	assert.Equal(t, 0, delta.From)

	delta, err = m.Diff(ctx, "lab", Latest, Latest)
	require.NoError(t, err)
	require.Len(t, delta.VNFs, 1)
	assert.Equal(t, engine.ActionKeep, delta.VNFs[0].Action)
}

func TestManager_PlanAndExecute(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t, policy.ModeEnforcing)

	_, err := m.Apply(ctx, "lab", labBatch())
	require.NoError(t, err)

	planned, err := m.Plan(ctx, "lab", 0, Latest)
	require.NoError(t, err)
	require.NotEmpty(t, planned.Plan.ID)
	require.NotEmpty(t, planned.Plan.Steps)
	assert.Positive(t, planned.Plan.Summary.Create)
	require.NotNil(t, planned.Policy)
	assert.True(t, planned.Policy.Allowed)

	plan, verdict, err := m.LoadPlan(ctx, planned.Plan.ID)
	require.NoError(t, err)
	assert.Equal(t, planned.Plan.Steps, plan.Steps)
	assert.True(t, verdict.Allowed)

	dry := actuator.NewDryRun(zerolog.Nop())
	result, err := m.Execute(ctx, planned.Plan.ID, dry)
	require.NoError(t, err)
	assert.Equal(t, engine.RunStatusSucceeded, result.Status)
	assert.Equal(t, result.Summary.Total, result.Summary.Succeeded)
	assert.NotEmpty(t, dry.Requests())

	run, err := store.GetRun(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, stores.RunStatusSucceeded, run.Status)
	assert.NotNil(t, run.CompletedAt)
	assert.Contains(t, run.Summary, `"succeeded"`)

	runID := result.RunID
	types := eventTypes(t, store, stores.EventFilter{RunID: &runID})
	assert.Equal(t, telemetry.EventTypeRunStarted, types[0])
	assert.Equal(t, telemetry.EventTypeRunCompleted, types[len(types)-1])
	assert.Contains(t, types, telemetry.EventTypeStepCompleted)

	h, err := m.History(ctx, "lab", 10)
	require.NoError(t, err)
	assert.Len(t, h.Models, 1)
	assert.Len(t, h.Plans, 1)
	require.Len(t, h.Runs, 1)
	assert.Equal(t, result.RunID, h.Runs[0].ID)
	assert.NotEmpty(t, h.Audit)
}

func TestManager_ExecuteDenied(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t, policy.ModeEnforcing)

	_, err := m.Apply(ctx, "lab", labBatch())
	require.NoError(t, err)
	_, err = m.Apply(ctx, "lab", engine.Batch{
		&engine.VNFStatement{StatementMeta: engine.StatementMeta{
			FQN:   engine.MustParseFQN("/vnf1"),
			State: engine.StateUndefined,
		}},
	})
	require.NoError(t, err)

	planned, err := m.Plan(ctx, "lab", 1, 2)
	require.NoError(t, err)
	assert.False(t, planned.Policy.Allowed)
	assert.NotEmpty(t, planned.Policy.Violations)

	called := false
	_, err = m.Execute(ctx, planned.Plan.ID, engine.ActuatorFunc(func(context.Context, engine.ActuationRequest) error {
		called = true
		return nil
	}))
	assert.ErrorIs(t, err, ErrPolicyDenied)
	assert.False(t, called)

	planID := planned.Plan.ID
	runs, err := store.ListRuns(ctx, &planID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)

	policyType := telemetry.EventTypePolicyViolation
	assert.NotEmpty(t, eventTypes(t, store, stores.EventFilter{Type: &policyType}))
}

func TestManager_ExecuteFailure(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t, policy.ModeAdvisory)

	_, err := m.Apply(ctx, "lab", labBatch())
	require.NoError(t, err)
	planned, err := m.Plan(ctx, "lab", 0, Latest)
	require.NoError(t, err)

	failing := engine.ActuatorFunc(func(context.Context, engine.ActuationRequest) error {
		return engine.NewPermanentError("quota exceeded", nil)
	})
	result, err := m.Execute(ctx, planned.Plan.ID, failing)
	require.NoError(t, err)
	assert.Equal(t, engine.RunStatusFailed, result.Status)
	assert.Positive(t, result.Summary.Failed)

	run, err := store.GetRun(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, stores.RunStatusFailed, run.Status)

	failed := telemetry.EventTypeStepFailed
	assert.NotEmpty(t, eventTypes(t, store, stores.EventFilter{Type: &failed}))

	_, err = m.Execute(ctx, "no-such-plan", failing)
	assert.ErrorIs(t, err, stores.ErrNotFound)
}

func TestLoadBatch(t *testing.T) {
	ctx := context.Background()

	batch, err := LoadBatch(ctx, "testdata/lab.yaml")
	require.NoError(t, err)
	assert.Len(t, batch, 7)

	_, err = LoadBatch(ctx, "../descriptor/testdata/invalid.yaml")
	require.Error(t, err)
	assert.True(t, engine.IsValidationError(err))

	_, err = LoadBatch(ctx, "testdata/missing.yaml")
	assert.True(t, engine.IsValidationError(err))
}

func TestWatcher(t *testing.T) {
	content, err := os.ReadFile("testdata/lab.yaml")
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "lab.yaml")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	m, _ := newTestManager(t, policy.ModeAdvisory)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reports := make(chan Report, 8)
	w := NewWatcher(m, "lab", []string{path}, zerolog.Nop()).
		WithDebounce(100 * time.Millisecond).
		OnApply(func(r Report) { reports <- r })

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	next := func() Report {
		select {
		case r := <-reports:
			return r
		case <-time.After(5 * time.Second):
			t.Fatal("no apply reported")
			return Report{}
		}
	}

	first := next()
	require.NoError(t, first.Err)
	assert.Equal(t, 1, first.Model.Version)

	// unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path, content, 0o644))

	second := next()
	require.NoError(t, second.Err)
	assert.Equal(t, 2, second.Model.Version)

	require.NoError(t, os.WriteFile(path, []byte("topology_template: ["), 0o644))
	third := next()
	assert.Error(t, third.Err)
	assert.Nil(t, third.Model)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
