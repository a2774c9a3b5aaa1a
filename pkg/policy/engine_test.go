package policy

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/vnflcm/pkg/engine"
)

func newTestEngine(t *testing.T, mode Mode) *Engine {
	t.Helper()
	eng, err := NewEngine(zerolog.Nop(), mode)
	require.NoError(t, err)
	return eng
}

func fqn(s string) engine.FQN {
	return engine.MustParseFQN(s)
}

func node(path string, action engine.Action) *engine.DeltaEntry {
	return &engine.DeltaEntry{Type: engine.EntityNode, FQN: fqn(path), Action: action}
}

// scaleDelta builds a delta for /vnf1/t1/web with the given node actions.
func scaleDelta(componentAction engine.Action, nodes ...*engine.DeltaEntry) *engine.Delta {
	return &engine.Delta{
		Context: "lab",
		VNFs: []*engine.DeltaEntry{{
			Type:   engine.EntityVNF,
			FQN:    fqn("/vnf1"),
			Action: engine.ActionKeep,
			Tenants: []*engine.DeltaEntry{{
				Type:   engine.EntityTenant,
				FQN:    fqn("/vnf1/t1"),
				Action: engine.ActionKeep,
				Components: []*engine.DeltaEntry{{
					Type:   engine.EntityInternalComponent,
					FQN:    fqn("/vnf1/t1/web"),
					Action: componentAction,
					Nodes:  nodes,
				}},
			}},
		}},
	}
}

func TestNewEngine(t *testing.T) {
	eng := newTestEngine(t, "")

	assert.Equal(t, ModeAdvisory, eng.Mode())

	var names []string
	for _, p := range eng.ListPolicies() {
		names = append(names, p.Name)
		assert.True(t, p.Builtin)
		assert.True(t, p.Enabled)
	}
	assert.Equal(t, []string{
		"consistent-model",
		"node-scale-down",
		"routed-network-removal",
		"vnf-removal",
	}, names)
}

func TestEvaluate_ConsistentModel(t *testing.T) {
	ctx := context.Background()

	model := engine.NewModel("lab")
	model.Version = 3
	model.Consistent = false
	input := &Input{Model: model, Plan: &engine.ActionPlan{Context: "lab", Steps: []engine.Step{}}}

	advisory, err := newTestEngine(t, ModeAdvisory).Evaluate(ctx, input)
	require.NoError(t, err)
	assert.True(t, advisory.Allowed)
	require.Len(t, advisory.Violations, 1)
	assert.Equal(t, Violation{
		Policy:   "consistent-model",
		Resource: "lab",
		Message:  "model lab version 3 is inconsistent",
		Severity: SeverityError,
	}, advisory.Violations[0])

	enforcing, err := newTestEngine(t, ModeEnforcing).Evaluate(ctx, input)
	require.NoError(t, err)
	assert.False(t, enforcing.Allowed)
	assert.Equal(t, ModeEnforcing, enforcing.Mode)

	model.Consistent = true
	clean, err := newTestEngine(t, ModeEnforcing).Evaluate(ctx, input)
	require.NoError(t, err)
	assert.True(t, clean.Allowed)
	assert.Empty(t, clean.All())
	assert.Len(t, clean.EvaluatedPolicies, 4)
}

func TestEvaluate_VNFRemoval(t *testing.T) {
	eng := newTestEngine(t, ModeEnforcing)

	delta := &engine.Delta{
		Context: "lab",
		VNFs: []*engine.DeltaEntry{
			{Type: engine.EntityVNF, FQN: fqn("/vnf1"), Action: engine.ActionRemove},
			{Type: engine.EntityVNF, FQN: fqn("/vnf2"), Action: engine.ActionKeep},
		},
	}

	result, err := eng.Evaluate(context.Background(), &Input{Delta: delta})
	require.NoError(t, err)

	assert.False(t, result.Allowed)
	assert.Equal(t, []Violation{{
		Policy:   "vnf-removal",
		Resource: "/vnf1",
		Message:  "VNF /vnf1 is removed",
		Severity: SeverityError,
	}}, result.Violations)
}

func TestEvaluate_RoutedNetworkRemoval(t *testing.T) {
	eng := newTestEngine(t, ModeEnforcing)

	previous := engine.NewModel("lab")
	previous.VNFs = []*engine.VNF{{
		FQN:  fqn("/vnf1"),
		Type: engine.EntityVNF,
		Tenants: []*engine.Tenant{{
			FQN:  fqn("/vnf1/t1"),
			Type: engine.EntityTenant,
			Networks: []*engine.Network{
				{FQN: fqn("/vnf1/t1/transit"), Type: engine.EntityNetwork, Target: "65000:10"},
				{FQN: fqn("/vnf1/t1/local"), Type: engine.EntityNetwork},
			},
		}},
	}}

	plan := &engine.ActionPlan{
		Context: "lab",
		Steps: []engine.Step{
			{Type: engine.EntityNetwork, FQN: fqn("/vnf1/t1/transit"), Action: engine.ActionRemove, Operation: engine.OperationDelete},
			{Type: engine.EntityNetwork, FQN: fqn("/vnf1/t1/local"), Action: engine.ActionRemove, Operation: engine.OperationDelete},
		},
	}

	result, err := eng.Evaluate(context.Background(), &Input{Plan: plan, Previous: previous})
	require.NoError(t, err)

	assert.True(t, result.Allowed, "warnings do not block")
	assert.Empty(t, result.Violations)
	assert.Equal(t, []Violation{{
		Policy:   "routed-network-removal",
		Resource: "/vnf1/t1/transit",
		Message:  "network /vnf1/t1/transit with a route target is deleted",
		Severity: SeverityWarning,
	}}, result.Warnings)
}

func TestEvaluate_NodeScaleDown(t *testing.T) {
	eng := newTestEngine(t, ModeEnforcing)

	tests := []struct {
		name    string
		delta   *engine.Delta
		wantMsg string
	}{
		{
			name: "two of three removed",
			delta: scaleDelta(engine.ActionKeep,
				node("/vnf1/t1/web/n1", engine.ActionKeep),
				node("/vnf1/t1/web/n2", engine.ActionRemove),
				node("/vnf1/t1/web/n3", engine.ActionRemove),
			),
			wantMsg: "component /vnf1/t1/web loses 2 of 3 nodes",
		},
		{
			name: "changed component",
			delta: scaleDelta(engine.ActionChange,
				node("/vnf1/t1/web/n1", engine.ActionRemove),
				node("/vnf1/t1/web/n2", engine.ActionAdd),
			),
			wantMsg: "component /vnf1/t1/web loses 1 of 1 nodes",
		},
		{
			name: "half removed",
			delta: scaleDelta(engine.ActionKeep,
				node("/vnf1/t1/web/n1", engine.ActionKeep),
				node("/vnf1/t1/web/n2", engine.ActionRemove),
			),
		},
		{
			name: "removed component",
			delta: scaleDelta(engine.ActionRemove,
				node("/vnf1/t1/web/n1", engine.ActionRemove),
			),
		},
		{
			name:  "no nodes",
			delta: scaleDelta(engine.ActionKeep),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := eng.Evaluate(context.Background(), &Input{Delta: tt.delta})
			require.NoError(t, err)
			assert.True(t, result.Allowed)

			if tt.wantMsg == "" {
				assert.Empty(t, result.Warnings)
				return
			}
			require.Len(t, result.Warnings, 1)
			assert.Equal(t, "node-scale-down", result.Warnings[0].Policy)
			assert.Equal(t, tt.wantMsg, result.Warnings[0].Message)
		})
	}
}

func TestEngine_CustomPolicies(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, ModeEnforcing)

	err := eng.AddPolicy(ctx, Policy{
		Name:     "no-db-deletes",
		Severity: SeverityCritical,
		Enabled:  true,
		Rego: `package custom.db

import rego.v1

deny contains msg if {
	some step in input.plan.steps
	step.operation == "delete"
	contains(step.fqn, "/db")
	msg := sprintf("%s is deleted", [step.fqn])
}`,
	})
	require.NoError(t, err)

	input := &Input{Plan: &engine.ActionPlan{Steps: []engine.Step{
		{Type: engine.EntityNode, FQN: fqn("/vnf1/t1/db/n1"), Action: engine.ActionRemove, Operation: engine.OperationDelete},
	}}}

	result, err := eng.Evaluate(ctx, input)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, []Violation{{
		Policy:   "no-db-deletes",
		Message:  "/vnf1/t1/db/n1 is deleted",
		Severity: SeverityCritical,
	}}, result.Violations)

	require.NoError(t, eng.DisablePolicy("no-db-deletes"))
	result, err = eng.Evaluate(ctx, input)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.NotContains(t, result.EvaluatedPolicies, "no-db-deletes")

	require.NoError(t, eng.EnablePolicy("no-db-deletes"))
	eng.SetMode(ModeAdvisory)
	result, err = eng.Evaluate(ctx, input)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Len(t, result.Violations, 1)

	// Reload drops custom policies but keeps the built-ins
	require.NoError(t, eng.Reload(ctx, nil))
	_, err = eng.GetPolicy("no-db-deletes")
	assert.Error(t, err)
	assert.Len(t, eng.ListPolicies(), 4)

	assert.Error(t, eng.EnablePolicy("missing"))
}

func TestEngine_CompileErrors(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, ModeAdvisory)

	tests := []struct {
		name   string
		policy Policy
	}{
		{name: "syntax", policy: Policy{Name: "broken", Rego: "package x\n\ndeny contains if {"}},
		{name: "empty", policy: Policy{Name: "empty", Rego: ""}},
		{name: "bad severity", policy: Policy{Name: "sev", Severity: "fatal", Rego: "package x\n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, eng.AddPolicy(ctx, tt.policy))
		})
	}

	// a failed reload leaves the engine untouched
	require.NoError(t, eng.AddPolicy(ctx, Policy{Name: "keep", Enabled: true, Rego: "package keep\n\nimport rego.v1\n\ndeny contains \"x\" if { false }\n"}))
	assert.Error(t, eng.Reload(ctx, []Policy{{Name: "broken", Rego: "package"}}))
	_, err := eng.GetPolicy("keep")
	assert.NoError(t, err)

	_, err = eng.Evaluate(ctx, nil)
	assert.Error(t, err)
}
