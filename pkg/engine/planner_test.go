package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(t EntityType, fqn string, action Action, children ...*DeltaEntry) *DeltaEntry {
	e := &DeltaEntry{Type: t, FQN: MustParseFQN(fqn), Action: action}
	for _, c := range children {
		switch c.Type {
		case EntityTenant:
			e.Tenants = append(e.Tenants, c)
		case EntityNetwork:
			e.Networks = append(e.Networks, c)
		case EntityInternalComponent:
			e.Components = append(e.Components, c)
		case EntityNode:
			e.Nodes = append(e.Nodes, c)
		}
	}
	return e
}

func stepFQNs(plan *ActionPlan) []string {
	out := make([]string, len(plan.Steps))
	for i, s := range plan.Steps {
		out[i] = s.FQN.String()
	}
	return out
}

func TestPlan_RemoveBeforeAdd(t *testing.T) {
	delta := &Delta{
		Context: "test",
		VNFs: []*DeltaEntry{
			entry(EntityVNF, "/v", ActionKeep,
				entry(EntityTenant, "/v/t", ActionKeep,
					entry(EntityInternalComponent, "/v/t/c", ActionRemove,
						entry(EntityNode, "/v/t/c/n1", ActionRemove),
						entry(EntityNode, "/v/t/c/n2", ActionRemove),
					),
					entry(EntityInternalComponent, "/v/t/c2", ActionAdd,
						entry(EntityNode, "/v/t/c2/n3", ActionAdd),
						entry(EntityNode, "/v/t/c2/n4", ActionAdd),
					),
				),
			),
		},
	}

	plan := Plan(delta)

	assert.Equal(t, []string{
		"/v/t/c/n1", "/v/t/c/n2", "/v/t/c",
		"/v/t/c2", "/v/t/c2/n3", "/v/t/c2/n4",
	}, stepFQNs(plan))
	assert.Equal(t, PlanSummary{Create: 3, Delete: 3}, plan.Summary)
	require.NoError(t, ValidatePlan(plan))
}

func TestPlan_ComponentPasses(t *testing.T) {
	delta := &Delta{
		VNFs: []*DeltaEntry{
			entry(EntityVNF, "/v", ActionKeep,
				entry(EntityTenant, "/v/t", ActionChange,
					entry(EntityInternalComponent, "/v/t/add", ActionAdd,
						entry(EntityNode, "/v/t/add/n1", ActionAdd),
					),
					entry(EntityInternalComponent, "/v/t/chg", ActionChange,
						entry(EntityNode, "/v/t/chg/n1", ActionKeep),
						entry(EntityNode, "/v/t/chg/n2", ActionAdd),
					),
					entry(EntityInternalComponent, "/v/t/keep", ActionKeep,
						entry(EntityNode, "/v/t/keep/n1", ActionRemove),
						entry(EntityNode, "/v/t/keep/n2", ActionKeep),
						entry(EntityNode, "/v/t/keep/n3", ActionChange),
					),
					entry(EntityInternalComponent, "/v/t/rm", ActionRemove,
						entry(EntityNode, "/v/t/rm/n1", ActionRemove),
					),
				),
			),
		},
	}

	plan := Plan(delta)

	assert.Equal(t, []string{
		"/v/t/rm/n1", "/v/t/rm",
		"/v/t/keep/n1", "/v/t/keep/n3",
		"/v/t/chg/n2", "/v/t/chg",
		"/v/t/add", "/v/t/add/n1",
	}, stepFQNs(plan))

	for _, s := range plan.Steps {
		assert.NotEqual(t, ActionKeep, s.Action)
		assert.Equal(t, s.Action.Operation(), s.Operation)
	}
	assert.Equal(t, PlanSummary{Create: 3, Update: 2, Delete: 3}, plan.Summary)
}

func TestPlan_NetworksAfterComponents(t *testing.T) {
	delta := &Delta{
		VNFs: []*DeltaEntry{
			entry(EntityVNF, "/v", ActionKeep,
				entry(EntityTenant, "/v/t", ActionKeep,
					entry(EntityNetwork, "/v/t/a", ActionAdd),
					entry(EntityNetwork, "/v/t/k", ActionKeep),
					entry(EntityNetwork, "/v/t/c", ActionChange),
					entry(EntityNetwork, "/v/t/r", ActionRemove),
					entry(EntityInternalComponent, "/v/t/comp", ActionAdd),
				),
			),
		},
	}

	plan := Plan(delta)

	assert.Equal(t, []string{"/v/t/comp", "/v/t/r", "/v/t/c", "/v/t/a"}, stepFQNs(plan))
}

func TestPlan_GlobalEntitiesNotActuated(t *testing.T) {
	delta := &Delta{
		Networks:   []*DeltaEntry{entry(EntityNetwork, "/mgmt", ActionAdd)},
		Components: []*DeltaEntry{entry(EntityExternalComponent, "/ext", ActionChange)},
	}

	plan := Plan(delta)
	assert.True(t, plan.IsEmpty())
}

func TestPlan_FromModels(t *testing.T) {
	old := buildModel(t, baseBatch())
	cur := cloneModel(t, old)
	require.NoError(t, cur.Apply(Batch{
		&NetworkStatement{StatementMeta: meta("/vnf1/t1/net3"), IPv4: &IPConfig{CIDR: "10.3.0.0/24"}},
		&InternalComponentStatement{
			StatementMeta: meta("/vnf1/t1/cache"),
			Sizing:        &Sizing{Min: 1, Max: 3, Size: 2},
			Interfaces:    []Interface{{Name: "eth0", Network: "net3"}},
		},
		&NodeStatement{StatementMeta: meta("/vnf1/t1/cache/n1")},
		&NodeStatement{StatementMeta: meta("/vnf1/t1/cache/n2")},
		&InternalComponentStatement{StatementMeta: removal("/vnf1/t1/db")},
	}))

	plan := Plan(Compute(old, cur))

	assert.Equal(t, 1, plan.From)
	assert.Equal(t, 2, plan.To)
	// web loses its egress rule towards db and is updated
	assert.Equal(t, []string{
		"/vnf1/t1/db/n1", "/vnf1/t1/db",
		"/vnf1/t1/web/n1", "/vnf1/t1/web",
		"/vnf1/t1/cache", "/vnf1/t1/cache/n1", "/vnf1/t1/cache/n2",
		"/vnf1/t1/net3",
	}, stepFQNs(plan))
	require.NoError(t, ValidatePlan(plan))
}

func TestPlan_EmptyForIdenticalModels(t *testing.T) {
	m := buildModel(t, baseBatch())

	plan := Plan(Compute(m, m))
	assert.True(t, plan.IsEmpty())
	require.NoError(t, ValidatePlan(plan))
}

func TestValidatePlan(t *testing.T) {
	create := func(typ EntityType, fqn string) Step {
		return Step{Type: typ, FQN: MustParseFQN(fqn), Action: ActionAdd, Operation: OperationCreate}
	}
	remove := func(typ EntityType, fqn string) Step {
		return Step{Type: typ, FQN: MustParseFQN(fqn), Action: ActionRemove, Operation: OperationDelete}
	}

	tests := []struct {
		name    string
		steps   []Step
		wantErr bool
		code    string
	}{
		{
			name:  "parent created first",
			steps: []Step{create(EntityInternalComponent, "/v/t/c"), create(EntityNode, "/v/t/c/n")},
		},
		{
			name:    "node created before component",
			steps:   []Step{create(EntityNode, "/v/t/c/n"), create(EntityInternalComponent, "/v/t/c")},
			wantErr: true,
			code:    ErrCodeOrdering,
		},
		{
			name:    "component deleted before node",
			steps:   []Step{remove(EntityInternalComponent, "/v/t/c"), remove(EntityNode, "/v/t/c/n")},
			wantErr: true,
			code:    ErrCodeOrdering,
		},
		{
			name:    "duplicate step",
			steps:   []Step{create(EntityNetwork, "/v/t/n"), create(EntityNetwork, "/v/t/n")},
			wantErr: true,
			code:    ErrCodeValidation,
		},
		{
			name:    "keep step",
			steps:   []Step{{Type: EntityNode, FQN: MustParseFQN("/v/t/c/n"), Action: ActionKeep, Operation: OperationNoop}},
			wantErr: true,
			code:    ErrCodeValidation,
		},
		{
			name:    "mismatched operation",
			steps:   []Step{{Type: EntityNode, FQN: MustParseFQN("/v/t/c/n"), Action: ActionAdd, Operation: OperationDelete}},
			wantErr: true,
			code:    ErrCodeValidation,
		},
		{
			name:    "unknown type",
			steps:   []Step{{Type: "Router", FQN: MustParseFQN("/r"), Action: ActionAdd, Operation: OperationCreate}},
			wantErr: true,
			code:    ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePlan(&ActionPlan{Steps: tt.steps})
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Equal(t, tt.code, CodeOf(err))
		})
	}
}
