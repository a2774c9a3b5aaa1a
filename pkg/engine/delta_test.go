package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// actionsByFQN flattens a delta into fqn -> action.
func actionsByFQN(d *Delta) map[string]Action {
	out := make(map[string]Action)
	d.Walk(func(e *DeltaEntry) {
		out[string(e.Type)+":"+e.FQN.String()] = e.Action
	})
	return out
}

func TestCompute_RoundTripIsAllKeep(t *testing.T) {
	m := buildModel(t, baseBatch())

	d := Compute(m, m)

	assert.Equal(t, "Delta", d.Type)
	assert.Equal(t, m.Version, d.From)
	assert.Equal(t, m.Version, d.To)

	d.Walk(func(e *DeltaEntry) {
		assert.Equal(t, ActionKeep, e.Action, "entry %s %s", e.Type, e.FQN)
	})
	assert.Equal(t, 9, d.Counts()[ActionKeep])
}

func TestCompute_NilOldAddsEverything(t *testing.T) {
	m := buildModel(t, baseBatch())

	d := Compute(nil, m)

	assert.Equal(t, 0, d.From)
	assert.Equal(t, 1, d.To)
	counts := d.Counts()
	assert.Equal(t, 9, counts[ActionAdd])
	assert.Len(t, counts, 1)
}

func TestCompute_TenantRemovalCascades(t *testing.T) {
	old := buildModel(t, baseBatch(), Batch{&NetworkStatement{
		StatementMeta: meta("/vnf1/t1/routed"),
		RouteTarget:   StringPtr("rt-100"),
	}})
	cur := cloneModel(t, old)
	require.NoError(t, cur.Apply(Batch{&TenantStatement{StatementMeta: removal("/vnf1/t1")}}))

	d := Compute(old, cur)
	require.Len(t, d.VNFs, 1)
	require.Len(t, d.VNFs[0].Tenants, 1)

	tenant := d.VNFs[0].Tenants[0]
	assert.Equal(t, ActionRemove, tenant.Action)

	actions := actionsByFQN(d)
	for _, key := range []string{
		"Network:/vnf1/t1/net1",
		"Network:/vnf1/t1/net2",
		"InternalComponent:/vnf1/t1/web",
		"InternalComponent:/vnf1/t1/db",
		"Node:/vnf1/t1/web/n1",
		"Node:/vnf1/t1/db/n1",
	} {
		assert.Equal(t, ActionRemove, actions[key], key)
	}

	_, ok := actions["Network:/vnf1/t1/routed"]
	assert.False(t, ok, "routed network must not be cascaded")
}

func TestCompute_ChangeRecursesIntoChildren(t *testing.T) {
	old := buildModel(t, baseBatch())
	cur := cloneModel(t, old)
	require.NoError(t, cur.Apply(Batch{
		&InternalComponentStatement{StatementMeta: meta("/vnf1/t1/web"), Image: StringPtr("web-2.0")},
		&NodeStatement{StatementMeta: meta("/vnf1/t1/web/n2")},
		&NodeStatement{StatementMeta: meta("/vnf1/t1/db/n1"), Image: StringPtr("db-hotfix")},
	}))

	actions := actionsByFQN(Compute(old, cur))

	assert.Equal(t, ActionKeep, actions["VNF:/vnf1"])
	assert.Equal(t, ActionKeep, actions["Tenant:/vnf1/t1"])
	assert.Equal(t, ActionChange, actions["InternalComponent:/vnf1/t1/web"])
	assert.Equal(t, ActionKeep, actions["Node:/vnf1/t1/web/n1"])
	assert.Equal(t, ActionAdd, actions["Node:/vnf1/t1/web/n2"])
	assert.Equal(t, ActionKeep, actions["InternalComponent:/vnf1/t1/db"])
	assert.Equal(t, ActionChange, actions["Node:/vnf1/t1/db/n1"])
}

func TestCompute_EqualityPredicates(t *testing.T) {
	tests := []struct {
		name  string
		batch Batch
		key   string
		want  Action
	}{
		{
			name:  "vnf public key is not compared",
			batch: Batch{&VNFStatement{StatementMeta: meta("/vnf1"), PublicKey: StringPtr("ssh-ed25519 AAAA")}},
			key:   "VNF:/vnf1",
			want:  ActionKeep,
		},
		{
			name:  "vnf vendor is compared",
			batch: Batch{&VNFStatement{StatementMeta: meta("/vnf1"), Vendor: StringPtr("other")}},
			key:   "VNF:/vnf1",
			want:  ActionChange,
		},
		{
			name:  "tenant flavors are not compared",
			batch: Batch{&TenantStatement{StatementMeta: meta("/vnf1/t1"), Flavors: []Flavor{{Name: "small"}, {Name: "large"}}}},
			key:   "Tenant:/vnf1/t1",
			want:  ActionKeep,
		},
		{
			name:  "tenant datacenter is compared",
			batch: Batch{&TenantStatement{StatementMeta: meta("/vnf1/t1"), Datacenter: StringPtr("dc2")}},
			key:   "Tenant:/vnf1/t1",
			want:  ActionChange,
		},
		{
			name:  "network is compared in full",
			batch: Batch{&NetworkStatement{StatementMeta: meta("/vnf1/t1/net1"), IPv4: &IPConfig{CIDR: "10.1.0.0/24", DHCP: true}}},
			key:   "Network:/vnf1/t1/net1",
			want:  ActionChange,
		},
		{
			name:  "external component is compared in full",
			batch: Batch{&ExternalComponentStatement{StatementMeta: meta("/ext1"), IPv4: []string{"10.0.1.0/24"}}},
			key:   "ExternalComponent:/ext1",
			want:  ActionChange,
		},
		{
			name:  "component sizing is compared",
			batch: Batch{&InternalComponentStatement{StatementMeta: meta("/vnf1/t1/db"), Sizing: &Sizing{Min: 1, Max: 3, Size: 1}}},
			key:   "InternalComponent:/vnf1/t1/db",
			want:  ActionChange,
		},
		{
			name:  "component name is not compared",
			batch: Batch{&InternalComponentStatement{StatementMeta: StatementMeta{FQN: MustParseFQN("/vnf1/t1/db"), Name: "database"}}},
			key:   "InternalComponent:/vnf1/t1/db",
			want:  ActionKeep,
		},
		{
			name: "derived rules are compared",
			batch: Batch{&InternalComponentStatement{
				StatementMeta: meta("/vnf1/t1/db"),
				Services:      []Service{{Name: "sql", Network: "net2", Ports: []Port{{Protocol: "tcp", Min: 5432, Max: 5432}}}},
			}},
			key:  "InternalComponent:/vnf1/t1/web",
			want: ActionChange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			old := buildModel(t, baseBatch())
			cur := cloneModel(t, old)
			require.NoError(t, cur.Apply(tt.batch))

			actions := actionsByFQN(Compute(old, cur))
			assert.Equal(t, tt.want, actions[tt.key])
		})
	}
}

func TestCompute_SortsByRank(t *testing.T) {
	old := buildModel(t, baseBatch(), Batch{
		&InternalComponentStatement{StatementMeta: meta("/vnf1/t1/cache")},
	})
	cur := cloneModel(t, old)
	require.NoError(t, cur.Apply(Batch{
		&InternalComponentStatement{StatementMeta: meta("/vnf1/t1/queue")},
		&InternalComponentStatement{StatementMeta: meta("/vnf1/t1/db"), Image: StringPtr("db-2.0")},
		&InternalComponentStatement{StatementMeta: removal("/vnf1/t1/cache")},
	}))

	components := Compute(old, cur).VNFs[0].Tenants[0].Components
	require.Len(t, components, 4)

	got := make([]Action, len(components))
	for i, c := range components {
		got[i] = c.Action
	}
	assert.Equal(t, []Action{ActionRemove, ActionKeep, ActionChange, ActionAdd}, got)
	assert.Equal(t, "/vnf1/t1/cache", components[0].FQN.String())
	assert.Equal(t, "/vnf1/t1/web", components[1].FQN.String())
	assert.Equal(t, "/vnf1/t1/db", components[2].FQN.String())
	assert.Equal(t, "/vnf1/t1/queue", components[3].FQN.String())
}

func TestCompute_GlobalNetworks(t *testing.T) {
	old := buildModel(t, Batch{&NetworkStatement{StatementMeta: meta("/mgmt")}})
	cur := cloneModel(t, old)
	require.NoError(t, cur.Apply(Batch{
		&NetworkStatement{StatementMeta: removal("/mgmt")},
		&NetworkStatement{StatementMeta: meta("/oam")},
	}))

	d := Compute(old, cur)
	require.Len(t, d.Networks, 2)
	assert.Equal(t, ActionRemove, d.Networks[0].Action)
	assert.Equal(t, ActionAdd, d.Networks[1].Action)
}

func TestCompute_DoesNotModifyInputs(t *testing.T) {
	old := buildModel(t, baseBatch())
	cur := cloneModel(t, old)
	require.NoError(t, cur.Apply(Batch{&VNFStatement{StatementMeta: removal("/vnf1")}}))

	oldCopy := cloneModel(t, old)
	curCopy := cloneModel(t, cur)
	_ = Compute(old, cur)

	assert.Empty(t, cmp.Diff(oldCopy, old, cmpopts.EquateEmpty()))
	assert.Empty(t, cmp.Diff(curCopy, cur, cmpopts.EquateEmpty()))
}
