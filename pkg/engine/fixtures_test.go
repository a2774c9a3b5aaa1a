package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func meta(fqn string) StatementMeta {
	return StatementMeta{FQN: MustParseFQN(fqn)}
}

func removal(fqn string) StatementMeta {
	return StatementMeta{FQN: MustParseFQN(fqn), State: StateUndefined}
}

// baseBatch declares one VNF with a web tier depending on a db tier across
// two tenant networks, plus an external DNS resolver.
func baseBatch() Batch {
	return Batch{
		&VNFStatement{StatementMeta: meta("/vnf1"), Vendor: StringPtr("acme")},
		&TenantStatement{
			StatementMeta: meta("/vnf1/t1"),
			Datacenter:    StringPtr("dc1"),
			Flavors:       []Flavor{{Name: "small", VCPUs: 1, RAM: 1024, Disk: 10}},
		},
		&NetworkStatement{StatementMeta: meta("/vnf1/t1/net1"), IPv4: &IPConfig{CIDR: "10.1.0.0/24"}},
		&NetworkStatement{StatementMeta: meta("/vnf1/t1/net2"), IPv4: &IPConfig{CIDR: "10.2.0.0/24"}},
		&ExternalComponentStatement{
			StatementMeta: meta("/ext1"),
			Network:       StringPtr("/vnf1/t1/net1"),
			IPv4:          []string{"10.0.0.0/24"},
			Services: []Service{{
				Name:    "dns",
				Network: "/vnf1/t1/net1",
				Ports:   []Port{{Protocol: "udp", Min: 53, Max: 53}, {Protocol: "tcp", Min: 53, Max: 53}},
			}},
		},
		&InternalComponentStatement{
			StatementMeta: meta("/vnf1/t1/web"),
			Flavor:        StringPtr("small"),
			Image:         StringPtr("web-1.0"),
			Sizing:        &Sizing{Min: 1, Max: 2, Size: 1},
			Interfaces:    []Interface{{Name: "eth0", Network: "net1"}},
			Dependencies:  []Dependency{{Service: "/vnf1/t1/db/sql", Network: "net1"}},
		},
		&InternalComponentStatement{
			StatementMeta: meta("/vnf1/t1/db"),
			Flavor:        StringPtr("small"),
			Image:         StringPtr("db-1.0"),
			Sizing:        &Sizing{Min: 1, Max: 2, Size: 1},
			Interfaces:    []Interface{{Name: "eth0", Network: "net2"}},
			Services: []Service{{
				Name:    "sql",
				Network: "net2",
				Ports:   []Port{{Protocol: "tcp", Min: 80, Max: 80}},
			}},
		},
		&NodeStatement{StatementMeta: meta("/vnf1/t1/web/n1")},
		&NodeStatement{StatementMeta: meta("/vnf1/t1/db/n1")},
	}
}

func buildModel(t *testing.T, batches ...Batch) *Model {
	t.Helper()

	m := NewModel("test")
	for _, b := range batches {
		require.NoError(t, m.Apply(b))
	}
	return m
}

func cloneModel(t *testing.T, m *Model) *Model {
	t.Helper()

	c, err := m.Clone()
	require.NoError(t, err)
	return c
}

func mustComponent(t *testing.T, m *Model, fqn string) *InternalComponent {
	t.Helper()

	e, ok := m.Lookup(EntityInternalComponent, MustParseFQN(fqn))
	require.True(t, ok, "component %s not found", fqn)
	return e.(*InternalComponent)
}

func mustNode(t *testing.T, m *Model, fqn string) *Node {
	t.Helper()

	e, ok := m.Lookup(EntityNode, MustParseFQN(fqn))
	require.True(t, ok, "node %s not found", fqn)
	return e.(*Node)
}
