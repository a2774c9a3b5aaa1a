package engine

import (
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// DeltaEntry marks how one entity changed between two model versions. Child
// lists are populated for VNFs, tenants and internal components.
type DeltaEntry struct {
	Type       EntityType    `json:"type" yaml:"type"`
	FQN        FQN           `json:"fqn" yaml:"fqn"`
	Action     Action        `json:"action" yaml:"action"`
	Tenants    []*DeltaEntry `json:"tenants,omitempty" yaml:"tenants,omitempty"`
	Networks   []*DeltaEntry `json:"networks,omitempty" yaml:"networks,omitempty"`
	Components []*DeltaEntry `json:"components,omitempty" yaml:"components,omitempty"`
	Nodes      []*DeltaEntry `json:"nodes,omitempty" yaml:"nodes,omitempty"`
}

// Delta is the action-tagged comparison of two model versions. It mirrors
// the model hierarchy.
type Delta struct {
	Schema     string        `json:"schema" yaml:"schema"`
	Type       string        `json:"type" yaml:"type"`
	Context    string        `json:"context" yaml:"context"`
	From       int           `json:"from" yaml:"from"`
	To         int           `json:"to" yaml:"to"`
	Networks   []*DeltaEntry `json:"networks" yaml:"networks"`
	Components []*DeltaEntry `json:"components" yaml:"components"`
	VNFs       []*DeltaEntry `json:"vnfs" yaml:"vnfs"`
}

// Compute returns the delta from old to new. A nil old model is treated as
// an empty model, so every entity of new is added. Compute does not modify
// its inputs.
func Compute(old, new *Model) *Delta {
	if old == nil {
		old = NewModel(new.Context)
	}

	return &Delta{
		Schema:  ModelSchema,
		Type:    "Delta",
		Context: new.Context,
		From:    old.Version,
		To:      new.Version,
		Networks: diffLevel(old.Networks, new.Networks,
			func(n *Network) FQN { return n.FQN },
			func(a, b *Network) bool { return cmp.Equal(a, b, equateEmpty) },
			func(n *Network, action Action) *DeltaEntry { return leafEntry(EntityNetwork, n.FQN, action) },
			nil,
		),
		Components: diffLevel(old.Components, new.Components,
			func(c *ExternalComponent) FQN { return c.FQN },
			func(a, b *ExternalComponent) bool { return cmp.Equal(a, b, equateEmpty) },
			func(c *ExternalComponent, action Action) *DeltaEntry {
				return leafEntry(EntityExternalComponent, c.FQN, action)
			},
			nil,
		),
		VNFs: diffLevel(old.VNFs, new.VNFs,
			func(v *VNF) FQN { return v.FQN },
			func(a, b *VNF) bool { return vnfAttrsOf(a) == vnfAttrsOf(b) },
			cascadeVNF,
			diffVNF,
		),
	}
}

var equateEmpty = cmpopts.EquateEmpty()

// diffLevel compares one list of sibling entities. Entities only in old are
// removed, only in new are added, and in both are kept or changed according
// to equal. Removed and added entities get their descendants through
// cascade; kept and changed ones are recursed into.
func diffLevel[T any](
	old, new []T,
	fqnOf func(T) FQN,
	equal func(a, b T) bool,
	cascade func(T, Action) *DeltaEntry,
	recurse func(a, b T, entry *DeltaEntry),
) []*DeltaEntry {
	newIndex := make(map[string]T, len(new))
	for _, item := range new {
		newIndex[fqnOf(item).String()] = item
	}
	oldIndex := make(map[string]bool, len(old))

	entries := make([]*DeltaEntry, 0, len(old)+len(new))
	for _, a := range old {
		key := fqnOf(a).String()
		oldIndex[key] = true

		b, ok := newIndex[key]
		if !ok {
			entries = append(entries, cascade(a, ActionRemove))
			continue
		}

		action := ActionKeep
		if !equal(a, b) {
			action = ActionChange
		}
		entry := cascade(b, action)
		if recurse != nil {
			recurse(a, b, entry)
		}
		entries = append(entries, entry)
	}

	for _, b := range new {
		if !oldIndex[fqnOf(b).String()] {
			entries = append(entries, cascade(b, ActionAdd))
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Action.Rank() < entries[j].Action.Rank()
	})
	return entries
}

func leafEntry(t EntityType, fqn FQN, action Action) *DeltaEntry {
	return &DeltaEntry{Type: t, FQN: fqn, Action: action}
}

// cascadeVNF marks a VNF and, for add and remove, all its descendants.
func cascadeVNF(v *VNF, action Action) *DeltaEntry {
	entry := leafEntry(EntityVNF, v.FQN, action)
	entry.Tenants = []*DeltaEntry{}
	if action == ActionAdd || action == ActionRemove {
		for _, t := range v.Tenants {
			entry.Tenants = append(entry.Tenants, cascadeTenant(t, action))
		}
	}
	return entry
}

// cascadeTenant marks a tenant and, for add and remove, its networks without
// a route target and all its components.
func cascadeTenant(t *Tenant, action Action) *DeltaEntry {
	entry := leafEntry(EntityTenant, t.FQN, action)
	entry.Networks = []*DeltaEntry{}
	entry.Components = []*DeltaEntry{}
	if action == ActionAdd || action == ActionRemove {
		for _, n := range t.Networks {
			if n.Target == "" {
				entry.Networks = append(entry.Networks, leafEntry(EntityNetwork, n.FQN, action))
			}
		}
		for _, c := range t.Components {
			entry.Components = append(entry.Components, cascadeComponent(c, action))
		}
	}
	return entry
}

func cascadeComponent(c *InternalComponent, action Action) *DeltaEntry {
	entry := leafEntry(EntityInternalComponent, c.FQN, action)
	entry.Nodes = []*DeltaEntry{}
	if action == ActionAdd || action == ActionRemove {
		for _, n := range c.Nodes {
			entry.Nodes = append(entry.Nodes, leafEntry(EntityNode, n.FQN, action))
		}
	}
	return entry
}

func diffVNF(a, b *VNF, entry *DeltaEntry) {
	entry.Tenants = diffLevel(a.Tenants, b.Tenants,
		func(t *Tenant) FQN { return t.FQN },
		func(x, y *Tenant) bool { return tenantAttrsOf(x) == tenantAttrsOf(y) },
		cascadeTenant,
		diffTenant,
	)
}

func diffTenant(a, b *Tenant, entry *DeltaEntry) {
	entry.Networks = diffLevel(a.Networks, b.Networks,
		func(n *Network) FQN { return n.FQN },
		func(x, y *Network) bool { return cmp.Equal(x, y, equateEmpty) },
		func(n *Network, action Action) *DeltaEntry { return leafEntry(EntityNetwork, n.FQN, action) },
		nil,
	)
	entry.Components = diffLevel(a.Components, b.Components,
		func(c *InternalComponent) FQN { return c.FQN },
		func(x, y *InternalComponent) bool {
			return cmp.Equal(componentAttrsOf(x), componentAttrsOf(y), equateEmpty)
		},
		cascadeComponent,
		diffComponent,
	)
}

func diffComponent(a, b *InternalComponent, entry *DeltaEntry) {
	entry.Nodes = diffLevel(a.Nodes, b.Nodes,
		func(n *Node) FQN { return n.FQN },
		func(x, y *Node) bool { return cmp.Equal(nodeAttrsOf(x), nodeAttrsOf(y), equateEmpty) },
		func(n *Node, action Action) *DeltaEntry { return leafEntry(EntityNode, n.FQN, action) },
		nil,
	)
}

type vnfAttrs struct {
	Description, Version, Vendor string
	State                        State
}

func vnfAttrsOf(v *VNF) vnfAttrs {
	return vnfAttrs{v.Description, v.Version, v.Vendor, v.State}
}

type tenantAttrs struct {
	Description, Version, Datacenter string
	State                            State
}

func tenantAttrsOf(t *Tenant) tenantAttrs {
	return tenantAttrs{t.Description, t.Version, t.Datacenter, t.State}
}

// workloadAttrs is the attribute set compared for components and nodes.
type workloadAttrs struct {
	Description  string
	Version      string
	Placement    string
	Flavor       string
	Image        string
	Sizing       Sizing
	UserData     []string
	Metadata     []Metadata
	State        State
	Volumes      []Volume
	Interfaces   []Interface
	Dependencies []Dependency
	Services     []Service
}

func componentAttrsOf(c *InternalComponent) workloadAttrs {
	return workloadAttrs{
		Description:  c.Description,
		Version:      c.Version,
		Placement:    c.Placement,
		Flavor:       c.Flavor,
		Image:        c.Image,
		Sizing:       c.Sizing,
		UserData:     c.UserData,
		Metadata:     c.Metadata,
		State:        c.State,
		Volumes:      c.Volumes,
		Interfaces:   c.Interfaces,
		Dependencies: c.Dependencies,
		Services:     c.Services,
	}
}

func nodeAttrsOf(n *Node) workloadAttrs {
	return workloadAttrs{
		Description:  n.Description,
		Version:      n.Version,
		Placement:    n.Placement,
		Flavor:       n.Flavor,
		Image:        n.Image,
		UserData:     n.UserData,
		Metadata:     n.Metadata,
		State:        n.State,
		Volumes:      n.Volumes,
		Interfaces:   n.Interfaces,
		Dependencies: n.Dependencies,
		Services:     n.Services,
	}
}

// Counts returns the number of entries per action across the whole delta.
func (d *Delta) Counts() map[Action]int {
	counts := make(map[Action]int)
	d.Walk(func(e *DeltaEntry) {
		counts[e.Action]++
	})
	return counts
}

// Walk calls fn for every entry in containment order.
func (d *Delta) Walk(fn func(*DeltaEntry)) {
	for _, e := range d.Networks {
		walkEntry(e, fn)
	}
	for _, e := range d.Components {
		walkEntry(e, fn)
	}
	for _, e := range d.VNFs {
		walkEntry(e, fn)
	}
}

func walkEntry(e *DeltaEntry, fn func(*DeltaEntry)) {
	fn(e)
	for _, t := range e.Tenants {
		walkEntry(t, fn)
	}
	for _, n := range e.Networks {
		walkEntry(n, fn)
	}
	for _, c := range e.Components {
		walkEntry(c, fn)
	}
	for _, n := range e.Nodes {
		walkEntry(n, fn)
	}
}
