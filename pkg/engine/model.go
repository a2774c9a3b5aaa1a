package engine

import (
	"fmt"

	"github.com/mitchellh/copystructure"
)

// NewModel returns an empty canonical model for the given context.
func NewModel(context string) *Model {
	return &Model{
		Schema:     ModelSchema,
		Type:       "Model",
		Context:    context,
		Version:    0,
		Consistent: true,
		Networks:   []*Network{},
		Components: []*ExternalComponent{},
		VNFs:       []*VNF{},
	}
}

// Clone returns a deep copy of the model.
func (m *Model) Clone() (*Model, error) {
	c, err := copystructure.Copy(m)
	if err != nil {
		return nil, fmt.Errorf("failed to copy model: %w", err)
	}
	return c.(*Model), nil
}

// Apply applies a batch of statements. The batch is applied to a copy of the
// model and committed only if every statement succeeds, so a failed Apply
// leaves m untouched. Apply is not safe for concurrent use.
func (m *Model) Apply(batch Batch) error {
	work, err := m.Clone()
	if err != nil {
		return NewPermanentError("failed to snapshot model", err).WithCode(ErrCodeInternal)
	}

	for _, st := range batch {
		if err := work.applyStatement(st); err != nil {
			return err
		}
	}

	work.resolveReferences()
	work.Version++

	*m = *work
	return nil
}

func (m *Model) applyStatement(st Statement) error {
	if st == nil {
		return NewValidationError("nil statement", nil)
	}
	if err := checkDepth(st); err != nil {
		return err
	}

	switch s := st.(type) {
	case *VNFStatement:
		return m.setVNF(s)
	case *TenantStatement:
		return m.setTenant(s)
	case *NetworkStatement:
		return m.setNetwork(s)
	case *ExternalComponentStatement:
		return m.setExternalComponent(s)
	case *InternalComponentStatement:
		return m.setInternalComponent(s)
	case *NodeStatement:
		return m.setNode(s)
	default:
		return NewValidationError(fmt.Sprintf("unsupported statement %T", st), nil)
	}
}

func checkDepth(st Statement) error {
	fqn := st.Target()
	for _, d := range expectedDepth(st.Kind()) {
		if fqn.Depth() == d {
			return nil
		}
	}
	return NewValidationError(
		fmt.Sprintf("%s cannot be declared at depth %d", st.Kind(), fqn.Depth()), nil,
	).WithCode(ErrCodeInvalidFQN).WithResource(fqn.String())
}

func (m *Model) setVNF(s *VNFStatement) error {
	state := s.effectiveState()
	idx := indexByFQN(m.VNFs, s.FQN, func(v *VNF) FQN { return v.FQN })
	if state.IsRemoval() {
		m.VNFs = removeAt(m.VNFs, idx)
		return nil
	}

	vnf := newVNF(s.FQN)
	if idx >= 0 {
		vnf = m.VNFs[idx]
	}
	setName(&vnf.Name, s.Name)
	setString(&vnf.Description, s.Description)
	setString(&vnf.Version, s.Version)
	setString(&vnf.Vendor, s.Vendor)
	setString(&vnf.PublicKey, s.PublicKey)
	vnf.setState(state)

	m.VNFs = upsert(m.VNFs, idx, vnf)
	return nil
}

func (m *Model) setTenant(s *TenantStatement) error {
	vnf, err := m.parentVNF(s.FQN)
	if err != nil {
		return err
	}

	state := s.effectiveState()
	idx := indexByFQN(vnf.Tenants, s.FQN, func(t *Tenant) FQN { return t.FQN })
	if state.IsRemoval() {
		vnf.Tenants = removeAt(vnf.Tenants, idx)
		return nil
	}

	tenant := newTenant(s.FQN)
	if idx >= 0 {
		tenant = vnf.Tenants[idx]
	}
	setName(&tenant.Name, s.Name)
	setString(&tenant.Description, s.Description)
	setString(&tenant.Version, s.Version)
	setString(&tenant.Datacenter, s.Datacenter)
	if s.Flavors != nil {
		tenant.Flavors = append([]Flavor{}, s.Flavors...)
	}
	tenant.setState(state)

	vnf.Tenants = upsert(vnf.Tenants, idx, tenant)
	return nil
}

func (m *Model) setNetwork(s *NetworkStatement) error {
	owner := &m.Networks
	if s.FQN.Depth() == 3 {
		tenant, err := m.parentTenant(s.FQN)
		if err != nil {
			return err
		}
		owner = &tenant.Networks
	}

	state := s.effectiveState()
	idx := indexByFQN(*owner, s.FQN, func(n *Network) FQN { return n.FQN })
	if state.IsRemoval() {
		*owner = removeAt(*owner, idx)
		return nil
	}

	network := newNetwork(s.FQN)
	if idx >= 0 {
		network = (*owner)[idx]
	}
	setName(&network.Name, s.Name)
	setString(&network.Description, s.Description)
	setString(&network.Version, s.Version)
	setString(&network.Target, s.RouteTarget)
	if s.IPv4 != nil {
		network.IPv4 = cloneIPConfig(s.IPv4)
	}
	if s.IPv6 != nil {
		network.IPv6 = cloneIPConfig(s.IPv6)
	}
	network.State = state

	*owner = upsert(*owner, idx, network)
	return nil
}

func (m *Model) setExternalComponent(s *ExternalComponentStatement) error {
	state := s.effectiveState()
	idx := indexByFQN(m.Components, s.FQN, func(c *ExternalComponent) FQN { return c.FQN })
	if state.IsRemoval() {
		m.Components = removeAt(m.Components, idx)
		return nil
	}

	// External components live outside any tenant, so every declared network
	// is in scope and references must be absolute.
	visible := m.allNetworks()
	refs := make([]string, 0)
	if s.Network != nil && *s.Network != "" {
		refs = append(refs, *s.Network)
	}
	for _, d := range s.Dependencies {
		refs = append(refs, d.Network)
	}
	for _, svc := range s.Services {
		refs = append(refs, svc.Network)
	}
	if err := checkNetworks(s.FQN, refs, visible); err != nil {
		return err
	}

	comp := newExternalComponent(s.FQN)
	if idx >= 0 {
		comp = m.Components[idx]
	}
	setName(&comp.Name, s.Name)
	setString(&comp.Description, s.Description)
	setString(&comp.Version, s.Version)
	setString(&comp.Network, s.Network)
	if s.IPv4 != nil {
		comp.IPv4 = append([]string{}, s.IPv4...)
	}
	if s.IPv6 != nil {
		comp.IPv6 = append([]string{}, s.IPv6...)
	}
	if s.Dependencies != nil {
		comp.Dependencies = append([]Dependency{}, s.Dependencies...)
	}
	if s.Services != nil {
		comp.Services = cloneServices(s.Services, nil)
	}
	comp.State = state

	m.Components = upsert(m.Components, idx, comp)
	return nil
}

func (m *Model) setInternalComponent(s *InternalComponentStatement) error {
	tenant, err := m.parentTenant(s.FQN)
	if err != nil {
		return err
	}

	state := s.effectiveState()
	idx := indexByFQN(tenant.Components, s.FQN, func(c *InternalComponent) FQN { return c.FQN })
	if state.IsRemoval() {
		tenant.Components = removeAt(tenant.Components, idx)
		return nil
	}

	interfaces := cloneInterfaces(s.Interfaces, tenant.FQN)
	services := cloneServices(s.Services, tenant.FQN)
	dependencies := cloneDependencies(s.Dependencies, tenant.FQN)
	if err := checkNetworks(s.FQN, networkRefs(interfaces, services, dependencies), m.visibleNetworks(tenant)); err != nil {
		return err
	}
	if s.Flavor != nil && !tenant.hasFlavor(*s.Flavor) {
		return NewReferenceError(fmt.Sprintf("flavor %q is not offered by tenant %s", *s.Flavor, tenant.FQN), nil).
			WithCode(ErrCodeUnknownFlavor).
			WithResource(s.FQN.String())
	}

	comp := newInternalComponent(s.FQN)
	if idx >= 0 {
		comp = tenant.Components[idx]
	}
	setName(&comp.Name, s.Name)
	setString(&comp.Description, s.Description)
	setString(&comp.Version, s.Version)
	setString(&comp.Placement, s.Placement)
	setString(&comp.Flavor, s.Flavor)
	setString(&comp.Image, s.Image)
	if s.Sizing != nil {
		comp.Sizing = *s.Sizing
	}
	if s.UserData != nil {
		comp.UserData = append([]string{}, s.UserData...)
	}
	if s.Metadata != nil {
		comp.Metadata = append([]Metadata{}, s.Metadata...)
	}
	if s.Volumes != nil {
		comp.Volumes = append([]Volume{}, s.Volumes...)
	}
	if interfaces != nil {
		comp.Interfaces = interfaces
	}
	if dependencies != nil {
		comp.Dependencies = dependencies
	}
	if services != nil {
		comp.Services = services
	}
	comp.setState(state)

	tenant.Components = upsert(tenant.Components, idx, comp)
	return nil
}

func (m *Model) setNode(s *NodeStatement) error {
	tenant, err := m.parentTenant(s.FQN.Parent())
	if err != nil {
		return err
	}
	compFQN := s.FQN.Parent()
	comp := tenant.component(compFQN)
	if comp == nil {
		return NewContextError(fmt.Sprintf("component %s does not exist", compFQN), nil).
			WithResource(s.FQN.String())
	}

	state := s.effectiveState()
	idx := indexByFQN(comp.Nodes, s.FQN, func(n *Node) FQN { return n.FQN })

	switch {
	case idx < 0 && !state.IsRemoval():
		if count := len(comp.Nodes) + 1; count > comp.Sizing.Max {
			return NewSizingError(
				fmt.Sprintf("adding node would raise %s to %d nodes, above max %d", compFQN, count, comp.Sizing.Max), nil,
			).WithResource(s.FQN.String()).WithDetail("max", comp.Sizing.Max)
		}
	case idx >= 0 && state.IsRemoval():
		if count := len(comp.Nodes) - 1; count < comp.Sizing.Min {
			return NewSizingError(
				fmt.Sprintf("removing node would lower %s to %d nodes, below min %d", compFQN, count, comp.Sizing.Min), nil,
			).WithResource(s.FQN.String()).WithDetail("min", comp.Sizing.Min)
		}
	}

	if state.IsRemoval() {
		comp.Nodes = removeAt(comp.Nodes, idx)
		return nil
	}

	interfaces := cloneInterfaces(s.Interfaces, tenant.FQN)
	services := cloneServices(s.Services, tenant.FQN)
	dependencies := cloneDependencies(s.Dependencies, tenant.FQN)
	if err := checkNetworks(s.FQN, networkRefs(interfaces, services, dependencies), m.visibleNetworks(tenant)); err != nil {
		return err
	}

	node := newNode(s.FQN)
	if idx >= 0 {
		node = comp.Nodes[idx]
	} else if interfaces == nil {
		node.Interfaces = mirrorInterfaces(comp.Interfaces)
	}
	setName(&node.Name, s.Name)
	setString(&node.Description, s.Description)
	setString(&node.Version, s.Version)
	setString(&node.Placement, s.Placement)
	setString(&node.Flavor, s.Flavor)
	setString(&node.Image, s.Image)
	if s.UserData != nil {
		node.UserData = append([]string{}, s.UserData...)
	}
	if s.Metadata != nil {
		node.Metadata = append([]Metadata{}, s.Metadata...)
	}
	if s.Volumes != nil {
		node.Volumes = append([]Volume{}, s.Volumes...)
	}
	if interfaces != nil {
		node.Interfaces = interfaces
	}
	if dependencies != nil {
		node.Dependencies = dependencies
	}
	if services != nil {
		node.Services = services
	}
	node.setState(state)

	comp.Nodes = upsert(comp.Nodes, idx, node)
	return nil
}

// parentVNF returns the VNF owning fqn.
func (m *Model) parentVNF(fqn FQN) (*VNF, error) {
	vnfFQN := fqn.Truncate(1)
	for _, v := range m.VNFs {
		if v.FQN.Equal(vnfFQN) {
			return v, nil
		}
	}
	return nil, NewContextError(fmt.Sprintf("vnf %s does not exist", vnfFQN), nil).
		WithResource(fqn.String())
}

// parentTenant returns the tenant owning fqn.
func (m *Model) parentTenant(fqn FQN) (*Tenant, error) {
	vnf, err := m.parentVNF(fqn)
	if err != nil {
		return nil, err
	}
	tenantFQN := fqn.Truncate(2)
	for _, t := range vnf.Tenants {
		if t.FQN.Equal(tenantFQN) {
			return t, nil
		}
	}
	return nil, NewContextError(fmt.Sprintf("tenant %s does not exist", tenantFQN), nil).
		WithResource(fqn.String())
}

// visibleNetworks returns the global networks plus the tenant's own.
func (m *Model) visibleNetworks(tenant *Tenant) map[string]*Network {
	out := make(map[string]*Network, len(m.Networks)+len(tenant.Networks))
	for _, n := range m.Networks {
		out[n.FQN.String()] = n
	}
	for _, n := range tenant.Networks {
		out[n.FQN.String()] = n
	}
	return out
}

// allNetworks returns every network in the model keyed by FQN.
func (m *Model) allNetworks() map[string]*Network {
	out := make(map[string]*Network)
	for _, n := range m.Networks {
		out[n.FQN.String()] = n
	}
	for _, v := range m.VNFs {
		for _, t := range v.Tenants {
			for _, n := range t.Networks {
				out[n.FQN.String()] = n
			}
		}
	}
	return out
}

func checkNetworks(owner FQN, refs []string, visible map[string]*Network) error {
	for _, ref := range refs {
		if _, ok := visible[ref]; !ok {
			return NewReferenceError(fmt.Sprintf("network %q is not declared in scope", ref), nil).
				WithCode(ErrCodeUnknownNetwork).
				WithResource(owner.String())
		}
	}
	return nil
}

func networkRefs(interfaces []Interface, services []Service, dependencies []Dependency) []string {
	refs := make([]string, 0, len(interfaces)+len(services)+len(dependencies))
	for _, i := range interfaces {
		refs = append(refs, i.Network)
	}
	for _, s := range services {
		refs = append(refs, s.Network)
	}
	for _, d := range dependencies {
		refs = append(refs, d.Network)
	}
	return refs
}

func (v *VNF) setState(s State) {
	v.State = s
	for _, t := range v.Tenants {
		t.setState(s)
	}
}

func (t *Tenant) setState(s State) {
	t.State = s
	for _, n := range t.Networks {
		n.State = s
	}
	for _, c := range t.Components {
		c.setState(s)
	}
}

func (c *InternalComponent) setState(s State) {
	c.State = s
	for _, n := range c.Nodes {
		n.setState(s)
	}
}

func (n *Node) setState(s State) {
	n.State = s
	for i := range n.Volumes {
		n.Volumes[i].State = s
	}
	for i := range n.Interfaces {
		n.Interfaces[i].State = s
	}
}

func (t *Tenant) hasFlavor(name string) bool {
	for _, f := range t.Flavors {
		if f.Name == name {
			return true
		}
	}
	return false
}

func (t *Tenant) component(fqn FQN) *InternalComponent {
	for _, c := range t.Components {
		if c.FQN.Equal(fqn) {
			return c
		}
	}
	return nil
}

func indexByFQN[T any](items []T, fqn FQN, fqnOf func(T) FQN) int {
	for i, item := range items {
		if fqnOf(item).Equal(fqn) {
			return i
		}
	}
	return -1
}

func removeAt[T any](items []T, idx int) []T {
	if idx < 0 {
		return items
	}
	return append(items[:idx:idx], items[idx+1:]...)
}

func upsert[T any](items []T, idx int, item T) []T {
	if idx >= 0 {
		items[idx] = item
		return items
	}
	return append(items, item)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setName(dst *string, name string) {
	if name != "" {
		*dst = name
	}
}

func cloneIPConfig(c *IPConfig) *IPConfig {
	out := *c
	out.DNS = append([]string(nil), c.DNS...)
	return &out
}

func cloneInterfaces(in []Interface, tenant FQN) []Interface {
	if in == nil {
		return nil
	}
	out := make([]Interface, len(in))
	for i, iface := range in {
		out[i] = iface
		out[i].Network = resolveNetworkName(iface.Network, tenant)
		out[i].Rules = nil
	}
	return out
}

func cloneServices(in []Service, tenant FQN) []Service {
	if in == nil {
		return nil
	}
	out := make([]Service, len(in))
	for i, svc := range in {
		out[i] = svc
		out[i].Network = resolveNetworkName(svc.Network, tenant)
		out[i].Ports = append([]Port{}, svc.Ports...)
	}
	return out
}

func cloneDependencies(in []Dependency, tenant FQN) []Dependency {
	if in == nil {
		return nil
	}
	out := make([]Dependency, len(in))
	for i, dep := range in {
		out[i] = dep
		out[i].Network = resolveNetworkName(dep.Network, tenant)
	}
	return out
}

// mirrorInterfaces copies the network binding of component interfaces for a
// new node. Addresses and rules are per node and not copied.
func mirrorInterfaces(in []Interface) []Interface {
	out := make([]Interface, len(in))
	for i, iface := range in {
		out[i] = Interface{Name: iface.Name, Network: iface.Network}
	}
	return out
}

func newVNF(fqn FQN) *VNF {
	return &VNF{
		FQN:       fqn,
		Type:      EntityVNF,
		Name:      fqn.Leaf(),
		Version:   "V0.0.0",
		Vendor:    "undefined",
		State:     StateDefined,
		PublicKey: "",
		Tenants:   []*Tenant{},
	}
}

func newTenant(fqn FQN) *Tenant {
	return &Tenant{
		FQN:        fqn,
		Type:       EntityTenant,
		Name:       fqn.Leaf(),
		Version:    "V0.0.0",
		State:      StateDefined,
		Flavors:    []Flavor{},
		Networks:   []*Network{},
		Components: []*InternalComponent{},
	}
}

func newNetwork(fqn FQN) *Network {
	return &Network{
		FQN:     fqn,
		Type:    EntityNetwork,
		Name:    fqn.Leaf(),
		Version: "V0.0.0",
		State:   StateDefined,
	}
}

func newExternalComponent(fqn FQN) *ExternalComponent {
	return &ExternalComponent{
		FQN:          fqn,
		Type:         EntityExternalComponent,
		Name:         fqn.Leaf(),
		Version:      "V0.0.0",
		State:        StateDefined,
		IPv4:         []string{},
		IPv6:         []string{},
		Dependencies: []Dependency{},
		Services:     []Service{},
	}
}

func newInternalComponent(fqn FQN) *InternalComponent {
	return &InternalComponent{
		FQN:          fqn,
		Type:         EntityInternalComponent,
		Name:         fqn.Leaf(),
		Version:      "V0.0.0",
		Placement:    "EXT",
		Flavor:       "undefined",
		Image:        "undefined",
		State:        StateDefined,
		Sizing:       Sizing{Min: 1, Max: 1, Size: 1},
		UserData:     []string{},
		Metadata:     []Metadata{},
		Volumes:      []Volume{},
		Interfaces:   []Interface{},
		Dependencies: []Dependency{},
		Services:     []Service{},
		Nodes:        []*Node{},
	}
}

func newNode(fqn FQN) *Node {
	return &Node{
		FQN:          fqn,
		Type:         EntityNode,
		Name:         fqn.Leaf(),
		Version:      "V0.0.0",
		Placement:    "EXT",
		Flavor:       "undefined",
		Image:        "undefined",
		State:        StateDefined,
		UserData:     []string{},
		Metadata:     []Metadata{},
		Volumes:      []Volume{},
		Interfaces:   []Interface{},
		Dependencies: []Dependency{},
		Services:     []Service{},
	}
}

// Lookup returns the entity of the given type and FQN.
func (m *Model) Lookup(t EntityType, fqn FQN) (any, bool) {
	var found any
	m.walk(func(et EntityType, f FQN, entity any) bool {
		if et == t && f.Equal(fqn) {
			found = entity
			return false
		}
		return true
	})
	return found, found != nil
}

// EntityCounts returns the number of entities per type.
func (m *Model) EntityCounts() map[EntityType]int {
	counts := make(map[EntityType]int, len(EntityTypes))
	for _, t := range EntityTypes {
		counts[t] = 0
	}
	m.walk(func(t EntityType, _ FQN, _ any) bool {
		counts[t]++
		return true
	})
	return counts
}

// RuleCount returns the number of synthesized rules on component interfaces.
// Node replicas are not counted.
func (m *Model) RuleCount() int {
	total := 0
	for _, v := range m.VNFs {
		for _, t := range v.Tenants {
			for _, c := range t.Components {
				for _, iface := range c.Interfaces {
					total += len(iface.Rules)
				}
			}
		}
	}
	return total
}

// walk visits every entity in containment order until fn returns false.
func (m *Model) walk(fn func(EntityType, FQN, any) bool) {
	for _, n := range m.Networks {
		if !fn(EntityNetwork, n.FQN, n) {
			return
		}
	}
	for _, c := range m.Components {
		if !fn(EntityExternalComponent, c.FQN, c) {
			return
		}
	}
	for _, v := range m.VNFs {
		if !fn(EntityVNF, v.FQN, v) {
			return
		}
		for _, t := range v.Tenants {
			if !fn(EntityTenant, t.FQN, t) {
				return
			}
			for _, n := range t.Networks {
				if !fn(EntityNetwork, n.FQN, n) {
					return
				}
			}
			for _, c := range t.Components {
				if !fn(EntityInternalComponent, c.FQN, c) {
					return
				}
				for _, n := range c.Nodes {
					if !fn(EntityNode, n.FQN, n) {
						return
					}
				}
			}
		}
	}
}
