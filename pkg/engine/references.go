package engine

// serviceRef is one entry of the services index.
type serviceRef struct {
	component string
	network   string
	ports     []Port
	external  *ExternalComponent
	internal  *InternalComponent
}

// link is a resolved dependency from a source component to a target service.
type link struct {
	source        componentRef
	sourceNetwork string
	target        componentRef
	targetNetwork string
	ports         []Port
}

// componentRef points at either an external or an internal component.
type componentRef struct {
	fqn      string
	external *ExternalComponent
	internal *InternalComponent
}

func (c componentRef) dependencies() []Dependency {
	if c.external != nil {
		return c.external.Dependencies
	}
	return c.internal.Dependencies
}

func (c componentRef) services() []Service {
	if c.external != nil {
		return c.external.Services
	}
	return c.internal.Services
}

// resolveReferences regenerates every derived security rule and recomputes
// the Consistent flag.
func (m *Model) resolveReferences() {
	m.Consistent = true

	networks := m.allNetworks()
	components := m.componentRefs()

	services := make(map[string]serviceRef)
	for _, c := range components {
		for _, svc := range c.services() {
			services[c.fqn+"/"+svc.Name] = serviceRef{
				component: c.fqn,
				network:   svc.Network,
				ports:     svc.Ports,
				external:  c.external,
				internal:  c.internal,
			}
		}
	}

	var links []link
	for _, c := range components {
		for _, dep := range c.dependencies() {
			svc, ok := services[dep.Service]
			if !ok {
				m.Consistent = false
				continue
			}
			links = append(links, link{
				source:        c,
				sourceNetwork: dep.Network,
				target:        componentRef{fqn: svc.component, external: svc.external, internal: svc.internal},
				targetNetwork: svc.network,
				ports:         svc.ports,
			})
		}
	}

	m.clearRules()

	for _, l := range links {
		if l.source.internal != nil {
			rules, ok := peerRules(DirectionEgress, l.target, l.targetNetwork, l.ports, networks)
			if !ok || !addRules(l.source.internal, l.sourceNetwork, rules) {
				m.Consistent = false
			}
		}
		if l.target.internal != nil {
			rules, ok := peerRules(DirectionIngress, l.source, l.sourceNetwork, l.ports, networks)
			if !ok || !addRules(l.target.internal, l.targetNetwork, rules) {
				m.Consistent = false
			}
		}
	}

	m.fanOutRules()
}

// componentRefs lists external components first, then internal components in
// containment order.
func (m *Model) componentRefs() []componentRef {
	var out []componentRef
	for _, c := range m.Components {
		out = append(out, componentRef{fqn: c.FQN.String(), external: c})
	}
	for _, v := range m.VNFs {
		for _, t := range v.Tenants {
			for _, c := range t.Components {
				out = append(out, componentRef{fqn: c.FQN.String(), internal: c})
			}
		}
	}
	return out
}

func (m *Model) clearRules() {
	for _, v := range m.VNFs {
		for _, t := range v.Tenants {
			for _, c := range t.Components {
				for i := range c.Interfaces {
					c.Interfaces[i].Rules = []Rule{}
				}
				for _, n := range c.Nodes {
					for i := range n.Interfaces {
						n.Interfaces[i].Rules = []Rule{}
					}
				}
			}
		}
	}
}

// peerRules builds the rules allowing traffic to or from peer. External peers
// yield cidr rules over their literal prefixes; internal peers yield group
// rules over the address families of peerNetwork. It returns false when
// peerNetwork is unknown for an internal peer.
func peerRules(direction string, peer componentRef, peerNetwork string, ports []Port, networks map[string]*Network) ([]Rule, bool) {
	var rules []Rule

	if peer.external != nil {
		for _, p := range ports {
			for _, prefix := range peer.external.IPv4 {
				rules = append(rules, cidrRule(direction, p, FamilyIPv4, prefix))
			}
			for _, prefix := range peer.external.IPv6 {
				rules = append(rules, cidrRule(direction, p, FamilyIPv6, prefix))
			}
		}
		return rules, true
	}

	network, ok := networks[peerNetwork]
	if !ok {
		return nil, false
	}
	group := peer.fqn + "/" + leafOf(peerNetwork)
	if network.IPv4 != nil {
		for _, p := range ports {
			rules = append(rules, groupRule(direction, p, group, FamilyIPv4, network.IPv4.CIDR))
		}
	}
	if network.IPv6 != nil {
		for _, p := range ports {
			rules = append(rules, groupRule(direction, p, group, FamilyIPv6, network.IPv6.CIDR))
		}
	}
	return rules, true
}

func cidrRule(direction string, p Port, family, prefix string) Rule {
	return Rule{
		Direction: direction,
		Mode:      ModeCIDR,
		Protocol:  p.Protocol,
		Min:       p.Min,
		Max:       p.Max,
		Family:    family,
		Prefix:    prefix,
	}
}

func groupRule(direction string, p Port, group, family, prefix string) Rule {
	return Rule{
		Direction: direction,
		Mode:      ModeGroup,
		Group:     group,
		Protocol:  p.Protocol,
		Min:       p.Min,
		Max:       p.Max,
		Family:    family,
		Prefix:    prefix,
	}
}

// addRules appends rules to the component interface bound to network. It
// returns false if the component has no such interface.
func addRules(c *InternalComponent, network string, rules []Rule) bool {
	for i := range c.Interfaces {
		if c.Interfaces[i].Network == network {
			c.Interfaces[i].Rules = append(c.Interfaces[i].Rules, rules...)
			return true
		}
	}
	return false
}

// fanOutRules copies each component interface's binding and rules to the
// same interface index on every node, creating node interfaces where missing.
func (m *Model) fanOutRules() {
	for _, v := range m.VNFs {
		for _, t := range v.Tenants {
			for _, c := range t.Components {
				for _, n := range c.Nodes {
					for i, iface := range c.Interfaces {
						if i >= len(n.Interfaces) {
							n.Interfaces = append(n.Interfaces, Interface{
								Name:    iface.Name,
								Network: iface.Network,
								State:   n.State,
							})
						}
						n.Interfaces[i].Name = iface.Name
						n.Interfaces[i].Network = iface.Network
						n.Interfaces[i].Rules = append([]Rule{}, iface.Rules...)
					}
				}
			}
		}
	}
}
