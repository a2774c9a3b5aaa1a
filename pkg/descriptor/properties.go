package descriptor

import (
	"github.com/openfroyo/vnflcm/pkg/engine"
)

// Property shapes of each node template kind. They carry the struct tags
// checked by ToBatch and convert into engine statements.

type commonProps struct {
	Name        string  `json:"name" validate:"required"`
	State       string  `json:"state" validate:"required"`
	Description *string `json:"description"`
	Version     *string `json:"version"`
}

func (c commonProps) meta(fqn engine.FQN) engine.StatementMeta {
	return engine.StatementMeta{
		FQN:   fqn,
		Name:  c.Name,
		State: engine.State(c.State),
	}
}

type vnfProps struct {
	commonProps
	Vendor    *string `json:"vendor"`
	PublicKey *string `json:"public_key" validate:"omitempty,ssh_public_key"`
}

type tenantProps struct {
	commonProps
	Datacenter *string       `json:"datacenter"`
	Flavors    []flavorProps `json:"flavors" validate:"dive"`
}

type networkProps struct {
	commonProps
	Target *string        `json:"target"`
	IPv4   *ipConfigProps `json:"ipv4"`
	IPv6   *ipConfigProps `json:"ipv6"`
}

type externalComponentProps struct {
	commonProps
	Network      *string           `json:"network"`
	IPv4         []string          `json:"ipv4" validate:"dive,cidrv4|ipv4"`
	IPv6         []string          `json:"ipv6" validate:"dive,cidrv6|ipv6"`
	Dependencies []dependencyProps `json:"dependencies" validate:"dive"`
	Services     []serviceProps    `json:"services" validate:"dive"`
}

type workloadProps struct {
	commonProps
	Placement    *string           `json:"placement"`
	Flavor       *string           `json:"flavor"`
	Image        *string           `json:"image"`
	UserData     []string          `json:"user_data"`
	Metadata     []metadataProps   `json:"metadata" validate:"dive"`
	Volumes      []volumeProps     `json:"volumes" validate:"dive"`
	Interfaces   []interfaceProps  `json:"interfaces" validate:"dive"`
	Dependencies []dependencyProps `json:"dependencies" validate:"dive"`
	Services     []serviceProps    `json:"services" validate:"dive"`
}

type internalComponentProps struct {
	workloadProps
	Sizing *sizingProps `json:"sizing"`
}

type nodeProps struct {
	workloadProps
}

type flavorProps struct {
	Name  string `json:"name" validate:"required"`
	VCPUs int    `json:"vcpus" validate:"gte=0"`
	RAM   int    `json:"ram" validate:"gte=0"`
	Disk  int    `json:"disk" validate:"gte=0"`
}

type ipConfigProps struct {
	CIDR    string   `json:"cidr" validate:"omitempty,cidr"`
	Gateway string   `json:"gateway" validate:"omitempty,ip"`
	DNS     []string `json:"dns" validate:"dive,ip"`
	DHCP    bool     `json:"dhcp"`
	Start   string   `json:"start" validate:"omitempty,ip"`
	End     string   `json:"end" validate:"omitempty,ip"`
}

type portProps struct {
	Protocol string `json:"protocol" validate:"required,oneof=tcp udp icmp sctp any"`
	Min      int    `json:"min" validate:"gte=0,lte=65535"`
	Max      int    `json:"max" validate:"gte=0,lte=65535,gtefield=Min"`
}

type serviceProps struct {
	Name    string      `json:"name" validate:"required"`
	Network string      `json:"network" validate:"required"`
	Ports   []portProps `json:"ports" validate:"dive"`
}

type dependencyProps struct {
	Service string `json:"service" validate:"required"`
	Network string `json:"network" validate:"required"`
}

type interfaceProps struct {
	Name    string `json:"name"`
	Network string `json:"network" validate:"required"`
	IPv4    string `json:"ipv4" validate:"omitempty,ipv4"`
	IPv6    string `json:"ipv6" validate:"omitempty,ipv6"`
	State   string `json:"state"`
}

type volumeProps struct {
	Name  string `json:"name" validate:"required"`
	Size  int    `json:"size" validate:"gt=0"`
	Type  string `json:"type"`
	Mount string `json:"mount"`
	State string `json:"state"`
}

type metadataProps struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value"`
}

type sizingProps struct {
	Min  int `json:"min" validate:"gte=0"`
	Max  int `json:"max" validate:"gtefield=Min"`
	Size int `json:"size" validate:"gte=0"`
}

func (p *vnfProps) statement(fqn engine.FQN) engine.Statement {
	return &engine.VNFStatement{
		StatementMeta: p.meta(fqn),
		Description:   p.Description,
		Version:       p.Version,
		Vendor:        p.Vendor,
		PublicKey:     p.PublicKey,
	}
}

func (p *tenantProps) statement(fqn engine.FQN) engine.Statement {
	st := &engine.TenantStatement{
		StatementMeta: p.meta(fqn),
		Description:   p.Description,
		Version:       p.Version,
		Datacenter:    p.Datacenter,
	}
	for _, f := range p.Flavors {
		st.Flavors = append(st.Flavors, engine.Flavor(f))
	}
	return st
}

func (p *networkProps) statement(fqn engine.FQN) engine.Statement {
	return &engine.NetworkStatement{
		StatementMeta: p.meta(fqn),
		Description:   p.Description,
		Version:       p.Version,
		RouteTarget:   p.Target,
		IPv4:          p.IPv4.ipConfig(),
		IPv6:          p.IPv6.ipConfig(),
	}
}

func (p *externalComponentProps) statement(fqn engine.FQN) engine.Statement {
	return &engine.ExternalComponentStatement{
		StatementMeta: p.meta(fqn),
		Description:   p.Description,
		Version:       p.Version,
		Network:       p.Network,
		IPv4:          p.IPv4,
		IPv6:          p.IPv6,
		Dependencies:  dependencies(p.Dependencies),
		Services:      services(p.Services),
	}
}

func (p *internalComponentProps) statement(fqn engine.FQN) engine.Statement {
	st := &engine.InternalComponentStatement{
		StatementMeta: p.meta(fqn),
		Description:   p.Description,
		Version:       p.Version,
		Placement:     p.Placement,
		Flavor:        p.Flavor,
		Image:         p.Image,
		UserData:      p.UserData,
		Metadata:      metadata(p.Metadata),
		Volumes:       volumes(p.Volumes),
		Interfaces:    interfaces(p.Interfaces),
		Dependencies:  dependencies(p.Dependencies),
		Services:      services(p.Services),
	}
	if p.Sizing != nil {
		st.Sizing = &engine.Sizing{Min: p.Sizing.Min, Max: p.Sizing.Max, Size: p.Sizing.Size}
	}
	return st
}

func (p *nodeProps) statement(fqn engine.FQN) engine.Statement {
	return &engine.NodeStatement{
		StatementMeta: p.meta(fqn),
		Description:   p.Description,
		Version:       p.Version,
		Placement:     p.Placement,
		Flavor:        p.Flavor,
		Image:         p.Image,
		UserData:      p.UserData,
		Metadata:      metadata(p.Metadata),
		Volumes:       volumes(p.Volumes),
		Interfaces:    interfaces(p.Interfaces),
		Dependencies:  dependencies(p.Dependencies),
		Services:      services(p.Services),
	}
}

func (c *ipConfigProps) ipConfig() *engine.IPConfig {
	if c == nil {
		return nil
	}
	return &engine.IPConfig{
		CIDR:    c.CIDR,
		Gateway: c.Gateway,
		DNS:     c.DNS,
		DHCP:    c.DHCP,
		Start:   c.Start,
		End:     c.End,
	}
}

func services(in []serviceProps) []engine.Service {
	if in == nil {
		return nil
	}
	out := make([]engine.Service, 0, len(in))
	for _, s := range in {
		svc := engine.Service{Name: s.Name, Network: s.Network, Ports: []engine.Port{}}
		for _, p := range s.Ports {
			svc.Ports = append(svc.Ports, engine.Port(p))
		}
		out = append(out, svc)
	}
	return out
}

func dependencies(in []dependencyProps) []engine.Dependency {
	if in == nil {
		return nil
	}
	out := make([]engine.Dependency, 0, len(in))
	for _, d := range in {
		out = append(out, engine.Dependency(d))
	}
	return out
}

func interfaces(in []interfaceProps) []engine.Interface {
	if in == nil {
		return nil
	}
	out := make([]engine.Interface, 0, len(in))
	for _, i := range in {
		out = append(out, engine.Interface{
			Name:    i.Name,
			Network: i.Network,
			IPv4:    i.IPv4,
			IPv6:    i.IPv6,
			State:   engine.State(i.State),
			Rules:   []engine.Rule{},
		})
	}
	return out
}

func volumes(in []volumeProps) []engine.Volume {
	if in == nil {
		return nil
	}
	out := make([]engine.Volume, 0, len(in))
	for _, v := range in {
		out = append(out, engine.Volume{
			Name:  v.Name,
			Size:  v.Size,
			Type:  v.Type,
			Mount: v.Mount,
			State: engine.State(v.State),
		})
	}
	return out
}

func metadata(in []metadataProps) []engine.Metadata {
	if in == nil {
		return nil
	}
	out := make([]engine.Metadata, 0, len(in))
	for _, m := range in {
		out = append(out, engine.Metadata(m))
	}
	return out
}
