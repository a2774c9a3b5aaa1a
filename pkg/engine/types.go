package engine

// ModelSchema is the schema tag written into every canonical model.
const ModelSchema = "V0.1.1"

// Model is the versioned canonical state tree of one deployment context.
type Model struct {
	// Schema is the canonical model schema version.
	Schema string `json:"schema" yaml:"schema"`

	// Type is always "Model".
	Type string `json:"type" yaml:"type"`

	// Context names the deployment this model belongs to.
	Context string `json:"context" yaml:"context"`

	// Version is incremented exactly once per successfully applied batch.
	Version int `json:"version" yaml:"version"`

	// Consistent is false when reference resolution found a dangling
	// dependency or a link endpoint without a matching interface.
	Consistent bool `json:"consistent" yaml:"consistent"`

	// Networks are global networks visible to every tenant.
	Networks []*Network `json:"networks" yaml:"networks"`

	// Components are global external components.
	Components []*ExternalComponent `json:"components" yaml:"components"`

	// VNFs are the deployable units.
	VNFs []*VNF `json:"vnfs" yaml:"vnfs"`
}

// VNF is a virtual network function owning one or more tenants.
type VNF struct {
	FQN         FQN        `json:"fqn" yaml:"fqn"`
	Type        EntityType `json:"type" yaml:"type"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Version     string     `json:"version" yaml:"version"`
	Vendor      string     `json:"vendor" yaml:"vendor"`
	State       State      `json:"state" yaml:"state"`
	PublicKey   string     `json:"public_key" yaml:"public_key"`
	Tenants     []*Tenant  `json:"tenants" yaml:"tenants"`
}

// Tenant is an isolated resource scope within a VNF.
type Tenant struct {
	FQN         FQN                  `json:"fqn" yaml:"fqn"`
	Type        EntityType           `json:"type" yaml:"type"`
	Name        string               `json:"name" yaml:"name"`
	Description string               `json:"description" yaml:"description"`
	Version     string               `json:"version" yaml:"version"`
	Datacenter  string               `json:"datacenter" yaml:"datacenter"`
	State       State                `json:"state" yaml:"state"`
	Flavors     []Flavor             `json:"flavors" yaml:"flavors"`
	Networks    []*Network           `json:"networks" yaml:"networks"`
	Components  []*InternalComponent `json:"components" yaml:"components"`
}

// Network is a subnet. Tenant networks carrying a route target are assumed
// to be managed independently of their tenant.
type Network struct {
	FQN         FQN        `json:"fqn" yaml:"fqn"`
	Type        EntityType `json:"type" yaml:"type"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Version     string     `json:"version" yaml:"version"`
	Target      string     `json:"target" yaml:"target"`
	State       State      `json:"state" yaml:"state"`
	IPv4        *IPConfig  `json:"ipv4,omitempty" yaml:"ipv4,omitempty"`
	IPv6        *IPConfig  `json:"ipv6,omitempty" yaml:"ipv6,omitempty"`
}

// IPConfig is the addressing of one address family on a network.
type IPConfig struct {
	CIDR    string   `json:"cidr" yaml:"cidr"`
	Gateway string   `json:"gateway" yaml:"gateway"`
	DNS     []string `json:"dns" yaml:"dns"`
	DHCP    bool     `json:"dhcp" yaml:"dhcp"`
	Start   string   `json:"start" yaml:"start"`
	End     string   `json:"end" yaml:"end"`
}

// ExternalComponent is an endpoint outside the model, addressed by literal
// IP prefixes.
type ExternalComponent struct {
	FQN          FQN          `json:"fqn" yaml:"fqn"`
	Type         EntityType   `json:"type" yaml:"type"`
	Name         string       `json:"name" yaml:"name"`
	Description  string       `json:"description" yaml:"description"`
	Version      string       `json:"version" yaml:"version"`
	Network      string       `json:"network" yaml:"network"`
	State        State        `json:"state" yaml:"state"`
	IPv4         []string     `json:"ipv4" yaml:"ipv4"`
	IPv6         []string     `json:"ipv6" yaml:"ipv6"`
	Dependencies []Dependency `json:"dependencies" yaml:"dependencies"`
	Services     []Service    `json:"services" yaml:"services"`
}

// InternalComponent is a workload definition replicated into nodes.
type InternalComponent struct {
	FQN          FQN          `json:"fqn" yaml:"fqn"`
	Type         EntityType   `json:"type" yaml:"type"`
	Name         string       `json:"name" yaml:"name"`
	Description  string       `json:"description" yaml:"description"`
	Version      string       `json:"version" yaml:"version"`
	Placement    string       `json:"placement" yaml:"placement"`
	Flavor       string       `json:"flavor" yaml:"flavor"`
	Image        string       `json:"image" yaml:"image"`
	State        State        `json:"state" yaml:"state"`
	Sizing       Sizing       `json:"sizing" yaml:"sizing"`
	UserData     []string     `json:"user_data" yaml:"user_data"`
	Metadata     []Metadata   `json:"metadata" yaml:"metadata"`
	Volumes      []Volume     `json:"volumes" yaml:"volumes"`
	Interfaces   []Interface  `json:"interfaces" yaml:"interfaces"`
	Dependencies []Dependency `json:"dependencies" yaml:"dependencies"`
	Services     []Service    `json:"services" yaml:"services"`
	Nodes        []*Node      `json:"nodes" yaml:"nodes"`
}

// Node is one replica of an internal component. Its interfaces mirror the
// component's interfaces index for index.
type Node struct {
	FQN          FQN          `json:"fqn" yaml:"fqn"`
	Type         EntityType   `json:"type" yaml:"type"`
	Name         string       `json:"name" yaml:"name"`
	Description  string       `json:"description" yaml:"description"`
	Version      string       `json:"version" yaml:"version"`
	Placement    string       `json:"placement" yaml:"placement"`
	Flavor       string       `json:"flavor" yaml:"flavor"`
	Image        string       `json:"image" yaml:"image"`
	State        State        `json:"state" yaml:"state"`
	UserData     []string     `json:"user_data" yaml:"user_data"`
	Metadata     []Metadata   `json:"metadata" yaml:"metadata"`
	Volumes      []Volume     `json:"volumes" yaml:"volumes"`
	Interfaces   []Interface  `json:"interfaces" yaml:"interfaces"`
	Dependencies []Dependency `json:"dependencies" yaml:"dependencies"`
	Services     []Service    `json:"services" yaml:"services"`
}

// Sizing bounds the live node count of an internal component.
type Sizing struct {
	Min  int `json:"min" yaml:"min"`
	Max  int `json:"max" yaml:"max"`
	Size int `json:"size" yaml:"size"`
}

// Flavor is a compute shape offered by a tenant.
type Flavor struct {
	Name  string `json:"name" yaml:"name"`
	VCPUs int    `json:"vcpus" yaml:"vcpus"`
	RAM   int    `json:"ram" yaml:"ram"`
	Disk  int    `json:"disk" yaml:"disk"`
}

// Metadata is a key/value pair handed to the compute backend.
type Metadata struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Volume is a block device attached to a component's nodes.
type Volume struct {
	Name  string `json:"name" yaml:"name"`
	Size  int    `json:"size" yaml:"size"`
	Type  string `json:"type,omitempty" yaml:"type,omitempty"`
	Mount string `json:"mount,omitempty" yaml:"mount,omitempty"`
	State State  `json:"state,omitempty" yaml:"state,omitempty"`
}

// Interface binds a component or node to a network. Rules are derived from
// service dependencies and regenerated on every apply.
type Interface struct {
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Network string `json:"network" yaml:"network"`
	IPv4    string `json:"ipv4,omitempty" yaml:"ipv4,omitempty"`
	IPv6    string `json:"ipv6,omitempty" yaml:"ipv6,omitempty"`
	State   State  `json:"state,omitempty" yaml:"state,omitempty"`
	Rules   []Rule `json:"rules" yaml:"rules"`
}

// Port is a protocol and inclusive port range.
type Port struct {
	Protocol string `json:"protocol" yaml:"protocol"`
	Min      int    `json:"min" yaml:"min"`
	Max      int    `json:"max" yaml:"max"`
}

// Service is a capability a component offers on one of its networks.
type Service struct {
	Name    string `json:"name" yaml:"name"`
	Network string `json:"network" yaml:"network"`
	Ports   []Port `json:"ports" yaml:"ports"`
}

// Dependency references another component's service as
// "<component fqn>/<service name>", reached through Network.
type Dependency struct {
	Service string `json:"service" yaml:"service"`
	Network string `json:"network" yaml:"network"`
}

// Rule directions, modes and families.
const (
	DirectionIngress = "ingress"
	DirectionEgress  = "egress"

	ModeCIDR  = "cidr"
	ModeGroup = "group"

	FamilyIPv4 = "IPv4"
	FamilyIPv6 = "IPv6"
)

// Rule is a synthesized security rule on an interface. Group is only set in
// group mode.
type Rule struct {
	Direction string `json:"direction" yaml:"direction"`
	Mode      string `json:"mode" yaml:"mode"`
	Group     string `json:"group,omitempty" yaml:"group,omitempty"`
	Protocol  string `json:"protocol" yaml:"protocol"`
	Min       int    `json:"min" yaml:"min"`
	Max       int    `json:"max" yaml:"max"`
	Family    string `json:"family" yaml:"family"`
	Prefix    string `json:"prefix" yaml:"prefix"`
}
