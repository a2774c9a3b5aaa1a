package engine

// Statement is one typed declarative entry of a batch. The set of
// implementations is closed: VNFStatement, TenantStatement, NetworkStatement,
// ExternalComponentStatement, InternalComponentStatement and NodeStatement.
type Statement interface {
	// Target returns the FQN the statement applies to.
	Target() FQN

	// Kind returns the entity type the statement declares.
	Kind() EntityType

	statement()
}

// Batch is an ordered list of statements applied as one unit.
type Batch []Statement

// StatementMeta carries the fields common to every statement.
type StatementMeta struct {
	FQN   FQN
	Name  string
	State State
}

// Target implements Statement.
func (m StatementMeta) Target() FQN {
	return m.FQN
}

// effectiveState treats an unset state as defined.
func (m StatementMeta) effectiveState() State {
	if m.State == "" {
		return StateDefined
	}
	return m.State
}

// VNFStatement declares a VNF. Nil attributes are left unchanged.
type VNFStatement struct {
	StatementMeta
	Description *string
	Version     *string
	Vendor      *string
	PublicKey   *string
}

// TenantStatement declares a tenant.
type TenantStatement struct {
	StatementMeta
	Description *string
	Version     *string
	Datacenter  *string
	Flavors     []Flavor
}

// NetworkStatement declares a global or tenant network.
type NetworkStatement struct {
	StatementMeta
	Description *string
	Version     *string
	RouteTarget *string
	IPv4        *IPConfig
	IPv6        *IPConfig
}

// ExternalComponentStatement declares an external component.
type ExternalComponentStatement struct {
	StatementMeta
	Description  *string
	Version      *string
	Network      *string
	IPv4         []string
	IPv6         []string
	Dependencies []Dependency
	Services     []Service
}

// InternalComponentStatement declares an internal component.
type InternalComponentStatement struct {
	StatementMeta
	Description  *string
	Version      *string
	Placement    *string
	Flavor       *string
	Image        *string
	Sizing       *Sizing
	UserData     []string
	Metadata     []Metadata
	Volumes      []Volume
	Interfaces   []Interface
	Dependencies []Dependency
	Services     []Service
}

// NodeStatement declares a node of an internal component.
type NodeStatement struct {
	StatementMeta
	Description  *string
	Version      *string
	Placement    *string
	Flavor       *string
	Image        *string
	UserData     []string
	Metadata     []Metadata
	Volumes      []Volume
	Interfaces   []Interface
	Dependencies []Dependency
	Services     []Service
}

func (*VNFStatement) Kind() EntityType               { return EntityVNF }
func (*TenantStatement) Kind() EntityType            { return EntityTenant }
func (*NetworkStatement) Kind() EntityType           { return EntityNetwork }
func (*ExternalComponentStatement) Kind() EntityType { return EntityExternalComponent }
func (*InternalComponentStatement) Kind() EntityType { return EntityInternalComponent }
func (*NodeStatement) Kind() EntityType              { return EntityNode }

var (
	_ Statement = (*VNFStatement)(nil)
	_ Statement = (*TenantStatement)(nil)
	_ Statement = (*NetworkStatement)(nil)
	_ Statement = (*ExternalComponentStatement)(nil)
	_ Statement = (*InternalComponentStatement)(nil)
	_ Statement = (*NodeStatement)(nil)
)

func (*VNFStatement) statement()               {}
func (*TenantStatement) statement()            {}
func (*NetworkStatement) statement()           {}
func (*ExternalComponentStatement) statement() {}
func (*InternalComponentStatement) statement() {}
func (*NodeStatement) statement()              {}

// expectedDepth returns the FQN depths a statement kind may address.
func expectedDepth(kind EntityType) []int {
	switch kind {
	case EntityVNF, EntityExternalComponent:
		return []int{1}
	case EntityTenant:
		return []int{2}
	case EntityNetwork:
		return []int{1, 3}
	case EntityInternalComponent:
		return []int{3}
	case EntityNode:
		return []int{4}
	default:
		return nil
	}
}

// StringPtr returns a pointer to s, for building statements.
func StringPtr(s string) *string {
	return &s
}
