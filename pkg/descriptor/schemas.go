package descriptor

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// DescriptorSchema names the schema every source file is checked against.
const DescriptorSchema = "Descriptor"

// SchemaRegistry manages CUE schemas for descriptor validation. Node template
// properties are checked against the schema named after the template kind.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	if err := sr.registerBuiltInSchemas(); err != nil {
		// the built-in source is a constant
		panic(err)
	}

	return sr
}

func (sr *SchemaRegistry) registerBuiltInSchemas() error {
	for _, name := range []string{
		DescriptorSchema,
		"VNF",
		"Tenant",
		"Network",
		"ExternalComponent",
		"InternalComponent",
		"Node",
	} {
		if err := sr.RegisterSchema(name, builtinSchemas); err != nil {
			return err
		}
	}
	return nil
}

// RegisterSchema compiles source and registers its #<name> definition under
// name, replacing any previous schema of that name.
func (sr *SchemaRegistry) RegisterSchema(name, source string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(source, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	def := val.LookupPath(cue.ParsePath("#" + name))
	if !def.Exists() {
		return fmt.Errorf("schema %s does not define #%s", name, name)
	}
	if err := def.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.schemas[name] = def
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ListSchemas returns all registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check unifies data with the named schema and returns one finding per
// violation. Finding paths are relative to data and start with "/".
func (sr *SchemaRegistry) Check(schemaName string, data interface{}) ([]ValidationError, error) {
	// a cue.Context is not safe for concurrent use
	sr.mu.Lock()
	defer sr.mu.Unlock()

	schema, ok := sr.schemas[schemaName]
	if !ok {
		return nil, fmt.Errorf("schema %s not found", schemaName)
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return nil, fmt.Errorf("failed to encode data: %w", err)
	}

	unified := schema.Unify(dataVal)
	err := unified.Validate(cue.All(), cue.Concrete(true))
	if err == nil {
		return nil, nil
	}
	return convertCUEErrors(err), nil
}

// convertCUEErrors converts CUE errors to findings, dropping the definition
// prefix from each path.
func convertCUEErrors(err error) []ValidationError {
	var findings []ValidationError
	seen := make(map[string]bool)

	for _, e := range errors.Errors(err) {
		var parts []string
		for _, p := range e.Path() {
			if strings.HasPrefix(p, "#") {
				continue
			}
			parts = append(parts, p)
		}

		format, args := e.Msg()
		finding := ValidationError{
			Path:    "/" + strings.Join(parts, "/"),
			Message: fmt.Sprintf(format, args...),
		}
		if key := finding.Error(); !seen[key] {
			seen[key] = true
			findings = append(findings, finding)
		}
	}

	return findings
}

// Built-in schema definitions. Property schemas are closed, so unknown
// properties are reported.
const builtinSchemas = `
#Descriptor: {
	tosca_definitions_version: string
	description?:              string
	metadata?: {...}
	topology_template: {
		node_templates: null | {[string]: {...}}
		...
	}
	...
}

#State: string & !=""

#Port: {
	protocol: "tcp" | "udp" | "icmp" | "sctp" | "any"
	min:      int & >=0 & <=65535
	max:      int & >=min & <=65535
}

#Service: {
	name:    string & !=""
	network: string & !=""
	ports?: [...#Port]
}

#Dependency: {
	service: string & !=""
	network: string & !=""
}

#IPConfig: {
	cidr?:    string
	gateway?: string
	dns?: [...string]
	dhcp?:  bool
	start?: string
	end?:   string
}

#Interface: {
	name?:   string
	network: string & !=""
	ipv4?:   string
	ipv6?:   string
	state?:  #State
}

#Volume: {
	name:   string & !=""
	size:   int & >0
	type?:  string
	mount?: string
	state?: #State
}

#Metadata: {
	key:   string
	value: string
}

#Flavor: {
	name:   string & !=""
	vcpus?: int & >=0
	ram?:   int & >=0
	disk?:  int & >=0
}

#Sizing: {
	min:   int & >=0
	max:   int & >=min
	size?: int & >=0
}

#Common: {
	name:         string & !=""
	state:        #State
	description?: string
	version?:     string
}

#Workload: {
	#Common
	placement?: string
	flavor?:    string
	image?:     string
	user_data?: [...string]
	metadata?: [...#Metadata]
	volumes?: [...#Volume]
	interfaces?: [...#Interface]
	dependencies?: [...#Dependency]
	services?: [...#Service]
}

#VNF: {
	#Common
	vendor?:     string
	public_key?: string
}

#Tenant: {
	#Common
	datacenter?: string
	flavors?: [...#Flavor]
}

#Network: {
	#Common
	target?: string
	ipv4?:   #IPConfig
	ipv6?:   #IPConfig
}

#ExternalComponent: {
	#Common
	network?: string
	ipv4?: [...string]
	ipv6?: [...string]
	dependencies?: [...#Dependency]
	services?: [...#Service]
}

#InternalComponent: {
	#Workload
	sizing?: #Sizing
}

#Node: {
	#Workload
}
`
