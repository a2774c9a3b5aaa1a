package descriptor

import (
	"fmt"
)

// NodeTemplatesPath is the document path every node template lives under.
const NodeTemplatesPath = "/topology_template/node_templates"

// Document is a TOSCA service descriptor. Node templates keep the order in
// which they appear in their source files.
type Document struct {
	// Version is the tosca_definitions_version header.
	Version string `json:"tosca_definitions_version" yaml:"tosca_definitions_version"`

	// Description is free text.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Metadata is the free-form metadata block.
	Metadata map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// Templates are the node templates in document order.
	Templates []NodeTemplate `json:"node_templates" yaml:"node_templates"`

	// Sources lists the files the document was read from.
	Sources []string `json:"sources,omitempty" yaml:"-"`

	// headers holds the raw decoded form of every source file, checked
	// against the #Descriptor schema.
	headers []header
}

type header struct {
	source string
	raw    map[string]interface{}
}

// NodeTemplate is one entry of topology_template.node_templates.
type NodeTemplate struct {
	// FQN is the template key, the fully qualified name of the entity.
	FQN string `json:"fqn" yaml:"fqn"`

	// Type is the TOSCA type, e.g. "ao.nodes.InternalComponent". Only the
	// suffix after the last dot selects the entity type.
	Type string `json:"type" yaml:"type"`

	// Properties are the raw entity attributes. Nil when the template has
	// no properties block.
	Properties map[string]interface{} `json:"properties" yaml:"properties"`
}

// Kind returns the entity type suffix of the template type.
func (t NodeTemplate) Kind() string {
	for i := len(t.Type) - 1; i >= 0; i-- {
		if t.Type[i] == '.' {
			return t.Type[i+1:]
		}
	}
	return t.Type
}

// ValidationError is a single finding against a descriptor.
type ValidationError struct {
	// Path locates the finding, e.g.
	// "/topology_template/node_templates/vnf1/properties/name".
	Path string `json:"path"`

	// Message describes the finding.
	Message string `json:"message"`

	// Source is the file the finding belongs to, when known.
	Source string `json:"source,omitempty"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// templatePath returns the path of a node template.
func templatePath(fqn string) string {
	return NodeTemplatesPath + "/" + fqn
}
