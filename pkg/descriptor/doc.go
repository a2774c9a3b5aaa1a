// Package descriptor reads TOSCA service descriptors and turns them into
// engine batches.
//
// A descriptor is a YAML or CUE document whose
// topology_template.node_templates maps entity FQNs to a type and a
// properties block:
//
//	tosca_definitions_version: tosca_simple_yaml_1_0
//	topology_template:
//	  node_templates:
//	    /vnf1:
//	      type: ao.nodes.VNF
//	      properties: {name: vnf1, state: defined}
//
// Only the suffix of the type after the last dot is significant. Node
// templates keep their source order, which is the order the engine applies
// them in.
//
// Validation happens in two passes. SchemaRegistry checks the document
// shape and every properties block against built-in CUE schemas and
// reports findings as "/topology_template/node_templates/<fqn>...: message".
// ToBatch then decodes the properties, checks value constraints with
// validator struct tags and builds the statements.
package descriptor
