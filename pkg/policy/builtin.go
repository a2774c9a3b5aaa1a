package policy

// BuiltinPolicies returns the policies every engine starts with.
func BuiltinPolicies() []Policy {
	return []Policy{
		consistentModelPolicy(),
		vnfRemovalPolicy(),
		routedNetworkRemovalPolicy(),
		nodeScaleDownPolicy(),
	}
}

// consistentModelPolicy rejects plans towards a model with dangling
// references.
func consistentModelPolicy() Policy {
	return Policy{
		Name:        "consistent-model",
		Description: "The target model must resolve every dependency and link",
		Severity:    SeverityError,
		Enabled:     true,
		Builtin:     true,
		Rego: `package vnflcm.policies.consistency

import rego.v1

deny contains violation if {
	input.model
	input.model.consistent == false
	violation := {
		"message": sprintf("model %s version %d is inconsistent", [input.model.context, input.model.version]),
		"severity": "error",
		"resource": input.model.context,
	}
}`,
	}
}

// vnfRemovalPolicy flags the removal of a whole VNF.
func vnfRemovalPolicy() Policy {
	return Policy{
		Name:        "vnf-removal",
		Description: "Removing a VNF tears down all of its tenants",
		Severity:    SeverityError,
		Enabled:     true,
		Builtin:     true,
		Rego: `package vnflcm.policies.vnfremoval

import rego.v1

deny contains violation if {
	some vnf in input.delta.vnfs
	vnf.action == "remove"
	violation := {
		"message": sprintf("VNF %s is removed", [vnf.fqn]),
		"severity": "error",
		"resource": vnf.fqn,
	}
}`,
	}
}

// routedNetworkRemovalPolicy warns when a network with a route target is
// deleted explicitly. Such networks are usually shared outside the tenant.
func routedNetworkRemovalPolicy() Policy {
	return Policy{
		Name:        "routed-network-removal",
		Description: "Networks carrying a route target are managed outside their tenant",
		Severity:    SeverityWarning,
		Enabled:     true,
		Builtin:     true,
		Rego: `package vnflcm.policies.routednetwork

import rego.v1

routed contains network.fqn if {
	some vnf in input.previous.vnfs
	some tenant in vnf.tenants
	some network in tenant.networks
	network.target != ""
}

deny contains violation if {
	some step in input.plan.steps
	step.type == "Network"
	step.operation == "delete"
	routed[step.fqn]
	violation := {
		"message": sprintf("network %s with a route target is deleted", [step.fqn]),
		"severity": "warning",
		"resource": step.fqn,
	}
}`,
	}
}

// nodeScaleDownPolicy warns when more than half of the existing nodes of a
// surviving component are deleted at once.
func nodeScaleDownPolicy() Policy {
	return Policy{
		Name:        "node-scale-down",
		Description: "A surviving component should not lose more than half of its nodes in one plan",
		Severity:    SeverityWarning,
		Enabled:     true,
		Builtin:     true,
		Rego: `package vnflcm.policies.scaledown

import rego.v1

deny contains violation if {
	some vnf in input.delta.vnfs
	some tenant in vnf.tenants
	some component in tenant.components
	component.action in {"keep", "change"}
	nodes := object.get(component, "nodes", [])
	existing := [n | some n in nodes; n.action != "add"]
	removed := [n | some n in nodes; n.action == "remove"]
	count(removed) * 2 > count(existing)
	violation := {
		"message": sprintf("component %s loses %d of %d nodes", [component.fqn, count(removed), count(existing)]),
		"severity": "warning",
		"resource": component.fqn,
	}
}`,
	}
}
