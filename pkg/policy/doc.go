// Package policy provides Open Policy Agent (OPA) checks for action plans.
//
// Policies are Rego modules defining a deny set. They are evaluated against
// an Input holding the action plan, the delta it was derived from, the
// target model and the model the plan starts from:
//
//	input.plan.steps[_]            {type, fqn, action, operation}
//	input.delta.vnfs[_].tenants    nested delta entries
//	input.model                    target canonical model
//	input.previous                 current canonical model
//
// # Usage
//
//	eng, err := policy.NewEngine(logger, policy.ModeEnforcing)
//	if err != nil {
//	    return err
//	}
//	if err := eng.LoadPolicies(ctx, []string{"./policies"}); err != nil {
//	    return err
//	}
//
//	result, err := eng.Evaluate(ctx, &policy.Input{Plan: plan, Delta: delta, Model: target})
//	if err != nil {
//	    return err
//	}
//	if !result.Allowed {
//	    for _, v := range result.Violations {
//	        fmt.Printf("%s: %s\n", v.Policy, v.Message)
//	    }
//	}
//
// # Built-in Policies
//
//  1. consistent-model (error) - the target model has no dangling references
//  2. vnf-removal (error) - a VNF is removed
//  3. routed-network-removal (warning) - a network with a route target is deleted
//  4. node-scale-down (warning) - a surviving component loses more than half of its nodes
//
// # Custom Policies
//
// Custom policies are .rego files named after the policy, or JSON documents
// with name, description, severity and rego keys:
//
//	# Databases are never scaled down by a plan.
//	# severity: error
//	package custom.policies.db
//
//	import rego.v1
//
//	deny contains violation if {
//	    some step in input.plan.steps
//	    step.type == "Node"
//	    step.operation == "delete"
//	    contains(step.fqn, "/db/")
//	    violation := {"message": sprintf("%s is deleted", [step.fqn]), "resource": step.fqn}
//	}
//
// # Modes
//
// In advisory mode every violation is reported and Result.Allowed stays
// true. In enforcing mode error and critical violations set Allowed to
// false and execution is refused.
//
// # Hot Reload
//
//	loader := policy.NewLoader(logger)
//	err = loader.Watch(ctx, paths, func(policies []policy.Policy) error {
//	    return eng.Reload(ctx, policies)
//	})
package policy
