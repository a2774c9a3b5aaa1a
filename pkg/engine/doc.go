// Package engine implements the VNF lifecycle reconciliation core.
//
// # Overview
//
// The engine is a deterministic function from (old state, declarative input)
// to (new state, delta, ordered plan). It performs no I/O:
//
//  1. Apply - Apply a batch of statements to the canonical model (Model.Apply)
//  2. Diff - Compare two model versions (Compute)
//  3. Plan - Flatten the delta into an ordered action plan (Plan)
//  4. Graph - Derive the execution DAG of the plan (BuildGraph)
//  5. Execute - Hand each step to an injected Actuator (Executor)
//
// # Canonical Model
//
// Entities are addressed by FQN, a structured path whose wire form is
// slash-joined:
//
//	Model
//	 ├─ Network[]            /net
//	 ├─ ExternalComponent[]  /ext
//	 └─ VNF[]                /vnf
//	     └─ Tenant[]         /vnf/tenant
//	         ├─ Network[]            /vnf/tenant/net
//	         └─ InternalComponent[]  /vnf/tenant/comp
//	             └─ Node[]           /vnf/tenant/comp/node
//
// Statements are a closed set of types dispatched with a type switch. A
// statement whose state is "undefined" removes its entity. Other states
// cascade down the containment tree.
//
// After every batch, service dependencies are resolved into links and each
// link yields egress and ingress security rules on the interfaces of the
// internal components involved. Rules are mirrored onto every node.
// Unresolved dependencies do not fail the batch; they clear Model.Consistent.
//
// # Error Classification
//
//   - Context: the parent of a statement does not exist
//   - Reference: a network or flavor reference cannot be resolved
//   - Sizing: a node add or remove violates the component sizing
//   - Validation: a malformed statement or plan
//   - Transient: a retryable actuation failure
//   - Permanent: a non-recoverable actuation failure
//
// Use the helper functions to inspect errors:
//
//	if engine.IsSizingError(err) {
//	    // reject the descriptor
//	}
//
// # Example Usage
//
//	model := engine.NewModel("lab")
//	if err := model.Apply(batch); err != nil {
//	    return err
//	}
//
//	delta := engine.Compute(previous, model)
//	plan := engine.Plan(delta)
//	graph, err := engine.BuildGraph(plan)
//
//	exec := engine.NewExecutor(actuator, engine.DefaultExecutorOptions()).
//	    WithResolver(engine.ResolveFrom(previous, model))
//	result, err := exec.Execute(ctx, runID, plan, graph)
//
// # Thread Safety
//
// Model.Apply requires exclusive access to the model. Compute, Plan and
// BuildGraph only read their inputs and may run concurrently on distinct
// snapshots.
package engine
