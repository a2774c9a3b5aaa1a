// Package lifecycle runs the model lifecycle of deployment contexts.
//
// A Manager keeps one canonical model per context in a store and moves it
// through four operations:
//
//   - Apply commits a batch of statements as the next model version.
//   - Diff compares two stored versions.
//   - Plan turns a diff into an action plan, checks it against the policy
//     engine and stores it.
//   - Execute runs a stored plan through an actuator and records the run.
//
// Operations on one context are serialized. Every outcome is published as a
// telemetry event, appended to the store's event log and, for state changes,
// written to the audit trail.
//
// Example:
//
//	mgr := lifecycle.NewManager(store, lifecycle.Options{
//		Policy:    policies,
//		Telemetry: tel,
//	})
//
//	if _, err := mgr.ApplyDescriptors(ctx, "lab", "descriptors/"); err != nil {
//		return err
//	}
//	planned, err := mgr.Plan(ctx, "lab", lifecycle.Previous, lifecycle.Latest)
//
// Watcher re-applies descriptor files whenever they change.
package lifecycle
