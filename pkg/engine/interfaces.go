package engine

import (
	"context"
)

// ActuationRequest is handed to an Actuator for each plan step.
type ActuationRequest struct {
	// RunID identifies the run executing the step.
	RunID string `json:"run_id"`

	// Context is the deployment context of the plan.
	Context string `json:"context"`

	// Step is the step to actuate.
	Step Step `json:"step"`

	// Entity is the model record the step targets: the new record for create
	// and update, the old record for delete. It may be nil.
	Entity any `json:"entity,omitempty"`
}

// Actuator applies a single plan step to the infrastructure. The engine never
// talks to a provider itself; implementations live outside this package.
// Returning an error classified as transient makes the step eligible for
// retry.
type Actuator interface {
	Actuate(ctx context.Context, req ActuationRequest) error
}

// ActuatorFunc adapts a function to the Actuator interface.
type ActuatorFunc func(ctx context.Context, req ActuationRequest) error

// Actuate implements Actuator.
func (f ActuatorFunc) Actuate(ctx context.Context, req ActuationRequest) error {
	return f(ctx, req)
}

// StepRecorder receives the terminal result of every step of a run.
type StepRecorder interface {
	RecordStep(ctx context.Context, runID string, result StepResult)
}

// EntityResolver returns the model record a step targets, or nil.
type EntityResolver func(step Step) any

// ResolveFrom returns an EntityResolver looking up created and updated
// entities in to and deleted entities in from. Either model may be nil.
func ResolveFrom(from, to *Model) EntityResolver {
	return func(step Step) any {
		m := to
		if step.Operation == OperationDelete {
			m = from
		}
		if m == nil {
			return nil
		}
		entity, ok := m.Lookup(step.Type, step.FQN)
		if !ok {
			return nil
		}
		return entity
	}
}
