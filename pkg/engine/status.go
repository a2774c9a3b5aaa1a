package engine

import (
	"encoding/json"
	"fmt"
)

// EntityType tags every entity in the canonical model.
type EntityType string

const (
	// EntityVNF is a virtual network function, the top-level deployable unit.
	EntityVNF EntityType = "VNF"

	// EntityTenant is an isolated resource scope within a VNF.
	EntityTenant EntityType = "Tenant"

	// EntityNetwork is a global or tenant-owned subnet.
	EntityNetwork EntityType = "Network"

	// EntityExternalComponent is an out-of-model endpoint addressed by prefixes.
	EntityExternalComponent EntityType = "ExternalComponent"

	// EntityInternalComponent is a workload replicated into nodes.
	EntityInternalComponent EntityType = "InternalComponent"

	// EntityNode is a single replica of an internal component.
	EntityNode EntityType = "Node"
)

// EntityTypes lists all entity types in containment order.
var EntityTypes = []EntityType{
	EntityVNF,
	EntityTenant,
	EntityNetwork,
	EntityExternalComponent,
	EntityInternalComponent,
	EntityNode,
}

// Validate checks if the entity type is valid.
func (t EntityType) Validate() error {
	switch t {
	case EntityVNF, EntityTenant, EntityNetwork, EntityExternalComponent,
		EntityInternalComponent, EntityNode:
		return nil
	default:
		return fmt.Errorf("invalid entity type: %s", t)
	}
}

// State is the propagated lifecycle flag carried by every entity.
type State string

const (
	// StateDefined is the default state of a newly declared entity.
	StateDefined State = "defined"

	// StateUndefined is the sentinel that removes an entity from the model.
	StateUndefined State = "undefined"
)

// IsRemoval returns true if the state removes the entity.
func (s State) IsRemoval() bool {
	return s == StateUndefined
}

// Action marks how an entity changed between two model versions.
type Action string

const (
	// ActionRemove marks an entity present only in the old version.
	ActionRemove Action = "remove"

	// ActionKeep marks an entity present and equal in both versions.
	ActionKeep Action = "keep"

	// ActionChange marks an entity present in both versions with differences.
	ActionChange Action = "change"

	// ActionAdd marks an entity present only in the new version.
	ActionAdd Action = "add"
)

// Rank returns the deterministic sort rank of the action.
func (a Action) Rank() int {
	switch a {
	case ActionRemove:
		return 1
	case ActionKeep:
		return 2
	case ActionChange:
		return 3
	case ActionAdd:
		return 4
	default:
		return 0
	}
}

// Operation returns the actuation operation implied by the action.
func (a Action) Operation() OperationType {
	switch a {
	case ActionRemove:
		return OperationDelete
	case ActionChange:
		return OperationUpdate
	case ActionAdd:
		return OperationCreate
	default:
		return OperationNoop
	}
}

// Validate checks if the action is valid.
func (a Action) Validate() error {
	if a.Rank() == 0 {
		return fmt.Errorf("invalid action: %s", a)
	}
	return nil
}

// OperationType represents the type of operation to perform on an entity.
type OperationType string

const (
	// OperationCreate indicates a new entity should be created.
	OperationCreate OperationType = "create"

	// OperationUpdate indicates an existing entity should be updated.
	OperationUpdate OperationType = "update"

	// OperationDelete indicates an existing entity should be deleted.
	OperationDelete OperationType = "delete"

	// OperationNoop indicates no operation is needed.
	OperationNoop OperationType = "noop"
)

// IsDestructive returns true if the operation destroys the entity.
func (o OperationType) IsDestructive() bool {
	return o == OperationDelete
}

// Validate checks if the operation type is valid.
func (o OperationType) Validate() error {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete, OperationNoop:
		return nil
	default:
		return fmt.Errorf("invalid operation type: %s", o)
	}
}

// RunStatus represents the overall status of a plan execution run.
type RunStatus string

const (
	// RunStatusPending indicates the run is queued but not yet started.
	RunStatusPending RunStatus = "pending"

	// RunStatusRunning indicates the run is currently executing.
	RunStatusRunning RunStatus = "running"

	// RunStatusSucceeded indicates every step completed successfully.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusFailed indicates the run failed with errors.
	RunStatusFailed RunStatus = "failed"

	// RunStatusCancelled indicates the run was cancelled.
	RunStatusCancelled RunStatus = "cancelled"

	// RunStatusPartial indicates some steps failed or were skipped.
	RunStatusPartial RunStatus = "partial"
)

// IsTerminal returns true if the run status represents a final state.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed ||
		s == RunStatusCancelled || s == RunStatusPartial
}

// Validate checks if the run status is valid.
func (s RunStatus) Validate() error {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusSucceeded,
		RunStatusFailed, RunStatusCancelled, RunStatusPartial:
		return nil
	default:
		return fmt.Errorf("invalid run status: %s", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s RunStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *RunStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = RunStatus(str)
	return s.Validate()
}

// StepStatus represents the status of a single plan step during execution.
type StepStatus string

const (
	// StepStatusPending indicates the step is waiting to execute.
	StepStatusPending StepStatus = "pending"

	// StepStatusRunning indicates the step is currently executing.
	StepStatusRunning StepStatus = "running"

	// StepStatusSucceeded indicates the step completed successfully.
	StepStatusSucceeded StepStatus = "succeeded"

	// StepStatusFailed indicates the step failed.
	StepStatusFailed StepStatus = "failed"

	// StepStatusSkipped indicates the step was skipped because a prerequisite failed.
	StepStatusSkipped StepStatus = "skipped"

	// StepStatusCancelled indicates the step was cancelled.
	StepStatusCancelled StepStatus = "cancelled"
)

// IsTerminal returns true if the step status represents a final state.
func (s StepStatus) IsTerminal() bool {
	return s == StepStatusSucceeded || s == StepStatusFailed ||
		s == StepStatusSkipped || s == StepStatusCancelled
}
