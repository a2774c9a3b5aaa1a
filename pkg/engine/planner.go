package engine

import (
	"fmt"
)

// Step is one actuation target of an action plan.
type Step struct {
	// Type is the entity type to actuate.
	Type EntityType `json:"type" yaml:"type"`

	// FQN identifies the entity.
	FQN FQN `json:"fqn" yaml:"fqn"`

	// Action is the delta marker the step was derived from.
	Action Action `json:"action" yaml:"action"`

	// Operation is the actuation implied by Action.
	Operation OperationType `json:"operation" yaml:"operation"`
}

// Key returns the (type, fqn) identity of the step.
func (s Step) Key() string {
	return string(s.Type) + ":" + s.FQN.String()
}

// PlanSummary counts plan steps per operation.
type PlanSummary struct {
	Create int `json:"create" yaml:"create"`
	Update int `json:"update" yaml:"update"`
	Delete int `json:"delete" yaml:"delete"`
}

// ActionPlan is the dependency-ordered actuation sequence derived from a
// delta. Children are destroyed before their parent and parents are created
// before their children.
type ActionPlan struct {
	// ID is assigned when the plan is persisted.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	Context string      `json:"context" yaml:"context"`
	From    int         `json:"from" yaml:"from"`
	To      int         `json:"to" yaml:"to"`
	Steps   []Step      `json:"steps" yaml:"steps"`
	Summary PlanSummary `json:"summary" yaml:"summary"`
}

// IsEmpty returns true if the plan has nothing to actuate.
func (p *ActionPlan) IsEmpty() bool {
	return len(p.Steps) == 0
}

// Plan flattens a delta into an ordered action plan. Per tenant, components
// are handled first (removed, kept, changed, added) followed by the tenant's
// networks (removed, changed, added). Global networks and external
// components are not actuated.
func Plan(delta *Delta) *ActionPlan {
	plan := &ActionPlan{
		Context: delta.Context,
		From:    delta.From,
		To:      delta.To,
		Steps:   []Step{},
	}

	for _, vnf := range delta.VNFs {
		for _, tenant := range vnf.Tenants {
			plan.planComponents(tenant)
			plan.planNetworks(tenant)
		}
	}

	return plan
}

func (p *ActionPlan) planComponents(tenant *DeltaEntry) {
	for _, c := range tenant.Components {
		if c.Action == ActionRemove {
			p.emitNodes(c, ActionRemove)
			p.emit(c)
		}
	}

	for _, c := range tenant.Components {
		if c.Action == ActionKeep {
			p.emitChangedNodes(c)
		}
	}

	for _, c := range tenant.Components {
		if c.Action == ActionChange {
			p.emitChangedNodes(c)
			p.emit(c)
		}
	}

	for _, c := range tenant.Components {
		if c.Action == ActionAdd {
			p.emit(c)
			p.emitNodes(c, ActionAdd)
		}
	}
}

func (p *ActionPlan) planNetworks(tenant *DeltaEntry) {
	for _, action := range []Action{ActionRemove, ActionChange, ActionAdd} {
		for _, n := range tenant.Networks {
			if n.Action == action {
				p.emit(n)
			}
		}
	}
}

func (p *ActionPlan) emitNodes(component *DeltaEntry, action Action) {
	for _, n := range component.Nodes {
		if n.Action == action {
			p.emit(n)
		}
	}
}

func (p *ActionPlan) emitChangedNodes(component *DeltaEntry) {
	for _, n := range component.Nodes {
		if n.Action != ActionKeep {
			p.emit(n)
		}
	}
}

func (p *ActionPlan) emit(e *DeltaEntry) {
	op := e.Action.Operation()
	p.Steps = append(p.Steps, Step{
		Type:      e.Type,
		FQN:       e.FQN,
		Action:    e.Action,
		Operation: op,
	})

	switch op {
	case OperationCreate:
		p.Summary.Create++
	case OperationUpdate:
		p.Summary.Update++
	case OperationDelete:
		p.Summary.Delete++
	}
}

// ValidatePlan checks that every step is well formed, appears once, and
// that no node is created before, or deleted after, its component.
func ValidatePlan(plan *ActionPlan) error {
	if plan == nil {
		return NewValidationError("plan is nil", nil)
	}

	position := make(map[string]int, len(plan.Steps))
	for i, step := range plan.Steps {
		if err := validateStep(step); err != nil {
			return err
		}
		key := step.Key()
		if _, exists := position[key]; exists {
			return NewValidationError(fmt.Sprintf("duplicate plan step: %s", key), nil).
				WithResource(step.FQN.String())
		}
		position[key] = i
	}

	for i, step := range plan.Steps {
		if step.Type != EntityNode {
			continue
		}
		parentKey := string(EntityInternalComponent) + ":" + step.FQN.Parent().String()
		j, ok := position[parentKey]
		if !ok {
			continue
		}
		parent := plan.Steps[j]

		if step.Operation == OperationCreate && parent.Operation == OperationCreate && j > i {
			return NewValidationError(
				fmt.Sprintf("node %s is created before its component", step.FQN), nil,
			).WithCode(ErrCodeOrdering).WithResource(step.FQN.String())
		}
		if step.Operation == OperationDelete && parent.Operation == OperationDelete && j < i {
			return NewValidationError(
				fmt.Sprintf("node %s is deleted after its component", step.FQN), nil,
			).WithCode(ErrCodeOrdering).WithResource(step.FQN.String())
		}
	}

	return nil
}

func validateStep(step Step) error {
	if len(step.FQN) == 0 {
		return NewValidationError("plan step has empty fqn", nil)
	}
	if err := step.Type.Validate(); err != nil {
		return NewValidationError("invalid plan step", err).WithResource(step.FQN.String())
	}
	if err := step.Action.Validate(); err != nil {
		return NewValidationError("invalid plan step", err).WithResource(step.FQN.String())
	}
	if step.Action == ActionKeep {
		return NewValidationError("plan step has nothing to actuate", nil).WithResource(step.FQN.String())
	}
	if step.Operation != step.Action.Operation() {
		return NewValidationError(
			fmt.Sprintf("operation %s does not match action %s", step.Operation, step.Action), nil,
		).WithResource(step.FQN.String())
	}
	return nil
}
