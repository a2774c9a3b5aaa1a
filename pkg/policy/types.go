package policy

import (
	"fmt"
	"time"

	"github.com/openfroyo/vnflcm/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for errors that block execution in enforcing mode.
	SeverityError Severity = "error"

	// SeverityCritical is for critical violations that must be addressed immediately.
	SeverityCritical Severity = "critical"
)

// Blocks reports whether the severity prevents execution in enforcing mode.
func (s Severity) Blocks() bool {
	return s == SeverityError || s == SeverityCritical
}

// Validate checks if the severity is valid.
func (s Severity) Validate() error {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return nil
	default:
		return fmt.Errorf("invalid severity: %s", s)
	}
}

// Mode selects how violations are treated.
type Mode string

const (
	// ModeAdvisory reports violations without blocking.
	ModeAdvisory Mode = "advisory"

	// ModeEnforcing blocks execution on error and critical violations.
	ModeEnforcing Mode = "enforcing"
)

// ParseMode converts a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAdvisory, ModeEnforcing:
		return Mode(s), nil
	case "":
		return ModeAdvisory, nil
	default:
		return "", fmt.Errorf("invalid policy mode: %s", s)
	}
}

// Policy represents a policy rule with its Rego code. The module must define
// a deny set whose members are strings or objects with message, severity and
// resource keys.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Builtin marks the policies shipped with the engine.
	Builtin bool `json:"builtin,omitempty"`

	// Source is the file the policy was loaded from.
	Source string `json:"source,omitempty"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Resource is the FQN or context the violation refers to.
	Resource string `json:"resource,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// Result represents the result of policy evaluation.
type Result struct {
	// Allowed is false when the mode is enforcing and a blocking violation
	// was found.
	Allowed bool `json:"allowed"`

	// Mode is the mode the result was evaluated under.
	Mode Mode `json:"mode"`

	// Violations lists error and critical violations.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists info and warning violations.
	Warnings []Violation `json:"warnings,omitempty"`

	// Errors lists policies that failed to evaluate.
	Errors []string `json:"errors,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the policy was evaluated.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// All returns violations followed by warnings.
func (r *Result) All() []Violation {
	all := make([]Violation, 0, len(r.Violations)+len(r.Warnings))
	all = append(all, r.Violations...)
	return append(all, r.Warnings...)
}

// Input is the document policies evaluate. Previous is the model the plan
// starts from and Model the model it leads to.
type Input struct {
	Plan     *engine.ActionPlan `json:"plan,omitempty"`
	Delta    *engine.Delta      `json:"delta,omitempty"`
	Model    *engine.Model      `json:"model,omitempty"`
	Previous *engine.Model      `json:"previous,omitempty"`
}
