package stores

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is wrapped by lookups that match no row.
var ErrNotFound = errors.New("not found")

// RunStatus represents the status of an execution run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are expected.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusPartial, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// EventLevel represents the severity level of an event
type EventLevel string

const (
	EventLevelDebug   EventLevel = "debug"
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// ModelVersion is one committed version of a context's canonical model.
type ModelVersion struct {
	Context    string    `json:"context"`
	Version    int       `json:"version"`
	Consistent bool      `json:"consistent"`
	Document   string    `json:"document"` // JSON blob
	CreatedAt  time.Time `json:"created_at"`
}

// PlanRecord is a persisted action plan.
type PlanRecord struct {
	ID          string    `json:"id"`
	Context     string    `json:"context"`
	FromVersion int       `json:"from_version"`
	ToVersion   int       `json:"to_version"`
	Steps       int       `json:"steps"`
	Document    string    `json:"document"`          // JSON blob
	Policy      *string   `json:"policy,omitempty"` // JSON blob
	CreatedAt   time.Time `json:"created_at"`
}

// Run represents an execution run of a plan
type Run struct {
	ID          string     `json:"id"`
	PlanID      string     `json:"plan_id"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	Summary     string     `json:"summary"` // JSON blob
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Event represents an append-only log event
type Event struct {
	ID        int64      `json:"id"`
	RunID     *string    `json:"run_id,omitempty"`
	Level     EventLevel `json:"level"`
	Type      string     `json:"type"` // e.g. "step.succeeded", "model.applied"
	FQN       *string    `json:"fqn,omitempty"`
	Message   string     `json:"message"`
	Details   *string    `json:"details,omitempty"` // JSON blob
	Timestamp time.Time  `json:"timestamp"`
}

// EventFilter narrows ListEvents. Nil fields match everything.
type EventFilter struct {
	RunID *string
	Level *EventLevel
	Type  *string
}

// AuditEntry represents an audit trail entry
type AuditEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"` // e.g., "model.applied", "plan.created", "run.completed"
	Actor     string    `json:"actor"`  // user or system identifier
	Context   *string   `json:"context,omitempty"`
	TargetID  *string   `json:"target_id,omitempty"` // plan/run/version ID
	Details   *string   `json:"details,omitempty"`   // JSON blob
	Timestamp time.Time `json:"timestamp"`
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Model operations
	SaveModel(ctx context.Context, model *ModelVersion) error
	GetModel(ctx context.Context, contextName string, version int) (*ModelVersion, error)
	LatestModel(ctx context.Context, contextName string) (*ModelVersion, error)
	ListModels(ctx context.Context, contextName string, limit, offset int) ([]*ModelVersion, error)
	ListContexts(ctx context.Context) ([]string, error)

	// Plan operations
	SavePlan(ctx context.Context, plan *PlanRecord) error
	GetPlan(ctx context.Context, id string) (*PlanRecord, error)
	ListPlans(ctx context.Context, contextName string, limit, offset int) ([]*PlanRecord, error)

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	UpdateRunStatus(ctx context.Context, id string, status RunStatus, summary string, err *string) error
	ListRuns(ctx context.Context, planID *string, limit, offset int) ([]*Run, error)

	// Event operations
	AppendEvent(ctx context.Context, event *Event) error
	ListEvents(ctx context.Context, filter EventFilter, limit, offset int) ([]*Event, error)

	// Audit operations
	CreateAuditEntry(ctx context.Context, entry *AuditEntry) error
	ListAuditEntries(ctx context.Context, action *string, contextName *string, limit, offset int) ([]*AuditEntry, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
