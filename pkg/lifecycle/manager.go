package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openfroyo/vnflcm/pkg/engine"
	"github.com/openfroyo/vnflcm/pkg/policy"
	"github.com/openfroyo/vnflcm/pkg/stores"
	"github.com/openfroyo/vnflcm/pkg/telemetry"
)

// Version selectors accepted wherever a model version is expected.
const (
	// Latest selects the newest stored version of a context.
	Latest = -1

	// Previous selects the version before Latest.
	Previous = -2
)

// ErrPolicyDenied is returned by Execute for plans refused by an enforcing
// policy evaluation.
var ErrPolicyDenied = errors.New("plan denied by policy")

// Audit actions.
const (
	AuditModelApplied  = "model.applied"
	AuditModelRejected = "model.rejected"
	AuditPlanCreated   = "plan.created"
	AuditRunCompleted  = "run.completed"
)

// Options configures a Manager.
type Options struct {
	// Policy evaluates plans. Plans are not checked when nil.
	Policy *policy.Engine

	// Telemetry receives metrics, spans and events. Defaults to a no-op
	// instance.
	Telemetry *telemetry.Telemetry

	// Executor configures plan execution.
	Executor engine.ExecutorOptions

	// Actor is recorded in audit entries.
	Actor string

	Logger zerolog.Logger
}

// Manager runs the model lifecycle of every context on top of a store.
// Operations on the same context are serialized; different contexts proceed
// independently.
type Manager struct {
	store  stores.Store
	policy *policy.Engine
	tel    *telemetry.Telemetry
	opts   engine.ExecutorOptions
	actor  string
	logger zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a manager. Events published through the telemetry
// instance are appended to the store.
func NewManager(store stores.Store, opts Options) *Manager {
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.NewNop()
	}
	if opts.Executor.MaxParallel == 0 {
		opts.Executor = engine.DefaultExecutorOptions()
	}
	if opts.Actor == "" {
		opts.Actor = "vnflcm"
	}

	m := &Manager{
		store:  store,
		policy: opts.Policy,
		tel:    opts.Telemetry,
		opts:   opts.Executor,
		actor:  opts.Actor,
		logger: opts.Logger.With().Str("component", "lifecycle").Logger(),
		locks:  make(map[string]*sync.Mutex),
	}

	if m.tel.Events != nil {
		m.tel.Events.Subscribe(PersistEvents(store, m.logger), nil)
	}

	return m
}

// SetExecutorOptions replaces the options used by later Execute calls.
func (m *Manager) SetExecutorOptions(opts engine.ExecutorOptions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts = opts
}

// lock serializes operations on one context.
func (m *Manager) lock(contextName string) func() {
	m.mu.Lock()
	l, ok := m.locks[contextName]
	if !ok {
		l = &sync.Mutex{}
		m.locks[contextName] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Model loads a stored model. Latest and Previous resolve to the empty model
// when the context has too few versions; version 0 is always the empty model.
func (m *Manager) Model(ctx context.Context, contextName string, version int) (*engine.Model, error) {
	if version == Previous {
		latest, err := m.store.LatestModel(ctx, contextName)
		switch {
		case errors.Is(err, stores.ErrNotFound):
			version = 0
		case err != nil:
			return nil, err
		default:
			version = latest.Version - 1
		}
	}
	if version == 0 {
		return engine.NewModel(contextName), nil
	}

	var (
		rec *stores.ModelVersion
		err error
	)
	if version == Latest {
		rec, err = m.store.LatestModel(ctx, contextName)
		if errors.Is(err, stores.ErrNotFound) {
			return engine.NewModel(contextName), nil
		}
	} else {
		rec, err = m.store.GetModel(ctx, contextName, version)
	}
	if err != nil {
		return nil, err
	}

	model := &engine.Model{}
	if err := json.Unmarshal([]byte(rec.Document), model); err != nil {
		return nil, fmt.Errorf("failed to decode model %s@%d: %w", contextName, rec.Version, err)
	}
	return model, nil
}

// Apply applies batch to the latest model of a context and stores the new
// version. A rejected batch leaves the stored model untouched and is
// audited.
func (m *Manager) Apply(ctx context.Context, contextName string, batch engine.Batch) (model *engine.Model, err error) {
	unlock := m.lock(contextName)
	defer unlock()

	op := telemetry.StartOperation(m.tel.WithContext(ctx), "lifecycle.apply",
		attribute.String("context", contextName),
		attribute.Int("statements", len(batch)),
	)
	defer func() { op.End(err) }()
	ctx = op.Ctx

	model, err = m.Model(ctx, contextName, Latest)
	if err != nil {
		return nil, err
	}

	if err := model.Apply(batch); err != nil {
		m.tel.Metrics.RecordApply("rejected", op.Timer.Duration())
		m.tel.Metrics.RecordError(string(engine.ClassOf(err)), engine.CodeOf(err))
		_ = m.tel.Events.PublishModelRejected(contextName, err.Error())
		m.audit(ctx, AuditModelRejected, contextName, "", map[string]interface{}{
			"error":      err.Error(),
			"statements": len(batch),
		})
		return nil, err
	}

	doc, err := json.Marshal(model)
	if err != nil {
		return nil, fmt.Errorf("failed to encode model: %w", err)
	}
	if err := m.store.SaveModel(ctx, &stores.ModelVersion{
		Context:    contextName,
		Version:    model.Version,
		Consistent: model.Consistent,
		Document:   string(doc),
	}); err != nil {
		return nil, err
	}

	m.tel.Metrics.RecordApply("applied", op.Timer.Duration())
	m.tel.Metrics.SetModelState(ModelState(model))
	_ = m.tel.Events.PublishModelApplied(contextName, model.Version, len(batch), model.Consistent)
	m.audit(ctx, AuditModelApplied, contextName, fmt.Sprint(model.Version), map[string]interface{}{
		"statements": len(batch),
		"consistent": model.Consistent,
	})

	m.logger.Info().
		Str("context", contextName).
		Int("version", model.Version).
		Bool("consistent", model.Consistent).
		Msg("Model applied")

	return model, nil
}

// Diff computes the delta between two stored versions. Either version may be
// Latest or 0.
func (m *Manager) Diff(ctx context.Context, contextName string, from, to int) (*engine.Delta, error) {
	_, _, delta, err := m.diff(ctx, contextName, from, to)
	return delta, err
}

func (m *Manager) diff(ctx context.Context, contextName string, from, to int) (*engine.Model, *engine.Model, *engine.Delta, error) {
	oldModel, err := m.Model(ctx, contextName, from)
	if err != nil {
		return nil, nil, nil, err
	}
	newModel, err := m.Model(ctx, contextName, to)
	if err != nil {
		return nil, nil, nil, err
	}
	return oldModel, newModel, engine.Compute(oldModel, newModel), nil
}

// PlanResult is a persisted plan with the delta it came from and its policy
// verdict.
type PlanResult struct {
	Plan   *engine.ActionPlan `json:"plan"`
	Delta  *engine.Delta      `json:"delta"`
	Policy *policy.Result     `json:"policy,omitempty"`
}

// Plan derives the action plan between two versions, evaluates the policies
// and stores the plan.
func (m *Manager) Plan(ctx context.Context, contextName string, from, to int) (result *PlanResult, err error) {
	op := telemetry.StartOperation(m.tel.WithContext(ctx), "lifecycle.plan",
		attribute.String("context", contextName),
	)
	defer func() { op.End(err) }()
	ctx = op.Ctx

	oldModel, newModel, delta, err := m.diff(ctx, contextName, from, to)
	if err != nil {
		return nil, err
	}

	plan := engine.Plan(delta)
	if err := engine.ValidatePlan(plan); err != nil {
		return nil, err
	}
	plan.ID = uuid.New().String()
	result = &PlanResult{Plan: plan, Delta: delta}

	for _, step := range plan.Steps {
		m.tel.Metrics.RecordPlanStep(string(step.Operation), string(step.Type))
	}

	var policyDoc *string
	if m.policy != nil {
		verdict, err := m.policy.Evaluate(ctx, &policy.Input{
			Plan:     plan,
			Delta:    delta,
			Model:    newModel,
			Previous: oldModel,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate policies: %w", err)
		}
		result.Policy = verdict

		for _, v := range verdict.All() {
			m.tel.Metrics.RecordPolicyViolation(v.Policy, string(v.Severity))
			_ = m.tel.Events.PublishPolicyViolation(contextName, v.Policy, string(v.Severity), v.Message)
		}

		raw, err := json.Marshal(verdict)
		if err != nil {
			return nil, fmt.Errorf("failed to encode policy result: %w", err)
		}
		s := string(raw)
		policyDoc = &s
	}

	doc, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("failed to encode plan: %w", err)
	}
	if err := m.store.SavePlan(ctx, &stores.PlanRecord{
		ID:          plan.ID,
		Context:     contextName,
		FromVersion: plan.From,
		ToVersion:   plan.To,
		Steps:       len(plan.Steps),
		Document:    string(doc),
		Policy:      policyDoc,
	}); err != nil {
		return nil, err
	}

	_ = m.tel.Events.PublishPlanCreated(contextName, plan.ID, plan.From, plan.To, len(plan.Steps))
	m.audit(ctx, AuditPlanCreated, contextName, plan.ID, map[string]interface{}{
		"from":    plan.From,
		"to":      plan.To,
		"summary": plan.Summary,
	})

	return result, nil
}

// LoadPlan returns a stored plan and its policy verdict, if any.
func (m *Manager) LoadPlan(ctx context.Context, planID string) (*engine.ActionPlan, *policy.Result, error) {
	rec, err := m.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, nil, err
	}

	plan := &engine.ActionPlan{}
	if err := json.Unmarshal([]byte(rec.Document), plan); err != nil {
		return nil, nil, fmt.Errorf("failed to decode plan %s: %w", planID, err)
	}

	var verdict *policy.Result
	if rec.Policy != nil {
		verdict = &policy.Result{}
		if err := json.Unmarshal([]byte(*rec.Policy), verdict); err != nil {
			return nil, nil, fmt.Errorf("failed to decode policy result of plan %s: %w", planID, err)
		}
	}
	return plan, verdict, nil
}

// Execute runs a stored plan with actuator and records the run. Plans denied
// by policy are refused with ErrPolicyDenied.
func (m *Manager) Execute(ctx context.Context, planID string, actuator engine.Actuator) (result *engine.RunResult, err error) {
	plan, verdict, err := m.LoadPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if verdict != nil && !verdict.Allowed {
		return nil, fmt.Errorf("%w: %d blocking violations", ErrPolicyDenied, len(verdict.Violations))
	}

	graph, err := engine.BuildGraph(plan)
	if err != nil {
		return nil, err
	}

	unlock := m.lock(plan.Context)
	defer unlock()

	from, err := m.Model(ctx, plan.Context, plan.From)
	if err != nil {
		return nil, err
	}
	to, err := m.Model(ctx, plan.Context, plan.To)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	ctx = m.tel.WithContext(ctx)
	ctx, span := m.tel.Tracer.StartRunSpan(ctx, runID, planID)
	defer func() {
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.RecordSuccess(span)
		}
		span.End()
	}()

	if err := m.store.CreateRun(ctx, &stores.Run{
		ID:     runID,
		PlanID: planID,
		Status: stores.RunStatusRunning,
	}); err != nil {
		return nil, err
	}
	m.tel.Metrics.RecordRunStarted()
	_ = m.tel.Events.PublishRunStarted(plan.Context, runID, planID)

	m.mu.Lock()
	opts := m.opts
	m.mu.Unlock()

	executor := engine.NewExecutor(traced(m.tel.Tracer, actuator), opts).
		WithRecorder(&stepRecorder{tel: m.tel, context: plan.Context}).
		WithResolver(engine.ResolveFrom(from, to))

	result, execErr := executor.Execute(ctx, runID, plan, graph)
	if result == nil {
		return nil, execErr
	}

	summary, err := json.Marshal(result.Summary)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run summary: %w", err)
	}
	var errMsg *string
	if execErr != nil {
		s := execErr.Error()
		errMsg = &s
	}

	// the run outcome is recorded even when ctx was cancelled
	storeCtx := context.WithoutCancel(ctx)
	if err := m.store.UpdateRunStatus(storeCtx, runID, stores.RunStatus(result.Status), string(summary), errMsg); err != nil {
		return result, err
	}

	duration := result.CompletedAt.Sub(result.StartedAt)
	m.tel.Metrics.RecordRunCompleted(string(result.Status), duration)
	_ = m.tel.Events.PublishRunCompleted(plan.Context, runID, string(result.Status), duration)
	m.audit(storeCtx, AuditRunCompleted, plan.Context, runID, map[string]interface{}{
		"plan_id": planID,
		"status":  result.Status,
		"summary": result.Summary,
	})

	m.logger.Info().
		Str("context", plan.Context).
		Str("run_id", runID).
		Str("status", string(result.Status)).
		Int("succeeded", result.Summary.Succeeded).
		Int("failed", result.Summary.Failed).
		Dur("duration", duration).
		Msg("Run completed")

	return result, execErr
}

// History is the stored record of one context, newest first.
type History struct {
	Context string                `json:"context"`
	Models  []*stores.ModelVersion `json:"models"`
	Plans   []*stores.PlanRecord   `json:"plans"`
	Runs    []*stores.Run          `json:"runs"`
	Audit   []*stores.AuditEntry   `json:"audit"`
}

// History lists up to limit models, plans and audit entries of a context
// together with the runs of the listed plans.
func (m *Manager) History(ctx context.Context, contextName string, limit int) (*History, error) {
	h := &History{Context: contextName, Runs: []*stores.Run{}}

	var err error
	if h.Models, err = m.store.ListModels(ctx, contextName, limit, 0); err != nil {
		return nil, err
	}
	if h.Plans, err = m.store.ListPlans(ctx, contextName, limit, 0); err != nil {
		return nil, err
	}
	for _, p := range h.Plans {
		planID := p.ID
		runs, err := m.store.ListRuns(ctx, &planID, limit, 0)
		if err != nil {
			return nil, err
		}
		h.Runs = append(h.Runs, runs...)
	}
	if h.Audit, err = m.store.ListAuditEntries(ctx, nil, &contextName, limit, 0); err != nil {
		return nil, err
	}
	return h, nil
}

// audit writes an audit entry. Failures are logged, never returned.
func (m *Manager) audit(ctx context.Context, action, contextName, target string, details map[string]interface{}) {
	entry := &stores.AuditEntry{
		Action:  action,
		Actor:   m.actor,
		Context: &contextName,
	}
	if target != "" {
		entry.TargetID = &target
	}
	if len(details) > 0 {
		if raw, err := json.Marshal(details); err == nil {
			s := string(raw)
			entry.Details = &s
		}
	}

	if err := m.store.CreateAuditEntry(ctx, entry); err != nil {
		m.logger.Warn().Err(err).Str("action", action).Msg("Failed to write audit entry")
	}
}

// ModelState summarizes model for the model gauges.
func ModelState(model *engine.Model) telemetry.ModelState {
	entities := make(map[string]int)
	for t, n := range model.EntityCounts() {
		entities[string(t)] = n
	}
	return telemetry.ModelState{
		Context:    model.Context,
		Version:    model.Version,
		Consistent: model.Consistent,
		Rules:      model.RuleCount(),
		Entities:   entities,
	}
}
