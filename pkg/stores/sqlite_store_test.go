package stores

import (
	"context"
	"errors"
	"testing"
	"time"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: MemoryPath,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func savePlan(t *testing.T, store *SQLiteStore, id string) *PlanRecord {
	t.Helper()

	plan := &PlanRecord{
		ID:          id,
		Context:     "lab",
		FromVersion: 1,
		ToVersion:   2,
		Steps:       3,
		Document:    `{"steps":[]}`,
	}
	if err := store.SavePlan(context.Background(), plan); err != nil {
		t.Fatalf("failed to save plan: %v", err)
	}
	return plan
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: MemoryPath,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.HealthCheck(ctx); err == nil {
		t.Error("expected health check to fail before Init")
	}

	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tables := []string{"models", "plans", "runs", "events", "audit"}
	for _, table := range tables {
		query := "SELECT COUNT(*) FROM " + table
		var count int
		err := store.db.QueryRowContext(ctx, query).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}

	// migrating twice is a no-op
	if err := store.Migrate(ctx); err != nil {
		t.Errorf("expected second migration to succeed, got: %v", err)
	}
}

func TestModelVersions(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for v := 1; v <= 3; v++ {
		model := &ModelVersion{
			Context:    "lab",
			Version:    v,
			Consistent: v != 2,
			Document:   `{"type":"Model"}`,
		}
		if err := store.SaveModel(ctx, model); err != nil {
			t.Fatalf("failed to save model v%d: %v", v, err)
		}
	}
	if err := store.SaveModel(ctx, &ModelVersion{Context: "prod", Version: 1, Document: "{}"}); err != nil {
		t.Fatalf("failed to save prod model: %v", err)
	}

	latest, err := store.LatestModel(ctx, "lab")
	if err != nil {
		t.Fatalf("failed to get latest model: %v", err)
	}
	if latest.Version != 3 {
		t.Errorf("expected latest version 3, got %d", latest.Version)
	}

	v2, err := store.GetModel(ctx, "lab", 2)
	if err != nil {
		t.Fatalf("failed to get model v2: %v", err)
	}
	if v2.Consistent {
		t.Error("expected v2 to be stored as inconsistent")
	}
	if v2.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	models, err := store.ListModels(ctx, "lab", 10, 0)
	if err != nil {
		t.Fatalf("failed to list models: %v", err)
	}
	if len(models) != 3 || models[0].Version != 3 || models[2].Version != 1 {
		t.Errorf("expected versions newest first, got %d models", len(models))
	}

	contexts, err := store.ListContexts(ctx)
	if err != nil {
		t.Fatalf("failed to list contexts: %v", err)
	}
	if len(contexts) != 2 || contexts[0] != "lab" || contexts[1] != "prod" {
		t.Errorf("expected [lab prod], got %v", contexts)
	}

	// versions are immutable
	if err := store.SaveModel(ctx, &ModelVersion{Context: "lab", Version: 3, Document: "{}"}); err == nil {
		t.Error("expected error when overwriting a version")
	}
}

func TestModelNotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.LatestModel(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetModel(ctx, "missing", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPlanCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	plan := savePlan(t, store, "plan-001")
	policy := `{"allowed":true}`
	second := &PlanRecord{
		ID:          "plan-002",
		Context:     "lab",
		FromVersion: 2,
		ToVersion:   3,
		Document:    "{}",
		Policy:      &policy,
		CreatedAt:   plan.CreatedAt.Add(time.Second),
	}
	if err := store.SavePlan(ctx, second); err != nil {
		t.Fatalf("failed to save plan: %v", err)
	}

	retrieved, err := store.GetPlan(ctx, plan.ID)
	if err != nil {
		t.Fatalf("failed to get plan: %v", err)
	}
	if retrieved.Steps != 3 || retrieved.ToVersion != 2 {
		t.Errorf("unexpected plan: %+v", retrieved)
	}
	if retrieved.Policy != nil {
		t.Errorf("expected nil policy, got %v", *retrieved.Policy)
	}

	plans, err := store.ListPlans(ctx, "lab", 10, 0)
	if err != nil {
		t.Fatalf("failed to list plans: %v", err)
	}
	if len(plans) != 2 || plans[0].ID != "plan-002" {
		t.Errorf("expected newest plan first, got %d plans", len(plans))
	}
	if plans[0].Policy == nil || *plans[0].Policy != policy {
		t.Error("expected policy report to round-trip")
	}

	if _, err := store.GetPlan(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestRunCRUD tests Run CRUD operations
func TestRunCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	plan := savePlan(t, store, "plan-001")

	run := &Run{
		ID:     "run-001",
		PlanID: plan.ID,
		Status: RunStatusRunning,
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	retrieved, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if retrieved.Status != RunStatusRunning {
		t.Errorf("expected Status %s, got %s", RunStatusRunning, retrieved.Status)
	}
	if retrieved.CompletedAt != nil {
		t.Error("expected CompletedAt to be unset")
	}

	errMsg := "step InternalComponent:/vnf1/t1/web failed"
	if err := store.UpdateRunStatus(ctx, run.ID, RunStatusPartial, `{"failed":1}`, &errMsg); err != nil {
		t.Fatalf("failed to update run status: %v", err)
	}

	updated, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get updated run: %v", err)
	}
	if updated.Status != RunStatusPartial {
		t.Errorf("expected Status %s, got %s", RunStatusPartial, updated.Status)
	}
	if updated.Error == nil || *updated.Error != errMsg {
		t.Errorf("expected Error %s, got %v", errMsg, updated.Error)
	}
	if updated.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
	if updated.Summary != `{"failed":1}` {
		t.Errorf("expected summary to be stored, got %s", updated.Summary)
	}

	runs, err := store.ListRuns(ctx, &plan.ID, 10, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("expected 1 run, got %d", len(runs))
	}

	other := "plan-other"
	runs, err = store.ListRuns(ctx, &other, 10, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	if err := store.UpdateRunStatus(ctx, "run-missing", RunStatusFailed, "", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRunRequiresPlan(t *testing.T) {
	store := setupTestStore(t)

	err := store.CreateRun(context.Background(), &Run{ID: "run-x", PlanID: "plan-missing", Status: RunStatusPending})
	if err == nil {
		t.Error("expected foreign key violation")
	}
}

// TestEventLog tests append-only event operations
func TestEventLog(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	plan := savePlan(t, store, "plan-001")
	run := &Run{ID: "run-001", PlanID: plan.ID, Status: RunStatusRunning}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	web := "/vnf1/t1/web"
	events := []*Event{
		{RunID: &run.ID, Level: EventLevelInfo, Type: "step.succeeded", FQN: &web, Message: "created"},
		{RunID: &run.ID, Level: EventLevelError, Type: "step.failed", FQN: &web, Message: "quota"},
		{Level: EventLevelInfo, Type: "model.applied", Message: "version 2"},
	}
	for _, e := range events {
		if err := store.AppendEvent(ctx, e); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
		if e.ID == 0 {
			t.Error("expected event ID to be assigned")
		}
	}

	all, err := store.ListEvents(ctx, EventFilter{}, 10, 0)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(all) != 3 || all[0].Type != "step.succeeded" {
		t.Errorf("expected 3 events in append order, got %d", len(all))
	}

	byRun, err := store.ListEvents(ctx, EventFilter{RunID: &run.ID}, 10, 0)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(byRun) != 2 {
		t.Errorf("expected 2 run events, got %d", len(byRun))
	}

	level := EventLevelError
	errorsOnly, err := store.ListEvents(ctx, EventFilter{Level: &level}, 10, 0)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(errorsOnly) != 1 || *errorsOnly[0].FQN != web {
		t.Errorf("expected 1 error event for %s", web)
	}

	typ := "model.applied"
	applied, err := store.ListEvents(ctx, EventFilter{Type: &typ}, 10, 0)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(applied) != 1 || applied[0].RunID != nil {
		t.Error("expected 1 model event without run")
	}
}

// TestAuditLog tests audit trail operations
func TestAuditLog(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	lab := "lab"
	prod := "prod"
	entries := []*AuditEntry{
		{Action: "model.applied", Actor: "alice", Context: &lab},
		{Action: "plan.created", Actor: "alice", Context: &lab},
		{Action: "model.applied", Actor: "bob", Context: &prod},
	}
	for _, e := range entries {
		if err := store.CreateAuditEntry(ctx, e); err != nil {
			t.Fatalf("failed to create audit entry: %v", err)
		}
	}

	action := "model.applied"
	applied, err := store.ListAuditEntries(ctx, &action, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if len(applied) != 2 || applied[0].Actor != "bob" {
		t.Errorf("expected 2 entries newest first, got %d", len(applied))
	}

	labOnly, err := store.ListAuditEntries(ctx, nil, &lab, 10, 0)
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if len(labOnly) != 2 {
		t.Errorf("expected 2 lab entries, got %d", len(labOnly))
	}

	page, err := store.ListAuditEntries(ctx, nil, nil, 1, 1)
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if len(page) != 1 || page[0].Action != "plan.created" {
		t.Error("expected pagination to skip the newest entry")
	}
}

func TestTransactions(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO models (context, version, consistent, document, created_at) VALUES (?, ?, ?, ?, ?)`,
		"lab", 1, true, "{}", time.Now().UTC(),
	); err != nil {
		t.Fatalf("failed to insert in transaction: %v", err)
	}
	if err := store.RollbackTx(tx); err != nil {
		t.Fatalf("failed to roll back: %v", err)
	}

	if _, err := store.LatestModel(ctx, "lab"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected rolled back insert to be absent, got %v", err)
	}
}
