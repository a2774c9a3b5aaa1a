package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// ExecutorOptions configures plan execution.
type ExecutorOptions struct {
	// MaxParallel is the maximum number of steps actuated concurrently.
	MaxParallel int `json:"max_parallel"`

	// MaxRetries is the number of retries for transient failures.
	MaxRetries int `json:"max_retries"`

	// StepTimeout bounds a single actuation attempt.
	StepTimeout time.Duration `json:"step_timeout"`

	// BaseBackoff is the delay before the first retry. It doubles per attempt.
	BaseBackoff time.Duration `json:"base_backoff"`

	// FailFast stops execution after the first level with a failed step.
	FailFast bool `json:"fail_fast"`
}

// DefaultExecutorOptions returns the default execution options.
func DefaultExecutorOptions() ExecutorOptions {
	return ExecutorOptions{
		MaxParallel: 4,
		MaxRetries:  3,
		StepTimeout: 5 * time.Minute,
		BaseBackoff: time.Second,
	}
}

// StepResult is the outcome of one plan step.
type StepResult struct {
	Step        Step          `json:"step"`
	Status      StepStatus    `json:"status"`
	Attempts    int           `json:"attempts"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
	Error       *EngineError  `json:"error,omitempty"`
}

// RunSummary counts step outcomes of a run.
type RunSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Cancelled int `json:"cancelled"`
}

// RunResult is the outcome of executing a plan.
type RunResult struct {
	RunID       string       `json:"run_id"`
	Status      RunStatus    `json:"status"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
	Steps       []StepResult `json:"steps"`
	Summary     RunSummary   `json:"summary"`
}

// Executor runs an execution graph level by level, actuating the steps of a
// level with a bounded worker pool. Execute blocks until the run finishes.
type Executor struct {
	// opts holds the execution options
	opts ExecutorOptions

	// actuator applies individual steps
	actuator Actuator

	// recorder receives step results, may be nil
	recorder StepRecorder

	// resolve looks up the entity a step targets, may be nil
	resolve EntityResolver
}

// NewExecutor creates a new executor.
func NewExecutor(actuator Actuator, opts ExecutorOptions) *Executor {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 1
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 5 * time.Minute
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = time.Second
	}

	return &Executor{
		opts:     opts,
		actuator: actuator,
	}
}

// WithRecorder sets the step recorder.
func (e *Executor) WithRecorder(recorder StepRecorder) *Executor {
	e.recorder = recorder
	return e
}

// WithResolver sets the entity resolver.
func (e *Executor) WithResolver(resolve EntityResolver) *Executor {
	e.resolve = resolve
	return e
}

// runState tracks one Execute call.
type runState struct {
	mu      sync.RWMutex
	id      string
	context string
	status  map[string]StepStatus
	results map[string]*StepResult
}

func (r *runState) setStatus(key string, status StepStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status[key] = status
}

func (r *runState) getStatus(key string) StepStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status[key]
}

func (r *runState) store(key string, result *StepResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[key] = result
	r.status[key] = result.Status
}

// Execute runs the plan along graph. The returned error is non-nil only when
// the run was cancelled or failed fast; step failures are reported in the
// result.
func (e *Executor) Execute(ctx context.Context, runID string, plan *ActionPlan, graph *ExecutionGraph) (*RunResult, error) {
	if plan == nil || graph == nil {
		return nil, NewValidationError("plan and graph are required", nil)
	}

	run := &runState{
		id:      runID,
		context: plan.Context,
		status:  make(map[string]StepStatus, len(plan.Steps)),
		results: make(map[string]*StepResult, len(plan.Steps)),
	}
	for _, step := range plan.Steps {
		run.status[step.Key()] = StepStatusPending
	}

	result := &RunResult{
		RunID:     runID,
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
	}

	err := e.executeLevels(ctx, run, graph)

	e.cancelPending(ctx, run, plan)

	result.CompletedAt = time.Now()
	result.Steps = make([]StepResult, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		if r, ok := run.results[step.Key()]; ok {
			result.Steps = append(result.Steps, *r)
		}
	}
	result.Summary = summarize(result.Steps)
	result.Status = finalStatus(ctx, result.Summary, err)

	return result, err
}

func (e *Executor) executeLevels(ctx context.Context, run *runState, graph *ExecutionGraph) error {
	for level, ids := range graph.Levels {
		select {
		case <-ctx.Done():
			return NewPermanentError("execution cancelled", ctx.Err()).
				WithCode(ErrCodeInternal)
		default:
		}

		nodes := make([]*GraphNode, 0, len(ids))
		for _, id := range ids {
			nodes = append(nodes, graph.Nodes[id])
		}

		if err := e.executeLevelParallel(ctx, run, nodes); err != nil && e.opts.FailFast {
			return fmt.Errorf("level %d failed: %w", level, err)
		}
	}

	return nil
}

// executeLevelParallel executes all steps of a level using a worker pool.
func (e *Executor) executeLevelParallel(ctx context.Context, run *runState, nodes []*GraphNode) error {
	workerCount := e.opts.MaxParallel
	if len(nodes) < workerCount {
		workerCount = len(nodes)
	}

	workQueue := make(chan *GraphNode, len(nodes))
	for _, node := range nodes {
		workQueue <- node
	}
	close(workQueue)

	var wg sync.WaitGroup
	errChan := make(chan error, len(nodes))

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for node := range workQueue {
				select {
				case <-ctx.Done():
					return
				default:
				}

				if !e.checkDependencies(run, node) {
					e.markSkipped(ctx, run, node.Step)
					continue
				}

				if err := e.executeStep(ctx, run, node.Step); err != nil {
					errChan <- fmt.Errorf("step %s failed: %w", node.ID, err)
				}
			}
		}()
	}

	wg.Wait()
	close(errChan)

	var firstErr error
	for err := range errChan {
		if firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// executeStep actuates a single step with retry logic.
func (e *Executor) executeStep(ctx context.Context, run *runState, step Step) error {
	key := step.Key()
	run.setStatus(key, StepStatusRunning)

	req := ActuationRequest{
		RunID:   run.id,
		Context: run.context,
		Step:    step,
	}
	if e.resolve != nil {
		req.Entity = e.resolve(step)
	}

	result := &StepResult{
		Step:      step,
		StartedAt: time.Now(),
	}

	var err error
retry:
	for attempt := 0; attempt <= e.opts.MaxRetries; attempt++ {
		result.Attempts = attempt + 1

		stepCtx, cancel := context.WithTimeout(ctx, e.opts.StepTimeout)
		err = e.actuator.Actuate(stepCtx, req)
		cancel()

		if err == nil {
			break
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil && !IsTransient(err) {
			err = NewTransientError("step timed out", err).WithResource(step.FQN.String())
		}

		if !IsRetryable(err) || attempt >= e.opts.MaxRetries {
			break
		}

		select {
		case <-time.After(e.calculateBackoff(attempt)):
		case <-ctx.Done():
			err = ctx.Err()
			break retry
		}
	}

	result.CompletedAt = time.Now()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)

	if err != nil {
		result.Status = StepStatusFailed
		result.Error = classifyError(err, step)
	} else {
		result.Status = StepStatusSucceeded
	}

	run.store(key, result)
	e.record(ctx, run, result)

	return err
}

// checkDependencies verifies that all prerequisites succeeded.
func (e *Executor) checkDependencies(run *runState, node *GraphNode) bool {
	for _, dep := range node.Dependencies {
		if run.getStatus(dep) != StepStatusSucceeded {
			return false
		}
	}
	return true
}

// calculateBackoff returns BaseBackoff * 2^attempt, capped at one minute, plus
// a fixed share of jitter.
func (e *Executor) calculateBackoff(attempt int) time.Duration {
	delay := e.opts.BaseBackoff * time.Duration(math.Pow(2, float64(attempt)))

	if delay > time.Minute {
		delay = time.Minute
	}

	jitter := time.Duration(float64(delay) * 0.25)
	return delay + jitter/2
}

func (e *Executor) markSkipped(ctx context.Context, run *runState, step Step) {
	now := time.Now()
	result := &StepResult{
		Step:        step,
		Status:      StepStatusSkipped,
		StartedAt:   now,
		CompletedAt: now,
		Error: NewPermanentError("prerequisite step did not succeed", nil).
			WithCode(ErrCodeDependencyFailed).
			WithResource(step.FQN.String()),
	}
	run.store(step.Key(), result)
	e.record(ctx, run, result)
}

// cancelPending marks every step that never ran as cancelled.
func (e *Executor) cancelPending(ctx context.Context, run *runState, plan *ActionPlan) {
	for _, step := range plan.Steps {
		if run.getStatus(step.Key()) != StepStatusPending {
			continue
		}
		now := time.Now()
		result := &StepResult{
			Step:        step,
			Status:      StepStatusCancelled,
			StartedAt:   now,
			CompletedAt: now,
		}
		run.store(step.Key(), result)
		e.record(ctx, run, result)
	}
}

func (e *Executor) record(ctx context.Context, run *runState, result *StepResult) {
	if e.recorder == nil {
		return
	}
	e.recorder.RecordStep(context.WithoutCancel(ctx), run.id, *result)
}

// classifyError converts an actuator error to an EngineError.
func classifyError(err error, step Step) *EngineError {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr
	}
	return NewPermanentError("actuation failed", err).
		WithCode(ErrCodeActuatorFailed).
		WithResource(step.FQN.String()).
		WithOperation(string(step.Operation))
}

func summarize(steps []StepResult) RunSummary {
	summary := RunSummary{Total: len(steps)}
	for _, s := range steps {
		switch s.Status {
		case StepStatusSucceeded:
			summary.Succeeded++
		case StepStatusFailed:
			summary.Failed++
		case StepStatusSkipped:
			summary.Skipped++
		case StepStatusCancelled:
			summary.Cancelled++
		}
	}
	return summary
}

func finalStatus(ctx context.Context, summary RunSummary, err error) RunStatus {
	switch {
	case ctx.Err() != nil:
		return RunStatusCancelled
	case summary.Failed > 0 && summary.Succeeded > 0:
		return RunStatusPartial
	case summary.Failed > 0 || err != nil:
		return RunStatusFailed
	case summary.Skipped > 0 || summary.Cancelled > 0:
		return RunStatusPartial
	default:
		return RunStatusSucceeded
	}
}
