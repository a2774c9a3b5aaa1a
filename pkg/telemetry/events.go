package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a lifecycle event published by the manager.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Context is the deployment context the event belongs to.
	Context string `json:"context,omitempty"`

	// RunID is the associated run ID, if applicable.
	RunID string `json:"run_id,omitempty"`

	// FQN is the associated entity, if applicable.
	FQN string `json:"fqn,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeModelApplied    = "model.applied"
	EventTypeModelRejected   = "model.rejected"
	EventTypePlanCreated     = "plan.created"
	EventTypeRunStarted      = "run.started"
	EventTypeRunCompleted    = "run.completed"
	EventTypeStepCompleted   = "step.completed"
	EventTypeStepFailed      = "step.failed"
	EventTypePolicyViolation = "policy.violation"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher fans lifecycle events out to subscribers. Subscribers are
// called in publish order, either inline or from a single background
// goroutine when async delivery is enabled.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	mu          sync.RWMutex
	wg          sync.WaitGroup
	closeOnce   sync.Once
	closed      chan struct{}
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	ep := &EventPublisher{
		config: cfg,
		closed: make(chan struct{}),
	}
	if !cfg.Enabled {
		return ep, nil
	}

	if cfg.EnableAsync {
		if cfg.BufferSize <= 0 {
			return nil, fmt.Errorf("event buffer size must be positive, got: %d", cfg.BufferSize)
		}
		ep.buffer = make(chan Event, cfg.BufferSize)
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Level == "" {
		event.Level = EventLevelInfo
	}

	select {
	case <-ep.closed:
		return fmt.Errorf("event publisher stopped")
	default:
	}

	if ep.buffer != nil {
		select {
		case ep.buffer <- event:
			return nil
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishModelApplied publishes a committed model version.
func (ep *EventPublisher) PublishModelApplied(contextName string, version, statements int, consistent bool) error {
	level := EventLevelInfo
	if !consistent {
		level = EventLevelWarning
	}
	return ep.Publish(Event{
		Type:    EventTypeModelApplied,
		Context: contextName,
		Level:   level,
		Message: fmt.Sprintf("model %s advanced to version %d", contextName, version),
		Data: map[string]interface{}{
			"version":    version,
			"statements": statements,
			"consistent": consistent,
		},
	})
}

// PublishModelRejected publishes a batch that was rolled back.
func (ep *EventPublisher) PublishModelRejected(contextName string, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeModelRejected,
		Context: contextName,
		Level:   EventLevelError,
		Message: reason,
	})
}

// PublishPlanCreated publishes a computed plan.
func (ep *EventPublisher) PublishPlanCreated(contextName, planID string, from, to, steps int) error {
	return ep.Publish(Event{
		Type:    EventTypePlanCreated,
		Context: contextName,
		Message: fmt.Sprintf("plan %s with %d steps (v%d -> v%d)", planID, steps, from, to),
		Data: map[string]interface{}{
			"plan_id": planID,
			"from":    from,
			"to":      to,
			"steps":   steps,
		},
	})
}

// PublishRunStarted publishes a run started event.
func (ep *EventPublisher) PublishRunStarted(contextName, runID, planID string) error {
	return ep.Publish(Event{
		Type:    EventTypeRunStarted,
		Context: contextName,
		RunID:   runID,
		Message: fmt.Sprintf("run started for plan %s", planID),
		Data: map[string]interface{}{
			"plan_id": planID,
		},
	})
}

// PublishRunCompleted publishes a run completed event.
func (ep *EventPublisher) PublishRunCompleted(contextName, runID, status string, duration time.Duration) error {
	level := EventLevelInfo
	if status != "succeeded" {
		level = EventLevelWarning
	}
	return ep.Publish(Event{
		Type:    EventTypeRunCompleted,
		Context: contextName,
		RunID:   runID,
		Level:   level,
		Message: fmt.Sprintf("run completed with status %s", status),
		Data: map[string]interface{}{
			"status":      status,
			"duration_ms": duration.Milliseconds(),
		},
	})
}

// PublishStep publishes the outcome of one step.
func (ep *EventPublisher) PublishStep(contextName, runID, fqn, operation, status string, reason string) error {
	event := Event{
		Type:    EventTypeStepCompleted,
		Context: contextName,
		RunID:   runID,
		FQN:     fqn,
		Level:   EventLevelInfo,
		Message: fmt.Sprintf("%s %s", operation, status),
		Data: map[string]interface{}{
			"operation": operation,
			"status":    status,
		},
	}
	if reason != "" {
		event.Type = EventTypeStepFailed
		event.Level = EventLevelError
		event.Message = reason
	}
	return ep.Publish(event)
}

// PublishPolicyViolation publishes a policy violation event.
func (ep *EventPublisher) PublishPolicyViolation(contextName, policyName, severity, message string) error {
	level := EventLevelWarning
	if severity == "error" {
		level = EventLevelError
	}
	return ep.Publish(Event{
		Type:    EventTypePolicyViolation,
		Context: contextName,
		Level:   level,
		Message: message,
		Data: map[string]interface{}{
			"policy":   policyName,
			"severity": severity,
		},
	})
}

// Subscribe adds a new event subscriber. A nil filter accepts every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// processEvents drains the buffer in async mode.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	for {
		select {
		case event := <-ep.buffer:
			ep.deliverEvent(event)
		case <-ep.closed:
			for {
				select {
				case event := <-ep.buffer:
					ep.deliverEvent(event)
				default:
					return
				}
			}
		}
	}
}

// deliverEvent delivers an event to all matching subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	entries := make([]subscriberEntry, len(ep.subscribers))
	copy(entries, ep.subscribers)
	ep.mu.RUnlock()

	for _, entry := range entries {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown stops the publisher, delivering buffered events first.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	ep.closeOnce.Do(func() { close(ep.closed) })

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByContext creates a filter that only allows events of one context.
func FilterByContext(contextName string) EventFilter {
	return func(event Event) bool {
		return event.Context == contextName
	}
}
