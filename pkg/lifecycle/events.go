package lifecycle

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/openfroyo/vnflcm/pkg/engine"
	"github.com/openfroyo/vnflcm/pkg/stores"
	"github.com/openfroyo/vnflcm/pkg/telemetry"
)

// PersistEvents returns a subscriber appending published events to store.
// The event context and data are kept in the details document.
func PersistEvents(store stores.Store, logger zerolog.Logger) telemetry.EventSubscriber {
	return func(event telemetry.Event) {
		rec := &stores.Event{
			Level:     stores.EventLevel(event.Level),
			Type:      event.Type,
			Message:   event.Message,
			Timestamp: event.Timestamp,
		}
		if event.RunID != "" {
			rec.RunID = &event.RunID
		}
		if event.FQN != "" {
			rec.FQN = &event.FQN
		}

		details := make(map[string]interface{}, len(event.Data)+1)
		for k, v := range event.Data {
			details[k] = v
		}
		if event.Context != "" {
			details["context"] = event.Context
		}
		if len(details) > 0 {
			if raw, err := json.Marshal(details); err == nil {
				s := string(raw)
				rec.Details = &s
			}
		}

		if err := store.AppendEvent(context.Background(), rec); err != nil {
			logger.Warn().Err(err).Str("type", event.Type).Msg("Failed to persist event")
		}
	}
}

// stepRecorder reports finished steps to metrics and events.
type stepRecorder struct {
	tel     *telemetry.Telemetry
	context string
}

func (r *stepRecorder) RecordStep(_ context.Context, runID string, result engine.StepResult) {
	step := result.Step
	r.tel.Metrics.RecordStep(string(step.Operation), string(step.Type), string(result.Status), result.Duration)

	var reason string
	if result.Error != nil {
		reason = result.Error.Error()
		r.tel.Metrics.RecordError(string(result.Error.Class), result.Error.Code)
	}

	_ = r.tel.Events.PublishStep(r.context, runID, step.FQN.String(), string(step.Operation), string(result.Status), reason)
}


// traced wraps actuator so every attempt runs in a step span.
func traced(tracer *telemetry.Tracer, actuator engine.Actuator) engine.Actuator {
	return engine.ActuatorFunc(func(ctx context.Context, req engine.ActuationRequest) error {
		ctx, span := tracer.StartStepSpan(ctx, string(req.Step.Type), req.Step.FQN.String(), string(req.Step.Operation))
		defer span.End()

		err := actuator.Actuate(ctx, req)
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.RecordSuccess(span)
		}
		return err
	})
}
