package actuator

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/openfroyo/vnflcm/pkg/engine"
)

// DryRun logs each step and remembers the requests it was given.
type DryRun struct {
	logger   zerolog.Logger
	mu       sync.Mutex
	requests []engine.ActuationRequest
}

// NewDryRun creates a dry-run actuator.
func NewDryRun(logger zerolog.Logger) *DryRun {
	return &DryRun{
		logger: logger.With().Str("component", "actuator").Str("actuator", KindDryRun).Logger(),
	}
}

// Actuate implements engine.Actuator.
func (d *DryRun) Actuate(ctx context.Context, req engine.ActuationRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.logger.Info().
		Str("context", req.Context).
		Str("run_id", req.RunID).
		Str("type", string(req.Step.Type)).
		Str("fqn", req.Step.FQN.String()).
		Str("operation", string(req.Step.Operation)).
		Bool("entity", req.Entity != nil).
		Msg("Would actuate step")

	d.mu.Lock()
	d.requests = append(d.requests, req)
	d.mu.Unlock()

	return nil
}

// Requests returns the requests seen so far, in call order.
func (d *DryRun) Requests() []engine.ActuationRequest {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]engine.ActuationRequest, len(d.requests))
	copy(out, d.requests)
	return out
}
