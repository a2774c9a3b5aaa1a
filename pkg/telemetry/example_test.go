package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/openfroyo/vnflcm/pkg/telemetry"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = "1.0.0"
	cfg.Logging.Output = "discard"

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	logger := telemetry.FromContext(ctx)
	logger.WithContextName("lab").Info("Application started")

	fmt.Println(telemetry.FromTelemetryContext(ctx) == tel)
	// Output: true
}

// Example_eventPublishing demonstrates subscribing to lifecycle events.
func Example_eventPublishing() {
	tel := telemetry.NewNop()
	defer tel.Shutdown(context.Background())

	tel.Events.Subscribe(func(e telemetry.Event) {
		fmt.Printf("%s [%s] %s\n", e.Type, e.Level, e.Message)
	}, telemetry.FilterByType(telemetry.EventTypeModelApplied, telemetry.EventTypeRunCompleted))

	_ = tel.Events.PublishModelApplied("lab", 2, 5, true)
	_ = tel.Events.PublishPlanCreated("lab", "plan-1", 1, 2, 4)
	_ = tel.Events.PublishRunCompleted("lab", "run-1", "partial", time.Second)

	// Output:
	// model.applied [info] model lab advanced to version 2
	// run.completed [warning] run completed with status partial
}

// Example_instrumentedOperation demonstrates StartOperation.
func Example_instrumentedOperation() {
	tel := telemetry.NewNop()
	ctx := tel.WithContext(context.Background())

	ic := telemetry.StartOperation(ctx, "model.apply",
		telemetry.AttrContext.String("lab"),
		telemetry.AttrStatements.Int(3),
	)
	var err error
	ic.Logger.Info("applying batch")
	ic.End(err)

	fmt.Println(ic.Timer.Duration() >= 0)
	// Output: true
}

// Example_productionConfiguration shows the production preset.
func Example_productionConfiguration() {
	cfg := telemetry.ProductionConfig()

	fmt.Println(cfg.Logging.Format, cfg.Tracing.Exporter, cfg.Tracing.SamplingRate)
	// Output: json otlp 0.1
}
