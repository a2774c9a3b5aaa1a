// Package telemetry provides observability instrumentation for vnflcm.
//
// The telemetry package integrates structured logging (zerolog), distributed
// tracing (OpenTelemetry), metrics (Prometheus) and lifecycle event
// publishing behind a single Telemetry value.
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = version
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
//	logger := tel.Logger.NewComponentLogger("lifecycle")
//	logger.WithContextName("lab").WithField("version", 3).Info("model applied")
//	logger.WithFQN("/vnf1/t1/web").WithError(err).Error("actuation failed")
//
// # Tracing
//
// Operations are wrapped with StartOperation, which starts a span, derives
// a logger carrying the trace and span IDs and starts a timer:
//
//	ic := telemetry.StartOperation(ctx, "model.apply",
//	    telemetry.AttrContext.String("lab"))
//	err := apply(ic.Ctx)
//	ic.End(err)
//
// Supported exporters: "otlp" (gRPC), "stdout" and "none".
//
// # Metrics
//
// Key metrics exposed (namespace vnflcm):
//
//   - model_applies_total{result}
//   - model_apply_duration_seconds{result}
//   - model_version{context}
//   - model_entities{context,type}
//   - model_rules{context}
//   - model_inconsistent{context}
//   - plan_steps_total{operation,type}
//   - runs_completed_total{status}
//   - steps_executed_total{operation,status}
//   - policy_violations_total{policy,severity}
//   - errors_by_class_total{class}
//
// Metrics are exposed over HTTP with Metrics.Serve.
//
// # Events
//
// The EventPublisher fans lifecycle events (model.applied, plan.created,
// run.started, step.completed, ...) out to subscribers in publish order:
//
//	tel.Events.Subscribe(func(e telemetry.Event) {
//	    fmt.Println(e.Type, e.Message)
//	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))
package telemetry
