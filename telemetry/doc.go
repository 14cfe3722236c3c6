// Package telemetry sets up OpenTelemetry traces, metrics and logs for the simulator and
// provides the span helpers used by the scheduler and the gateways.
//
// # Overview
//
// Everything is off unless Config.Enabled is set. When enabled, each signal can be turned off
// on its own and exported over OTLP (gRPC or HTTP), to stdout ("console"), or dropped ("none").
// Sampling and propagators follow the OTel SDK environment conventions (OTEL_TRACES_SAMPLER,
// OTEL_PROPAGATORS).
//
// # Usage
//
//	providers, err := telemetry.Setup(ctx, &cfg.Telemetry)
//	if err != nil {
//	    return err
//	}
//	defer providers.Shutdown(ctx)
//
//	ctx, span := telemetry.StartInternal(ctx, "tick")
//	defer span.End()
//	if err := work(ctx); err != nil {
//	    telemetry.RecordError(ctx, err)
//	}
//
// Setup points the span helpers at the new tracer and makes [Meter] return the new meter.
// Without Setup the helpers are no-ops and [Meter] falls back to the global provider.
package telemetry
