// Package telemetry wires OpenTelemetry tracing and metrics for experimentd.
//
// New installs OTLP trace and metric providers as the process globals when
// enabled; packages then obtain tracers and meters from the otel globals.
// Exporter failures degrade the instance instead of failing startup.
//
// Tests use NewTestTelemetry, which records spans and metrics in memory:
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("test").Start(ctx, "op")
//	span.End()
//	tt.AssertSpanExists(t, "op")
package telemetry
