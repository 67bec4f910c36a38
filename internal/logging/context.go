package logging

import (
	"context"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type (
	requestIDKey  struct{}
	experimentKey struct{}
)

const (
	maxRequestIDLen      = 128
	maxExperimentNameLen = 256
)

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ContextFields returns the correlation fields carried by ctx.
func ContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	if name := ExperimentFromContext(ctx); name != "" {
		fields = append(fields, zap.String("experiment.name", name))
	}
	return fields
}

// ValidRequestID reports whether id is a non-empty run of letters, digits,
// hyphens and underscores no longer than 128 bytes.
func ValidRequestID(id string) bool {
	return id != "" && len(id) <= maxRequestIDLen && requestIDPattern.MatchString(id)
}

// WithRequestID tags ctx with a request id. It panics on an id that
// ValidRequestID rejects; callers receiving ids from clients check first.
func WithRequestID(ctx context.Context, id string) context.Context {
	if !ValidRequestID(id) {
		panic("logging: invalid request id")
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithExperiment tags ctx with the experiment being handled. Names are free
// text: long ones are truncated, an empty one leaves ctx unchanged.
func WithExperiment(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	if len(name) > maxExperimentNameLen {
		name = name[:maxExperimentNameLen]
	}
	return context.WithValue(ctx, experimentKey{}, name)
}

// ExperimentFromContext returns the experiment name, or "".
func ExperimentFromContext(ctx context.Context) string {
	name, _ := ctx.Value(experimentKey{}).(string)
	return name
}
