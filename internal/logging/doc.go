// Package logging wraps zap with context-aware methods.
//
// Every method takes a context first and prepends the correlation fields
// found in it: trace and span ids from OpenTelemetry, the request id set by
// the HTTP middleware and the experiment being handled.
//
//	logger.Info(ctx, "experiment added", zap.Int("count", n))
//
// Output goes to stdout (json or console) and, when a log provider is given,
// through the otelzap bridge. Debug to Warn entries are sampled; Error and
// above never are. Fields whose key names a credential are redacted before
// they reach any output.
//
// Tests use NewTestLogger, which records every entry in memory.
package logging
