package logging

import (
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger records entries in memory for assertions.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger returns a logger that records every level, trace included.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	return &TestLogger{Logger: &Logger{zap: zap.New(core)}, observed: observed}
}

// All returns every recorded entry.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

// FilterMessage returns entries whose message contains msg.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.observed.FilterMessageSnippet(msg)
}

// Reset drops recorded entries.
func (t *TestLogger) Reset() {
	t.observed.TakeAll()
}

// AssertLogged fails tb unless an entry at level contains msg.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msg string) {
	tb.Helper()
	if t.observed.FilterLevelExact(level).FilterMessageSnippet(msg).Len() == 0 {
		tb.Errorf("no %s entry containing %q; got %s", level, msg, t.summary())
	}
}

// AssertNotLogged fails tb if an entry at level contains msg.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, msg string) {
	tb.Helper()
	if t.observed.FilterLevelExact(level).FilterMessageSnippet(msg).Len() > 0 {
		tb.Errorf("unexpected %s entry containing %q", level, msg)
	}
}

// AssertField fails tb unless some entry containing msg has field key equal
// to want. Integer fields compare against int and int64.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, want any) {
	tb.Helper()
	entries := t.observed.FilterMessageSnippet(msg).All()
	if len(entries) == 0 {
		tb.Errorf("no entry containing %q; got %s", msg, t.summary())
		return
	}
	var seen []string
	for _, e := range entries {
		got, ok := e.ContextMap()[key]
		if !ok {
			continue
		}
		if got == want || sameInt(got, want) {
			return
		}
		seen = append(seen, fmt.Sprintf("%v (%T)", got, got))
	}
	if len(seen) == 0 {
		tb.Errorf("no entry containing %q has field %q", msg, key)
		return
	}
	tb.Errorf("no entry containing %q has %s = %v (%T); saw [%s]", msg, key, want, want, strings.Join(seen, ", "))
}

func sameInt(got, want any) bool {
	g, ok := got.(int64)
	if !ok {
		return false
	}
	switch w := want.(type) {
	case int:
		return g == int64(w)
	case int64:
		return g == w
	}
	return false
}

func (t *TestLogger) summary() string {
	var msgs []string
	for _, e := range t.observed.All() {
		msgs = append(msgs, e.Level.String()+":"+e.Message)
	}
	return "[" + strings.Join(msgs, ", ") + "]"
}
