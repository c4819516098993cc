package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

// logLine runs a single Info call through WithContext and decodes the
// resulting JSON line.
func logLine(t *testing.T, ctx context.Context, msg string) map[string]interface{} {
	t.Helper()

	var buf bytes.Buffer
	l := NewWithWriter("wishlist", "info", &buf)

	WithContext(ctx, l).Info(msg)

	var out map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	return out
}

func spanContext(t *testing.T, traceHex, spanHex string) context.Context {
	t.Helper()

	traceID, err := trace.TraceIDFromHex(traceHex)
	if err != nil {
		t.Fatalf("trace id: %v", err)
	}
	spanID, err := trace.SpanIDFromHex(spanHex)
	if err != nil {
		t.Fatalf("span id: %v", err)
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestWithContext_CorrelationID(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "req-8f2a")
	out := logLine(t, ctx, "sync started")

	if got := out["correlation_id"]; got != "req-8f2a" {
		t.Errorf("correlation_id = %v, want %q", got, "req-8f2a")
	}
}

func TestWithContext_NoSpan(t *testing.T) {
	out := logLine(t, context.Background(), "no span")

	if _, ok := out["trace_id"]; ok {
		t.Error("trace_id should not be present when no span in context")
	}
	if _, ok := out["span_id"]; ok {
		t.Error("span_id should not be present when no span in context")
	}
}

func TestWithContext_WithValidSpan(t *testing.T) {
	ctx := spanContext(t, "4bf92f3577b34da6a3ce929d0e0e4736", "00f067aa0ba902b7")
	out := logLine(t, ctx, "with span")

	if got := out["trace_id"]; got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("trace_id = %v, want %q", got, "4bf92f3577b34da6a3ce929d0e0e4736")
	}
	if got := out["span_id"]; got != "00f067aa0ba902b7" {
		t.Errorf("span_id = %v, want %q", got, "00f067aa0ba902b7")
	}
}

func TestWithContext_UserID(t *testing.T) {
	ctx := WithUserID(context.Background(), "wisher-42")
	out := logLine(t, ctx, "with user")

	if got := out["user_id"]; got != "wisher-42" {
		t.Errorf("user_id = %v, want %q", got, "wisher-42")
	}
}

func TestWithContext_NoUserID(t *testing.T) {
	out := logLine(t, context.Background(), "no user")

	if _, ok := out["user_id"]; ok {
		t.Error("user_id should not be present when not in context")
	}
}

func TestWithContext_AllFields(t *testing.T) {
	ctx := spanContext(t, "abcdef1234567890abcdef1234567890", "1234567890abcdef")
	ctx = WithCorrelationID(ctx, "corr-all")
	ctx = WithUserID(ctx, "wisher-all")

	out := logLine(t, ctx, "all fields")

	want := map[string]string{
		"correlation_id": "corr-all",
		"user_id":        "wisher-all",
		"trace_id":       "abcdef1234567890abcdef1234567890",
		"span_id":        "1234567890abcdef",
	}
	for key, val := range want {
		if got := out[key]; got != val {
			t.Errorf("%s = %v, want %q", key, got, val)
		}
	}
}

func TestFromContext_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("wishlist", "info", &buf)

	ctx := NewContext(context.Background(), l)
	if got := FromContext(ctx); got != l {
		t.Error("FromContext should return the logger stored via NewContext")
	}
}

func TestFromContext_WithoutLogger(t *testing.T) {
	if got := FromContext(context.Background()); got == nil {
		t.Error("FromContext should return a non-nil fallback logger")
	}
}
