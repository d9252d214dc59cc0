package otel

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"invoicing-session-control/internal/events"
)

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	if em == nil {
		t.Fatal("NewEventEmitter(nil) returned nil")
	}
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("noop Emit(ctx, nil): %v", err)
	}
	if err := em.Emit(context.Background(), &events.Event{AccountID: "acct-1"}); err != nil {
		t.Errorf("noop Emit(ctx, event): %v", err)
	}
	if err := em.Close(); err != nil {
		t.Errorf("noop Close: %v", err)
	}
}

func TestLogEmitter_NilEvent_ReturnsNil(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewEventEmitter(provider)
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(ctx, nil): %v", err)
	}
}

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec otellog.Record
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
}

func TestLogEmitter_AttributeAndBodyMapping(t *testing.T) {
	capture := &recordCapture{}
	em := newEventEmitterWithLogger(capture)
	event := &events.Event{
		SessionID:        "sess-1",
		AccountID:        "acct-1",
		EventType:        events.TypeRejected,
		DeviceDescriptor: "Firefox on Linux",
		Detail:           "seat limit",
		CreatedAt:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := capture.rec

	if got := rec.Timestamp(); !got.Equal(event.CreatedAt) {
		t.Errorf("timestamp = %v, want %v", got, event.CreatedAt)
	}
	if rec.Body().Empty() {
		t.Fatal("body should carry the event JSON")
	}
	var decoded events.Event
	if err := json.Unmarshal(rec.Body().AsBytes(), &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.SessionID != "sess-1" || decoded.EventType != events.TypeRejected {
		t.Errorf("body = %+v, want sess-1/rejected", decoded)
	}

	attrs := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	want := map[string]string{
		"session_id": "sess-1", "account_id": "acct-1", "event_type": "rejected",
		"device_descriptor": "Firefox on Linux", "detail": "seat limit",
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attr %q = %q, want %q", k, attrs[k], v)
		}
	}
}

func TestLogEmitter_ZeroTimestamp_SetsCurrentTime(t *testing.T) {
	capture := &recordCapture{}
	em := newEventEmitterWithLogger(capture)

	before := time.Now().UTC()
	if err := em.Emit(context.Background(), &events.Event{AccountID: "acct-1", EventType: events.TypeReaped}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	after := time.Now().UTC()

	ts := capture.rec.Timestamp()
	if ts.IsZero() {
		t.Fatal("timestamp should be set when CreatedAt is zero")
	}
	if ts.Before(before) || ts.After(after) {
		t.Errorf("timestamp = %v, should be between %v and %v", ts, before, after)
	}
}
