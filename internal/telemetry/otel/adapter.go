package otel

import (
	"context"
	"encoding/json"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"invoicing-session-control/internal/events"
)

// recordLogger is the subset of otellog.Logger the emitter uses.
type recordLogger interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an events.Emitter that sends session events as OTel
// log records via the given LoggerProvider. If provider is nil, returns a
// no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) events.Emitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &logEmitter{logger: provider.Logger("invoicing-session-control/events")}
}

func newEventEmitterWithLogger(logger recordLogger) events.Emitter {
	return &logEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *events.Event) error { return nil }
func (noopEmitter) Close() error                              { return nil }

type logEmitter struct {
	logger recordLogger
}

// Emit converts the session event to an OTel log record and emits it. The
// full event is the JSON body; ids and the event type become attributes.
func (e *logEmitter) Emit(ctx context.Context, event *events.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.CreatedAt.IsZero() {
		rec.SetTimestamp(event.CreatedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	if payload, err := json.Marshal(event); err == nil {
		rec.SetBody(otellog.BytesValue(payload))
	}
	if event.SessionID != "" {
		rec.AddAttributes(otellog.String("session_id", event.SessionID))
	}
	if event.AccountID != "" {
		rec.AddAttributes(otellog.String("account_id", event.AccountID))
	}
	if event.EventType != "" {
		rec.AddAttributes(otellog.String("event_type", string(event.EventType)))
	}
	if event.DeviceDescriptor != "" {
		rec.AddAttributes(otellog.String("device_descriptor", event.DeviceDescriptor))
	}
	if event.Detail != "" {
		rec.AddAttributes(otellog.String("detail", event.Detail))
	}
	e.logger.Emit(ctx, rec)
	return nil
}

// Close is a no-op; the LoggerProvider owns exporter shutdown.
func (e *logEmitter) Close() error { return nil }
