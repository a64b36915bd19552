package goGuard

import (
	"io"

	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/rs/zerolog"
)

// AuditEvent is one throttling decision or state change.
type AuditEvent = audit.Event

// AuditSink receives audit events from the guard's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink discards events.
type NoOpSink = audit.NoOpSink

// ChannelSink delivers events on a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// LoggerSink writes events through zerolog.
type LoggerSink = audit.LoggerSink

// NewChannelSink creates a [ChannelSink].
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] over w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewLoggerSink creates a [LoggerSink].
func NewLoggerSink(logger zerolog.Logger) *LoggerSink {
	return audit.NewLoggerSink(logger)
}

// newAuditDispatcher wires the dispatcher to the guard's metrics and logger.
// Denials and store outages are never shed.
func (g *Guard) newAuditDispatcher(cfg AuditConfig, sink AuditSink) *audit.Dispatcher {
	return audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
		Critical:   isCriticalAuditEvent,
		OnDrop: func(e audit.Event) {
			g.logger.Debug().Str("event_type", e.EventType).Str("identity", e.Identity).Msg("audit event dropped")
		},
		OnBackpressure: func(audit.Event) {
			g.metrics.Inc(MetricAuditBackpressure)
		},
	}, sink)
}

func isCriticalAuditEvent(e audit.Event) bool {
	switch e.EventType {
	case auditEventAttemptDenied, auditEventStoreUnavailable:
		return true
	default:
		return false
	}
}
