package identity

import (
	"io"

	"github.com/tradepost/identity/internal/audit"
)

// AuditEvent is one structured record of an engine operation.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's async dispatcher.
// Emit must be safe for concurrent use; slow sinks only stall the
// dispatcher goroutine, never the operation that produced the event.
type AuditSink = audit.Sink

// NoOpSink discards audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers audit events in a channel for the host to drain.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line to a writer.
type JSONWriterSink = audit.JSONWriterSink

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}
