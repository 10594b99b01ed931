package authsvc

import (
	"io"

	"github.com/MrEthical07/authsvc/internal/audit"
	"github.com/go-logr/logr"
)

type (
	// AuditEvent is one security-relevant outcome.
	AuditEvent = audit.Event
	// AuditSink receives audit events from the engine's dispatcher goroutine.
	AuditSink = audit.Sink
	NoOpSink  = audit.NoOpSink
)

// NewChannelSink returns a sink that buffers events in a channel.
func NewChannelSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink that writes one JSON object per line.
func NewJSONWriterSink(w io.Writer) *audit.JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewLogSink returns a sink that writes events through logger.
func NewLogSink(logger logr.Logger) AuditSink {
	return audit.LogSink{Logger: logger}
}
