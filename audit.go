package authstate

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/authstate/internal/audit"
)

// AuditEvent is one recorded authentication outcome.
type AuditEvent = audit.Event

// AuditSink receives audit events from the Engine's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink discards events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers events on a channel, mostly for tests.
type ChannelSink = audit.ChannelSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink { return audit.NewChannelSink(buffer) }

// NewJSONWriterSink writes one JSON event per line to w.
func NewJSONWriterSink(w io.Writer) AuditSink { return audit.NewJSONWriterSink(w) }

// NewSlogSink logs events through logger.
func NewSlogSink(logger *slog.Logger) AuditSink { return audit.NewSlogSink(logger) }
