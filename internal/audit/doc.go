// Package audit provides the audit event model, sinks and the asynchronous
// dispatcher used by the Engine.
//
// The dispatcher decouples the request path from sink latency: with DropIfFull
// set, a full buffer drops the event and counts it instead of blocking.
package audit
