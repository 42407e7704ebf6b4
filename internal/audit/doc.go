// Package audit defines the audit event model and the asynchronous
// dispatcher that forwards events to a configurable sink.
package audit
