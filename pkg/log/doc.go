// Package log provides structured event logging for the bridge lifecycle.
//
// This package defines the Logger interface and Event types for capturing
// lifecycle events: state transitions, discovery/link/connect outcomes and
// errors. It is separate from operational logging (slog) - event capture
// provides a complete machine-readable trace for debugging a pairing or
// connection problem after the fact.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.Logger = log.NewSlogAdapter(slog.Default())
//
//	// For diagnostics: write to binary file
//	cfg.Logger, _ = log.NewFileLogger("/var/log/huelink/events.hlog")
//
//	// Both: use MultiLogger
//	cfg.Logger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # File Format
//
// Log files use CBOR encoding with integer keys. The Reader type iterates
// a capture file with optional filtering by stage, category or bridge id.
//
// Events never carry the bridge username or client key; callers building
// events must not place credentials in Detail or error messages.
package log
