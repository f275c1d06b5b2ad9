// Package logging provides structured, context-aware logging for supportd.
//
// The package wraps Zap with:
//   - Trace correlation: log entries pick up trace_id/span_id from the
//     active OpenTelemetry span in the context.
//   - Request correlation: HTTP middleware attaches a request ID that
//     every downstream log line carries.
//   - Dual output: stdout (JSON or console) plus an optional OTLP log
//     bridge via otelzap.
//   - Redaction: sensitive field names and value patterns are scrubbed
//     before encoding.
//   - Runtime level changes: SetLevel adjusts verbosity without a
//     restart, driven by the config watcher.
//
// Usage:
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    panic(err)
//	}
//	defer logger.Sync()
//
//	logger.Info(ctx, "query answered",
//	    zap.String("origin", "learned"),
//	    zap.Float64("confidence", 0.87),
//	)
package logging
