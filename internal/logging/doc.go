// Package logging builds the process-wide slog logger.
//
// Two output formats are supported: a human-oriented console format used
// when stdout is a terminal, and line-delimited JSON for piped or service
// invocations. The "auto" format picks between them at startup. Loggers
// built from application config also append to repack.log under the
// configured log directory.
package logging
