// Package logs tails repack log files with bounded memory usage.
//
// A negative offset means "the last N lines"; a non-negative offset resumes
// a previous read, so `repack logs --follow` can stream appends without
// re-reading the file. Callers supply context deadlines so follow polling
// shuts down cleanly when the CLI exits.
package logs
