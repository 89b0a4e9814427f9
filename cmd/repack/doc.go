// Package main implements the repack command line interface.
//
// Subcommands map onto the stages of the archive pipeline: process runs it
// for explicit paths, watch keeps it running against a drop folder, and the
// queue, status, logs, and inspect commands examine state without mutating
// it. Shared plumbing (config resolution, the queue store, table and status
// rendering) lives beside the commands in this package.
//
// New behaviour belongs in the internal packages; commands here should stay
// thin translators from flags to calls.
package main
