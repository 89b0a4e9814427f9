// Package sevenzip drives the 7-Zip command line binary.
//
// The client covers the three operations the pipeline needs: extracting an
// archive while probing an ordered password-candidate list, creating the
// final archive from a recipe (including the double-wrapped zstd form),
// and listing archive contents. Command execution goes through an Executor
// so tests can substitute a stub for the real binary.
package sevenzip
