// Package services holds the glue shared by every pipeline stage and external
// integration: context annotations (job ID, stage, request ID) that logging
// picks up, and the sentinel error markers plus Wrap that decide whether a
// failed job lands in failed or review.
//
// Stage code should reach for these helpers instead of rolling its own so
// error classification and log correlation stay uniform across the pipeline.
package services
