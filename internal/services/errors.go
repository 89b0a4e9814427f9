package services

import (
	"errors"
	"fmt"
	"strings"

	"repack/internal/queue"
)

// Sentinel markers for stage failures. A stage wraps its errors with exactly
// one marker; the pipeline classifies the job's terminal status from it.
var (
	ErrExternalTool  = errors.New("external tool failure")
	ErrValidation    = errors.New("validation failed")
	ErrConfiguration = errors.New("invalid configuration")
	ErrNotFound      = errors.New("not found")
	ErrAuth          = errors.New("authentication error")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient error")
)

// Wrap tags err with marker and prefixes stage/operation/message context.
// A nil marker degrades to ErrTransient so classification always has
// something to match on.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	detail := joinDetail(stage, operation, message)
	if err == nil {
		return fmt.Errorf("%w: %s", marker, detail)
	}
	return fmt.Errorf("%w: %s: %w", marker, detail, err)
}

// FailureStatus maps a stage error to the job status persisted after the
// failure. Validation and configuration problems need a human decision, so
// they land in review rather than failed.
func FailureStatus(err error) queue.Status {
	for _, marker := range []error{ErrValidation, ErrConfiguration, ErrNotFound} {
		if errors.Is(err, marker) {
			return queue.StatusReview
		}
	}
	return queue.StatusFailed
}

func joinDetail(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	if len(kept) == 0 {
		return "stage failure"
	}
	return strings.Join(kept, ": ")
}
