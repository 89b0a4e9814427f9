package queue

import (
	"slices"
	"time"
)

// Status represents the lifecycle of a processing job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusReview     Status = "review"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusReview,
}

// ValidStatus reports whether value names a known job status.
func ValidStatus(value Status) bool {
	return slices.Contains(allStatuses, value)
}

// Kind distinguishes how a job's source is ingested.
type Kind string

const (
	KindArchive Kind = "archive"
	KindFolder  Kind = "folder"
)

// Job represents a processing job persisted in SQLite.
type Job struct {
	ID            int64
	RequestID     string
	SourcePath    string
	Kind          Kind
	Title         string
	ArchivePath   string
	Status        Status
	ErrorMessage  string
	UploadedCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Review     int
}
