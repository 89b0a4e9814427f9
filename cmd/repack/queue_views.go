package main

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"repack/internal/queue"
)

// buildQueueStatusRows turns per-status counters into sorted table rows.
func buildQueueStatusRows(stats map[queue.Status]int) [][]string {
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, string(key))
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), strconv.Itoa(stats[queue.Status(key)])})
	}
	return rows
}

// buildQueueListRows renders jobs newest first, ties broken by ID.
func buildQueueListRows(jobs []*queue.Job) [][]string {
	sorted := append([]*queue.Job(nil), jobs...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	rows := make([][]string, len(sorted))
	for i, job := range sorted {
		rows[i] = queueRow(job)
	}
	return rows
}

func queueRow(job *queue.Job) []string {
	return []string{
		strconv.FormatInt(job.ID, 10),
		displayTitle(job),
		formatStatusLabel(string(job.Status)),
		formatDisplayTime(job.CreatedAt),
		strconv.Itoa(job.UploadedCount),
		formatErrorSummary(job.ErrorMessage),
	}
}

// displayTitle falls back to the source file name until a real title is known.
func displayTitle(job *queue.Job) string {
	if title := strings.TrimSpace(job.Title); title != "" {
		return title
	}
	if source := strings.TrimSpace(job.SourcePath); source != "" {
		return filepath.Base(source)
	}
	return "Unknown"
}

func formatStatusLabel(status string) string {
	status = strings.ReplaceAll(strings.TrimSpace(status), "_", " ")
	if status == "" {
		return ""
	}
	return cases.Title(language.English).String(status)
}

func formatDisplayTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format("2006-01-02 15:04")
}

func formatErrorSummary(message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return "-"
	}
	runes := []rune(message)
	if len(runes) > 48 {
		return string(runes[:45]) + "..."
	}
	return message
}
