package models

import (
	"math"
	"time"
)

// TaskStatus is the processing state of a transcription/summarization task.
type TaskStatus string

const (
	StatusQueued       TaskStatus = "queued"
	StatusDownloading  TaskStatus = "downloading"
	StatusTranscribing TaskStatus = "transcribing"
	StatusSummarizing  TaskStatus = "summarizing"
	StatusProcessing   TaskStatus = "processing"
	StatusCompleted    TaskStatus = "completed"
	StatusFailed       TaskStatus = "failed"
)

// IsTerminal reports whether s is completed or failed.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusDownloading, StatusTranscribing, StatusSummarizing,
		StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// InFlight returns s when it is a known non-terminal status and [StatusProcessing] otherwise.
// Only completion and error events may make a task terminal.
func (s TaskStatus) InFlight() TaskStatus {
	if !s.Valid() || s.IsTerminal() {
		return StatusProcessing
	}
	return s
}

// TaskLiveStatus is the latest known state of a task as seen by this client.
type TaskLiveStatus struct {
	ID        string     `json:"id"`
	Title     string     `json:"title,omitempty"`
	Status    TaskStatus `json:"status"`
	Progress  int        `json:"progress"` // 0-100
	Stage     string     `json:"stage,omitempty"`
	Error     string     `json:"error,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TaskPatch carries the fields of a partial task update. Zero values and nil pointers leave the stored field unchanged.
type TaskPatch struct {
	Title    string
	Status   TaskStatus
	Progress *int
	Stage    *string
	Error    *string
}

// Int returns a pointer to v, for building a [TaskPatch].
func Int(v int) *int { return &v }

// String returns a pointer to v, for building a [TaskPatch].
func String(v string) *string { return &v }

// ClampProgress bounds p to 0-100.
func ClampProgress(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

// RoundProgress rounds a fractional percentage and bounds it to 0-100.
func RoundProgress(p float64) int {
	return ClampProgress(int(math.Round(math.Min(math.Max(p, 0), 100))))
}

// TaskSummary is a task as listed by the REST API.
type TaskSummary struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Status    TaskStatus `json:"status"`
	Progress  float64    `json:"progress"`
	Stage     string     `json:"stage,omitempty"`
	Error     string     `json:"error_message,omitempty"`
	SourceURL string     `json:"source_url,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Patch converts s into the same partial update a progress push frame would carry.
func (s TaskSummary) Patch() TaskPatch {
	patch := TaskPatch{
		Title:    s.Title,
		Status:   s.Status.InFlight(),
		Progress: Int(RoundProgress(s.Progress)),
	}
	if s.Stage != "" {
		patch.Stage = String(s.Stage)
	}
	if s.Error != "" {
		patch.Error = String(s.Error)
	}
	return patch
}

// TaskFilter narrows a task listing.
type TaskFilter struct {
	Status   TaskStatus
	Page     int
	PageSize int
}

// TaskPage is one page of a task listing.
type TaskPage struct {
	Items    []TaskSummary `json:"items"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// HasMore reports whether pages beyond this one exist.
func (p TaskPage) HasMore() bool {
	if p.PageSize <= 0 {
		return false
	}
	return p.Page*p.PageSize < p.Total
}
