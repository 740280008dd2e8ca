package models

import (
	"time"
)

// Enums
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether a job in this status will never be picked up again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

const VideoStatusCompleted = "completed"

// Request defaults
const (
	DefaultTitle    = "Untitled Video"
	DefaultCategory = "General"
	DefaultFormat   = "16:9"
)

// Models

// VideoRequest is the user-supplied input for one generation.
type VideoRequest struct {
	Title            string `json:"title"`
	Category         string `json:"category"`
	Format           string `json:"format" validate:"omitempty,videoformat"`
	Style            string `json:"style" validate:"omitempty,videostyle"`
	Voice            string `json:"voice"`
	Script           string `json:"script" validate:"required"`
	Keywords         string `json:"keywords,omitempty"`
	NegativeKeywords string `json:"negative_keywords,omitempty"`
}

// WithDefaults fills the optional fields the pipeline cannot run without.
func (r VideoRequest) WithDefaults() VideoRequest {
	if r.Title == "" {
		r.Title = DefaultTitle
	}
	if r.Category == "" {
		r.Category = DefaultCategory
	}
	if r.Format == "" {
		r.Format = DefaultFormat
	}
	return r
}

type Job struct {
	ID          string       `json:"id"`
	Status      JobStatus    `json:"status"`
	Progress    int          `json:"progress"`
	Message     string       `json:"message"`
	Request     VideoRequest `json:"video_data"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at"`
	Result      *Video       `json:"result"`
	Error       *string      `json:"error"`
}

// JobUpdate carries the fields to merge into a job. Nil fields are left alone.
type JobUpdate struct {
	Status      *JobStatus
	Progress    *int
	Message     *string
	StartedAt   *time.Time
	CompletedAt *time.Time
	Result      *Video
	Error       *string
}

// Apply merges the update into job.
func (u JobUpdate) Apply(job *Job) {
	if u.Status != nil {
		job.Status = *u.Status
	}
	if u.Progress != nil {
		job.Progress = *u.Progress
	}
	if u.Message != nil {
		job.Message = *u.Message
	}
	if u.StartedAt != nil {
		t := *u.StartedAt
		job.StartedAt = &t
	}
	if u.CompletedAt != nil {
		t := *u.CompletedAt
		job.CompletedAt = &t
	}
	if u.Result != nil {
		job.Result = u.Result
	}
	if u.Error != nil {
		e := *u.Error
		job.Error = &e
	}
}

// Video is the permanent catalog record of a finished generation.
type Video struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Category         string    `json:"category"`
	Format           string    `json:"format"`
	Style            string    `json:"style"`
	Voice            string    `json:"voice"`
	Script           string    `json:"script"`
	Keywords         string    `json:"keywords"`
	NegativeKeywords string    `json:"negative_keywords"`
	Path             string    `json:"path"`
	ThumbnailPath    *string   `json:"thumbnail_path,omitempty"`
	Duration         float64   `json:"duration"`
	CreatedAt        time.Time `json:"created_at"`
	Status           string    `json:"status"`
}

// VideoUpdate lists the catalog fields a caller may change. The id and the
// artifact paths are never updatable.
type VideoUpdate struct {
	Title            *string  `json:"title,omitempty"`
	Category         *string  `json:"category,omitempty"`
	Format           *string  `json:"format,omitempty"`
	Style            *string  `json:"style,omitempty"`
	Voice            *string  `json:"voice,omitempty"`
	Script           *string  `json:"script,omitempty"`
	Keywords         *string  `json:"keywords,omitempty"`
	NegativeKeywords *string  `json:"negative_keywords,omitempty"`
	Duration         *float64 `json:"duration,omitempty"`
	Status           *string  `json:"status,omitempty"`
}

// ImagePrompt is one positive description plus what the image must avoid.
type ImagePrompt struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt"`
}

// SubtitleSegment is one caption with its time window in seconds.
type SubtitleSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start_time"`
	End   float64 `json:"end_time"`
}

// QueueSnapshot groups the jobs that have not reached a terminal status.
type QueueSnapshot struct {
	Queued     []*Job `json:"queued"`
	Processing []*Job `json:"processing"`
}

// API Request/Response types

type CreateVideoResponse struct {
	JobID         string `json:"job_id"`
	Message       string `json:"message"`
	QueuePosition int    `json:"queue_position"`
}

type JobStatusResponse struct {
	*Job
	QueuePosition int `json:"queue_position"`
}

type ListVideosResponse struct {
	Videos []*Video `json:"videos"`
	Total  int      `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}

type CleanupResponse struct {
	Removed int `json:"removed"`
	Days    int `json:"days"`
}

// Empty reports whether the update changes nothing.
func (u VideoUpdate) Empty() bool {
	return u.Title == nil && u.Category == nil && u.Format == nil && u.Style == nil &&
		u.Voice == nil && u.Script == nil && u.Keywords == nil && u.NegativeKeywords == nil &&
		u.Duration == nil && u.Status == nil
}

type SearchVideosResponse struct {
	Query  string   `json:"query"`
	Videos []*Video `json:"videos"`
	Count  int      `json:"count"`
}

type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}
