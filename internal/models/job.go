package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	JobTypePathwayApply = "pathway-apply"

	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

type Job struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Type         string          `json:"type"` // "pathway-apply"
	TripID       string          `json:"trip_id"`
	ConfigJSON   json.RawMessage `json:"config"`
	ResultJSON   json.RawMessage `json:"result,omitempty"`
	Status       string          `json:"status"` // "pending" | "processing" | "completed" | "failed"
	ErrorMessage *string         `json:"error_message"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
}

// ApplyResult is stored on a completed pathway-apply job.
type ApplyResult struct {
	Plan   FinalPathwayPlan `json:"plan"`
	Blocks []ScheduleBlock  `json:"blocks"`
}

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type StatusUpdate struct {
	JobID    uuid.UUID `json:"job_id"`
	Step     int       `json:"step"`
	StepName string    `json:"step_name"`
}

type CompletedEvent struct {
	JobID      uuid.UUID `json:"job_id"`
	TripID     string    `json:"trip_id"`
	BlockCount int       `json:"block_count"`
}

type ErrorEvent struct {
	JobID        uuid.UUID `json:"job_id"`
	ErrorCode    string    `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
}

type ToastEvent struct {
	Message string `json:"message"`
	Kind    string `json:"kind"` // "info" | "success" | "error"
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   string            `json:"details,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Actions   []string          `json:"actions,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
