package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ImageModeAuto   = "auto"
	ImageModeCustom = "custom"
	ImageModeNone   = "none"
)

// ScheduleBlock is a persisted, timed activity shown on a trip's schedule.
// Generated blocks are replaced wholesale on every materialization; manual
// blocks are never touched by it.
type ScheduleBlock struct {
	ID          string    `json:"id"`
	TripID      string    `json:"tripId"`
	UserID      uuid.UUID `json:"-"`
	Date        string    `json:"date"`
	StartTime   string    `json:"startTime"`
	Duration    int       `json:"duration"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	IsGenerated bool      `json:"isGenerated"`
	CreatedAt   time.Time `json:"createdAt"`

	DrivingQuestion  string `json:"drivingQuestion,omitempty"`
	FieldExperience  string `json:"fieldExperience,omitempty"`
	InquiryTask      string `json:"inquiryTask,omitempty"`
	Artifact         string `json:"artifact,omitempty"`
	ReflectionPrompt string `json:"reflectionPrompt,omitempty"`
	CritiqueStep     string `json:"critiqueStep,omitempty"`

	LocalOptions []VenueSuggestion `json:"localOptions,omitempty"`
	ImageURL     string            `json:"imageUrl,omitempty"`
	ImageAlt     string            `json:"imageAlt,omitempty"`
	ImageMode    string            `json:"imageMode"`
}

type CreateBlockRequest struct {
	Date        string `json:"date"`
	StartTime   string `json:"startTime"`
	Duration    int    `json:"duration"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Notes       string `json:"notes"`
	ImageURL    string `json:"imageUrl"`
	ImageAlt    string `json:"imageAlt"`
}

type MaterializeRequest struct {
	TripLocation string           `json:"tripLocation"`
	Plan         FinalPathwayPlan `json:"plan"`
}

type ApplyDraftRequest struct {
	TripLocation  string          `json:"tripLocation"`
	SelectedDates []string        `json:"selectedDates"`
	EffortMode    EffortSelection `json:"effortMode"`
	Draft         PathwayDraft    `json:"draft"`
}
