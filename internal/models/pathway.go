package models

import "time"

// PathwayDraft is a coarse candidate pathway: one headline per day, no timing.
type PathwayDraft struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Overview  string     `json:"overview"`
	WhyItFits string     `json:"whyItFits"`
	Rationale string     `json:"rationale,omitempty"`
	Days      []DraftDay `json:"days"`
}

type DraftDay struct {
	Day      int    `json:"day"`
	Date     string `json:"date"`
	Headline string `json:"headline"`
	Summary  string `json:"summary,omitempty"`
}

// FinalPathwayPlan is the fully detailed, time-scheduled pathway.
type FinalPathwayPlan struct {
	DraftID string         `json:"draftId,omitempty"`
	Title   string         `json:"title,omitempty"`
	Summary string         `json:"summary"`
	Days    []FinalDayPlan `json:"days"`
}

type FinalDayPlan struct {
	Day              int          `json:"day"`
	Date             string       `json:"date"`
	DrivingQuestion  string       `json:"drivingQuestion"`
	FieldExperience  string       `json:"fieldExperience"`
	InquiryTask      string       `json:"inquiryTask"`
	Artifact         string       `json:"artifact"`
	ReflectionPrompt string       `json:"reflectionPrompt"`
	CritiqueStep     string       `json:"critiqueStep"`
	ScheduleBlocks   []FinalBlock `json:"scheduleBlocks"`
}

type FinalBlock struct {
	StartTime    string            `json:"startTime"`
	Duration     int               `json:"duration"` // minutes
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	LocalOptions []VenueSuggestion `json:"localOptions,omitempty"`
}

// VenueSuggestion is a nearby real-world place attached to a schedule block.
type VenueSuggestion struct {
	PlaceID         string   `json:"placeId"`
	DisplayName     string   `json:"displayName"`
	AreaLabel       string   `json:"areaLabel"`
	GoogleMapsURI   string   `json:"googleMapsUri"`
	WebsiteURI      string   `json:"websiteUri,omitempty"`
	Rating          *float64 `json:"rating,omitempty"`
	UserRatingCount *int     `json:"userRatingCount,omitempty"`
	OpenNow         *bool    `json:"openNow,omitempty"`
}

// EffortSelection is the wire form of an effort mode.
type EffortSelection struct {
	Mode        string  `json:"mode"` // "15min" | "60min" | "4hrs" | "weekly"
	WeeklyHours float64 `json:"weeklyHours,omitempty"`
}

type DraftRequest struct {
	TripID         string          `json:"tripId"`
	LearnerID      string          `json:"learnerId"`
	SelectedDates  []string        `json:"selectedDates"`
	EffortMode     EffortSelection `json:"effortMode"`
	Trip           Trip            `json:"trip"`
	LearnerProfile LearnerProfile  `json:"learnerProfile"`
}

type DraftResponse struct {
	Drafts         []PathwayDraft `json:"drafts"`
	EditedDraftIDs []string       `json:"editedDraftIds,omitempty"`
	Fallback       bool           `json:"fallback,omitempty"`
}

type DraftEditRequest struct {
	TripID string       `json:"tripId"`
	Draft  PathwayDraft `json:"draft"`
}

type FinalizeRequest struct {
	TripID             string          `json:"tripId"`
	LearnerID          string          `json:"learnerId"`
	ChosenDraftID      string          `json:"chosenDraftId"`
	SelectedDates      []string        `json:"selectedDates"`
	EffortMode         EffortSelection `json:"effortMode"`
	Trip               Trip            `json:"trip"`
	LearnerProfile     LearnerProfile  `json:"learnerProfile"`
	ChosenDraft        *PathwayDraft   `json:"chosenDraft,omitempty"`
	EditedDraft        *PathwayDraft   `json:"editedDraft,omitempty"`
	VenueLinksEnabled  bool            `json:"venueLinksEnabled"`
	ShowExactAddresses bool            `json:"showExactAddresses"`
}

type DaySetRequest struct {
	StartDate    string   `json:"startDate"`
	EndDate      string   `json:"endDate"`
	Mode         string   `json:"mode"` // "entire-trip" | "date-range" | "select-days"
	RangeStart   string   `json:"rangeStart,omitempty"`
	RangeEnd     string   `json:"rangeEnd,omitempty"`
	SelectedDays []string `json:"selectedDays,omitempty"`
}

// DraftSession is the server-side state of one caregiver's draft round for a
// trip: the day set and effort the drafts were built for, the base drafts,
// and the edits layered on top of them.
type DraftSession struct {
	TripID     string                  `json:"tripId"`
	DateSet    []string                `json:"dateSet"`
	EffortMode EffortSelection         `json:"effortMode"`
	Drafts     []PathwayDraft          `json:"drafts"`
	Edits      map[string]PathwayDraft `json:"edits,omitempty"`
	Fallback   bool                    `json:"fallback,omitempty"`
	UpdatedAt  time.Time               `json:"updatedAt"`
}
