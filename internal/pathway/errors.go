package pathway

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var (
	// ErrNothingToPlan is returned when a day selection resolves to no dates.
	ErrNothingToPlan = errors.New("no days selected to plan")

	// ErrBusy is returned when a generation is already in flight for the session.
	ErrBusy = errors.New("a pathway generation is already in progress")

	ErrInvalidEffortMode = errors.New("invalid effort mode")
	ErrInvalidDate       = errors.New("invalid calendar date")
)

// GenerationParseError means the upstream text held no parseable JSON.
type GenerationParseError struct {
	Raw string
	Err error
}

func (e *GenerationParseError) Error() string {
	return fmt.Sprintf("generation response is not valid JSON: %v", e.Err)
}

func (e *GenerationParseError) Unwrap() error { return e.Err }

// GenerationSchemaError means the drafts parsed but had the wrong shape.
type GenerationSchemaError struct {
	Issues []string
}

func (e *GenerationSchemaError) Error() string {
	return "generation response failed validation: " + strings.Join(e.Issues, "; ")
}

// FinalizeValidationError is a local structural failure of a caller-edited draft.
type FinalizeValidationError struct {
	Field   string
	Message string
}

func (e *FinalizeValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// FinalizeSchemaError means the detailed plan failed the day-count schema.
type FinalizeSchemaError struct {
	Issues []string
}

func (e *FinalizeSchemaError) Error() string {
	return "detailed plan failed validation: " + strings.Join(e.Issues, "; ")
}

// EnrichmentError is a per-block venue lookup failure. It is logged and
// never returned from Finalize.
type EnrichmentError struct {
	Day   int
	Block int
	Stage string // "geocode" | "search"
	Err   error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("enrichment of day %d block %d failed at %s: %v", e.Day, e.Block, e.Stage, e.Err)
}

func (e *EnrichmentError) Unwrap() error { return e.Err }

// UpstreamError wraps a transport or service failure with no usable payload.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// MaterializationEmptyError means a plan produced no schedule blocks. Its
// message is shown to the caregiver as is.
type MaterializationEmptyError struct {
	Days int
}

func (e *MaterializationEmptyError) Error() string {
	return "No activities were generated, please try again"
}

// PlanValidationError lists the fields of a caller-supplied plan that cannot
// become schedule blocks, keyed by JSON path.
type PlanValidationError struct {
	Fields map[string]string
}

func (e *PlanValidationError) Error() string {
	keys := slices.Sorted(maps.Keys(e.Fields))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "invalid plan: " + strings.Join(parts, "; ")
}
