package pathway

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// DraftCount is the number of candidate drafts every generation returns.
const DraftCount = 3

// startTimePattern accepts RFC3339-ish date-times and bare clock times.
const startTimePattern = `^(\d{4}-\d{2}-\d{2}[T ])?\d{1,2}:\d{2}`

func stringSchema() map[string]any {
	return map[string]any{"type": "string"}
}

func requiredStringSchema() map[string]any {
	return map[string]any{"type": "string", "minLength": 1}
}

func optionalStringSchema() map[string]any {
	return map[string]any{"type": []string{"string", "null"}}
}

// DraftSetSchema is the schema for a generation of DraftCount drafts, each
// exactly dayCount days long.
func DraftSetSchema(dayCount int) map[string]any {
	day := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"day":      map[string]any{"type": []string{"number", "string", "null"}},
			"date":     optionalStringSchema(),
			"headline": requiredStringSchema(),
			"summary":  optionalStringSchema(),
		},
		"required": []string{"headline"},
	}
	draft := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":        optionalStringSchema(),
			"type":      optionalStringSchema(),
			"title":     requiredStringSchema(),
			"overview":  stringSchema(),
			"whyItFits": optionalStringSchema(),
			"rationale": optionalStringSchema(),
			"days": map[string]any{
				"type":     "array",
				"items":    day,
				"minItems": dayCount,
				"maxItems": dayCount,
			},
		},
		"required": []string{"title", "overview", "days"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"drafts": map[string]any{
				"type":     "array",
				"items":    draft,
				"minItems": DraftCount,
				"maxItems": DraftCount,
			},
		},
		"required": []string{"drafts"},
	}
}

// PlanSchema is the schema for a detailed plan of exactly dayCount days. The
// model does not reliably honor day counts from the prompt alone, so the
// count is enforced here.
func PlanSchema(dayCount int) map[string]any {
	block := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"startTime":   map[string]any{"type": "string", "pattern": startTimePattern},
			"duration":    map[string]any{"type": "number", "exclusiveMinimum": 0},
			"title":       requiredStringSchema(),
			"description": optionalStringSchema(),
		},
		"required": []string{"startTime", "duration", "title"},
	}
	day := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"day":              map[string]any{"type": []string{"number", "string", "null"}},
			"date":             optionalStringSchema(),
			"drivingQuestion":  requiredStringSchema(),
			"fieldExperience":  requiredStringSchema(),
			"inquiryTask":      requiredStringSchema(),
			"artifact":         requiredStringSchema(),
			"reflectionPrompt": requiredStringSchema(),
			"critiqueStep":     requiredStringSchema(),
			"scheduleBlocks": map[string]any{
				"type":  "array",
				"items": block,
			},
		},
		"required": []string{
			"drivingQuestion", "fieldExperience", "inquiryTask",
			"artifact", "reflectionPrompt", "critiqueStep", "scheduleBlocks",
		},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": optionalStringSchema(),
			"days": map[string]any{
				"type":     "array",
				"items":    day,
				"minItems": dayCount,
				"maxItems": dayCount,
			},
		},
		"required": []string{"days"},
	}
}

var schemaCache sync.Map // "kind/dayCount" -> *jsonschema.Schema

func compiled(kind string, dayCount int, build func(int) map[string]any) (*jsonschema.Schema, error) {
	key := fmt.Sprintf("%s/%d", kind, dayCount)
	if s, ok := schemaCache.Load(key); ok {
		return s.(*jsonschema.Schema), nil
	}
	doc, err := json.Marshal(build(dayCount))
	if err != nil {
		return nil, err
	}
	s, err := jsonschema.CompileString(key+".json", string(doc))
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", kind, err)
	}
	schemaCache.Store(key, s)
	return s, nil
}

// validateAgainst checks v and returns the leaf validation messages, one per
// failing instance location. A nil slice means v conforms.
func validateAgainst(s *jsonschema.Schema, v any) []string {
	err := s.Validate(v)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	var issues []string
	collectLeaves(ve, &issues)
	sort.Strings(issues)
	return issues
}

func collectLeaves(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		*out = append(*out, fmt.Sprintf("%s: %s", loc, ve.Message))
		return
	}
	for _, c := range ve.Causes {
		collectLeaves(c, out)
	}
}

// wrapTopLevel lets a bare array stand in for {key: [...]}.
func wrapTopLevel(v any, key string) any {
	if arr, ok := v.([]any); ok {
		return map[string]any{key: arr}
	}
	return v
}
