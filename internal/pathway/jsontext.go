package pathway

import (
	"encoding/json"
	"strings"
)

// extractJSON pulls the JSON payload out of a model response. Responses may
// be raw JSON, fenced in a ``` or ```json block, or carry stray prose around
// the payload.
func extractJSON(raw string) string {
	text := strings.TrimSpace(raw)

	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		// drop the info string ("json", "JSON", ...) up to the first newline
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "{[") {
			rest = rest[nl+1:]
		} else {
			rest = strings.TrimPrefix(rest, "json")
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		text = strings.TrimSpace(rest)
	}

	if json.Valid([]byte(text)) {
		return text
	}

	// Try to carve out the outermost object or array.
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(text, pair[0])
		end := strings.LastIndex(text, pair[1])
		if start >= 0 && end > start {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate
			}
		}
	}
	return text
}

// decodeUntrusted parses model output into a generic JSON value for schema
// validation. A failure is a GenerationParseError.
func decodeUntrusted(raw string) (any, error) {
	payload := extractJSON(raw)
	var v any
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return nil, &GenerationParseError{Raw: raw, Err: err}
	}
	return v, nil
}

// remarshal converts a validated generic value into a typed struct.
func remarshal(v any, out any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
