package pathway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"pathways-backend/internal/models"
)

// fakeText returns canned responses in order and counts calls.
type fakeText struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     atomic.Int32
	prompts   []string
	ctxErrs   []error
}

func (f *fakeText) Generate(ctx context.Context, prompt string) (string, error) {
	n := int(f.calls.Add(1)) - 1
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", fmt.Errorf("no canned response")
	}
	if n >= len(f.responses) {
		n = len(f.responses) - 1
	}
	return f.responses[n], nil
}

type fakeGeocoder struct {
	coords *LatLng
	err    error
	calls  atomic.Int32
}

func (g *fakeGeocoder) Geocode(_ context.Context, _ string) (*LatLng, error) {
	g.calls.Add(1)
	return g.coords, g.err
}

// fakeVenues fails for queries containing any of failOn.
type fakeVenues struct {
	mu      sync.Mutex
	failOn  []string
	results int
	queries []VenueQuery
}

func (v *fakeVenues) Search(_ context.Context, q VenueQuery) ([]models.VenueSuggestion, error) {
	v.mu.Lock()
	v.queries = append(v.queries, q)
	v.mu.Unlock()
	for _, f := range v.failOn {
		if strings.Contains(q.Query, f) {
			return nil, fmt.Errorf("venue service unavailable")
		}
	}
	n := v.results
	if n == 0 {
		n = 5
	}
	out := make([]models.VenueSuggestion, n)
	for i := range out {
		out[i] = models.VenueSuggestion{
			PlaceID:       fmt.Sprintf("%s-%d", q.Query, i),
			DisplayName:   fmt.Sprintf("Place %d", i),
			AreaLabel:     "Old Town",
			GoogleMapsURI: "https://maps.google.com/?cid=1",
		}
	}
	return out, nil
}

func dateSetOf(dates ...string) []string { return dates }

func testTrip() models.Trip {
	return models.Trip{ID: "trip-1", Title: "Summer in Lisbon", StartDate: "2024-06-01", EndDate: "2024-06-07", BaseLocation: "Lisbon"}
}

func testProfile() models.LearnerProfile {
	return models.LearnerProfile{ID: "learner-1", Name: "Ada", Age: 9, Timezone: "Europe/Lisbon"}
}

// draftsJSON renders a model draft response with the given number of drafts
// and days; echoed dates are deliberately wrong.
func draftsJSON(drafts, days int) string {
	type day struct {
		Day      int    `json:"day"`
		Date     string `json:"date"`
		Headline string `json:"headline"`
		Summary  string `json:"summary"`
	}
	type draft struct {
		ID        string `json:"id"`
		Type      string `json:"type"`
		Title     string `json:"title"`
		Overview  string `json:"overview"`
		WhyItFits string `json:"whyItFits"`
		Days      []day  `json:"days"`
	}
	out := struct {
		Drafts []draft `json:"drafts"`
	}{}
	for i := range drafts {
		d := draft{
			ID:        fmt.Sprintf("option-%d", i+1),
			Type:      "field-explorer",
			Title:     fmt.Sprintf("Draft %d", i+1),
			Overview:  "An overview",
			WhyItFits: "It fits",
		}
		for j := range days {
			d.Days = append(d.Days, day{Day: j + 1, Date: "1999-01-01", Headline: fmt.Sprintf("Headline %d", j+1), Summary: "s"})
		}
		out.Drafts = append(out.Drafts, d)
	}
	b, _ := json.Marshal(out)
	return string(b)
}

// planJSON renders a detailed plan with blocks per day from titles; echoed
// dates are deliberately wrong.
func planJSON(titles ...[]string) string {
	var days []map[string]any
	for i, ts := range titles {
		var blocks []map[string]any
		for j, t := range ts {
			blocks = append(blocks, map[string]any{
				"startTime":   fmt.Sprintf("2030-12-31T%02d:30:00", 9+j),
				"duration":    60,
				"title":       t,
				"description": "Look closely and take notes",
			})
		}
		if blocks == nil {
			blocks = []map[string]any{}
		}
		days = append(days, map[string]any{
			"day":              i + 1,
			"date":             "2030-12-31",
			"drivingQuestion":  "How do people here live?",
			"fieldExperience":  "Walk the old streets",
			"inquiryTask":      "Count the tiles",
			"artifact":         "A sketchbook page",
			"reflectionPrompt": "What surprised you?",
			"critiqueStep":     "Share with a sibling",
			"scheduleBlocks":   blocks,
		})
	}
	b, _ := json.Marshal(map[string]any{"summary": "A plan", "days": days})
	return string(b)
}

func sampleDraft(dateSet []string) models.PathwayDraft {
	d := models.PathwayDraft{
		ID:        "option-1",
		Type:      "field-explorer",
		Title:     "Tiles and tides",
		Overview:  "Explore the city",
		WhyItFits: "Loves patterns",
	}
	for i, date := range dateSet {
		d.Days = append(d.Days, models.DraftDay{Day: i + 1, Date: date, Headline: fmt.Sprintf("Day %d headline", i+1)})
	}
	return d
}
