package pathway

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"pathways-backend/internal/models"
)

// TextGenerator is the generative text service: a prompt in, free text out.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type DraftGenerator struct {
	text TextGenerator
	log  zerolog.Logger
}

func NewDraftGenerator(text TextGenerator, log zerolog.Logger) *DraftGenerator {
	return &DraftGenerator{text: text, log: log}
}

// wire shape of a model draft; numbers and nulls are tolerated.
type draftWire struct {
	ID        *string `json:"id"`
	Type      *string `json:"type"`
	Title     string  `json:"title"`
	Overview  string  `json:"overview"`
	WhyItFits *string `json:"whyItFits"`
	Rationale *string `json:"rationale"`
	Days      []struct {
		Headline string  `json:"headline"`
		Summary  *string `json:"summary"`
	} `json:"days"`
}

// Generate returns exactly DraftCount drafts whose days line up with dateSet.
func (g *DraftGenerator) Generate(ctx context.Context, profile models.LearnerProfile, trip models.Trip, dateSet []string, effort EffortMode) ([]models.PathwayDraft, error) {
	if len(dateSet) == 0 {
		return nil, ErrNothingToPlan
	}
	if err := effort.Validate(); err != nil {
		return nil, err
	}

	prompt := buildDraftPrompt(profile, trip, dateSet, effort)
	raw, err := g.text.Generate(ctx, prompt)
	if err != nil {
		return nil, &UpstreamError{Service: "generative text", Err: err}
	}

	v, err := decodeUntrusted(raw)
	if err != nil {
		g.log.Warn().Err(err).Int("response_len", len(raw)).Msg("draft response is not JSON")
		return nil, err
	}
	v = wrapTopLevel(v, "drafts")

	schema, err := compiled("drafts", len(dateSet), DraftSetSchema)
	if err != nil {
		return nil, err
	}
	if issues := validateAgainst(schema, v); len(issues) > 0 {
		g.log.Warn().Strs("issues", issues).Int("days", len(dateSet)).Msg("draft response failed schema")
		return nil, &GenerationSchemaError{Issues: issues}
	}

	var wire struct {
		Drafts []draftWire `json:"drafts"`
	}
	if err := remarshal(v, &wire); err != nil {
		return nil, &GenerationSchemaError{Issues: []string{err.Error()}}
	}

	drafts := make([]models.PathwayDraft, len(wire.Drafts))
	seen := make(map[string]bool, len(wire.Drafts))
	for i, w := range wire.Drafts {
		id := strings.TrimSpace(deref(w.ID))
		if id == "" || seen[id] {
			id = fmt.Sprintf("option-%d", i+1)
		}
		seen[id] = true

		d := models.PathwayDraft{
			ID:        id,
			Type:      strings.TrimSpace(deref(w.Type)),
			Title:     w.Title,
			Overview:  w.Overview,
			WhyItFits: deref(w.WhyItFits),
			Rationale: deref(w.Rationale),
			Days:      make([]models.DraftDay, len(dateSet)),
		}
		if d.Type == "" {
			d.Type = "custom"
		}
		// The input dates are authoritative, whatever the model echoed.
		for j, day := range w.Days {
			d.Days[j] = models.DraftDay{
				Day:      j + 1,
				Date:     dateSet[j],
				Headline: day.Headline,
				Summary:  deref(day.Summary),
			}
		}
		drafts[i] = d
	}
	return drafts, nil
}

// FallbackDrafts builds the basic continuous draft locally, without an AI
// call, and duplicates it into every slot so callers always see DraftCount
// drafts.
func FallbackDrafts(trip models.Trip, dateSet []string, effort EffortMode) []models.PathwayDraft {
	location := trip.BaseLocation
	if location == "" {
		location = "the area"
	}

	days := make([]models.DraftDay, len(dateSet))
	for i, date := range dateSet {
		days[i] = models.DraftDay{
			Day:      i + 1,
			Date:     date,
			Headline: fmt.Sprintf("Day %d: explore %s and record one question", i+1, location),
			Summary:  fmt.Sprintf("Spend %d minutes noticing, asking and noting what stands out.", effort.DailyMinutes(len(dateSet))),
		}
	}

	drafts := make([]models.PathwayDraft, DraftCount)
	for i := range drafts {
		drafts[i] = models.PathwayDraft{
			ID:        fmt.Sprintf("basic-continuous-%d", i+1),
			Type:      "basic",
			Title:     "Basic continuous pathway",
			Overview:  fmt.Sprintf("A simple daily explore-and-reflect rhythm across %d days in %s.", len(dateSet), location),
			WhyItFits: "Works for any learner while a tailored pathway is unavailable.",
			Days:      cloneDays(days),
		}
	}
	return drafts
}

func cloneDays(days []models.DraftDay) []models.DraftDay {
	out := make([]models.DraftDay, len(days))
	copy(out, days)
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
