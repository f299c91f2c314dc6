package pathway

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"pathways-backend/internal/catalog"
	"pathways-backend/internal/models"
)

const (
	DefaultSearchRadiusMeters = 5000
	MaxVenuesPerBlock         = 3
	defaultEnrichConcurrency  = 4
)

// PrivacyOptions control what venue data reaches the plan.
type PrivacyOptions struct {
	VenueLinksEnabled  bool
	ShowExactAddresses bool
}

type FinalizeInput struct {
	Chosen  models.PathwayDraft
	Edited  *models.PathwayDraft // hand-edited draft, validated locally before any call
	DateSet []string
	Effort  EffortMode
	Profile models.LearnerProfile
	Trip    models.Trip
	Privacy PrivacyOptions
}

type FinalizerConfig struct {
	SearchRadiusMeters int
	EnrichConcurrency  int
}

type Finalizer struct {
	text    TextGenerator
	geo     Geocoder
	venues  VenueSearcher
	catalog *catalog.Catalog
	cfg     FinalizerConfig
	log     zerolog.Logger
}

// NewFinalizer builds a Finalizer. geo and venues may be nil, which turns
// enrichment off.
func NewFinalizer(text TextGenerator, geo Geocoder, venues VenueSearcher, cat *catalog.Catalog, cfg FinalizerConfig, log zerolog.Logger) *Finalizer {
	if cfg.SearchRadiusMeters <= 0 {
		cfg.SearchRadiusMeters = DefaultSearchRadiusMeters
	}
	if cfg.EnrichConcurrency <= 0 {
		cfg.EnrichConcurrency = defaultEnrichConcurrency
	}
	if cat == nil {
		cat = catalog.Default()
	}
	return &Finalizer{text: text, geo: geo, venues: venues, catalog: cat, cfg: cfg, log: log}
}

type planWire struct {
	Summary *string `json:"summary"`
	Days    []struct {
		DrivingQuestion  string `json:"drivingQuestion"`
		FieldExperience  string `json:"fieldExperience"`
		InquiryTask      string `json:"inquiryTask"`
		Artifact         string `json:"artifact"`
		ReflectionPrompt string `json:"reflectionPrompt"`
		CritiqueStep     string `json:"critiqueStep"`
		ScheduleBlocks   []struct {
			StartTime   string  `json:"startTime"`
			Duration    float64 `json:"duration"`
			Title       string  `json:"title"`
			Description *string `json:"description"`
		} `json:"scheduleBlocks"`
	} `json:"days"`
}

// Finalize expands the chosen draft into a detailed, validated and enriched
// plan whose days are bound to DateSet.
//
// The detailed-plan request is not cancellable: once issued it runs to
// completion even if ctx is cancelled, so callers should not abandon it
// expecting the upstream call to stop.
func (f *Finalizer) Finalize(ctx context.Context, in FinalizeInput) (*models.FinalPathwayPlan, error) {
	n := len(in.DateSet)
	if n == 0 {
		return nil, ErrNothingToPlan
	}
	if err := in.Effort.Validate(); err != nil {
		return nil, &FinalizeValidationError{Field: "effortMode", Message: err.Error()}
	}

	draft := in.Chosen
	if in.Edited != nil {
		if err := ValidateEditedDraft(*in.Edited, in.DateSet); err != nil {
			return nil, err
		}
		draft = *in.Edited
	} else if len(draft.Days) != n {
		return nil, &FinalizeValidationError{
			Field:   "chosenDraft.days",
			Message: fmt.Sprintf("has %d days, expected %d", len(draft.Days), n),
		}
	}

	prompt := buildFinalizePrompt(draft, in.Profile, in.Trip, in.DateSet, in.Effort)
	raw, err := f.text.Generate(context.WithoutCancel(ctx), prompt)
	if err != nil {
		return nil, &UpstreamError{Service: "generative text", Err: err}
	}

	plan, err := f.parsePlan(raw, in.DateSet)
	if err != nil {
		f.log.Warn().Err(err).Str("draft_id", draft.ID).Int("days", n).Msg("detailed plan rejected")
		return nil, err
	}
	plan.DraftID = draft.ID
	plan.Title = draft.Title

	if in.Privacy.VenueLinksEnabled {
		f.enrich(ctx, plan, in.Trip.BaseLocation, in.Privacy)
	}
	return plan, nil
}

// ValidateEditedDraft is the free structural gate in front of the paid
// generation call.
func ValidateEditedDraft(d models.PathwayDraft, dateSet []string) error {
	required := []struct{ field, value string }{
		{"id", d.ID},
		{"type", d.Type},
		{"title", d.Title},
		{"overview", d.Overview},
		{"whyItFits", d.WhyItFits},
	}
	for _, r := range required {
		if r.value == "" {
			return &FinalizeValidationError{Field: "editedDraft." + r.field, Message: "is required"}
		}
	}
	if len(d.Days) != len(dateSet) {
		return &FinalizeValidationError{
			Field:   "editedDraft.days",
			Message: fmt.Sprintf("has %d days, expected %d", len(d.Days), len(dateSet)),
		}
	}
	for i, day := range d.Days {
		field := fmt.Sprintf("editedDraft.days[%d]", i)
		switch {
		case day.Day == 0:
			return &FinalizeValidationError{Field: field + ".day", Message: "is required"}
		case day.Date == "":
			return &FinalizeValidationError{Field: field + ".date", Message: "is required"}
		case day.Headline == "":
			return &FinalizeValidationError{Field: field + ".headline", Message: "is required"}
		case day.Date != dateSet[i]:
			return &FinalizeValidationError{
				Field:   field + ".date",
				Message: fmt.Sprintf("is %s, expected %s", day.Date, dateSet[i]),
			}
		}
	}
	return nil
}

func (f *Finalizer) parsePlan(raw string, dateSet []string) (*models.FinalPathwayPlan, error) {
	v, err := decodeUntrusted(raw)
	if err != nil {
		return nil, &FinalizeSchemaError{Issues: []string{"/: " + err.Error()}}
	}
	v = wrapTopLevel(v, "days")

	schema, err := compiled("plan", len(dateSet), PlanSchema)
	if err != nil {
		return nil, err
	}
	if issues := validateAgainst(schema, v); len(issues) > 0 {
		return nil, &FinalizeSchemaError{Issues: issues}
	}

	var wire planWire
	if err := remarshal(v, &wire); err != nil {
		return nil, &FinalizeSchemaError{Issues: []string{err.Error()}}
	}

	plan := &models.FinalPathwayPlan{
		Summary: deref(wire.Summary),
		Days:    make([]models.FinalDayPlan, len(wire.Days)),
	}
	for i, d := range wire.Days {
		blocks := make([]models.FinalBlock, len(d.ScheduleBlocks))
		for j, b := range d.ScheduleBlocks {
			blocks[j] = models.FinalBlock{
				StartTime:   b.StartTime,
				Duration:    int(math.Max(1, math.Round(b.Duration))),
				Title:       b.Title,
				Description: deref(b.Description),
			}
		}
		// Dates come from the caller's day set, never the model's arithmetic.
		plan.Days[i] = models.FinalDayPlan{
			Day:              i + 1,
			Date:             dateSet[i],
			DrivingQuestion:  d.DrivingQuestion,
			FieldExperience:  d.FieldExperience,
			InquiryTask:      d.InquiryTask,
			Artifact:         d.Artifact,
			ReflectionPrompt: d.ReflectionPrompt,
			CritiqueStep:     d.CritiqueStep,
			ScheduleBlocks:   blocks,
		}
	}
	return plan, nil
}
