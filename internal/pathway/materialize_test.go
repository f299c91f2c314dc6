package pathway

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathways-backend/internal/catalog"
	"pathways-backend/internal/models"
)

func newTestMaterializer() *Materializer {
	m := NewMaterializer(nil, "https://cdn.example.test/activities/")
	n := 0
	m.NewID = func() string {
		n++
		return fmt.Sprintf("new-%d", n)
	}
	m.Now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return m
}

func onePerDayPlan(dates ...string) models.FinalPathwayPlan {
	plan := models.FinalPathwayPlan{Summary: "s"}
	for i, d := range dates {
		plan.Days = append(plan.Days, models.FinalDayPlan{
			Day:             i + 1,
			Date:            d,
			FieldExperience: "Walk the harbor",
			ScheduleBlocks: []models.FinalBlock{{
				StartTime: "2030-01-01T10:15:00",
				Duration:  60,
				Title:     fmt.Sprintf("Activity %d", i+1),
			}},
		})
	}
	return plan
}

func TestMaterialize_TwoDaySixtyMinuteScenario(t *testing.T) {
	m := newTestMaterializer()
	plan := onePerDayPlan("2024-06-01", "2024-06-02")

	blocks, err := m.Materialize(plan, nil, "trip-1", "Lisbon")
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	assert.Equal(t, "2024-06-01", blocks[0].Date)
	assert.Equal(t, "2024-06-02", blocks[1].Date)
	for _, b := range blocks {
		assert.True(t, b.IsGenerated)
		assert.Equal(t, 60, b.Duration)
		assert.Equal(t, "trip-1", b.TripID)
		assert.Equal(t, "Lisbon", b.Location)
		assert.Equal(t, models.ImageModeAuto, b.ImageMode)
	}
	assert.Equal(t, "2024-06-01T10:15:00", blocks[0].StartTime)
	assert.Equal(t, "2024-06-02T10:15:00", blocks[1].StartTime)
}

func TestMaterialize_ReplacesGeneratedKeepsManual(t *testing.T) {
	m := newTestMaterializer()
	manual := models.ScheduleBlock{ID: "m1", Date: "2024-06-01", Title: "Dinner with grandma", IsGenerated: false, Notes: "bring flowers"}
	existing := []models.ScheduleBlock{
		manual,
		{ID: "g1", Date: "2024-06-01", Title: "Old activity", IsGenerated: true},
	}

	blocks, err := m.Materialize(onePerDayPlan("2024-06-01"), existing, "trip-1", "Lisbon")
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	assert.Equal(t, manual, blocks[0])
	assert.Equal(t, "new-1", blocks[1].ID)
	assert.True(t, blocks[1].IsGenerated)
	for _, b := range blocks {
		assert.NotEqual(t, "g1", b.ID)
	}
}

func TestMaterialize_MergeLaw(t *testing.T) {
	m := newTestMaterializer()
	var existing []models.ScheduleBlock
	for i := range 6 {
		existing = append(existing, models.ScheduleBlock{ID: fmt.Sprintf("b%d", i), IsGenerated: i%2 == 0, Date: "2024-06-0" + fmt.Sprint(i+1)})
	}

	blocks, err := m.Materialize(onePerDayPlan("2024-06-01", "2024-06-02", "2024-06-03"), existing, "trip-1", "")
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, b := range blocks {
		ids[b.ID] = true
	}
	for _, e := range existing {
		assert.Equal(t, !e.IsGenerated, ids[e.ID], "block %s", e.ID)
	}
	assert.Len(t, blocks, 3+3)
}

func TestMaterialize_NewIDsAvoidManualIDs(t *testing.T) {
	m := newTestMaterializer()
	existing := []models.ScheduleBlock{{ID: "new-1"}}

	blocks, err := m.Materialize(onePerDayPlan("2024-06-01"), existing, "trip-1", "")
	require.NoError(t, err)
	assert.Equal(t, "new-2", blocks[1].ID)
}

func TestMaterialize_EmptyPlan(t *testing.T) {
	m := newTestMaterializer()
	plan := models.FinalPathwayPlan{Days: []models.FinalDayPlan{{Day: 1, Date: "2024-06-01"}}}
	existing := []models.ScheduleBlock{{ID: "m1"}}

	blocks, err := m.Materialize(plan, existing, "trip-1", "")
	assert.Nil(t, blocks)
	var eerr *MaterializationEmptyError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, 1, eerr.Days)
}

func TestMaterialize_RejectsMalformedPlan(t *testing.T) {
	m := newTestMaterializer()
	plan := models.FinalPathwayPlan{Days: []models.FinalDayPlan{
		{Day: 1, Date: "", ScheduleBlocks: []models.FinalBlock{{StartTime: "10:00", Duration: 0, Title: "Museum"}}},
		{Day: 2, Date: "not-a-date", ScheduleBlocks: []models.FinalBlock{{StartTime: "10:00", Duration: -30, Title: "  "}}},
	}}

	blocks, err := m.Materialize(plan, []models.ScheduleBlock{{ID: "m1"}}, "trip-1", "")
	assert.Nil(t, blocks)
	var perr *PlanValidationError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, map[string]string{
		"plan.days[0].date":                       "Date must be YYYY-MM-DD",
		"plan.days[0].scheduleBlocks[0].duration": "Duration must be a positive number of minutes",
		"plan.days[1].date":                       "Date must be YYYY-MM-DD",
		"plan.days[1].scheduleBlocks[0].duration": "Duration must be a positive number of minutes",
		"plan.days[1].scheduleBlocks[0].title":    "Title is required",
	}, perr.Fields)
	assert.Contains(t, err.Error(), "plan.days[1].date")
}

func TestValidatePlan_AllowsDayWithoutBlocks(t *testing.T) {
	plan := onePerDayPlan("2024-06-01")
	plan.Days = append(plan.Days, models.FinalDayPlan{Day: 2, Date: "2024-06-02"})
	assert.NoError(t, ValidatePlan(plan))
	assert.NoError(t, ValidatePlan(models.FinalPathwayPlan{}))
}

func TestMaterialize_ImagesUniqueWithinBatch(t *testing.T) {
	m := newTestMaterializer()
	pool := catalog.Default().Pool("museum")

	// Identical titles and positions hash identically across days, so the
	// walk-forward is what keeps them apart.
	plan := models.FinalPathwayPlan{}
	for i := range len(pool) {
		plan.Days = append(plan.Days, models.FinalDayPlan{
			Day:  i + 1,
			Date: fmt.Sprintf("2024-06-%02d", i+1),
			ScheduleBlocks: []models.FinalBlock{
				{StartTime: "09:00", Duration: 30, Title: "Museum visit"},
			},
		})
	}

	blocks, err := m.Materialize(plan, nil, "trip-1", "")
	require.NoError(t, err)
	require.Len(t, blocks, len(pool))

	seen := map[string]bool{}
	for _, b := range blocks {
		require.NotEmpty(t, b.ImageURL)
		assert.False(t, seen[b.ImageURL], "duplicate image %s", b.ImageURL)
		seen[b.ImageURL] = true
		assert.Contains(t, b.ImageURL, "https://cdn.example.test/activities/museum-")
		assert.NotEmpty(t, b.ImageAlt)
	}
}

func TestMaterialize_ImagesStableAcrossCalls(t *testing.T) {
	plan := onePerDayPlan("2024-06-01", "2024-06-02")

	a, err := newTestMaterializer().Materialize(plan, nil, "trip-1", "")
	require.NoError(t, err)
	b, err := newTestMaterializer().Materialize(plan, nil, "trip-1", "")
	require.NoError(t, err)
	for i := range a {
		assert.Equal(t, a[i].ImageURL, b[i].ImageURL)
	}
}

func TestMaterialize_CarriesPedagogyAndVenues(t *testing.T) {
	m := newTestMaterializer()
	rating := 4.6
	plan := models.FinalPathwayPlan{Days: []models.FinalDayPlan{{
		Day: 1, Date: "2024-06-01",
		DrivingQuestion: "dq", FieldExperience: "fe", InquiryTask: "it",
		Artifact: "ar", ReflectionPrompt: "rp", CritiqueStep: "cs",
		ScheduleBlocks: []models.FinalBlock{{
			StartTime: "14:00", Duration: 45, Title: "Zoo", Description: "Watch the animals",
			LocalOptions: []models.VenueSuggestion{{PlaceID: "p1", DisplayName: "Lisbon Zoo", Rating: &rating}},
		}},
	}}}

	blocks, err := m.Materialize(plan, nil, "trip-1", "")
	require.NoError(t, err)
	b := blocks[0]
	assert.Equal(t, "dq", b.DrivingQuestion)
	assert.Equal(t, "cs", b.CritiqueStep)
	assert.Equal(t, plan.Days[0].ScheduleBlocks[0].LocalOptions, b.LocalOptions)
	assert.Contains(t, b.ImageURL, "animals-")
	assert.Equal(t, "2024-06-01T14:00:00", b.StartTime)
}

func TestRebindStartTime(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"2030-12-31T10:30:00", "2024-06-01T10:30:00"},
		{"2030-12-31T10:30:00+01:00", "2024-06-01T10:30:00+01:00"},
		{"2030-12-31T10:30:00Z", "2024-06-01T10:30:00Z"},
		{"2030-12-31 08:05", "2024-06-01T08:05:00"},
		{"16:45", "2024-06-01T16:45:00"},
		{"3:30 PM", "2024-06-01T15:30:00"},
		{"3:30 pm", "2024-06-01T15:30:00"},
		{"sometime", "2024-06-01T09:00:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RebindStartTime("2024-06-01", tt.raw), tt.raw)
	}
}

func TestPlanFromDraft(t *testing.T) {
	dates := dateSetOf("2024-06-01", "2024-06-02")
	d := sampleDraft(dates)

	plan, err := PlanFromDraft(d, dates, EffortMode{Track: Effort15Min}, "")
	require.NoError(t, err)
	require.Len(t, plan.Days, 2)
	assert.Equal(t, "option-1", plan.DraftID)
	for i, day := range plan.Days {
		assert.Equal(t, dates[i], day.Date)
		require.Len(t, day.ScheduleBlocks, 1)
		assert.Equal(t, 15, day.ScheduleBlocks[0].Duration)
		assert.Equal(t, d.Days[i].Headline, day.ScheduleBlocks[0].Title)
	}

	blocks, err := newTestMaterializer().Materialize(plan, nil, "trip-1", "")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-02T09:00:00", blocks[1].StartTime)

	_, err = PlanFromDraft(d, dateSetOf("2024-06-01"), EffortMode{Track: Effort15Min}, "")
	var verr *FinalizeValidationError
	assert.ErrorAs(t, err, &verr)
}
