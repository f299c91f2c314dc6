package pathway

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathways-backend/internal/models"
)

func newTestFinalizer(text TextGenerator, geo Geocoder, venues VenueSearcher) *Finalizer {
	return NewFinalizer(text, geo, venues, nil, FinalizerConfig{EnrichConcurrency: 2}, zerolog.Nop())
}

func finalizeInput(dates []string) FinalizeInput {
	return FinalizeInput{
		Chosen:  sampleDraft(dates),
		DateSet: dates,
		Effort:  sixtyMin,
		Profile: testProfile(),
		Trip:    testTrip(),
	}
}

func TestValidateEditedDraft(t *testing.T) {
	dates := dateSetOf("2024-06-01", "2024-06-02")
	tests := []struct {
		name  string
		edit  func(d *models.PathwayDraft)
		field string
	}{
		{"missing title", func(d *models.PathwayDraft) { d.Title = "" }, "editedDraft.title"},
		{"missing whyItFits", func(d *models.PathwayDraft) { d.WhyItFits = "" }, "editedDraft.whyItFits"},
		{"too few days", func(d *models.PathwayDraft) { d.Days = d.Days[:1] }, "editedDraft.days"},
		{"misaligned date", func(d *models.PathwayDraft) { d.Days[1].Date = "2024-06-05" }, "editedDraft.days[1].date"},
		{"missing headline", func(d *models.PathwayDraft) { d.Days[0].Headline = "" }, "editedDraft.days[0].headline"},
		{"missing day number", func(d *models.PathwayDraft) { d.Days[0].Day = 0 }, "editedDraft.days[0].day"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := sampleDraft(dates)
			tt.edit(&d)
			err := ValidateEditedDraft(d, dates)
			var verr *FinalizeValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	assert.NoError(t, ValidateEditedDraft(sampleDraft(dates), dates))
}

func TestFinalize_EditedDraftDayMismatchFailsBeforeNetwork(t *testing.T) {
	dates := dateSetOf("2024-06-01", "2024-06-02")
	text := &fakeText{responses: []string{planJSON([]string{"a"}, []string{"b"})}}
	f := newTestFinalizer(text, nil, nil)

	in := finalizeInput(dates)
	edited := sampleDraft(dateSetOf("2024-06-01", "2024-06-02", "2024-06-03"))
	in.Edited = &edited

	plan, err := f.Finalize(context.Background(), in)
	assert.Nil(t, plan)
	var verr *FinalizeValidationError
	require.ErrorAs(t, err, &verr)
	assert.EqualValues(t, 0, text.calls.Load())
}

func TestFinalize_UsesEditedDraft(t *testing.T) {
	dates := dateSetOf("2024-06-01")
	text := &fakeText{responses: []string{planJSON([]string{"Tile walk"})}}
	f := newTestFinalizer(text, nil, nil)

	in := finalizeInput(dates)
	edited := sampleDraft(dates)
	edited.Title = "Edited title"
	edited.Days[0].Headline = "Edited headline"
	in.Edited = &edited

	plan, err := f.Finalize(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "Edited title", plan.Title)
	assert.Contains(t, text.prompts[0], "Edited headline")
}

func TestFinalize_DatesComeFromDateSet(t *testing.T) {
	dates := dateSetOf("2024-06-01", "2024-06-03", "2024-06-07")
	text := &fakeText{responses: []string{planJSON([]string{"a"}, []string{"b"}, []string{"c"})}}
	f := newTestFinalizer(text, nil, nil)

	plan, err := f.Finalize(context.Background(), finalizeInput(dates))
	require.NoError(t, err)
	require.Len(t, plan.Days, 3)
	for i, d := range plan.Days {
		assert.Equal(t, dates[i], d.Date)
		assert.Equal(t, i+1, d.Day)
	}
	assert.Equal(t, "option-1", plan.DraftID)
	assert.Equal(t, "A plan", plan.Summary)
	assert.Equal(t, 60, plan.Days[0].ScheduleBlocks[0].Duration)
}

func TestFinalize_DayCountSchemaError(t *testing.T) {
	dates := dateSetOf("2024-06-01", "2024-06-02")
	text := &fakeText{responses: []string{planJSON([]string{"only one day"})}}
	f := newTestFinalizer(text, nil, nil)

	_, err := f.Finalize(context.Background(), finalizeInput(dates))
	var serr *FinalizeSchemaError
	require.ErrorAs(t, err, &serr)
	assert.NotEmpty(t, serr.Issues)
	assert.Contains(t, serr.Issues[0], "/days")
}

func TestFinalize_InvalidBlockRejected(t *testing.T) {
	dates := dateSetOf("2024-06-01")
	resp := `{"summary": "x", "days": [{"drivingQuestion": "q", "fieldExperience": "f", "inquiryTask": "i",
		"artifact": "a", "reflectionPrompt": "r", "critiqueStep": "c",
		"scheduleBlocks": [{"startTime": "whenever", "duration": 0, "title": "t"}]}]}`
	f := newTestFinalizer(&fakeText{responses: []string{resp}}, nil, nil)

	_, err := f.Finalize(context.Background(), finalizeInput(dates))
	var serr *FinalizeSchemaError
	require.ErrorAs(t, err, &serr)
	assert.Len(t, serr.Issues, 2)
}

func TestFinalize_NotJSONIsSchemaError(t *testing.T) {
	f := newTestFinalizer(&fakeText{responses: []string{"I planned a lovely week!"}}, nil, nil)
	_, err := f.Finalize(context.Background(), finalizeInput(dateSetOf("2024-06-01")))
	var serr *FinalizeSchemaError
	assert.ErrorAs(t, err, &serr)
}

func TestFinalize_UpstreamError(t *testing.T) {
	f := newTestFinalizer(&fakeText{err: errors.New("503")}, nil, nil)
	_, err := f.Finalize(context.Background(), finalizeInput(dateSetOf("2024-06-01")))
	var uerr *UpstreamError
	assert.ErrorAs(t, err, &uerr)
}

func TestFinalize_GenerationIgnoresCallerCancellation(t *testing.T) {
	text := &fakeText{responses: []string{planJSON([]string{"a"})}}
	f := newTestFinalizer(text, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Finalize(ctx, finalizeInput(dateSetOf("2024-06-01")))
	require.NoError(t, err)
	assert.NoError(t, text.ctxErrs[0])
}

func TestFinalize_EnrichmentIsolation(t *testing.T) {
	dates := dateSetOf("2024-06-01")
	text := &fakeText{responses: []string{planJSON([]string{"Museum of tiles", "Cooking class at the market", "Garden sketching"})}}
	geo := &fakeGeocoder{coords: &LatLng{Lat: 38.72, Lng: -9.14}}
	venues := &fakeVenues{failOn: []string{"farmers market"}}
	f := newTestFinalizer(text, geo, venues)

	in := finalizeInput(dates)
	in.Privacy = PrivacyOptions{VenueLinksEnabled: true}

	plan, err := f.Finalize(context.Background(), in)
	require.NoError(t, err)

	blocks := plan.Days[0].ScheduleBlocks
	require.Len(t, blocks, 3)
	assert.Len(t, blocks[0].LocalOptions, MaxVenuesPerBlock)
	assert.Empty(t, blocks[1].LocalOptions)
	assert.Len(t, blocks[2].LocalOptions, MaxVenuesPerBlock)
	assert.Equal(t, "Museum of tiles", blocks[0].Title, "output keeps plan order")

	for _, q := range venues.queries {
		assert.Equal(t, DefaultSearchRadiusMeters, q.RadiusMeters)
		assert.Equal(t, MaxVenuesPerBlock, q.MaxResults)
		assert.InDelta(t, 38.72, q.Near.Lat, 1e-9)
	}
}

func TestFinalize_GeocodeFailureSkipsEnrichment(t *testing.T) {
	for _, geo := range []*fakeGeocoder{{err: errors.New("quota")}, {coords: nil}} {
		text := &fakeText{responses: []string{planJSON([]string{"Museum visit"})}}
		venues := &fakeVenues{}
		f := newTestFinalizer(text, geo, venues)

		in := finalizeInput(dateSetOf("2024-06-01"))
		in.Privacy = PrivacyOptions{VenueLinksEnabled: true}
		plan, err := f.Finalize(context.Background(), in)
		require.NoError(t, err)
		assert.Empty(t, plan.Days[0].ScheduleBlocks[0].LocalOptions)
		assert.Empty(t, venues.queries)
	}
}

func TestFinalize_VenueLinksDisabled(t *testing.T) {
	text := &fakeText{responses: []string{planJSON([]string{"Museum visit"})}}
	geo := &fakeGeocoder{coords: &LatLng{}}
	f := newTestFinalizer(text, geo, &fakeVenues{})

	plan, err := f.Finalize(context.Background(), finalizeInput(dateSetOf("2024-06-01")))
	require.NoError(t, err)
	assert.Empty(t, plan.Days[0].ScheduleBlocks[0].LocalOptions)
	assert.EqualValues(t, 0, geo.calls.Load())
}

func TestVenueSearchQuery(t *testing.T) {
	f := newTestFinalizer(nil, nil, nil)
	assert.Equal(t, "museum in Lisbon", f.VenueSearchQuery("Tile museum", "", "", "Lisbon"))
	assert.Equal(t, "farmers market in Lisbon", f.VenueSearchQuery("Morning stroll", "Visit the market stalls", "", "Lisbon"))
	assert.Equal(t, "park in Lisbon", f.VenueSearchQuery("Morning stroll", "", "Nature walk", "Lisbon"))
	assert.Equal(t, "Tram ride Lisbon", f.VenueSearchQuery("Tram ride", "", "", "Lisbon"))
}
