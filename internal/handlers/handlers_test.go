package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathways-backend/internal/middleware"
	"pathways-backend/internal/models"
	"pathways-backend/internal/pathway"
	"pathways-backend/internal/services"
)

type stubPathwayService struct {
	err       error
	drafts    *models.DraftResponse
	plan      *models.FinalPathwayPlan
	job       *models.Job
	lastUser  uuid.UUID
	lastDraft string
	lastTrip  string
}

func (s *stubPathwayService) ResolveDays(req models.DaySetRequest) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []string{req.StartDate, req.EndDate}, nil
}

func (s *stubPathwayService) GenerateDrafts(_ context.Context, userID uuid.UUID, req models.DraftRequest) (*models.DraftResponse, error) {
	s.lastUser, s.lastTrip = userID, req.TripID
	return s.drafts, s.err
}

func (s *stubPathwayService) FallbackDrafts(_ context.Context, userID uuid.UUID, req models.DraftRequest) (*models.DraftResponse, error) {
	s.lastUser, s.lastTrip = userID, req.TripID
	return s.drafts, s.err
}

func (s *stubPathwayService) GetDrafts(_ context.Context, userID uuid.UUID, tripID string) (*models.DraftResponse, error) {
	s.lastUser, s.lastTrip = userID, tripID
	return s.drafts, s.err
}

func (s *stubPathwayService) SaveEdit(_ context.Context, userID uuid.UUID, draftID string, req models.DraftEditRequest) (*models.PathwayDraft, error) {
	s.lastUser, s.lastDraft, s.lastTrip = userID, draftID, req.TripID
	if s.err != nil {
		return nil, s.err
	}
	d := req.Draft
	return &d, nil
}

func (s *stubPathwayService) DiscardEdit(_ context.Context, userID uuid.UUID, tripID, draftID string) (*models.PathwayDraft, error) {
	s.lastUser, s.lastDraft, s.lastTrip = userID, draftID, tripID
	if s.err != nil {
		return nil, s.err
	}
	return &models.PathwayDraft{ID: draftID}, nil
}

func (s *stubPathwayService) Finalize(_ context.Context, userID uuid.UUID, req models.FinalizeRequest) (*models.FinalPathwayPlan, error) {
	s.lastUser, s.lastTrip = userID, req.TripID
	return s.plan, s.err
}

func (s *stubPathwayService) EnqueueApply(_ context.Context, userID uuid.UUID, req models.FinalizeRequest) (*models.Job, error) {
	s.lastUser, s.lastTrip = userID, req.TripID
	return s.job, s.err
}

func newRequest(t *testing.T, method, target string, body any, userID uuid.UUID, params map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, middleware.UserIDKey, userID)
	ctx = context.WithValue(ctx, middleware.RequestIDKey, "req-1")
	return req.WithContext(ctx)
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.APIError {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp.Error
}

func TestAPIError_Mapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		actions []string
	}{
		{"validation", &services.ValidationError{Fields: map[string]string{"tripId": "required"}}, 400, "VALIDATION_ERROR", nil},
		{"bad plan", &pathway.PlanValidationError{Fields: map[string]string{"plan.days[0].date": "Date must be YYYY-MM-DD"}}, 400, "VALIDATION_ERROR", nil},
		{"nothing to plan", pathway.ErrNothingToPlan, 400, "NOTHING_TO_PLAN", nil},
		{"bad effort", pathway.ErrInvalidEffortMode, 400, "VALIDATION_ERROR", nil},
		{"edited draft", &pathway.FinalizeValidationError{Field: "editedDraft.title", Message: "is required"}, 400, "FINALIZE_VALIDATION_ERROR", nil},
		{"busy", pathway.ErrBusy, 409, "GENERATION_IN_PROGRESS", nil},
		{"parse", &pathway.GenerationParseError{Err: errors.New("eof")}, 502, "GENERATION_PARSE_ERROR", []string{ActionRetry, ActionFallback}},
		{"draft schema", &pathway.GenerationSchemaError{Issues: []string{"/drafts: too short"}}, 502, "GENERATION_SCHEMA_ERROR", []string{ActionRetry, ActionFallback}},
		{"plan schema", &pathway.FinalizeSchemaError{Issues: []string{"/days: too short"}}, 502, "FINALIZE_SCHEMA_ERROR", []string{ActionRetry}},
		{"upstream", &pathway.UpstreamError{Service: "generative text", Err: errors.New("503")}, 502, "UPSTREAM_ERROR", []string{ActionRetry}},
		{"empty", &pathway.MaterializationEmptyError{Days: 2}, 422, "MATERIALIZATION_EMPTY", nil},
		{"not found", &services.NotFoundError{Message: "gone"}, 404, "NOT_FOUND", nil},
		{"unknown", errors.New("boom"), 500, "INTERNAL_ERROR", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := apiError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.actions, body.Actions)
		})
	}
}

func TestAPIError_WrappedErrors(t *testing.T) {
	status, body := apiError(errors.Join(errors.New("context"), pathway.ErrBusy))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "GENERATION_IN_PROGRESS", body.Code)

	_, body = apiError(&pathway.FinalizeValidationError{Field: "editedDraft.days", Message: "has 1 days, expected 2"})
	assert.Equal(t, map[string]string{"editedDraft.days": "has 1 days, expected 2"}, body.Fields)
}

func TestPathwayHandler_GenerateDrafts(t *testing.T) {
	userID := uuid.New()
	svc := &stubPathwayService{drafts: &models.DraftResponse{Drafts: []models.PathwayDraft{{ID: "option-1"}}}}
	h := NewPathwayHandler(svc)

	rr := httptest.NewRecorder()
	h.GenerateDrafts(rr, newRequest(t, http.MethodPost, "/api/v1/pathways/drafts", models.DraftRequest{TripID: "trip-1"}, userID, nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, userID, svc.lastUser)
	assert.Equal(t, "trip-1", svc.lastTrip)
	var resp models.DraftResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "option-1", resp.Drafts[0].ID)
}

func TestPathwayHandler_GenerateDraftsOffersFallback(t *testing.T) {
	svc := &stubPathwayService{err: &pathway.UpstreamError{Service: "generative text", Err: errors.New("timeout")}}
	h := NewPathwayHandler(svc)

	rr := httptest.NewRecorder()
	h.GenerateDrafts(rr, newRequest(t, http.MethodPost, "/api/v1/pathways/drafts", models.DraftRequest{TripID: "trip-1"}, uuid.New(), nil))

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	apiErr := decodeError(t, rr)
	assert.Equal(t, []string{ActionRetry, ActionFallback}, apiErr.Actions)
	assert.Equal(t, "req-1", apiErr.RequestID)
}

func TestPathwayHandler_GenerateDraftsBusy(t *testing.T) {
	h := NewPathwayHandler(&stubPathwayService{err: pathway.ErrBusy})

	rr := httptest.NewRecorder()
	h.GenerateDrafts(rr, newRequest(t, http.MethodPost, "/api/v1/pathways/drafts", models.DraftRequest{}, uuid.New(), nil))

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Empty(t, decodeError(t, rr).Actions)
}

func TestPathwayHandler_InvalidBody(t *testing.T) {
	h := NewPathwayHandler(&stubPathwayService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pathways/finalize", bytes.NewBufferString("{not json"))

	rr := httptest.NewRecorder()
	h.Finalize(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rr).Code)
}

func TestPathwayHandler_Days(t *testing.T) {
	h := NewPathwayHandler(&stubPathwayService{})
	rr := httptest.NewRecorder()
	h.Days(rr, newRequest(t, http.MethodPost, "/api/v1/pathways/days",
		models.DaySetRequest{StartDate: "2024-06-01", EndDate: "2024-06-02"}, uuid.New(), nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Dates []string `json:"dates"`
		Count int      `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Count)

	h = NewPathwayHandler(&stubPathwayService{err: pathway.ErrNothingToPlan})
	rr = httptest.NewRecorder()
	h.Days(rr, newRequest(t, http.MethodPost, "/api/v1/pathways/days", models.DaySetRequest{}, uuid.New(), nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "NOTHING_TO_PLAN", decodeError(t, rr).Code)
}

func TestPathwayHandler_EditRoutes(t *testing.T) {
	userID := uuid.New()
	svc := &stubPathwayService{}
	h := NewPathwayHandler(svc)
	params := map[string]string{"draftID": "option-2"}

	rr := httptest.NewRecorder()
	body := models.DraftEditRequest{TripID: "trip-1", Draft: models.PathwayDraft{Title: "Mine"}}
	h.SaveEdit(rr, newRequest(t, http.MethodPut, "/api/v1/pathways/drafts/option-2/edit", body, userID, params))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "option-2", svc.lastDraft)
	assert.Equal(t, "trip-1", svc.lastTrip)

	rr = httptest.NewRecorder()
	h.DiscardEdit(rr, newRequest(t, http.MethodDelete, "/api/v1/pathways/drafts/option-2/edit?tripId=trip-9", nil, userID, params))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "trip-9", svc.lastTrip)

	svc.err = &pathway.FinalizeValidationError{Field: "editedDraft.days", Message: "has 1 days, expected 2"}
	rr = httptest.NewRecorder()
	h.SaveEdit(rr, newRequest(t, http.MethodPut, "/api/v1/pathways/drafts/option-2/edit", body, userID, params))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "FINALIZE_VALIDATION_ERROR", decodeError(t, rr).Code)
}

func TestPathwayHandler_Apply(t *testing.T) {
	jobID := uuid.New()
	h := NewPathwayHandler(&stubPathwayService{job: &models.Job{ID: jobID, Status: models.JobStatusPending}})

	rr := httptest.NewRecorder()
	h.Apply(rr, newRequest(t, http.MethodPost, "/api/v1/pathways/apply", models.FinalizeRequest{TripID: "trip-1"}, uuid.New(), nil))

	require.Equal(t, http.StatusAccepted, rr.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, jobID.String(), resp["job_id"])
	assert.Equal(t, models.JobStatusPending, resp["status"])
}

type stubScheduleService struct {
	blocks   []models.ScheduleBlock
	err      error
	lastTrip string
	deleted  string
}

func (s *stubScheduleService) ListSchedule(_ context.Context, _ uuid.UUID, tripID string) ([]models.ScheduleBlock, error) {
	s.lastTrip = tripID
	return s.blocks, s.err
}

func (s *stubScheduleService) CreateBlock(_ context.Context, _ uuid.UUID, tripID string, req models.CreateBlockRequest) (*models.ScheduleBlock, error) {
	s.lastTrip = tripID
	if s.err != nil {
		return nil, s.err
	}
	return &models.ScheduleBlock{ID: "b1", TripID: tripID, Title: req.Title}, nil
}

func (s *stubScheduleService) DeleteBlock(_ context.Context, _ uuid.UUID, tripID, blockID string) error {
	s.lastTrip, s.deleted = tripID, blockID
	return s.err
}

func (s *stubScheduleService) Materialize(_ context.Context, _ uuid.UUID, tripID string, _ models.MaterializeRequest) ([]models.ScheduleBlock, error) {
	s.lastTrip = tripID
	return s.blocks, s.err
}

func (s *stubScheduleService) ApplyDraft(_ context.Context, _ uuid.UUID, tripID string, _ models.ApplyDraftRequest) ([]models.ScheduleBlock, error) {
	s.lastTrip = tripID
	return s.blocks, s.err
}

func TestScheduleHandler_Routes(t *testing.T) {
	svc := &stubScheduleService{blocks: []models.ScheduleBlock{{ID: "b1"}}}
	h := NewScheduleHandler(svc)
	params := map[string]string{"tripID": "trip-7", "blockID": "b1"}

	rr := httptest.NewRecorder()
	h.List(rr, newRequest(t, http.MethodGet, "/api/v1/trips/trip-7/schedule", nil, uuid.New(), params))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "trip-7", svc.lastTrip)

	rr = httptest.NewRecorder()
	h.Create(rr, newRequest(t, http.MethodPost, "/api/v1/trips/trip-7/schedule", models.CreateBlockRequest{Title: "Picnic"}, uuid.New(), params))
	assert.Equal(t, http.StatusCreated, rr.Code)

	rr = httptest.NewRecorder()
	h.Delete(rr, newRequest(t, http.MethodDelete, "/api/v1/trips/trip-7/schedule/b1", nil, uuid.New(), params))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "b1", svc.deleted)
}

func TestScheduleHandler_MaterializeEmpty(t *testing.T) {
	h := NewScheduleHandler(&stubScheduleService{err: &pathway.MaterializationEmptyError{Days: 3}})

	rr := httptest.NewRecorder()
	h.Materialize(rr, newRequest(t, http.MethodPost, "/api/v1/trips/trip-7/schedule/materialize",
		models.MaterializeRequest{}, uuid.New(), map[string]string{"tripID": "trip-7"}))

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := decodeError(t, rr)
	assert.Equal(t, "MATERIALIZATION_EMPTY", body.Code)
	assert.Equal(t, "No activities were generated, please try again", body.Message)
}

func TestScheduleHandler_MaterializeRejectsMalformedPlan(t *testing.T) {
	svc := services.NewPathwayService(services.PathwayDeps{Materializer: pathway.NewMaterializer(nil, "")})
	h := NewScheduleHandler(svc)

	plan := models.FinalPathwayPlan{Days: []models.FinalDayPlan{
		{Day: 1, Date: "", ScheduleBlocks: []models.FinalBlock{{StartTime: "10:00", Duration: 0, Title: "Museum"}}},
		{Day: 2, Date: "not-a-date", ScheduleBlocks: []models.FinalBlock{{StartTime: "10:00", Duration: -30, Title: "Park"}}},
	}}

	rr := httptest.NewRecorder()
	h.Materialize(rr, newRequest(t, http.MethodPost, "/api/v1/trips/trip-7/schedule/materialize",
		models.MaterializeRequest{Plan: plan}, uuid.New(), map[string]string{"tripID": "trip-7"}))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeError(t, rr)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.Contains(t, body.Fields, "plan.days[0].date")
	assert.Contains(t, body.Fields, "plan.days[0].scheduleBlocks[0].duration")
	assert.Contains(t, body.Fields, "plan.days[1].date")
	assert.Contains(t, body.Fields, "plan.days[1].scheduleBlocks[0].duration")
}

type stubJobService struct {
	job *models.Job
	err error
}

func (s *stubJobService) GetJob(_ context.Context, _, _ uuid.UUID) (*models.Job, error) {
	return s.job, s.err
}

func TestJobHandler_GetJob(t *testing.T) {
	jobID := uuid.New()

	rr := httptest.NewRecorder()
	NewJobHandler(&stubJobService{}).GetJob(rr, newRequest(t, http.MethodGet, "/api/v1/jobs/x", nil, uuid.New(), map[string]string{"id": "not-a-uuid"}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	NewJobHandler(&stubJobService{err: &services.NotFoundError{Message: "Job not found"}}).
		GetJob(rr, newRequest(t, http.MethodGet, "/api/v1/jobs/"+jobID.String(), nil, uuid.New(), map[string]string{"id": jobID.String()}))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	NewJobHandler(&stubJobService{job: &models.Job{ID: jobID, Status: models.JobStatusCompleted}}).
		GetJob(rr, newRequest(t, http.MethodGet, "/api/v1/jobs/"+jobID.String(), nil, uuid.New(), map[string]string{"id": jobID.String()}))
	require.Equal(t, http.StatusOK, rr.Code)
	var job models.Job
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&job))
	assert.Equal(t, jobID, job.ID)
}

var (
	_ PathwayService  = (*services.PathwayService)(nil)
	_ ScheduleService = (*services.PathwayService)(nil)
	_ JobService      = (*services.PathwayService)(nil)
)
