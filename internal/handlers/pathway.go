package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pathways-backend/internal/middleware"
	"pathways-backend/internal/models"
)

type PathwayService interface {
	ResolveDays(req models.DaySetRequest) ([]string, error)
	GenerateDrafts(ctx context.Context, userID uuid.UUID, req models.DraftRequest) (*models.DraftResponse, error)
	FallbackDrafts(ctx context.Context, userID uuid.UUID, req models.DraftRequest) (*models.DraftResponse, error)
	GetDrafts(ctx context.Context, userID uuid.UUID, tripID string) (*models.DraftResponse, error)
	SaveEdit(ctx context.Context, userID uuid.UUID, draftID string, req models.DraftEditRequest) (*models.PathwayDraft, error)
	DiscardEdit(ctx context.Context, userID uuid.UUID, tripID, draftID string) (*models.PathwayDraft, error)
	Finalize(ctx context.Context, userID uuid.UUID, req models.FinalizeRequest) (*models.FinalPathwayPlan, error)
	EnqueueApply(ctx context.Context, userID uuid.UUID, req models.FinalizeRequest) (*models.Job, error)
}

type PathwayHandler struct {
	svc PathwayService
}

func NewPathwayHandler(svc PathwayService) *PathwayHandler {
	return &PathwayHandler{svc: svc}
}

// Days resolves a day selection so the client can show what will be planned.
func (h *PathwayHandler) Days(w http.ResponseWriter, r *http.Request) {
	var req models.DaySetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	dates, err := h.svc.ResolveDays(req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dates": dates,
		"count": len(dates),
	})
}

func (h *PathwayHandler) GenerateDrafts(w http.ResponseWriter, r *http.Request) {
	var req models.DraftRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.svc.GenerateDrafts(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		// Any failed generation can still fall back to the basic drafts,
		// except a rejected concurrent request.
		if isGenerationFailure(err) {
			handleServiceError(w, r, err, ActionFallback)
			return
		}
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func isGenerationFailure(err error) bool {
	status, _ := apiError(err)
	return status == http.StatusBadGateway
}

func (h *PathwayHandler) FallbackDrafts(w http.ResponseWriter, r *http.Request) {
	var req models.DraftRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.svc.FallbackDrafts(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PathwayHandler) GetDrafts(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.GetDrafts(r.Context(), middleware.GetUserID(r.Context()), r.URL.Query().Get("tripId"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PathwayHandler) SaveEdit(w http.ResponseWriter, r *http.Request) {
	var req models.DraftEditRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	draft, err := h.svc.SaveEdit(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "draftID"), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (h *PathwayHandler) DiscardEdit(w http.ResponseWriter, r *http.Request) {
	draft, err := h.svc.DiscardEdit(r.Context(), middleware.GetUserID(r.Context()), r.URL.Query().Get("tripId"), chi.URLParam(r, "draftID"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// Finalize runs the detailed-plan call inline. The call is not abandoned if
// the client disconnects.
func (h *PathwayHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	var req models.FinalizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	plan, err := h.svc.Finalize(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// Apply queues finalize + materialize and returns the job to poll or watch
// over the websocket.
func (h *PathwayHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req models.FinalizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	job, err := h.svc.EnqueueApply(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.ID,
		"status": job.Status,
	})
}

