package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pathways-backend/internal/middleware"
	"pathways-backend/internal/models"
)

type ScheduleService interface {
	ListSchedule(ctx context.Context, userID uuid.UUID, tripID string) ([]models.ScheduleBlock, error)
	CreateBlock(ctx context.Context, userID uuid.UUID, tripID string, req models.CreateBlockRequest) (*models.ScheduleBlock, error)
	DeleteBlock(ctx context.Context, userID uuid.UUID, tripID, blockID string) error
	Materialize(ctx context.Context, userID uuid.UUID, tripID string, req models.MaterializeRequest) ([]models.ScheduleBlock, error)
	ApplyDraft(ctx context.Context, userID uuid.UUID, tripID string, req models.ApplyDraftRequest) ([]models.ScheduleBlock, error)
}

type ScheduleHandler struct {
	svc ScheduleService
}

func NewScheduleHandler(svc ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{svc: svc}
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.svc.ListSchedule(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "tripID"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"blocks": blocks})
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateBlockRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	block, err := h.svc.CreateBlock(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "tripID"), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, block)
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.svc.DeleteBlock(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "tripID"), chi.URLParam(r, "blockID"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ScheduleHandler) Materialize(w http.ResponseWriter, r *http.Request) {
	var req models.MaterializeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	blocks, err := h.svc.Materialize(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "tripID"), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"blocks": blocks})
}

func (h *ScheduleHandler) ApplyDraft(w http.ResponseWriter, r *http.Request) {
	var req models.ApplyDraftRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	blocks, err := h.svc.ApplyDraft(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "tripID"), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"blocks": blocks})
}
