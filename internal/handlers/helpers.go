package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/rs/zerolog/hlog"

	"pathways-backend/internal/middleware"
	"pathways-backend/internal/models"
	"pathways-backend/internal/pathway"
	"pathways-backend/internal/services"
)

const (
	maxBodyBytes = 1 << 20

	ActionRetry    = "retry"
	ActionFallback = "fallback"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: middleware.GetRequestID(r.Context()),
		},
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return false
	}
	return true
}

// apiError maps a service or pipeline error to its HTTP status and body.
func apiError(err error) (int, models.APIError) {
	var (
		verr     *services.ValidationError
		pverr    *pathway.PlanValidationError
		fverr    *pathway.FinalizeValidationError
		parseErr *pathway.GenerationParseError
		genErr   *pathway.GenerationSchemaError
		finErr   *pathway.FinalizeSchemaError
		upErr    *pathway.UpstreamError
		emptyErr *pathway.MaterializationEmptyError
		nfErr    *services.NotFoundError
		cErr     *services.ConflictError
		fbErr    *services.ForbiddenError
	)

	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, models.APIError{Code: "VALIDATION_ERROR", Message: "Validation failed", Fields: verr.Fields}
	case errors.As(err, &pverr):
		return http.StatusBadRequest, models.APIError{Code: "VALIDATION_ERROR", Message: "The plan cannot be scheduled", Fields: pverr.Fields}
	case errors.Is(err, pathway.ErrNothingToPlan):
		return http.StatusBadRequest, models.APIError{Code: "NOTHING_TO_PLAN", Message: "Select at least one day to plan"}
	case errors.Is(err, pathway.ErrInvalidEffortMode), errors.Is(err, pathway.ErrInvalidDate):
		return http.StatusBadRequest, models.APIError{Code: "VALIDATION_ERROR", Message: err.Error()}
	case errors.As(err, &fverr):
		return http.StatusBadRequest, models.APIError{
			Code:    "FINALIZE_VALIDATION_ERROR",
			Message: "The edited draft is incomplete",
			Fields:  map[string]string{fverr.Field: fverr.Message},
		}
	case errors.Is(err, pathway.ErrBusy):
		return http.StatusConflict, models.APIError{Code: "GENERATION_IN_PROGRESS", Message: "A pathway is already being generated for this trip"}
	case errors.As(err, &parseErr):
		return http.StatusBadGateway, models.APIError{
			Code:    "GENERATION_PARSE_ERROR",
			Message: "The pathway generator returned an unreadable response",
			Actions: []string{ActionRetry, ActionFallback},
		}
	case errors.As(err, &genErr):
		return http.StatusBadGateway, models.APIError{
			Code:    "GENERATION_SCHEMA_ERROR",
			Message: "The pathway generator returned incomplete drafts",
			Details: strings.Join(genErr.Issues, "; "),
			Actions: []string{ActionRetry, ActionFallback},
		}
	case errors.As(err, &finErr):
		return http.StatusBadGateway, models.APIError{
			Code:    "FINALIZE_SCHEMA_ERROR",
			Message: "The detailed plan did not match the selected days",
			Details: strings.Join(finErr.Issues, "; "),
			Actions: []string{ActionRetry},
		}
	case errors.As(err, &upErr):
		return http.StatusBadGateway, models.APIError{
			Code:    "UPSTREAM_ERROR",
			Message: fmt.Sprintf("The %s service is unavailable", upErr.Service),
			Actions: []string{ActionRetry},
		}
	case errors.As(err, &emptyErr):
		return http.StatusUnprocessableEntity, models.APIError{Code: "MATERIALIZATION_EMPTY", Message: emptyErr.Error()}
	case errors.As(err, &nfErr):
		return http.StatusNotFound, models.APIError{Code: "NOT_FOUND", Message: nfErr.Message}
	case errors.As(err, &cErr):
		return http.StatusConflict, models.APIError{Code: "CONFLICT", Message: cErr.Message}
	case errors.As(err, &fbErr):
		return http.StatusForbidden, models.APIError{Code: "FORBIDDEN", Message: fbErr.Message}
	default:
		return http.StatusInternalServerError, models.APIError{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error, extraActions ...string) {
	status, body := apiError(err)
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	}
	for _, a := range extraActions {
		if !slices.Contains(body.Actions, a) {
			body.Actions = append(body.Actions, a)
		}
	}
	body.RequestID = middleware.GetRequestID(r.Context())
	writeJSON(w, status, models.ErrorResponse{Error: body})
}
