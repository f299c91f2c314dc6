package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"pathways-backend/internal/handlers"
	"pathways-backend/internal/middleware"
)

type Handlers struct {
	Pathway  *handlers.PathwayHandler
	Schedule *handlers.ScheduleHandler
	Job      *handlers.JobHandler
	WS       http.HandlerFunc
}

type Options struct {
	FrontendURL                string
	RateLimitPerMinute         int
	GenerateRateLimitPerMinute int
}

func New(jwtAuth *middleware.JWTAuth, h Handlers, opts Options, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(log))
	r.Use(middleware.CORS(opts.FrontendURL))

	apiLimiter := middleware.NewRateLimiter(opts.RateLimitPerMinute, time.Minute)
	// Draft and plan generation are paid upstream calls.
	generateLimiter := middleware.NewRateLimiter(opts.GenerateRateLimitPerMinute, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {

		// ──── WebSocket (authenticates via query token) ────
		if h.WS != nil {
			r.Get("/ws", h.WS)
		}

		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(apiLimiter.Middleware)

			// ──── Pathway Routes ────
			r.Route("/pathways", func(r chi.Router) {
				r.Post("/days", h.Pathway.Days)
				r.Get("/drafts", h.Pathway.GetDrafts)
				r.Post("/drafts/fallback", h.Pathway.FallbackDrafts)
				r.Put("/drafts/{draftID}/edit", h.Pathway.SaveEdit)
				r.Delete("/drafts/{draftID}/edit", h.Pathway.DiscardEdit)

				r.Group(func(r chi.Router) {
					r.Use(generateLimiter.Middleware)
					r.Post("/drafts", h.Pathway.GenerateDrafts)
					r.Post("/finalize", h.Pathway.Finalize)
					r.Post("/apply", h.Pathway.Apply)
				})
			})

			// ──── Schedule Routes ────
			r.Route("/trips/{tripID}/schedule", func(r chi.Router) {
				r.Get("/", h.Schedule.List)
				r.Post("/", h.Schedule.Create)
				r.Delete("/{blockID}", h.Schedule.Delete)
				r.Post("/materialize", h.Schedule.Materialize)
				r.Post("/apply-draft", h.Schedule.ApplyDraft)
			})

			// ──── Job Routes ────
			r.Get("/jobs/{id}", h.Job.GetJob)
		})
	})

	return r
}
