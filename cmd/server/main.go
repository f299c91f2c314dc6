package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pathways-backend/internal/catalog"
	"pathways-backend/internal/config"
	"pathways-backend/internal/database"
	"pathways-backend/internal/handlers"
	"pathways-backend/internal/logger"
	"pathways-backend/internal/middleware"
	"pathways-backend/internal/pathway"
	"pathways-backend/internal/repository"
	"pathways-backend/internal/router"
	"pathways-backend/internal/services"
	"pathways-backend/internal/websocket"
	"pathways-backend/internal/worker"
)

func main() {
	ctx := context.Background()

	// ──── Step 1: Load Environment Variables ────
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("pathways-backend", "info")
		bootLog.Fatal().Err(err).Msg("configuration invalid")
	}
	log := logger.New("pathways-backend", cfg.LogLevel)
	log.Info().Str("env", cfg.Env).Msg("starting pathways backend")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, database.PoolConfig{})
	if err != nil {
		log.Fatal().Err(err).Msg("PostgreSQL connection failed")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer redisClients.Close()
	log.Info().Msg("Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(ctx, pool, cfg.MigrationsDir, log); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	// ──── Step 5: Initialize Repositories ────
	scheduleRepo := repository.NewScheduleRepo(pool)
	jobRepo := repository.NewJobRepo(pool)
	sessionRepo := repository.NewDraftSessionRepo(redisClients.Queue, repository.DraftSessionTTL)
	flight := repository.NewRedisFlight(redisClients.Queue, 0, log)
	jobQueue := repository.NewJobQueue(redisClients.Queue)

	// ──── Step 6: Initialize Gemini Client ────
	gemini, err := services.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiConcurrentReqs, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Gemini client initialization failed")
	}
	defer gemini.Close()
	log.Info().Str("model", cfg.GeminiModel).Msg("Gemini client initialized")

	// ──── Step 7: Initialize Pathway Pipeline ────
	var (
		geocoder pathway.Geocoder
		venues   pathway.VenueSearcher
	)
	if cfg.VenueLinksAvailable() {
		places := services.NewPlacesClient(services.PlacesConfig{
			APIKey:           cfg.PlacesAPIKey,
			PlacesBaseURL:    cfg.PlacesBaseURL,
			GeocodingBaseURL: cfg.GeocodingBaseURL,
			Timeout:          cfg.PlacesTimeout,
		})
		geocoder = services.NewCachedGeocoder(places, redisClients.Queue, cfg.GeocodeCacheTTL, log)
		venues = places
		log.Info().Int("radius_m", cfg.SearchRadiusMeters).Msg("venue enrichment enabled")
	} else {
		log.Warn().Msg("PLACES_API_KEY not set, venue enrichment disabled")
	}

	cat := catalog.Default()
	notifier := services.NewRedisNotifier(redisClients.PubSub, log)
	pathwaySvc := services.NewPathwayService(services.PathwayDeps{
		Drafts: pathway.NewDraftGenerator(gemini, log),
		Finalizer: pathway.NewFinalizer(gemini, geocoder, venues, cat, pathway.FinalizerConfig{
			SearchRadiusMeters: cfg.SearchRadiusMeters,
			EnrichConcurrency:  cfg.EnrichConcurrency,
		}, log),
		Materializer: pathway.NewMaterializer(cat, cfg.ImageBaseURL),
		Flight:       flight,
		Sessions:     sessionRepo,
		Schedule:     scheduleRepo,
		Jobs:         jobRepo,
		Queue:        jobQueue,
		Notifier:     notifier,
		Log:          log,
	})

	// ──── Step 8: Start Job Worker Pool ────
	workerPool := worker.NewPool(redisClients.Queue, pathwaySvc, jobRepo, flight, notifier, cfg.WorkerCount, log)
	workerPool.Start()

	sweeper := services.NewJobSweeper(jobRepo, notifier, cfg.StaleJobAfter, log)
	sweeper.Start()

	// ──── Step 9: Start WebSocket Hub ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, cfg.FrontendURL, log)

	// ──── Step 10: Start HTTP Server ────
	r := router.New(jwtAuth, router.Handlers{
		Pathway:  handlers.NewPathwayHandler(pathwaySvc),
		Schedule: handlers.NewScheduleHandler(pathwaySvc),
		Job:      handlers.NewJobHandler(pathwaySvc),
		WS:       wsHub.HandleWebSocket,
	}, router.Options{
		FrontendURL:                cfg.FrontendURL,
		RateLimitPerMinute:         cfg.RateLimitPerMinute,
		GenerateRateLimitPerMinute: cfg.GenerateRateLimitPerMinute,
	}, log)

	server := &http.Server{
		Addr:        cfg.HTTPAddr(),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// Finalize holds the request open for the whole detailed-plan call.
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutting down")
		sweeper.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
		workerPool.Stop()
	}()

	log.Info().Str("addr", cfg.HTTPAddr()).Msg("pathways backend ready")

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
}
