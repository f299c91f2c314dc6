package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment prefix. Every key is also read unprefixed, so
// PATHWAYS_DATABASE_URL and DATABASE_URL both work.
const Prefix = "PATHWAYS"

type Config struct {
	// Server
	Port     string `envconfig:"PORT" default:"8080"`
	Env      string `envconfig:"ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Database
	DatabaseURL   string `envconfig:"DATABASE_URL" required:"true"`
	MigrationsDir string `envconfig:"MIGRATIONS_DIR" default:"migrations"`

	// Redis
	RedisURL string `envconfig:"REDIS_URL" required:"true"`

	// JWT
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// Gemini AI
	GeminiAPIKey         string `envconfig:"GEMINI_API_KEY" required:"true"`
	GeminiModel          string `envconfig:"GEMINI_MODEL" default:"gemini-3-flash-preview"`
	GeminiConcurrentReqs int    `envconfig:"GEMINI_CONCURRENT_REQUESTS" default:"5"`

	// Venue enrichment; an empty key turns it off.
	PlacesAPIKey       string        `envconfig:"PLACES_API_KEY"`
	PlacesBaseURL      string        `envconfig:"PLACES_BASE_URL" default:"https://places.googleapis.com"`
	GeocodingBaseURL   string        `envconfig:"GEOCODING_BASE_URL" default:"https://maps.googleapis.com"`
	PlacesTimeout      time.Duration `envconfig:"PLACES_TIMEOUT" default:"10s"`
	SearchRadiusMeters int           `envconfig:"SEARCH_RADIUS" default:"5000"`
	EnrichConcurrency  int           `envconfig:"ENRICH_CONCURRENCY" default:"4"`
	GeocodeCacheTTL    time.Duration `envconfig:"GEOCODE_CACHE_TTL" default:"168h"`

	// Schedule
	ImageBaseURL string `envconfig:"IMAGE_BASE_URL" default:"/static/activities"`

	// Jobs
	WorkerCount   int           `envconfig:"WORKER_COUNT" default:"3"`
	StaleJobAfter time.Duration `envconfig:"STALE_JOB_AFTER" default:"30m"`

	// Rate limits, requests per minute per caller
	RateLimitPerMinute         int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
	GenerateRateLimitPerMinute int `envconfig:"GENERATE_RATE_LIMIT_PER_MINUTE" default:"10"`

	// Frontend
	FrontendURL string `envconfig:"FRONTEND_URL" default:"http://localhost:5173"`
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	required := []struct{ key, value string }{
		{"DATABASE_URL", c.DatabaseURL},
		{"REDIS_URL", c.RedisURL},
		{"JWT_SECRET", c.JWTSecret},
		{"GEMINI_API_KEY", c.GeminiAPIKey},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("required environment variable %s is not set", r.key)
		}
	}

	switch {
	case c.GeminiConcurrentReqs <= 0:
		return fmt.Errorf("GEMINI_CONCURRENT_REQUESTS must be positive, got %d", c.GeminiConcurrentReqs)
	case c.WorkerCount <= 0:
		return fmt.Errorf("WORKER_COUNT must be positive, got %d", c.WorkerCount)
	case c.EnrichConcurrency <= 0:
		return fmt.Errorf("ENRICH_CONCURRENCY must be positive, got %d", c.EnrichConcurrency)
	case c.SearchRadiusMeters <= 0 || c.SearchRadiusMeters > 50000:
		return fmt.Errorf("SEARCH_RADIUS must be within (0, 50000] meters, got %d", c.SearchRadiusMeters)
	}
	return nil
}

func (c *Config) VenueLinksAvailable() bool {
	return c.PlacesAPIKey != ""
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) HTTPAddr() string {
	return ":" + c.Port
}
