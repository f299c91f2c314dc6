package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"pathways-backend/internal/metrics"
	"pathways-backend/internal/models"
	"pathways-backend/internal/pathway"
)

const (
	DefaultPlacesBaseURL    = "https://places.googleapis.com"
	DefaultGeocodingBaseURL = "https://maps.googleapis.com"

	placesFieldMask = "places.id,places.displayName,places.formattedAddress,places.googleMapsUri," +
		"places.websiteUri,places.rating,places.userRatingCount,places.currentOpeningHours.openNow"
)

// ErrPlacesDisabled is returned by every call when no API key is configured.
var ErrPlacesDisabled = errors.New("places API key not configured")

// PlacesClient talks to the Places text search and Geocoding APIs. It
// implements pathway.Geocoder and pathway.VenueSearcher.
type PlacesClient struct {
	places  *resty.Client
	geocode *resty.Client
	apiKey  string
}

type PlacesConfig struct {
	APIKey           string
	PlacesBaseURL    string
	GeocodingBaseURL string
	Timeout          time.Duration
}

func NewPlacesClient(cfg PlacesConfig) *PlacesClient {
	if cfg.PlacesBaseURL == "" {
		cfg.PlacesBaseURL = DefaultPlacesBaseURL
	}
	if cfg.GeocodingBaseURL == "" {
		cfg.GeocodingBaseURL = DefaultGeocodingBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	places := resty.New().
		SetBaseURL(cfg.PlacesBaseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Goog-Api-Key", cfg.APIKey).
		SetHeader("X-Goog-FieldMask", placesFieldMask).
		SetTimeout(cfg.Timeout)

	geocode := resty.New().
		SetBaseURL(cfg.GeocodingBaseURL).
		SetTimeout(cfg.Timeout)

	return &PlacesClient{places: places, geocode: geocode, apiKey: cfg.APIKey}
}

func (c *PlacesClient) Enabled() bool { return c.apiKey != "" }

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves location to coordinates. A nil result with a nil error
// means nothing matched.
func (c *PlacesClient) Geocode(ctx context.Context, location string) (*pathway.LatLng, error) {
	if !c.Enabled() {
		return nil, ErrPlacesDisabled
	}
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, nil
	}

	var gr geocodeResponse
	start := time.Now()
	resp, err := c.geocode.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetQueryParams(map[string]string{"address": location, "key": c.apiKey}).
		SetResult(&gr).
		Get("/maps/api/geocode/json")
	metrics.UpstreamLatency.WithLabelValues("geocoding").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("geocoding request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("geocoding status %d: %s", resp.StatusCode(), resp.String())
	}
	switch gr.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, nil
	default:
		return nil, fmt.Errorf("geocoding status %s: %s", gr.Status, gr.ErrorMessage)
	}
	if len(gr.Results) == 0 {
		return nil, nil
	}
	loc := gr.Results[0].Geometry.Location
	return &pathway.LatLng{Lat: loc.Lat, Lng: loc.Lng}, nil
}

type searchTextRequest struct {
	TextQuery      string `json:"textQuery"`
	MaxResultCount int    `json:"maxResultCount,omitempty"`
	LocationBias   struct {
		Circle struct {
			Center struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"center"`
			Radius float64 `json:"radius"`
		} `json:"circle"`
	} `json:"locationBias"`
}

type placeResult struct {
	ID          string `json:"id"`
	DisplayName struct {
		Text string `json:"text"`
	} `json:"displayName"`
	FormattedAddress    string   `json:"formattedAddress"`
	GoogleMapsURI       string   `json:"googleMapsUri"`
	WebsiteURI          string   `json:"websiteUri"`
	Rating              *float64 `json:"rating"`
	UserRatingCount     *int     `json:"userRatingCount"`
	CurrentOpeningHours *struct {
		OpenNow *bool `json:"openNow"`
	} `json:"currentOpeningHours"`
}

type searchTextResponse struct {
	Places []placeResult `json:"places"`
}

// googleAPIError is the error envelope of the Places API.
type googleAPIError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Search runs a location-biased text search.
func (c *PlacesClient) Search(ctx context.Context, q pathway.VenueQuery) ([]models.VenueSuggestion, error) {
	if !c.Enabled() {
		return nil, ErrPlacesDisabled
	}

	var body searchTextRequest
	body.TextQuery = q.Query
	body.MaxResultCount = q.MaxResults
	body.LocationBias.Circle.Center.Latitude = q.Near.Lat
	body.LocationBias.Circle.Center.Longitude = q.Near.Lng
	body.LocationBias.Circle.Radius = float64(q.RadiusMeters)

	var (
		sr     searchTextResponse
		apiErr googleAPIError
	)
	start := time.Now()
	resp, err := c.places.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetBody(&body).
		SetResult(&sr).
		SetError(&apiErr).
		Post("/v1/places:searchText")
	metrics.UpstreamLatency.WithLabelValues("places").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("places request: %w", err)
	}
	if resp.IsError() {
		if apiErr.Error.Message != "" {
			return nil, fmt.Errorf("places status %d: %s", resp.StatusCode(), apiErr.Error.Message)
		}
		return nil, fmt.Errorf("places status %d: %s", resp.StatusCode(), resp.String())
	}

	out := make([]models.VenueSuggestion, 0, len(sr.Places))
	for _, p := range sr.Places {
		if p.ID == "" || p.DisplayName.Text == "" {
			continue
		}
		v := models.VenueSuggestion{
			PlaceID:         p.ID,
			DisplayName:     p.DisplayName.Text,
			AreaLabel:       AreaLabel(p.FormattedAddress, q.ExactAddresses),
			GoogleMapsURI:   p.GoogleMapsURI,
			WebsiteURI:      p.WebsiteURI,
			Rating:          p.Rating,
			UserRatingCount: p.UserRatingCount,
		}
		if p.CurrentOpeningHours != nil {
			v.OpenNow = p.CurrentOpeningHours.OpenNow
		}
		out = append(out, v)
		if q.MaxResults > 0 && len(out) == q.MaxResults {
			break
		}
	}
	return out, nil
}

// AreaLabel returns the full address when exact addresses are allowed and
// otherwise drops the leading street segment.
func AreaLabel(formattedAddress string, exact bool) string {
	addr := strings.TrimSpace(formattedAddress)
	if exact {
		return addr
	}
	parts := strings.Split(addr, ",")
	if len(parts) < 2 {
		return addr
	}
	return strings.TrimSpace(strings.Join(parts[1:], ","))
}

// CachedGeocoder memoizes geocoding results in Redis. Misses are cached too
// so an unknown place is not looked up for every block.
type CachedGeocoder struct {
	next  pathway.Geocoder
	redis *redis.Client
	ttl   time.Duration
	log   zerolog.Logger
}

const geocodeMissMarker = "none"

func NewCachedGeocoder(next pathway.Geocoder, redisClient *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedGeocoder {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &CachedGeocoder{next: next, redis: redisClient, ttl: ttl, log: log}
}

func geocodeKey(location string) string {
	return "geocode:" + strings.ToLower(strings.TrimSpace(location))
}

func (g *CachedGeocoder) Geocode(ctx context.Context, location string) (*pathway.LatLng, error) {
	key := geocodeKey(location)

	cached, err := g.redis.Get(ctx, key).Result()
	switch {
	case err == nil && cached == geocodeMissMarker:
		return nil, nil
	case err == nil:
		var ll pathway.LatLng
		if jerr := json.Unmarshal([]byte(cached), &ll); jerr == nil {
			return &ll, nil
		}
	case !errors.Is(err, redis.Nil):
		g.log.Warn().Err(err).Str("key", key).Msg("geocode cache read failed")
	}

	ll, err := g.next.Geocode(ctx, location)
	if err != nil {
		return nil, err
	}

	value := geocodeMissMarker
	if ll != nil {
		b, _ := json.Marshal(ll)
		value = string(b)
	}
	if err := g.redis.Set(ctx, key, value, g.ttl).Err(); err != nil {
		g.log.Warn().Err(err).Str("key", key).Msg("geocode cache write failed")
	}
	return ll, nil
}
