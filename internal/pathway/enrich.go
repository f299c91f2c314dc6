package pathway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"pathways-backend/internal/metrics"
	"pathways-backend/internal/models"
)

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geocoder resolves a place name to city-level coordinates. A nil result
// with a nil error means the place was not found.
type Geocoder interface {
	Geocode(ctx context.Context, location string) (*LatLng, error)
}

type VenueQuery struct {
	Query          string
	Near           LatLng
	RadiusMeters   int
	MaxResults     int
	ExactAddresses bool
}

type VenueSearcher interface {
	Search(ctx context.Context, q VenueQuery) ([]models.VenueSuggestion, error)
}

var errLocationNotFound = errors.New("location not found")

// VenueSearchQuery derives the search text for a block: the first venue
// category whose keywords appear in the activity, else "{title} {location}".
func (f *Finalizer) VenueSearchQuery(title, description, fieldExperience, location string) string {
	if q, ok := f.catalog.VenueQuery(title, description, fieldExperience); ok {
		if location == "" {
			return q
		}
		return fmt.Sprintf("%s in %s", q, location)
	}
	return strings.TrimSpace(title + " " + location)
}

// enrich attaches up to MaxVenuesPerBlock venues to every block. Blocks are
// independent: each runs geocode then search, and any failure only leaves
// that block without options.
func (f *Finalizer) enrich(ctx context.Context, plan *models.FinalPathwayPlan, location string, privacy PrivacyOptions) {
	if f.geo == nil || f.venues == nil {
		metrics.EnrichmentLookups.WithLabelValues("disabled").Inc()
		return
	}

	var g errgroup.Group
	g.SetLimit(f.cfg.EnrichConcurrency)

	for di := range plan.Days {
		day := &plan.Days[di]
		for bi := range day.ScheduleBlocks {
			block := &day.ScheduleBlocks[bi]
			dayNum, blockNum, fieldExp := day.Day, bi+1, day.FieldExperience
			g.Go(func() error {
				opts, err := f.enrichBlock(ctx, block, fieldExp, location, privacy)
				if err != nil {
					var ee *EnrichmentError
					if errors.As(err, &ee) {
						ee.Day, ee.Block = dayNum, blockNum
					}
					metrics.EnrichmentLookups.WithLabelValues("error").Inc()
					f.log.Warn().Err(err).Int("day", dayNum).Int("block", blockNum).Msg("venue enrichment skipped")
					return nil
				}
				if len(opts) == 0 {
					metrics.EnrichmentLookups.WithLabelValues("empty").Inc()
					return nil
				}
				metrics.EnrichmentLookups.WithLabelValues("ok").Inc()
				block.LocalOptions = opts
				return nil
			})
		}
	}
	_ = g.Wait()
}

func (f *Finalizer) enrichBlock(ctx context.Context, block *models.FinalBlock, fieldExperience, location string, privacy PrivacyOptions) (opts []models.VenueSuggestion, err error) {
	defer func() {
		if r := recover(); r != nil {
			opts, err = nil, &EnrichmentError{Stage: "panic", Err: fmt.Errorf("%v", r)}
		}
	}()

	coords, err := f.geo.Geocode(ctx, location)
	if err != nil {
		return nil, &EnrichmentError{Stage: "geocode", Err: err}
	}
	if coords == nil {
		return nil, &EnrichmentError{Stage: "geocode", Err: fmt.Errorf("%w: %q", errLocationNotFound, location)}
	}

	query := f.VenueSearchQuery(block.Title, block.Description, fieldExperience, location)
	found, err := f.venues.Search(ctx, VenueQuery{
		Query:          query,
		Near:           *coords,
		RadiusMeters:   f.cfg.SearchRadiusMeters,
		MaxResults:     MaxVenuesPerBlock,
		ExactAddresses: privacy.ShowExactAddresses,
	})
	if err != nil {
		return nil, &EnrichmentError{Stage: "search", Err: err}
	}
	if len(found) > MaxVenuesPerBlock {
		found = found[:MaxVenuesPerBlock]
	}
	return found, nil
}
