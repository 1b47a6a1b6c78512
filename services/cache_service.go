package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"goodturn-api/config"
	"goodturn-api/models"
	"goodturn-api/scrapers"
	"goodturn-api/utils"
)

// EventStore is the persistence surface the cache layer depends on. The gorm
// EventRepository implements it; tests inject fakes.
type EventStore interface {
	FindFreshByGeohash(geohashCoarse string, now time.Time) ([]models.Event, error)
	SaveBatch(events []*models.Event) error
}

// CacheService is the public aggregation surface: a long-TTL discovery path
// and a short-TTL tonight path, both backed by the geohash-keyed cache.
//
// There is deliberately no lock around the cache-miss window. Two concurrent
// misses for the same bucket both rescrape; the natural-key upsert makes that
// self-correcting for url-keyed events.
type CacheService struct {
	store        EventStore
	geocoder     Geocoder
	orchestrator *SourceOrchestrator
	alerts       *AlertService

	discoverTTL time.Duration
	tonightTTL  time.Duration

	tonightDefaultLimit int
	tonightMaxLimit     int

	now func() time.Time
}

func NewCacheService(store EventStore, geocoder Geocoder, orchestrator *SourceOrchestrator, alerts *AlertService, cfg *config.Config) *CacheService {
	return &CacheService{
		store:               store,
		geocoder:            geocoder,
		orchestrator:        orchestrator,
		alerts:              alerts,
		discoverTTL:         cfg.DiscoverTTL,
		tonightTTL:          cfg.TonightTTL,
		tonightDefaultLimit: cfg.TonightDefaultLimit,
		tonightMaxLimit:     cfg.TonightMaxLimit,
		now:                 time.Now,
	}
}

// Search is the discovery path. On a fresh-cache hit it returns immediately
// without touching any source; on a miss it fans out, merges and persists,
// then returns the persisted set.
func (s *CacheService) Search(ctx context.Context, city, state string) ([]models.Event, error) {
	now := s.now()

	center, ok := s.resolveCenter(ctx, city, state)
	if !ok {
		return []models.Event{}, nil
	}
	coarse := utils.EncodeCoarse(center.Latitude, center.Longitude)

	cached, err := s.store.FindFreshByGeohash(coarse, now)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		return cached, nil
	}

	q := scrapers.Query{City: city, State: state}
	batch, report := s.orchestrator.FanOut(ctx, q, PolicyDiscovery)
	s.reportFailures(city, state, report)

	events := s.normalizeBatch(DedupeByURL(batch), center, now, s.discoverTTL)
	if len(events) == 0 {
		return []models.Event{}, nil
	}

	if err := s.persistBatch(city, state, events); err != nil {
		return nil, err
	}

	result := make([]models.Event, len(events))
	for i, e := range events {
		result[i] = *e
	}
	sortEventsByStart(result)
	return result, nil
}

// DiscoverNow is the tonight path: shorter freshness window, smaller result
// budget, and satisfied by a partial hit. Once at least half of the
// requested limit is already fresh in the bucket, no rescrape happens. The
// result is sorted ascending by start time and truncated to the limit.
func (s *CacheService) DiscoverNow(ctx context.Context, city, state string, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = s.tonightDefaultLimit
	}
	if limit > s.tonightMaxLimit {
		limit = s.tonightMaxLimit
	}
	now := s.now()

	center, ok := s.resolveCenter(ctx, city, state)
	if !ok {
		return []models.Event{}, nil
	}
	coarse := utils.EncodeCoarse(center.Latitude, center.Longitude)

	cached, err := s.store.FindFreshByGeohash(coarse, now)
	if err != nil {
		return nil, err
	}
	if len(cached)*2 >= limit {
		sortEventsByStart(cached)
		return truncateEvents(cached, limit), nil
	}

	q := scrapers.Query{City: city, State: state, Timeframe: scrapers.TimeframeTonight}
	batch, report := s.orchestrator.FanOut(ctx, q, PolicyTonight)
	s.reportFailures(city, state, report)

	events := s.normalizeBatch(DedupeByURL(batch), center, now, s.tonightTTL)
	if len(events) > 0 {
		if err := s.persistBatch(city, state, events); err != nil {
			return nil, err
		}
	}

	// Re-read the bucket so previously cached rows and the new batch are
	// ranked together.
	fresh, err := s.store.FindFreshByGeohash(coarse, now)
	if err != nil {
		return nil, err
	}
	sortEventsByStart(fresh)
	return truncateEvents(fresh, limit), nil
}

// resolveCenter geocodes the requested city/state. Any failure short-circuits
// the whole request to an empty result: without coordinates there is no
// cache key and nothing worth scraping against.
func (s *CacheService) resolveCenter(ctx context.Context, city, state string) (models.Coordinates, bool) {
	center, err := s.geocoder.Geocode(ctx, fmt.Sprintf("%s, %s", city, state))
	if err != nil {
		if errors.Is(err, ErrGeocodeNotFound) {
			log.Printf("WARNING: no coordinates for %s, %s", city, state)
		} else {
			log.Printf("WARNING: geocoding %s, %s failed: %v", city, state, err)
		}
		return models.Coordinates{}, false
	}
	return center, true
}

// normalizeBatch converts raw candidates into persistable events. A
// candidate that fails conversion is logged and skipped; it never aborts the
// rest of the batch.
func (s *CacheService) normalizeBatch(batch []models.RawCandidateEvent, center models.Coordinates, now time.Time, ttl time.Duration) []*models.Event {
	events := make([]*models.Event, 0, len(batch))
	for _, raw := range batch {
		event, err := models.NormalizeCandidate(raw, center, now, ttl)
		if err != nil {
			log.Printf("WARNING: skipping candidate from %s: %v", raw.Source, err)
			continue
		}
		events = append(events, event)
	}
	return events
}

func (s *CacheService) persistBatch(city, state string, events []*models.Event) error {
	if err := s.store.SaveBatch(events); err != nil {
		if s.alerts != nil {
			s.alerts.NotifyPersistFailure(city, state, err)
		}
		return fmt.Errorf("cache write failed (retryable): %w", err)
	}
	return nil
}

func (s *CacheService) reportFailures(city, state string, report BatchReport) {
	if s.alerts != nil && report.AllFailed() {
		s.alerts.NotifyAllSourcesFailed(city, state, report)
	}
}

// sortEventsByStart orders ascending by start time; events without a start
// time sort last.
func sortEventsByStart(events []models.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i].DateStart, events[j].DateStart
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}

func truncateEvents(events []models.Event, limit int) []models.Event {
	if len(events) > limit {
		return events[:limit]
	}
	return events
}
