package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"goodturn-api/config"
	"goodturn-api/models"
	"goodturn-api/scrapers"
	"goodturn-api/utils"
)

// fakeStore is an in-memory EventStore with url-keyed upsert semantics.
type fakeStore struct {
	events  []models.Event
	saveErr error
	saves   int
}

func (f *fakeStore) FindFreshByGeohash(coarse string, now time.Time) ([]models.Event, error) {
	var fresh []models.Event
	for _, e := range f.events {
		if e.GeohashCoarse == coarse && e.FreshAt(now) {
			fresh = append(fresh, e)
		}
	}
	return fresh, nil
}

func (f *fakeStore) SaveBatch(events []*models.Event) error {
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
next:
	for _, e := range events {
		for i := range f.events {
			if e.URL != "" && f.events[i].URL == e.URL {
				f.events[i] = *e
				continue next
			}
		}
		f.events = append(f.events, *e)
	}
	return nil
}

type fakeGeocoder struct {
	center models.Coordinates
	err    error
	calls  int
}

func (f *fakeGeocoder) Geocode(ctx context.Context, freeText string) (models.Coordinates, error) {
	f.calls++
	if f.err != nil {
		return models.Coordinates{}, f.err
	}
	return f.center, nil
}

var austinCenter = models.Coordinates{Latitude: 30.2672, Longitude: -97.7431}

func newCacheFixture(t *testing.T, store *fakeStore, geocoder *fakeGeocoder, ss ...scrapers.Scraper) *CacheService {
	t.Helper()
	cfg := &config.Config{
		DiscoverTTL:         72 * time.Hour,
		TonightTTL:          3 * time.Hour,
		TonightDefaultLimit: 10,
		TonightMaxLimit:     50,
	}
	orchestrator := NewSourceOrchestratorWithScrapers(ss, nil, time.Second)
	return NewCacheService(store, geocoder, orchestrator, nil, cfg)
}

func cachedEvent(title, coarse string, start *time.Time, expires *time.Time) models.Event {
	return models.Event{
		ID:             "cached-" + title,
		Title:          title,
		URL:            "https://cached/" + title,
		LocationCity:   "Austin",
		LocationState:  "TX",
		GeohashCoarse:  coarse,
		DateStart:      start,
		CacheExpiresAt: expires,
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestSearchMissThenHit(t *testing.T) {
	store := &fakeStore{}
	geocoder := &fakeGeocoder{center: austinCenter}
	source := &stubScraper{
		name:     "board",
		policies: []string{PolicyDiscovery},
		candidates: []models.RawCandidateEvent{
			candidate("Park Cleanup", "https://a"),
			candidate("Park Cleanup again", "https://a"),
			candidate("Food Drive", "https://b"),
		},
	}
	svc := newCacheFixture(t, store, geocoder, source)

	got, err := svc.Search(context.Background(), "Austin", "TX")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events after url dedup, got %d", len(got))
	}
	if source.calls != 1 {
		t.Fatalf("expected one scrape on miss, got %d", source.calls)
	}

	// Second call inside the freshness window must be served from cache.
	got, err = svc.Search(context.Background(), "Austin", "TX")
	if err != nil {
		t.Fatalf("Search (hit): %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected the cached 2 events, got %d", len(got))
	}
	if source.calls != 1 {
		t.Errorf("cache hit must not rescrape, calls=%d", source.calls)
	}
}

func TestSearchExpiredRowsTriggerRescrape(t *testing.T) {
	now := time.Now()
	coarse := utils.EncodeCoarse(austinCenter.Latitude, austinCenter.Longitude)
	store := &fakeStore{events: []models.Event{
		cachedEvent("stale", coarse, nil, timePtr(now.Add(-time.Hour))),
	}}
	geocoder := &fakeGeocoder{center: austinCenter}
	source := &stubScraper{
		name:       "board",
		policies:   []string{PolicyDiscovery},
		candidates: []models.RawCandidateEvent{candidate("Fresh Cleanup", "https://fresh")},
	}
	svc := newCacheFixture(t, store, geocoder, source)

	got, err := svc.Search(context.Background(), "Austin", "TX")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expired bucket must rescrape, calls=%d", source.calls)
	}
	if len(got) != 1 || got[0].Title != "Fresh Cleanup" {
		t.Errorf("expected the rescraped event, got %+v", got)
	}
}

func TestSearchNullExpiryCountsAsFresh(t *testing.T) {
	coarse := utils.EncodeCoarse(austinCenter.Latitude, austinCenter.Longitude)
	store := &fakeStore{events: []models.Event{
		cachedEvent("evergreen", coarse, nil, nil),
	}}
	geocoder := &fakeGeocoder{center: austinCenter}
	source := &stubScraper{name: "board", policies: []string{PolicyDiscovery}}
	svc := newCacheFixture(t, store, geocoder, source)

	got, err := svc.Search(context.Background(), "Austin", "TX")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("row with no expiry must count as fresh, got %d events", len(got))
	}
	if source.calls != 0 {
		t.Errorf("hit on a no-expiry row must not rescrape")
	}
}

func TestSearchGeocodeFailureShortCircuits(t *testing.T) {
	for name, geoErr := range map[string]error{
		"not found": ErrGeocodeNotFound,
		"transport": errors.New("connection refused"),
	} {
		t.Run(name, func(t *testing.T) {
			store := &fakeStore{}
			geocoder := &fakeGeocoder{err: geoErr}
			source := &stubScraper{name: "board", policies: []string{PolicyDiscovery}}
			svc := newCacheFixture(t, store, geocoder, source)

			got, err := svc.Search(context.Background(), "Nowhereville", "ZZ")
			if err != nil {
				t.Fatalf("geocode failure must not surface as an error: %v", err)
			}
			if len(got) != 0 {
				t.Errorf("expected empty result, got %d events", len(got))
			}
			if source.calls != 0 {
				t.Errorf("no coordinates means no scraping, calls=%d", source.calls)
			}
		})
	}
}

func TestSearchPersistFailureSurfaces(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("deadlock")}
	geocoder := &fakeGeocoder{center: austinCenter}
	source := &stubScraper{
		name:       "board",
		policies:   []string{PolicyDiscovery},
		candidates: []models.RawCandidateEvent{candidate("Cleanup", "https://a")},
	}
	svc := newCacheFixture(t, store, geocoder, source)

	_, err := svc.Search(context.Background(), "Austin", "TX")
	if err == nil {
		t.Fatal("expected an error when the batch cannot be persisted")
	}
	if !strings.Contains(err.Error(), "retryable") {
		t.Errorf("persist failure should be marked retryable, got %v", err)
	}
	if !errors.Is(err, store.saveErr) {
		t.Errorf("underlying store error must be wrapped, got %v", err)
	}
}

func TestDiscoverNowPartialHitSkipsScrape(t *testing.T) {
	now := time.Now()
	coarse := utils.EncodeCoarse(austinCenter.Latitude, austinCenter.Longitude)
	store := &fakeStore{events: []models.Event{
		cachedEvent("late show", coarse, timePtr(now.Add(3*time.Hour)), timePtr(now.Add(time.Hour))),
		cachedEvent("early show", coarse, timePtr(now.Add(time.Hour)), timePtr(now.Add(time.Hour))),
	}}
	geocoder := &fakeGeocoder{center: austinCenter}
	source := &stubScraper{name: "nightowl", policies: []string{PolicyTonight}}
	svc := newCacheFixture(t, store, geocoder, source)

	// 2 cached out of a limit of 4 is enough for a partial hit.
	got, err := svc.DiscoverNow(context.Background(), "Austin", "TX", 4)
	if err != nil {
		t.Fatalf("DiscoverNow: %v", err)
	}
	if source.calls != 0 {
		t.Fatalf("partial hit must not rescrape, calls=%d", source.calls)
	}
	if len(got) != 2 || got[0].Title != "early show" || got[1].Title != "late show" {
		t.Errorf("expected cached events sorted by start time, got %+v", got)
	}
}

func TestDiscoverNowMergesCachedAndScraped(t *testing.T) {
	now := time.Now()
	coarse := utils.EncodeCoarse(austinCenter.Latitude, austinCenter.Longitude)
	store := &fakeStore{events: []models.Event{
		cachedEvent("midnight set", coarse, timePtr(now.Add(5*time.Hour)), timePtr(now.Add(time.Hour))),
	}}
	geocoder := &fakeGeocoder{center: austinCenter}

	opens := models.RawCandidateEvent{Title: "Doors open", URL: "https://doors", DateStart: now.Add(time.Hour).Format(time.RFC3339)}
	undated := models.RawCandidateEvent{Title: "Open mic", URL: "https://mic"}
	source := &stubScraper{
		name:       "nightowl",
		policies:   []string{PolicyTonight},
		candidates: []models.RawCandidateEvent{undated, opens},
	}
	svc := newCacheFixture(t, store, geocoder, source)

	// 1 cached event is below the partial-hit threshold for a limit of 10.
	got, err := svc.DiscoverNow(context.Background(), "Austin", "TX", 0)
	if err != nil {
		t.Fatalf("DiscoverNow: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("below-threshold bucket must rescrape, calls=%d", source.calls)
	}
	if len(got) != 3 {
		t.Fatalf("expected cached + scraped union, got %d events", len(got))
	}
	if got[0].Title != "Doors open" || got[1].Title != "midnight set" {
		t.Errorf("events must sort ascending by start time, got %q then %q", got[0].Title, got[1].Title)
	}
	if got[2].Title != "Open mic" {
		t.Errorf("events without a start time must sort last, got %q", got[2].Title)
	}
}

func TestDiscoverNowClampsLimit(t *testing.T) {
	now := time.Now()
	coarse := utils.EncodeCoarse(austinCenter.Latitude, austinCenter.Longitude)
	store := &fakeStore{}
	for i := 0; i < 60; i++ {
		e := cachedEvent(string(rune('a'+i%26))+"-show", coarse, timePtr(now.Add(time.Duration(i)*time.Minute)), timePtr(now.Add(time.Hour)))
		e.URL = e.URL + string(rune('0' + i/26))
		store.events = append(store.events, e)
	}
	geocoder := &fakeGeocoder{center: austinCenter}
	svc := newCacheFixture(t, store, geocoder, &stubScraper{name: "nightowl", policies: []string{PolicyTonight}})

	got, err := svc.DiscoverNow(context.Background(), "Austin", "TX", 0)
	if err != nil {
		t.Fatalf("DiscoverNow: %v", err)
	}
	if len(got) != 10 {
		t.Errorf("limit 0 must fall back to the default of 10, got %d", len(got))
	}

	got, err = svc.DiscoverNow(context.Background(), "Austin", "TX", 1000)
	if err != nil {
		t.Fatalf("DiscoverNow: %v", err)
	}
	if len(got) != 50 {
		t.Errorf("oversized limit must clamp to 50, got %d", len(got))
	}
}
