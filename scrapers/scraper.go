package scrapers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"goodturn-api/config"
	"goodturn-api/models"
)

// Timeframe narrows a fetch to a window the source understands.
type Timeframe string

const (
	TimeframeAny     Timeframe = ""
	TimeframeTonight Timeframe = "tonight"
)

// Query is one city/state lookup handed to every scraper in a fan-out.
type Query struct {
	City      string
	State     string
	Timeframe Timeframe
}

// Scraper is a single external source of raw candidate events. Fetch returns
// zero or more candidates or an error; it must never panic. Errors are
// isolated by the orchestrator, so an adapter can fail freely without
// affecting the rest of a batch.
type Scraper interface {
	Name() string
	Policies() []string
	Fetch(ctx context.Context, q Query) ([]models.RawCandidateEvent, error)
}

// NewFromConfig builds a scraper from one sources-file entry.
func NewFromConfig(c config.SourceConfig) (Scraper, error) {
	switch c.Type {
	case "social_page":
		return NewSocialPageScraper(c), nil
	case "listing_site":
		return NewListingSiteScraper(c), nil
	case "city_calendar":
		return NewCityCalendarScraper(c), nil
	case "tonight_listing":
		return NewTonightListingScraper(c), nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", c.Type)
	}
}

// newScraperClient builds the HTTP client shared by adapter implementations.
func newScraperClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// newPolitenessLimiter bounds the request rate against one external site.
func newPolitenessLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(500*time.Millisecond), 2)
}

// bodyIsArray reports whether a JSON payload is a bare array rather than an
// object wrapper. Decided by shape, not element count, so an empty wrapper is
// still routed to the object decode.
func bodyIsArray(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

// HasPolicy reports whether the source is registered for an orchestration
// policy.
func HasPolicy(s Scraper, policy string) bool {
	for _, p := range s.Policies() {
		if p == policy {
			return true
		}
	}
	return false
}
