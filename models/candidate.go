package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"goodturn-api/utils"
)

// RawCandidateEvent is an event as a scraper or the extraction pipeline saw
// it: untyped dates, optional coordinates, no identity yet. Every optional
// field is declared here once instead of being re-checked at each call site.
type RawCandidateEvent struct {
	Title        string   `json:"title"`
	Organization string   `json:"organization"`
	Description  string   `json:"description"`
	DateStart    string   `json:"date_start"`
	Address      string   `json:"address"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	Zip          string   `json:"zip"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Category     string   `json:"category"`
	Venue        string   `json:"venue"`
	Price        string   `json:"price"`
	URL          string   `json:"url"`
	Source       string   `json:"source"`
	ImageURLs    []string `json:"image_urls"`
}

// Coordinates is a search center resolved by geocoding the requested
// city/state. Candidates without their own coordinates inherit it.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// candidateDateLayouts are the timestamp formats accepted from scrapers and
// from model output, tried in order.
var candidateDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
}

// ParseCandidateDate parses a candidate's free-form start date. An empty
// string is valid and yields nil (events without a known start time).
func ParseCandidateDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range candidateDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unparsable date %q", value)
}

// NormalizeCandidate converts a raw candidate into a persistable Event. The
// geohashes are always computed from the candidate's own coordinates, falling
// back to the search center when the candidate has none. The returned event
// carries a fresh id; the upsert step discards it when the store already
// holds a matching row.
func NormalizeCandidate(raw RawCandidateEvent, center Coordinates, now time.Time, ttl time.Duration) (*Event, error) {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return nil, fmt.Errorf("candidate has no title")
	}

	dateStart, err := ParseCandidateDate(raw.DateStart)
	if err != nil {
		return nil, err
	}

	lat, lon := center.Latitude, center.Longitude
	if raw.Latitude != nil && raw.Longitude != nil {
		lat, lon = *raw.Latitude, *raw.Longitude
	}

	expiresAt := now.Add(ttl)
	event := &Event{
		ID:              uuid.New().String(),
		Title:           title,
		Organization:    strings.TrimSpace(raw.Organization),
		Description:     strings.TrimSpace(raw.Description),
		DateStart:       dateStart,
		LocationAddress: strings.TrimSpace(raw.Address),
		LocationCity:    strings.TrimSpace(raw.City),
		LocationState:   strings.TrimSpace(raw.State),
		LocationZip:     strings.TrimSpace(raw.Zip),
		Latitude:        lat,
		Longitude:       lon,
		GeohashCoarse:   utils.EncodeCoarse(lat, lon),
		GeohashFine:     utils.EncodeFine(lat, lon),
		Category:        strings.TrimSpace(raw.Category),
		Venue:           strings.TrimSpace(raw.Venue),
		Price:           strings.TrimSpace(raw.Price),
		URL:             strings.TrimSpace(raw.URL),
		Source:          raw.Source,
		ScrapedAt:       now,
		CacheExpiresAt:  &expiresAt,
	}

	for _, imageURL := range raw.ImageURLs {
		imageURL = strings.TrimSpace(imageURL)
		if imageURL == "" {
			continue
		}
		event.Images = append(event.Images, EventImage{
			URL:      imageURL,
			Position: len(event.Images),
		})
	}
	if len(event.Images) > 0 {
		event.Thumbnail = event.Images[0].URL
	}

	return event, nil
}
