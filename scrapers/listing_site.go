package scrapers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"

	"goodturn-api/config"
	"goodturn-api/models"
)

// ListingSiteScraper talks to a volunteer-listing site's JSON search API.
// The payload may be object-wrapped ({"listings": [...]}) or a bare array.
type ListingSiteScraper struct {
	name     string
	baseURL  string
	policies []string
	client   *http.Client
	limiter  *rate.Limiter
}

type listingPayload struct {
	Title        string   `json:"title"`
	Organization string   `json:"organization"`
	Description  string   `json:"description"`
	StartDate    string   `json:"start_date"`
	Address      string   `json:"address"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	Zip          string   `json:"zip"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Category     string   `json:"category"`
	URL          string   `json:"url"`
	ImageURLs    []string `json:"image_urls"`
}

func NewListingSiteScraper(c config.SourceConfig) *ListingSiteScraper {
	return &ListingSiteScraper{
		name:     c.Name,
		baseURL:  c.BaseURL,
		policies: c.Policies,
		client:   newScraperClient(),
		limiter:  newPolitenessLimiter(),
	}
}

func (s *ListingSiteScraper) Name() string {
	return s.name
}

func (s *ListingSiteScraper) Policies() []string {
	return s.policies
}

func (s *ListingSiteScraper) Fetch(ctx context.Context, q Query) ([]models.RawCandidateEvent, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(s.baseURL + "/api/opportunities")
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	params := u.Query()
	params.Set("city", q.City)
	params.Set("state", q.State)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", s.name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	var listings []listingPayload
	if bodyIsArray(body) {
		if err := json.Unmarshal(body, &listings); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", s.name, err)
		}
	} else {
		var wrapped struct {
			Listings []listingPayload `json:"listings"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", s.name, err)
		}
		listings = wrapped.Listings
	}

	candidates := make([]models.RawCandidateEvent, 0, len(listings))
	for _, l := range listings {
		candidates = append(candidates, models.RawCandidateEvent{
			Title:        l.Title,
			Organization: l.Organization,
			Description:  l.Description,
			DateStart:    l.StartDate,
			Address:      l.Address,
			City:         l.City,
			State:        l.State,
			Zip:          l.Zip,
			Latitude:     l.Latitude,
			Longitude:    l.Longitude,
			Category:     l.Category,
			URL:          l.URL,
			Source:       s.name,
			ImageURLs:    l.ImageURLs,
		})
	}
	return candidates, nil
}
