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

// TonightListingScraper queries an entertainment/nightlife listing API. It is
// the timeframe-aware source: the "tonight" orchestration policy passes a
// window parameter through so the site only returns same-day events.
type TonightListingScraper struct {
	name     string
	baseURL  string
	policies []string
	client   *http.Client
	limiter  *rate.Limiter
}

type tonightPayload struct {
	Name      string   `json:"name"`
	Venue     string   `json:"venue"`
	About     string   `json:"about"`
	StartsAt  string   `json:"starts_at"`
	Address   string   `json:"address"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Genre     string   `json:"genre"`
	Price     string   `json:"price"`
	TicketURL string   `json:"ticket_url"`
	Images    []string `json:"images"`
}

func NewTonightListingScraper(c config.SourceConfig) *TonightListingScraper {
	return &TonightListingScraper{
		name:     c.Name,
		baseURL:  c.BaseURL,
		policies: c.Policies,
		client:   newScraperClient(),
		limiter:  newPolitenessLimiter(),
	}
}

func (s *TonightListingScraper) Name() string {
	return s.name
}

func (s *TonightListingScraper) Policies() []string {
	return s.policies
}

func (s *TonightListingScraper) Fetch(ctx context.Context, q Query) ([]models.RawCandidateEvent, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(s.baseURL + "/api/events")
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	params := u.Query()
	params.Set("city", q.City)
	params.Set("state", q.State)
	if q.Timeframe != TimeframeAny {
		params.Set("when", string(q.Timeframe))
	}
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

	var events []tonightPayload
	if bodyIsArray(body) {
		if err := json.Unmarshal(body, &events); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", s.name, err)
		}
	} else {
		var wrapped struct {
			Events []tonightPayload `json:"events"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", s.name, err)
		}
		events = wrapped.Events
	}

	candidates := make([]models.RawCandidateEvent, 0, len(events))
	for _, e := range events {
		candidates = append(candidates, models.RawCandidateEvent{
			Title:       e.Name,
			Venue:       e.Venue,
			Description: e.About,
			DateStart:   e.StartsAt,
			Address:     e.Address,
			City:        q.City,
			State:       q.State,
			Latitude:    e.Lat,
			Longitude:   e.Lng,
			Category:    e.Genre,
			Price:       e.Price,
			URL:         e.TicketURL,
			Source:      s.name,
			ImageURLs:   e.Images,
		})
	}
	return candidates, nil
}
