package scrapers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"goodturn-api/config"
	"goodturn-api/models"
)

// CityCalendarScraper reads a municipal calendar page. City calendars are the
// most structured of the HTML sources: rows with a time element, a location
// column, and a detail link.
type CityCalendarScraper struct {
	name     string
	baseURL  string
	policies []string
	client   *http.Client
	limiter  *rate.Limiter
}

func NewCityCalendarScraper(c config.SourceConfig) *CityCalendarScraper {
	return &CityCalendarScraper{
		name:     c.Name,
		baseURL:  c.BaseURL,
		policies: c.Policies,
		client:   newScraperClient(),
		limiter:  newPolitenessLimiter(),
	}
}

func (s *CityCalendarScraper) Name() string {
	return s.name
}

func (s *CityCalendarScraper) Policies() []string {
	return s.policies
}

func (s *CityCalendarScraper) Fetch(ctx context.Context, q Query) ([]models.RawCandidateEvent, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	calendarURL := strings.TrimRight(s.baseURL, "/") + "/calendar"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, calendarURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", s.name, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s calendar: %w", s.name, err)
	}

	base, _ := url.Parse(calendarURL)

	var candidates []models.RawCandidateEvent
	doc.Find(".calendar-event, tr.event-row, li.calendar__item").Each(func(i int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Find(".calendar-event__title, .event-title, a").First().Text())
		if title == "" {
			return
		}

		candidate := models.RawCandidateEvent{
			Title:       title,
			Description: strings.TrimSpace(sel.Find(".calendar-event__description, .event-description").First().Text()),
			Venue:       strings.TrimSpace(sel.Find(".calendar-event__location, .event-location").First().Text()),
			Category:    strings.TrimSpace(sel.Find(".calendar-event__category, .event-category").First().Text()),
			City:        q.City,
			State:       q.State,
			Source:      s.name,
		}

		if dt, ok := sel.Find("time").First().Attr("datetime"); ok {
			candidate.DateStart = dt
		}

		if href, ok := sel.Find("a").First().Attr("href"); ok {
			if parsed, err := url.Parse(href); err == nil {
				candidate.URL = base.ResolveReference(parsed).String()
			}
		}

		candidates = append(candidates, candidate)
	})

	return candidates, nil
}
