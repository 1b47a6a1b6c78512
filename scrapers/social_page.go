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

// SocialPageScraper extracts event posts from a community-board style HTML
// page. Post markup varies between boards, so the selectors are kept broad
// and every field except the title is best-effort.
type SocialPageScraper struct {
	name     string
	baseURL  string
	policies []string
	client   *http.Client
	limiter  *rate.Limiter
}

func NewSocialPageScraper(c config.SourceConfig) *SocialPageScraper {
	return &SocialPageScraper{
		name:     c.Name,
		baseURL:  c.BaseURL,
		policies: c.Policies,
		client:   newScraperClient(),
		limiter:  newPolitenessLimiter(),
	}
}

func (s *SocialPageScraper) Name() string {
	return s.name
}

func (s *SocialPageScraper) Policies() []string {
	return s.policies
}

func (s *SocialPageScraper) Fetch(ctx context.Context, q Query) ([]models.RawCandidateEvent, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	pageURL := fmt.Sprintf("%s/events?city=%s&state=%s",
		strings.TrimRight(s.baseURL, "/"),
		url.QueryEscape(q.City),
		url.QueryEscape(q.State))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
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
		return nil, fmt.Errorf("parsing %s page: %w", s.name, err)
	}

	base, _ := url.Parse(pageURL)

	var candidates []models.RawCandidateEvent
	doc.Find(".event-card, .post--event, article.event").Each(func(i int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Find(".event-card__title, .post__title, h2, h3").First().Text())
		if title == "" {
			return
		}

		candidate := models.RawCandidateEvent{
			Title:        title,
			Organization: strings.TrimSpace(sel.Find(".event-card__org, .post__author").First().Text()),
			Description:  strings.TrimSpace(sel.Find(".event-card__body, .post__body, p").First().Text()),
			Venue:        strings.TrimSpace(sel.Find(".event-card__venue, .post__location").First().Text()),
			City:         q.City,
			State:        q.State,
			Source:       s.name,
		}

		if dt, ok := sel.Find("time").First().Attr("datetime"); ok {
			candidate.DateStart = dt
		} else {
			candidate.DateStart = strings.TrimSpace(sel.Find(".event-card__date, .post__date").First().Text())
		}

		if href, ok := sel.Find("a").First().Attr("href"); ok {
			if parsed, err := url.Parse(href); err == nil {
				candidate.URL = base.ResolveReference(parsed).String()
			}
		}

		sel.Find("img").Each(func(_ int, img *goquery.Selection) {
			if src, ok := img.Attr("src"); ok && src != "" {
				if parsed, err := url.Parse(src); err == nil {
					candidate.ImageURLs = append(candidate.ImageURLs, base.ResolveReference(parsed).String())
				}
			}
		})

		candidates = append(candidates, candidate)
	})

	return candidates, nil
}
