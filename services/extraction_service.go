package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"goodturn-api/models"
	"goodturn-api/scrapers"
)

// ExtractionService recovers structured candidate events from unstructured
// page text via a text-generation model. Model output is never trusted to be
// valid JSON; a bad page degrades to zero candidates, not an error.
type ExtractionService struct {
	generator TextGenerator
	client    *http.Client
	maxChars  int
}

func NewExtractionService(generator TextGenerator, maxChars int) *ExtractionService {
	if maxChars <= 0 {
		maxChars = 4000
	}
	return &ExtractionService{
		generator: generator,
		client:    &http.Client{Timeout: 30 * time.Second},
		maxChars:  maxChars,
	}
}

const extractionPromptTemplate = `Extract every volunteer opportunity or local event from the page text below. Respond with ONLY a JSON array. Each element must have these keys (use "" when unknown): "title", "organization", "description", "date_start" (ISO 8601), "address", "city", "state", "zip", "category", "venue", "price", "url". The page is about %s, %s. If the page contains no events, respond with [].

Page text:
%s`

// ExtractFromPages fetches each configured unstructured page and runs the
// recovery pipeline over it. Per-page failures are logged and skipped.
func (s *ExtractionService) ExtractFromPages(ctx context.Context, pageURLs []string, q scrapers.Query) ([]models.RawCandidateEvent, error) {
	var candidates []models.RawCandidateEvent
	for _, pageURL := range pageURLs {
		text, err := s.fetchPageText(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return candidates, ctx.Err()
			}
			log.Printf("WARNING: extraction page fetch failed %s: %v", pageURL, err)
			continue
		}
		extracted := s.ExtractEvents(ctx, text, q)
		for i := range extracted {
			if extracted[i].URL == "" {
				extracted[i].URL = pageURL
			}
		}
		candidates = append(candidates, extracted...)
	}
	return candidates, nil
}

// ExtractEvents turns one page's cleaned text into candidates. Generation or
// recovery failure yields an empty list.
func (s *ExtractionService) ExtractEvents(ctx context.Context, pageText string, q scrapers.Query) []models.RawCandidateEvent {
	cleaned := s.CleanPageText(pageText)
	if cleaned == "" {
		return nil
	}

	prompt := fmt.Sprintf(extractionPromptTemplate, q.City, q.State, cleaned)
	raw, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		log.Printf("WARNING: text generation failed for %s, %s: %v", q.City, q.State, err)
		return nil
	}

	candidates, ok := RecoverCandidateArray(raw)
	if !ok {
		log.Printf("WARNING: could not recover a JSON array from generation output (%d chars)", len(raw))
		return nil
	}
	for i := range candidates {
		candidates[i].Source = "extraction"
		if candidates[i].City == "" {
			candidates[i].City = q.City
		}
		if candidates[i].State == "" {
			candidates[i].State = q.State
		}
	}
	return candidates
}

// CleanPageText strips markup noise and bounds the text handed to the model:
// script/style/nav subtrees are dropped, whitespace is collapsed, and the
// result is truncated to the configured prefix.
func (s *ExtractionService) CleanPageText(text string) string {
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
		doc.Find("script, style, nav, header, footer, noscript").Remove()
		text = doc.Text()
	}
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > s.maxChars {
		text = string(runes[:s.maxChars])
	}
	return text
}

func (s *ExtractionService) fetchPageText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// RecoverCandidateArray pulls a candidate array out of untrusted generation
// output. Recovery order: strip a fenced code block if the content is wrapped
// in one, isolate the first structurally complete JSON array by bracket-depth
// counting (so trailing prose is ignored), then parse. ok is false when no
// array can be recovered.
func RecoverCandidateArray(text string) ([]models.RawCandidateEvent, bool) {
	text = stripCodeFence(text)

	arr, found := isolateJSONArray(text)
	if !found {
		return nil, false
	}

	var candidates []models.RawCandidateEvent
	if err := json.Unmarshal([]byte(arr), &candidates); err != nil {
		return nil, false
	}
	return candidates, true
}

// stripCodeFence removes a surrounding ``` fence, with or without a language
// tag. Text without a fence is returned unchanged.
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	start := strings.Index(trimmed, "```")
	if start < 0 {
		return text
	}
	rest := trimmed[start+3:]
	// Drop an optional language tag on the fence line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(rest[:nl])
		if firstLine == "" || isFenceTag(firstLine) {
			rest = rest[nl+1:]
		}
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

func isFenceTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// isolateJSONArray returns the substring from the first '[' to its matching
// ']', tracking bracket depth and skipping brackets inside string literals.
func isolateJSONArray(text string) (string, bool) {
	start := strings.IndexByte(text, '[')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
