package services

import (
	"context"
	"log"
	"sync"
	"time"

	"goodturn-api/config"
	"goodturn-api/models"
	"goodturn-api/scrapers"
)

// Orchestration policies. Discovery covers the broad nonprofit/listing
// sources with a generous per-call budget; tonight covers the entertainment
// and social sources with a tighter one.
const (
	PolicyDiscovery = "discovery"
	PolicyTonight   = "tonight"
)

// SourceResult is the typed outcome of one fan-out task. A failed task
// carries its error here instead of aborting the batch.
type SourceResult struct {
	Source     string
	Candidates []models.RawCandidateEvent
	Err        error
}

// BatchReport aggregates the per-source outcomes of one fan-out.
type BatchReport struct {
	Results []SourceResult
}

// Failures returns the results whose task failed or timed out.
func (r *BatchReport) Failures() []SourceResult {
	var failed []SourceResult
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// AllFailed reports whether not a single task produced a result.
func (r *BatchReport) AllFailed() bool {
	return len(r.Results) > 0 && len(r.Failures()) == len(r.Results)
}

// SourceOrchestrator fans a query out to every scraper registered for a
// policy, plus the extraction pipeline, and merges their outputs into one
// candidate batch. One source's failure never aborts the batch: each task is
// bounded by its own timeout and errors are converted to empty results.
type SourceOrchestrator struct {
	scrapers        []scrapers.Scraper
	extraction      *ExtractionService
	extractionPages map[string][]string // policy -> page urls
	timeouts        map[string]time.Duration
}

func NewSourceOrchestrator(cfg *config.Config, sources []config.SourceConfig, extraction *ExtractionService) (*SourceOrchestrator, error) {
	o := &SourceOrchestrator{
		extraction:      extraction,
		extractionPages: make(map[string][]string),
		timeouts: map[string]time.Duration{
			PolicyDiscovery: cfg.DiscoverSourceTimeout,
			PolicyTonight:   cfg.TonightSourceTimeout,
		},
	}

	for _, sc := range sources {
		if sc.Type == "extraction_page" {
			for _, policy := range sc.Policies {
				o.extractionPages[policy] = append(o.extractionPages[policy], sc.PageURLs...)
			}
			continue
		}
		s, err := scrapers.NewFromConfig(sc)
		if err != nil {
			return nil, err
		}
		o.scrapers = append(o.scrapers, s)
	}
	return o, nil
}

// NewSourceOrchestratorWithScrapers wires an orchestrator from already-built
// scrapers. Used by tests and by callers that manage their own registry.
func NewSourceOrchestratorWithScrapers(ss []scrapers.Scraper, extraction *ExtractionService, timeout time.Duration) *SourceOrchestrator {
	return &SourceOrchestrator{
		scrapers:        ss,
		extraction:      extraction,
		extractionPages: make(map[string][]string),
		timeouts: map[string]time.Duration{
			PolicyDiscovery: timeout,
			PolicyTonight:   timeout,
		},
	}
}

// FanOut runs every task for the policy concurrently and collects a flat,
// unordered candidate batch plus the per-source report.
func (o *SourceOrchestrator) FanOut(ctx context.Context, q scrapers.Query, policy string) ([]models.RawCandidateEvent, BatchReport) {
	timeout := o.timeouts[policy]
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var (
		mu     sync.Mutex
		report BatchReport
		wg     sync.WaitGroup
	)

	collect := func(res SourceResult) {
		mu.Lock()
		defer mu.Unlock()
		if res.Err != nil {
			log.Printf("WARNING: source %s failed for %s, %s: %v", res.Source, q.City, q.State, res.Err)
			res.Candidates = nil
		}
		report.Results = append(report.Results, res)
	}

	for _, s := range o.scrapers {
		if !scrapers.HasPolicy(s, policy) {
			continue
		}
		wg.Add(1)
		go func(s scrapers.Scraper) {
			defer wg.Done()
			taskCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			candidates, err := s.Fetch(taskCtx, q)
			collect(SourceResult{Source: s.Name(), Candidates: candidates, Err: err})
		}(s)
	}

	if o.extraction != nil && len(o.extractionPages[policy]) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			taskCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			candidates, err := o.extraction.ExtractFromPages(taskCtx, o.extractionPages[policy], q)
			collect(SourceResult{Source: "extraction", Candidates: candidates, Err: err})
		}()
	}

	wg.Wait()

	var batch []models.RawCandidateEvent
	for _, res := range report.Results {
		batch = append(batch, res.Candidates...)
	}
	return batch, report
}

// DedupeByURL collapses duplicates within one batch. Candidates sharing a
// non-empty url keep only their first occurrence; url-less candidates pass
// through untouched (the merge step may still unify them against the store
// via the fallback key). Single pass, order preserving.
func DedupeByURL(batch []models.RawCandidateEvent) []models.RawCandidateEvent {
	seen := make(map[string]bool, len(batch))
	out := make([]models.RawCandidateEvent, 0, len(batch))
	for _, c := range batch {
		if c.URL != "" {
			if seen[c.URL] {
				continue
			}
			seen[c.URL] = true
		}
		out = append(out, c)
	}
	return out
}
