package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"goodturn-api/scrapers"
)

func TestRecoverCandidateArrayFencedWithTrailingProse(t *testing.T) {
	output := "Here are the events I found:\n```json\n[{\"title\": \"Beach cleanup\", \"url\": \"https://a.example.com\"}, {\"title\": \"Book drive\"}]\n```\nLet me know if you need anything else!"

	candidates, ok := RecoverCandidateArray(output)
	if !ok {
		t.Fatal("expected recovery to succeed")
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].Title != "Beach cleanup" || candidates[0].URL != "https://a.example.com" {
		t.Errorf("first candidate parsed wrong: %+v", candidates[0])
	}
}

func TestRecoverCandidateArrayBareWithProse(t *testing.T) {
	output := `Sure! [{"title": "Trivia night"}] Those were all the events on the page.`

	candidates, ok := RecoverCandidateArray(output)
	if !ok {
		t.Fatal("expected recovery to succeed")
	}
	if len(candidates) != 1 || candidates[0].Title != "Trivia night" {
		t.Errorf("unexpected candidates: %+v", candidates)
	}
}

func TestRecoverCandidateArrayBracketsInsideStrings(t *testing.T) {
	output := `[{"title": "Concert [all ages]", "description": "Doors at 7] sharp"}] trailing`

	candidates, ok := RecoverCandidateArray(output)
	if !ok {
		t.Fatal("expected recovery to succeed")
	}
	if candidates[0].Title != "Concert [all ages]" {
		t.Errorf("bracket inside string broke isolation: %+v", candidates[0])
	}
}

func TestRecoverCandidateArrayNoArray(t *testing.T) {
	cases := []string{
		"",
		"I could not find any events on this page.",
		"[1, 2, unterminated",
		"```\nnot json at all\n```",
	}

	for _, input := range cases {
		candidates, ok := RecoverCandidateArray(input)
		if ok {
			t.Errorf("%q: expected recovery to fail, got %+v", input, candidates)
		}
	}
}

func TestRecoverCandidateArrayEmptyArray(t *testing.T) {
	candidates, ok := RecoverCandidateArray("[]")
	if !ok {
		t.Fatal("an empty array is a valid recovery")
	}
	if len(candidates) != 0 {
		t.Errorf("expected no candidates, got %+v", candidates)
	}
}

func TestCleanPageText(t *testing.T) {
	svc := NewExtractionService(&StubProvider{}, 4000)

	html := `<html><head><script>var x = 1;</script><style>.a{}</style></head>
<body><nav>Home | About</nav><p>Join   the  community
garden workday.</p><footer>© 2026</footer></body></html>`

	got := svc.CleanPageText(html)
	if strings.Contains(got, "var x") || strings.Contains(got, ".a{}") {
		t.Errorf("script/style leaked into cleaned text: %q", got)
	}
	if strings.Contains(got, "Home | About") {
		t.Errorf("nav leaked into cleaned text: %q", got)
	}
	if !strings.Contains(got, "Join the community garden workday.") {
		t.Errorf("body text missing or whitespace not collapsed: %q", got)
	}
}

func TestCleanPageTextTruncates(t *testing.T) {
	svc := NewExtractionService(&StubProvider{}, 100)
	long := strings.Repeat("volunteer ", 100)
	if got := svc.CleanPageText(long); len([]rune(got)) > 100 {
		t.Errorf("expected truncation to 100 chars, got %d", len([]rune(got)))
	}
}

type fixedGenerator struct {
	output string
	err    error
	calls  int
}

func (g *fixedGenerator) Name() string { return "fixed" }

func (g *fixedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	return g.output, g.err
}

func TestExtractEventsFillsDefaults(t *testing.T) {
	gen := &fixedGenerator{output: "```json\n[{\"title\": \"Coat drive\"}]\n```"}
	svc := NewExtractionService(gen, 4000)

	q := scrapers.Query{City: "Austin", State: "TX"}
	candidates := svc.ExtractEvents(context.Background(), "<p>Coat drive this weekend</p>", q)
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	c := candidates[0]
	if c.Source != "extraction" {
		t.Errorf("source = %q", c.Source)
	}
	if c.City != "Austin" || c.State != "TX" {
		t.Errorf("query location not filled in: %+v", c)
	}
}

func TestExtractEventsDegradesToEmpty(t *testing.T) {
	t.Run("generation error", func(t *testing.T) {
		gen := &fixedGenerator{err: errors.New("model offline")}
		svc := NewExtractionService(gen, 4000)
		got := svc.ExtractEvents(context.Background(), "<p>some page</p>", scrapers.Query{City: "Austin", State: "TX"})
		if len(got) != 0 {
			t.Errorf("expected no candidates, got %+v", got)
		}
	})

	t.Run("unrecoverable output", func(t *testing.T) {
		gen := &fixedGenerator{output: "no events here, sorry"}
		svc := NewExtractionService(gen, 4000)
		got := svc.ExtractEvents(context.Background(), "<p>some page</p>", scrapers.Query{City: "Austin", State: "TX"})
		if len(got) != 0 {
			t.Errorf("expected no candidates, got %+v", got)
		}
	})
}
