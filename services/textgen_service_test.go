package services

import (
	"context"
	"errors"
	"testing"
)

func TestHybridFallsThroughToStub(t *testing.T) {
	broken := &fixedGenerator{err: errors.New("connection refused")}
	hybrid := NewHybridTextGeneratorWithChain([]TextGenerator{namedGenerator{broken, "remote"}, &StubProvider{}})

	text, err := hybrid.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "[]" {
		t.Errorf("expected the stub's reply, got %q", text)
	}
}

func TestHybridDoesNotRetryDeadProvider(t *testing.T) {
	broken := &fixedGenerator{err: errors.New("connection refused")}
	hybrid := NewHybridTextGeneratorWithChain([]TextGenerator{namedGenerator{broken, "remote"}, &StubProvider{}})

	for i := 0; i < 3; i++ {
		if _, err := hybrid.Generate(context.Background(), "prompt"); err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
	}
	if broken.calls != 1 {
		t.Errorf("dead provider was retried: %d calls", broken.calls)
	}
}

func TestHybridPrefersFirstWorkingProvider(t *testing.T) {
	first := &fixedGenerator{output: "from-remote"}
	hybrid := NewHybridTextGeneratorWithChain([]TextGenerator{namedGenerator{first, "remote"}, &StubProvider{}})

	text, err := hybrid.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "from-remote" {
		t.Errorf("expected the first provider to answer, got %q", text)
	}
}

func TestHybridCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	broken := &fixedGenerator{err: errors.New("connection refused")}
	hybrid := NewHybridTextGeneratorWithChain([]TextGenerator{namedGenerator{broken, "remote"}, &StubProvider{}})

	if _, err := hybrid.Generate(ctx, "prompt"); err == nil {
		t.Error("expected a context error")
	}
}

// namedGenerator lets one fixture stand in for differently named providers.
type namedGenerator struct {
	TextGenerator
	name string
}

func (n namedGenerator) Name() string { return n.name }
