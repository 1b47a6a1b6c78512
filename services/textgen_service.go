package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"goodturn-api/config"
)

// TextGenerator produces free text from a prompt. The extraction pipeline
// does not care which backing model answered.
type TextGenerator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// HybridTextGenerator walks an ordered provider chain: remote model, local
// model server, deterministic stub. A provider that fails is marked dead for
// the lifetime of this instance and never retried; the stub always answers,
// so Generate can only fail on context cancellation.
type HybridTextGenerator struct {
	mu        sync.Mutex
	providers []TextGenerator
	dead      map[string]bool
}

// NewHybridTextGenerator builds the default chain from configuration.
// Providers without enough configuration to ever succeed are left out of the
// chain up front.
func NewHybridTextGenerator(cfg *config.Config) *HybridTextGenerator {
	var chain []TextGenerator
	if cfg.RemoteModelAPIKey != "" {
		chain = append(chain, NewRemoteModelProvider(cfg))
	}
	if cfg.LocalModelBaseURL != "" {
		chain = append(chain, NewLocalModelProvider(cfg))
	}
	chain = append(chain, &StubProvider{})
	return NewHybridTextGeneratorWithChain(chain)
}

// NewHybridTextGeneratorWithChain builds a hybrid generator over an explicit
// chain, first provider preferred.
func NewHybridTextGeneratorWithChain(chain []TextGenerator) *HybridTextGenerator {
	return &HybridTextGenerator{
		providers: chain,
		dead:      make(map[string]bool),
	}
}

func (h *HybridTextGenerator) Name() string {
	return "hybrid"
}

func (h *HybridTextGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for _, p := range h.providers {
		h.mu.Lock()
		skip := h.dead[p.Name()]
		h.mu.Unlock()
		if skip {
			continue
		}

		text, err := p.Generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		log.Printf("WARNING: text provider %s failed, falling through: %v", p.Name(), err)
		h.mu.Lock()
		h.dead[p.Name()] = true
		h.mu.Unlock()
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no text providers configured")
	}
	return "", fmt.Errorf("all text providers failed: %w", lastErr)
}

// --- Remote model provider (chat-completions style API) ---

type RemoteModelProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewRemoteModelProvider(cfg *config.Config) *RemoteModelProvider {
	return &RemoteModelProvider{
		apiKey:  cfg.RemoteModelAPIKey,
		model:   cfg.RemoteModelName,
		baseURL: strings.TrimRight(cfg.RemoteModelBaseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *RemoteModelProvider) Name() string {
	return "remote"
}

func (p *RemoteModelProvider) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatCompletionRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("remote model call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("remote model returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding remote model response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("remote model returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// --- Local model provider (Ollama-style HTTP server) ---

type LocalModelProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

type localGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type localGenerateResponse struct {
	Response string `json:"response"`
}

func NewLocalModelProvider(cfg *config.Config) *LocalModelProvider {
	return &LocalModelProvider{
		baseURL: strings.TrimRight(cfg.LocalModelBaseURL, "/"),
		model:   cfg.LocalModelName,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *LocalModelProvider) Name() string {
	return "local"
}

func (p *LocalModelProvider) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(localGenerateRequest{
		Model:  p.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("local model call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("local model returned status %d", resp.StatusCode)
	}

	var parsed localGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding local model response: %w", err)
	}
	return parsed.Response, nil
}

// --- Deterministic stub ---

// StubProvider terminates the fallback chain. It always succeeds and always
// yields an empty candidate array, so extraction degrades to zero results
// when no model is reachable.
type StubProvider struct{}

func (p *StubProvider) Name() string {
	return "stub"
}

func (p *StubProvider) Generate(ctx context.Context, prompt string) (string, error) {
	return "[]", nil
}
