// Package provider adapts third-party generation APIs behind one interface.
// Each adapter returns the raw model output; parsing and validation happen
// downstream so every provider is interchangeable.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Settings carries the credentials and routing for one configured provider.
type Settings struct {
	ID       string
	Name     string
	Type     string
	APIKey   string
	Endpoint string
	Model    string
	Enabled  bool
}

// Usable reports whether the provider can be attempted at all.
func (s Settings) Usable() bool {
	return s.Enabled && strings.TrimSpace(s.APIKey) != ""
}

// Request is one generation call.
type Request struct {
	SystemPrompt string
	Prompt       string
	MaxTokens    int
}

// Adapter is a single generation backend.
type Adapter interface {
	ID() string
	Generate(ctx context.Context, req Request) (string, error)
}

func normalizeProviderType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	t = strings.ReplaceAll(t, "_", "-")
	t = strings.ReplaceAll(t, " ", "")
	return t
}

// New builds the adapter matching the settings' provider type.
func New(s Settings) (Adapter, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, wrapError(s.ID, KindAuth, errors.New("api key is empty"))
	}

	switch t := normalizeProviderType(s.Type); t {
	case "openai":
		return newJetifyAdapter(s, false)
	case "anthropic":
		return newJetifyAdapter(s, true)
	case "gemini", "google":
		return newGeminiAdapter(s)
	case "openai-compatible", "openaicompatible", "openrouter":
		return newOpenAICompatibleAdapter(s), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q for provider %s", t, s.ID)
	}
}
