package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumorph/core/internal/modules/pipeline/artifact"
)

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{401, KindAuth},
		{403, KindAuth},
		{429, KindRateLimited},
		{408, KindTimeout},
		{500, KindTransient},
		{503, KindTransient},
		{400, KindMalformed},
		{404, KindMalformed},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, kindForStatus(tt.status))
		})
	}
}

func TestErrorRetryable(t *testing.T) {
	assert.False(t, wrapError("p", KindAuth, errors.New("x")).Retryable())
	assert.False(t, wrapError("p", KindMalformed, errors.New("x")).Retryable())
	assert.True(t, wrapError("p", KindRateLimited, errors.New("x")).Retryable())
	assert.True(t, wrapError("p", KindTimeout, errors.New("x")).Retryable())
	assert.True(t, wrapError("p", KindTransient, errors.New("x")).Retryable())
}

func TestNewRejectsEmptyAPIKey(t *testing.T) {
	_, err := New(Settings{ID: "p1", Type: "openai", Enabled: true})
	require.Error(t, err)
	assert.Equal(t, KindAuth, KindOf(err))
}

func TestNewUnknownType(t *testing.T) {
	_, err := New(Settings{ID: "p1", Type: "smoke-signals", APIKey: "k", Enabled: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider type")
}

func TestNewDispatchesByType(t *testing.T) {
	for _, typ := range []string{"openai", "anthropic", "gemini", "openai-compatible", "openrouter", "OpenAI_Compatible"} {
		t.Run(typ, func(t *testing.T) {
			a, err := New(Settings{ID: "p-" + typ, Type: typ, APIKey: "k", Enabled: true})
			require.NoError(t, err)
			assert.Equal(t, "p-"+typ, a.ID())
		})
	}
}

func compatAdapter(t *testing.T, endpoint string) Adapter {
	t.Helper()
	a, err := New(Settings{
		ID:       "compat",
		Type:     "openai-compatible",
		APIKey:   "test-key",
		Endpoint: endpoint,
		Model:    "test-model",
		Enabled:  true,
	})
	require.NoError(t, err)
	return a
}

func TestOpenAICompatibleGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body.Model)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "user", body.Messages[1].Role)

		fmt.Fprint(w, `{"choices":[{"message":{"content":"{\"summary\":\"ok\"}"}}]}`)
	}))
	defer srv.Close()

	a := compatAdapter(t, srv.URL)
	got, err := a.Generate(context.Background(), Request{
		SystemPrompt: "sys",
		Prompt:       "user",
		MaxTokens:    100,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, got)
}

func TestOpenAICompatibleErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{"unauthorized", 401, `{"error":{"message":"bad key"}}`, KindAuth},
		{"rate limited", 429, `{"error":{"message":"slow down"}}`, KindRateLimited},
		{"server error", 500, `oops`, KindTransient},
		{"garbage body", 200, `not json at all`, KindMalformed},
		{"no choices", 200, `{"choices":[]}`, KindMalformed},
		{"embedded error", 200, `{"error":{"message":"overloaded"}}`, KindMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			a := compatAdapter(t, srv.URL)
			_, err := a.Generate(context.Background(), Request{Prompt: "p", MaxTokens: 10})
			require.Error(t, err)

			var pe *Error
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.want, pe.Kind)
			assert.Equal(t, "compat", pe.Provider)
		})
	}
}

func TestOpenAICompatibleTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	a := compatAdapter(t, srv.URL)
	_, err := a.Generate(ctx, Request{Prompt: "p", MaxTokens: 10})
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestNormalizeCompatibleEndpoint(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "https://api.openai.com"},
		{"https://example.com", "https://example.com"},
		{"https://example.com/", "https://example.com"},
		{"https://example.com/v1", "https://example.com"},
		{"https://example.com/api/v1/", "https://example.com/api"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeCompatibleEndpoint(tt.input), "input %q", tt.input)
	}
}

func TestNormalizeOpenAIBaseURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"https://example.com", "https://example.com/v1"},
		{"https://example.com/v1", "https://example.com/v1"},
		{"https://example.com/v1/", "https://example.com/v1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeOpenAIBaseURL(tt.input), "input %q", tt.input)
	}
}

func TestBuildBundleRequest(t *testing.T) {
	doc := &artifact.SourceDocument{
		RawText: strings.Repeat("a", 50),
		Title:   "Cell Biology",
	}
	opts := artifact.Options{Subject: "Biology"}.Normalize()

	req := BuildBundleRequest(doc, opts, 0)
	assert.Contains(t, req.Prompt, "SUBJECT: Biology")
	assert.Contains(t, req.Prompt, "TITLE: Cell Biology")
	assert.Contains(t, req.Prompt, doc.RawText)
	assert.Contains(t, req.SystemPrompt, "valid JSON only")
	assert.Contains(t, req.SystemPrompt,
		fmt.Sprintf(`"flashcards" MUST contain exactly %d items`, artifact.DefaultFlashcardCount))
	assert.Positive(t, req.MaxTokens)
}

func TestBuildBundleRequestTruncatesText(t *testing.T) {
	doc := &artifact.SourceDocument{RawText: strings.Repeat("x", 100)}
	opts := artifact.Options{}.Normalize()

	req := BuildBundleRequest(doc, opts, 40)
	assert.Contains(t, req.Prompt, strings.Repeat("x", 40)+"...")
	assert.NotContains(t, req.Prompt, strings.Repeat("x", 41))
}
