package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"
)

// openAICompatibleAdapter speaks the /v1/chat/completions wire format
// directly, which covers OpenRouter, local inference servers and every other
// OpenAI-compatible gateway without an SDK in between.
type openAICompatibleAdapter struct {
	id       string
	apiKey   string
	endpoint string
	model    string
	client   *http.Client
}

func newOpenAICompatibleAdapter(s Settings) *openAICompatibleAdapter {
	model := strings.TrimSpace(s.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	return &openAICompatibleAdapter{
		id:       s.ID,
		apiKey:   strings.TrimSpace(s.APIKey),
		endpoint: normalizeCompatibleEndpoint(s.Endpoint),
		model:    model,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (a *openAICompatibleAdapter) ID() string { return a.id }

func (a *openAICompatibleAdapter) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]map[string]string, 0, 2)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		messages = append(messages, map[string]string{
			"role":    "system",
			"content": req.SystemPrompt,
		})
	}
	messages = append(messages, map[string]string{
		"role":    "user",
		"content": req.Prompt,
	})

	body, _ := json.Marshal(map[string]interface{}{
		"model":      a.model,
		"messages":   messages,
		"max_tokens": req.MaxTokens,
	})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", wrapError(a.id, KindTransient, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", classify(a.id, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", wrapError(a.id, KindTransient, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", wrapError(a.id, kindForStatus(resp.StatusCode),
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", wrapError(a.id, KindMalformed, err)
	}
	if result.Error != nil && strings.TrimSpace(result.Error.Message) != "" {
		return "", wrapError(a.id, KindMalformed, errors.New(result.Error.Message))
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", wrapError(a.id, KindMalformed, errors.New("empty model response"))
	}
	return result.Choices[0].Message.Content, nil
}

// normalizeCompatibleEndpoint strips a trailing /v1 so the path can be
// appended uniformly. An empty endpoint targets the public OpenAI API.
func normalizeCompatibleEndpoint(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return "https://api.openai.com"
	}

	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		cleaned := strings.TrimRight(base, "/")
		return strings.TrimSuffix(cleaned, "/v1")
	}

	path := strings.TrimRight(parsed.Path, "/")
	path = strings.TrimSuffix(path, "/v1")
	parsed.Path = path
	return strings.TrimRight(parsed.String(), "/")
}

// normalizeOpenAIBaseURL ensures the SDK base URL ends in /v1.
func normalizeOpenAIBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return ""
	}
	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimRight(base, "/")
	}

	path := strings.TrimRight(parsed.Path, "/")
	if !strings.HasSuffix(path, "/v1") {
		path += "/v1"
	}
	parsed.Path = path
	return strings.TrimRight(parsed.String(), "/")
}
