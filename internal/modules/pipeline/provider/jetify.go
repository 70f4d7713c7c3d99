package provider

import (
	"context"
	"errors"
	"strings"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	jetopenai "go.jetify.com/ai/provider/openai"
)

const (
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-haiku-4-5-20251001"
)

// jetifyAdapter serves the OpenAI and Anthropic SDKs through the jetify
// LanguageModel abstraction. Retries live in the pipeline, so the underlying
// clients run with retries disabled.
type jetifyAdapter struct {
	id    string
	model jetapi.LanguageModel
}

func newJetifyAdapter(s Settings, anthropic bool) (*jetifyAdapter, error) {
	apiKey := strings.TrimSpace(s.APIKey)
	modelID := strings.TrimSpace(s.Model)
	endpoint := strings.TrimSpace(s.Endpoint)

	var model jetapi.LanguageModel
	if anthropic {
		if modelID == "" {
			modelID = defaultAnthropicModel
		}
		opts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(apiKey),
			anthropicoption.WithMaxRetries(0),
		}
		if endpoint != "" {
			opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(endpoint, "/")))
		}
		client := anthropicclient.NewClient(opts...)
		model = jetanthropic.NewLanguageModel(modelID, jetanthropic.WithClient(client))
	} else {
		if modelID == "" {
			modelID = defaultOpenAIModel
		}
		opts := []openaioption.RequestOption{
			openaioption.WithAPIKey(apiKey),
			openaioption.WithMaxRetries(0),
		}
		if normalized := normalizeOpenAIBaseURL(endpoint); normalized != "" {
			opts = append(opts, openaioption.WithBaseURL(normalized))
		}
		client := openaiclient.NewClient(opts...)
		model = jetopenai.NewLanguageModel(modelID, jetopenai.WithClient(client))
	}

	return &jetifyAdapter{id: s.ID, model: model}, nil
}

func (a *jetifyAdapter) ID() string { return a.id }

func (a *jetifyAdapter) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := jetai.GenerateText(
		ctx,
		buildPromptMessages(req.SystemPrompt, req.Prompt),
		jetai.WithModel(a.model),
		jetai.WithMaxOutputTokens(req.MaxTokens),
	)
	if err != nil {
		return "", classify(a.id, err)
	}
	return textFromResponse(a.id, resp)
}

func buildPromptMessages(systemPrompt, prompt string) []jetapi.Message {
	messages := make([]jetapi.Message, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, &jetapi.SystemMessage{Content: systemPrompt})
	}
	messages = append(messages, &jetapi.UserMessage{Content: jetapi.ContentFromText(prompt)})
	return messages
}

func textFromResponse(providerID string, resp *jetapi.Response) (string, error) {
	if resp == nil {
		return "", wrapError(providerID, KindMalformed, errors.New("nil model response"))
	}

	var full strings.Builder
	for _, block := range resp.Content {
		textBlock, ok := block.(*jetapi.TextBlock)
		if !ok || textBlock.Text == "" {
			continue
		}
		full.WriteString(textBlock.Text)
	}

	text := full.String()
	if strings.TrimSpace(text) == "" {
		return "", wrapError(providerID, KindMalformed, errors.New("empty model response"))
	}
	return text, nil
}
