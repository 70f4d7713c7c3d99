package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-3-flash-preview"

// geminiAdapter serves Google models through the genai SDK. The client is
// built lazily because genai.NewClient needs a context.
type geminiAdapter struct {
	id     string
	apiKey string
	model  string
}

func newGeminiAdapter(s Settings) (*geminiAdapter, error) {
	model := strings.TrimSpace(s.Model)
	if model == "" {
		model = defaultGeminiModel
	}
	return &geminiAdapter{
		id:     s.ID,
		apiKey: strings.TrimSpace(s.APIKey),
		model:  model,
	}, nil
}

func (a *geminiAdapter) ID() string { return a.id }

func (a *geminiAdapter) Generate(ctx context.Context, req Request) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(a.apiKey))
	if err != nil {
		return "", classify(a.id, err)
	}
	defer client.Close()

	model := client.GenerativeModel(a.model)
	model.SetMaxOutputTokens(int32(req.MaxTokens))
	if strings.TrimSpace(req.SystemPrompt) != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemPrompt)},
		}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", classify(a.id, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return "", wrapError(a.id, KindMalformed, errors.New("empty model response"))
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", wrapError(a.id, KindMalformed, errors.New("empty model response"))
	}
	return text, nil
}
