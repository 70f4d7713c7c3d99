package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
)

// WhisperTranscriber turns audio and video tracks into text through the
// OpenAI transcription endpoint.
type WhisperTranscriber struct {
	client openaiclient.Client
	model  string
}

// NewWhisperTranscriber wires a transcriber against the given credentials.
// An empty endpoint uses the public API; an empty model uses whisper-1.
func NewWhisperTranscriber(apiKey, endpoint, model string) *WhisperTranscriber {
	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(apiKey),
		openaioption.WithMaxRetries(0),
	}
	if endpoint != "" {
		opts = append(opts, openaioption.WithBaseURL(strings.TrimRight(endpoint, "/")))
	}
	if model == "" {
		model = "whisper-1"
	}
	return &WhisperTranscriber{
		client: openaiclient.NewClient(opts...),
		model:  model,
	}
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty media payload", ErrUnsupportedFormat)
	}
	if filename == "" {
		filename = "upload.mp3"
	}

	resp, err := w.client.Audio.Transcriptions.New(ctx, openaiclient.AudioTranscriptionNewParams{
		Model: openaiclient.AudioModel(w.model),
		File:  openaiclient.File(bytes.NewReader(data), filename, "application/octet-stream"),
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
