// Package extract normalizes heterogeneous input payloads (raw text,
// markdown, PDF, audio, video, web links) into a single plain-text
// SourceDocument. Partial extraction loss never fails a request; only a
// fully unusable payload does.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/edumorph/core/internal/modules/pipeline/analyze"
	"github.com/edumorph/core/internal/modules/pipeline/artifact"
)

var (
	// ErrUnsupportedFormat marks an unknown or corrupt container.
	ErrUnsupportedFormat = errors.New("unsupported input format")
	// ErrEmptyContent marks extraction that yields no usable text.
	ErrEmptyContent = errors.New("no usable text content")
)

// DefaultMaxTextRunes bounds extracted text to protect downstream cost and
// latency. Generous for lecture-sized material, still bounded.
const DefaultMaxTextRunes = 20_000

// Payload carries the raw input for one extraction.
type Payload struct {
	Text     string
	Data     []byte
	URL      string
	Filename string
	Title    string
}

// Transcriber converts audio/video bytes to text. The production
// implementation calls a speech-to-text API; tests inject fakes.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, filename string) (string, error)
}

// Fetcher retrieves a web page body for link payloads.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (body string, title string, err error)
}

// Extractor converts typed payloads into SourceDocuments.
type Extractor struct {
	maxRunes    int
	transcriber Transcriber
	fetcher     Fetcher
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxTextRunes overrides the extracted text length cap.
func WithMaxTextRunes(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxRunes = n
		}
	}
}

// WithTranscriber sets the speech-to-text backend for audio/video input.
func WithTranscriber(t Transcriber) Option {
	return func(e *Extractor) { e.transcriber = t }
}

// WithFetcher sets the web fetcher for link input.
func WithFetcher(f Fetcher) Option {
	return func(e *Extractor) { e.fetcher = f }
}

// New creates an Extractor with the default web fetcher. A transcriber must
// be provided via WithTranscriber for audio/video payloads to succeed.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		maxRunes: DefaultMaxTextRunes,
		fetcher:  newWebFetcher(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract produces exactly one SourceDocument, or fails with
// ErrUnsupportedFormat / ErrEmptyContent. Warnings report truncation and
// partial extraction loss.
func (e *Extractor) Extract(ctx context.Context, sourceType artifact.SourceType, p Payload) (*artifact.SourceDocument, []string, error) {
	var (
		text     string
		title    = p.Title
		duration float64
		warnings []string
		err      error
	)

	switch sourceType {
	case artifact.SourceText:
		text = p.Text
		if text == "" && len(p.Data) > 0 {
			text = string(p.Data)
		}
		if strings.HasSuffix(strings.ToLower(p.Filename), ".md") {
			text = markdownToText(text)
		}

	case artifact.SourcePDF:
		var pageWarnings []string
		text, pageWarnings, err = pdfToText(p.Data)
		if err != nil {
			return nil, nil, err
		}
		warnings = append(warnings, pageWarnings...)

	case artifact.SourceAudio, artifact.SourceVideo:
		if e.transcriber == nil {
			return nil, nil, fmt.Errorf("%w: no transcriber configured for %s input", ErrUnsupportedFormat, sourceType)
		}
		text, err = e.transcriber.Transcribe(ctx, p.Data, p.Filename)
		if err != nil {
			return nil, nil, fmt.Errorf("transcription failed: %w", err)
		}
		duration = estimateSpokenSeconds(text)

	case artifact.SourceLink:
		if p.URL == "" {
			return nil, nil, fmt.Errorf("%w: link payload without url", ErrUnsupportedFormat)
		}
		var fetchedTitle string
		text, fetchedTitle, err = e.fetcher.Fetch(ctx, p.URL)
		if err != nil {
			return nil, nil, err
		}
		if title == "" {
			title = fetchedTitle
		}

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, sourceType)
	}

	text = NormalizeText(text)
	if text == "" {
		return nil, nil, ErrEmptyContent
	}

	text, truncated := truncateAtSentenceBoundary(text, e.maxRunes)
	if truncated {
		warnings = append(warnings, fmt.Sprintf(
			"extracted text truncated to %d characters at a sentence boundary", e.maxRunes))
	}

	return &artifact.SourceDocument{
		RawText:         text,
		SourceType:      sourceType,
		Title:           title,
		DurationSeconds: duration,
	}, warnings, nil
}

// NormalizeText collapses whitespace runs to single spaces and strips
// control characters, preserving nothing but printable content.
func NormalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := true
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsControl(r):
			// dropped
		default:
			b.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

// truncateAtSentenceBoundary cuts text at the sentence boundary nearest to
// (and not beyond) max runes. If even the first sentence exceeds the cap it
// is hard-cut so the guarantee of bounded output holds.
func truncateAtSentenceBoundary(text string, max int) (string, bool) {
	if len([]rune(text)) <= max {
		return text, false
	}

	var b strings.Builder
	count := 0
	for _, sentence := range analyze.SplitSentences(text) {
		n := len([]rune(sentence))
		sep := 0
		if count > 0 {
			sep = 1
		}
		if count+sep+n > max {
			break
		}
		if sep == 1 {
			b.WriteByte(' ')
		}
		b.WriteString(sentence)
		count += sep + n
	}
	if b.Len() == 0 {
		runes := []rune(text)
		return strings.TrimSpace(string(runes[:max])), true
	}
	return b.String(), true
}

// estimateSpokenSeconds approximates audio duration from transcript length
// assuming typical lecture pace.
func estimateSpokenSeconds(transcript string) float64 {
	words := len(strings.Fields(transcript))
	const wordsPerMinute = 150.0
	return float64(words) / wordsPerMinute * 60.0
}
