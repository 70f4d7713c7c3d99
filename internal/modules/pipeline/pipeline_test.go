package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumorph/core/internal/modules/pipeline/artifact"
	"github.com/edumorph/core/internal/modules/pipeline/extract"
	"github.com/edumorph/core/internal/modules/pipeline/provider"
)

const goodRaw = `{
	"summary": "Cells are the basic unit of life.",
	"notes": "Cell Biology\n\nCells make up all living things.",
	"key_points": ["Cells are the basic unit of life."],
	"flashcards": [{"front": "What is a cell?", "back": "The basic unit of life.", "difficulty": "easy"}],
	"questions": [{
		"prompt": "What is the basic unit of life?",
		"choices": ["The cell", "The atom", "The molecule", "The organ"],
		"correct_index": 0,
		"explanation": "Cell theory."
	}]
}`

const sourceText = "Cells are the basic unit of life. Organelles divide labor inside the cell. " +
	"The nucleus stores genetic information. Mitochondria produce chemical energy."

// scriptedAdapter replays a per-call script.
type scriptedAdapter struct {
	id       string
	calls    int
	requests []provider.Request
	fn       func(call int, req provider.Request) (string, error)
}

func (s *scriptedAdapter) ID() string { return s.id }

func (s *scriptedAdapter) Generate(_ context.Context, req provider.Request) (string, error) {
	s.calls++
	s.requests = append(s.requests, req)
	return s.fn(s.calls, req)
}

func alwaysFail(kind provider.Kind) func(int, provider.Request) (string, error) {
	return func(int, provider.Request) (string, error) {
		return "", &provider.Error{Provider: "x", Kind: kind, Err: errors.New("scripted failure")}
	}
}

func newTestPipeline(t *testing.T, adapters []provider.Adapter, sleeps *[]time.Duration) *Pipeline {
	t.Helper()
	return New(extract.New(), adapters,
		WithPolicy(Policy{AttemptsPerProvider: 2, InitialBackoff: 500 * time.Millisecond, CallTimeout: time.Second}),
		withSleep(func(d time.Duration) {
			if sleeps != nil {
				*sleeps = append(*sleeps, d)
			}
		}),
	)
}

func textPayload() extract.Payload {
	return extract.Payload{Text: sourceText, Title: "Cell Biology"}
}

func TestGenerateFallbackWithoutProviders(t *testing.T) {
	p := newTestPipeline(t, nil, nil)
	res, err := p.Generate(context.Background(), artifact.SourceText, textPayload(), artifact.Options{})
	require.NoError(t, err)

	assert.Equal(t, artifact.ByFallback, res.Bundle.GeneratedBy)
	assert.NotEmpty(t, res.Bundle.Summary)
	assert.NotEmpty(t, res.Bundle.Flashcards)
	assert.Equal(t, artifact.SourceText, res.Document.SourceType)
}

func TestGenerateUsesPrimaryProvider(t *testing.T) {
	a := &scriptedAdapter{id: "openai", fn: func(int, provider.Request) (string, error) {
		return goodRaw, nil
	}}
	var sleeps []time.Duration
	p := newTestPipeline(t, []provider.Adapter{a}, &sleeps)

	res, err := p.Generate(context.Background(), artifact.SourceText, textPayload(), artifact.Options{})
	require.NoError(t, err)

	assert.Equal(t, artifact.ByPrimaryProvider, res.Bundle.GeneratedBy)
	assert.Equal(t, "Cells are the basic unit of life.", res.Bundle.Summary)
	assert.Equal(t, 1, a.calls)
	assert.Empty(t, sleeps)
}

func TestGenerateAuthErrorAdvancesWithoutRetry(t *testing.T) {
	failing := &scriptedAdapter{id: "first", fn: alwaysFail(provider.KindAuth)}
	working := &scriptedAdapter{id: "second", fn: func(int, provider.Request) (string, error) {
		return goodRaw, nil
	}}
	var sleeps []time.Duration
	p := newTestPipeline(t, []provider.Adapter{failing, working}, &sleeps)

	res, err := p.Generate(context.Background(), artifact.SourceText, textPayload(), artifact.Options{})
	require.NoError(t, err)

	assert.Equal(t, artifact.BySecondaryProvider, res.Bundle.GeneratedBy)
	assert.Equal(t, 1, failing.calls)
	assert.Empty(t, sleeps)
	assert.Contains(t, strings.Join(res.Bundle.Warnings, "\n"), "provider first failed: auth")
}

func TestGenerateRetriesRateLimitWithBackoff(t *testing.T) {
	a := &scriptedAdapter{id: "flaky", fn: func(call int, _ provider.Request) (string, error) {
		if call == 1 {
			return "", &provider.Error{Provider: "flaky", Kind: provider.KindRateLimited, Err: errors.New("429")}
		}
		return goodRaw, nil
	}}
	var sleeps []time.Duration
	p := newTestPipeline(t, []provider.Adapter{a}, &sleeps)

	res, err := p.Generate(context.Background(), artifact.SourceText, textPayload(), artifact.Options{})
	require.NoError(t, err)

	assert.Equal(t, artifact.ByPrimaryProvider, res.Bundle.GeneratedBy)
	assert.Equal(t, 2, a.calls)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, sleeps)
}

func TestGenerateExhaustedProviderFallsBack(t *testing.T) {
	a := &scriptedAdapter{id: "down", fn: alwaysFail(provider.KindTransient)}
	var sleeps []time.Duration
	p := newTestPipeline(t, []provider.Adapter{a}, &sleeps)

	res, err := p.Generate(context.Background(), artifact.SourceText, textPayload(), artifact.Options{})
	require.NoError(t, err)

	assert.Equal(t, artifact.ByFallback, res.Bundle.GeneratedBy)
	assert.Equal(t, 2, a.calls)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, sleeps)
	assert.Contains(t, strings.Join(res.Bundle.Warnings, "\n"), "provider down failed after 2 attempts")
}

func TestGenerateUnparsableOutputAdvances(t *testing.T) {
	chatty := &scriptedAdapter{id: "chatty", fn: func(int, provider.Request) (string, error) {
		return "I am sorry, I cannot do that.", nil
	}}
	working := &scriptedAdapter{id: "solid", fn: func(int, provider.Request) (string, error) {
		return goodRaw, nil
	}}
	p := newTestPipeline(t, []provider.Adapter{chatty, working}, nil)

	res, err := p.Generate(context.Background(), artifact.SourceText, textPayload(), artifact.Options{})
	require.NoError(t, err)

	assert.Equal(t, artifact.BySecondaryProvider, res.Bundle.GeneratedBy)
	assert.Equal(t, 1, chatty.calls)
	assert.Contains(t, strings.Join(res.Bundle.Warnings, "\n"), "unparsable output")
}

func TestGenerateTimeoutRetriesWithShorterPrompt(t *testing.T) {
	a := &scriptedAdapter{id: "slow", fn: func(call int, _ provider.Request) (string, error) {
		if call == 1 {
			return "", &provider.Error{Provider: "slow", Kind: provider.KindTimeout, Err: context.DeadlineExceeded}
		}
		return goodRaw, nil
	}}
	var sleeps []time.Duration
	p := newTestPipeline(t, []provider.Adapter{a}, &sleeps)

	longText := strings.Repeat("Mitochondria produce chemical energy inside every cell. ", 200)
	res, err := p.Generate(context.Background(), artifact.SourceText, extract.Payload{Text: longText}, artifact.Options{})
	require.NoError(t, err)

	assert.Equal(t, artifact.ByPrimaryProvider, res.Bundle.GeneratedBy)
	require.Len(t, a.requests, 2)
	assert.Greater(t, len(a.requests[0].Prompt), len(a.requests[1].Prompt))
	assert.Empty(t, sleeps)
}

func TestGenerateTimeoutOnShortPromptAdvances(t *testing.T) {
	slow := &scriptedAdapter{id: "slow", fn: alwaysFail(provider.KindTimeout)}
	working := &scriptedAdapter{id: "solid", fn: func(int, provider.Request) (string, error) {
		return goodRaw, nil
	}}
	var sleeps []time.Duration
	p := newTestPipeline(t, []provider.Adapter{slow, working}, &sleeps)

	// The document already fits in the short prompt cap, so a shorter retry
	// would resend the same prompt. The provider is abandoned instead.
	res, err := p.Generate(context.Background(), artifact.SourceText, textPayload(), artifact.Options{})
	require.NoError(t, err)

	assert.Equal(t, artifact.BySecondaryProvider, res.Bundle.GeneratedBy)
	assert.Equal(t, 1, slow.calls)
	assert.Empty(t, sleeps)
	assert.Contains(t, strings.Join(res.Bundle.Warnings, "\n"), "provider slow failed: timeout")
}

func TestGenerateOverallDeadlineForcesFallback(t *testing.T) {
	blocking := &scriptedAdapter{id: "stuck"}
	blocking.fn = func(int, provider.Request) (string, error) {
		time.Sleep(80 * time.Millisecond)
		return "", &provider.Error{Provider: "stuck", Kind: provider.KindTimeout, Err: context.DeadlineExceeded}
	}
	p := newTestPipeline(t, []provider.Adapter{blocking}, nil)

	res, err := p.Generate(context.Background(), artifact.SourceText, textPayload(),
		artifact.Options{OverallTimeoutMs: 50})
	require.NoError(t, err)

	assert.Equal(t, artifact.ByFallback, res.Bundle.GeneratedBy)
	assert.Equal(t, 1, blocking.calls)
	assert.Contains(t, strings.Join(res.Bundle.Warnings, "\n"), "deadline")
}

func TestGenerateProviderOrderOverride(t *testing.T) {
	first := &scriptedAdapter{id: "alpha", fn: func(int, provider.Request) (string, error) {
		return goodRaw, nil
	}}
	second := &scriptedAdapter{id: "beta", fn: func(int, provider.Request) (string, error) {
		return goodRaw, nil
	}}
	p := newTestPipeline(t, []provider.Adapter{first, second}, nil)

	res, err := p.Generate(context.Background(), artifact.SourceText, textPayload(),
		artifact.Options{ProviderOrder: []string{"beta"}})
	require.NoError(t, err)

	assert.Equal(t, artifact.ByPrimaryProvider, res.Bundle.GeneratedBy)
	assert.Equal(t, 0, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestGenerateExtractFailureIsFatal(t *testing.T) {
	p := newTestPipeline(t, nil, nil)

	_, err := p.Generate(context.Background(), artifact.SourceType("scroll"), extract.Payload{Text: "x"}, artifact.Options{})
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrKindUnsupportedFormat, pe.Kind)

	_, err = p.Generate(context.Background(), artifact.SourceText, extract.Payload{Text: "   "}, artifact.Options{})
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrKindEmptyContent, pe.Kind)
}

func TestGenerateCarriesExtractWarnings(t *testing.T) {
	p := New(extract.New(extract.WithMaxTextRunes(60)), nil, withSleep(func(time.Duration) {}))
	res, err := p.Generate(context.Background(), artifact.SourceText, textPayload(), artifact.Options{})
	require.NoError(t, err)
	assert.Contains(t, strings.Join(res.Bundle.Warnings, "\n"), "truncated")
}
