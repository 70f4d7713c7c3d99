// Package pipeline orchestrates content ingestion and study-material
// generation: extract the source text, try configured AI providers in
// priority order with retry and backoff, and fall back to deterministic
// text analysis when none of them delivers a usable bundle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/edumorph/core/internal/modules/pipeline/analyze"
	"github.com/edumorph/core/internal/modules/pipeline/artifact"
	"github.com/edumorph/core/internal/modules/pipeline/assemble"
	"github.com/edumorph/core/internal/modules/pipeline/extract"
	"github.com/edumorph/core/internal/modules/pipeline/provider"
)

// ErrorKind classifies fatal pipeline failures.
type ErrorKind string

const (
	ErrKindUnsupportedFormat ErrorKind = "unsupported_format"
	ErrKindEmptyContent      ErrorKind = "empty_content"
)

// Error is a fatal ingestion failure where no bundle can be produced.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("pipeline: %s: %v", e.Kind, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Policy bounds the provider attempt loop.
type Policy struct {
	AttemptsPerProvider int
	InitialBackoff      time.Duration
	CallTimeout         time.Duration
}

// DefaultPolicy returns the standard attempt bounds.
func DefaultPolicy() Policy {
	return Policy{
		AttemptsPerProvider: 2,
		InitialBackoff:      500 * time.Millisecond,
		CallTimeout:         30 * time.Second,
	}
}

func (p Policy) normalize() Policy {
	d := DefaultPolicy()
	if p.AttemptsPerProvider <= 0 {
		p.AttemptsPerProvider = d.AttemptsPerProvider
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = d.InitialBackoff
	}
	if p.CallTimeout <= 0 {
		p.CallTimeout = d.CallTimeout
	}
	return p
}

// Result pairs the extracted document with its generated bundle.
type Result struct {
	Document *artifact.SourceDocument
	Bundle   *artifact.Bundle
}

// Pipeline runs the full ingest-generate-fallback flow.
type Pipeline struct {
	extractor *extract.Extractor
	adapters  []provider.Adapter
	policy    Policy
	logger    *zap.Logger
	sleep     func(time.Duration)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithPolicy overrides the attempt policy.
func WithPolicy(policy Policy) Option {
	return func(p *Pipeline) { p.policy = policy.normalize() }
}

// withSleep replaces the backoff sleeper in tests.
func withSleep(fn func(time.Duration)) Option {
	return func(p *Pipeline) { p.sleep = fn }
}

// New creates a Pipeline over the given extractor and providers. Adapter
// order is priority order; an empty adapter list means fallback-only.
func New(extractor *extract.Extractor, adapters []provider.Adapter, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor: extractor,
		adapters:  adapters,
		policy:    DefaultPolicy(),
		logger:    zap.NewNop(),
		sleep:     time.Sleep,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Generate runs one document through the pipeline. It returns a fatal Error
// only when extraction fails; every other failure path degrades to the
// deterministic text-analysis fallback.
func (p *Pipeline) Generate(ctx context.Context, sourceType artifact.SourceType, payload extract.Payload, opts artifact.Options) (*Result, error) {
	opts = opts.Normalize()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(opts.OverallTimeoutMs)*time.Millisecond)
	defer cancel()

	doc, extractWarnings, err := p.extractor.Extract(ctx, sourceType, payload)
	if err != nil {
		return nil, wrapExtractError(err)
	}

	bundle, providerWarnings := p.generateBundle(ctx, doc, opts)
	bundle.Warnings = append(append(extractWarnings, providerWarnings...), bundle.Warnings...)

	return &Result{Document: doc, Bundle: bundle}, nil
}

func wrapExtractError(err error) error {
	kind := ErrKindUnsupportedFormat
	if errors.Is(err, extract.ErrEmptyContent) {
		kind = ErrKindEmptyContent
	}
	return &Error{Kind: kind, Err: err}
}

// generateBundle walks providers in priority order and degrades to text
// analysis. The returned warnings describe which providers were skipped.
func (p *Pipeline) generateBundle(ctx context.Context, doc *artifact.SourceDocument, opts artifact.Options) (*artifact.Bundle, []string) {
	var warnings []string

	for i, adapter := range p.orderedAdapters(opts.ProviderOrder) {
		bundle, note := p.tryProvider(ctx, adapter, doc, opts)
		if bundle != nil {
			bundle.GeneratedBy = generatedByPosition(i)
			p.logger.Info("bundle generated by provider",
				zap.String("provider", adapter.ID()),
				zap.String("generated_by", string(bundle.GeneratedBy)))
			return bundle, warnings
		}
		warnings = append(warnings, note)
		if ctx.Err() != nil {
			break
		}
	}

	fallback, err := analyze.GenerateBundle(doc, opts)
	if err != nil {
		// Extraction already guaranteed non-empty text, so the only way
		// here is a document with no recognizable sentences at all.
		fallback = &artifact.Bundle{
			Summary:     doc.RawText,
			GeneratedBy: artifact.ByFallback,
		}
	}
	p.logger.Info("bundle generated by text analysis fallback",
		zap.Int("providers_tried", len(warnings)))
	return fallback, warnings
}

// tryProvider runs the attempt loop for one provider. A nil bundle means
// the provider is exhausted; the note explains why.
func (p *Pipeline) tryProvider(ctx context.Context, adapter provider.Adapter, doc *artifact.SourceDocument, opts artifact.Options) (*artifact.Bundle, string) {
	backoff := p.policy.InitialBackoff
	textCap := provider.DefaultPromptTextRunes
	var lastErr error

	for attempt := 1; attempt <= p.policy.AttemptsPerProvider; attempt++ {
		if ctx.Err() != nil {
			return nil, fmt.Sprintf("provider %s skipped: overall deadline exceeded", adapter.ID())
		}

		req := provider.BuildBundleRequest(doc, opts, textCap)
		callCtx, cancel := context.WithTimeout(ctx, p.policy.CallTimeout)
		raw, err := adapter.Generate(callCtx, req)
		cancel()

		if err == nil {
			bundle, aerr := assemble.FromRaw(raw, doc, opts)
			if aerr == nil {
				return bundle, ""
			}
			p.logger.Warn("provider returned unusable output",
				zap.String("provider", adapter.ID()), zap.Error(aerr))
			return nil, fmt.Sprintf("provider %s failed: unparsable output", adapter.ID())
		}

		lastErr = err
		kind := provider.KindOf(err)
		p.logger.Warn("provider call failed",
			zap.String("provider", adapter.ID()),
			zap.String("kind", string(kind)),
			zap.Int("attempt", attempt),
			zap.Error(err))

		switch kind {
		case provider.KindAuth, provider.KindMalformed:
			// Retrying the same credentials or the same prompt is futile.
			return nil, fmt.Sprintf("provider %s failed: %s", adapter.ID(), kind)
		case provider.KindTimeout:
			// Retry immediately with a shorter prompt, but only when the
			// prompt can actually shrink. Re-sending it verbatim just burns
			// another call timeout.
			if textCap <= provider.ShortPromptTextRunes ||
				utf8.RuneCountInString(doc.RawText) <= provider.ShortPromptTextRunes {
				return nil, fmt.Sprintf("provider %s failed: %s", adapter.ID(), kind)
			}
			textCap = provider.ShortPromptTextRunes
		case provider.KindRateLimited, provider.KindTransient:
			if attempt < p.policy.AttemptsPerProvider {
				p.sleep(backoff)
				backoff *= 2
			}
		}
	}

	return nil, fmt.Sprintf("provider %s failed after %d attempts: %s",
		adapter.ID(), p.policy.AttemptsPerProvider, provider.KindOf(lastErr))
}

// orderedAdapters applies a per-request provider order, keeping only IDs
// that are actually configured. An empty order keeps configuration order.
func (p *Pipeline) orderedAdapters(order []string) []provider.Adapter {
	if len(order) == 0 {
		return p.adapters
	}
	byID := make(map[string]provider.Adapter, len(p.adapters))
	for _, a := range p.adapters {
		byID[a.ID()] = a
	}
	out := make([]provider.Adapter, 0, len(order))
	for _, id := range order {
		if a, ok := byID[strings.TrimSpace(id)]; ok {
			out = append(out, a)
		}
	}
	return out
}

func generatedByPosition(i int) artifact.GeneratedBy {
	switch i {
	case 0:
		return artifact.ByPrimaryProvider
	case 1:
		return artifact.BySecondaryProvider
	default:
		return artifact.ByTertiaryProvider
	}
}
