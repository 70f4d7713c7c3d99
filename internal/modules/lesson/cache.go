package lesson

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/edumorph/core/internal/modules/pipeline/artifact"
	pkgredis "github.com/edumorph/core/internal/pkg/redis"
)

const (
	bundleCachePrefix = "edumorph:bundle:"
	bundleCacheTTL    = 24 * time.Hour
)

// contentHash derives a stable dedup key from the source material and the
// shaping options that influence the generated bundle.
func contentHash(sourceType artifact.SourceType, content []byte, opts artifact.Options) string {
	h := sha256.New()
	h.Write([]byte(sourceType))
	h.Write([]byte{0})
	h.Write(content)
	h.Write([]byte{0})
	// Provider order is hashed as given. A different order can route to a
	// different model and so produce a different bundle.
	fmt.Fprintf(h, "%s|%d|%d|%d|%d|%s",
		strings.ToLower(strings.TrimSpace(opts.Subject)),
		opts.MaxSummarySentences, opts.MaxKeyPoints,
		opts.FlashcardCount, opts.QuestionCount,
		strings.Join(opts.ProviderOrder, ","))
	return hex.EncodeToString(h.Sum(nil))
}

type bundleCache struct {
	rc *pkgredis.Client
}

type cachedResult struct {
	Document *artifact.SourceDocument `json:"document"`
	Bundle   *artifact.Bundle         `json:"bundle"`
}

func (c bundleCache) get(ctx context.Context, hash string) (*cachedResult, bool) {
	if c.rc == nil {
		return nil, false
	}
	raw, err := c.rc.Get(ctx, bundleCachePrefix+hash)
	if err != nil || raw == "" {
		return nil, false
	}
	var cached cachedResult
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil, false
	}
	if cached.Document == nil || cached.Bundle == nil {
		return nil, false
	}
	return &cached, true
}

func (c bundleCache) set(ctx context.Context, hash string, doc *artifact.SourceDocument, bundle *artifact.Bundle) {
	if c.rc == nil {
		return
	}
	raw, err := json.Marshal(cachedResult{Document: doc, Bundle: bundle})
	if err != nil {
		return
	}
	_ = c.rc.Set(ctx, bundleCachePrefix+hash, raw, bundleCacheTTL)
}
