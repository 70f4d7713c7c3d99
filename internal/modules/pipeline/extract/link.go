package extract

import (
	"context"
	"fmt"
	stdhtml "html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"
)

const (
	fetchTimeout  = 20 * time.Second
	maxFetchBytes = 4 << 20
	fetchAgent    = "edumorph-core/1.0"
)

var (
	titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	// Non-content containers stripped before sanitization.
	chromeRe = regexp.MustCompile(`(?is)<(script|style|nav|header|footer|aside|noscript)[^>]*>.*?</\w+>`)
)

// webFetcher downloads a page, strips page chrome and markup, and returns
// the article text as markdown-flattened plain text.
type webFetcher struct {
	client    *http.Client
	sanitizer *bluemonday.Policy
	stripper  *bluemonday.Policy
	conv      *converter.Converter
}

func newWebFetcher() *webFetcher {
	return &webFetcher{
		client:    &http.Client{Timeout: fetchTimeout},
		sanitizer: bluemonday.UGCPolicy(),
		stripper:  bluemonday.StrictPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

func (f *webFetcher) Fetch(ctx context.Context, url string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("%w: invalid url %q", ErrUnsupportedFormat, url)
	}
	req.Header.Set("User-Agent", fetchAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" &&
		!strings.Contains(ct, "html") && !strings.Contains(ct, "text") {
		return "", "", fmt.Errorf("%w: content type %q", ErrUnsupportedFormat, ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", "", fmt.Errorf("fetch %s: read body: %w", url, err)
	}

	html := string(body)
	title := pageTitle(html)
	return f.htmlToText(html, url), title, nil
}

// htmlToText sanitizes untrusted markup, converts the remainder to markdown
// for layout-aware flattening, then strips the markdown syntax itself.
func (f *webFetcher) htmlToText(html, sourceURL string) string {
	html = chromeRe.ReplaceAllString(html, " ")
	html = f.sanitizer.Sanitize(html)

	md, err := f.conv.ConvertString(html, converter.WithDomain(sourceURL))
	if err != nil || strings.TrimSpace(md) == "" {
		// Converter failure leaves us tag-stripped plain text.
		return stdhtml.UnescapeString(f.stripper.Sanitize(html))
	}
	return markdownToText(md)
}

func pageTitle(html string) string {
	m := titleRe.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return NormalizeText(stdhtml.UnescapeString(m[1]))
}
