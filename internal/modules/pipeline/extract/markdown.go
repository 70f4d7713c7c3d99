package extract

import (
	"bytes"
	"html"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdownEngine = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Strikethrough,
	),
)

var tagStripper = bluemonday.StrictPolicy()

// markdownToText renders markdown to HTML and strips every tag, leaving the
// prose. Renders the input unchanged on parser failure.
func markdownToText(src string) string {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(src), &buf); err != nil {
		return src
	}
	return html.UnescapeString(tagStripper.Sanitize(buf.String()))
}
