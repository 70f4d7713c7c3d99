package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumorph/core/internal/modules/pipeline/artifact"
)

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ []byte, _ string) (string, error) {
	return f.text, f.err
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"collapses whitespace", "a  b\t\tc\n\nd", "a b c d"},
		{"strips control characters", "hello\x00\x07world", "helloworld"},
		{"trims edges", "  padded  ", "padded"},
		{"empty", "   \n\t  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.input))
		})
	}
}

func TestExtractTextPassthrough(t *testing.T) {
	e := New()
	doc, warnings, err := e.Extract(context.Background(), artifact.SourceText, Payload{
		Text:  "Photosynthesis converts light into   chemical\nenergy.",
		Title: "Bio notes",
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "Photosynthesis converts light into chemical energy.", doc.RawText)
	assert.Equal(t, artifact.SourceText, doc.SourceType)
	assert.Equal(t, "Bio notes", doc.Title)
}

func TestExtractMarkdownStripping(t *testing.T) {
	e := New()
	doc, _, err := e.Extract(context.Background(), artifact.SourceText, Payload{
		Text:     "# Cell Theory\n\nAll organisms are made of **cells**.",
		Filename: "notes.md",
	})
	require.NoError(t, err)
	assert.Contains(t, doc.RawText, "Cell Theory")
	assert.Contains(t, doc.RawText, "All organisms are made of cells.")
	assert.NotContains(t, doc.RawText, "#")
	assert.NotContains(t, doc.RawText, "**")
}

func TestExtractEmptyContent(t *testing.T) {
	e := New()
	_, _, err := e.Extract(context.Background(), artifact.SourceText, Payload{Text: "   \n\t "})
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestExtractUnknownSourceType(t *testing.T) {
	e := New()
	_, _, err := e.Extract(context.Background(), artifact.SourceType("carrier-pigeon"), Payload{Text: "hi"})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExtractTruncatesAtSentenceBoundary(t *testing.T) {
	e := New(WithMaxTextRunes(20))
	doc, warnings, err := e.Extract(context.Background(), artifact.SourceText, Payload{
		Text: "One one. Two two. Three three.",
	})
	require.NoError(t, err)
	assert.Equal(t, "One one. Two two.", doc.RawText)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "truncated")
}

func TestExtractTruncationHardCutsOversizedSentence(t *testing.T) {
	e := New(WithMaxTextRunes(10))
	doc, warnings, err := e.Extract(context.Background(), artifact.SourceText, Payload{
		Text: "averylongunbrokenstreamofcharacterswithnoboundary",
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(doc.RawText)), 10)
	assert.NotEmpty(t, doc.RawText)
	assert.Len(t, warnings, 1)
}

func TestExtractAudioUsesTranscriber(t *testing.T) {
	e := New(WithTranscriber(&fakeTranscriber{
		text: "the cell is the basic unit of life",
	}))
	doc, _, err := e.Extract(context.Background(), artifact.SourceAudio, Payload{
		Data:     []byte{0x01},
		Filename: "lecture.mp3",
	})
	require.NoError(t, err)
	assert.Equal(t, "the cell is the basic unit of life", doc.RawText)
	assert.InDelta(t, 3.2, doc.DurationSeconds, 0.01)
}

func TestExtractAudioWithoutTranscriber(t *testing.T) {
	e := New()
	_, _, err := e.Extract(context.Background(), artifact.SourceAudio, Payload{Data: []byte{0x01}})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExtractVideoTranscriberError(t *testing.T) {
	e := New(WithTranscriber(&fakeTranscriber{err: fmt.Errorf("stream unreadable")}))
	_, _, err := e.Extract(context.Background(), artifact.SourceVideo, Payload{Data: []byte{0x01}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transcription failed")
}

func TestExtractLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title>Cell Biology &amp; You</title>`+
			`<script>var tracking = true;</script></head>`+
			`<body><nav>Home | About</nav>`+
			`<article><h1>Cells</h1><p>Cells are the basic unit of life.</p></article>`+
			`</body></html>`)
	}))
	defer srv.Close()

	e := New()
	doc, _, err := e.Extract(context.Background(), artifact.SourceLink, Payload{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "Cell Biology & You", doc.Title)
	assert.Contains(t, doc.RawText, "Cells are the basic unit of life.")
	assert.NotContains(t, doc.RawText, "tracking")
	assert.NotContains(t, doc.RawText, "<p>")
}

func TestExtractLinkBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	e := New()
	_, _, err := e.Extract(context.Background(), artifact.SourceLink, Payload{URL: srv.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestExtractLinkWithoutURL(t *testing.T) {
	e := New()
	_, _, err := e.Extract(context.Background(), artifact.SourceLink, Payload{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestTextFromContentStream(t *testing.T) {
	stream := strings.Join([]string{
		"BT",
		"/F1 12 Tf",
		"(Mitochondria produce energy.) Tj",
		"0 -14 Td",
		"[(The nucleus stores ) (DNA.)] TJ",
		"ET",
	}, "\n")
	got := textFromContentStream([]byte(stream))
	assert.Contains(t, got, "Mitochondria produce energy.")
	assert.Contains(t, got, "The nucleus stores DNA.")
}

func TestDecodePDFLiteral(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello", "hello"},
		{"escaped parens", `a \(b\) c`, "a (b) c"},
		{"newline and tab", `x\ny\tz`, "x\ny\tz"},
		{"octal space", `a\040b`, "a b"},
		{"backslash", `a\\b`, `a\b`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodePDFLiteral([]byte(tt.input)))
		})
	}
}

func TestPDFEmptyPayload(t *testing.T) {
	_, _, err := pdfToText(nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
