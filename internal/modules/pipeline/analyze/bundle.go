package analyze

import (
	"strings"

	"github.com/edumorph/core/internal/modules/pipeline/artifact"
)

// GenerateBundle derives a complete artifact bundle from plain text alone.
// It never fails on non-empty input; empty input returns ErrEmptyInput.
func GenerateBundle(doc *artifact.SourceDocument, opts artifact.Options) (*artifact.Bundle, error) {
	opts = opts.Normalize()
	text := strings.TrimSpace(doc.RawText)
	if text == "" {
		return nil, ErrEmptyInput
	}

	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil, ErrEmptyInput
	}

	phrases := ScoreKeyPhrases(sentences, 0)
	ranked := RankSentences(sentences, phrases)

	k := opts.MaxSummarySentences
	if k > len(ranked) {
		k = len(ranked)
	}
	summarySel := ranked[:k]
	summary := Summary(text, sentences, ranked, opts.MaxSummarySentences)
	keyPoints := KeyPoints(ranked, summarySel, opts.MaxKeyPoints)
	cards := Flashcards(phrases, ranked, opts.FlashcardCount)
	questions, warnings := QuizQuestions(phrases, ranked, opts.QuestionCount)

	return &artifact.Bundle{
		Summary:     summary,
		Notes:       renderNotes(doc.Title, opts.Subject, summary, keyPoints, phrases),
		KeyPoints:   keyPoints,
		Flashcards:  cards,
		Questions:   questions,
		GeneratedBy: artifact.ByFallback,
		Warnings:    warnings,
	}, nil
}

// renderNotes builds the structured study notes text from already computed
// pieces, mirroring the layout teachers expect: summary first, then key
// concepts, then review prompts.
func renderNotes(title, subject, summary string, keyPoints []string, phrases []KeyPhrase) string {
	var b strings.Builder

	heading := "Study Notes"
	if subject != "" {
		heading = capitalize(subject) + " Study Notes"
	}
	b.WriteString(heading)
	if title != "" {
		b.WriteString(": ")
		b.WriteString(title)
	}
	b.WriteString("\n\nSummary\n")
	b.WriteString(summary)

	if len(keyPoints) > 0 {
		b.WriteString("\n\nKey Points\n")
		for _, p := range keyPoints {
			b.WriteString("- ")
			b.WriteString(p)
			b.WriteString("\n")
		}
	}

	if len(phrases) > 0 {
		n := len(phrases)
		if n > 8 {
			n = 8
		}
		terms := make([]string, 0, n)
		for _, p := range phrases[:n] {
			terms = append(terms, p.Text)
		}
		b.WriteString("\nImportant Terms: ")
		b.WriteString(strings.Join(terms, ", "))
	}

	return strings.TrimSpace(b.String())
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}
