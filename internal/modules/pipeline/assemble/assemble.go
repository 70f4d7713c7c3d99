// Package assemble turns raw model output into a validated Bundle. Model
// output is treated as hostile: fenced, truncated or partially invalid JSON
// is repaired where possible, invalid items are dropped with warnings, and
// missing sections are regenerated from text analysis so the result is
// always complete.
package assemble

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/edumorph/core/internal/modules/pipeline/analyze"
	"github.com/edumorph/core/internal/modules/pipeline/artifact"
)

// ErrUnparsable marks model output with no recoverable JSON object.
var ErrUnparsable = errors.New("unparsable model output")

// wire mirrors the JSON shape requested from providers.
type wire struct {
	Summary    string   `json:"summary"`
	Notes      string   `json:"notes"`
	KeyPoints  []string `json:"key_points"`
	Flashcards []struct {
		Front      string `json:"front"`
		Back       string `json:"back"`
		Difficulty string `json:"difficulty"`
	} `json:"flashcards"`
	Questions []struct {
		Prompt       string   `json:"prompt"`
		Choices      []string `json:"choices"`
		CorrectIndex int      `json:"correct_index"`
		Explanation  string   `json:"explanation"`
	} `json:"questions"`
}

// FromRaw parses and validates one provider response. The caller sets
// Bundle.GeneratedBy afterwards; everything else is filled here.
func FromRaw(raw string, doc *artifact.SourceDocument, opts artifact.Options) (*artifact.Bundle, error) {
	opts = opts.Normalize()

	var w wire
	if err := unmarshalModelJSON(raw, &w); err != nil {
		return nil, err
	}

	bundle := &artifact.Bundle{}
	var warnings []string

	// Regenerated sections come from one shared analysis pass, computed
	// only if something is actually missing.
	var fallback *artifact.Bundle
	analyzed := func() *artifact.Bundle {
		if fallback == nil {
			fb, err := analyze.GenerateBundle(doc, opts)
			if err != nil {
				fb = &artifact.Bundle{}
			}
			fallback = fb
		}
		return fallback
	}

	bundle.Summary = clampSummary(w.Summary, opts.MaxSummarySentences)
	if bundle.Summary == "" {
		bundle.Summary = analyzed().Summary
		warnings = append(warnings, "summary missing from model output, regenerated from text analysis")
	}

	bundle.Notes = strings.TrimSpace(w.Notes)
	if bundle.Notes == "" {
		bundle.Notes = analyzed().Notes
		warnings = append(warnings, "notes missing from model output, regenerated from text analysis")
	}

	bundle.KeyPoints = cleanKeyPoints(w.KeyPoints, opts.MaxKeyPoints)
	if len(bundle.KeyPoints) == 0 {
		bundle.KeyPoints = analyzed().KeyPoints
		warnings = append(warnings, "key points missing from model output, regenerated from text analysis")
	}

	cards, cardWarnings := cleanFlashcards(w, opts.FlashcardCount)
	warnings = append(warnings, cardWarnings...)
	if len(cards) == 0 {
		cards = analyzed().Flashcards
		warnings = append(warnings, "flashcards missing from model output, regenerated from text analysis")
	}
	bundle.Flashcards = cards

	questions, questionWarnings := cleanQuestions(w, opts.QuestionCount)
	warnings = append(warnings, questionWarnings...)
	if len(questions) == 0 {
		questions = analyzed().Questions
		warnings = append(warnings, "quiz questions missing from model output, regenerated from text analysis")
	}
	bundle.Questions = questions

	bundle.Warnings = warnings
	return bundle, nil
}

// unmarshalModelJSON strips code fences and, failing a direct parse, retries
// on the outermost {...} span.
func unmarshalModelJSON(raw string, out interface{}) error {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), out); err == nil {
			return nil
		}
	}

	return ErrUnparsable
}

// clampSummary trims the summary to at most maxSentences sentences.
func clampSummary(summary string, maxSentences int) string {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return ""
	}
	sentences := analyze.SplitSentences(summary)
	if len(sentences) <= maxSentences {
		return summary
	}
	return strings.Join(sentences[:maxSentences], " ")
}

func cleanKeyPoints(points []string, max int) []string {
	seen := make(map[string]struct{}, len(points))
	out := make([]string, 0, len(points))
	for _, p := range points {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		key := strings.ToLower(p)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
		if len(out) == max {
			break
		}
	}
	return out
}

func cleanFlashcards(w wire, max int) ([]artifact.Flashcard, []string) {
	var (
		out      []artifact.Flashcard
		warnings []string
	)
	for i, c := range w.Flashcards {
		front := strings.TrimSpace(c.Front)
		back := strings.TrimSpace(c.Back)
		if front == "" || back == "" {
			warnings = append(warnings, fmt.Sprintf("dropped flashcard %d: empty front or back", i))
			continue
		}
		out = append(out, artifact.Flashcard{
			Front:      front,
			Back:       back,
			Difficulty: normalizeDifficulty(c.Difficulty),
		})
		if len(out) == max {
			break
		}
	}
	return out, warnings
}

func normalizeDifficulty(raw string) artifact.Difficulty {
	switch artifact.Difficulty(strings.ToLower(strings.TrimSpace(raw))) {
	case artifact.DifficultyEasy:
		return artifact.DifficultyEasy
	case artifact.DifficultyHard:
		return artifact.DifficultyHard
	default:
		return artifact.DifficultyMedium
	}
}

func cleanQuestions(w wire, max int) ([]artifact.QuizQuestion, []string) {
	var (
		out      []artifact.QuizQuestion
		warnings []string
	)
	for i, q := range w.Questions {
		prompt := strings.TrimSpace(q.Prompt)
		if prompt == "" {
			warnings = append(warnings, fmt.Sprintf("dropped question %d: empty prompt", i))
			continue
		}

		choices := make([]string, 0, len(q.Choices))
		seen := make(map[string]struct{}, len(q.Choices))
		valid := true
		for _, c := range q.Choices {
			c = strings.TrimSpace(c)
			if c == "" {
				valid = false
				break
			}
			key := strings.ToLower(c)
			if _, dup := seen[key]; dup {
				valid = false
				break
			}
			seen[key] = struct{}{}
			choices = append(choices, c)
		}
		if !valid || len(choices) != 4 {
			warnings = append(warnings, fmt.Sprintf("dropped question %d: requires 4 distinct non-empty choices", i))
			continue
		}
		if q.CorrectIndex < 0 || q.CorrectIndex > 3 {
			warnings = append(warnings, fmt.Sprintf("dropped question %d: correct_index out of range", i))
			continue
		}

		out = append(out, artifact.QuizQuestion{
			Prompt:       prompt,
			Choices:      choices,
			CorrectIndex: q.CorrectIndex,
			Explanation:  strings.TrimSpace(q.Explanation),
		})
		if len(out) == max {
			break
		}
	}
	return out, warnings
}
