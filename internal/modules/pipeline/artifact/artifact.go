// Package artifact defines the learning artifact shapes produced by the
// generation pipeline. An ArtifactBundle is the sole result of one
// generation request regardless of which path (AI provider or deterministic
// fallback) produced it.
package artifact

// SourceType identifies the kind of input a document was extracted from.
type SourceType string

const (
	SourceText  SourceType = "text"
	SourcePDF   SourceType = "pdf"
	SourceAudio SourceType = "audio"
	SourceVideo SourceType = "video"
	SourceLink  SourceType = "link"
)

// GeneratedBy identifies which generation path produced a bundle.
type GeneratedBy string

const (
	ByPrimaryProvider   GeneratedBy = "primary_provider"
	BySecondaryProvider GeneratedBy = "secondary_provider"
	ByTertiaryProvider  GeneratedBy = "tertiary_provider"
	ByFallback          GeneratedBy = "fallback"
)

// Difficulty grades a flashcard.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// SourceDocument is the normalized plain-text form of an input payload.
// It is immutable once produced by the extractor.
type SourceDocument struct {
	RawText         string     `json:"raw_text"`
	SourceType      SourceType `json:"source_type"`
	Title           string     `json:"title,omitempty"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
}

// Flashcard is one front/back study card.
type Flashcard struct {
	Front      string     `json:"front"`
	Back       string     `json:"back"`
	Difficulty Difficulty `json:"difficulty"`
}

// QuizQuestion is a single four-choice question.
// Choices are pairwise distinct (case-insensitive) and CorrectIndex always
// indexes the correct choice.
type QuizQuestion struct {
	Prompt       string   `json:"prompt"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation,omitempty"`
}

// Bundle is the complete set of generated learning materials for one
// document. Warnings carry non-fatal notes (truncation, dropped items,
// padded distractors) so callers can surface a "basic mode" notice.
type Bundle struct {
	Summary     string         `json:"summary"`
	Notes       string         `json:"notes"`
	KeyPoints   []string       `json:"key_points"`
	Flashcards  []Flashcard    `json:"flashcards"`
	Questions   []QuizQuestion `json:"questions"`
	GeneratedBy GeneratedBy    `json:"generated_by"`
	Warnings    []string       `json:"warnings"`
}

// Options controls artifact shaping for one generation request.
// Zero values are replaced with defaults by Normalize.
type Options struct {
	Subject             string   `json:"subject,omitempty"`
	MaxSummarySentences int      `json:"max_summary_sentences"`
	MaxKeyPoints        int      `json:"max_key_points"`
	FlashcardCount      int      `json:"flashcard_count"`
	QuestionCount       int      `json:"question_count"`
	OverallTimeoutMs    int      `json:"overall_timeout_ms"`
	ProviderOrder       []string `json:"provider_order,omitempty"`
}

const (
	DefaultSummarySentences = 3
	DefaultKeyPoints        = 5
	DefaultFlashcardCount   = 8
	DefaultQuestionCount    = 5
	DefaultOverallTimeoutMs = 90_000
)

// Normalize fills zero option fields with defaults and clamps negatives.
func (o Options) Normalize() Options {
	if o.MaxSummarySentences <= 0 {
		o.MaxSummarySentences = DefaultSummarySentences
	}
	if o.MaxKeyPoints <= 0 {
		o.MaxKeyPoints = DefaultKeyPoints
	}
	if o.FlashcardCount <= 0 {
		o.FlashcardCount = DefaultFlashcardCount
	}
	if o.QuestionCount <= 0 {
		o.QuestionCount = DefaultQuestionCount
	}
	if o.OverallTimeoutMs <= 0 {
		o.OverallTimeoutMs = DefaultOverallTimeoutMs
	}
	return o
}
