package lesson

import (
	"time"

	"github.com/edumorph/core/internal/models"
	"github.com/edumorph/core/internal/modules/pipeline/artifact"
)

// GenerationOptionsDTO tunes artifact shaping for one request. Zero values
// fall back to the service defaults.
type GenerationOptionsDTO struct {
	SummarySentences int      `json:"summary_sentences"`
	KeyPoints        int      `json:"key_points"`
	FlashcardCount   int      `json:"flashcard_count"`
	QuestionCount    int      `json:"question_count"`
	TimeoutMs        int      `json:"timeout_ms"`
	ProviderOrder    []string `json:"provider_order"`
}

type IngestTextDTO struct {
	Title    string                `json:"title"`
	Subject  string                `json:"subject"`
	Text     string                `json:"text"     binding:"required"`
	Filename string                `json:"filename"`
	Options  *GenerationOptionsDTO `json:"options"`
}

type IngestLinkDTO struct {
	URL     string                `json:"url"     binding:"required,url"`
	Title   string                `json:"title"`
	Subject string                `json:"subject"`
	Options *GenerationOptionsDTO `json:"options"`
}

type flashcardResponse struct {
	ID         string `json:"id"`
	Front      string `json:"front"`
	Back       string `json:"back"`
	Difficulty string `json:"difficulty"`
}

type questionResponse struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation,omitempty"`
}

type lessonResponse struct {
	ID              string              `json:"id"`
	Title           string              `json:"title"`
	Subject         string              `json:"subject,omitempty"`
	SourceType      string              `json:"source_type"`
	SourceURL       string              `json:"source_url,omitempty"`
	Status          models.LessonStatus `json:"status"`
	FailReason      string              `json:"fail_reason,omitempty"`
	DurationSeconds float64             `json:"duration_seconds,omitempty"`
	Summary         string              `json:"summary,omitempty"`
	Notes           string              `json:"notes,omitempty"`
	KeyPoints       []string            `json:"key_points,omitempty"`
	GeneratedBy     string              `json:"generated_by,omitempty"`
	Warnings        []string            `json:"warnings,omitempty"`
	Flashcards      []flashcardResponse `json:"flashcards,omitempty"`
	Questions       []questionResponse  `json:"questions,omitempty"`
	Created         time.Time           `json:"created"`
	Modified        time.Time           `json:"modified"`
}

type ingestResponse struct {
	LessonID string              `json:"lesson_id"`
	TaskID   string              `json:"task_id,omitempty"`
	Status   models.LessonStatus `json:"status"`
}

func toLessonResponse(l *models.LessonModel, includeArtifacts bool) lessonResponse {
	resp := lessonResponse{
		ID:              l.ID,
		Title:           l.Title,
		Subject:         l.Subject,
		SourceType:      l.SourceType,
		SourceURL:       l.SourceURL,
		Status:          l.Status,
		FailReason:      l.FailReason,
		DurationSeconds: l.DurationSeconds,
		GeneratedBy:     l.GeneratedBy,
		Created:         l.CreatedAt,
		Modified:        l.UpdatedAt,
	}
	if !includeArtifacts {
		return resp
	}

	resp.Summary = l.Summary
	resp.Notes = l.Notes
	resp.KeyPoints = l.KeyPoints
	resp.Warnings = l.Warnings
	for _, f := range l.Flashcards {
		resp.Flashcards = append(resp.Flashcards, toFlashcardResponse(f))
	}
	for _, q := range l.Questions {
		resp.Questions = append(resp.Questions, toQuestionResponse(q))
	}
	return resp
}

func toFlashcardResponse(f models.FlashcardModel) flashcardResponse {
	return flashcardResponse{
		ID:         f.ID,
		Front:      f.Front,
		Back:       f.Back,
		Difficulty: f.Difficulty,
	}
}

func toQuestionResponse(q models.QuizQuestionModel) questionResponse {
	return questionResponse{
		ID:           q.ID,
		Prompt:       q.Prompt,
		Choices:      q.Choices,
		CorrectIndex: q.CorrectIndex,
		Explanation:  q.Explanation,
	}
}

// mergeOptions overlays non-zero DTO fields on the service defaults.
func mergeOptions(defaults artifact.Options, dto *GenerationOptionsDTO, subject string) artifact.Options {
	opts := defaults
	opts.Subject = subject
	if dto == nil {
		return opts.Normalize()
	}
	if dto.SummarySentences > 0 {
		opts.MaxSummarySentences = dto.SummarySentences
	}
	if dto.KeyPoints > 0 {
		opts.MaxKeyPoints = dto.KeyPoints
	}
	if dto.FlashcardCount > 0 {
		opts.FlashcardCount = dto.FlashcardCount
	}
	if dto.QuestionCount > 0 {
		opts.QuestionCount = dto.QuestionCount
	}
	if dto.TimeoutMs > 0 {
		opts.OverallTimeoutMs = dto.TimeoutMs
	}
	if len(dto.ProviderOrder) > 0 {
		opts.ProviderOrder = dto.ProviderOrder
	}
	return opts.Normalize()
}
