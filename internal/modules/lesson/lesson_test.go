package lesson

import (
	"errors"
	"testing"
	"time"

	"github.com/edumorph/core/internal/models"
	"github.com/edumorph/core/internal/modules/pipeline"
	"github.com/edumorph/core/internal/modules/pipeline/artifact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHashStable(t *testing.T) {
	opts := artifact.Options{Subject: "Biology", FlashcardCount: 8}.Normalize()

	a := contentHash(artifact.SourceText, []byte("the cell is the basic unit of life"), opts)
	b := contentHash(artifact.SourceText, []byte("the cell is the basic unit of life"), opts)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestContentHashDiverges(t *testing.T) {
	opts := artifact.Options{}.Normalize()
	base := contentHash(artifact.SourceText, []byte("content"), opts)

	assert.NotEqual(t, base, contentHash(artifact.SourcePDF, []byte("content"), opts))
	assert.NotEqual(t, base, contentHash(artifact.SourceText, []byte("other"), opts))

	changed := opts
	changed.FlashcardCount = 12
	assert.NotEqual(t, base, contentHash(artifact.SourceText, []byte("content"), changed))
}

func TestContentHashSensitiveToProviderOrder(t *testing.T) {
	a := artifact.Options{ProviderOrder: []string{"openai", "gemini"}}.Normalize()
	b := artifact.Options{ProviderOrder: []string{"gemini", "openai"}}.Normalize()

	assert.NotEqual(t,
		contentHash(artifact.SourceText, []byte("x"), a),
		contentHash(artifact.SourceText, []byte("x"), b),
	)
	assert.Equal(t,
		contentHash(artifact.SourceText, []byte("x"), a),
		contentHash(artifact.SourceText, []byte("x"), a),
	)
}

func TestMergeOptionsDefaults(t *testing.T) {
	defaults := artifact.Options{}.Normalize()

	opts := mergeOptions(defaults, nil, "History")
	assert.Equal(t, "History", opts.Subject)
	assert.Equal(t, artifact.DefaultSummarySentences, opts.MaxSummarySentences)
	assert.Equal(t, artifact.DefaultFlashcardCount, opts.FlashcardCount)
}

func TestMergeOptionsOverlay(t *testing.T) {
	defaults := artifact.Options{}.Normalize()

	opts := mergeOptions(defaults, &GenerationOptionsDTO{
		FlashcardCount: 12,
		QuestionCount:  3,
		TimeoutMs:      45_000,
		ProviderOrder:  []string{"anthropic"},
	}, "math")

	assert.Equal(t, 12, opts.FlashcardCount)
	assert.Equal(t, 3, opts.QuestionCount)
	assert.Equal(t, 45_000, opts.OverallTimeoutMs)
	assert.Equal(t, []string{"anthropic"}, opts.ProviderOrder)
	assert.Equal(t, artifact.DefaultKeyPoints, opts.MaxKeyPoints)
}

func TestDetectSourceType(t *testing.T) {
	cases := []struct {
		filename string
		want     artifact.SourceType
		ok       bool
	}{
		{"slides.pdf", artifact.SourcePDF, true},
		{"NOTES.TXT", artifact.SourceText, true},
		{"readme.md", artifact.SourceText, true},
		{"lecture.mp3", artifact.SourceAudio, true},
		{"lecture.M4A", artifact.SourceAudio, true},
		{"seminar.mp4", artifact.SourceVideo, true},
		{"recording.webm", artifact.SourceVideo, true},
		{"archive.zip", "", false},
		{"noextension", "", false},
	}

	for _, tc := range cases {
		got, ok := detectSourceType(tc.filename)
		assert.Equal(t, tc.ok, ok, tc.filename)
		assert.Equal(t, tc.want, got, tc.filename)
	}
}

func TestParseOptionsField(t *testing.T) {
	dto, err := parseOptionsField(`{"flashcard_count": 10, "provider_order": ["gemini"]}`)
	require.NoError(t, err)
	require.NotNil(t, dto)
	assert.Equal(t, 10, dto.FlashcardCount)
	assert.Equal(t, []string{"gemini"}, dto.ProviderOrder)

	dto, err = parseOptionsField("  ")
	require.NoError(t, err)
	assert.Nil(t, dto)

	_, err = parseOptionsField("{not json")
	assert.Error(t, err)
}

func TestFlashcardModelsPreserveOrder(t *testing.T) {
	cards := flashcardModels("lesson-1", []artifact.Flashcard{
		{Front: "What is mitosis?", Back: "Cell division", Difficulty: artifact.DifficultyEasy},
		{Front: "Define osmosis", Back: "Diffusion of water", Difficulty: artifact.DifficultyMedium},
	})

	require.Len(t, cards, 2)
	assert.Equal(t, "lesson-1", cards[0].LessonID)
	assert.Equal(t, 0, cards[0].Position)
	assert.Equal(t, 1, cards[1].Position)
	assert.Equal(t, "easy", cards[0].Difficulty)
}

func TestQuestionModelsPreserveOrder(t *testing.T) {
	questions := questionModels("lesson-1", []artifact.QuizQuestion{
		{Prompt: "Which organelle produces ATP?", Choices: []string{"Mitochondria", "Nucleus", "Ribosome", "Golgi"}, CorrectIndex: 0},
		{Prompt: "Where is DNA stored?", Choices: []string{"Cytoplasm", "Nucleus", "Membrane", "Vacuole"}, CorrectIndex: 1, Explanation: "DNA lives in the nucleus."},
	})

	require.Len(t, questions, 2)
	assert.Equal(t, 0, questions[0].Position)
	assert.Equal(t, 1, questions[1].Position)
	assert.Equal(t, []string{"Cytoplasm", "Nucleus", "Membrane", "Vacuole"}, []string(questions[1].Choices))
	assert.Equal(t, "DNA lives in the nucleus.", questions[1].Explanation)
}

func TestToLessonResponse(t *testing.T) {
	now := time.Now()
	l := &models.LessonModel{
		Base:        models.Base{ID: "l1", CreatedAt: now, UpdatedAt: now},
		Title:       "Photosynthesis",
		Subject:     "Biology",
		SourceType:  "text",
		Status:      models.LessonStatusReady,
		Summary:     "Plants convert light into chemical energy.",
		KeyPoints:   models.StringArray{"chlorophyll", "glucose"},
		GeneratedBy: "fallback",
		Warnings:    models.StringArray{"generated without an AI provider"},
		Flashcards: []models.FlashcardModel{
			{Base: models.Base{ID: "f1"}, Front: "Input gas?", Back: "CO2", Difficulty: "easy"},
		},
		Questions: []models.QuizQuestionModel{
			{Base: models.Base{ID: "q1"}, Prompt: "Output gas?", Choices: models.StringArray{"O2", "N2", "CO2", "H2"}, CorrectIndex: 0},
		},
	}

	summary := toLessonResponse(l, false)
	assert.Equal(t, "l1", summary.ID)
	assert.Empty(t, summary.Summary)
	assert.Empty(t, summary.Flashcards)

	full := toLessonResponse(l, true)
	assert.Equal(t, "Plants convert light into chemical energy.", full.Summary)
	assert.Equal(t, []string{"chlorophyll", "glucose"}, full.KeyPoints)
	require.Len(t, full.Flashcards, 1)
	assert.Equal(t, "CO2", full.Flashcards[0].Back)
	require.Len(t, full.Questions, 1)
	assert.Equal(t, 0, full.Questions[0].CorrectIndex)
	assert.Equal(t, []string{"generated without an AI provider"}, full.Warnings)
}

func TestFailReason(t *testing.T) {
	assert.Equal(t, "no usable text could be extracted from the source",
		failReason(&pipeline.Error{Kind: pipeline.ErrKindEmptyContent, Err: errors.New("empty")}))
	assert.Equal(t, "the source format is not supported",
		failReason(&pipeline.Error{Kind: pipeline.ErrKindUnsupportedFormat, Err: errors.New("bad format")}))
	assert.Equal(t, "boom", failReason(errors.New("boom")))
}
