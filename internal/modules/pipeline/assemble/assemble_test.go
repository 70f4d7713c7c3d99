package assemble

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumorph/core/internal/modules/pipeline/artifact"
)

const validRaw = `{
	"summary": "Cells are the basic unit of life. They contain organelles.",
	"notes": "Cell Biology\n\nAll living things are made of cells.",
	"key_points": ["Cells are the basic unit of life.", "Organelles divide labor inside the cell."],
	"flashcards": [
		{"front": "What is a cell?", "back": "The basic unit of life.", "difficulty": "easy"},
		{"front": "What is an organelle?", "back": "A specialized structure inside a cell.", "difficulty": "HARD"}
	],
	"questions": [
		{
			"prompt": "What is the basic unit of life?",
			"choices": ["The cell", "The atom", "The molecule", "The organ"],
			"correct_index": 0,
			"explanation": "Cell theory states all life is made of cells."
		}
	]
}`

func testDoc() *artifact.SourceDocument {
	return &artifact.SourceDocument{
		RawText: "Cells are the basic unit of life. Organelles divide labor inside the cell. " +
			"The nucleus stores genetic information. Mitochondria produce chemical energy.",
		SourceType: artifact.SourceText,
		Title:      "Cell Biology",
	}
}

func TestFromRawValid(t *testing.T) {
	b, err := FromRaw(validRaw, testDoc(), artifact.Options{})
	require.NoError(t, err)

	assert.Equal(t, "Cells are the basic unit of life. They contain organelles.", b.Summary)
	assert.Len(t, b.KeyPoints, 2)
	require.Len(t, b.Flashcards, 2)
	assert.Equal(t, artifact.DifficultyEasy, b.Flashcards[0].Difficulty)
	assert.Equal(t, artifact.DifficultyHard, b.Flashcards[1].Difficulty)
	require.Len(t, b.Questions, 1)
	assert.Equal(t, 0, b.Questions[0].CorrectIndex)
	assert.Empty(t, b.Warnings)
}

func TestFromRawStripsCodeFences(t *testing.T) {
	fenced := "```json\n" + validRaw + "\n```"
	b, err := FromRaw(fenced, testDoc(), artifact.Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, b.Summary)
}

func TestFromRawRecoversEmbeddedObject(t *testing.T) {
	chatty := "Sure! Here is your study material:\n" + validRaw + "\nHope that helps!"
	b, err := FromRaw(chatty, testDoc(), artifact.Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, b.Summary)
}

func TestFromRawUnparsable(t *testing.T) {
	_, err := FromRaw("I cannot help with that.", testDoc(), artifact.Options{})
	assert.ErrorIs(t, err, ErrUnparsable)
}

func TestFromRawRegeneratesMissingSections(t *testing.T) {
	raw := `{"summary": "Cells are the basic unit of life."}`
	b, err := FromRaw(raw, testDoc(), artifact.Options{})
	require.NoError(t, err)

	assert.Equal(t, "Cells are the basic unit of life.", b.Summary)
	assert.NotEmpty(t, b.Notes)
	assert.NotEmpty(t, b.KeyPoints)
	assert.NotEmpty(t, b.Flashcards)
	assert.NotEmpty(t, b.Questions)

	joined := strings.Join(b.Warnings, "\n")
	assert.Contains(t, joined, "key points missing")
	assert.Contains(t, joined, "flashcards missing")
	assert.Contains(t, joined, "quiz questions missing")
}

func TestFromRawDropsInvalidItems(t *testing.T) {
	raw := `{
		"summary": "s.",
		"notes": "n",
		"key_points": ["a", "", "a", "b"],
		"flashcards": [
			{"front": "", "back": "x"},
			{"front": "ok", "back": "fine", "difficulty": "impossible"}
		],
		"questions": [
			{"prompt": "three choices?", "choices": ["a", "b", "c"], "correct_index": 0},
			{"prompt": "dup choices?", "choices": ["a", "A", "b", "c"], "correct_index": 0},
			{"prompt": "bad index?", "choices": ["a", "b", "c", "d"], "correct_index": 4},
			{"prompt": "good?", "choices": ["a", "b", "c", "d"], "correct_index": 2, "explanation": "e"}
		]
	}`
	b, err := FromRaw(raw, testDoc(), artifact.Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, b.KeyPoints)

	require.Len(t, b.Flashcards, 1)
	assert.Equal(t, artifact.DifficultyMedium, b.Flashcards[0].Difficulty)

	require.Len(t, b.Questions, 1)
	assert.Equal(t, "good?", b.Questions[0].Prompt)
	assert.Equal(t, 2, b.Questions[0].CorrectIndex)

	joined := strings.Join(b.Warnings, "\n")
	assert.Contains(t, joined, "dropped flashcard 0")
	assert.Contains(t, joined, "dropped question 0")
	assert.Contains(t, joined, "dropped question 1")
	assert.Contains(t, joined, "dropped question 2")
}

func TestFromRawClampsSummaryAndCounts(t *testing.T) {
	raw := `{
		"summary": "One. Two. Three. Four. Five.",
		"notes": "n",
		"key_points": ["p1", "p2", "p3", "p4", "p5", "p6", "p7"],
		"flashcards": [],
		"questions": []
	}`
	b, err := FromRaw(raw, testDoc(), artifact.Options{MaxSummarySentences: 2, MaxKeyPoints: 3})
	require.NoError(t, err)
	assert.Equal(t, "One. Two.", b.Summary)
	assert.Equal(t, []string{"p1", "p2", "p3"}, b.KeyPoints)
}
