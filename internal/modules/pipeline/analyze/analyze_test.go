package analyze

import (
	"reflect"
	"strings"
	"testing"

	"github.com/edumorph/core/internal/modules/pipeline/artifact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "plain sentences",
			text: "First sentence. Second sentence! Third one?",
			want: []string{"First sentence.", "Second sentence!", "Third one?"},
		},
		{
			name: "abbreviation is not a boundary",
			text: "Dr. Smith teaches biology. Students like the course.",
			want: []string{"Dr. Smith teaches biology.", "Students like the course."},
		},
		{
			name: "decimal numbers survive",
			text: "The value is 3.14 exactly. Remember it.",
			want: []string{"The value is 3.14 exactly.", "Remember it."},
		},
		{
			name: "initials survive",
			text: "J. K. Rowling wrote novels. They sold well.",
			want: []string{"J. K. Rowling wrote novels.", "They sold well."},
		},
		{
			name: "trailing text without terminator",
			text: "Complete sentence. trailing fragment",
			want: []string{"Complete sentence.", "trailing fragment"},
		},
		{
			name: "empty input",
			text: "   ",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSentences(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitSentences() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScoreKeyPhrasesPositionDecay(t *testing.T) {
	// "photosynthesis" appears twice but only late; "energy" appears twice
	// starting in the first sentence, so it must outrank it.
	text := "Energy flows through ecosystems. Energy transfer is lossy. " +
		"Photosynthesis captures light. Photosynthesis powers plants."
	phrases := ScoreKeyPhrases(SplitSentences(text), 0)
	require.NotEmpty(t, phrases)

	pos := map[string]int{}
	for i, p := range phrases {
		pos[p.Text] = i
	}
	assert.Less(t, pos["energy"], pos["photosynthesis"],
		"earlier-appearing equal-frequency term must rank higher")
}

func TestRankSentencesLengthNormalization(t *testing.T) {
	sentences := []string{
		"Mitochondria produce energy.",
		"Mitochondria produce energy alongside various other unrelated organelles structures compartments vesicles membranes.",
	}
	phrases := ScoreKeyPhrases(sentences, 0)
	ranked := RankSentences(sentences, phrases)
	require.Len(t, ranked, 2)
	assert.Equal(t, 0, ranked[0].Index,
		"short focused sentence must outrank padded long sentence")
}

func TestKeyPointsPreserveDocumentOrder(t *testing.T) {
	text := "Cells are the unit of life. Water is abundant. " +
		"Cells divide by mitosis. The sky appears blue. Cells contain DNA."
	sentences := SplitSentences(text)
	phrases := ScoreKeyPhrases(sentences, 0)
	ranked := RankSentences(sentences, phrases)

	points := KeyPoints(ranked, nil, 3)
	require.Len(t, points, 3)

	// Whatever was selected must appear in original document order.
	lastIdx := -1
	for _, p := range points {
		found := -1
		for i, s := range sentences {
			if strings.HasPrefix(p, s) || strings.HasPrefix(s, strings.TrimSuffix(p, "…")) {
				found = i
				break
			}
		}
		require.GreaterOrEqual(t, found, 0, "key point %q not traceable to a sentence", p)
		assert.Greater(t, found, lastIdx, "key points out of document order")
		lastIdx = found
	}
}

func TestGenerateBundleDeterministic(t *testing.T) {
	doc := &artifact.SourceDocument{
		RawText: "Photosynthesis converts light energy into chemical energy. " +
			"Chlorophyll absorbs sunlight in the leaves. " +
			"Plants release oxygen during photosynthesis. " +
			"Glucose stores the captured energy for later use. " +
			"Respiration releases that energy inside cells.",
		SourceType: artifact.SourceText,
	}

	first, err := GenerateBundle(doc, artifact.Options{})
	require.NoError(t, err)
	second, err := GenerateBundle(doc, artifact.Options{})
	require.NoError(t, err)
	assert.Equal(t, first, second, "identical input must yield identical bundles")
}

func TestGenerateBundleEmptyInput(t *testing.T) {
	_, err := GenerateBundle(&artifact.SourceDocument{RawText: "  \n "}, artifact.Options{})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestGenerateBundleQuizInvariants(t *testing.T) {
	doc := &artifact.SourceDocument{
		RawText: "Gravity pulls objects toward the earth. " +
			"Friction opposes the motion of sliding surfaces. " +
			"Inertia keeps moving objects in motion. " +
			"Acceleration measures the change in velocity. " +
			"Momentum equals mass times velocity. " +
			"Forces are measured in newtons.",
		SourceType: artifact.SourceText,
	}
	bundle, err := GenerateBundle(doc, artifact.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, bundle.Questions)

	for qi, q := range bundle.Questions {
		require.Len(t, q.Choices, 4, "question %d", qi)
		require.GreaterOrEqual(t, q.CorrectIndex, 0)
		require.Less(t, q.CorrectIndex, 4)

		seen := map[string]struct{}{}
		for _, c := range q.Choices {
			key := strings.ToLower(strings.TrimSpace(c))
			_, dup := seen[key]
			require.False(t, dup, "duplicate choice %q in question %d", c, qi)
			seen[key] = struct{}{}
		}
		// The correct choice is a sentence from the document.
		assert.Contains(t, doc.RawText, q.Choices[q.CorrectIndex])
	}
}

func TestGenerateBundleShortDocumentScenario(t *testing.T) {
	doc := &artifact.SourceDocument{
		RawText:    "Paris is the capital of France. It is known for the Eiffel Tower.",
		SourceType: artifact.SourceText,
	}
	bundle, err := GenerateBundle(doc, artifact.Options{})
	require.NoError(t, err)

	assert.Equal(t, artifact.ByFallback, bundle.GeneratedBy)
	assert.Contains(t, bundle.Summary, "Paris is the capital of France.")
	assert.Contains(t, bundle.Summary, "Eiffel Tower")

	require.NotEmpty(t, bundle.Flashcards)
	referenced := false
	for _, card := range bundle.Flashcards {
		front := strings.ToLower(card.Front)
		if strings.Contains(front, "paris") || strings.Contains(front, "france") {
			referenced = true
		}
		assert.NotEmpty(t, card.Back)
	}
	assert.True(t, referenced, "no flashcard front references Paris or France")

	require.NotEmpty(t, bundle.Questions)
	q := bundle.Questions[0]
	require.Len(t, q.Choices, 4)
	assert.Contains(t, doc.RawText, q.Choices[q.CorrectIndex])
	// Only two source sentences exist, so generic padding must kick in.
	assert.NotEmpty(t, bundle.Warnings)
}

func TestFlashcardDifficultyTertiles(t *testing.T) {
	phrases := []KeyPhrase{
		{Text: "alpha", Score: 9}, {Text: "beta", Score: 8}, {Text: "gamma", Score: 7},
		{Text: "delta", Score: 6}, {Text: "epsilon", Score: 5}, {Text: "zeta", Score: 4},
	}
	sentences := []string{
		"Alpha starts the series.", "Beta follows alpha closely.",
		"Gamma radiates strongly.", "Delta changes everything.",
		"Epsilon is tiny.", "Zeta ends the series.",
	}
	ranked := RankSentences(sentences, phrases)
	cards := Flashcards(phrases, ranked, 6)
	require.Len(t, cards, 6)

	assert.Equal(t, artifact.DifficultyHard, cards[0].Difficulty)
	assert.Equal(t, artifact.DifficultyHard, cards[1].Difficulty)
	assert.Equal(t, artifact.DifficultyMedium, cards[2].Difficulty)
	assert.Equal(t, artifact.DifficultyMedium, cards[3].Difficulty)
	assert.Equal(t, artifact.DifficultyEasy, cards[4].Difficulty)
	assert.Equal(t, artifact.DifficultyEasy, cards[5].Difficulty)
}
