package analyze

import (
	"fmt"
	"strings"

	"github.com/edumorph/core/internal/modules/pipeline/artifact"
)

// genericDistractors pad a question when the document does not yield three
// distinct wrong answers. They are phrased to be plausible but refuted by
// any real statement from the material.
var genericDistractors = []string{
	"This topic is mentioned only in passing and never explained.",
	"The material explicitly states the opposite of this claim.",
	"This concept is unrelated to the subject of the material.",
	"The material leaves this question entirely unanswered.",
	"This statement contradicts the main argument of the material.",
	"The material attributes this idea to an unnamed critic.",
}

// QuizQuestions builds up to p four-choice questions from the top
// keyphrases. The correct choice is the best sentence containing the
// phrase; distractors come from sentences backing other keyphrases, with
// case-insensitive near-duplicates reselected and generic statements used
// as a last resort. Returned warnings note any generic padding.
func QuizQuestions(phrases []KeyPhrase, ranked []RankedSentence, p int) ([]artifact.QuizQuestion, []string) {
	if p > len(phrases) {
		p = len(phrases)
	}

	var warnings []string
	questions := make([]artifact.QuizQuestion, 0, p)
	for i := 0; i < p; i++ {
		phrase := phrases[i]
		correctSentence, ok := bestSentenceFor(phrase.Text, ranked)
		if !ok {
			continue
		}
		correct := correctSentence.Text

		distractors, padded := pickDistractors(correct, i, phrases, ranked)
		if len(distractors) < 3 {
			continue
		}
		if padded {
			warnings = append(warnings, fmt.Sprintf(
				"question about %q padded with generic distractors", phrase.Text))
		}

		// Deterministic slot for the correct choice so it is not always first.
		correctIndex := len(questions) % 4
		choices := make([]string, 0, 4)
		choices = append(choices, distractors...)
		choices = append(choices[:correctIndex],
			append([]string{correct}, choices[correctIndex:]...)...)

		questions = append(questions, artifact.QuizQuestion{
			Prompt:       fmt.Sprintf("Which statement about %q is supported by the material?", phrase.Text),
			Choices:      choices,
			CorrectIndex: correctIndex,
			Explanation:  fmt.Sprintf("The material states: %s", correct),
		})
	}
	return questions, warnings
}

// pickDistractors gathers three wrong choices for a question. A candidate is
// rejected when it is a case-insensitive substring duplicate of the correct
// answer or of an already chosen distractor.
func pickDistractors(correct string, phraseIdx int, phrases []KeyPhrase, ranked []RankedSentence) ([]string, bool) {
	chosen := make([]string, 0, 3)
	for j := range phrases {
		if len(chosen) == 3 {
			break
		}
		if j == phraseIdx {
			continue
		}
		candidate, ok := bestSentenceFor(phrases[j].Text, ranked)
		if !ok {
			continue
		}
		if isNearDuplicate(candidate.Text, correct) || anyNearDuplicate(candidate.Text, chosen) {
			continue
		}
		chosen = append(chosen, candidate.Text)
	}

	padded := false
	for _, generic := range genericDistractors {
		if len(chosen) == 3 {
			break
		}
		if isNearDuplicate(generic, correct) || anyNearDuplicate(generic, chosen) {
			continue
		}
		chosen = append(chosen, generic)
		padded = true
	}
	return chosen, padded
}

// isNearDuplicate reports whether one string contains the other,
// case-insensitively.
func isNearDuplicate(a, b string) bool {
	la := strings.ToLower(strings.TrimSpace(a))
	lb := strings.ToLower(strings.TrimSpace(b))
	if la == "" || lb == "" {
		return true
	}
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}

func anyNearDuplicate(candidate string, chosen []string) bool {
	for _, c := range chosen {
		if isNearDuplicate(candidate, c) {
			return true
		}
	}
	return false
}
