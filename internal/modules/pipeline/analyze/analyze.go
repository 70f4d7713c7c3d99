// Package analyze implements the deterministic text analysis routines used
// both to build provider prompts and to generate the complete artifact
// bundle when no AI provider is available. Every function here is a pure
// function of its input: no network, no randomness, no shared state.
package analyze

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/edumorph/core/internal/modules/pipeline/artifact"
)

// ErrEmptyInput is returned when the input text contains no usable content.
var ErrEmptyInput = errors.New("input text is empty")

// KeyPhrase is a scored candidate term. Position is the 0-based sentence
// index of its first occurrence, used for tie-breaking.
type KeyPhrase struct {
	Text     string
	Score    float64
	Position int

	firstToken int // document-wide token ordinal, secondary tie-break
}

// RankedSentence pairs a sentence with its relevance score. Index preserves
// the original document order so selections can be re-sorted to read
// naturally.
type RankedSentence struct {
	Text  string
	Score float64
	Index int
}

const (
	positionDecay    = 0.1
	minTermLength    = 3
	keyPointMaxRunes = 160
	clozeMaxRunes    = 220
)

// Tokenize lowercases a sentence and splits it into candidate terms,
// excluding stopwords, numbers and very short tokens.
func Tokenize(sentence string) []string {
	fields := strings.FieldsFunc(strings.ToLower(sentence), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if len([]rune(f)) < minTermLength || isStopword(f) {
			continue
		}
		hasLetter := false
		for _, r := range f {
			if unicode.IsLetter(r) {
				hasLetter = true
				break
			}
		}
		if !hasLetter {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

// ScoreKeyPhrases scores candidate terms by frequency weighted with an
// inverse position decay: occurrences in earlier sentences contribute more,
// favoring terms central to the document's opening framing. Ties are broken
// by first occurrence. limit <= 0 returns all phrases.
func ScoreKeyPhrases(sentences []string, limit int) []KeyPhrase {
	type stat struct {
		score      float64
		position   int
		firstToken int
	}
	stats := make(map[string]*stat)
	ordinal := 0

	for idx, sentence := range sentences {
		weight := 1.0 / (1.0 + positionDecay*float64(idx))
		for _, term := range Tokenize(sentence) {
			st, ok := stats[term]
			if !ok {
				st = &stat{position: idx, firstToken: ordinal}
				stats[term] = st
			}
			st.score += weight
			ordinal++
		}
	}

	phrases := make([]KeyPhrase, 0, len(stats))
	for term, st := range stats {
		phrases = append(phrases, KeyPhrase{
			Text:       term,
			Score:      st.score,
			Position:   st.position,
			firstToken: st.firstToken,
		})
	}
	sort.Slice(phrases, func(i, j int) bool {
		if phrases[i].Score != phrases[j].Score {
			return phrases[i].Score > phrases[j].Score
		}
		if phrases[i].Position != phrases[j].Position {
			return phrases[i].Position < phrases[j].Position
		}
		return phrases[i].firstToken < phrases[j].firstToken
	})
	if limit > 0 && len(phrases) > limit {
		phrases = phrases[:limit]
	}
	return phrases
}

// RankSentences scores each sentence by the sum of keyphrase scores for the
// terms it contains, normalized by sentence length so long sentences gain no
// free advantage. The result is ordered by score descending; Index preserves
// document order for later re-sorting.
func RankSentences(sentences []string, phrases []KeyPhrase) []RankedSentence {
	scoreByTerm := make(map[string]float64, len(phrases))
	for _, p := range phrases {
		scoreByTerm[p.Text] = p.Score
	}

	ranked := make([]RankedSentence, 0, len(sentences))
	for idx, sentence := range sentences {
		terms := Tokenize(sentence)
		var sum float64
		for _, t := range terms {
			sum += scoreByTerm[t]
		}
		score := 0.0
		if len(terms) > 0 {
			score = sum / float64(len(terms))
		}
		ranked = append(ranked, RankedSentence{Text: sentence, Score: score, Index: idx})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Index < ranked[j].Index
	})
	return ranked
}

// byIndex re-sorts a selection into original document order.
func byIndex(sel []RankedSentence) []RankedSentence {
	out := make([]RankedSentence, len(sel))
	copy(out, sel)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Summary joins the top-k ranked sentences in document order. Documents
// shorter than two sentences are returned verbatim.
func Summary(text string, sentences []string, ranked []RankedSentence, k int) string {
	if len(sentences) < 2 {
		return strings.TrimSpace(text)
	}
	if k > len(ranked) {
		k = len(ranked)
	}
	parts := byIndex(ranked[:k])
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, p.Text)
	}
	return strings.Join(out, " ")
}

// KeyPoints selects the top-n ranked sentences as short bullet strings in
// document order, preferring sentences not already used by the summary.
func KeyPoints(ranked []RankedSentence, summarySel []RankedSentence, n int) []string {
	used := make(map[int]struct{}, len(summarySel))
	for _, s := range summarySel {
		used[s.Index] = struct{}{}
	}

	var sel []RankedSentence
	for _, r := range ranked {
		if len(sel) >= n {
			break
		}
		if _, dup := used[r.Index]; dup {
			continue
		}
		sel = append(sel, r)
	}
	// Not enough distinct sentences: fall back to reusing top-ranked ones.
	for _, r := range ranked {
		if len(sel) >= n {
			break
		}
		if containsIndex(sel, r.Index) {
			continue
		}
		sel = append(sel, r)
	}

	points := make([]string, 0, len(sel))
	for _, s := range byIndex(sel) {
		points = append(points, truncateRunes(s.Text, keyPointMaxRunes))
	}
	return points
}

func containsIndex(sel []RankedSentence, idx int) bool {
	for _, s := range sel {
		if s.Index == idx {
			return true
		}
	}
	return false
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}

// bestSentenceFor returns the highest-scoring sentence containing the term,
// preferring earlier sentences on ties. ok is false when no sentence
// contains the term.
func bestSentenceFor(term string, ranked []RankedSentence) (RankedSentence, bool) {
	for _, r := range ranked {
		for _, t := range Tokenize(r.Text) {
			if t == term {
				return r, true
			}
		}
	}
	return RankedSentence{}, false
}

// Flashcards builds up to m cards from the top keyphrases. The back of each
// card is the best sentence containing the phrase; difficulty follows the
// phrase score tertile (top third hard, middle medium, rest easy).
func Flashcards(phrases []KeyPhrase, ranked []RankedSentence, m int) []artifact.Flashcard {
	if m > len(phrases) {
		m = len(phrases)
	}
	cards := make([]artifact.Flashcard, 0, m)
	for i := 0; i < m; i++ {
		phrase := phrases[i]
		back, ok := bestSentenceFor(phrase.Text, ranked)
		if !ok {
			continue
		}
		cards = append(cards, artifact.Flashcard{
			Front:      flashcardFront(phrase.Text, back.Text),
			Back:       back.Text,
			Difficulty: difficultyForRank(i, m),
		})
	}
	return cards
}

// flashcardFront renders a cloze prompt when the supporting sentence is
// short enough to read as one, otherwise a direct "what is X" question.
func flashcardFront(term, sentence string) string {
	if len([]rune(sentence)) <= clozeMaxRunes {
		if cloze, ok := clozeSentence(sentence, term); ok {
			return cloze
		}
	}
	return fmt.Sprintf("What is %q?", term)
}

// clozeSentence blanks the first case-insensitive occurrence of term.
func clozeSentence(sentence, term string) (string, bool) {
	lower := strings.ToLower(sentence)
	idx := strings.Index(lower, strings.ToLower(term))
	if idx < 0 {
		return "", false
	}
	return sentence[:idx] + "____" + sentence[idx+len(term):], true
}

func difficultyForRank(i, total int) artifact.Difficulty {
	if total <= 0 {
		return artifact.DifficultyEasy
	}
	switch {
	case i*3 < total:
		return artifact.DifficultyHard
	case i*3 < total*2:
		return artifact.DifficultyMedium
	default:
		return artifact.DifficultyEasy
	}
}
