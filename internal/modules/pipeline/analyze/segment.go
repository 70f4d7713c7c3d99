package analyze

import (
	"strings"
	"unicode"
)

// abbreviations that must not terminate a sentence even though they end
// with a period.
var protectedAbbrev = map[string]struct{}{
	"mr":     {},
	"mrs":    {},
	"ms":     {},
	"dr":     {},
	"prof":   {},
	"sr":     {},
	"jr":     {},
	"st":     {},
	"vs":     {},
	"etc":    {},
	"e.g":    {},
	"i.e":    {},
	"fig":    {},
	"eq":     {},
	"vol":    {},
	"approx": {},
}

// SplitSentences splits text on sentence-ending punctuation (. ! ?),
// protecting common abbreviations and decimal numbers from false splits.
// Each sentence is trimmed; empty results are discarded.
func SplitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	var cur strings.Builder

	flush := func() {
		s := strings.TrimSpace(cur.String())
		cur.Reset()
		if s != "" {
			sentences = append(sentences, s)
		}
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		cur.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if r == '.' {
			// Decimal number: digit on both sides of the period.
			if i > 0 && i+1 < len(runes) && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
				continue
			}
			if isAbbreviationAt(runes, i) {
				continue
			}
		}
		// Consume trailing closers and repeated terminators ("?!", '…"').
		for i+1 < len(runes) && isTerminatorTail(runes[i+1]) {
			i++
			cur.WriteRune(runes[i])
		}
		flush()
	}
	flush()
	return sentences
}

func isTerminatorTail(r rune) bool {
	switch r {
	case '.', '!', '?', ')', ']', '"', '\'', '”', '’':
		return true
	}
	return false
}

// isAbbreviationAt reports whether the period at index i ends a protected
// abbreviation.
func isAbbreviationAt(runes []rune, i int) bool {
	start := i
	for start > 0 {
		prev := runes[start-1]
		if unicode.IsLetter(prev) || prev == '.' {
			start--
			continue
		}
		break
	}
	if start == i {
		return false
	}
	word := strings.ToLower(string(runes[start:i]))
	word = strings.TrimSuffix(word, ".")
	if _, ok := protectedAbbrev[word]; ok {
		return true
	}
	// Single-letter initials ("J. K. Rowling").
	return len([]rune(word)) == 1
}
