// Package moderation masks censored words in relayed message content.
// Matching is case-insensitive and ignores punctuation and spacing, so a
// censored word split by dots or dashes is still caught. The original
// spacing of the message is preserved in the output.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

type Moderator struct {
	matcher     *goahocorasick.Machine
	maskingRune rune
}

// NewModerator builds the Aho-Corasick automaton over the normalized word list.
func NewModerator(censoredWords []string, maskingRune rune) (*Moderator, error) {
	patterns := make([][]rune, 0, len(censoredWords))
	for _, word := range censoredWords {
		normalized, _ := normalize(word)
		if len(normalized) == 0 {
			continue
		}
		patterns = append(patterns, normalized)
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: machine, maskingRune: maskingRune}, nil
}

// Censor replaces every matched span of the original text with the masking rune.
func (m *Moderator) Censor(original string) string {
	normalized, indexes := normalize(original)
	if len(normalized) == 0 {
		return original
	}

	spans := m.matcher.MultiPatternSearch(normalized, false)
	if len(spans) == 0 {
		return original
	}

	runes := []rune(original)
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(indexes) {
			continue
		}
		// Mask everything between the first and last matched original rune,
		// including any punctuation the normalization skipped over.
		for i := indexes[start]; i <= indexes[end-1]; i++ {
			runes[i] = m.maskingRune
		}
	}
	return string(runes)
}

// normalize lowercases the input and drops punctuation, spacing and symbols,
// returning the searchable runes plus their positions in the original text.
func normalize(input string) ([]rune, []int) {
	runes := []rune(input)
	normalized := make([]rune, 0, len(runes))
	indexes := make([]int, 0, len(runes))

	for i, r := range runes {
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		normalized = append(normalized, unicode.ToLower(r))
		indexes = append(indexes, i)
	}
	return normalized, indexes
}
