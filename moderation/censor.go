// Package moderation screens outgoing message content against a wordlist
// before it is persisted. Matching is Aho-Corasick over a normalized view
// of the text, so spacing tricks and common leet substitutions do not
// defeat the list.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

type Censor struct {
	matcher     *goahocorasick.Machine
	replacement rune
}

// textMapping relates the normalized runes back to positions in the
// original string, so only the offending characters get replaced.
type textMapping struct {
	normalized []rune
	origIdx    []int
}

// NewCensor builds the automaton from the normalized wordlist.
func NewCensor(words []string, replacement rune) (*Censor, error) {
	patterns := make([][]rune, len(words))
	for i, word := range words {
		patterns[i] = normalize([]rune(word)).normalized
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Censor{matcher: m, replacement: replacement}, nil
}

// Clean returns content with every listed pattern replaced, spacing and
// unmatched characters preserved.
func (c *Censor) Clean(content string) string {
	mapping := normalize([]rune(content))
	if len(mapping.normalized) == 0 {
		return content
	}

	spans := c.matcher.MultiPatternSearch(mapping.normalized, false)
	if len(spans) == 0 {
		return content
	}

	out := []rune(content)
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(mapping.origIdx) {
			continue
		}
		from := mapping.origIdx[start]
		to := mapping.origIdx[end-1] + 1
		for i := from; i < to; i++ {
			out[i] = c.replacement
		}
	}
	return string(out)
}

func normalize(input []rune) textMapping {
	mapping := textMapping{
		normalized: make([]rune, 0, len(input)),
		origIdx:    make([]int, 0, len(input)),
	}
	for i, r := range input {
		clean := unleet(r)
		if unicode.IsSpace(clean) || unicode.IsPunct(clean) {
			continue
		}
		mapping.normalized = append(mapping.normalized, unicode.ToLower(clean))
		mapping.origIdx = append(mapping.origIdx, i)
	}
	return mapping
}

// unleet maps common leet-speak characters back to their alphabet
// counterparts before matching.
func unleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	case '7':
		return 't'
	default:
		return r
	}
}
