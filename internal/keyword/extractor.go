package keyword

import (
	"regexp"
	"strings"
	"unicode"
)

// TermExtractor is a rule-based keyword extractor: it tokenizes on letters,
// digits, and the symbol runs common in technical names, filters stopwords,
// and preserves compound technical terms by joining adjacent capitalized
// tokens ("Virtual Memory", "Dependency Injection") before emitting them.
type TermExtractor struct {
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
	minRunes     int
}

func NewTermExtractor() *TermExtractor {
	return &TermExtractor{
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}+#._-]*`),
		stopwords:    extractorStopwords(),
		minRunes:     2,
	}
}

func (e *TermExtractor) Extract(text, domain string) ([]string, error) {
	raw := e.tokenPattern.FindAllString(text, -1)

	seen := make(map[string]struct{})
	out := make([]string, 0, 32)
	emit := func(term string) {
		normalized := strings.ToLower(strings.TrimSpace(term))
		if len([]rune(normalized)) < e.minRunes {
			return
		}
		if _, isStop := e.stopwords[normalized]; isStop {
			return
		}
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}

	for i := 0; i < len(raw); i++ {
		// Compound term: a run of capitalized tokens is one technical name.
		if isCapitalized(raw[i]) {
			j := i
			for j+1 < len(raw) && isCapitalized(raw[j+1]) {
				j++
			}
			if j > i {
				emit(strings.Join(raw[i:j+1], " "))
				for k := i; k <= j; k++ {
					emit(raw[k])
				}
				i = j
				continue
			}
		}
		emit(raw[i])
	}
	return out, nil
}

func isCapitalized(token string) bool {
	runes := []rune(token)
	if len(runes) == 0 {
		return false
	}
	return unicode.IsUpper(runes[0])
}

func extractorStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for",
		"to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was",
		"were", "be", "been", "it", "this", "that", "these", "those", "from",
		"not", "no", "yes", "all", "any", "each", "can", "will", "also",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
