package matching

import (
	"strings"

	"github.com/notelens/notelens-backend/internal/types"
)

// Field weights for the composite topic embedding. The vector space has no
// native weighting, so the proportions are approximated at text-assembly
// time by sizing each field's contribution before encoding.
const (
	WeightDefinition = 0.35
	WeightLead       = 0.25
	WeightKeywords   = 0.25
	WeightTags       = 0.10
	WeightMnemonic   = 0.05
)

// compositeBudget is the total rune budget the weighted fields are scaled
// against.
const compositeBudget = 2000

// CompositeText assembles the single query text for a topic. Each non-empty
// field is repeated or truncated to its weight's share of the budget. Empty
// fields contribute nothing and their weight is absorbed by the remaining
// text; no renormalization is applied.
func CompositeText(topic *types.Topic) string {
	segments := make([]string, 0, 5)
	appendSegment := func(text string, weight float64) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		target := int(weight * compositeBudget)
		if target < 1 {
			target = 1
		}
		segments = append(segments, fitToLength(text, target))
	}

	appendSegment(topic.Definition, WeightDefinition)
	appendSegment(topic.Lead, WeightLead)
	appendSegment(strings.Join(topic.KeywordList(), " "), WeightKeywords)
	appendSegment(topic.Tags, WeightTags)
	appendSegment(topic.Mnemonic, WeightMnemonic)

	return strings.Join(segments, "\n")
}

// fitToLength repeats text until it reaches target runes, then truncates.
func fitToLength(text string, target int) string {
	runes := []rune(text)
	if len(runes) >= target {
		return string(runes[:target])
	}
	out := make([]rune, 0, target)
	for len(out) < target {
		if len(out) > 0 {
			out = append(out, ' ')
			if len(out) == target {
				break
			}
		}
		remaining := target - len(out)
		if remaining >= len(runes) {
			out = append(out, runes...)
		} else {
			out = append(out, runes[:remaining]...)
		}
	}
	return string(out)
}
