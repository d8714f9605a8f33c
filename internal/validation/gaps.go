package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/notelens/notelens-backend/internal/matching"
	"github.com/notelens/notelens-backend/internal/types"
)

// DetectGaps compares a topic's fields against its matched references and
// the rule thresholds. The returned list is ordered by severity, then kind,
// for deterministic output.
func DetectGaps(topic *types.Topic, matches []types.MatchResult, refs []types.ReferenceDocument, rules Rules) []types.ContentGap {
	gaps := make([]types.ContentGap, 0, 4)

	definition := strings.TrimSpace(topic.Definition)
	lead := strings.TrimSpace(topic.Lead)
	keywords := topic.KeywordList()

	if definition == "" {
		gaps = append(gaps, types.ContentGap{
			Kind: types.GapMissingField, Field: "definition", Severity: types.SeverityCritical,
			Detail: "required field is empty",
		})
	}
	if lead == "" {
		gaps = append(gaps, types.ContentGap{
			Kind: types.GapMissingField, Field: "lead", Severity: types.SeverityHigh,
			Detail: "required field is empty",
		})
	}
	if len(keywords) == 0 {
		gaps = append(gaps, types.ContentGap{
			Kind: types.GapMissingField, Field: "keywords", Severity: types.SeverityHigh,
			Detail: "required field is empty",
		})
	}

	if definition != "" && (len([]rune(definition)) < rules.MinDefinitionRunes || !topic.DefinitionComplete) {
		gaps = append(gaps, types.ContentGap{
			Kind: types.GapIncompleteDefinition, Field: "definition", Severity: types.SeverityHigh,
			Detail: fmt.Sprintf("definition under %d characters or marked incomplete", rules.MinDefinitionRunes),
		})
	}

	if len(keywords) > 0 && len(matches) > 0 {
		overlap := keywordOverlap(keywords, matches, refs)
		if overlap < rules.MinKeywordOverlap {
			severity := types.SeverityMedium
			if overlap == 0 {
				severity = types.SeverityHigh
			}
			gaps = append(gaps, types.ContentGap{
				Kind: types.GapMissingKeywords, Field: "keywords", Severity: severity,
				Detail: fmt.Sprintf("only %.0f%% of keywords appear in matched references", overlap*100),
			})
		}
	}

	depth := len([]rune(definition)) + len([]rune(lead)) + len([]rune(strings.TrimSpace(topic.Mnemonic)))
	if depth > 0 && depth < rules.MinDepthRunes {
		gaps = append(gaps, types.ContentGap{
			Kind: types.GapInsufficientDepth, Field: "definition", Severity: types.SeverityMedium,
			Detail: fmt.Sprintf("content is %d characters, under the %d minimum", depth, rules.MinDepthRunes),
		})
	}

	if definition != "" && !hasExample(definition+"\n"+lead, rules.ExampleMarkers) {
		gaps = append(gaps, types.ContentGap{
			Kind: types.GapMissingExample, Field: "definition", Severity: types.SeverityLow,
			Detail: "no example found in the content",
		})
	}

	if allComplete(topic) && len(refs) > 0 && len(matches) == 0 {
		gaps = append(gaps, types.ContentGap{
			Kind: types.GapInconsistentContent, Field: "definition", Severity: types.SeverityMedium,
			Detail: "topic is marked complete but no trusted source aligns with it",
		})
	}

	sort.SliceStable(gaps, func(i, j int) bool {
		if gaps[i].Severity.Rank() != gaps[j].Severity.Rank() {
			return gaps[i].Severity.Rank() < gaps[j].Severity.Rank()
		}
		return gaps[i].Kind < gaps[j].Kind
	})
	return gaps
}

// keywordOverlap is the fraction of topic keywords that occur in the text
// of at least one matched reference.
func keywordOverlap(keywords []string, matches []types.MatchResult, refs []types.ReferenceDocument) float64 {
	matched := make(map[uuid.UUID]struct{}, len(matches))
	for _, m := range matches {
		matched[m.ReferenceID] = struct{}{}
	}
	var corpus strings.Builder
	for i := range refs {
		if _, ok := matched[refs[i].ID]; ok {
			corpus.WriteString(strings.ToLower(refs[i].Text))
			corpus.WriteString("\n")
		}
	}
	haystack := corpus.String()
	if haystack == "" {
		return 0
	}

	found := 0
	for _, kw := range keywords {
		if strings.Contains(haystack, strings.ToLower(strings.TrimSpace(kw))) {
			found++
		}
	}
	return float64(found) / float64(len(keywords))
}

func hasExample(text string, markers []string) bool {
	lower := strings.ToLower(text)
	for _, marker := range markers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

func allComplete(topic *types.Topic) bool {
	return topic.LeadComplete && topic.DefinitionComplete && topic.KeywordsComplete
}

// Score folds field completion and gap severities into [0, 1]. Field
// contributions reuse the embedding weights so the two views of "what
// matters in a topic" stay aligned.
func Score(topic *types.Topic, gaps []types.ContentGap) float64 {
	completion := 0.0
	if strings.TrimSpace(topic.Definition) != "" {
		completion += matching.WeightDefinition
	}
	if strings.TrimSpace(topic.Lead) != "" {
		completion += matching.WeightLead
	}
	if len(topic.KeywordList()) > 0 {
		completion += matching.WeightKeywords
	}
	if strings.TrimSpace(topic.Tags) != "" {
		completion += matching.WeightTags
	}
	if strings.TrimSpace(topic.Mnemonic) != "" {
		completion += matching.WeightMnemonic
	}

	penalty := 0.0
	for _, gap := range gaps {
		switch gap.Severity {
		case types.SeverityCritical:
			penalty += 0.25
		case types.SeverityHigh:
			penalty += 0.15
		case types.SeverityMedium:
			penalty += 0.08
		case types.SeverityLow:
			penalty += 0.03
		}
	}

	score := completion - penalty
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
