package proposal

import (
	"fmt"
	"strings"

	"github.com/notelens/notelens-backend/internal/types"
)

// templateProposal renders the deterministic text for a gap. It serves
// medium/low gaps directly and backs the fallback when the LLM path fails.
func (g *Generator) templateProposal(topic *types.Topic, gap types.ContentGap, candidates []string) *types.EnhancementProposal {
	var text, reasoning string

	switch gap.Kind {
	case types.GapMissingField:
		text = fmt.Sprintf("Fill in the %s field for %q. Start from the matched references and state the core idea in one or two sentences.", gap.Field, topic.Title)
		reasoning = fmt.Sprintf("The required field %q is empty.", gap.Field)
	case types.GapIncompleteDefinition:
		text = fmt.Sprintf("Expand the definition of %q: name the concept, what it does, and the property that distinguishes it from neighboring concepts.", topic.Title)
		reasoning = "The definition is too short to cover the concept."
	case types.GapMissingKeywords:
		if len(candidates) > 0 {
			text = fmt.Sprintf("Add keywords related to %q. Candidates from the matched references: %s.", topic.Title, strings.Join(candidates, ", "))
		} else {
			text = fmt.Sprintf("Add the key terms that the matched references use when covering %q.", topic.Title)
		}
		reasoning = "The topic's keywords overlap poorly with its matched references."
	case types.GapInsufficientDepth:
		text = fmt.Sprintf("Deepen %q: the matched references cover noticeably more ground. Summarize the aspects the note skips.", topic.Title)
		reasoning = "The topic body is thin compared to the matched references."
	case types.GapMissingExample:
		text = fmt.Sprintf("Add a concrete example to %q. One worked example anchors the definition.", topic.Title)
		reasoning = "No example was found in the topic content."
	case types.GapInconsistentContent:
		text = fmt.Sprintf("Review %q against its references: the content diverges from every matched source. Verify the definition and keywords.", topic.Title)
		reasoning = "All reference similarities are low for a topic marked complete."
	default:
		return nil
	}

	return &types.EnhancementProposal{
		SuggestedText: text,
		Reasoning:     reasoning,
		Confidence:    0.4,
		Effort:        effortFor(gap.Severity),
		GeneratedBy:   "template",
	}
}

func effortFor(severity types.Severity) string {
	switch severity {
	case types.SeverityCritical:
		return "high"
	case types.SeverityHigh:
		return "medium"
	default:
		return "low"
	}
}
