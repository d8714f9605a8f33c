package validation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rules are the tunable thresholds behind gap detection. Defaults work for
// typical study notes; a deployment can override them from a YAML file.
type Rules struct {
	// MinDefinitionRunes is the length under which a non-empty definition
	// counts as incomplete.
	MinDefinitionRunes int `yaml:"min_definition_runes"`
	// MinDepthRunes is the combined content length under which a topic is
	// flagged for insufficient depth.
	MinDepthRunes int `yaml:"min_depth_runes"`
	// MinKeywordOverlap is the minimum fraction of topic keywords that must
	// appear in matched reference text.
	MinKeywordOverlap float64 `yaml:"min_keyword_overlap"`
	// ExampleMarkers are substrings whose presence counts as an example.
	ExampleMarkers []string `yaml:"example_markers"`
}

func DefaultRules() Rules {
	return Rules{
		MinDefinitionRunes: 30,
		MinDepthRunes:      200,
		MinKeywordOverlap:  0.3,
		ExampleMarkers: []string{
			"example", "e.g.", "for instance",
			"예:", "예시", "예를 들",
		},
	}
}

// LoadRules reads overrides from path on top of the defaults. An empty path
// returns the defaults unchanged.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("read rules file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return rules, fmt.Errorf("parse rules file: %w", err)
	}
	return rules, nil
}
