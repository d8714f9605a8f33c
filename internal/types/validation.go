package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type GapKind string

const (
	GapMissingField         GapKind = "missing_field"
	GapIncompleteDefinition GapKind = "incomplete_definition"
	GapMissingKeywords      GapKind = "missing_keywords"
	GapInsufficientDepth    GapKind = "insufficient_depth"
	GapMissingExample       GapKind = "missing_example"
	GapInconsistentContent  GapKind = "inconsistent_content"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank orders severities for sorting; lower is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// ContentGap is one detected deficiency in a topic relative to its matched
// references.
type ContentGap struct {
	Kind     GapKind  `json:"kind"`
	Field    string   `json:"field"`
	Severity Severity `json:"severity"`
	Detail   string   `json:"detail,omitempty"`
}

// ValidationState tracks where a request is in the pipeline. Degraded is a
// side-state: it annotates the run and the pipeline continues.
type ValidationState string

const (
	StatePending      ValidationState = "pending"
	StateMatching     ValidationState = "matching"
	StateGapDetection ValidationState = "gap_detection"
	StateProposal     ValidationState = "proposal"
	StateDone         ValidationState = "done"
	StateDegraded     ValidationState = "degraded"
)

// ValidationResult is the outcome of one validation run. Superseded, never
// mutated, by the next run for the same topic.
type ValidationResult struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TopicID uuid.UUID `gorm:"type:uuid;not null;index" json:"topic_id"`
	Score   float64   `gorm:"column:score;not null" json:"score"`

	Gaps       datatypes.JSON `gorm:"type:jsonb;column:gaps" json:"gaps"`
	MatchedIDs datatypes.JSON `gorm:"type:jsonb;column:matched_ids" json:"matched_ids"`

	Degraded bool   `gorm:"column:degraded" json:"degraded"`
	ServedBy string `gorm:"column:served_by" json:"served_by"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ValidationResult) TableName() string {
	return "validation_result"
}

// DegradationEvent records one fallback activation for observability.
type DegradationEvent struct {
	At     time.Time `json:"at"`
	Stage  string    `json:"stage"`
	GapID  string    `json:"gap_id,omitempty"`
	Reason string    `json:"reason"`
}
