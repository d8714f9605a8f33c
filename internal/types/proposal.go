package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalApplied  ProposalStatus = "applied"
	ProposalRejected ProposalStatus = "rejected"
)

// EnhancementProposal is a suggested content improvement answering one gap.
// Immutable after creation except for the applied/rejected terminal status,
// which the review surface flips.
type EnhancementProposal struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TopicID  uuid.UUID `gorm:"type:uuid;not null;index" json:"topic_id"`
	GapKind  GapKind   `gorm:"column:gap_kind;not null" json:"gap_kind"`
	Field    string    `gorm:"column:field" json:"field"`
	Priority Severity  `gorm:"column:priority;not null" json:"priority"`

	SuggestedText string         `gorm:"column:suggested_text;not null" json:"suggested_text"`
	Reasoning     string         `gorm:"column:reasoning" json:"reasoning"`
	Sources       datatypes.JSON `gorm:"type:jsonb;column:sources" json:"sources"`
	Confidence    float64        `gorm:"column:confidence" json:"confidence"`
	Effort        string         `gorm:"column:effort" json:"effort"`

	// GeneratedBy records which provider served the text: "llm" or "template".
	GeneratedBy string         `gorm:"column:generated_by" json:"generated_by"`
	Status      ProposalStatus `gorm:"column:status;not null;default:pending" json:"status"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (EnhancementProposal) TableName() string {
	return "enhancement_proposal"
}
