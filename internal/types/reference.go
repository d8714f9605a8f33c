package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SourceType classifies where a reference document came from. Each carries a
// fixed trust weight; books outrank blogs, blogs outrank personal notes.
type SourceType string

const (
	SourceBook SourceType = "book"
	SourceBlog SourceType = "blog"
	SourceNote SourceType = "note"
)

func (s SourceType) TrustWeight() float64 {
	switch s {
	case SourceBook:
		return 1.0
	case SourceBlog:
		return 0.8
	case SourceNote:
		return 0.6
	default:
		return 0.6
	}
}

// ReferenceDocument is a trusted source topics are validated against.
// Immutable once indexed; re-indexing replaces its chunks.
type ReferenceDocument struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Domain     string     `gorm:"column:domain;index" json:"domain"`
	Title      string     `gorm:"column:title;not null" json:"title"`
	SourceType SourceType `gorm:"column:source_type;not null" json:"source_type"`
	Text       string     `gorm:"column:text;not null" json:"text"`

	Chunks []ReferenceChunk `gorm:"constraint:OnDelete:CASCADE;foreignKey:ReferenceID;references:ID" json:"chunks,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ReferenceDocument) TableName() string {
	return "reference_document"
}

// ReferenceChunk is one overlapping window of a long reference document with
// its precomputed embedding.
type ReferenceChunk struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ReferenceID uuid.UUID      `gorm:"type:uuid;not null;index" json:"reference_id"`
	Index       int            `gorm:"column:index;not null" json:"index"`
	Text        string         `gorm:"column:text;not null" json:"text"`
	Embedding   datatypes.JSON `gorm:"type:jsonb;column:embedding" json:"embedding,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (ReferenceChunk) TableName() string {
	return "reference_chunk"
}
