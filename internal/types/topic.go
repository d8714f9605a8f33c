package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Topic is one structured study-note unit. The core reads its content
// fields and writes back Embedding/ValidationScore as derived state; all
// other mutation belongs to the upload/update layer.
type Topic struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Domain string    `gorm:"column:domain;index" json:"domain"`
	Title  string    `gorm:"column:title;not null" json:"title"`

	Lead       string         `gorm:"column:lead" json:"lead"`
	Definition string         `gorm:"column:definition" json:"definition"`
	Keywords   datatypes.JSON `gorm:"type:jsonb;column:keywords" json:"keywords"`
	Tags       string         `gorm:"column:tags" json:"tags"`
	Mnemonic   string         `gorm:"column:mnemonic" json:"mnemonic"`

	LeadComplete       bool `gorm:"column:lead_complete" json:"lead_complete"`
	DefinitionComplete bool `gorm:"column:definition_complete" json:"definition_complete"`
	KeywordsComplete   bool `gorm:"column:keywords_complete" json:"keywords_complete"`
	TagsComplete       bool `gorm:"column:tags_complete" json:"tags_complete"`
	MnemonicComplete   bool `gorm:"column:mnemonic_complete" json:"mnemonic_complete"`

	Embedding       datatypes.JSON `gorm:"type:jsonb;column:embedding" json:"embedding,omitempty"`
	ValidationScore *float64       `gorm:"column:validation_score" json:"validation_score,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Topic) TableName() string {
	return "topic"
}

// KeywordList decodes the stored keyword array. A missing or malformed
// column reads as empty rather than failing the pipeline.
func (t *Topic) KeywordList() []string {
	if len(t.Keywords) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(t.Keywords, &out); err != nil {
		return nil
	}
	return out
}

func (t *Topic) SetKeywordList(keywords []string) error {
	raw, err := json.Marshal(keywords)
	if err != nil {
		return err
	}
	t.Keywords = datatypes.JSON(raw)
	return nil
}
