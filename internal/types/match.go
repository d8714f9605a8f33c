package types

import "github.com/google/uuid"

// MatchResult is one ranked reference candidate for a topic. AdjustedScore
// is the raw cosine similarity scaled by source trust and can never exceed
// the raw value.
type MatchResult struct {
	ReferenceID uuid.UUID `json:"reference_id"`
	RawScore    float64   `json:"raw_score"`
	Adjusted    float64   `json:"adjusted"`
	TrustWeight float64   `json:"trust_weight"`
}

// KeywordEntry ties one extracted keyword to its embedding and the reference
// it was drawn from. Entries are keyed by (keyword, source): the same
// keyword re-added from the same source updates in place, while the same
// keyword from another source is an independent entry.
type KeywordEntry struct {
	Keyword   string    `json:"keyword"`
	SourceID  uuid.UUID `json:"source_id"`
	Embedding []float32 `json:"-"`
}

// KeywordMatch is one similarity hit from the keyword index.
type KeywordMatch struct {
	Keyword    string    `json:"keyword"`
	SourceID   uuid.UUID `json:"source_id"`
	Similarity float64   `json:"similarity"`
}
