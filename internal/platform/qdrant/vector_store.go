package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/notelens/notelens-backend/internal/platform/apperr"
	"github.com/notelens/notelens-backend/internal/platform/logger"
	"github.com/notelens/notelens-backend/internal/search"
)

const (
	payloadReferenceIDKey = "reference_id"
	maxErrorBodyBytes     = 1024
)

// VectorStore is the qdrant-backed reference index: Upsert feeds it during
// reference ingestion and Query serves corpus-wide retrieval for the
// matcher's primary provider.
type VectorStore interface {
	search.VectorSearcher
	Upsert(ctx context.Context, referenceID uuid.UUID, chunkIndex int, vector []float32) error
	Delete(ctx context.Context, referenceID uuid.UUID) error
}

type vectorStore struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client
}

func NewVectorStore(log *logger.Logger, cfg Config) (VectorStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	s := &vectorStore{
		log:     log.With("service", "QdrantVectorStore"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	if err := s.verifyReady(context.Background()); err != nil {
		return nil, err
	}

	log.Info("qdrant vector store ready",
		"url", s.baseURL,
		"collection", cfg.Collection,
		"vector_dim", cfg.VectorDim,
	)
	return s, nil
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

type searchResultItem struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Query returns per-reference raw scores, collapsing multiple chunk hits of
// the same reference to their best score.
func (s *vectorStore) Query(ctx context.Context, vector []float32, topK int) ([]search.Match, error) {
	if topK <= 0 {
		topK = 10
	}
	if s.cfg.VectorDim > 0 && len(vector) != s.cfg.VectorDim {
		return nil, fmt.Errorf("query vector dimension mismatch: expected=%d got=%d", s.cfg.VectorDim, len(vector))
	}

	body := map[string]any{
		"vector":       vector,
		"limit":        topK * 4,
		"with_payload": true,
	}
	var result []searchResultItem
	if err := s.do(ctx, "POST", fmt.Sprintf("/collections/%s/points/search", s.cfg.Collection), body, &result); err != nil {
		return nil, err
	}

	bestByRef := make(map[uuid.UUID]float64, len(result))
	order := make([]uuid.UUID, 0, len(result))
	for _, item := range result {
		refID, ok := referenceIDFromPayload(item.Payload)
		if !ok {
			continue
		}
		if prev, seen := bestByRef[refID]; !seen {
			bestByRef[refID] = item.Score
			order = append(order, refID)
		} else if item.Score > prev {
			bestByRef[refID] = item.Score
		}
	}

	matches := make([]search.Match, 0, len(order))
	for _, refID := range order {
		matches = append(matches, search.Match{ReferenceID: refID, Score: bestByRef[refID]})
		if len(matches) == topK {
			break
		}
	}
	return matches, nil
}

func (s *vectorStore) Upsert(ctx context.Context, referenceID uuid.UUID, chunkIndex int, vector []float32) error {
	if s.cfg.VectorDim > 0 && len(vector) != s.cfg.VectorDim {
		return fmt.Errorf("vector dimension mismatch: expected=%d got=%d", s.cfg.VectorDim, len(vector))
	}
	body := map[string]any{
		"points": []map[string]any{
			{
				"id":     pointID(referenceID, chunkIndex),
				"vector": vector,
				"payload": map[string]any{
					payloadReferenceIDKey: referenceID.String(),
					"chunk_index":         chunkIndex,
				},
			},
		},
	}
	return s.do(ctx, "PUT", fmt.Sprintf("/collections/%s/points?wait=true", s.cfg.Collection), body, nil)
}

func (s *vectorStore) Delete(ctx context.Context, referenceID uuid.UUID) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": payloadReferenceIDKey, "match": map[string]any{"value": referenceID.String()}},
			},
		},
	}
	return s.do(ctx, "POST", fmt.Sprintf("/collections/%s/points/delete?wait=true", s.cfg.Collection), body, nil)
}

func (s *vectorStore) verifyReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"/readyz", nil)
	if err != nil {
		return err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant ready check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("qdrant ready check failed: status %d", resp.StatusCode)
	}
	return nil
}

func (s *vectorStore) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return apperr.Unavailable("qdrant request failed", err)
	}
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
	if readErr != nil {
		return apperr.Unavailable("qdrant response read failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := string(raw)
		if len(detail) > maxErrorBodyBytes {
			detail = detail[:maxErrorBodyBytes]
		}
		if resp.StatusCode >= 500 {
			return apperr.Unavailable(fmt.Sprintf("qdrant %s: status %d", path, resp.StatusCode), fmt.Errorf("%s", detail))
		}
		return fmt.Errorf("qdrant %s: status %d: %s", path, resp.StatusCode, detail)
	}
	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("qdrant decode error: %w", err)
	}
	return json.Unmarshal(env.Result, out)
}

func referenceIDFromPayload(payload map[string]any) (uuid.UUID, bool) {
	raw, ok := payload[payloadReferenceIDKey].(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

var pointNamespaceUUID = uuid.MustParse("7c9a2f74-9a1e-4b8e-9f33-6f3f3c2a5d10")

// pointID derives a stable UUID per (reference, chunk) so re-indexing
// overwrites instead of duplicating points.
func pointID(referenceID uuid.UUID, chunkIndex int) string {
	return uuid.NewSHA1(pointNamespaceUUID, []byte(fmt.Sprintf("%s/%d", referenceID, chunkIndex))).String()
}
