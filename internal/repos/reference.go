package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/notelens/notelens-backend/internal/platform/apperr"
	"github.com/notelens/notelens-backend/internal/platform/logger"
	"github.com/notelens/notelens-backend/internal/types"
)

type ReferenceRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*types.ReferenceDocument, error)
	List(ctx context.Context, domain string) ([]types.ReferenceDocument, error)
	Create(ctx context.Context, ref *types.ReferenceDocument) error
	ReplaceChunks(ctx context.Context, referenceID uuid.UUID, chunks []*types.ReferenceChunk) error
}

type referenceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReferenceRepo(db *gorm.DB, baseLog *logger.Logger) ReferenceRepo {
	return &referenceRepo{db: db, log: baseLog.With("repo", "ReferenceRepo")}
}

func (r *referenceRepo) GetByID(ctx context.Context, id uuid.UUID) (*types.ReferenceDocument, error) {
	var ref types.ReferenceDocument
	err := r.db.WithContext(ctx).
		Preload("Chunks", func(db *gorm.DB) *gorm.DB { return db.Order("index asc") }).
		First(&ref, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("reference %s not found", id)
		}
		return nil, err
	}
	return &ref, nil
}

func (r *referenceRepo) List(ctx context.Context, domain string) ([]types.ReferenceDocument, error) {
	var refs []types.ReferenceDocument
	q := r.db.WithContext(ctx).
		Preload("Chunks", func(db *gorm.DB) *gorm.DB { return db.Order("index asc") })
	if domain != "" {
		q = q.Where("domain = ?", domain)
	}
	if err := q.Order("created_at asc").Find(&refs).Error; err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *referenceRepo) Create(ctx context.Context, ref *types.ReferenceDocument) error {
	return r.db.WithContext(ctx).Create(ref).Error
}

// ReplaceChunks swaps a reference's chunk set atomically; re-indexing a
// document must never leave stale windows behind.
func (r *referenceRepo) ReplaceChunks(ctx context.Context, referenceID uuid.UUID, chunks []*types.ReferenceChunk) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("reference_id = ?", referenceID).Delete(&types.ReferenceChunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		for _, chunk := range chunks {
			chunk.ReferenceID = referenceID
		}
		return tx.Create(chunks).Error
	})
}
