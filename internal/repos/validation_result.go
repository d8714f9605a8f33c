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

type ValidationResultRepo interface {
	Create(ctx context.Context, result *types.ValidationResult) error
	LatestByTopic(ctx context.Context, topicID uuid.UUID) (*types.ValidationResult, error)
	ListByTopic(ctx context.Context, topicID uuid.UUID, limit int) ([]types.ValidationResult, error)
}

type validationResultRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewValidationResultRepo(db *gorm.DB, baseLog *logger.Logger) ValidationResultRepo {
	return &validationResultRepo{db: db, log: baseLog.With("repo", "ValidationResultRepo")}
}

func (r *validationResultRepo) Create(ctx context.Context, result *types.ValidationResult) error {
	return r.db.WithContext(ctx).Create(result).Error
}

func (r *validationResultRepo) LatestByTopic(ctx context.Context, topicID uuid.UUID) (*types.ValidationResult, error) {
	var result types.ValidationResult
	err := r.db.WithContext(ctx).
		Where("topic_id = ?", topicID).
		Order("created_at desc").
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("no validation result for topic %s", topicID)
		}
		return nil, err
	}
	return &result, nil
}

func (r *validationResultRepo) ListByTopic(ctx context.Context, topicID uuid.UUID, limit int) ([]types.ValidationResult, error) {
	if limit <= 0 {
		limit = 20
	}
	var results []types.ValidationResult
	err := r.db.WithContext(ctx).
		Where("topic_id = ?", topicID).
		Order("created_at desc").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
