package repos

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/notelens/notelens-backend/internal/platform/apperr"
	"github.com/notelens/notelens-backend/internal/platform/logger"
	"github.com/notelens/notelens-backend/internal/types"
)

type TopicRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*types.Topic, error)
	List(ctx context.Context, domain string) ([]*types.Topic, error)
	SaveDerived(ctx context.Context, id uuid.UUID, embedding []float32, score float64) error
}

type topicRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTopicRepo(db *gorm.DB, baseLog *logger.Logger) TopicRepo {
	return &topicRepo{db: db, log: baseLog.With("repo", "TopicRepo")}
}

func (r *topicRepo) GetByID(ctx context.Context, id uuid.UUID) (*types.Topic, error) {
	var topic types.Topic
	if err := r.db.WithContext(ctx).First(&topic, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("topic %s not found", id)
		}
		return nil, err
	}
	return &topic, nil
}

func (r *topicRepo) List(ctx context.Context, domain string) ([]*types.Topic, error) {
	var topics []*types.Topic
	q := r.db.WithContext(ctx)
	if domain != "" {
		q = q.Where("domain = ?", domain)
	}
	if err := q.Order("created_at asc").Find(&topics).Error; err != nil {
		return nil, err
	}
	return topics, nil
}

// SaveDerived writes back the embedding and validation score the pipeline
// computed. Content fields are never touched from here.
func (r *topicRepo) SaveDerived(ctx context.Context, id uuid.UUID, embedding []float32, score float64) error {
	raw, err := json.Marshal(embedding)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&types.Topic{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"embedding":        raw,
			"validation_score": score,
		}).Error
}
