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

type ProposalRepo interface {
	CreateBatch(ctx context.Context, proposals []*types.EnhancementProposal) error
	ListByTopic(ctx context.Context, topicID uuid.UUID, status types.ProposalStatus) ([]types.EnhancementProposal, error)
	SetStatus(ctx context.Context, id uuid.UUID, status types.ProposalStatus) error
}

type proposalRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProposalRepo(db *gorm.DB, baseLog *logger.Logger) ProposalRepo {
	return &proposalRepo{db: db, log: baseLog.With("repo", "ProposalRepo")}
}

func (r *proposalRepo) CreateBatch(ctx context.Context, proposals []*types.EnhancementProposal) error {
	if len(proposals) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(proposals).Error
}

func (r *proposalRepo) ListByTopic(ctx context.Context, topicID uuid.UUID, status types.ProposalStatus) ([]types.EnhancementProposal, error) {
	var proposals []types.EnhancementProposal
	q := r.db.WithContext(ctx).Where("topic_id = ?", topicID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Order("created_at desc").Find(&proposals).Error; err != nil {
		return nil, err
	}
	return proposals, nil
}

// SetStatus flips a pending proposal to applied or rejected. Terminal
// statuses never change again.
func (r *proposalRepo) SetStatus(ctx context.Context, id uuid.UUID, status types.ProposalStatus) error {
	if status != types.ProposalApplied && status != types.ProposalRejected {
		return apperr.InvalidInput("invalid proposal status", map[string]string{
			"status": "must be applied or rejected",
		})
	}
	res := r.db.WithContext(ctx).
		Model(&types.EnhancementProposal{}).
		Where("id = ? AND status = ?", id, types.ProposalPending).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var existing types.EnhancementProposal
		err := r.db.WithContext(ctx).Select("id", "status").First(&existing, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("proposal %s not found", id)
		}
		if err != nil {
			return err
		}
		return apperr.InvalidInput("proposal already resolved", map[string]string{
			"status": string(existing.Status),
		})
	}
	return nil
}
