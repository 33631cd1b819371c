package signals

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

type FeedbackRepo interface {
	Create(dbc dbctx.Context, items []*types.Feedback) ([]*types.Feedback, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Feedback, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Feedback, error)
	ListForReceiver(dbc dbctx.Context, receiverID uuid.UUID, window types.Window) ([]*types.Feedback, error)
	ReceiverIDsSince(dbc dbctx.Context, since time.Time) ([]uuid.UUID, error)
}

type feedbackRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFeedbackRepo(db *gorm.DB, baseLog *logger.Logger) FeedbackRepo {
	return &feedbackRepo{db: db, log: baseLog.With("repo", "FeedbackRepo")}
}

func (r *feedbackRepo) Create(dbc dbctx.Context, items []*types.Feedback) ([]*types.Feedback, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(items) == 0 {
		return []*types.Feedback{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// GetByID returns nil, nil when the feedback does not exist.
func (r *feedbackRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Feedback, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.Feedback
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *feedbackRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Feedback, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Feedback
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *feedbackRepo) ListForReceiver(dbc dbctx.Context, receiverID uuid.UUID, window types.Window) ([]*types.Feedback, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Feedback
	if receiverID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("receiver_id = ?", receiverID).
		Where("created_at >= ? AND created_at <= ?", window.Start, window.End).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ReceiverIDsSince lists employees that received feedback at or after since.
func (r *feedbackRepo) ReceiverIDsSince(dbc dbctx.Context, since time.Time) ([]uuid.UUID, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []uuid.UUID
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Feedback{}).
		Where("created_at >= ?", since).
		Distinct().
		Pluck("receiver_id", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
