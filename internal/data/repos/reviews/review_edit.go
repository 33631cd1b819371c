package reviews

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

type ReviewEditRepo interface {
	Create(dbc dbctx.Context, edits []*types.ReviewEdit) ([]*types.ReviewEdit, error)
	ListByReview(dbc dbctx.Context, reviewID uuid.UUID) ([]*types.ReviewEdit, error)
}

type reviewEditRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReviewEditRepo(db *gorm.DB, baseLog *logger.Logger) ReviewEditRepo {
	return &reviewEditRepo{db: db, log: baseLog.With("repo", "ReviewEditRepo")}
}

func (r *reviewEditRepo) Create(dbc dbctx.Context, edits []*types.ReviewEdit) ([]*types.ReviewEdit, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(edits) == 0 {
		return []*types.ReviewEdit{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&edits).Error; err != nil {
		return nil, err
	}
	return edits, nil
}

// ListByReview returns edits oldest first.
func (r *reviewEditRepo) ListByReview(dbc dbctx.Context, reviewID uuid.UUID) ([]*types.ReviewEdit, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ReviewEdit
	if reviewID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("review_id = ?", reviewID).
		Order("version_after ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
