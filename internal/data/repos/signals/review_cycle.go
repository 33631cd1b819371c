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

type ReviewCycleRepo interface {
	Create(dbc dbctx.Context, cycles []*types.ReviewCycle) ([]*types.ReviewCycle, error)
	LatestCompletedForOrg(dbc dbctx.Context, orgID uuid.UUID, asOf time.Time) (*types.ReviewCycle, error)
}

type reviewCycleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReviewCycleRepo(db *gorm.DB, baseLog *logger.Logger) ReviewCycleRepo {
	return &reviewCycleRepo{db: db, log: baseLog.With("repo", "ReviewCycleRepo")}
}

func (r *reviewCycleRepo) Create(dbc dbctx.Context, cycles []*types.ReviewCycle) ([]*types.ReviewCycle, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(cycles) == 0 {
		return []*types.ReviewCycle{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&cycles).Error; err != nil {
		return nil, err
	}
	return cycles, nil
}

// LatestCompletedForOrg returns the completed cycle with the latest end date not after asOf, or nil.
func (r *reviewCycleRepo) LatestCompletedForOrg(dbc dbctx.Context, orgID uuid.UUID, asOf time.Time) (*types.ReviewCycle, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if orgID == uuid.Nil {
		return nil, nil
	}
	var out types.ReviewCycle
	err := transaction.WithContext(dbc.Ctx).
		Where("org_id = ? AND status = ? AND end_date <= ?", orgID, types.CycleStatusCompleted, asOf).
		Order("end_date DESC").
		First(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}
