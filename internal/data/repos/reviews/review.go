package reviews

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

// ReviewRepo is the read side of performance_review. Writes go through the review draft aggregate.
type ReviewRepo interface {
	Create(dbc dbctx.Context, reviews []*types.PerformanceReview) ([]*types.PerformanceReview, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PerformanceReview, error)
	// LockByID reads the row under FOR UPDATE when the dialect supports it.
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.PerformanceReview, error)
	ListByEmployee(dbc dbctx.Context, employeeID uuid.UUID, limit int) ([]*types.PerformanceReview, error)
	// ListPriorForEmployee returns submitted or approved reviews whose period ended inside the window.
	ListPriorForEmployee(dbc dbctx.Context, employeeID uuid.UUID, window types.Window, excludeID *uuid.UUID) ([]*types.PerformanceReview, error)
}

type reviewRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReviewRepo(db *gorm.DB, baseLog *logger.Logger) ReviewRepo {
	return &reviewRepo{db: db, log: baseLog.With("repo", "ReviewRepo")}
}

func (r *reviewRepo) Create(dbc dbctx.Context, reviews []*types.PerformanceReview) ([]*types.PerformanceReview, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(reviews) == 0 {
		return []*types.PerformanceReview{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&reviews).Error; err != nil {
		return nil, err
	}
	return reviews, nil
}

// GetByID returns nil, nil when the review does not exist.
func (r *reviewRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PerformanceReview, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.PerformanceReview
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *reviewRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.PerformanceReview, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	q := transaction.WithContext(dbc.Ctx)
	if q.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var out types.PerformanceReview
	if err := q.Where("id = ?", id).First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *reviewRepo) ListByEmployee(dbc dbctx.Context, employeeID uuid.UUID, limit int) ([]*types.PerformanceReview, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.PerformanceReview
	if employeeID == uuid.Nil {
		return out, nil
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("employee_id = ?", employeeID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reviewRepo) ListPriorForEmployee(dbc dbctx.Context, employeeID uuid.UUID, window types.Window, excludeID *uuid.UUID) ([]*types.PerformanceReview, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.PerformanceReview
	if employeeID == uuid.Nil {
		return out, nil
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("employee_id = ?", employeeID).
		Where("status IN ?", []string{types.ReviewStatusSubmitted, types.ReviewStatusApproved}).
		Where("period_end >= ? AND period_end <= ?", window.Start, window.End)
	if excludeID != nil && *excludeID != uuid.Nil {
		q = q.Where("id <> ?", *excludeID)
	}
	if err := q.Order("period_end DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
