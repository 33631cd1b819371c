package insights

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

type AnalysisRepo interface {
	// Upsert stores the latest analysis per feedback item.
	Upsert(dbc dbctx.Context, row *types.FeedbackAnalysis) error
	GetByFeedbackID(dbc dbctx.Context, feedbackID uuid.UUID) (*types.FeedbackAnalysis, error)
	GetByFeedbackIDs(dbc dbctx.Context, feedbackIDs []uuid.UUID) ([]*types.FeedbackAnalysis, error)
	ListByEmployeeSince(dbc dbctx.Context, employeeID uuid.UUID, since time.Time) ([]*types.FeedbackAnalysis, error)
	EmployeeIDsAnalyzedSince(dbc dbctx.Context, since time.Time) ([]uuid.UUID, error)
}

type analysisRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnalysisRepo(db *gorm.DB, baseLog *logger.Logger) AnalysisRepo {
	return &analysisRepo{db: db, log: baseLog.With("repo", "AnalysisRepo")}
}

func (r *analysisRepo) Upsert(dbc dbctx.Context, row *types.FeedbackAnalysis) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil || row.FeedbackID == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	if row.AnalyzedAt.IsZero() {
		row.AnalyzedAt = now
	}
	row.UpdatedAt = now
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "feedback_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"tone",
				"sentiment_score",
				"quality_score",
				"specificity",
				"actionability",
				"bias_indicators",
				"keywords",
				"analyzed_at",
				"updated_at",
			}),
		}).
		Create(row).Error
}

func (r *analysisRepo) GetByFeedbackID(dbc dbctx.Context, feedbackID uuid.UUID) (*types.FeedbackAnalysis, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.FeedbackAnalysis
	err := transaction.WithContext(dbc.Ctx).Where("feedback_id = ?", feedbackID).First(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *analysisRepo) GetByFeedbackIDs(dbc dbctx.Context, feedbackIDs []uuid.UUID) ([]*types.FeedbackAnalysis, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.FeedbackAnalysis
	if len(feedbackIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("feedback_id IN ?", feedbackIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListByEmployeeSince orders by the feedback's own timestamp, oldest first.
func (r *analysisRepo) ListByEmployeeSince(dbc dbctx.Context, employeeID uuid.UUID, since time.Time) ([]*types.FeedbackAnalysis, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.FeedbackAnalysis
	if err := transaction.WithContext(dbc.Ctx).
		Where("employee_id = ? AND feedback_created_at >= ?", employeeID, since).
		Order("feedback_created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *analysisRepo) EmployeeIDsAnalyzedSince(dbc dbctx.Context, since time.Time) ([]uuid.UUID, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []uuid.UUID
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.FeedbackAnalysis{}).
		Where("analyzed_at >= ?", since).
		Distinct().
		Pluck("employee_id", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
