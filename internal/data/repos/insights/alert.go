package insights

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

// AlertRepo exposes no delete: alerts are an append-only log.
type AlertRepo interface {
	Create(dbc dbctx.Context, alert *types.SentimentAlert) (*types.SentimentAlert, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.SentimentAlert, error)
	// FindActive returns the newest unacknowledged alert of the type created at or after since.
	FindActive(dbc dbctx.Context, employeeID uuid.UUID, alertType string, since time.Time) (*types.SentimentAlert, error)
	ListByEmployee(dbc dbctx.Context, employeeID uuid.UUID, includeAcknowledged bool) ([]*types.SentimentAlert, error)
	// MarkAcknowledged only touches rows that are still unacknowledged.
	MarkAcknowledged(dbc dbctx.Context, id uuid.UUID, actorID uuid.UUID, at time.Time) (bool, error)
}

type alertRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAlertRepo(db *gorm.DB, baseLog *logger.Logger) AlertRepo {
	return &alertRepo{db: db, log: baseLog.With("repo", "AlertRepo")}
}

func (r *alertRepo) Create(dbc dbctx.Context, alert *types.SentimentAlert) (*types.SentimentAlert, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if alert == nil {
		return nil, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(alert).Error; err != nil {
		return nil, err
	}
	return alert, nil
}

func (r *alertRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.SentimentAlert, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.SentimentAlert
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *alertRepo) FindActive(dbc dbctx.Context, employeeID uuid.UUID, alertType string, since time.Time) (*types.SentimentAlert, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.SentimentAlert
	err := transaction.WithContext(dbc.Ctx).
		Where("employee_id = ? AND type = ? AND acknowledged = ?", employeeID, alertType, false).
		Where("created_at >= ?", since).
		Order("created_at DESC").
		First(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *alertRepo) ListByEmployee(dbc dbctx.Context, employeeID uuid.UUID, includeAcknowledged bool) ([]*types.SentimentAlert, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.SentimentAlert
	q := transaction.WithContext(dbc.Ctx).Where("employee_id = ?", employeeID)
	if !includeAcknowledged {
		q = q.Where("acknowledged = ?", false)
	}
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *alertRepo) MarkAcknowledged(dbc dbctx.Context, id uuid.UUID, actorID uuid.UUID, at time.Time) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.SentimentAlert{}).
		Where("id = ? AND acknowledged = ?", id, false).
		Updates(map[string]any{
			"acknowledged":    true,
			"acknowledged_at": at.UTC(),
			"acknowledged_by": actorID,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
