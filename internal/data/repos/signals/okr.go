package signals

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

type OkrRepo interface {
	Create(dbc dbctx.Context, okrs []*types.Okr) ([]*types.Okr, error)
	AddMember(dbc dbctx.Context, okrID, employeeID uuid.UUID, joinedAt time.Time) (*types.OkrMember, error)
	EndMembership(dbc dbctx.Context, okrID, employeeID uuid.UUID, leftAt time.Time) error
	ListForEmployee(dbc dbctx.Context, employeeID uuid.UUID, window types.Window) ([]*types.Okr, error)
}

type okrRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOkrRepo(db *gorm.DB, baseLog *logger.Logger) OkrRepo {
	return &okrRepo{db: db, log: baseLog.With("repo", "OkrRepo")}
}

func (r *okrRepo) Create(dbc dbctx.Context, okrs []*types.Okr) ([]*types.Okr, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(okrs) == 0 {
		return []*types.Okr{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&okrs).Error; err != nil {
		return nil, err
	}
	return okrs, nil
}

func (r *okrRepo) AddMember(dbc dbctx.Context, okrID, employeeID uuid.UUID, joinedAt time.Time) (*types.OkrMember, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	m := &types.OkrMember{
		OkrID:      okrID,
		EmployeeID: employeeID,
		JoinedAt:   joinedAt.UTC(),
	}
	if err := transaction.WithContext(dbc.Ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

func (r *okrRepo) EndMembership(dbc dbctx.Context, okrID, employeeID uuid.UUID, leftAt time.Time) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.OkrMember{}).
		Where("okr_id = ? AND employee_id = ? AND left_at IS NULL", okrID, employeeID).
		Updates(map[string]any{
			"left_at":    leftAt.UTC(),
			"updated_at": time.Now().UTC(),
		}).Error
}

// ListForEmployee returns OKRs the employee owns or was an active member of, whose period overlaps
// the window. A membership that ended before the window opened does not count.
func (r *okrRepo) ListForEmployee(dbc dbctx.Context, employeeID uuid.UUID, window types.Window) ([]*types.Okr, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Okr
	if employeeID == uuid.Nil {
		return out, nil
	}
	memberOf := transaction.
		Model(&types.OkrMember{}).
		Select("okr_id").
		Where("employee_id = ? AND (left_at IS NULL OR left_at >= ?)", employeeID, window.Start)

	if err := transaction.WithContext(dbc.Ctx).
		Where("(owner_id = ? OR id IN (?))", employeeID, memberOf).
		Where("period_start <= ? AND period_end >= ?", window.End, window.Start).
		Order("updated_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
