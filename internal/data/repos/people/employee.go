package people

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

type EmployeeRepo interface {
	Create(dbc dbctx.Context, employees []*types.Employee) ([]*types.Employee, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Employee, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Employee, error)
	ListByOrg(dbc dbctx.Context, orgID uuid.UUID) ([]*types.Employee, error)
	ListReports(dbc dbctx.Context, managerID uuid.UUID) ([]*types.Employee, error)
}

type employeeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEmployeeRepo(db *gorm.DB, baseLog *logger.Logger) EmployeeRepo {
	return &employeeRepo{db: db, log: baseLog.With("repo", "EmployeeRepo")}
}

func (r *employeeRepo) Create(dbc dbctx.Context, employees []*types.Employee) ([]*types.Employee, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(employees) == 0 {
		return []*types.Employee{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&employees).Error; err != nil {
		return nil, err
	}
	return employees, nil
}

// GetByID returns nil, nil when the employee does not exist.
func (r *employeeRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Employee, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Employee
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *employeeRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Employee, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Employee
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

func (r *employeeRepo) ListByOrg(dbc dbctx.Context, orgID uuid.UUID) ([]*types.Employee, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Employee
	if orgID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("org_id = ?", orgID).
		Order("last_name ASC, first_name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *employeeRepo) ListReports(dbc dbctx.Context, managerID uuid.UUID) ([]*types.Employee, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Employee
	if managerID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("manager_id = ?", managerID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
