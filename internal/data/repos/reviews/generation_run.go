package reviews

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

type GenerationRunRepo interface {
	Create(dbc dbctx.Context, run *types.ReviewGenerationRun) (*types.ReviewGenerationRun, error)
	ListByEmployee(dbc dbctx.Context, employeeID uuid.UUID, limit int) ([]*types.ReviewGenerationRun, error)
}

type generationRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationRunRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRunRepo {
	return &generationRunRepo{db: db, log: baseLog.With("repo", "GenerationRunRepo")}
}

func (r *generationRunRepo) Create(dbc dbctx.Context, run *types.ReviewGenerationRun) (*types.ReviewGenerationRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if run == nil {
		return nil, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *generationRunRepo) ListByEmployee(dbc dbctx.Context, employeeID uuid.UUID, limit int) ([]*types.ReviewGenerationRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ReviewGenerationRun
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
