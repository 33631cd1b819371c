package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/perfinsight-backend/internal/data/repos"
	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

// maxManagerDepth bounds the walk up the reporting chain.
const maxManagerDepth = 8

// AccessPolicy answers who may see and act on an employee's performance data.
type AccessPolicy interface {
	// CanRead allows the employee, anyone above them in the reporting chain, and hr/admin of the same org.
	CanRead(ctx context.Context, actorID, employeeID uuid.UUID) (bool, error)
	// CanManage is CanRead minus the employee themselves.
	CanManage(ctx context.Context, actorID, employeeID uuid.UUID) (bool, error)
}

type accessPolicy struct {
	log       *logger.Logger
	employees repos.EmployeeRepo
}

func NewAccessPolicy(baseLog *logger.Logger, employees repos.EmployeeRepo) AccessPolicy {
	return &accessPolicy{
		log:       baseLog.With("service", "AccessPolicy"),
		employees: employees,
	}
}

func (p *accessPolicy) CanRead(ctx context.Context, actorID, employeeID uuid.UUID) (bool, error) {
	if actorID == uuid.Nil || employeeID == uuid.Nil {
		return false, nil
	}
	if actorID == employeeID {
		return true, nil
	}
	return p.CanManage(ctx, actorID, employeeID)
}

func (p *accessPolicy) CanManage(ctx context.Context, actorID, employeeID uuid.UUID) (bool, error) {
	if actorID == uuid.Nil || employeeID == uuid.Nil || actorID == employeeID {
		return false, nil
	}
	if p.employees == nil {
		return false, fmt.Errorf("access policy: employee repo not configured")
	}
	dbc := dbctx.Context{Ctx: ctx}
	emp, err := p.employees.GetByID(dbc, employeeID)
	if err != nil {
		return false, err
	}
	if emp == nil {
		return false, nil
	}

	actor, err := p.employees.GetByID(dbc, actorID)
	if err != nil {
		return false, err
	}
	if actor == nil || actor.OrgID != emp.OrgID {
		return false, nil
	}
	if actor.Role == types.RoleHR || actor.Role == types.RoleAdmin {
		return true, nil
	}

	seen := map[uuid.UUID]bool{emp.ID: true}
	cur := emp
	for depth := 0; depth < maxManagerDepth && cur != nil && cur.ManagerID != nil; depth++ {
		managerID := *cur.ManagerID
		if managerID == actorID {
			return true, nil
		}
		if seen[managerID] {
			p.log.Warn("reporting chain loops", "employee_id", employeeID, "manager_id", managerID)
			return false, nil
		}
		seen[managerID] = true
		cur, err = p.employees.GetByID(dbc, managerID)
		if err != nil {
			return false, err
		}
	}
	return false, nil
}
