package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/perfinsight-backend/internal/domain/performance"
)

func SeedEmployee(tb testing.TB, ctx context.Context, tx *gorm.DB, orgID uuid.UUID, managerID *uuid.UUID, role string) *performance.Employee {
	tb.Helper()
	id := uuid.New()
	e := &performance.Employee{
		ID:         id,
		OrgID:      orgID,
		ManagerID:  managerID,
		Email:      id.String() + "@example.com",
		FirstName:  "Dana",
		LastName:   "Reyes",
		Title:      "Software Engineer",
		Role:       role,
		FocusAreas: performance.EncodeStringList([]string{"reliability", "mentoring"}),
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed employee: %v", err)
	}
	return e
}

func SeedFeedback(tb testing.TB, ctx context.Context, tx *gorm.DB, orgID, giverID, receiverID uuid.UUID, text string, at time.Time) *performance.Feedback {
	tb.Helper()
	f := &performance.Feedback{
		ID:         uuid.New(),
		OrgID:      orgID,
		GiverID:    giverID,
		ReceiverID: receiverID,
		Text:       text,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	if err := tx.WithContext(ctx).Create(f).Error; err != nil {
		tb.Fatalf("seed feedback: %v", err)
	}
	return f
}

func SeedOkr(tb testing.TB, ctx context.Context, tx *gorm.DB, orgID, ownerID uuid.UUID, objective string, start, end time.Time) *performance.Okr {
	tb.Helper()
	o := &performance.Okr{
		ID:          uuid.New(),
		OrgID:       orgID,
		OwnerID:     ownerID,
		Objective:   objective,
		KeyResults:  "ship it",
		Progress:    0.5,
		Status:      performance.OkrStatusActive,
		PeriodStart: start,
		PeriodEnd:   end,
		CreatedAt:   start,
		UpdatedAt:   start,
	}
	if err := tx.WithContext(ctx).Create(o).Error; err != nil {
		tb.Fatalf("seed okr: %v", err)
	}
	return o
}

func SeedReview(tb testing.TB, ctx context.Context, tx *gorm.DB, orgID, employeeID, reviewerID uuid.UUID, status string) *performance.PerformanceReview {
	tb.Helper()
	now := time.Now().UTC()
	r := &performance.PerformanceReview{
		ID:          uuid.New(),
		OrgID:       orgID,
		EmployeeID:  employeeID,
		ReviewerID:  reviewerID,
		ReviewType:  performance.ReviewTypeAnnual,
		PeriodStart: now.AddDate(-1, 0, 0),
		PeriodEnd:   now,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed review: %v", err)
	}
	return r
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }

func PtrString(v string) *string { return &v }
