package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/perfinsight-backend/internal/domain/performance"
)

var ReviewDraftAggregateContract = Contract{
	Name:       "Performance.ReviewDraft",
	Table:      "performance_review",
	Guard:      GuardVersionCAS,
	Operations: []string{"FinalizeGeneration", "ApplyHumanEdit", "Transition"},
}

// ReviewDraftAggregate owns performance_review write invariants.
//
// Every write compares the caller's expected version and bumps it. A stale version or a state that
// forbids the write returns *aggregates.Error with CodeConflict.
type ReviewDraftAggregate interface {
	Aggregate

	// FinalizeGeneration writes generated content, confidence and sources in one row update, or
	// creates a new ai_generated review when ReviewID is nil.
	FinalizeGeneration(ctx context.Context, in FinalizeGenerationInput) (FinalizeGenerationResult, error)

	// ApplyHumanEdit patches live fields, records editor attribution and appends an edit audit row.
	ApplyHumanEdit(ctx context.Context, in ApplyHumanEditInput) (ApplyHumanEditResult, error)

	// Transition moves the review along draft -> ai_generated -> human_edited -> submitted -> approved.
	Transition(ctx context.Context, in TransitionInput) (TransitionResult, error)
}

type FinalizeGenerationInput struct {
	ReviewID        *uuid.UUID
	ExpectedVersion int
	OrgID           uuid.UUID
	EmployeeID      uuid.UUID
	ReviewerID      uuid.UUID
	CycleID         *uuid.UUID
	ReviewType      string
	Window          performance.Window
	Content         map[string]string
	Confidence      float64
	Sources         []performance.Source
	GeneratedAt     time.Time
}

type FinalizeGenerationResult struct {
	Review  *performance.PerformanceReview
	Created bool
}

type ApplyHumanEditInput struct {
	ReviewID        uuid.UUID
	EditorID        uuid.UUID
	ExpectedVersion int
	Patches         map[string]string
	// AllowEditorOverwrite lets a later editor replace human_edited_by.
	AllowEditorOverwrite bool
	EditedAt             time.Time
}

type ApplyHumanEditResult struct {
	Review *performance.PerformanceReview
	Edit   *performance.ReviewEdit
	// FromStatus is the status before the edit; it differs from Review.Status when the edit moved it.
	FromStatus string
}

type TransitionInput struct {
	ReviewID        uuid.UUID
	ActorID         uuid.UUID
	ExpectedVersion int
	To              string
	At              time.Time
}

type TransitionResult struct {
	Review     *performance.PerformanceReview
	FromStatus string
}
