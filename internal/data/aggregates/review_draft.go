package aggregates

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/perfinsight-backend/internal/data/repos"
	domainagg "github.com/yungbote/perfinsight-backend/internal/domain/aggregates"
	"github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
)

type ReviewDraftAggregateDeps struct {
	Base BaseDeps

	Reviews repos.ReviewRepo
	Edits   repos.ReviewEditRepo
}

type reviewDraftAggregate struct {
	deps ReviewDraftAggregateDeps
}

func NewReviewDraftAggregate(deps ReviewDraftAggregateDeps) domainagg.ReviewDraftAggregate {
	deps.Base = deps.Base.withDefaults()
	return &reviewDraftAggregate{deps: deps}
}

func (a *reviewDraftAggregate) Contract() domainagg.Contract {
	return domainagg.ReviewDraftAggregateContract
}

func (a *reviewDraftAggregate) FinalizeGeneration(ctx context.Context, in domainagg.FinalizeGenerationInput) (domainagg.FinalizeGenerationResult, error) {
	op := domainagg.ReviewDraftAggregateContract.Op("FinalizeGeneration")
	var out domainagg.FinalizeGenerationResult
	if in.EmployeeID == uuid.Nil || in.OrgID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing org_id or employee_id", nil)
	}
	for _, f := range performance.GeneratedFields {
		if strings.TrimSpace(in.Content[f]) == "" {
			return out, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("missing generated field %q", f), nil)
		}
	}
	if math.IsNaN(in.Confidence) || in.Confidence < 0 || in.Confidence > 1 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "confidence must be within [0,1]", nil)
	}
	if len(in.Sources) == 0 {
		return out, domainagg.NewError(domainagg.CodeInvariantViolation, op, "generated content requires at least one source", nil)
	}
	if a.deps.Reviews == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "review repo not configured", nil)
	}

	generatedAt := in.GeneratedAt.UTC()
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}
	reviewType := strings.TrimSpace(in.ReviewType)
	if reviewType == "" {
		reviewType = performance.ReviewTypeAnnual
	}
	sourcesJSON, err := json.Marshal(in.Sources)
	if err != nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "sources not serializable", err)
	}
	original := make(map[string]string, len(performance.GeneratedFields))
	for _, f := range performance.GeneratedFields {
		original[f] = in.Content[f]
	}
	originalJSON, _ := json.Marshal(original)
	confidence := in.Confidence

	err = executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if in.ReviewID == nil || *in.ReviewID == uuid.Nil {
			row := &performance.PerformanceReview{
				OrgID:             in.OrgID,
				EmployeeID:        in.EmployeeID,
				ReviewerID:        in.ReviewerID,
				CycleID:           in.CycleID,
				ReviewType:        reviewType,
				PeriodStart:       in.Window.Start.UTC(),
				PeriodEnd:         in.Window.End.UTC(),
				Status:            performance.ReviewStatusAIGenerated,
				Version:           1,
				IsAIGenerated:     true,
				AIGeneratedAt:     &generatedAt,
				AIConfidenceScore: &confidence,
				AISources:         datatypes.JSON(sourcesJSON),
				AIOriginalContent: datatypes.JSON(originalJSON),
				CreatedAt:         generatedAt,
				UpdatedAt:         generatedAt,
			}
			applyContent(row, in.Content)
			if _, err := a.deps.Reviews.Create(dbc, []*performance.PerformanceReview{row}); err != nil {
				return err
			}
			out = domainagg.FinalizeGenerationResult{Review: row, Created: true}
			return nil
		}

		current, err := a.deps.Reviews.LockByID(dbc, *in.ReviewID)
		if err != nil {
			return err
		}
		if current == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("review not found: %s", in.ReviewID), nil)
		}
		if current.EmployeeID != in.EmployeeID {
			return InvariantError("review belongs to a different employee")
		}
		if !current.Generatable() {
			return ConflictError(fmt.Sprintf("review in status %q (human_edited=%t) can no longer be generated", current.Status, current.HumanEdited))
		}
		if err := RequireVersionMatch(current.Version, in.ExpectedVersion); err != nil {
			return err
		}

		updates := map[string]any{
			"status":              performance.ReviewStatusAIGenerated,
			"review_type":         reviewType,
			"period_start":        in.Window.Start.UTC(),
			"period_end":          in.Window.End.UTC(),
			"is_ai_generated":     true,
			"ai_generated_at":     generatedAt,
			"ai_confidence_score": confidence,
			"ai_sources":          datatypes.JSON(sourcesJSON),
			"ai_original_content": datatypes.JSON(originalJSON),
			"updated_at":          generatedAt,
		}
		if in.CycleID != nil {
			updates["cycle_id"] = *in.CycleID
		}
		for _, f := range performance.GeneratedFields {
			updates[f] = in.Content[f]
		}
		ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, domainagg.ReviewDraftAggregateContract.Table, current.ID, in.ExpectedVersion, updates)
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "review changed during generation"); err != nil {
			return err
		}
		updated, err := a.deps.Reviews.GetByID(dbc, current.ID)
		if err != nil {
			return err
		}
		out = domainagg.FinalizeGenerationResult{Review: updated}
		return nil
	})
	return out, err
}

func (a *reviewDraftAggregate) ApplyHumanEdit(ctx context.Context, in domainagg.ApplyHumanEditInput) (domainagg.ApplyHumanEditResult, error) {
	op := domainagg.ReviewDraftAggregateContract.Op("ApplyHumanEdit")
	var out domainagg.ApplyHumanEditResult
	if in.ReviewID == uuid.Nil || in.EditorID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing review_id or editor_id", nil)
	}
	if len(in.Patches) == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "no field patches", nil)
	}
	fields := make([]string, 0, len(in.Patches))
	for f := range in.Patches {
		if !performance.IsEditableField(f) {
			return out, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("field %q is not editable", f), nil)
		}
		fields = append(fields, f)
	}
	sort.Strings(fields)
	if a.deps.Reviews == nil || a.deps.Edits == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "review repos not configured", nil)
	}

	editedAt := in.EditedAt.UTC()
	if editedAt.IsZero() {
		editedAt = time.Now().UTC()
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		current, err := a.deps.Reviews.LockByID(dbc, in.ReviewID)
		if err != nil {
			return err
		}
		if current == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("review not found: %s", in.ReviewID), nil)
		}
		if current.Status == performance.ReviewStatusApproved {
			return ConflictError("approved reviews cannot be edited")
		}
		if current.Archived {
			return ConflictError("archived reviews cannot be edited")
		}
		if err := RequireVersionMatch(current.Version, in.ExpectedVersion); err != nil {
			return err
		}

		nextStatus := current.Status
		if current.Status == performance.ReviewStatusDraft || current.Status == performance.ReviewStatusAIGenerated {
			nextStatus = performance.ReviewStatusHumanEdited
		}

		before := make(map[string]*string, len(fields))
		after := make(map[string]string, len(fields))
		updates := map[string]any{
			"status":          nextStatus,
			"human_edited":    true,
			"human_edited_at": editedAt,
			"updated_at":      editedAt,
		}
		if !current.HumanEdited || in.AllowEditorOverwrite {
			updates["human_edited_by"] = in.EditorID
		}
		for _, f := range fields {
			before[f] = current.Field(f)
			after[f] = in.Patches[f]
			updates[f] = in.Patches[f]
		}

		// Generated text that predates the original snapshot is captured before it is replaced.
		if current.IsAIGenerated {
			original := current.OriginalContent()
			missing := false
			for _, f := range fields {
				if _, ok := original[f]; ok || !isGeneratedField(f) {
					continue
				}
				if v := current.Field(f); v != nil {
					original[f] = *v
					missing = true
				}
			}
			if missing {
				raw, _ := json.Marshal(original)
				updates["ai_original_content"] = datatypes.JSON(raw)
			}
		}

		ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, domainagg.ReviewDraftAggregateContract.Table, current.ID, in.ExpectedVersion, updates)
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "review changed during edit"); err != nil {
			return err
		}

		beforeJSON, _ := json.Marshal(before)
		afterJSON, _ := json.Marshal(after)
		edit := &performance.ReviewEdit{
			ReviewID:     current.ID,
			EditorID:     in.EditorID,
			Fields:       performance.EncodeStringList(fields),
			Before:       datatypes.JSON(beforeJSON),
			After:        datatypes.JSON(afterJSON),
			VersionAfter: in.ExpectedVersion + 1,
			CreatedAt:    editedAt,
		}
		if _, err := a.deps.Edits.Create(dbc, []*performance.ReviewEdit{edit}); err != nil {
			return err
		}

		updated, err := a.deps.Reviews.GetByID(dbc, current.ID)
		if err != nil {
			return err
		}
		out = domainagg.ApplyHumanEditResult{Review: updated, Edit: edit, FromStatus: current.Status}
		return nil
	})
	return out, err
}

func (a *reviewDraftAggregate) Transition(ctx context.Context, in domainagg.TransitionInput) (domainagg.TransitionResult, error) {
	op := domainagg.ReviewDraftAggregateContract.Op("Transition")
	var out domainagg.TransitionResult
	if in.ReviewID == uuid.Nil || in.ActorID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing review_id or actor_id", nil)
	}
	allowedFrom, ok := transitionSources[in.To]
	if !ok {
		return out, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("unsupported target status %q", in.To), nil)
	}
	if a.deps.Reviews == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "review repo not configured", nil)
	}
	at := in.At.UTC()
	if at.IsZero() {
		at = time.Now().UTC()
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		current, err := a.deps.Reviews.LockByID(dbc, in.ReviewID)
		if err != nil {
			return err
		}
		if current == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("review not found: %s", in.ReviewID), nil)
		}
		if current.Archived {
			return ConflictError("archived reviews cannot change status")
		}
		if err := RequireStatusAllowed(current.Status, allowedFrom...); err != nil {
			return ConflictError(fmt.Sprintf("cannot move review from %q to %q", current.Status, in.To))
		}
		if err := RequireVersionMatch(current.Version, in.ExpectedVersion); err != nil {
			return err
		}

		updates := map[string]any{
			"status":     in.To,
			"updated_at": at,
		}
		switch in.To {
		case performance.ReviewStatusSubmitted:
			updates["submitted_at"] = at
		case performance.ReviewStatusApproved:
			updates["approved_at"] = at
			updates["approved_by"] = in.ActorID
		}
		ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, domainagg.ReviewDraftAggregateContract.Table, current.ID, in.ExpectedVersion, updates)
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "review changed during status transition"); err != nil {
			return err
		}
		updated, err := a.deps.Reviews.GetByID(dbc, current.ID)
		if err != nil {
			return err
		}
		out = domainagg.TransitionResult{Review: updated, FromStatus: current.Status}
		return nil
	})
	return out, err
}

var transitionSources = map[string][]string{
	performance.ReviewStatusSubmitted: {performance.ReviewStatusAIGenerated, performance.ReviewStatusHumanEdited},
	performance.ReviewStatusApproved:  {performance.ReviewStatusSubmitted},
}

func isGeneratedField(f string) bool {
	for _, g := range performance.GeneratedFields {
		if g == f {
			return true
		}
	}
	return false
}

func applyContent(r *performance.PerformanceReview, content map[string]string) {
	for _, f := range performance.GeneratedFields {
		v, ok := content[f]
		if !ok {
			continue
		}
		text := v
		switch f {
		case performance.FieldStrengths:
			r.Strengths = &text
		case performance.FieldAreasForImprovement:
			r.AreasForImprovement = &text
		case performance.FieldAchievements:
			r.Achievements = &text
		case performance.FieldGoalsForNextPeriod:
			r.GoalsForNextPeriod = &text
		}
	}
}
