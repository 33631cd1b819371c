package steps

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/perfinsight-backend/internal/data/repos"
	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

// AccessChecker decides whether an actor may read an employee's performance data.
type AccessChecker interface {
	CanRead(ctx context.Context, actorID, employeeID uuid.UUID) (bool, error)
}

type AggregateDeps struct {
	Log *logger.Logger

	Employees repos.EmployeeRepo
	Okrs      repos.OkrRepo
	Feedback  repos.FeedbackRepo
	Reviews   repos.ReviewRepo
	Cycles    repos.ReviewCycleRepo
	// Analyses is optional; when set, feedback summaries carry the stored sentiment score.
	Analyses repos.AnalysisRepo
	Access   AccessChecker

	Config Config
}

type AggregateInput struct {
	ActorID    uuid.UUID
	EmployeeID uuid.UUID
	// Window is optional; nil resolves to the default window.
	Window *types.Window
	// ExcludeReviewID keeps the review being regenerated out of its own history.
	ExcludeReviewID *uuid.UUID
	Now             time.Time
}

// AggregateEvidence collects the OKRs, feedback and prior reviews for one employee and window.
// It never writes.
func AggregateEvidence(ctx context.Context, deps AggregateDeps, in AggregateInput) (types.EvidenceBundle, error) {
	var out types.EvidenceBundle
	if deps.Employees == nil || deps.Okrs == nil || deps.Feedback == nil || deps.Reviews == nil {
		return out, fmt.Errorf("aggregate evidence: missing deps")
	}
	if in.EmployeeID == uuid.Nil {
		return out, &types.ValidationError{Field: "employee_id", Message: "required"}
	}
	if deps.Access == nil {
		return out, &types.InsufficientScopeError{ActorID: in.ActorID, EmployeeID: in.EmployeeID}
	}
	ok, err := deps.Access.CanRead(ctx, in.ActorID, in.EmployeeID)
	if err != nil {
		return out, fmt.Errorf("aggregate evidence: access check: %w", err)
	}
	if !ok {
		return out, &types.InsufficientScopeError{ActorID: in.ActorID, EmployeeID: in.EmployeeID}
	}

	dbc := dbctx.Context{Ctx: ctx}
	emp, err := deps.Employees.GetByID(dbc, in.EmployeeID)
	if err != nil {
		return out, fmt.Errorf("aggregate evidence: load employee: %w", err)
	}
	if emp == nil {
		return out, &types.NotFoundError{Kind: "employee", ID: in.EmployeeID}
	}

	now := in.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}
	window, err := ResolveWindow(dbc, deps, emp.OrgID, in.Window, now)
	if err != nil {
		return out, err
	}

	okrs, err := deps.Okrs.ListForEmployee(dbc, emp.ID, window)
	if err != nil {
		return out, fmt.Errorf("aggregate evidence: okrs: %w", err)
	}
	feedback, err := deps.Feedback.ListForReceiver(dbc, emp.ID, window)
	if err != nil {
		return out, fmt.Errorf("aggregate evidence: feedback: %w", err)
	}
	prior, err := deps.Reviews.ListPriorForEmployee(dbc, emp.ID, window, in.ExcludeReviewID)
	if err != nil {
		return out, fmt.Errorf("aggregate evidence: prior reviews: %w", err)
	}

	sentimentByID := map[uuid.UUID]float64{}
	if deps.Analyses != nil && len(feedback) > 0 {
		ids := make([]uuid.UUID, 0, len(feedback))
		for _, f := range feedback {
			ids = append(ids, f.ID)
		}
		rows, err := deps.Analyses.GetByFeedbackIDs(dbc, ids)
		if err != nil {
			// Sentiment enrichment is optional.
			if deps.Log != nil {
				deps.Log.Warn("feedback analysis lookup failed", "employee_id", emp.ID, "error", err)
			}
		}
		for _, r := range rows {
			if r != nil {
				sentimentByID[r.FeedbackID] = r.SentimentScore
			}
		}
	}

	out = types.EvidenceBundle{
		OrgID:         emp.OrgID,
		EmployeeID:    emp.ID,
		EmployeeName:  emp.FullName(),
		Title:         emp.Title,
		FocusAreas:    emp.FocusAreaList(),
		Window:        window,
		Okrs:          make([]types.OkrSummary, 0, len(okrs)),
		FeedbackItems: make([]types.FeedbackSummary, 0, len(feedback)),
		PriorReviews:  make([]types.ReviewSummary, 0, len(prior)),
	}
	for _, o := range okrs {
		if o == nil {
			continue
		}
		out.Okrs = append(out.Okrs, types.OkrSummary{
			ID:         o.ID,
			Objective:  strings.TrimSpace(o.Objective),
			KeyResults: strings.TrimSpace(o.KeyResults),
			Progress:   o.Progress,
			Status:     o.Status,
			Owned:      o.OwnerID == emp.ID,
			Timestamp:  o.UpdatedAt.UTC(),
		})
	}
	for _, f := range feedback {
		if f == nil || strings.TrimSpace(f.Text) == "" {
			continue
		}
		item := types.FeedbackSummary{
			ID:        f.ID,
			GiverID:   f.GiverID,
			Text:      strings.TrimSpace(f.Text),
			Rating:    f.Rating,
			Timestamp: f.CreatedAt.UTC(),
		}
		if s, ok := sentimentByID[f.ID]; ok {
			v := s
			item.Sentiment = &v
		}
		out.FeedbackItems = append(out.FeedbackItems, item)
	}
	for _, r := range prior {
		if r == nil {
			continue
		}
		out.PriorReviews = append(out.PriorReviews, types.ReviewSummary{
			ID:         r.ID,
			ReviewType: r.ReviewType,
			Status:     r.Status,
			Text:       reviewDigest(r),
			Timestamp:  r.PeriodEnd.UTC(),
		})
	}

	sort.SliceStable(out.Okrs, func(i, j int) bool { return out.Okrs[i].Timestamp.After(out.Okrs[j].Timestamp) })
	sort.SliceStable(out.FeedbackItems, func(i, j int) bool {
		return out.FeedbackItems[i].Timestamp.After(out.FeedbackItems[j].Timestamp)
	})
	sort.SliceStable(out.PriorReviews, func(i, j int) bool {
		return out.PriorReviews[i].Timestamp.After(out.PriorReviews[j].Timestamp)
	})
	return out, nil
}

// ResolveWindow returns the requested window, or the span since the organization's last completed
// review cycle, or the trailing DefaultWindowMonths.
func ResolveWindow(dbc dbctx.Context, deps AggregateDeps, orgID uuid.UUID, requested *types.Window, now time.Time) (types.Window, error) {
	if requested != nil {
		w := types.Window{Start: requested.Start.UTC(), End: requested.End.UTC()}
		if w.End.IsZero() {
			w.End = now
		}
		if w.Start.IsZero() || !w.Start.Before(w.End) {
			return types.Window{}, &types.ValidationError{Field: "window", Message: "start must be before end"}
		}
		return w, nil
	}
	cfg := deps.Config.WithDefaults()
	if deps.Cycles != nil {
		cycle, err := deps.Cycles.LatestCompletedForOrg(dbc, orgID, now)
		if err != nil {
			return types.Window{}, fmt.Errorf("resolve window: review cycle: %w", err)
		}
		if cycle != nil && cycle.EndDate.Before(now) {
			return types.Window{Start: cycle.EndDate.UTC(), End: now}, nil
		}
	}
	return types.Window{Start: now.AddDate(0, -cfg.DefaultWindowMonths, 0), End: now}, nil
}

func reviewDigest(r *types.PerformanceReview) string {
	parts := make([]string, 0, len(types.GeneratedFields))
	for _, field := range types.GeneratedFields {
		v := r.Field(field)
		if v == nil || strings.TrimSpace(*v) == "" {
			continue
		}
		parts = append(parts, field+": "+strings.TrimSpace(*v))
	}
	return strings.Join(parts, "\n")
}
