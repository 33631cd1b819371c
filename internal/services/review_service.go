package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/perfinsight-backend/internal/data/repos"
	domainagg "github.com/yungbote/perfinsight-backend/internal/domain/aggregates"
	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/modules/reviewgen"
	"github.com/yungbote/perfinsight-backend/internal/observability"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

const (
	stageAggregate = "aggregate"
	stageQuality   = "quality"
	stageRetrieve  = "retrieve"
	stageGenerate  = "generate"
	stageFinalize  = "finalize"
	stagePersist   = "persist"
)

type GenerateReviewInput struct {
	ActorID    uuid.UUID
	EmployeeID uuid.UUID
	// ReviewID regenerates an existing draft; nil creates a new review.
	ReviewID   *uuid.UUID
	CycleID    *uuid.UUID
	ReviewType string
	Window     *types.Window
	// FocusAreas override the employee's stored focus areas when non-empty.
	FocusAreas []string
}

type GenerateReviewResult struct {
	// Review is nil when Skipped.
	Review            *types.PerformanceReview `json:"review,omitempty"`
	Skipped           bool                     `json:"skipped"`
	Content           map[string]string        `json:"content"`
	Quality           types.QualityScore       `json:"quality"`
	Confidence        float64                  `json:"confidence"`
	Sources           []types.Source           `json:"sources"`
	RetrievalDegraded bool                     `json:"retrieval_degraded"`
	GenerationRetried bool                     `json:"generation_retried"`
}

type EditReviewInput struct {
	ReviewID        uuid.UUID
	EditorID        uuid.UUID
	ExpectedVersion int
	Patches         map[string]string
}

type EditReviewResult struct {
	Review *types.PerformanceReview `json:"review"`
	Edit   *types.ReviewEdit        `json:"edit"`
}

type ReviewService interface {
	Generate(ctx context.Context, in GenerateReviewInput) (*GenerateReviewResult, error)
	Get(ctx context.Context, actorID, reviewID uuid.UUID) (*types.PerformanceReview, error)
	GetOriginal(ctx context.Context, actorID, reviewID uuid.UUID) (map[string]string, error)
	ListEdits(ctx context.Context, actorID, reviewID uuid.UUID) ([]*types.ReviewEdit, error)
	// ApplyHumanEdit patches editable fields under the expected version. The reviewed employee may
	// patch only employee_comments.
	ApplyHumanEdit(ctx context.Context, in EditReviewInput) (*EditReviewResult, error)
	Submit(ctx context.Context, actorID, reviewID uuid.UUID, expectedVersion int) (*types.PerformanceReview, error)
	Approve(ctx context.Context, actorID, reviewID uuid.UUID, expectedVersion int) (*types.PerformanceReview, error)
	IndexEvidence(ctx context.Context, actorID, employeeID uuid.UUID) (*reviewgen.IndexOutput, error)
}

type ReviewServiceDeps struct {
	Log      *logger.Logger
	Pipeline reviewgen.Usecases

	Employees repos.EmployeeRepo
	Reviews   repos.ReviewRepo
	Edits     repos.ReviewEditRepo
	Runs      repos.GenerationRunRepo
	Drafts    domainagg.ReviewDraftAggregate

	Access AccessPolicy
	Notify Notifier
	// Now is overridable for tests.
	Now func() time.Time
}

type reviewService struct {
	deps  ReviewServiceDeps
	log   *logger.Logger
	cfg   reviewgen.Config
	locks *reviewLocks
}

func NewReviewService(deps ReviewServiceDeps) ReviewService {
	log := deps.Log.With("service", "ReviewService")
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &reviewService{
		deps:  deps,
		log:   log,
		cfg:   deps.Pipeline.Config(),
		locks: newReviewLocks(),
	}
}

func (s *reviewService) now() time.Time { return s.deps.Now().UTC() }

func (s *reviewService) Generate(ctx context.Context, in GenerateReviewInput) (*GenerateReviewResult, error) {
	start := time.Now()
	if in.ActorID == uuid.Nil {
		return nil, &types.ValidationError{Field: "actor_id", Message: "required"}
	}
	if in.EmployeeID == uuid.Nil {
		return nil, &types.ValidationError{Field: "employee_id", Message: "required"}
	}
	reviewType := strings.TrimSpace(in.ReviewType)
	if reviewType == "" {
		reviewType = types.ReviewTypeAnnual
	}
	if !types.IsValidReviewType(reviewType) {
		return nil, &types.ValidationError{Field: "review_type", Message: fmt.Sprintf("unknown review type %q", reviewType)}
	}
	in.ReviewType = reviewType

	deadline := s.cfg.Timeouts.Overall
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()
	runCtx, span := observability.StartSpan(runCtx, "review.generate",
		attribute.String("employee_id", in.EmployeeID.String()),
		attribute.String("review_type", reviewType),
	)

	run := &types.ReviewGenerationRun{
		EmployeeID: in.EmployeeID,
		ActorID:    in.ActorID,
		ReviewID:   in.ReviewID,
	}
	res, stage, err := s.generate(runCtx, in, run)
	if err != nil && ctx.Err() == nil && !types.IsGenerationTimeout(err) &&
		(runCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded)) {
		err = &types.GenerationTimeoutError{Stage: stage, Deadline: deadline, Cause: err}
	}
	observability.EndSpan(span, err)

	outcome := generationOutcome(res, err)
	observability.Current().IncGeneration(outcome)
	if res != nil && res.Review != nil {
		observability.Current().ObserveConfidence(res.Confidence)
	}
	if recordable(err) {
		s.recordRun(ctx, run, outcome, err, time.Since(start))
	}
	if err != nil {
		s.log.Warn("review generation failed", "employee_id", in.EmployeeID, "stage", stage, "outcome", outcome, "error", err)
		return nil, err
	}
	s.log.Info("review generation finished",
		"employee_id", in.EmployeeID,
		"outcome", outcome,
		"confidence", res.Confidence,
		"retrieval_degraded", res.RetrievalDegraded,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// generate runs the pipeline stages in order and reports the stage that was running when it stopped.
func (s *reviewService) generate(ctx context.Context, in GenerateReviewInput, run *types.ReviewGenerationRun) (*GenerateReviewResult, string, error) {
	p := s.deps.Pipeline
	now := s.now()

	var bundle types.EvidenceBundle
	err := s.stage(ctx, stageAggregate, func(ctx context.Context) error {
		var err error
		bundle, err = p.AggregateEvidence(ctx, reviewgen.AggregateInput{
			ActorID:         in.ActorID,
			EmployeeID:      in.EmployeeID,
			Window:          in.Window,
			ExcludeReviewID: in.ReviewID,
			Now:             now,
		})
		return err
	})
	if err != nil {
		return nil, stageAggregate, err
	}
	run.OrgID = bundle.OrgID

	var existing *types.PerformanceReview
	if in.ReviewID != nil && *in.ReviewID != uuid.Nil {
		unlock := s.locks.Lock(*in.ReviewID)
		defer unlock()
		existing, err = s.deps.Reviews.GetByID(dbctx.Context{Ctx: ctx}, *in.ReviewID)
		if err != nil {
			return nil, stageAggregate, err
		}
		if existing == nil {
			return nil, stageAggregate, &types.NotFoundError{Kind: "review", ID: *in.ReviewID}
		}
		if existing.EmployeeID != in.EmployeeID {
			return nil, stageAggregate, &types.ValidationError{Field: "review_id", Message: "review belongs to a different employee"}
		}
		if !existing.Generatable() {
			return nil, stageAggregate, &types.EditConflictError{ReviewID: existing.ID, Reason: fmt.Sprintf("review in status %q can no longer be generated", existing.Status)}
		}
	}

	res := &GenerateReviewResult{}
	_ = s.stage(ctx, stageQuality, func(ctx context.Context) error {
		res.Quality = p.ScoreQuality(bundle)
		return nil
	})
	run.QualityOverall = res.Quality.Overall

	focus := in.FocusAreas
	if len(focus) == 0 {
		focus = bundle.FocusAreas
	}
	var rc types.RetrievedContext
	if bundle.Empty() {
		rc = types.RetrievedContext{Entries: []types.ContextEntry{}}
	} else {
		_ = s.stage(ctx, stageRetrieve, func(ctx context.Context) error {
			rc = p.RetrieveContext(ctx, reviewgen.RetrieveInput{
				Query:      p.BuildQuery(bundle, focus),
				OrgID:      bundle.OrgID,
				EmployeeID: bundle.EmployeeID,
			})
			if rc.Degraded {
				return errRetrievalDegraded
			}
			return nil
		})
	}
	res.RetrievalDegraded = rc.Degraded
	run.RetrievalDegraded = rc.Degraded
	if err := ctx.Err(); err != nil {
		return nil, stageRetrieve, err
	}

	var gen reviewgen.GenerateOutput
	err = s.stage(ctx, stageGenerate, func(ctx context.Context) error {
		var err error
		gen, err = p.GenerateDraft(ctx, reviewgen.GenerateInput{
			Bundle:     bundle,
			Quality:    res.Quality,
			Context:    rc,
			ReviewType: in.ReviewType,
			FocusAreas: focus,
		})
		return err
	})
	run.GenerationRetried = gen.Retried
	if err != nil {
		return nil, stageGenerate, err
	}
	res.GenerationRetried = gen.Retried
	res.Content = gen.Content
	if gen.Skipped {
		res.Skipped = true
		res.Sources = []types.Source{}
		return res, stageGenerate, nil
	}

	var fin reviewgen.FinalizeOutput
	_ = s.stage(ctx, stageFinalize, func(ctx context.Context) error {
		fin = p.Finalize(reviewgen.FinalizeInput{Bundle: bundle, Quality: res.Quality, Context: rc, Generation: gen})
		return nil
	})
	res.Confidence = fin.Confidence
	res.Sources = fin.Sources
	confidence := fin.Confidence
	run.Confidence = &confidence

	if err := ctx.Err(); err != nil {
		return nil, stagePersist, err
	}
	if s.deps.Drafts == nil {
		return nil, stagePersist, fmt.Errorf("review draft aggregate not configured")
	}
	var saved domainagg.FinalizeGenerationResult
	err = s.stage(ctx, stagePersist, func(ctx context.Context) error {
		finIn := domainagg.FinalizeGenerationInput{
			ReviewID:    in.ReviewID,
			OrgID:       bundle.OrgID,
			EmployeeID:  bundle.EmployeeID,
			ReviewerID:  in.ActorID,
			CycleID:     in.CycleID,
			ReviewType:  in.ReviewType,
			Window:      bundle.Window,
			Content:     gen.Content,
			Confidence:  fin.Confidence,
			Sources:     fin.Sources,
			GeneratedAt: now,
		}
		if existing != nil {
			finIn.ExpectedVersion = existing.Version
			finIn.ReviewerID = existing.ReviewerID
		}
		var err error
		saved, err = s.deps.Drafts.FinalizeGeneration(ctx, finIn)
		return err
	})
	if err != nil {
		var reviewID uuid.UUID
		if in.ReviewID != nil {
			reviewID = *in.ReviewID
		}
		return nil, stagePersist, mapReviewError(reviewID, err)
	}
	res.Review = saved.Review
	if saved.Review != nil {
		id := saved.Review.ID
		run.ReviewID = &id
		from := types.ReviewStatusDraft
		if existing != nil {
			from = existing.Status
		}
		if from != saved.Review.Status {
			s.notifyStatus(ctx, saved.Review, from)
		}
	}
	return res, stagePersist, nil
}

var errRetrievalDegraded = errors.New("retrieval degraded")

// stage times fn, records a span and the stage metric. Errors pass through unchanged.
func (s *reviewService) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	start := time.Now()
	stageCtx, span := observability.StartSpan(ctx, "review.generate."+name)
	err := fn(stageCtx)
	status := "success"
	switch {
	case errors.Is(err, errRetrievalDegraded):
		status = "degraded"
		err = nil
	case err != nil && ctx.Err() != nil:
		status = "timeout"
	case err != nil:
		status = "error"
	}
	observability.EndSpan(span, err)
	observability.Current().ObservePipelineStage(name, status, time.Since(start))
	return err
}

func (s *reviewService) recordRun(ctx context.Context, run *types.ReviewGenerationRun, outcome string, err error, dur time.Duration) {
	if s.deps.Runs == nil {
		return
	}
	run.Outcome = outcome
	run.DurationMS = dur.Milliseconds()
	run.CreatedAt = s.now()
	if err != nil {
		run.Error = err.Error()
	}
	if _, cerr := s.deps.Runs.Create(dbctx.Context{Ctx: context.WithoutCancel(ctx)}, run); cerr != nil {
		s.log.Warn("failed to record generation run", "employee_id", run.EmployeeID, "error", cerr)
	}
}

func generationOutcome(res *GenerateReviewResult, err error) string {
	switch {
	case err == nil && res != nil && res.Skipped:
		return types.RunOutcomeSkipped
	case err == nil:
		return types.RunOutcomeSucceeded
	case types.IsGenerationParse(err):
		return types.RunOutcomeParseFailed
	case types.IsGenerationTimeout(err):
		return types.RunOutcomeTimedOut
	case types.IsEditConflict(err):
		return types.RunOutcomeConflict
	default:
		return types.RunOutcomeFailed
	}
}

// recordable leaves requests rejected before any pipeline work out of the audit trail.
func recordable(err error) bool {
	return !types.IsInsufficientScope(err) && !types.IsValidation(err) && !types.IsNotFound(err)
}

// mapReviewError converts aggregate error codes into the pipeline's error kinds.
func mapReviewError(reviewID uuid.UUID, err error) error {
	if err == nil {
		return nil
	}
	var aggErr *domainagg.Error
	if !errors.As(err, &aggErr) {
		return err
	}
	switch aggErr.Code {
	case domainagg.CodeConflict:
		return &types.EditConflictError{ReviewID: reviewID, Reason: aggErr.Message, Cause: err}
	case domainagg.CodeNotFound:
		return &types.NotFoundError{Kind: "review", ID: reviewID}
	case domainagg.CodeValidation:
		return &types.ValidationError{Message: aggErr.Message}
	}
	return err
}

func (s *reviewService) loadReadable(ctx context.Context, actorID, reviewID uuid.UUID) (*types.PerformanceReview, error) {
	review, err := s.deps.Reviews.GetByID(dbctx.Context{Ctx: ctx}, reviewID)
	if err != nil {
		return nil, err
	}
	if review == nil {
		return nil, &types.NotFoundError{Kind: "review", ID: reviewID}
	}
	if err := s.requireRead(ctx, actorID, review.EmployeeID); err != nil {
		return nil, err
	}
	return review, nil
}

func (s *reviewService) requireRead(ctx context.Context, actorID, employeeID uuid.UUID) error {
	if s.deps.Access == nil {
		return &types.InsufficientScopeError{ActorID: actorID, EmployeeID: employeeID}
	}
	ok, err := s.deps.Access.CanRead(ctx, actorID, employeeID)
	if err != nil {
		return err
	}
	if !ok {
		return &types.InsufficientScopeError{ActorID: actorID, EmployeeID: employeeID}
	}
	return nil
}

func (s *reviewService) requireManage(ctx context.Context, actorID, employeeID uuid.UUID) error {
	if s.deps.Access == nil {
		return &types.InsufficientScopeError{ActorID: actorID, EmployeeID: employeeID}
	}
	ok, err := s.deps.Access.CanManage(ctx, actorID, employeeID)
	if err != nil {
		return err
	}
	if !ok {
		return &types.InsufficientScopeError{ActorID: actorID, EmployeeID: employeeID}
	}
	return nil
}

func (s *reviewService) Get(ctx context.Context, actorID, reviewID uuid.UUID) (*types.PerformanceReview, error) {
	return s.loadReadable(ctx, actorID, reviewID)
}

func (s *reviewService) GetOriginal(ctx context.Context, actorID, reviewID uuid.UUID) (map[string]string, error) {
	review, err := s.loadReadable(ctx, actorID, reviewID)
	if err != nil {
		return nil, err
	}
	return review.OriginalContent(), nil
}

func (s *reviewService) ListEdits(ctx context.Context, actorID, reviewID uuid.UUID) ([]*types.ReviewEdit, error) {
	if _, err := s.loadReadable(ctx, actorID, reviewID); err != nil {
		return nil, err
	}
	if s.deps.Edits == nil {
		return []*types.ReviewEdit{}, nil
	}
	return s.deps.Edits.ListByReview(dbctx.Context{Ctx: ctx}, reviewID)
}

func (s *reviewService) ApplyHumanEdit(ctx context.Context, in EditReviewInput) (*EditReviewResult, error) {
	if len(in.Patches) == 0 {
		return nil, &types.ValidationError{Field: "fields", Message: "at least one field patch is required"}
	}
	for field := range in.Patches {
		if !types.IsEditableField(field) {
			return nil, &types.ValidationError{Field: field, Message: "not an editable review field"}
		}
	}
	review, err := s.loadReadable(ctx, in.EditorID, in.ReviewID)
	if err != nil {
		return nil, err
	}
	for field := range in.Patches {
		if field != types.FieldEmployeeComments {
			if err := s.requireManage(ctx, in.EditorID, review.EmployeeID); err != nil {
				return nil, err
			}
			break
		}
	}
	if s.deps.Drafts == nil {
		return nil, fmt.Errorf("review draft aggregate not configured")
	}

	unlock := s.locks.Lock(review.ID)
	defer unlock()

	ctx, span := observability.StartSpan(ctx, "review.edit", attribute.String("review_id", review.ID.String()))
	res, err := s.deps.Drafts.ApplyHumanEdit(ctx, domainagg.ApplyHumanEditInput{
		ReviewID:             review.ID,
		EditorID:             in.EditorID,
		ExpectedVersion:      in.ExpectedVersion,
		Patches:              in.Patches,
		AllowEditorOverwrite: s.cfg.AllowEditorOverwrite,
		EditedAt:             s.now(),
	})
	err = mapReviewError(review.ID, err)
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	if res.Review != nil && res.FromStatus != res.Review.Status {
		s.notifyStatus(ctx, res.Review, res.FromStatus)
	}
	return &EditReviewResult{Review: res.Review, Edit: res.Edit}, nil
}

func (s *reviewService) Submit(ctx context.Context, actorID, reviewID uuid.UUID, expectedVersion int) (*types.PerformanceReview, error) {
	review, err := s.loadReadable(ctx, actorID, reviewID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, review, actorID, expectedVersion, types.ReviewStatusSubmitted)
}

func (s *reviewService) Approve(ctx context.Context, actorID, reviewID uuid.UUID, expectedVersion int) (*types.PerformanceReview, error) {
	review, err := s.loadReadable(ctx, actorID, reviewID)
	if err != nil {
		return nil, err
	}
	if err := s.requireManage(ctx, actorID, review.EmployeeID); err != nil {
		return nil, err
	}
	return s.transition(ctx, review, actorID, expectedVersion, types.ReviewStatusApproved)
}

func (s *reviewService) transition(ctx context.Context, review *types.PerformanceReview, actorID uuid.UUID, expectedVersion int, to string) (*types.PerformanceReview, error) {
	if s.deps.Drafts == nil {
		return nil, fmt.Errorf("review draft aggregate not configured")
	}
	unlock := s.locks.Lock(review.ID)
	defer unlock()

	res, err := s.deps.Drafts.Transition(ctx, domainagg.TransitionInput{
		ReviewID:        review.ID,
		ActorID:         actorID,
		ExpectedVersion: expectedVersion,
		To:              to,
		At:              s.now(),
	})
	if err != nil {
		return nil, mapReviewError(review.ID, err)
	}
	s.notifyStatus(ctx, res.Review, res.FromStatus)
	return res.Review, nil
}

// notifyStatus tells the people who act next. Drafts go to their reviewer, submitted reviews to the
// employee's manager, approved reviews to the employee and the reviewer.
func (s *reviewService) notifyStatus(ctx context.Context, review *types.PerformanceReview, from string) {
	if s.deps.Notify == nil || review == nil {
		return
	}
	var recipients []uuid.UUID
	switch review.Status {
	case types.ReviewStatusSubmitted:
		recipients = append(recipients, review.ReviewerID)
		if s.deps.Employees != nil {
			emp, err := s.deps.Employees.GetByID(dbctx.Context{Ctx: ctx}, review.EmployeeID)
			if err != nil {
				s.log.Warn("notification recipient lookup failed", "employee_id", review.EmployeeID, "error", err)
			}
			if emp != nil && emp.ManagerID != nil {
				recipients = []uuid.UUID{*emp.ManagerID}
			}
		}
	case types.ReviewStatusApproved:
		recipients = append(recipients, review.EmployeeID, review.ReviewerID)
	default:
		recipients = append(recipients, review.ReviewerID)
	}
	seen := map[uuid.UUID]bool{}
	for _, id := range recipients {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		s.deps.Notify.ReviewStatusChanged(ctx, id, review, from, review.Status)
	}
}

func (s *reviewService) IndexEvidence(ctx context.Context, actorID, employeeID uuid.UUID) (*reviewgen.IndexOutput, error) {
	if err := s.requireManage(ctx, actorID, employeeID); err != nil {
		return nil, err
	}
	out, err := s.deps.Pipeline.IndexEmployeeEvidence(ctx, reviewgen.IndexInput{EmployeeID: employeeID, Now: s.now()})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
