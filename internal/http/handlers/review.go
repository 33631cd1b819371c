package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/http/response"
	"github.com/yungbote/perfinsight-backend/internal/platform/ctxutil"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
	"github.com/yungbote/perfinsight-backend/internal/services"
)

type ReviewHandler struct {
	log     *logger.Logger
	reviews services.ReviewService
}

func NewReviewHandler(log *logger.Logger, reviews services.ReviewService) *ReviewHandler {
	return &ReviewHandler{log: log.With("handler", "ReviewHandler"), reviews: reviews}
}

type generateReviewRequest struct {
	EmployeeID  uuid.UUID  `json:"employee_id"`
	ReviewID    *uuid.UUID `json:"review_id,omitempty"`
	CycleID     *uuid.UUID `json:"cycle_id,omitempty"`
	ReviewType  string     `json:"review_type"`
	PeriodStart *time.Time `json:"period_start,omitempty"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`
	FocusAreas  []string   `json:"focus_areas"`
}

type editReviewRequest struct {
	ExpectedVersion int               `json:"expected_version"`
	Fields          map[string]string `json:"fields"`
}

type versionRequest struct {
	ExpectedVersion int `json:"expected_version"`
}

// requireActor writes a 401 and returns false for anonymous requests.
func requireActor(c *gin.Context) (uuid.UUID, bool) {
	actorID := ctxutil.ActorID(c.Request.Context())
	if actorID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return uuid.Nil, false
	}
	return actorID, true
}

func parseIDParam(c *gin.Context, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, code, err)
		return uuid.Nil, false
	}
	return id, true
}

// POST /api/reviews/generate
func (h *ReviewHandler) Generate(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	var req generateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	in := services.GenerateReviewInput{
		ActorID:    actorID,
		EmployeeID: req.EmployeeID,
		ReviewID:   req.ReviewID,
		CycleID:    req.CycleID,
		ReviewType: req.ReviewType,
		FocusAreas: req.FocusAreas,
	}
	if req.PeriodStart != nil || req.PeriodEnd != nil {
		if req.PeriodStart == nil || req.PeriodEnd == nil || !req.PeriodEnd.After(*req.PeriodStart) {
			response.RespondError(c, http.StatusBadRequest, "invalid_period", errors.New("period_start and period_end must both be set and ordered"))
			return
		}
		in.Window = &types.Window{Start: req.PeriodStart.UTC(), End: req.PeriodEnd.UTC()}
	}
	res, err := h.reviews.Generate(c.Request.Context(), in)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	status := http.StatusCreated
	if res.Skipped || req.ReviewID != nil {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"result": res})
}

// GET /api/reviews/:id
func (h *ReviewHandler) Get(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	reviewID, ok := parseIDParam(c, "invalid_review_id")
	if !ok {
		return
	}
	review, err := h.reviews.Get(c.Request.Context(), actorID, reviewID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"review": review})
}

// GET /api/reviews/:id/original
func (h *ReviewHandler) GetOriginal(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	reviewID, ok := parseIDParam(c, "invalid_review_id")
	if !ok {
		return
	}
	original, err := h.reviews.GetOriginal(c.Request.Context(), actorID, reviewID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"original": original})
}

// GET /api/reviews/:id/edits
func (h *ReviewHandler) ListEdits(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	reviewID, ok := parseIDParam(c, "invalid_review_id")
	if !ok {
		return
	}
	edits, err := h.reviews.ListEdits(c.Request.Context(), actorID, reviewID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"edits": edits})
}

// PATCH /api/reviews/:id
func (h *ReviewHandler) Edit(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	reviewID, ok := parseIDParam(c, "invalid_review_id")
	if !ok {
		return
	}
	var req editReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.reviews.ApplyHumanEdit(c.Request.Context(), services.EditReviewInput{
		ReviewID:        reviewID,
		EditorID:        actorID,
		ExpectedVersion: req.ExpectedVersion,
		Patches:         req.Fields,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"review": res.Review, "edit": res.Edit})
}

// POST /api/reviews/:id/submit
func (h *ReviewHandler) Submit(c *gin.Context) {
	h.transition(c, h.reviews.Submit)
}

// POST /api/reviews/:id/approve
func (h *ReviewHandler) Approve(c *gin.Context) {
	h.transition(c, h.reviews.Approve)
}

func (h *ReviewHandler) transition(c *gin.Context, fn func(ctx context.Context, actorID, reviewID uuid.UUID, expectedVersion int) (*types.PerformanceReview, error)) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	reviewID, ok := parseIDParam(c, "invalid_review_id")
	if !ok {
		return
	}
	var req versionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	review, err := fn(c.Request.Context(), actorID, reviewID, req.ExpectedVersion)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"review": review})
}

// POST /api/employees/:id/index
func (h *ReviewHandler) IndexEvidence(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	employeeID, ok := parseIDParam(c, "invalid_employee_id")
	if !ok {
		return
	}
	out, err := h.reviews.IndexEvidence(c.Request.Context(), actorID, employeeID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"indexed": out})
}
