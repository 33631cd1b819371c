package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
	"github.com/yungbote/perfinsight-backend/internal/http/response"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
	"github.com/yungbote/perfinsight-backend/internal/services"
)

const maxBatchSize = 200

type SentimentHandler struct {
	log       *logger.Logger
	sentiment services.SentimentService
}

func NewSentimentHandler(log *logger.Logger, svc services.SentimentService) *SentimentHandler {
	return &SentimentHandler{log: log.With("handler", "SentimentHandler"), sentiment: svc}
}

type analyzeBatchRequest struct {
	FeedbackIDs []uuid.UUID `json:"feedback_ids"`
}

// POST /api/feedback/:id/analyze
func (h *SentimentHandler) Analyze(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	feedbackID, ok := parseIDParam(c, "invalid_feedback_id")
	if !ok {
		return
	}
	out, err := h.sentiment.Analyze(c.Request.Context(), actorID, feedbackID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"analysis": out.Result, "alerts": out.Alerts})
}

// POST /api/feedback/analyze
func (h *SentimentHandler) AnalyzeBatch(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	var req analyzeBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if len(req.FeedbackIDs) > maxBatchSize {
		response.RespondError(c, http.StatusBadRequest, "batch_too_large", errors.New("at most "+strconv.Itoa(maxBatchSize)+" feedback ids per batch"))
		return
	}
	out, err := h.sentiment.AnalyzeBatch(c.Request.Context(), actorID, req.FeedbackIDs)
	if err != nil {
		var batchErr *sentiment.BatchAnalysisError
		if errors.As(err, &batchErr) && out != nil {
			h.log.Warn("feedback batch exceeded failure threshold", "total", batchErr.Total, "failed", batchErr.Failed)
			response.RespondErrorWithDetails(c, err, out)
			return
		}
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"batch": out})
}

// GET /api/employees/:id/sentiment?period=week|month|quarter
func (h *SentimentHandler) Summarize(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	employeeID, ok := parseIDParam(c, "invalid_employee_id")
	if !ok {
		return
	}
	trend, err := h.sentiment.Summarize(c.Request.Context(), actorID, employeeID, c.Query("period"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"trend": trend})
}

// GET /api/employees/:id/alerts?include_acknowledged=true
func (h *SentimentHandler) ListAlerts(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	employeeID, ok := parseIDParam(c, "invalid_employee_id")
	if !ok {
		return
	}
	includeAck, _ := strconv.ParseBool(c.DefaultQuery("include_acknowledged", "false"))
	alerts, err := h.sentiment.ListAlerts(c.Request.Context(), actorID, employeeID, includeAck)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"alerts": alerts})
}

// POST /api/alerts/:id/acknowledge
func (h *SentimentHandler) Acknowledge(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	alertID, ok := parseIDParam(c, "invalid_alert_id")
	if !ok {
		return
	}
	alert, err := h.sentiment.Acknowledge(c.Request.Context(), actorID, alertID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"alert": alert})
}
