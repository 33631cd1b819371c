package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
	"github.com/yungbote/perfinsight-backend/internal/modules/insights"
	"github.com/yungbote/perfinsight-backend/internal/modules/reviewgen"
	"github.com/yungbote/perfinsight-backend/internal/platform/ctxutil"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
	"github.com/yungbote/perfinsight-backend/internal/services"
)

type stubReviews struct {
	err      error
	lastEdit services.EditReviewInput
	lastGen  services.GenerateReviewInput
}

func (s *stubReviews) Generate(ctx context.Context, in services.GenerateReviewInput) (*services.GenerateReviewResult, error) {
	s.lastGen = in
	if s.err != nil {
		return nil, s.err
	}
	return &services.GenerateReviewResult{Review: &types.PerformanceReview{ID: uuid.New(), Version: 1}}, nil
}

func (s *stubReviews) Get(ctx context.Context, actorID, reviewID uuid.UUID) (*types.PerformanceReview, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &types.PerformanceReview{ID: reviewID}, nil
}

func (s *stubReviews) GetOriginal(ctx context.Context, actorID, reviewID uuid.UUID) (map[string]string, error) {
	return map[string]string{}, s.err
}

func (s *stubReviews) ListEdits(ctx context.Context, actorID, reviewID uuid.UUID) ([]*types.ReviewEdit, error) {
	return []*types.ReviewEdit{}, s.err
}

func (s *stubReviews) ApplyHumanEdit(ctx context.Context, in services.EditReviewInput) (*services.EditReviewResult, error) {
	s.lastEdit = in
	if s.err != nil {
		return nil, s.err
	}
	return &services.EditReviewResult{Review: &types.PerformanceReview{ID: in.ReviewID}}, nil
}

func (s *stubReviews) Submit(ctx context.Context, actorID, reviewID uuid.UUID, expectedVersion int) (*types.PerformanceReview, error) {
	return &types.PerformanceReview{ID: reviewID}, s.err
}

func (s *stubReviews) Approve(ctx context.Context, actorID, reviewID uuid.UUID, expectedVersion int) (*types.PerformanceReview, error) {
	return &types.PerformanceReview{ID: reviewID}, s.err
}

func (s *stubReviews) IndexEvidence(ctx context.Context, actorID, employeeID uuid.UUID) (*reviewgen.IndexOutput, error) {
	return &reviewgen.IndexOutput{}, s.err
}

type stubSentiment struct {
	batchOut *insights.BatchOutput
	err      error
}

func (s *stubSentiment) Analyze(ctx context.Context, actorID, feedbackID uuid.UUID) (*insights.AnalyzeOutput, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &insights.AnalyzeOutput{}, nil
}

func (s *stubSentiment) AnalyzeBatch(ctx context.Context, actorID uuid.UUID, ids []uuid.UUID) (*insights.BatchOutput, error) {
	return s.batchOut, s.err
}

func (s *stubSentiment) Summarize(ctx context.Context, actorID, employeeID uuid.UUID, period string) (*sentiment.Trend, error) {
	return &sentiment.Trend{EmployeeID: employeeID, Period: period}, s.err
}

func (s *stubSentiment) ListAlerts(ctx context.Context, actorID, employeeID uuid.UUID, includeAck bool) ([]*sentiment.SentimentAlert, error) {
	return []*sentiment.SentimentAlert{}, s.err
}

func (s *stubSentiment) Acknowledge(ctx context.Context, actorID, alertID uuid.UUID) (*sentiment.SentimentAlert, error) {
	return &sentiment.SentimentAlert{ID: alertID}, s.err
}

func (s *stubSentiment) SummarizeRecent(ctx context.Context, since time.Time, period string) (*services.SummarizeRecentResult, error) {
	return &services.SummarizeRecentResult{}, s.err
}

func newTestEngine(t *testing.T, actor uuid.UUID, reviews services.ReviewService, sent services.SentimentService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if actor != uuid.Nil {
			c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{ActorID: actor}))
		}
		c.Next()
	})
	rh := NewReviewHandler(log, reviews)
	sh := NewSentimentHandler(log, sent)
	r.POST("/api/reviews/generate", rh.Generate)
	r.GET("/api/reviews/:id", rh.Get)
	r.PATCH("/api/reviews/:id", rh.Edit)
	r.POST("/api/reviews/:id/approve", rh.Approve)
	r.POST("/api/feedback/analyze", sh.AnalyzeBatch)
	r.GET("/api/employees/:id/sentiment", sh.Summarize)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return env.Error.Code
}

func TestReviewHandlerMapsServiceErrors(t *testing.T) {
	id := uuid.New()
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"scope", &types.InsufficientScopeError{}, http.StatusForbidden, "insufficient_scope"},
		{"parse", &types.GenerationParseError{Attempts: 2}, http.StatusUnprocessableEntity, "generation_parse_failed"},
		{"timeout", &types.GenerationTimeoutError{Stage: "generate"}, http.StatusGatewayTimeout, "generation_timeout"},
		{"conflict", &types.EditConflictError{ReviewID: id}, http.StatusConflict, "edit_conflict"},
		{"not found", &types.NotFoundError{Kind: "review", ID: id}, http.StatusNotFound, "review_not_found"},
		{"validation", &types.ValidationError{Field: "fields"}, http.StatusBadRequest, "invalid_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestEngine(t, uuid.New(), &stubReviews{err: tc.err}, &stubSentiment{})
			rec := do(r, http.MethodPatch, "/api/reviews/"+id.String(), `{"expected_version":1,"fields":{"strengths":"x"}}`)
			if rec.Code != tc.status {
				t.Fatalf("status: want=%d got=%d", tc.status, rec.Code)
			}
			if got := errorCode(t, rec); got != tc.code {
				t.Fatalf("code: want=%s got=%s", tc.code, got)
			}
		})
	}
}

func TestReviewHandlerRequestShapes(t *testing.T) {
	actor := uuid.New()
	reviews := &stubReviews{}
	r := newTestEngine(t, actor, reviews, &stubSentiment{})
	employeeID := uuid.New()

	rec := do(r, http.MethodPost, "/api/reviews/generate", `{"employee_id":"`+employeeID.String()+`","review_type":"quarterly"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("generate status: want=%d got=%d", http.StatusCreated, rec.Code)
	}
	if reviews.lastGen.ActorID != actor || reviews.lastGen.EmployeeID != employeeID || reviews.lastGen.ReviewType != "quarterly" {
		t.Fatalf("generate input: got=%+v", reviews.lastGen)
	}

	rec = do(r, http.MethodPost, "/api/reviews/generate", `{"employee_id":"`+employeeID.String()+`","period_start":"2026-01-01T00:00:00Z"}`)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "invalid_period" {
		t.Fatalf("half window: want 400 invalid_period got=%d", rec.Code)
	}

	id := uuid.New()
	rec = do(r, http.MethodPatch, "/api/reviews/"+id.String(), `{"expected_version":4,"fields":{"achievements":"Shipped v2"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit status: want=200 got=%d", rec.Code)
	}
	if reviews.lastEdit.EditorID != actor || reviews.lastEdit.ExpectedVersion != 4 || reviews.lastEdit.Patches["achievements"] != "Shipped v2" {
		t.Fatalf("edit input: got=%+v", reviews.lastEdit)
	}

	if rec := do(r, http.MethodGet, "/api/reviews/not-a-uuid", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: want=400 got=%d", rec.Code)
	}
}

func TestHandlersRequireActor(t *testing.T) {
	r := newTestEngine(t, uuid.Nil, &stubReviews{}, &stubSentiment{})
	rec := do(r, http.MethodGet, "/api/reviews/"+uuid.NewString(), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: want=401 got=%d", rec.Code)
	}
}

func TestSentimentHandlerBatchFailureKeepsPartialResults(t *testing.T) {
	failed := uuid.New()
	sent := &stubSentiment{
		batchOut: &insights.BatchOutput{Failed: []uuid.UUID{failed}},
		err:      &sentiment.BatchAnalysisError{Total: 1, Failed: 1, Threshold: 0.5},
	}
	r := newTestEngine(t, uuid.New(), &stubReviews{}, sent)
	rec := do(r, http.MethodPost, "/api/feedback/analyze", `{"feedback_ids":["`+failed.String()+`"]}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status: want=%d got=%d", http.StatusBadGateway, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), failed.String()) {
		t.Fatalf("partial results missing from body: %s", rec.Body.String())
	}

}
