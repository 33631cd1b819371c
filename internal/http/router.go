package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/perfinsight-backend/internal/http/handlers"
	httpMW "github.com/yungbote/perfinsight-backend/internal/http/middleware"
	"github.com/yungbote/perfinsight-backend/internal/observability"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string

	AuthMiddleware *httpMW.AuthMiddleware
	Metrics        *observability.Metrics

	HealthHandler    *httpH.HealthHandler
	ReviewHandler    *httpH.ReviewHandler
	SentimentHandler *httpH.SentimentHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.CORS(cfg.AllowedOrigins...))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.RequestLogger(cfg.Log))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}

	// Reviews
	if cfg.ReviewHandler != nil {
		api.POST("/reviews/generate", cfg.ReviewHandler.Generate)
		api.GET("/reviews/:id", cfg.ReviewHandler.Get)
		api.PATCH("/reviews/:id", cfg.ReviewHandler.Edit)
		api.GET("/reviews/:id/original", cfg.ReviewHandler.GetOriginal)
		api.GET("/reviews/:id/edits", cfg.ReviewHandler.ListEdits)
		api.POST("/reviews/:id/submit", cfg.ReviewHandler.Submit)
		api.POST("/reviews/:id/approve", cfg.ReviewHandler.Approve)
		api.POST("/employees/:id/index", cfg.ReviewHandler.IndexEvidence)
	}

	// Sentiment
	if cfg.SentimentHandler != nil {
		api.POST("/feedback/analyze", cfg.SentimentHandler.AnalyzeBatch)
		api.POST("/feedback/:id/analyze", cfg.SentimentHandler.Analyze)
		api.GET("/employees/:id/sentiment", cfg.SentimentHandler.Summarize)
		api.GET("/employees/:id/alerts", cfg.SentimentHandler.ListAlerts)
		api.POST("/alerts/:id/acknowledge", cfg.SentimentHandler.Acknowledge)
	}

	return r
}
