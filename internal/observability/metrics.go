package observability

import (
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	llmRequests *CounterVec
	llmLatency  *HistogramVec
	llmTokens   *CounterVec

	vectorOps     *CounterVec
	vectorLatency *HistogramVec

	stageLatency *HistogramVec
	generations  *CounterVec
	confidence   *HistogramVec

	aggregateOps       *CounterVec
	aggregateLatency   *HistogramVec
	aggregateConflicts *CounterVec
	aggregateRetries   *CounterVec

	sentimentAnalyses *CounterVec
	alertsRaised      *CounterVec
	alertsSuppressed  *CounterVec

	pgStats *GaugeVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	v := strings.TrimSpace(os.Getenv("METRICS_SCRAPE_INTERVAL_SECONDS"))
	if v == "" {
		return 10 * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n) * time.Second
}

// Init builds the process-wide metrics registry. It returns nil when METRICS_ENABLED is off,
// and every Metrics method is nil-safe.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

// NewMetrics returns an unregistered registry; tests use it directly.
func NewMetrics() *Metrics {
	latency := []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}
	providerLatency := []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15, 30, 45, 60}
	return &Metrics{
		apiRequests: NewCounterVec("pi_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency:  NewHistogramVec("pi_api_request_duration_seconds", "API request latency in seconds.", []string{"method", "route", "status"}, latency),
		apiInflight: NewGauge("pi_api_inflight_requests", "In-flight API requests."),

		llmRequests: NewCounterVec("pi_llm_requests_total", "LLM provider requests by model/endpoint/status.", []string{"model", "endpoint", "status"}),
		llmLatency:  NewHistogramVec("pi_llm_request_duration_seconds", "LLM provider latency in seconds.", []string{"model", "endpoint", "status"}, providerLatency),
		llmTokens:   NewCounterVec("pi_llm_tokens_total", "LLM tokens by model/kind.", []string{"model", "kind"}),

		vectorOps:     NewCounterVec("pi_vector_store_operations_total", "Vector store operations by provider/operation/status.", []string{"provider", "operation", "status"}),
		vectorLatency: NewHistogramVec("pi_vector_store_operation_duration_seconds", "Vector store latency in seconds.", []string{"provider", "operation", "status"}, providerLatency),

		stageLatency: NewHistogramVec("pi_review_pipeline_stage_duration_seconds", "Review generation stage latency.", []string{"stage", "status"}, providerLatency),
		generations:  NewCounterVec("pi_review_generations_total", "Review generation outcomes.", []string{"outcome"}),
		confidence:   NewHistogramVec("pi_review_confidence_score", "Confidence score of persisted AI drafts.", nil, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}),

		aggregateOps:       NewCounterVec("pi_aggregate_operations_total", "Aggregate write operations by name/status.", []string{"operation", "status"}),
		aggregateLatency:   NewHistogramVec("pi_aggregate_operation_duration_seconds", "Aggregate write latency.", []string{"operation", "status"}, latency),
		aggregateConflicts: NewCounterVec("pi_aggregate_conflicts_total", "Aggregate optimistic concurrency conflicts.", []string{"operation"}),
		aggregateRetries:   NewCounterVec("pi_aggregate_retryable_total", "Aggregate retryable failures.", []string{"operation"}),

		sentimentAnalyses: NewCounterVec("pi_sentiment_analyses_total", "Feedback sentiment analyses by status.", []string{"status"}),
		alertsRaised:      NewCounterVec("pi_sentiment_alerts_raised_total", "Sentiment alerts raised by type/severity.", []string{"type", "severity"}),
		alertsSuppressed:  NewCounterVec("pi_sentiment_alerts_suppressed_total", "Sentiment alerts suppressed by cooldown.", []string{"type"}),

		pgStats: NewGaugeVec("pi_postgres_pool", "Postgres connection pool stats.", []string{"stat"}),
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	all := []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency, m.llmTokens,
		m.vectorOps, m.vectorLatency,
		m.stageLatency, m.generations, m.confidence,
		m.aggregateOps, m.aggregateLatency, m.aggregateConflicts, m.aggregateRetries,
		m.sentimentAnalyses, m.alertsRaised, m.alertsSuppressed,
		m.pgStats,
	}
	for _, pw := range all {
		if err := pw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveLLMRequest(model, endpoint, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = "unknown"
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.llmRequests.Inc(model, endpoint, status)
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), model, endpoint, status)
	}
	if inputTokens > 0 {
		m.llmTokens.Add(float64(inputTokens), model, "input")
	}
	if outputTokens > 0 {
		m.llmTokens.Add(float64(outputTokens), model, "output")
	}
}

func (m *Metrics) ObserveVectorStoreOperation(provider, operation, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.vectorOps.Inc(provider, operation, status)
	m.vectorLatency.Observe(dur.Seconds(), provider, operation, status)
}

func (m *Metrics) ObservePipelineStage(stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.stageLatency.Observe(dur.Seconds(), stage, status)
}

func (m *Metrics) IncGeneration(outcome string) {
	if m == nil {
		return
	}
	m.generations.Inc(outcome)
}

func (m *Metrics) ObserveConfidence(score float64) {
	if m == nil {
		return
	}
	m.confidence.Observe(score)
}

func (m *Metrics) ObserveAggregateOperation(name, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.aggregateOps.Inc(name, status)
	m.aggregateLatency.Observe(dur.Seconds(), name, status)
}

func (m *Metrics) IncAggregateConflict(name string) {
	if m == nil {
		return
	}
	m.aggregateConflicts.Inc(name)
}

func (m *Metrics) IncAggregateRetry(name string) {
	if m == nil {
		return
	}
	m.aggregateRetries.Inc(name)
}

func (m *Metrics) IncSentimentAnalysis(status string) {
	if m == nil {
		return
	}
	m.sentimentAnalyses.Inc(status)
}

func (m *Metrics) IncAlertRaised(alertType, severity string) {
	if m == nil {
		return
	}
	m.alertsRaised.Inc(alertType, severity)
}

func (m *Metrics) IncAlertSuppressed(alertType string) {
	if m == nil {
		return
	}
	m.alertsSuppressed.Inc(alertType)
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: postgres stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
			}
		}
	}()
}
