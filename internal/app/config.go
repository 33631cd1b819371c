package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/perfinsight-backend/internal/platform/envutil"
)

type VectorConfig struct {
	Provider        string
	NamespacePrefix string

	QdrantURL        string
	QdrantCollection string
	QdrantVectorDim  int

	PineconeAPIKey     string
	PineconeAPIVersion string
	PineconeBaseURL    string
	PineconeIndex      string
	PineconeIndexHost  string
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type SchedulerConfig struct {
	Enabled bool

	SummarizeSpec     string
	SummarizeLookback time.Duration
	SummarizePeriod   string
	SummarizeTimeout  time.Duration

	IndexSpec     string
	IndexLookback time.Duration
	IndexWorkers  int
	IndexTimeout  time.Duration
}

type Config struct {
	LogMode     string
	Port        string
	ServiceName string
	Environment string
	Version     string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	AllowedOrigins []string

	Redis               RedisConfig
	NotificationChannel string

	Vector VectorConfig

	// PipelineConfigPath points at an optional YAML file overriding generation and monitor tuning.
	PipelineConfigPath string

	Scheduler SchedulerConfig

	RunMigrations bool
}

func LoadConfig() (Config, error) {
	cfg := Config{
		LogMode:     envutil.String("LOG_MODE", "development"),
		Port:        envutil.String("PORT", "8080"),
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "perfinsight-api"),
		Environment: envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", "dev"),

		JWTSecret:   envutil.String("JWT_SECRET_KEY", ""),
		JWTIssuer:   envutil.String("JWT_ISSUER", ""),
		JWTAudience: envutil.String("JWT_AUDIENCE", ""),

		AllowedOrigins: envutil.List("CORS_ALLOWED_ORIGINS", nil),

		Redis: RedisConfig{
			Addr:      envutil.String("REDIS_ADDR", ""),
			Password:  envutil.String("REDIS_PASSWORD", ""),
			DB:        envutil.Int("REDIS_DB", 0),
			KeyPrefix: envutil.String("REDIS_KEY_PREFIX", "pi"),
		},
		NotificationChannel: envutil.String("NOTIFY_CHANNEL", "notifications"),

		Vector: VectorConfig{
			Provider:           strings.ToLower(envutil.String("VECTOR_PROVIDER", VectorProviderNone)),
			NamespacePrefix:    envutil.String("VECTOR_NAMESPACE_PREFIX", "pi"),
			QdrantURL:          envutil.String("QDRANT_URL", ""),
			QdrantCollection:   envutil.String("QDRANT_COLLECTION", "perfinsight_evidence"),
			QdrantVectorDim:    envutil.Int("QDRANT_VECTOR_DIM", 1536),
			PineconeAPIKey:     envutil.String("PINECONE_API_KEY", ""),
			PineconeAPIVersion: envutil.String("PINECONE_API_VERSION", ""),
			PineconeBaseURL:    envutil.String("PINECONE_BASE_URL", ""),
			PineconeIndex:      envutil.String("PINECONE_INDEX", "perfinsight-evidence"),
			PineconeIndexHost:  envutil.String("PINECONE_INDEX_HOST", ""),
		},

		PipelineConfigPath: envutil.String("PIPELINE_CONFIG_PATH", ""),

		Scheduler: SchedulerConfig{
			Enabled:           envutil.Bool("SCHEDULER_ENABLED", true),
			SummarizeSpec:     envutil.String("SENTIMENT_SUMMARIZE_SCHEDULE", "0 0 2 * * *"),
			SummarizeLookback: envutil.Duration("SENTIMENT_SUMMARIZE_LOOKBACK", 24*time.Hour),
			SummarizePeriod:   envutil.String("SENTIMENT_SUMMARIZE_PERIOD", "week"),
			SummarizeTimeout:  envutil.Duration("SENTIMENT_SUMMARIZE_TIMEOUT", 30*time.Minute),
			IndexSpec:         envutil.String("EVIDENCE_INDEX_SCHEDULE", "0 30 3 * * *"),
			IndexLookback:     envutil.Duration("EVIDENCE_INDEX_LOOKBACK", 24*time.Hour),
			IndexWorkers:      envutil.Int("EVIDENCE_INDEX_WORKERS", 4),
			IndexTimeout:      envutil.Duration("EVIDENCE_INDEX_TIMEOUT", time.Hour),
		},

		RunMigrations: envutil.Bool("RUN_MIGRATIONS", true),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("missing JWT_SECRET_KEY")
	}
	switch c.Scheduler.SummarizePeriod {
	case "week", "month", "quarter":
	default:
		return fmt.Errorf("invalid SENTIMENT_SUMMARIZE_PERIOD %q", c.Scheduler.SummarizePeriod)
	}
	return nil
}
