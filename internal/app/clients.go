package app

import (
	"fmt"
	"strings"

	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
	"github.com/yungbote/perfinsight-backend/internal/platform/openai"
	"github.com/yungbote/perfinsight-backend/internal/platform/pinecone"
	"github.com/yungbote/perfinsight-backend/internal/platform/redis"
	"github.com/yungbote/perfinsight-backend/internal/platform/sendgrid"
)

type Clients struct {
	OpenAI openai.Client
	// Redis is nil when REDIS_ADDR is unset; alert gating then relies on the cooldown query alone
	// and notifications are only logged.
	Redis redis.Client
	// Vector is nil when no vector provider is configured.
	Vector pinecone.VectorStore
	// Mail is nil when SENDGRID_API_KEY is unset.
	Mail sendgrid.Client
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	aiClient, err := openai.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}

	var rdb redis.Client
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		rdb, err = redis.New(log, redis.Config{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
	} else {
		log.Warn("REDIS_ADDR not set; alert gate and notification fan-out disabled")
	}

	vs, err := resolveVectorStore(log, cfg.Vector)
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return Clients{}, fmt.Errorf("init vector store: %w", err)
	}

	var mail sendgrid.Client
	if sgCfg := sendgrid.ConfigFromEnv(); strings.TrimSpace(sgCfg.APIKey) != "" {
		mail, err = sendgrid.New(log, sgCfg)
		if err != nil {
			if rdb != nil {
				_ = rdb.Close()
			}
			return Clients{}, fmt.Errorf("init sendgrid: %w", err)
		}
	}

	return Clients{OpenAI: aiClient, Redis: rdb, Vector: vs, Mail: mail}, nil
}

func (c Clients) Close() {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
