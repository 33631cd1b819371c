package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// =========================
		// Org + people
		// =========================
		&performance.Employee{},

		// =========================
		// Performance signals
		// =========================
		&performance.Okr{},
		&performance.OkrMember{},
		&performance.Feedback{},
		&performance.ReviewCycle{},

		// =========================
		// Reviews + generation audit
		// =========================
		&performance.PerformanceReview{},
		&performance.ReviewEdit{},
		&performance.ReviewGenerationRun{},
		&performance.IndexedEvidence{},

		// =========================
		// Sentiment / bias monitor
		// =========================
		&sentiment.FeedbackAnalysis{},
		&sentiment.SentimentAlert{},
	)
}

// EnsureIndexes adds postgres-only partial indexes the dedup and review queries rely on.
func EnsureIndexes(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	stmts := []struct {
		name string
		sql  string
	}{
		{
			name: "idx_sentiment_alert_open",
			sql: `CREATE INDEX IF NOT EXISTS idx_sentiment_alert_open
				ON sentiment_alert(employee_id, type, created_at DESC)
				WHERE acknowledged = false;`,
		},
		{
			name: "idx_performance_review_employee_live",
			sql: `CREATE INDEX IF NOT EXISTS idx_performance_review_employee_live
				ON performance_review(employee_id, created_at DESC)
				WHERE archived = false;`,
		},
	}
	for _, s := range stmts {
		if err := db.Exec(s.sql).Error; err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
	}
	return nil
}
