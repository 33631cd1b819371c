package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/perfinsight-backend/internal/data/repos/insights"
	"github.com/yungbote/perfinsight-backend/internal/data/repos/people"
	"github.com/yungbote/perfinsight-backend/internal/data/repos/reviews"
	"github.com/yungbote/perfinsight-backend/internal/data/repos/signals"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

type EmployeeRepo = people.EmployeeRepo

type OkrRepo = signals.OkrRepo
type FeedbackRepo = signals.FeedbackRepo
type ReviewCycleRepo = signals.ReviewCycleRepo

type ReviewRepo = reviews.ReviewRepo
type ReviewEditRepo = reviews.ReviewEditRepo
type GenerationRunRepo = reviews.GenerationRunRepo
type IndexedEvidenceRepo = reviews.IndexedEvidenceRepo

type AlertRepo = insights.AlertRepo
type AnalysisRepo = insights.AnalysisRepo

// Set is every table repo, built once at startup.
type Set struct {
	Employees      EmployeeRepo
	Okrs           OkrRepo
	Feedback       FeedbackRepo
	ReviewCycles   ReviewCycleRepo
	Reviews        ReviewRepo
	ReviewEdits    ReviewEditRepo
	GenerationRuns GenerationRunRepo
	Indexed        IndexedEvidenceRepo
	Alerts         AlertRepo
	Analyses       AnalysisRepo
}

func NewSet(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Employees:      people.NewEmployeeRepo(db, log),
		Okrs:           signals.NewOkrRepo(db, log),
		Feedback:       signals.NewFeedbackRepo(db, log),
		ReviewCycles:   signals.NewReviewCycleRepo(db, log),
		Reviews:        reviews.NewReviewRepo(db, log),
		ReviewEdits:    reviews.NewReviewEditRepo(db, log),
		GenerationRuns: reviews.NewGenerationRunRepo(db, log),
		Indexed:        reviews.NewIndexedEvidenceRepo(db, log),
		Alerts:         insights.NewAlertRepo(db, log),
		Analyses:       insights.NewAnalysisRepo(db, log),
	}
}
