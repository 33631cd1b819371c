package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/perfinsight-backend/internal/data/aggregates"
	"github.com/yungbote/perfinsight-backend/internal/data/repos"
	"github.com/yungbote/perfinsight-backend/internal/modules/insights"
	"github.com/yungbote/perfinsight-backend/internal/modules/reviewgen"
	"github.com/yungbote/perfinsight-backend/internal/observability"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
	"github.com/yungbote/perfinsight-backend/internal/services"
)

type Services struct {
	Access    services.AccessPolicy
	Notifier  services.Notifier
	Reviews   services.ReviewService
	Sentiment services.SentimentService

	// Pipelines are exposed for the scheduled jobs.
	ReviewPipeline reviewgen.Usecases
	Monitor        insights.Usecases
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, tuning Tuning, rs repos.Set, clients Clients) Services {
	log.Info("Wiring services...")

	base := aggregates.BaseDeps{
		DB:    db,
		Log:   log,
		Hooks: aggregates.NewObservabilityHooks(observability.Current()),
	}
	drafts := aggregates.NewReviewDraftAggregate(aggregates.ReviewDraftAggregateDeps{
		Base:    base,
		Reviews: rs.Reviews,
		Edits:   rs.ReviewEdits,
	})
	alertAgg := aggregates.NewSentimentAlertAggregate(aggregates.SentimentAlertAggregateDeps{
		Base:   base,
		Alerts: rs.Alerts,
	})

	access := services.NewAccessPolicy(log, rs.Employees)

	var pub services.Publisher
	if clients.Redis != nil {
		pub = clients.Redis
	}
	var email services.Notifier
	if clients.Mail != nil {
		email = services.NewEmailNotifier(log, clients.Mail, rs.Employees)
	}
	notifier := services.NewMultiNotifier(services.NewNotifier(log, pub, cfg.NotificationChannel), email)

	pipeline := reviewgen.New(reviewgen.UsecasesDeps{
		Log:       log,
		AI:        clients.OpenAI,
		Vec:       clients.Vector,
		Employees: rs.Employees,
		Okrs:      rs.Okrs,
		Feedback:  rs.Feedback,
		Reviews:   rs.Reviews,
		Cycles:    rs.ReviewCycles,
		Analyses:  rs.Analyses,
		Indexed:   rs.Indexed,
		Access:    access,
		Config:    tuning.ReviewGeneration,
	})

	monitorDeps := insights.UsecasesDeps{
		Log:        log,
		Classifier: insights.NewLLMClassifier(clients.OpenAI, log),
		Feedback:   rs.Feedback,
		Analyses:   rs.Analyses,
		Employees:  rs.Employees,
		Alerts:     alertAgg,
		Notify:     notifier,
		Config:     tuning.Sentiment,
	}
	var gate services.Gate
	if clients.Redis != nil {
		monitorDeps.Gate = clients.Redis
		gate = clients.Redis
	}
	monitor := insights.New(monitorDeps)

	reviews := services.NewReviewService(services.ReviewServiceDeps{
		Log:       log,
		Pipeline:  pipeline,
		Employees: rs.Employees,
		Reviews:   rs.Reviews,
		Edits:     rs.ReviewEdits,
		Runs:      rs.GenerationRuns,
		Drafts:    drafts,
		Access:    access,
		Notify:    notifier,
	})
	sentimentSvc := services.NewSentimentService(services.SentimentServiceDeps{
		Log:       log,
		Monitor:   monitor,
		Employees: rs.Employees,
		Feedback:  rs.Feedback,
		Alerts:    rs.Alerts,
		Analyses:  rs.Analyses,
		AlertAgg:  alertAgg,
		Gate:      gate,
		Access:    access,
	})

	return Services{
		Access:         access,
		Notifier:       notifier,
		Reviews:        reviews,
		Sentiment:      sentimentSvc,
		ReviewPipeline: pipeline,
		Monitor:        monitor,
	}
}
