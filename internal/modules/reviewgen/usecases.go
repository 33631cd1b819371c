package reviewgen

import (
	"context"

	"github.com/yungbote/perfinsight-backend/internal/data/repos"
	"github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/modules/reviewgen/steps"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
	"github.com/yungbote/perfinsight-backend/internal/platform/openai"
	"github.com/yungbote/perfinsight-backend/internal/platform/pinecone"
)

type UsecasesDeps struct {
	Log *logger.Logger

	AI  openai.Client
	Vec pinecone.VectorStore

	Employees repos.EmployeeRepo
	Okrs      repos.OkrRepo
	Feedback  repos.FeedbackRepo
	Reviews   repos.ReviewRepo
	Cycles    repos.ReviewCycleRepo
	Analyses  repos.AnalysisRepo
	Indexed   repos.IndexedEvidenceRepo

	Access steps.AccessChecker
	Config steps.Config
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases {
	deps.Config = deps.Config.WithDefaults()
	return Usecases{deps: deps}
}

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

func (u Usecases) Config() steps.Config { return u.deps.Config }

type (
	Config = steps.Config

	AggregateInput = steps.AggregateInput

	RetrieveInput = steps.RetrieveInput

	GenerateInput  = steps.GenerateInput
	GenerateOutput = steps.GenerateOutput

	FinalizeInput  = steps.FinalizeInput
	FinalizeOutput = steps.FinalizeOutput

	IndexInput  = steps.IndexInput
	IndexOutput = steps.IndexOutput
)

func DefaultConfig() Config { return steps.DefaultConfig() }

func (u Usecases) AggregateEvidence(ctx context.Context, in AggregateInput) (performance.EvidenceBundle, error) {
	return steps.AggregateEvidence(ctx, steps.AggregateDeps{
		Log:       u.deps.Log,
		Employees: u.deps.Employees,
		Okrs:      u.deps.Okrs,
		Feedback:  u.deps.Feedback,
		Reviews:   u.deps.Reviews,
		Cycles:    u.deps.Cycles,
		Analyses:  u.deps.Analyses,
		Access:    u.deps.Access,
		Config:    u.deps.Config,
	}, in)
}

func (u Usecases) ScoreQuality(bundle performance.EvidenceBundle) performance.QualityScore {
	return steps.ScoreQuality(bundle, u.deps.Config)
}

func (u Usecases) BuildQuery(bundle performance.EvidenceBundle, focusAreas []string) string {
	return steps.BuildQuery(bundle, focusAreas)
}

func (u Usecases) RetrieveContext(ctx context.Context, in RetrieveInput) performance.RetrievedContext {
	var ai steps.Embedder
	if u.deps.AI != nil {
		ai = u.deps.AI
	}
	return steps.RetrieveContext(ctx, steps.RetrieveDeps{
		Log:    u.deps.Log,
		AI:     ai,
		Vec:    u.deps.Vec,
		Config: u.deps.Config,
	}, in)
}

func (u Usecases) GenerateDraft(ctx context.Context, in GenerateInput) (GenerateOutput, error) {
	var ai steps.Completer
	if u.deps.AI != nil {
		ai = u.deps.AI
	}
	return steps.GenerateDraft(ctx, steps.GenerateDeps{
		Log:    u.deps.Log,
		AI:     ai,
		Config: u.deps.Config,
	}, in)
}

func (u Usecases) Finalize(in FinalizeInput) FinalizeOutput {
	return steps.Finalize(in, u.deps.Config)
}

func (u Usecases) IndexEmployeeEvidence(ctx context.Context, in IndexInput) (IndexOutput, error) {
	var ai steps.Embedder
	if u.deps.AI != nil {
		ai = u.deps.AI
	}
	return steps.IndexEmployeeEvidence(ctx, steps.IndexDeps{
		Log:       u.deps.Log,
		AI:        ai,
		Vec:       u.deps.Vec,
		Employees: u.deps.Employees,
		Okrs:      u.deps.Okrs,
		Feedback:  u.deps.Feedback,
		Reviews:   u.deps.Reviews,
		Cycles:    u.deps.Cycles,
		Indexed:   u.deps.Indexed,
		Config:    u.deps.Config,
	}, in)
}
