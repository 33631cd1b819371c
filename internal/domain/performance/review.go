package performance

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ReviewStatusDraft       = "draft"
	ReviewStatusAIGenerated = "ai_generated"
	ReviewStatusHumanEdited = "human_edited"
	ReviewStatusSubmitted   = "submitted"
	ReviewStatusApproved    = "approved"
)

const (
	ReviewTypeAnnual    = "annual"
	ReviewTypeQuarterly = "quarterly"
	ReviewTypeMidYear   = "mid_year"
	ReviewTypeProbation = "probation"
)

// Review text fields; the field name doubles as the column name.
const (
	FieldStrengths           = "strengths"
	FieldAreasForImprovement = "areas_for_improvement"
	FieldAchievements        = "achievements"
	FieldGoalsForNextPeriod  = "goals_for_next_period"
	FieldManagerComments     = "manager_comments"
	FieldEmployeeComments    = "employee_comments"
	FieldDevelopmentPlan     = "development_plan"
)

// GeneratedFields are the fields the model writes, in prompt order.
var GeneratedFields = []string{
	FieldStrengths,
	FieldAreasForImprovement,
	FieldAchievements,
	FieldGoalsForNextPeriod,
}

var EditableFields = []string{
	FieldStrengths,
	FieldAreasForImprovement,
	FieldAchievements,
	FieldGoalsForNextPeriod,
	FieldManagerComments,
	FieldEmployeeComments,
	FieldDevelopmentPlan,
}

func IsEditableField(name string) bool {
	for _, f := range EditableFields {
		if f == name {
			return true
		}
	}
	return false
}

func IsValidReviewType(t string) bool {
	switch t {
	case ReviewTypeAnnual, ReviewTypeQuarterly, ReviewTypeMidYear, ReviewTypeProbation:
		return true
	}
	return false
}

// PerformanceReview is the persisted review draft. Version is bumped on every write and used for
// compare-and-set; AIOriginalContent keeps the generated text per field and is never touched by edits.
type PerformanceReview struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID       uuid.UUID  `gorm:"type:uuid;not null;index;column:org_id" json:"org_id"`
	EmployeeID  uuid.UUID  `gorm:"type:uuid;not null;index;column:employee_id" json:"employee_id"`
	ReviewerID  uuid.UUID  `gorm:"type:uuid;not null;index;column:reviewer_id" json:"reviewer_id"`
	CycleID     *uuid.UUID `gorm:"type:uuid;index;column:cycle_id" json:"cycle_id,omitempty"`
	ReviewType  string     `gorm:"not null;default:'annual';column:review_type" json:"review_type"`
	PeriodStart time.Time  `gorm:"column:period_start" json:"period_start"`
	PeriodEnd   time.Time  `gorm:"column:period_end" json:"period_end"`
	Status      string     `gorm:"not null;default:'draft';index;column:status" json:"status"`
	Version     int        `gorm:"not null;default:0;column:version" json:"version"`

	Strengths           *string `gorm:"type:text;column:strengths" json:"strengths"`
	AreasForImprovement *string `gorm:"type:text;column:areas_for_improvement" json:"areas_for_improvement"`
	Achievements        *string `gorm:"type:text;column:achievements" json:"achievements"`
	GoalsForNextPeriod  *string `gorm:"type:text;column:goals_for_next_period" json:"goals_for_next_period"`
	ManagerComments     *string `gorm:"type:text;column:manager_comments" json:"manager_comments"`
	EmployeeComments    *string `gorm:"type:text;column:employee_comments" json:"employee_comments"`
	DevelopmentPlan     *string `gorm:"type:text;column:development_plan" json:"development_plan"`

	IsAIGenerated     bool           `gorm:"not null;default:false;column:is_ai_generated" json:"is_ai_generated"`
	AIGeneratedAt     *time.Time     `gorm:"column:ai_generated_at" json:"ai_generated_at,omitempty"`
	AIConfidenceScore *float64       `gorm:"column:ai_confidence_score" json:"ai_confidence_score,omitempty"`
	AISources         datatypes.JSON `gorm:"column:ai_sources" json:"ai_sources,omitempty"`
	AIOriginalContent datatypes.JSON `gorm:"column:ai_original_content" json:"-"`

	HumanEdited   bool       `gorm:"not null;default:false;column:human_edited" json:"human_edited"`
	HumanEditedAt *time.Time `gorm:"column:human_edited_at" json:"human_edited_at,omitempty"`
	HumanEditedBy *uuid.UUID `gorm:"type:uuid;column:human_edited_by" json:"human_edited_by,omitempty"`

	SubmittedAt *time.Time `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	ApprovedAt  *time.Time `gorm:"column:approved_at" json:"approved_at,omitempty"`
	ApprovedBy  *uuid.UUID `gorm:"type:uuid;column:approved_by" json:"approved_by,omitempty"`
	Archived    bool       `gorm:"not null;default:false;column:archived" json:"archived"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (PerformanceReview) TableName() string { return "performance_review" }

func (r *PerformanceReview) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Field returns the live value of a review text field.
func (r *PerformanceReview) Field(name string) *string {
	if r == nil {
		return nil
	}
	switch name {
	case FieldStrengths:
		return r.Strengths
	case FieldAreasForImprovement:
		return r.AreasForImprovement
	case FieldAchievements:
		return r.Achievements
	case FieldGoalsForNextPeriod:
		return r.GoalsForNextPeriod
	case FieldManagerComments:
		return r.ManagerComments
	case FieldEmployeeComments:
		return r.EmployeeComments
	case FieldDevelopmentPlan:
		return r.DevelopmentPlan
	}
	return nil
}

func (r *PerformanceReview) Sources() []Source {
	if r == nil || len(r.AISources) == 0 {
		return nil
	}
	var out []Source
	if err := json.Unmarshal(r.AISources, &out); err != nil {
		return nil
	}
	return out
}

func (r *PerformanceReview) OriginalContent() map[string]string {
	out := map[string]string{}
	if r == nil || len(r.AIOriginalContent) == 0 {
		return out
	}
	_ = json.Unmarshal(r.AIOriginalContent, &out)
	return out
}

// Generatable reports whether the pipeline may still overwrite this review's content.
func (r *PerformanceReview) Generatable() bool {
	if r == nil || r.HumanEdited || r.Archived {
		return false
	}
	return r.Status == ReviewStatusDraft || r.Status == ReviewStatusAIGenerated
}

type SourceKind string

const (
	SourceKindEvidence  SourceKind = "evidence"
	SourceKindRetrieved SourceKind = "retrieved"
)

const (
	SourceTypeOkr      = "okr"
	SourceTypeFeedback = "feedback"
	SourceTypeReview   = "review"
)

// Source is one provenance entry. Evidence entries carry the cited item; retrieved entries carry the
// similarity of the matched snippet, which is also their contribution weight.
type Source struct {
	Kind               SourceKind `json:"kind"`
	SourceType         string     `json:"source_type"`
	SourceID           string     `json:"source_id"`
	ContributionWeight float64    `json:"contribution_weight"`
	Similarity         *float64   `json:"similarity,omitempty"`
}

func EvidenceSource(sourceType, sourceID string, weight float64) Source {
	return Source{
		Kind:               SourceKindEvidence,
		SourceType:         sourceType,
		SourceID:           sourceID,
		ContributionWeight: weight,
	}
}

func RetrievedSource(sourceType, sourceID string, similarity float64) Source {
	sim := similarity
	return Source{
		Kind:               SourceKindRetrieved,
		SourceType:         sourceType,
		SourceID:           sourceID,
		ContributionWeight: similarity,
		Similarity:         &sim,
	}
}

// ReviewEdit is the append-only audit trail of human edits.
type ReviewEdit struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ReviewID     uuid.UUID      `gorm:"type:uuid;not null;index;column:review_id" json:"review_id"`
	EditorID     uuid.UUID      `gorm:"type:uuid;not null;index;column:editor_id" json:"editor_id"`
	Fields       datatypes.JSON `gorm:"column:fields" json:"fields"`
	Before       datatypes.JSON `gorm:"column:before_text" json:"before"`
	After        datatypes.JSON `gorm:"column:after_text" json:"after"`
	VersionAfter int            `gorm:"not null;column:version_after" json:"version_after"`
	CreatedAt    time.Time      `gorm:"not null;index" json:"created_at"`
}

func (ReviewEdit) TableName() string { return "performance_review_edit" }

func (e *ReviewEdit) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

const (
	RunOutcomeSucceeded   = "succeeded"
	RunOutcomeSkipped     = "skipped"
	RunOutcomeParseFailed = "parse_failed"
	RunOutcomeTimedOut    = "timed_out"
	RunOutcomeConflict    = "conflict"
	RunOutcomeFailed      = "failed"
)

// ReviewGenerationRun records one generation request, whatever its outcome.
type ReviewGenerationRun struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID             uuid.UUID  `gorm:"type:uuid;not null;index;column:org_id" json:"org_id"`
	EmployeeID        uuid.UUID  `gorm:"type:uuid;not null;index;column:employee_id" json:"employee_id"`
	ActorID           uuid.UUID  `gorm:"type:uuid;not null;column:actor_id" json:"actor_id"`
	ReviewID          *uuid.UUID `gorm:"type:uuid;index;column:review_id" json:"review_id,omitempty"`
	Outcome           string     `gorm:"not null;index;column:outcome" json:"outcome"`
	RetrievalDegraded bool       `gorm:"not null;default:false;column:retrieval_degraded" json:"retrieval_degraded"`
	GenerationRetried bool       `gorm:"not null;default:false;column:generation_retried" json:"generation_retried"`
	QualityOverall    float64    `gorm:"not null;default:0;column:quality_overall" json:"quality_overall"`
	Confidence        *float64   `gorm:"column:confidence" json:"confidence,omitempty"`
	DurationMS        int64      `gorm:"not null;default:0;column:duration_ms" json:"duration_ms"`
	Error             string     `gorm:"type:text;column:error" json:"error,omitempty"`
	CreatedAt         time.Time  `gorm:"not null;index" json:"created_at"`
}

func (ReviewGenerationRun) TableName() string { return "review_generation_run" }

func (r *ReviewGenerationRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func decodeStringList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func EncodeStringList(v []string) datatypes.JSON {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}
