package steps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/perfinsight-backend/internal/data/repos"
	domainagg "github.com/yungbote/perfinsight-backend/internal/domain/aggregates"
	"github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
	"github.com/yungbote/perfinsight-backend/internal/observability"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

// AlertCandidate is an alert a rule wants raised; dedup happens when it is raised.
type AlertCandidate struct {
	Type        string
	Severity    string
	Message     string
	FeedbackIDs []uuid.UUID
}

// Gate is an optional cross-process fast path in front of the database dedup.
type Gate interface {
	AcquireGate(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseGate(ctx context.Context, key string) error
}

// AlertNotifier receives newly created alerts.
type AlertNotifier interface {
	AlertRaised(ctx context.Context, recipientID uuid.UUID, alert *sentiment.SentimentAlert)
}

type RaiseDeps struct {
	Log       *logger.Logger
	Alerts    domainagg.SentimentAlertAggregate
	Employees repos.EmployeeRepo
	Gate      Gate
	Notify    AlertNotifier
	Config    Config
}

type RaiseInput struct {
	OrgID      uuid.UUID
	EmployeeID uuid.UUID
	Candidates []AlertCandidate
	At         time.Time
}

// ItemAlerts applies the per-feedback rules to one analysis result.
func ItemAlerts(res sentiment.Result, cfg Config) []AlertCandidate {
	cfg = cfg.WithDefaults()
	ids := []uuid.UUID{res.FeedbackID}
	var out []AlertCandidate

	if n := len(res.BiasIndicators); n > 0 {
		sev := sentiment.SeverityMedium
		if n >= 2 {
			sev = sentiment.SeverityHigh
		}
		out = append(out, AlertCandidate{
			Type:        sentiment.AlertTypeBiasDetected,
			Severity:    sev,
			Message:     "Feedback contains potentially biased language: " + strings.Join(res.BiasIndicators, ", "),
			FeedbackIDs: ids,
		})
	}

	if res.QualityScore < cfg.QualityDropThreshold {
		sev := sentiment.SeverityLow
		switch {
		case res.QualityScore < cfg.QualityDropThreshold-20:
			sev = sentiment.SeverityHigh
		case res.QualityScore < cfg.QualityDropThreshold-10:
			sev = sentiment.SeverityMedium
		}
		out = append(out, AlertCandidate{
			Type:        sentiment.AlertTypeQualityDrop,
			Severity:    sev,
			Message:     fmt.Sprintf("Feedback quality scored %.0f, below %.0f", res.QualityScore, cfg.QualityDropThreshold),
			FeedbackIDs: ids,
		})
	}

	if res.Tone == sentiment.ToneNegative && res.Actionability < cfg.ConcerningActionability {
		sev := sentiment.SeverityMedium
		if res.Actionability < cfg.ConcerningActionability/3 {
			sev = sentiment.SeverityHigh
		}
		out = append(out, AlertCandidate{
			Type:        sentiment.AlertTypeConcerningFeedback,
			Severity:    sev,
			Message:     fmt.Sprintf("Negative feedback with little actionable guidance (actionability %.0f)", res.Actionability),
			FeedbackIDs: ids,
		})
	}
	return out
}

// ShiftAlert fires when the latest bucket pair turns declining after a pair that was not.
func ShiftAlert(trend sentiment.Trend, cfg Config) *AlertCandidate {
	cfg = cfg.WithDefaults()
	filled := nonEmptyBuckets(trend.Buckets)
	if len(filled) < 3 {
		return nil
	}
	a, b, c := filled[len(filled)-3], filled[len(filled)-2], filled[len(filled)-1]
	prev := direction(a.AvgQuality, b.AvgQuality, cfg.StableBand)
	last := direction(b.AvgQuality, c.AvgQuality, cfg.StableBand)
	if last != sentiment.TrendDeclining || prev == sentiment.TrendDeclining {
		return nil
	}
	drop := b.AvgQuality - c.AvgQuality
	sev := sentiment.SeverityMedium
	if drop > cfg.ShiftHighSeverity {
		sev = sentiment.SeverityHigh
	}
	return &AlertCandidate{
		Type:     sentiment.AlertTypeSentimentShift,
		Severity: sev,
		Message: fmt.Sprintf("Average feedback quality turned %s: %.0f to %.0f between %s and %s",
			sentiment.TrendDeclining, b.AvgQuality, c.AvgQuality,
			b.Start.Format("2006-01-02"), c.Start.Format("2006-01-02")),
	}
}

// RaiseAlerts raises each candidate through the alert aggregate and notifies the employee's manager
// about alerts that were actually created.
func RaiseAlerts(ctx context.Context, deps RaiseDeps, in RaiseInput) ([]*sentiment.SentimentAlert, error) {
	if len(in.Candidates) == 0 {
		return nil, nil
	}
	if deps.Alerts == nil {
		return nil, fmt.Errorf("raise alerts: missing alert aggregate")
	}
	cfg := deps.Config.WithDefaults()
	at := in.At.UTC()
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var created []*sentiment.SentimentAlert
	for _, cand := range in.Candidates {
		key := GateKey(in.EmployeeID, cand.Type)
		if deps.Gate != nil {
			ok, err := deps.Gate.AcquireGate(ctx, key, cfg.AlertCooldown)
			if err != nil {
				if deps.Log != nil {
					deps.Log.Warn("alert gate unavailable; falling back to database dedup", "error", err)
				}
			} else if !ok {
				observability.Current().IncAlertSuppressed(cand.Type)
				continue
			}
		}

		res, err := deps.Alerts.Raise(ctx, domainagg.RaiseAlertInput{
			OrgID:       in.OrgID,
			EmployeeID:  in.EmployeeID,
			Type:        cand.Type,
			Severity:    cand.Severity,
			Message:     cand.Message,
			FeedbackIDs: cand.FeedbackIDs,
			Cooldown:    cfg.AlertCooldown,
			At:          at,
		})
		if err != nil {
			if deps.Gate != nil {
				_ = deps.Gate.ReleaseGate(ctx, key)
			}
			return created, fmt.Errorf("raise %s alert: %w", cand.Type, err)
		}
		if !res.Created {
			observability.Current().IncAlertSuppressed(cand.Type)
			continue
		}
		observability.Current().IncAlertRaised(cand.Type, cand.Severity)
		created = append(created, res.Alert)
		if deps.Log != nil {
			deps.Log.Info("sentiment alert raised", "employee_id", in.EmployeeID, "type", cand.Type, "severity", cand.Severity)
		}
	}

	if len(created) > 0 && deps.Notify != nil && deps.Employees != nil {
		emp, err := deps.Employees.GetByID(dbctx.Context{Ctx: ctx}, in.EmployeeID)
		if err != nil && deps.Log != nil {
			deps.Log.Warn("alert recipient lookup failed", "employee_id", in.EmployeeID, "error", err)
		}
		if emp != nil && emp.ManagerID != nil {
			for _, a := range created {
				deps.Notify.AlertRaised(ctx, *emp.ManagerID, a)
			}
		}
	}
	return created, nil
}

// GateKey is shared by raising and acknowledging so an acknowledgement reopens the gate.
func GateKey(employeeID uuid.UUID, alertType string) string {
	return "sentiment_alert:" + employeeID.String() + ":" + alertType
}
