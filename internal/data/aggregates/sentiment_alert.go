package aggregates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/perfinsight-backend/internal/data/repos"
	domainagg "github.com/yungbote/perfinsight-backend/internal/domain/aggregates"
	"github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
)

const defaultAlertCooldown = 24 * time.Hour

type SentimentAlertAggregateDeps struct {
	Base BaseDeps

	Alerts repos.AlertRepo
}

type sentimentAlertAggregate struct {
	deps SentimentAlertAggregateDeps
}

func NewSentimentAlertAggregate(deps SentimentAlertAggregateDeps) domainagg.SentimentAlertAggregate {
	deps.Base = deps.Base.withDefaults()
	return &sentimentAlertAggregate{deps: deps}
}

func (a *sentimentAlertAggregate) Contract() domainagg.Contract {
	return domainagg.SentimentAlertAggregateContract
}

func (a *sentimentAlertAggregate) Raise(ctx context.Context, in domainagg.RaiseAlertInput) (domainagg.RaiseAlertResult, error) {
	op := domainagg.SentimentAlertAggregateContract.Op("Raise")
	var out domainagg.RaiseAlertResult
	if in.EmployeeID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing employee_id", nil)
	}
	if !sentiment.IsValidAlertType(in.Type) {
		return out, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("unknown alert type %q", in.Type), nil)
	}
	switch in.Severity {
	case sentiment.SeverityLow, sentiment.SeverityMedium, sentiment.SeverityHigh:
	default:
		return out, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("unknown severity %q", in.Severity), nil)
	}
	if strings.TrimSpace(in.Message) == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing message", nil)
	}
	if a.deps.Alerts == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "alert repo not configured", nil)
	}
	at := in.At.UTC()
	if at.IsZero() {
		at = time.Now().UTC()
	}
	cooldown := in.Cooldown
	if cooldown <= 0 {
		cooldown = defaultAlertCooldown
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if err := a.deps.Base.CASGuard.AdvisoryXactLock(dbc, domainagg.SentimentAlertAggregateContract.LockKey(in.EmployeeID.String(), in.Type)); err != nil {
			return err
		}
		existing, err := a.deps.Alerts.FindActive(dbc, in.EmployeeID, in.Type, at.Add(-cooldown))
		if err != nil {
			return err
		}
		if existing != nil {
			out = domainagg.RaiseAlertResult{Alert: existing}
			return nil
		}
		row := &sentiment.SentimentAlert{
			OrgID:       in.OrgID,
			EmployeeID:  in.EmployeeID,
			Type:        in.Type,
			Severity:    in.Severity,
			Message:     strings.TrimSpace(in.Message),
			FeedbackIDs: sentiment.EncodeIDs(in.FeedbackIDs),
			CreatedAt:   at,
		}
		if _, err := a.deps.Alerts.Create(dbc, row); err != nil {
			return err
		}
		out = domainagg.RaiseAlertResult{Alert: row, Created: true}
		return nil
	})
	return out, err
}

func (a *sentimentAlertAggregate) Acknowledge(ctx context.Context, in domainagg.AcknowledgeAlertInput) (domainagg.AcknowledgeAlertResult, error) {
	op := domainagg.SentimentAlertAggregateContract.Op("Acknowledge")
	var out domainagg.AcknowledgeAlertResult
	if in.AlertID == uuid.Nil || in.ActorID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing alert_id or actor_id", nil)
	}
	if a.deps.Alerts == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "alert repo not configured", nil)
	}
	at := in.At.UTC()
	if at.IsZero() {
		at = time.Now().UTC()
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		changed, err := a.deps.Alerts.MarkAcknowledged(dbc, in.AlertID, in.ActorID, at)
		if err != nil {
			return err
		}
		row, err := a.deps.Alerts.GetByID(dbc, in.AlertID)
		if err != nil {
			return err
		}
		if row == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("alert not found: %s", in.AlertID), nil)
		}
		out = domainagg.AcknowledgeAlertResult{Alert: row, Changed: changed}
		return nil
	})
	return out, err
}
