package aggregates

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/perfinsight-backend/internal/data/repos"
	repotestutil "github.com/yungbote/perfinsight-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/perfinsight-backend/internal/domain/aggregates"
	"github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
)

func TestRaiseDeduplicatesWithinCooldown(t *testing.T) {
	db := repotestutil.DB(t)
	hooks := &spyHooks{}
	agg := NewSentimentAlertAggregate(SentimentAlertAggregateDeps{
		Base:   BaseDeps{DB: db, Log: repotestutil.Logger(t), Hooks: hooks},
		Alerts: repos.NewSet(db, repotestutil.Logger(t)).Alerts,
	})
	ctx := context.Background()
	employeeID := uuid.New()
	now := time.Now().UTC()

	in := domainagg.RaiseAlertInput{
		OrgID:       uuid.New(),
		EmployeeID:  employeeID,
		Type:        sentiment.AlertTypeBiasDetected,
		Severity:    sentiment.SeverityMedium,
		Message:     "feedback contains a bias indicator",
		FeedbackIDs: []uuid.UUID{uuid.New()},
		Cooldown:    24 * time.Hour,
		At:          now,
	}
	first, err := agg.Raise(ctx, in)
	if err != nil || !first.Created {
		t.Fatalf("Raise first: created=%v err=%v", first.Created, err)
	}

	in.At = now.Add(2 * time.Hour)
	second, err := agg.Raise(ctx, in)
	if err != nil {
		t.Fatalf("Raise second: %v", err)
	}
	if second.Created || second.Alert.ID != first.Alert.ID {
		t.Fatalf("Raise second: want existing alert, got created=%v id=%s", second.Created, second.Alert.ID)
	}

	in.Type = sentiment.AlertTypeQualityDrop
	other, err := agg.Raise(ctx, in)
	if err != nil || !other.Created {
		t.Fatalf("Raise other type: created=%v err=%v", other.Created, err)
	}

	in.Type = sentiment.AlertTypeBiasDetected
	in.At = now.Add(25 * time.Hour)
	later, err := agg.Raise(ctx, in)
	if err != nil || !later.Created {
		t.Fatalf("Raise after cooldown: created=%v err=%v", later.Created, err)
	}

	if len(hooks.Operations) != 4 {
		t.Fatalf("hook operations: want=4 got=%d", len(hooks.Operations))
	}
}

func TestRaiseAfterAcknowledgeCreatesNewAlert(t *testing.T) {
	db := repotestutil.DB(t)
	agg := NewSentimentAlertAggregate(SentimentAlertAggregateDeps{
		Base:   BaseDeps{DB: db, Log: repotestutil.Logger(t)},
		Alerts: repos.NewSet(db, repotestutil.Logger(t)).Alerts,
	})
	ctx := context.Background()
	in := domainagg.RaiseAlertInput{
		OrgID:      uuid.New(),
		EmployeeID: uuid.New(),
		Type:       sentiment.AlertTypeConcerningFeedback,
		Severity:   sentiment.SeverityHigh,
		Message:    "negative feedback with no actionable detail",
	}
	first, err := agg.Raise(ctx, in)
	if err != nil {
		t.Fatalf("Raise: %v", err)
	}

	actor := uuid.New()
	ack, err := agg.Acknowledge(ctx, domainagg.AcknowledgeAlertInput{AlertID: first.Alert.ID, ActorID: actor})
	if err != nil || !ack.Changed || !ack.Alert.Acknowledged {
		t.Fatalf("Acknowledge: changed=%v err=%v", ack.Changed, err)
	}
	again, err := agg.Acknowledge(ctx, domainagg.AcknowledgeAlertInput{AlertID: first.Alert.ID, ActorID: uuid.New()})
	if err != nil || again.Changed {
		t.Fatalf("Acknowledge twice: changed=%v err=%v", again.Changed, err)
	}
	if *again.Alert.AcknowledgedBy != actor {
		t.Fatalf("acknowledged_by overwritten: %s", *again.Alert.AcknowledgedBy)
	}

	second, err := agg.Raise(ctx, in)
	if err != nil || !second.Created {
		t.Fatalf("Raise after ack: created=%v err=%v", second.Created, err)
	}

	_, err = agg.Acknowledge(ctx, domainagg.AcknowledgeAlertInput{AlertID: uuid.New(), ActorID: actor})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("Acknowledge missing: want not_found got=%v", err)
	}
}

func TestRaiseValidatesInput(t *testing.T) {
	agg := NewSentimentAlertAggregate(SentimentAlertAggregateDeps{
		Base: BaseDeps{Runner: spyTxRunner{}},
	})
	_, err := agg.Raise(context.Background(), domainagg.RaiseAlertInput{
		EmployeeID: uuid.New(),
		Type:       "mood_swing",
		Severity:   sentiment.SeverityLow,
		Message:    "x",
	})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("want validation, got=%v", err)
	}
}
