package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
)

var SentimentAlertAggregateContract = Contract{
	Name:       "Sentiment.Alert",
	Table:      "sentiment_alert",
	Guard:      GuardAdvisoryLock,
	Operations: []string{"Raise", "Acknowledge"},
}

// SentimentAlertAggregate owns sentiment_alert write invariants. Alerts are never deleted.
type SentimentAlertAggregate interface {
	Aggregate

	// Raise inserts an alert unless an unacknowledged alert of the same type exists for the employee
	// within the cooldown window, in which case it returns that alert with Created=false.
	Raise(ctx context.Context, in RaiseAlertInput) (RaiseAlertResult, error)

	// Acknowledge flips acknowledged false -> true. Acknowledging twice is a no-op.
	Acknowledge(ctx context.Context, in AcknowledgeAlertInput) (AcknowledgeAlertResult, error)
}

type RaiseAlertInput struct {
	OrgID       uuid.UUID
	EmployeeID  uuid.UUID
	Type        string
	Severity    string
	Message     string
	FeedbackIDs []uuid.UUID
	Cooldown    time.Duration
	At          time.Time
}

type RaiseAlertResult struct {
	Alert   *sentiment.SentimentAlert
	Created bool
}

type AcknowledgeAlertInput struct {
	AlertID uuid.UUID
	ActorID uuid.UUID
	At      time.Time
}

type AcknowledgeAlertResult struct {
	Alert   *sentiment.SentimentAlert
	Changed bool
}
