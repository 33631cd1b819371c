package services

import (
	"context"

	"github.com/google/uuid"

	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

const (
	EventAlertRaised         = "sentiment_alert_raised"
	EventReviewStatusChanged = "review_status_changed"
)

const DefaultNotificationChannel = "notifications"

// Notification is the envelope published for downstream delivery. Channel is the recipient id.
type Notification struct {
	Channel string         `json:"channel"`
	Event   string         `json:"event"`
	Data    map[string]any `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

type Notifier interface {
	AlertRaised(ctx context.Context, recipientID uuid.UUID, alert *sentiment.SentimentAlert)
	ReviewStatusChanged(ctx context.Context, recipientID uuid.UUID, review *types.PerformanceReview, from, to string)
}

type notifier struct {
	log     *logger.Logger
	pub     Publisher
	channel string
}

// NewNotifier publishes through pub; with a nil publisher notifications are only logged.
func NewNotifier(baseLog *logger.Logger, pub Publisher, channel string) Notifier {
	if channel == "" {
		channel = DefaultNotificationChannel
	}
	return &notifier{
		log:     baseLog.With("service", "Notifier"),
		pub:     pub,
		channel: channel,
	}
}

func (n *notifier) AlertRaised(ctx context.Context, recipientID uuid.UUID, alert *sentiment.SentimentAlert) {
	if n == nil || alert == nil || recipientID == uuid.Nil {
		return
	}
	n.emit(ctx, Notification{
		Channel: recipientID.String(),
		Event:   EventAlertRaised,
		Data: map[string]any{
			"alert_id":    alert.ID,
			"employee_id": alert.EmployeeID,
			"type":        alert.Type,
			"severity":    alert.Severity,
			"message":     alert.Message,
			"timestamp":   alert.CreatedAt,
		},
	})
}

func (n *notifier) ReviewStatusChanged(ctx context.Context, recipientID uuid.UUID, review *types.PerformanceReview, from, to string) {
	if n == nil || review == nil || recipientID == uuid.Nil {
		return
	}
	n.emit(ctx, Notification{
		Channel: recipientID.String(),
		Event:   EventReviewStatusChanged,
		Data: map[string]any{
			"review_id":   review.ID,
			"employee_id": review.EmployeeID,
			"from":        from,
			"to":          to,
			"version":     review.Version,
		},
	})
}

func (n *notifier) emit(ctx context.Context, msg Notification) {
	if n.pub == nil {
		n.log.Info("notification", "event", msg.Event, "recipient_id", msg.Channel)
		return
	}
	if err := n.pub.Publish(context.WithoutCancel(ctx), n.channel, msg); err != nil {
		n.log.Warn("notification publish failed", "event", msg.Event, "recipient_id", msg.Channel, "error", err)
	}
}
