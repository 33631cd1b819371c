package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/perfinsight-backend/internal/data/repos/testutil"
	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
)

func TestNotifierPublishesEnvelopePerRecipient(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewNotifier(testutil.Logger(t), pub, "")
	recipient := uuid.New()

	n.AlertRaised(context.Background(), recipient, &sentiment.SentimentAlert{
		ID:       uuid.New(),
		Type:     sentiment.AlertTypeQualityDrop,
		Severity: sentiment.SeverityLow,
		Message:  "quality dipped",
	})
	n.ReviewStatusChanged(context.Background(), recipient, &types.PerformanceReview{ID: uuid.New(), Version: 3},
		types.ReviewStatusHumanEdited, types.ReviewStatusSubmitted)
	n.AlertRaised(context.Background(), uuid.Nil, &sentiment.SentimentAlert{})

	if len(pub.payloads) != 2 {
		t.Fatalf("published: want=2 got=%d", len(pub.payloads))
	}
	if pub.channels[0] != DefaultNotificationChannel {
		t.Fatalf("channel: want=%s got=%s", DefaultNotificationChannel, pub.channels[0])
	}
	msg, ok := pub.payloads[1].(Notification)
	if !ok {
		t.Fatalf("payload type: got=%T", pub.payloads[1])
	}
	if msg.Channel != recipient.String() || msg.Event != EventReviewStatusChanged || msg.Data["to"] != types.ReviewStatusSubmitted {
		t.Fatalf("envelope: got=%+v", msg)
	}
}

func TestNotifierSurvivesPublishFailure(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("redis down")}
	n := NewNotifier(testutil.Logger(t), pub, "alerts")
	n.AlertRaised(context.Background(), uuid.New(), &sentiment.SentimentAlert{ID: uuid.New()})
	if len(pub.channels) != 1 || pub.channels[0] != "alerts" {
		t.Fatalf("publish attempts: got=%v", pub.channels)
	}

	NewNotifier(testutil.Logger(t), nil, "").AlertRaised(context.Background(), uuid.New(), &sentiment.SentimentAlert{})
}
