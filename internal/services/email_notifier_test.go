package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/perfinsight-backend/internal/data/repos"
	"github.com/yungbote/perfinsight-backend/internal/data/repos/testutil"
	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
	"github.com/yungbote/perfinsight-backend/internal/platform/sendgrid"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []sendgrid.SendEmailRequest
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, req sendgrid.SendEmailRequest) (*sendgrid.SendEmailResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, req)
	if m.err != nil {
		return nil, m.err
	}
	return &sendgrid.SendEmailResult{StatusCode: 202}, nil
}

func TestEmailNotifierMailsRecipientOnFile(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	set := repos.NewSet(db, log)
	manager := testutil.SeedEmployee(t, context.Background(), db, uuid.New(), nil, types.RoleManager)

	mail := &recordingMailer{}
	n := NewEmailNotifier(log, mail, set.Employees)
	alert := &sentiment.SentimentAlert{
		ID:       uuid.New(),
		Type:     sentiment.AlertTypeQualityDrop,
		Severity: sentiment.SeverityHigh,
		Message:  "feedback quality dropped",
	}
	n.AlertRaised(context.Background(), manager.ID, alert)
	n.AlertRaised(context.Background(), uuid.New(), alert)
	n.ReviewStatusChanged(context.Background(), manager.ID, &types.PerformanceReview{ID: uuid.New(), Version: 3},
		types.ReviewStatusHumanEdited, types.ReviewStatusSubmitted)

	if len(mail.sent) != 2 {
		t.Fatalf("sent: want=2 got=%d", len(mail.sent))
	}
	first := mail.sent[0]
	if first.To[0].Email != manager.Email {
		t.Fatalf("to: want=%s got=%s", manager.Email, first.To[0].Email)
	}
	if first.Text != alert.Message || first.CustomArgs["alert_id"] != alert.ID.String() {
		t.Fatalf("alert mail: got=%+v", first)
	}
	if mail.sent[1].CustomArgs["event"] != EventReviewStatusChanged {
		t.Fatalf("status mail event: got=%v", mail.sent[1].CustomArgs)
	}
}

func TestMultiNotifierFansOutAndSurvivesMailFailure(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	set := repos.NewSet(db, log)
	manager := testutil.SeedEmployee(t, context.Background(), db, uuid.New(), nil, types.RoleManager)

	pub := &recordingPublisher{}
	mail := &recordingMailer{err: errors.New("sendgrid down")}
	n := NewMultiNotifier(NewNotifier(log, pub, ""), nil, NewEmailNotifier(log, mail, set.Employees))
	n.AlertRaised(context.Background(), manager.ID, &sentiment.SentimentAlert{ID: uuid.New(), Type: sentiment.AlertTypeBiasDetected, Severity: sentiment.SeverityLow})

	if len(pub.payloads) != 1 || len(mail.sent) != 1 {
		t.Fatalf("fan-out: publish=%d mail=%d", len(pub.payloads), len(mail.sent))
	}

	single := NewNotifier(log, pub, "")
	if got := NewMultiNotifier(single, nil); got != single {
		t.Fatalf("single notifier should be returned unwrapped")
	}
}
