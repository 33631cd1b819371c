package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/perfinsight-backend/internal/data/repos"
	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
	"github.com/yungbote/perfinsight-backend/internal/platform/sendgrid"
)

type emailNotifier struct {
	log       *logger.Logger
	mail      sendgrid.Client
	employees repos.EmployeeRepo
}

// NewEmailNotifier mails notifications to the recipient's address on file.
func NewEmailNotifier(baseLog *logger.Logger, mail sendgrid.Client, employees repos.EmployeeRepo) Notifier {
	return &emailNotifier{
		log:       baseLog.With("service", "EmailNotifier"),
		mail:      mail,
		employees: employees,
	}
}

func (n *emailNotifier) AlertRaised(ctx context.Context, recipientID uuid.UUID, alert *sentiment.SentimentAlert) {
	if n == nil || alert == nil || recipientID == uuid.Nil {
		return
	}
	subject := fmt.Sprintf("[%s] Feedback alert: %s", strings.ToUpper(alert.Severity), strings.ReplaceAll(alert.Type, "_", " "))
	n.send(ctx, recipientID, subject, alert.Message, map[string]string{
		"event":    EventAlertRaised,
		"alert_id": alert.ID.String(),
	})
}

func (n *emailNotifier) ReviewStatusChanged(ctx context.Context, recipientID uuid.UUID, review *types.PerformanceReview, from, to string) {
	if n == nil || review == nil || recipientID == uuid.Nil {
		return
	}
	subject := fmt.Sprintf("Performance review %s", strings.ReplaceAll(to, "_", " "))
	body := fmt.Sprintf("A performance review moved from %s to %s (version %d).", from, to, review.Version)
	n.send(ctx, recipientID, subject, body, map[string]string{
		"event":     EventReviewStatusChanged,
		"review_id": review.ID.String(),
	})
}

func (n *emailNotifier) send(ctx context.Context, recipientID uuid.UUID, subject, body string, args map[string]string) {
	ctx = context.WithoutCancel(ctx)
	emp, err := n.employees.GetByID(dbctx.Context{Ctx: ctx}, recipientID)
	if err != nil {
		n.log.Warn("email recipient lookup failed", "recipient_id", recipientID, "error", err)
		return
	}
	if emp == nil || strings.TrimSpace(emp.Email) == "" {
		return
	}
	_, err = n.mail.Send(ctx, sendgrid.SendEmailRequest{
		To:         []sendgrid.EmailAddress{{Email: emp.Email, Name: strings.TrimSpace(emp.FirstName + " " + emp.LastName)}},
		Subject:    subject,
		Text:       body,
		Categories: []string{args["event"]},
		CustomArgs: args,
	})
	if err != nil {
		n.log.Warn("email notification failed", "event", args["event"], "recipient_id", recipientID, "error", err)
	}
}

type multiNotifier []Notifier

// NewMultiNotifier delivers every notification through each non-nil notifier in order.
func NewMultiNotifier(ns ...Notifier) Notifier {
	out := make(multiNotifier, 0, len(ns))
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func (m multiNotifier) AlertRaised(ctx context.Context, recipientID uuid.UUID, alert *sentiment.SentimentAlert) {
	for _, n := range m {
		n.AlertRaised(ctx, recipientID, alert)
	}
}

func (m multiNotifier) ReviewStatusChanged(ctx context.Context, recipientID uuid.UUID, review *types.PerformanceReview, from, to string) {
	for _, n := range m {
		n.ReviewStatusChanged(ctx, recipientID, review, from, to)
	}
}
