package sendgrid

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func newTestClient(t *testing.T, cfg Config, fn roundTripFunc) Client {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = "sg-test"
	}
	c, err := NewWithHTTPClient(log, cfg, &http.Client{Transport: fn})
	if err != nil {
		t.Fatalf("NewWithHTTPClient: %v", err)
	}
	c.(*client).backoff = time.Millisecond
	return c
}

func reply(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"X-Message-Id": []string{"msg-1"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestSendBuildsMailSendPayload(t *testing.T) {
	var got mailSendRequest
	var auth string
	c := newTestClient(t, Config{DefaultFromEmail: "noreply@example.com", DefaultFromName: "Insights"}, func(r *http.Request) (*http.Response, error) {
		auth = r.Header.Get("Authorization")
		if r.URL.Path != "/v3/mail/send" {
			t.Fatalf("path: want=/v3/mail/send got=%s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return reply(http.StatusAccepted, ""), nil
	})

	res, err := c.Send(context.Background(), SendEmailRequest{
		To:         []EmailAddress{{Email: "manager@example.com"}},
		Subject:    " Sentiment alert ",
		Text:       "Feedback for your report shifted.",
		CustomArgs: map[string]string{"alert_id": "a1"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.StatusCode != http.StatusAccepted || res.MessageID != "msg-1" {
		t.Fatalf("result: got=%+v", res)
	}
	if auth != "Bearer sg-test" {
		t.Fatalf("auth header: got=%q", auth)
	}
	if got.From.Email != "noreply@example.com" || got.From.Name != "Insights" {
		t.Fatalf("from: got=%+v", got.From)
	}
	if got.Subject != "Sentiment alert" || len(got.Content) != 1 || got.Content[0].Type != "text/plain" {
		t.Fatalf("payload: got=%+v", got)
	}
	if got.Personalizations[0].CustomArgs["alert_id"] != "a1" {
		t.Fatalf("custom args: got=%+v", got.Personalizations[0])
	}
}

func TestSendValidatesRequest(t *testing.T) {
	c := newTestClient(t, Config{}, func(r *http.Request) (*http.Response, error) {
		t.Fatalf("no request expected")
		return nil, nil
	})
	cases := map[string]SendEmailRequest{
		"no from":    {To: []EmailAddress{{Email: "a@example.com"}}, Subject: "s", Text: "t"},
		"no to":      {From: EmailAddress{Email: "f@example.com"}, Subject: "s", Text: "t"},
		"no subject": {From: EmailAddress{Email: "f@example.com"}, To: []EmailAddress{{Email: "a@example.com"}}, Text: "t"},
		"no content": {From: EmailAddress{Email: "f@example.com"}, To: []EmailAddress{{Email: "a@example.com"}}, Subject: "s"},
	}
	for name, req := range cases {
		if _, err := c.Send(context.Background(), req); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestSendRetriesServerErrorsOnly(t *testing.T) {
	calls := 0
	c := newTestClient(t, Config{MaxRetries: 2}, func(r *http.Request) (*http.Response, error) {
		calls++
		if calls < 3 {
			return reply(http.StatusServiceUnavailable, "busy"), nil
		}
		return reply(http.StatusAccepted, ""), nil
	})
	req := SendEmailRequest{From: EmailAddress{Email: "f@example.com"}, To: []EmailAddress{{Email: "a@example.com"}}, Subject: "s", Text: "t"}
	if _, err := c.Send(context.Background(), req); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls: want=3 got=%d", calls)
	}

	calls = 0
	c = newTestClient(t, Config{MaxRetries: 2}, func(r *http.Request) (*http.Response, error) {
		calls++
		return reply(http.StatusBadRequest, `{"errors":[{"message":"invalid to address"}]}`), nil
	})
	_, err := c.Send(context.Background(), req)
	var he *HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusBadRequest {
		t.Fatalf("error: want HTTPError 400 got=%v", err)
	}
	if !strings.Contains(err.Error(), "invalid to address") {
		t.Fatalf("message: got=%q", err.Error())
	}
	if calls != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
}
