package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/yungbote/perfinsight-backend/internal/platform/httpx"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

func TestEmbedReordersByIndex(t *testing.T) {
	c := newTestClient(t, 0, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/v1/embeddings" {
			t.Fatalf("path: want=%q got=%q", "/v1/embeddings", r.URL.Path)
		}
		return jsonResponse(t, http.StatusOK, map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float64{0, 1}},
				{"index": 0, "embedding": []float64{1, 0}},
			},
		}), nil
	})

	vecs, err := c.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Fatalf("embedding order mismatch: %v", vecs)
	}
}

func TestEmbedMissingIndexFails(t *testing.T) {
	c := newTestClient(t, 0, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusOK, map[string]any{
			"data": []map[string]any{{"index": 0, "embedding": []float64{1}}},
		}), nil
	})
	if _, err := c.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatalf("Embed: expected error for missing index")
	}
}

func TestCompleteSendsSchemaAndReadsCertainty(t *testing.T) {
	var captured map[string]any
	c := newTestClient(t, 0, func(r *http.Request) (*http.Response, error) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return jsonResponse(t, http.StatusOK, outputText(`{"strengths":"x","certainty":0.8}`)), nil
	})

	out, err := c.Complete(context.Background(), CompletionRequest{
		System:     "Draft a review.",
		User:       "evidence",
		MaxTokens:  900,
		SchemaName: "review_draft",
		Schema:     map[string]any{"type": "object"},
		Strict:     true,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out.Certainty == nil || *out.Certainty != 0.8 {
		t.Fatalf("certainty: want=0.8 got=%v", out.Certainty)
	}
	if out.InputTokens != 10 || out.OutputTokens != 20 {
		t.Fatalf("usage: got in=%d out=%d", out.InputTokens, out.OutputTokens)
	}
	if captured["max_output_tokens"] != float64(900) {
		t.Fatalf("max_output_tokens: got=%v", captured["max_output_tokens"])
	}
	text, _ := captured["text"].(map[string]any)
	format, _ := text["format"].(map[string]any)
	if format["name"] != "review_draft" || format["type"] != "json_schema" {
		t.Fatalf("format: got=%v", format)
	}
	input, _ := captured["input"].([]any)
	system, _ := input[0].(map[string]any)
	if !strings.Contains(system["content"].(string), "Return ONLY a single JSON object") {
		t.Fatalf("strict guidance missing from system prompt")
	}
}

func TestCompleteDoesNotRetryWhenMaxRetriesZero(t *testing.T) {
	calls := 0
	c := newTestClient(t, 0, func(r *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(t, http.StatusServiceUnavailable, map[string]any{"error": "busy"}), nil
	})
	_, err := c.Complete(context.Background(), CompletionRequest{System: "s", User: "u"})
	if err == nil {
		t.Fatalf("Complete: expected error")
	}
	if !httpx.IsRetryableError(err) {
		t.Fatalf("503 should classify as retryable: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
}

func TestRespondDropsUnsupportedTemperature(t *testing.T) {
	calls := 0
	c := newTestClient(t, 0, func(r *http.Request) (*http.Response, error) {
		calls++
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["temperature"]; ok {
			return jsonResponse(t, http.StatusBadRequest, map[string]any{"error": "Unsupported parameter: 'temperature'"}), nil
		}
		return jsonResponse(t, http.StatusOK, outputText("hello")), nil
	})
	out, err := c.GenerateText(context.Background(), "Say hello.", "hi")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if out != "hello" || calls != 2 {
		t.Fatalf("want hello after 2 calls, got=%q calls=%d", out, calls)
	}
}

func newTestClient(t *testing.T, retries int, fn func(*http.Request) (*http.Response, error)) Client {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	temp := 0.2
	c, err := NewClientWithConfig(log, Config{
		APIKey:      "sk-test",
		BaseURL:     "http://openai.local",
		MaxRetries:  retries,
		Temperature: &temp,
	}, &http.Client{Transport: roundTripFunc(fn)})
	if err != nil {
		t.Fatalf("NewClientWithConfig: %v", err)
	}
	return c
}

func outputText(text string) map[string]any {
	return map[string]any{
		"output": []map[string]any{{
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "output_text", "text": text},
			},
		}},
		"usage": map[string]any{"input_tokens": 10, "output_tokens": 20},
	}
}

func jsonResponse(t *testing.T, status int, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(raw)),
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
