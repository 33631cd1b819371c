package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

func TestQueryMatchesIncludesMetadataAndNamespace(t *testing.T) {
	var captured map[string]any
	store := newTestStore(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.String() != "http://idx.local/query" {
			t.Fatalf("url: want=%q got=%q", "http://idx.local/query", r.URL.String())
		}
		if r.Header.Get("Api-Key") != "k" {
			t.Fatalf("api key header: got=%q", r.Header.Get("Api-Key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return jsonResponse(t, http.StatusOK, map[string]any{
			"matches": []map[string]any{
				{"id": "feedback:1", "score": 0.91, "metadata": map[string]any{"source_type": "feedback"}},
				{"id": "", "score": 0.5},
			},
		}), nil
	})

	matches, err := store.QueryMatches(context.Background(), "org-1", []float32{1, 2}, 3, map[string]any{"org_id": map[string]any{"$eq": "org-1"}})
	if err != nil {
		t.Fatalf("QueryMatches: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("matches: want=1 got=%d", len(matches))
	}
	if matches[0].Metadata["source_type"] != "feedback" {
		t.Fatalf("metadata: got=%v", matches[0].Metadata)
	}
	if captured["namespace"] != "pi:org-1" {
		t.Fatalf("namespace: want=%q got=%v", "pi:org-1", captured["namespace"])
	}
	if captured["includeMetadata"] != true {
		t.Fatalf("includeMetadata: got=%v", captured["includeMetadata"])
	}
}

func TestQueryMatchesSurfacesHTTPStatus(t *testing.T) {
	store := newTestStore(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusServiceUnavailable, map[string]any{"message": "busy"}), nil
	})
	_, err := store.QueryMatches(context.Background(), "", []float32{1}, 1, nil)
	httpErr, ok := err.(*HTTPError)
	if !ok {
		t.Fatalf("expected *HTTPError, got=%T (%v)", err, err)
	}
	if httpErr.HTTPStatusCode() != http.StatusServiceUnavailable {
		t.Fatalf("status: want=%d got=%d", http.StatusServiceUnavailable, httpErr.HTTPStatusCode())
	}
}

func TestDeleteIDsSkipsEmpty(t *testing.T) {
	calls := 0
	store := newTestStore(t, func(r *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(t, http.StatusOK, map[string]any{}), nil
	})
	if err := store.DeleteIDs(context.Background(), "org-1", nil); err != nil {
		t.Fatalf("DeleteIDs: %v", err)
	}
	if calls != 0 {
		t.Fatalf("calls: want=0 got=%d", calls)
	}
	if err := store.DeleteIDs(context.Background(), "org-1", []string{"a"}); err != nil {
		t.Fatalf("DeleteIDs: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
}

func newTestStore(t *testing.T, fn func(*http.Request) (*http.Response, error)) VectorStore {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	pc, err := NewWithHTTPClient(log, Config{APIKey: "k", HostScheme: "http"}, &http.Client{Transport: roundTripFunc(fn)})
	if err != nil {
		t.Fatalf("NewWithHTTPClient: %v", err)
	}
	store, err := NewVectorStore(log, pc, StoreConfig{IndexName: "reviews", IndexHost: "idx.local"})
	if err != nil {
		t.Fatalf("NewVectorStore: %v", err)
	}
	return store
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
