package runtime

import (
	"context"
	"reflect"
	"testing"
)

type namedJob string

func (j namedJob) Type() string                  { return string(j) }
func (j namedJob) Run(ctx context.Context) error { return nil }

func TestRegistryRejectsDuplicatesAndBlanks(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(namedJob("sentiment_summarize")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(namedJob("sentiment_summarize")); err == nil {
		t.Fatalf("duplicate: want error")
	}
	if err := r.Register(namedJob("")); err == nil {
		t.Fatalf("blank type: want error")
	}
	if err := r.Register(nil); err == nil {
		t.Fatalf("nil job: want error")
	}
	if err := r.Register(namedJob("evidence_index")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if got := r.Types(); !reflect.DeepEqual(got, []string{"evidence_index", "sentiment_summarize"}) {
		t.Fatalf("types: got=%v", got)
	}
	if _, ok := r.Get("missing"); ok {
		t.Fatalf("Get(missing): want ok=false")
	}
}
