package qdrant

import (
	"errors"
	"testing"
)

func TestBuildFilterEquality(t *testing.T) {
	f, err := buildFilter("pi:org-1", map[string]any{
		"source_type": "okr",
		"employee_id": map[string]any{"$eq": "emp-1"},
		" ":           "ignored",
	})
	if err != nil {
		t.Fatalf("buildFilter: %v", err)
	}
	want := []fieldCondition{
		{Key: payloadNamespaceKey, Match: matchClause{Value: "pi:org-1"}},
		{Key: "employee_id", Match: matchClause{Value: "emp-1"}},
		{Key: "source_type", Match: matchClause{Value: "okr"}},
	}
	if len(f.Must) != len(want) {
		t.Fatalf("must: want=%v got=%v", want, f.Must)
	}
	for i := range want {
		if f.Must[i] != want[i] {
			t.Fatalf("must[%d]: want=%v got=%v", i, want[i], f.Must[i])
		}
	}
}

func TestBuildFilterRejectsNonEquality(t *testing.T) {
	cases := []map[string]any{
		{"$or": []any{}},
		{"source_type": map[string]any{"$in": []any{"okr"}}},
		{"source_type": map[string]any{"$eq": "okr", "$ne": "feedback"}},
		{"employee_id": []string{"emp-1"}},
	}
	for i, filter := range cases {
		_, err := buildFilter("pi:org-1", filter)
		var opErr *OperationError
		if !errors.As(err, &opErr) || opErr.Code != OperationErrorUnsupportedFilter {
			t.Fatalf("case %d: want=%s got=%v", i, OperationErrorUnsupportedFilter, err)
		}
	}
}
