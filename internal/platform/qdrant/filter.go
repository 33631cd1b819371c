package qdrant

import (
	"fmt"
	"sort"
	"strings"
)

type matchClause struct {
	Value any `json:"value"`
}

type fieldCondition struct {
	Key   string      `json:"key"`
	Match matchClause `json:"match"`
}

type searchFilter struct {
	Must []fieldCondition `json:"must"`
}

// buildFilter scopes a search to one namespace and adds an equality condition per filter field.
// Evidence is narrowed only by payload equality (org_id, employee_id, source_type), so a field
// maps to a scalar or to {"$eq": scalar}.
func buildFilter(qualifiedNS string, filter map[string]any) (searchFilter, error) {
	out := searchFilter{Must: []fieldCondition{{Key: payloadNamespaceKey, Match: matchClause{Value: qualifiedNS}}}}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		if strings.TrimSpace(k) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		field := strings.TrimSpace(key)
		if strings.HasPrefix(field, "$") {
			return searchFilter{}, unsupported(fmt.Sprintf("top-level operator %s", field))
		}
		value, err := equalityValue(field, filter[key])
		if err != nil {
			return searchFilter{}, err
		}
		out.Must = append(out.Must, fieldCondition{Key: field, Match: matchClause{Value: value}})
	}
	return out, nil
}

func equalityValue(field string, value any) (any, error) {
	if ops, ok := value.(map[string]any); ok {
		arg, ok := ops["$eq"]
		if !ok || len(ops) != 1 {
			return nil, unsupported(fmt.Sprintf("field %q supports only $eq", field))
		}
		value = arg
	}
	switch value.(type) {
	case string, bool, int, int32, int64, float32, float64:
		return value, nil
	}
	return nil, unsupported(fmt.Sprintf("field %q value of type %T", field, value))
}

func unsupported(msg string) error {
	return opErr("filter", OperationErrorUnsupportedFilter, msg, nil)
}
