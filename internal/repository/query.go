package repository

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"reelshare/internal/models"
)

// Query narrows and orders a collection listing. Filters are equality
// matches on top-level fields; the value "null" matches null or absent.
type Query struct {
	Filters map[string]string
	Sort    string
	Desc    bool
	Limit   int
	Offset  int
}

// Apply filters, sorts and pages docs. docs must be in insertion order.
func (q Query) Apply(docs []models.Fields) []models.Fields {
	out := make([]models.Fields, 0, len(docs))
	for _, doc := range docs {
		if q.matches(doc) {
			out = append(out, doc)
		}
	}

	if q.Sort != "" {
		slices.SortStableFunc(out, func(a, b models.Fields) int {
			c := compareValues(a[q.Sort], b[q.Sort])
			if q.Desc {
				return -c
			}
			return c
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return []models.Fields{}
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out
}

func (q Query) matches(doc models.Fields) bool {
	for field, want := range q.Filters {
		v, ok := doc[field]
		if want == "null" {
			if ok && v != nil {
				return false
			}
			continue
		}
		if !ok || scalarString(v) != want {
			return false
		}
	}
	return true
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// compareValues orders nil first, then numbers, then timestamps, then strings.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	sa, sb := scalarString(a), scalarString(b)
	if ta, err := time.Parse(time.RFC3339Nano, sa); err == nil {
		if tb, err := time.Parse(time.RFC3339Nano, sb); err == nil {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(sa, sb)
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	}
	return 0, false
}

func intField(doc models.Fields, field string) (int64, error) {
	v, ok := doc[field]
	if !ok || v == nil {
		return 0, nil
	}
	f, ok := number(v)
	if !ok {
		return 0, models.NewValidationError(fmt.Sprintf("field %q is not numeric", field))
	}
	return int64(f), nil
}

func stringList(v any) []string {
	raw, _ := v.([]any)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// setMember adds or removes id and reports whether the list changed.
func setMember(list []string, id string, present bool) ([]string, bool) {
	has := slices.Contains(list, id)
	switch {
	case present && !has:
		return append(list, id), true
	case !present && has:
		return slices.DeleteFunc(list, func(s string) bool { return s == id }), true
	}
	return list, false
}
