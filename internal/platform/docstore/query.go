package docstore

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Compare orders two normalized values. ok is false when the values are not
// comparable (different types, or a nil against a non-nil value).
// Strings that both parse as RFC 3339 timestamps compare chronologically.
func Compare(a, b interface{}) (result int, ok bool) {
	if a == nil || b == nil {
		if a == nil && b == nil {
			return 0, true
		}
		return 0, false
	}

	if fa, isNum := toFloat(a); isNum {
		fb, isNum := toFloat(b)
		if !isNum {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}

	switch av := a.(type) {
	case string:
		bv, isStr := b.(string)
		if !isStr {
			return 0, false
		}
		if ta, err := time.Parse(time.RFC3339Nano, av); err == nil {
			if tb, err := time.Parse(time.RFC3339Nano, bv); err == nil {
				return ta.Compare(tb), true
			}
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, isBool := b.(bool)
		if !isBool {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

// Matches reports whether data satisfies the filter. Missing fields are nil.
func (f Filter) Matches(data Fields) bool {
	want, err := NormalizeValue(f.Value)
	if err != nil {
		return false
	}
	c, ok := Compare(data[f.Field], want)
	if !ok {
		return false
	}
	switch f.Op {
	case Eq:
		return c == 0
	case Lt:
		return c < 0
	case Lte:
		return c <= 0
	case Gt:
		return c > 0
	case Gte:
		return c >= 0
	}
	return false
}

// Apply filters, orders and pages docs in memory. Backends without native
// query support use it after loading the collection.
func Apply(docs []Document, q Query) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		matched := true
		for _, f := range q.Filters {
			if !f.Matches(d.Data) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, d)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if q.OrderBy != "" {
			a, b := out[i].Data[q.OrderBy], out[j].Data[q.OrderBy]
			// nulls last in both directions
			switch {
			case a == nil && b != nil:
				return false
			case a != nil && b == nil:
				return true
			}
			if c, ok := Compare(a, b); ok && c != 0 {
				if q.Descending {
					return c > 0
				}
				return c < 0
			}
		}
		return out[i].ID < out[j].ID
	})

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return []Document{}
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}
