package store

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
	"time"
)

// IDField holds the document id in documents returned by a store.
const IDField = "id"

// Document is a schemaless record. Nested objects are map[string]any and
// arrays are []any once a document has passed through a store.
type Document map[string]any

func (d Document) ID() string { return d.String(IDField) }

func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

func (d Document) Bool(key string) bool {
	b, _ := d[key].(bool)
	return b
}

// Float returns a numeric field whatever its stored representation.
func (d Document) Float(key string) (float64, bool) {
	return toFloat(d[key])
}

// Time returns a timestamp field, or the zero time when absent or malformed.
func (d Document) Time(key string) time.Time {
	t, _ := toTime(d[key])
	return t
}

func (d Document) TimePtr(key string) *time.Time {
	t, ok := toTime(d[key])
	if !ok {
		return nil
	}
	return &t
}

func (d Document) Strings(key string) []string {
	switch v := d[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// TimeMap returns an object field whose values are timestamps. Entries that
// are not timestamps are skipped.
func (d Document) TimeMap(key string) map[string]time.Time {
	out := make(map[string]time.Time)
	switch v := d[key].(type) {
	case map[string]any:
		for k, item := range v {
			if t, ok := toTime(item); ok {
				out[k] = t
			}
		}
	case map[string]time.Time:
		for k, t := range v {
			out[k] = t
		}
	}
	return out
}

// Clone returns a deep copy of d with slices and maps normalised to []any and
// map[string]any.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = normalize(v)
	}
	return out
}

func normalize(v any) any {
	switch val := v.(type) {
	case Document:
		return map[string]any(val.Clone())
	case map[string]any:
		return map[string]any(Document(val).Clone())
	case map[string]time.Time:
		m := make(map[string]any, len(val))
		for k, t := range val {
			m[k] = t
		}
		return m
	case map[string]string:
		m := make(map[string]any, len(val))
		for k, s := range val {
			m[k] = s
		}
		return m
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case ArrayUnionValue:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	}
	return v
}

// ResolveServerValues replaces every ServerTimestamp in doc with now.
func ResolveServerValues(doc Document, now time.Time) Document {
	out := doc.Clone()
	for k, v := range out {
		out[k] = resolveValue(v, now)
	}
	return out
}

func resolveValue(v any, now time.Time) any {
	switch val := v.(type) {
	case serverValue:
		return now
	case map[string]any:
		for k, item := range val {
			val[k] = resolveValue(item, now)
		}
	}
	return v
}

// ApplyPatch returns a copy of doc with patch applied. Dotted keys address
// nested objects, which are created as needed.
func ApplyPatch(doc Document, patch Patch, now time.Time) Document {
	out := doc.Clone()
	if out == nil {
		out = Document{}
	}

	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, path := range keys {
		value := patch[path]
		parts := strings.Split(path, ".")
		parent := map[string]any(out)
		for _, part := range parts[:len(parts)-1] {
			next, ok := parent[part].(map[string]any)
			if !ok {
				next = map[string]any{}
				parent[part] = next
			}
			parent = next
		}
		leaf := parts[len(parts)-1]

		switch val := value.(type) {
		case serverValue:
			parent[leaf] = now
		case ArrayUnionValue:
			existing, _ := normalize(parent[leaf]).([]any)
			for _, item := range val {
				if !containsValue(existing, item) {
					existing = append(existing, normalize(item))
				}
			}
			if existing == nil {
				existing = []any{}
			}
			parent[leaf] = existing
		default:
			parent[leaf] = resolveValue(normalize(value), now)
		}
	}
	return out
}

// MergeDocuments deep-merges src into dst and returns the result.
func MergeDocuments(dst, src Document) Document {
	out := dst.Clone()
	if out == nil {
		out = Document{}
	}
	for k, v := range src.Clone() {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := out[k].(map[string]any)
		if srcIsMap && dstIsMap {
			out[k] = map[string]any(MergeDocuments(Document(dstMap), Document(srcMap)))
			continue
		}
		out[k] = v
	}
	return out
}

// Lookup resolves a dotted path inside doc.
func Lookup(doc Document, path string) (any, bool) {
	var current any = map[string]any(doc)
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			if d, isDoc := current.(Document); isDoc {
				m = d
			} else {
				return nil, false
			}
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Matches reports whether doc satisfies every filter.
func Matches(doc Document, filters []Filter) bool {
	for _, f := range filters {
		value, ok := Lookup(doc, f.Field)
		switch f.Op {
		case OpEqual:
			if !ok || !valuesEqual(value, f.Value) {
				return false
			}
		case OpIn:
			if !ok || !containsValue(normalizeList(f.Value), value) {
				return false
			}
		case OpArrayContains:
			list, isList := normalize(value).([]any)
			if !ok || !isList || !containsValue(list, f.Value) {
				return false
			}
		case OpAbsent:
			if ok && value != nil {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// SortDocuments orders docs by field, missing values first.
func SortDocuments(docs []Document, field string, desc bool) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, _ := Lookup(docs[i], field)
		b, _ := Lookup(docs[j], field)
		c := compareValues(a, b)
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func normalizeList(v any) []any {
	list, _ := normalize(v).([]any)
	return list
}

func containsValue(list []any, v any) bool {
	for _, item := range list {
		if valuesEqual(item, v) {
			return true
		}
	}
	return false
}

func valuesEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := toTime(b)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	if ta, ok := toTime(a); ok {
		if tb, ok := toTime(b); ok {
			return ta.Compare(tb)
		}
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return strings.Compare(sa, sb)
		}
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}
