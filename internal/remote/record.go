// Package remote implements the client for the external SaaS platform API:
// loosely-typed records, per-resource services, and termination-safe
// pagination over unreliable list endpoints.
package remote

import (
	"encoding/json"
	"strconv"
)

// Record is a loosely-typed remote payload. The platform is inconsistent
// about key names across resources (id vs _id, locationId vs location_id),
// so callers extract fields through the multi-key helpers below instead of
// assuming a fixed schema.
type Record map[string]any

// ID returns the record's remote identifier, checking the key spellings the
// platform uses across resources.
func (r Record) ID() string {
	return r.Str("id", "_id", "Id")
}

// Str returns the first non-empty string value among the given keys.
func (r Record) Str(keys ...string) string {
	for _, k := range keys {
		if v, ok := r[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// Int returns the first numeric value among the given keys as an int.
// JSON numbers decode as float64; string-encoded numbers also occur.
func (r Record) Int(keys ...string) (int, bool) {
	for _, k := range keys {
		v, ok := r[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int(n), true
		case int:
			return n, true
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return int(i), true
			}
		case string:
			if i, err := strconv.Atoi(n); err == nil {
				return i, true
			}
		}
	}
	return 0, false
}

// Bool returns the first boolean value among the given keys.
func (r Record) Bool(keys ...string) bool {
	for _, k := range keys {
		if v, ok := r[k].(bool); ok {
			return v
		}
	}
	return false
}

// Child returns a nested record under the given key, or nil.
func (r Record) Child(key string) Record {
	switch v := r[key].(type) {
	case Record:
		return v
	case map[string]any:
		return Record(v)
	}
	return nil
}

// List returns the nested record slice under the given key. Elements that
// are not objects are skipped.
func (r Record) List(key string) []Record {
	raw, ok := r[key].([]any)
	if !ok {
		return nil
	}
	out := make([]Record, 0, len(raw))
	for _, e := range raw {
		if m, ok := e.(map[string]any); ok {
			out = append(out, Record(m))
		}
	}
	return out
}

// Total extracts the server-reported total item count from a list response,
// checking meta.total first and then a top-level total.
func (r Record) Total() (int, bool) {
	if meta := r.Child("meta"); meta != nil {
		if n, ok := meta.Int("total"); ok {
			return n, true
		}
	}
	return r.Int("total")
}

// Cursor extracts the start-after cursor pair from a list response's
// metadata. The id half is an opaque string, the numeric half is typically
// a millisecond timestamp.
func (r Record) Cursor() (id string, after int, ok bool) {
	meta := r.Child("meta")
	if meta == nil {
		return "", 0, false
	}
	id = meta.Str("startAfterId", "nextPageId")
	after, _ = meta.Int("startAfter")
	return id, after, id != "" || after != 0
}
