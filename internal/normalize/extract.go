package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/jonathan/parts-dashboard/internal/types"
)

// Extractor converts a raw source value into the canonical value for a field.
// It reports false when the value has the wrong shape or is empty, so the
// next candidate gets a chance.
type Extractor func(v any) (any, bool)

// Candidate pairs a source key with the extractor applied to its value.
// Keys may be dotted paths into nested objects ("customer.customer_uid").
type Candidate struct {
	Key     string
	Extract Extractor
}

// Rules is an ordered candidate list; the first candidate that yields a value wins.
type Rules []Candidate

// Resolve evaluates the rules in order against raw.
func (rs Rules) Resolve(raw map[string]any) (any, bool) {
	for _, c := range rs {
		v, ok := lookup(raw, c.Key)
		if !ok || v == nil {
			continue
		}
		if out, ok := c.Extract(v); ok {
			return out, true
		}
	}
	return nil, false
}

// ResolveString resolves the rules and returns the result as a string.
func (rs Rules) ResolveString(raw map[string]any) string {
	v, ok := rs.Resolve(raw)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// lookup walks a dotted path. The empty key addresses raw itself.
func lookup(raw map[string]any, key string) (any, bool) {
	if key == "" {
		return raw, true
	}
	var cur any = raw
	for _, part := range strings.Split(key, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case types.RawRecord:
		return m, true
	}
	return nil, false
}

// text accepts strings and numbers.
func text(v any) (any, bool) {
	switch s := v.(type) {
	case string:
		s = strings.TrimSpace(s)
		return s, s != ""
	case json.Number:
		return s.String(), true
	case float64:
		if s == math.Trunc(s) && math.Abs(s) < 1e15 {
			return strconv.FormatInt(int64(s), 10), true
		}
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	}
	return nil, false
}

// number accepts numeric values and numeric strings.
func number(v any) (any, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil, false
		}
		f = parsed
	default:
		return nil, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return f, true
}

// named unwraps either a plain string or an object carrying one of nameKeys.
func named(nameKeys ...string) Extractor {
	return func(v any) (any, bool) {
		if s, ok := text(v); ok {
			return s, true
		}
		m, ok := asMap(v)
		if !ok {
			return nil, false
		}
		for _, key := range nameKeys {
			if s, ok := text(m[key]); ok {
				return s, true
			}
		}
		return nil, false
	}
}

// firstOf unwraps a list to its first element before applying next.
func firstOf(next Extractor) Extractor {
	return func(v any) (any, bool) {
		if list, ok := v.([]any); ok {
			if len(list) == 0 {
				return nil, false
			}
			v = list[0]
		}
		return next(v)
	}
}

// person builds a display name from a string, an object with first/last
// name fields (optionally nested under "user"), or a list of those.
func person(firstKey, lastKey string, fallbackKeys ...string) Extractor {
	var extract Extractor
	extract = func(v any) (any, bool) {
		if s, ok := v.(string); ok {
			return text(s)
		}
		m, ok := asMap(v)
		if !ok {
			return nil, false
		}
		if user, ok := asMap(m["user"]); ok {
			if name, ok := extract(user); ok {
				return name, true
			}
		}
		first, _ := text(m[firstKey])
		last, _ := text(m[lastKey])
		full := strings.TrimSpace(strings.TrimSpace(toString(first)) + " " + strings.TrimSpace(toString(last)))
		if full != "" {
			return full, true
		}
		for _, key := range fallbackKeys {
			if s, ok := text(m[key]); ok {
				return s, true
			}
		}
		return nil, false
	}
	return firstOf(extract)
}

// personID takes an identifier from an object, its nested "user", or the first list entry.
func personID(idKeys ...string) Extractor {
	var extract Extractor
	extract = func(v any) (any, bool) {
		m, ok := asMap(v)
		if !ok {
			return nil, false
		}
		for _, key := range idKeys {
			if s, ok := text(m[key]); ok {
				return s, true
			}
		}
		if user, ok := asMap(m["user"]); ok {
			return extract(user)
		}
		return nil, false
	}
	return firstOf(extract)
}

// addressLine flattens a string or an address object into one line.
func addressLine(v any) (any, bool) {
	if s, ok := v.(string); ok {
		return text(s)
	}
	m, ok := asMap(v)
	if !ok {
		return nil, false
	}
	var parts []string
	for _, key := range []string{"street", "street_address", "address_line1", "city", "state", "zip_code", "postal_code", "country"} {
		if s, ok := text(m[key]); ok {
			parts = append(parts, toString(s))
		}
	}
	if len(parts) == 0 {
		return nil, false
	}
	return strings.Join(parts, ", "), true
}

// customFields turns a map, or a list of {label, value} entries, into JSON object text.
func customFields(v any) (any, bool) {
	fields := map[string]any{}
	switch cf := v.(type) {
	case map[string]any:
		fields = cf
	case []any:
		for _, item := range cf {
			m, ok := asMap(item)
			if !ok {
				continue
			}
			label, ok := text(m["label"])
			if !ok {
				label, ok = text(m["name"])
			}
			if !ok {
				continue
			}
			fields[toString(label)] = m["value"]
		}
	default:
		return nil, false
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, false
	}
	return string(data), true
}

// tagList turns a list of strings (or tag objects) into JSON array text, order preserved.
func tagList(v any) (any, bool) {
	tags := []string{}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s, ok := named("tag_name", "name", "label")(item); ok {
				tags = append(tags, toString(s))
			}
		}
	case string:
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				tags = append(tags, s)
			}
		}
	default:
		return nil, false
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return nil, false
	}
	return string(data), true
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}
