package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/parts-dashboard/internal/types"
)

// timestampLayouts are tried in order. Layouts without a zone are read as UTC.
// Fractional seconds are accepted by every layout that has a seconds field.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses any accepted timestamp form and returns it in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}

// CanonicalTimestamp renders t in the stored form.
func CanonicalTimestamp(t time.Time) string {
	return t.UTC().Format(types.TimestampLayout)
}

// timestamp converts a raw timestamp value to canonical text. Numeric values
// are Unix epochs in seconds, or milliseconds when large enough.
func timestamp(v any) (any, error) {
	switch ts := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(ts) == "" {
			return nil, nil
		}
		t, err := ParseTimestamp(ts)
		if err != nil {
			return nil, err
		}
		return CanonicalTimestamp(t), nil
	case json.Number:
		n, err := ts.Int64()
		if err != nil {
			return nil, fmt.Errorf("invalid epoch timestamp %q: %w", ts, err)
		}
		return CanonicalTimestamp(epoch(n)), nil
	case float64:
		return CanonicalTimestamp(epoch(int64(ts))), nil
	}
	return nil, fmt.Errorf("unsupported timestamp type %T", v)
}

func epoch(n int64) time.Time {
	if n > 1e12 {
		return time.UnixMilli(n)
	}
	return time.Unix(n, 0)
}
