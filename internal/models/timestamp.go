package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// timestampLayouts are accepted on read. Values without a zone are UTC.
// Writes always use RFC 3339.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// ParseTimestamp reads the timestamp spellings found in hand-edited and
// older documents: RFC 3339, a zoneless date-time, or a bare date.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// looseTime decodes a JSON string with ParseTimestamp. null and "" leave it
// unset.
type looseTime struct {
	t *time.Time
}

func (l *looseTime) UnmarshalJSON(b []byte) error {
	l.t = nil
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	l.t = &t
	return nil
}

// looseDays decodes a day count given as a JSON number or a numeric
// string. Anything that is not a number decodes to zero, which callers
// treat as the default duration.
type looseDays int

func (n *looseDays) UnmarshalJSON(b []byte) error {
	*n = 0
	raw := strings.TrimSpace(string(b))
	if unq, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unq)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.Abs(f) > math.MaxInt32 {
		return nil
	}
	*n = looseDays(f)
	return nil
}
