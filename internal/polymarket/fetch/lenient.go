package fetch

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// The remote services are loose about types: numbers arrive as strings,
// lists arrive JSON-encoded inside strings, timestamps arrive as ISO strings
// or epoch seconds or milliseconds. The types below decode whatever shape
// arrives and never fail; an unusable value decodes to its zero value.

var nonNumeric = regexp.MustCompile(`[^0-9.\-eE]`)

// ParseNumber parses numbers written as "$1,234.50", " 12 ", "-3". It reports
// false when nothing numeric is left.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "$", "")
	s = nonNumeric.ReplaceAllString(s, "")
	switch s {
	case "", "-", ".", "-.":
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Number is a float that may arrive as a JSON number or string. Valid is
// true when the field was present and not null, even if it did not parse.
type Number struct {
	Value float64
	Valid bool
}

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	n.Valid = true

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		n.Value = f
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		n.Value, _ = ParseNumber(s)
	}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Text is a string that may arrive as a JSON string or number.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	*t = ""
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Text(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		*t = Text(num.String())
	}
	return nil
}

// Bool is a flag that may arrive as a JSON bool or string. Valid is false when
// the field was absent, null or unreadable.
type Bool struct {
	Value bool
	Valid bool
}

func (b *Bool) UnmarshalJSON(data []byte) error {
	*b = Bool{}
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = Bool{Value: v, Valid: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			*b = Bool{Value: v, Valid: true}
		}
	}
	return nil
}

// IsTrue reports an explicit true
func (b Bool) IsTrue() bool { return b.Valid && b.Value }

// IsFalse reports an explicit false
func (b Bool) IsFalse() bool { return b.Valid && !b.Value }

// StringList is a list that may arrive as a JSON array, as a string holding a
// JSON array ("[\"Yes\",\"No\"]") or as a single-quoted list ("['Yes', 'No']").
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	*l = nil
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err == nil {
		*l = stringify(items)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), &items); err == nil {
		*l = stringify(items)
		return nil
	}
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		if err := json.Unmarshal([]byte(strings.ReplaceAll(s, "'", `"`)), &items); err == nil {
			*l = stringify(items)
		}
	}
	return nil
}

func stringify(items []json.RawMessage) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		out = append(out, strings.TrimSpace(string(item)))
	}
	return out
}

// Floats parses every element with ParseNumber; unparsable elements are 0.
func (l StringList) Floats() []float64 {
	out := make([]float64, len(l))
	for i, s := range l {
		out[i], _ = ParseNumber(s)
	}
	return out
}

// Timestamp is a point in time that may arrive as an ISO-8601 string or as
// epoch seconds or milliseconds. The zero Timestamp means unknown.
type Timestamp struct {
	time.Time
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	*t = Timestamp{}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t.Time = ParseISOTime(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil && f > 0 {
		t.Time = time.Unix(NormalizeEpoch(int64(f)), 0).UTC()
	}
	return nil
}

// ParseISOTime parses the ISO forms the catalog uses; zero time when none fit.
// Values without a zone are UTC.
func ParseISOTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range isoLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}

// NormalizeEpoch converts millisecond epochs to seconds. Anything above 1e10
// would be past the year 2286 in seconds, so it is taken as milliseconds.
func NormalizeEpoch(ts int64) int64 {
	if ts > 10_000_000_000 {
		return ts / 1000
	}
	return ts
}

// Unwrap strips a {"data": ...} envelope when present.
func Unwrap(raw json.RawMessage) json.RawMessage {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 && !bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
		return env.Data
	}
	return raw
}

// Objects returns the JSON objects in raw: every object element of an array,
// or raw itself when it is an object. Non-object elements are skipped.
func Objects(raw json.RawMessage) []json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	switch raw[0] {
	case '{':
		return []json.RawMessage{raw}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		out := make([]json.RawMessage, 0, len(items))
		for _, item := range items {
			item = bytes.TrimSpace(item)
			if len(item) > 0 && item[0] == '{' {
				out = append(out, item)
			}
		}
		return out
	}
	return nil
}
