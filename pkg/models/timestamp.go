package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// timestampLayouts are the forms the backend emits for created_at. The zone-less
// forms come straight from SQLite CURRENT_TIMESTAMP and are UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Timestamp is a backend-clock instant, always held in UTC.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t as a UTC Timestamp
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// ParseTimestamp parses any of the backend timestamp forms
func ParseTimestamp(str string) (Timestamp, error) {
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, str, time.UTC)
		if err == nil {
			return NewTimestamp(t), nil
		}
	}
	return Timestamp{}, fmt.Errorf("invalid timestamp: %q", str)
}

// MarshalJSON implements the json.Marshaler interface for Timestamp
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

// UnmarshalJSON implements the json.Unmarshaler interface for Timestamp
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Timestamp{}
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if str == "" {
		*t = Timestamp{}
		return nil
	}

	parsed, err := ParseTimestamp(str)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Age renders the time elapsed since t the way the dashboard shows it:
// seconds, minutes and hours for the last day, then the UTC date.
func (t Timestamp) Age(now time.Time) string {
	if t.IsZero() {
		return "—"
	}

	diff := now.UTC().Sub(t.Time)
	if diff < 0 {
		diff = 0
	}
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff/time.Second))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff/time.Hour))
	default:
		return t.Format("2006-01-02")
	}
}
