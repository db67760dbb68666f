package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// DateTimeLayout is the layout PocketBase uses for date fields.
const DateTimeLayout = "2006-01-02 15:04:05.000Z"

// DateTime is a PocketBase date field. The zero value marshals to "".
type DateTime struct {
	time.Time
}

// NewDateTime wraps t in UTC.
func NewDateTime(t time.Time) DateTime {
	return DateTime{Time: t.UTC()}
}

// ParseDateTime accepts the PocketBase layout and RFC 3339.
func ParseDateTime(raw string) (DateTime, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DateTime{}, nil
	}
	if t, err := time.Parse(DateTimeLayout, raw); err == nil {
		return NewDateTime(t), nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05Z07:00", raw); err == nil {
		return NewDateTime(t), nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return DateTime{}, err
	}
	return NewDateTime(t), nil
}

func (d DateTime) String() string {
	if d.IsZero() {
		return ""
	}
	return d.UTC().Format(DateTimeLayout)
}

func (d DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *DateTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = DateTime{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseDateTime(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
