package weather

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used by stored queries.
const DateLayout = "2006-01-02"

var (
	// ErrInvalidDate is returned when a date string is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date; use YYYY-MM-DD")
)

// QueryRecord is a stored (location, date range, weather snapshot) tuple.
// It is owned by the backend; the client never mutates WeatherData.
type QueryRecord struct {
	ID               int64           `json:"id"`
	Location         string          `json:"location"`
	ResolvedLocation *string         `json:"resolved_location"`
	Latitude         *float64        `json:"latitude"`
	Longitude        *float64        `json:"longitude"`
	StartDate        string          `json:"start_date"`
	EndDate          string          `json:"end_date"`
	WeatherData      json.RawMessage `json:"weather_data"`
	CreatedAt        Timestamp       `json:"created_at"`
	UpdatedAt        Timestamp       `json:"updated_at"`
}

// Resolved returns the resolved location or a dash.
func (r QueryRecord) Resolved() string {
	if r.ResolvedLocation == nil || *r.ResolvedLocation == "" {
		return "—"
	}
	return *r.ResolvedLocation
}

// DateRange formats "start — end".
func (r QueryRecord) DateRange() string {
	return r.StartDate + " — " + r.EndDate
}

// PrettyWeatherData indents the raw payload for display.
func (r QueryRecord) PrettyWeatherData() string {
	if len(r.WeatherData) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, r.WeatherData, "", "  "); err != nil {
		return string(r.WeatherData)
	}
	return buf.String()
}

// QueryCreate is the body of a create request.
type QueryCreate struct {
	Location  string `json:"location"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// QueryUpdate is a partial patch; nil fields are not sent.
type QueryUpdate struct {
	Location  *string `json:"location,omitempty"`
	StartDate *string `json:"start_date,omitempty"`
	EndDate   *string `json:"end_date,omitempty"`
}

// IsEmpty reports whether no field is set.
func (u QueryUpdate) IsEmpty() bool {
	return u.Location == nil && u.StartDate == nil && u.EndDate == nil
}

// Apply returns rec with the provided fields replaced.
func (u QueryUpdate) Apply(rec QueryRecord) QueryRecord {
	if u.Location != nil {
		rec.Location = *u.Location
	}
	if u.StartDate != nil {
		rec.StartDate = *u.StartDate
	}
	if u.EndDate != nil {
		rec.EndDate = *u.EndDate
	}
	return rec
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// NormalizeDate parses s allowing unpadded month and day, and returns it
// as YYYY-MM-DD. It returns s unchanged and false when s is not a date.
func NormalizeDate(s string) (string, bool) {
	t, err := time.Parse("2006-1-2", strings.TrimSpace(s))
	if err != nil {
		return s, false
	}
	return t.Format(DateLayout), true
}

// Timestamp accepts RFC3339 as well as the naive ISO-8601 form some
// backends emit without a zone offset (treated as UTC).
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			t.Time = ts.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Day formats the timestamp as a calendar date, or "" when unset.
func (t Timestamp) Day() string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}
