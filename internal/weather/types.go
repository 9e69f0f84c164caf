package weather

import (
	"encoding/json"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date (UTC midnight). It marshals as YYYY-MM-DD on the
// wire and maps to the Postgres DATE type.
type Date struct {
	time.Time
}

// ParseDate parses a YYYY-MM-DD string into a Date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return Date{t}, nil
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

// String returns the YYYY-MM-DD representation.
func (d Date) String() string {
	return d.Time.Format(dateLayout)
}

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a "YYYY-MM-DD" string.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Location is a named geographic point that weather observations attach to.
// A (city, country) pair is unique across the table.
type Location struct {
	ID        int64     `json:"id"`
	City      string    `json:"city"`
	Country   string    `json:"country"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	CreatedAt time.Time `json:"created_at"`
}

// Info is one day's weather observation or forecast for a Location.
// At most one Info exists per (location, date) pair.
type Info struct {
	ID                 int64     `json:"id"`
	LocationID         int64     `json:"location_id"`
	Date               Date      `json:"date"`
	Temperature        float64   `json:"temperature"`
	WeatherDescription string    `json:"weather_description"`
	RawData            *string   `json:"raw_data,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// InfoUpdate is a partial update to an Info. Nil fields are left untouched.
type InfoUpdate struct {
	Temperature        *float64
	WeatherDescription *string
	RawData            *string
}

// ExportLocation is the location subset embedded in export entries.
type ExportLocation struct {
	ID      int64   `json:"id"`
	City    string  `json:"city"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// ExportEntry is one flattened weather info with its owning location.
type ExportEntry struct {
	ID          int64          `json:"id"`
	Date        Date           `json:"date"`
	Temperature float64        `json:"temperature"`
	Description string         `json:"description"`
	Location    ExportLocation `json:"location"`
}

// CurrentConditions is a weather provider's view of the weather right now,
// including the coordinates it resolved the city to.
type CurrentConditions struct {
	Lat         float64
	Lon         float64
	Temperature float64
	Description string
	Raw         json.RawMessage
}

// ForecastConditions is a provider forecast for a single future date.
type ForecastConditions struct {
	Temperature float64
	Description string
	Raw         json.RawMessage
}

// Video is a single video search result.
type Video struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Channel     string `json:"channel"`
	PublishedAt string `json:"published_at"`
	Thumbnail   string `json:"thumbnail"`
}

// VideoLookup is the videos endpoint response: the resolved city plus the
// provider's results, verbatim.
type VideoLookup struct {
	Location string  `json:"location"`
	Videos   []Video `json:"videos"`
}
