package models

import (
	"time"

	"github.com/tidwall/gjson"
)

// DateLayout is the calendar-date format used in URLs, CSV rows and config.
const DateLayout = "2006-01-02"

// QueryKey is one unit of extraction work: a departure date and a destination.
type QueryKey struct {
	Date            time.Time
	Destination     string
	DestinationCode string
}

// Day returns the query date formatted as YYYY-MM-DD.
func (k QueryKey) Day() string {
	return k.Date.Format(DateLayout)
}

func (k QueryKey) String() string {
	return k.Destination + " (" + k.DestinationCode + ") " + k.Day()
}

// FlightRecord is one observed offer for a QueryKey.
// Records are built once by an extractor and never mutated afterwards.
type FlightRecord struct {
	Date            string  `validate:"required,datetime=2006-01-02"`
	Destination     string  `validate:"required"`
	Price           float64 `validate:"gt=0"`
	DurationMinutes int     `validate:"gt=0"`
	Stops           int     `validate:"gte=0"`
}

// RecordKey identifies an offer independently of the strategy that found it.
type RecordKey struct {
	Price           float64
	DurationMinutes int
	Stops           int
}

// Key returns the dedup key of the record.
func (r FlightRecord) Key() RecordKey {
	return RecordKey{Price: r.Price, DurationMinutes: r.DurationMinutes, Stops: r.Stops}
}

// Valid reports whether the record satisfies the positivity rules.
func (r FlightRecord) Valid() bool {
	return r.Price > 0 && r.DurationMinutes > 0 && r.Stops >= 0
}

// RawPayload is a JSON response body captured from the browser's network log.
// It only lives between the capture collector and the tree extractor.
type RawPayload struct {
	SourceURL string
	Body      gjson.Result
}

// AggregateRow holds the per-destination statistics and the composite score.
type AggregateRow struct {
	Destination string
	Count       int
	AvgPrice    float64
	StdPrice    float64
	MinPrice    float64
	AvgDuration float64
	DirectRatio float64
	FinalScore  float64
}

// TrendPoint is the mean price observed for a destination on one date.
type TrendPoint struct {
	Date        string
	Destination string
	AvgPrice    float64
}
