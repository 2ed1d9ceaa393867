package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"flight-scraper/models"
)

func TestFlightsInsert(t *testing.T) {
	query, args := flightsInsert([]models.FlightRecord{
		{Date: "2026-03-29", Destination: "Budapest", Price: 89, DurationMinutes: 155, Stops: 0},
		{Date: "2026-03-30", Destination: "Praga", Price: 120, DurationMinutes: 200, Stops: 1},
	})

	assert.Contains(t, query, "($1,$2,$3,$4,$5),($6,$7,$8,$9,$10)")
	assert.True(t, strings.Contains(query, "ON CONFLICT"))
	assert.Equal(t, []any{
		"2026-03-29", "Budapest", float64(89), 155, 0,
		"2026-03-30", "Praga", float64(120), 200, 1,
	}, args)
}

var (
	_ RecordWriter  = (*PostgresWriter)(nil)
	_ SummaryWriter = (*PostgresWriter)(nil)
	_ RecordSource  = (*PostgresWriter)(nil)
	_ RecordWriter  = (*CSVWriter)(nil)
	_ SummaryWriter = (*CSVWriter)(nil)
)
