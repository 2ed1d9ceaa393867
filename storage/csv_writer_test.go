package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flight-scraper/models"
)

func TestWriteFlightsLayout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w, err := NewCSVWriter(dir)
	require.NoError(t, err)

	records := []models.FlightRecord{
		{Date: "2026-03-29", Destination: "Budapest", Price: 89, DurationMinutes: 155, Stops: 0},
		{Date: "2026-03-29", Destination: "Praga", Price: 123.5, DurationMinutes: 310, Stops: 1},
	}
	require.NoError(t, w.WriteFlights(records))

	data, err := os.ReadFile(filepath.Join(dir, FlightsFile))
	require.NoError(t, err)
	assert.Equal(t,
		"date,destination,price,duration_minutes,stops\n"+
			"2026-03-29,Budapest,89,155,0\n"+
			"2026-03-29,Praga,123.5,310,1\n",
		string(data))

	got, err := ReadFlightsCSV(filepath.Join(dir, FlightsFile))
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestWriteSummaryLayout(t *testing.T) {
	w, err := NewCSVWriter(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, w.WriteSummary([]models.AggregateRow{
		{Destination: "Viena", Count: 3, AvgPrice: 200, StdPrice: 100, MinPrice: 100, AvgDuration: 120, DirectRatio: 0.5, FinalScore: 156},
	}))

	data, err := os.ReadFile(w.Path(SummaryFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "destination,avg_price,std_price,min_price,avg_duration,direct_ratio,final_score", lines[0])
	assert.Equal(t, "Viena,200,100,100,120,0.5,156", lines[1])
}

func TestWritePartialAndTrend(t *testing.T) {
	w, err := NewCSVWriter(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, w.WritePartial([]models.FlightRecord{
		{Date: "2026-03-29", Destination: "Budapest", Price: 89, DurationMinutes: 155, Stops: 0},
	}))
	require.NoError(t, w.WriteTrend([]models.TrendPoint{
		{Date: "2026-03-29", Destination: "Budapest", AvgPrice: 89},
	}))

	assert.FileExists(t, w.Path(PartialFlightsFile))
	assert.NoFileExists(t, w.Path(FlightsFile))

	data, err := os.ReadFile(w.Path(TrendFile))
	require.NoError(t, err)
	assert.Equal(t, "date,destination,avg_price\n2026-03-29,Budapest,89\n", string(data))
}

func TestReadFlightsErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"wrong header", "day,destination,price,duration_minutes,stops\n", "unexpected column 1"},
		{"bad price", "date,destination,price,duration_minutes,stops\n2026-03-29,Budapest,abc,90,0\n", "line 2: price"},
		{"short row", "date,destination,price,duration_minutes,stops\n2026-03-29,Budapest\n", "line 2"},
		{"empty", "", "read header"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readFlights(strings.NewReader(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadFlightsMissingFile(t *testing.T) {
	_, err := ReadFlightsCSV(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}
