package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"flight-scraper/models"
)

const (
	FlightsFile        = "flights.csv"
	PartialFlightsFile = "flights.partial.csv"
	SummaryFile        = "summary.csv"
	TrendFile          = "price_trend.csv"
)

var (
	flightsHeader = []string{"date", "destination", "price", "duration_minutes", "stops"}
	summaryHeader = []string{"destination", "avg_price", "std_price", "min_price", "avg_duration", "direct_ratio", "final_score"}
	trendHeader   = []string{"date", "destination", "avg_price"}
)

// CSVWriter writes the run outputs as CSV files inside one directory.
// It is safe for concurrent use.
type CSVWriter struct {
	mu  sync.Mutex
	dir string
}

// NewCSVWriter returns a writer for dir. The directory is created automatically.
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}
	return &CSVWriter{dir: dir}, nil
}

// Path returns the location of name inside the output directory.
func (c *CSVWriter) Path(name string) string {
	return filepath.Join(c.dir, name)
}

// WriteFlights writes every record to flights.csv (truncating any previous data).
func (c *CSVWriter) WriteFlights(records []models.FlightRecord) error {
	return c.writeRecords(FlightsFile, records)
}

// WritePartial writes the records of an interrupted run to flights.partial.csv.
func (c *CSVWriter) WritePartial(records []models.FlightRecord) error {
	return c.writeRecords(PartialFlightsFile, records)
}

func (c *CSVWriter) writeRecords(name string, records []models.FlightRecord) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Date,
			r.Destination,
			formatFloat(r.Price),
			strconv.Itoa(r.DurationMinutes),
			strconv.Itoa(r.Stops),
		})
	}
	return c.write(name, flightsHeader, rows)
}

// WriteSummary writes the ranking to summary.csv in the given order.
func (c *CSVWriter) WriteSummary(rows []models.AggregateRow) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			r.Destination,
			formatFloat(r.AvgPrice),
			formatFloat(r.StdPrice),
			formatFloat(r.MinPrice),
			formatFloat(r.AvgDuration),
			formatFloat(r.DirectRatio),
			formatFloat(r.FinalScore),
		})
	}
	return c.write(SummaryFile, summaryHeader, out)
}

// WriteTrend writes the mean price per date and destination to price_trend.csv.
func (c *CSVWriter) WriteTrend(points []models.TrendPoint) error {
	out := make([][]string, 0, len(points))
	for _, p := range points {
		out = append(out, []string{p.Date, p.Destination, formatFloat(p.AvgPrice)})
	}
	return c.write(TrendFile, trendHeader, out)
}

func (c *CSVWriter) write(name string, header []string, rows [][]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.Path(name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csv: flush %q: %w", path, err)
	}
	return f.Close()
}

// Close is a no-op; every write opens and closes its own file.
func (c *CSVWriter) Close() error {
	return nil
}

// ReadFlightsCSV loads records previously written by WriteFlights.
func ReadFlightsCSV(path string) ([]models.FlightRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()
	return readFlights(f)
}

func readFlights(r io.Reader) ([]models.FlightRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(flightsHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	for i, h := range flightsHeader {
		if header[i] != h {
			return nil, fmt.Errorf("csv: unexpected column %d %q (want %q)", i+1, header[i], h)
		}
	}

	var records []models.FlightRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}

		price, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: price: %w", line, err)
		}
		minutes, err := strconv.Atoi(row[3])
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: duration_minutes: %w", line, err)
		}
		stops, err := strconv.Atoi(row[4])
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: stops: %w", line, err)
		}
		records = append(records, models.FlightRecord{
			Date:            row[0],
			Destination:     row[1],
			Price:           price,
			DurationMinutes: minutes,
			Stops:           stops,
		})
	}
	return records, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
