package services

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/go-playground/validator/v10"

	"flight-scraper/models"
	"flight-scraper/utils"
)

// Score weights applied to the per-destination statistics.
const (
	WeightAvgPrice    = 0.5
	WeightAvgDuration = 0.3
	WeightStdPrice    = 0.2
)

// DatasetInvalid is returned when the complete record set must not be aggregated
// or written: a record has a missing field, or too few records were collected.
type DatasetInvalid struct {
	Reason string
	Err    error
}

func (e *DatasetInvalid) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dataset invalid: %s: %v", e.Reason, e.Err)
	}
	return "dataset invalid: " + e.Reason
}

func (e *DatasetInvalid) Unwrap() error { return e.Err }

// Aggregator reduces flight records to one scored row per destination.
type Aggregator struct {
	logger   *utils.Logger
	validate *validator.Validate
}

func NewAggregator(logger *utils.Logger) *Aggregator {
	return &Aggregator{
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ValidateDataset rejects records with missing or out-of-range fields and
// datasets smaller than days × destinations × quota.
func (a *Aggregator) ValidateDataset(records []models.FlightRecord, days, destinations, quota int) error {
	for i, r := range records {
		if err := a.validate.Struct(r); err != nil {
			return &DatasetInvalid{
				Reason: fmt.Sprintf("record %d (%s %s) has a missing or invalid field", i, r.Destination, r.Date),
				Err:    err,
			}
		}
	}

	expected := days * destinations * quota
	if len(records) < expected {
		return &DatasetInvalid{
			Reason: fmt.Sprintf("not enough rows: %d < %d (%d days × %d destinations × %d)",
				len(records), expected, days, destinations, quota),
		}
	}
	return nil
}

// Aggregate groups records by destination and returns rows sorted by
// ascending final score. The first row is the best destination.
func (a *Aggregator) Aggregate(records []models.FlightRecord) ([]models.AggregateRow, error) {
	if len(records) == 0 {
		return nil, &DatasetInvalid{Reason: "no records to aggregate"}
	}

	groups := make(map[string][]models.FlightRecord)
	var order []string
	for _, r := range records {
		if r.Destination == "" {
			return nil, &DatasetInvalid{Reason: fmt.Sprintf("record for %s has no destination", r.Date)}
		}
		if _, ok := groups[r.Destination]; !ok {
			order = append(order, r.Destination)
		}
		groups[r.Destination] = append(groups[r.Destination], r)
	}

	rows := make([]models.AggregateRow, 0, len(groups))
	for _, dest := range order {
		rows = append(rows, summarise(dest, groups[dest]))
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].FinalScore != rows[j].FinalScore {
			return rows[i].FinalScore < rows[j].FinalScore
		}
		return rows[i].Destination < rows[j].Destination
	})

	a.logger.Debug("[aggregate] %d records → %d destinations", len(records), len(rows))
	return rows, nil
}

func summarise(dest string, rs []models.FlightRecord) models.AggregateRow {
	row := models.AggregateRow{Destination: dest, Count: len(rs), MinPrice: rs[0].Price}

	var priceSum, durSum float64
	direct := 0
	for _, r := range rs {
		priceSum += r.Price
		durSum += float64(r.DurationMinutes)
		if r.Price < row.MinPrice {
			row.MinPrice = r.Price
		}
		if r.Stops == 0 {
			direct++
		}
	}

	n := float64(len(rs))
	row.AvgPrice = priceSum / n
	row.AvgDuration = durSum / n
	row.DirectRatio = float64(direct) / n

	if len(rs) > 1 {
		var sq float64
		for _, r := range rs {
			d := r.Price - row.AvgPrice
			sq += d * d
		}
		row.StdPrice = math.Sqrt(sq / (n - 1))
	}

	row.FinalScore = Score(row.AvgPrice, row.AvgDuration, row.StdPrice)
	return row
}

// Score is the composite ranking value; lower is better.
func Score(avgPrice, avgDuration, stdPrice float64) float64 {
	return WeightAvgPrice*avgPrice + WeightAvgDuration*avgDuration + WeightStdPrice*stdPrice
}

// Best returns the destination of the first (lowest score) row.
func Best(rows []models.AggregateRow) (string, error) {
	if len(rows) == 0 {
		return "", errors.New("no aggregate rows")
	}
	return rows[0].Destination, nil
}

// PriceTrend returns the mean price per (date, destination), ordered by
// destination then date. It feeds the price-over-time view.
func PriceTrend(records []models.FlightRecord) []models.TrendPoint {
	type key struct{ date, dest string }
	sums := make(map[key]float64)
	counts := make(map[key]int)
	for _, r := range records {
		k := key{r.Date, r.Destination}
		sums[k] += r.Price
		counts[k]++
	}

	points := make([]models.TrendPoint, 0, len(sums))
	for k, sum := range sums {
		points = append(points, models.TrendPoint{
			Date:        k.date,
			Destination: k.dest,
			AvgPrice:    sum / float64(counts[k]),
		})
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].Destination != points[j].Destination {
			return points[i].Destination < points[j].Destination
		}
		return points[i].Date < points[j].Date
	})
	return points
}
