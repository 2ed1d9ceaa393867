package storage

import "flight-scraper/models"

// RecordWriter is the interface any flight record backend must satisfy.
type RecordWriter interface {
	WriteFlights(records []models.FlightRecord) error
	Close() error
}

// SummaryWriter persists the per-destination ranking.
type SummaryWriter interface {
	WriteSummary(rows []models.AggregateRow) error
	Close() error
}

// RecordSource returns previously stored flight records for re-ranking.
type RecordSource interface {
	FetchAll() ([]models.FlightRecord, error)
}
