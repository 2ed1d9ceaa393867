package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"flight-scraper/models"
)

// PostgresWriter persists flight records and destination scores to PostgreSQL.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS flights (
			id               SERIAL PRIMARY KEY,
			date             DATE          NOT NULL,
			destination      TEXT          NOT NULL,
			price            NUMERIC(10,2) NOT NULL,
			duration_minutes INTEGER       NOT NULL,
			stops            INTEGER       NOT NULL,
			created_at       TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
			UNIQUE (date, destination, price, duration_minutes, stops)
		);

		CREATE INDEX IF NOT EXISTS idx_flights_destination ON flights(destination);
		CREATE INDEX IF NOT EXISTS idx_flights_date        ON flights(date);

		CREATE TABLE IF NOT EXISTS destination_scores (
			destination  TEXT PRIMARY KEY,
			avg_price    DOUBLE PRECISION NOT NULL,
			std_price    DOUBLE PRECISION NOT NULL,
			min_price    DOUBLE PRECISION NOT NULL,
			avg_duration DOUBLE PRECISION NOT NULL,
			direct_ratio DOUBLE PRECISION NOT NULL,
			final_score  DOUBLE PRECISION NOT NULL,
			updated_at   TIMESTAMPTZ      NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

// Clear deletes all stored flights and scores.
func (pw *PostgresWriter) Clear() error {
	_, err := pw.db.Exec("DELETE FROM flights; DELETE FROM destination_scores")
	if err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}
	return nil
}

// WriteFlights batch-inserts ALL records, clearing old data first.
func (pw *PostgresWriter) WriteFlights(records []models.FlightRecord) error {
	if len(records) == 0 {
		return nil
	}

	if err := pw.Clear(); err != nil {
		return err
	}

	const batchSize = 50
	for i := 0; i < len(records); i += batchSize {
		end := min(i+batchSize, len(records))
		if err := pw.insertBatch(records[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (pw *PostgresWriter) insertBatch(batch []models.FlightRecord) error {
	query, args := flightsInsert(batch)
	if _, err := pw.db.Exec(query, args...); err != nil {
		return fmt.Errorf("postgres: insert flights: %w", err)
	}
	return nil
}

// flightsInsert builds one multi-row INSERT for batch.
func flightsInsert(batch []models.FlightRecord) (string, []any) {
	const cols = 5
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*cols)

	for idx, r := range batch {
		base := idx * cols
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d,$%d)", base+1, base+2, base+3, base+4, base+5))
		valueArgs = append(valueArgs, r.Date, r.Destination, r.Price, r.DurationMinutes, r.Stops)
	}

	query := fmt.Sprintf(`
		INSERT INTO flights (date, destination, price, duration_minutes, stops)
		VALUES %s
		ON CONFLICT (date, destination, price, duration_minutes, stops) DO NOTHING
	`, strings.Join(valueStrings, ","))
	return query, valueArgs
}

// WriteSummary replaces the stored destination scores.
func (pw *PostgresWriter) WriteSummary(rows []models.AggregateRow) error {
	tx, err := pw.db.Begin()
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM destination_scores"); err != nil {
		return fmt.Errorf("postgres: clear scores: %w", err)
	}
	for _, r := range rows {
		_, err := tx.Exec(`
			INSERT INTO destination_scores
				(destination, avg_price, std_price, min_price, avg_duration, direct_ratio, final_score)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, r.Destination, r.AvgPrice, r.StdPrice, r.MinPrice, r.AvgDuration, r.DirectRatio, r.FinalScore)
		if err != nil {
			return fmt.Errorf("postgres: insert score %q: %w", r.Destination, err)
		}
	}
	return tx.Commit()
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// FetchAll retrieves all stored flights, used by the rank command.
func (pw *PostgresWriter) FetchAll() ([]models.FlightRecord, error) {
	rows, err := pw.db.Query(`
		SELECT to_char(date, 'YYYY-MM-DD'), destination, price, duration_minutes, stops
		FROM flights
		ORDER BY date, destination, id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	var records []models.FlightRecord
	for rows.Next() {
		var r models.FlightRecord
		if err := rows.Scan(&r.Date, &r.Destination, &r.Price, &r.DurationMinutes, &r.Stops); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
