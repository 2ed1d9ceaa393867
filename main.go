package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"flight-scraper/config"
	"flight-scraper/models"
	"flight-scraper/scraper/flights"
	"flight-scraper/services"
	"flight-scraper/storage"
	"flight-scraper/utils"
)

var (
	debugFlag  bool
	startFlag  string
	endFlag    string
	fromDBFlag bool
	inputFlag  string
)

var rootCmd = &cobra.Command{
	Use:           "flight-scraper",
	Short:         "Collects flight offers per day and destination and ranks the destinations.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--start YYYY-MM-DD] [--end YYYY-MM-DD]",
	Short: "Scrapes every date × destination, then writes flights.csv, summary.csv and the ranking.",
	RunE:  runScrape,
}

var rankCmd = &cobra.Command{
	Use:   "rank [--from-db] [--input flights.csv]",
	Short: "Re-ranks destinations from a previous run's flights.csv or from PostgreSQL.",
	RunE:  runRank,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging (overrides LOG_DEBUG).")
	scrapeCmd.Flags().StringVar(&startFlag, "start", "", "First departure date (overrides START_DATE).")
	scrapeCmd.Flags().StringVar(&endFlag, "end", "", "Last departure date (overrides END_DATE).")
	rankCmd.Flags().BoolVar(&fromDBFlag, "from-db", false, "Read flights from PostgreSQL instead of CSV.")
	rankCmd.Flags().StringVar(&inputFlag, "input", "", "flights.csv to rank (default: CSV_OUTPUT_DIR/flights.csv).")

	rootCmd.AddCommand(scrapeCmd, rankCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func setup() (*config.Config, *utils.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if debugFlag {
		cfg.Debug = true
	}
	return cfg, utils.NewLogger(cfg.Debug), nil
}

func runScrape(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if err := cfg.SetDates(startFlag, endFlag); err != nil {
		return err
	}

	logger.Info("=== Flight Scraping System starting ===")
	logger.Info("Config — %s → %v | %s..%s | quota: %d/day | capture: %v | retries: %d | fail-fast: %v",
		cfg.Origin, cfg.DestinationNames(),
		cfg.StartDate.Format(models.DateLayout), cfg.EndDate.Format(models.DateLayout),
		cfg.MinFlightsPerDay, cfg.CaptureWindow, cfg.ScrollRetries, cfg.FailFast)

	csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputDir)
	if err != nil {
		return err
	}
	defer csvWriter.Close()

	ctx := cmd.Context()
	started := time.Now()
	scraper := flights.New(cfg, logger, flights.NewChromeSessionFactory(cfg, logger))
	res, err := scraper.Run(ctx)

	if ctx.Err() != nil {
		logger.Warn("Interrupted after %v — aggregation skipped", time.Since(started).Round(time.Second))
		if res != nil && len(res.Records) > 0 {
			if werr := csvWriter.WritePartial(res.Records); werr != nil {
				logger.Error("Partial CSV write failed: %v", werr)
			} else {
				logger.Info("%d partial records saved to %s", len(res.Records), csvWriter.Path(storage.PartialFlightsFile))
			}
		}
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("scrape failed: %w", err)
	}

	logger.Info("Scrape finished in %v — %s", time.Since(started).Round(time.Second), res.Describe())
	return publish(cfg, logger, os.Stdout, csvWriter, res.Records)
}

// publish validates the dataset, ranks it and writes every output.
// Nothing is written when validation fails.
func publish(cfg *config.Config, logger *utils.Logger, out io.Writer, csvWriter *storage.CSVWriter, records []models.FlightRecord) error {
	agg := services.NewAggregator(logger)
	if err := agg.ValidateDataset(records, cfg.Days(), len(cfg.Destinations), cfg.MinFlightsPerDay); err != nil {
		return err
	}
	rows, err := agg.Aggregate(records)
	if err != nil {
		return err
	}
	trend := services.PriceTrend(records)

	if err := csvWriter.WriteFlights(records); err != nil {
		return err
	}
	if err := csvWriter.WriteSummary(rows); err != nil {
		return err
	}
	if err := csvWriter.WriteTrend(trend); err != nil {
		return err
	}
	logger.Info("Flights, summary and trend saved to %s", cfg.CSVOutputDir)

	if cfg.PostgresEnabled {
		if err := storeInPostgres(cfg, logger, records, rows); err != nil {
			logger.Error("PostgreSQL write failed: %v", err)
		}
	}

	services.NewReport(out).Print(rows, trend)
	return nil
}

func storeInPostgres(cfg *config.Config, logger *utils.Logger, records []models.FlightRecord, rows []models.AggregateRow) error {
	pgWriter, err := storage.NewPostgresWriter(cfg.DSN())
	if err != nil {
		return err
	}
	defer pgWriter.Close()

	if err := pgWriter.WriteFlights(records); err != nil {
		return err
	}
	if err := pgWriter.WriteSummary(rows); err != nil {
		return err
	}
	logger.Info("Flights stored in PostgreSQL (tables: flights, destination_scores)")
	return nil
}

func runRank(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	var records []models.FlightRecord
	if fromDBFlag {
		pgWriter, err := storage.NewPostgresWriter(cfg.DSN())
		if err != nil {
			logger.Error("Make sure Docker is running: docker compose up -d")
			return err
		}
		defer pgWriter.Close()
		if records, err = pgWriter.FetchAll(); err != nil {
			return err
		}
	} else {
		csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputDir)
		if err != nil {
			return err
		}
		path := inputFlag
		if path == "" {
			path = csvWriter.Path(storage.FlightsFile)
		}
		if records, err = storage.ReadFlightsCSV(path); err != nil {
			return err
		}
	}
	logger.Info("Ranking %d stored flights", len(records))

	return rank(logger, os.Stdout, records)
}

// rank re-aggregates stored records without the per-day quota check.
func rank(logger *utils.Logger, out io.Writer, records []models.FlightRecord) error {
	agg := services.NewAggregator(logger)
	if err := agg.ValidateDataset(records, 0, 0, 0); err != nil {
		return err
	}
	rows, err := agg.Aggregate(records)
	if err != nil {
		var invalid *services.DatasetInvalid
		if errors.As(err, &invalid) {
			return fmt.Errorf("nothing to rank: %w", err)
		}
		return err
	}
	services.NewReport(out).Print(rows, services.PriceTrend(records))
	return nil
}
