package config

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"flight-scraper/models"
	"flight-scraper/services"
)

// Config holds all application configuration loaded from environment variables.
// It is passed explicitly to the scraper and aggregation components.
type Config struct {
	Origin       string            `validate:"required,len=3,alpha"`
	Destinations map[string]string `validate:"required,min=1,dive,keys,required,endkeys,required,len=3,alpha"`
	StartDate    time.Time         `validate:"required"`
	EndDate      time.Time         `validate:"required,gtefield=StartDate"`
	BaseURL      string            `validate:"required,url"`

	MinFlightsPerDay int           `validate:"gte=1"`
	CaptureWindow    time.Duration `validate:"gt=0"`
	PollInterval     time.Duration `validate:"gt=0"`
	ScrollRetries    int           `validate:"gte=1"`
	SignalTimeout    time.Duration `validate:"gt=0"`
	PageTimeout      time.Duration `validate:"gt=0"`
	SettleDelay      time.Duration `validate:"gte=0"`
	QueryDelay       time.Duration `validate:"gte=0"`
	MaxRetries       int           `validate:"gte=1"`

	TreeFieldPolicy services.FieldPolicy
	DOMFieldPolicy  services.FieldPolicy
	FailFast        bool

	Headless  bool
	ChromeBin string
	Debug     bool

	CSVOutputDir string `validate:"required"`

	PostgresEnabled  bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
}

// destinationsFile is the YAML layout accepted by DESTINATIONS_FILE.
type destinationsFile struct {
	Origin       string            `yaml:"origin"`
	Destinations map[string]string `yaml:"destinations"`
}

// Load reads the .env file and returns a populated, validated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		Origin:  strings.ToUpper(getEnv("ORIGIN", "MAD")),
		BaseURL: getEnv("BASE_URL", "https://www.kayak.es/flights"),

		MinFlightsPerDay: getEnvInt("MIN_FLIGHTS_PER_DAY", 5),
		CaptureWindow:    getEnvDuration("CAPTURE_WINDOW", 12*time.Second),
		PollInterval:     getEnvDuration("POLL_INTERVAL", 200*time.Millisecond),
		ScrollRetries:    getEnvInt("SCROLL_RETRIES", 8),
		SignalTimeout:    getEnvDuration("SIGNAL_TIMEOUT", 40*time.Second),
		PageTimeout:      getEnvDuration("PAGE_TIMEOUT", 60*time.Second),
		SettleDelay:      getEnvDuration("SETTLE_DELAY", 2*time.Second),
		QueryDelay:       getEnvDuration("QUERY_DELAY", 1500*time.Millisecond),
		MaxRetries:       getEnvInt("MAX_RETRIES", 2),

		FailFast:  getEnvBool("FAIL_FAST", true),
		Headless:  getEnvBool("HEADLESS", false),
		ChromeBin: getEnv("CHROME_BIN", ""),
		Debug:     getEnvBool("LOG_DEBUG", false),

		CSVOutputDir: getEnv("CSV_OUTPUT_DIR", "./output"),

		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "flights_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
	}

	var err error
	if cfg.Destinations, err = ParseDestinations(getEnv("DESTINATIONS", "Budapest=BUD,Praga=PRG,Viena=VIE")); err != nil {
		return nil, err
	}
	if path := getEnv("DESTINATIONS_FILE", ""); path != "" {
		if err := cfg.loadDestinationsFile(path); err != nil {
			return nil, err
		}
	}

	if cfg.StartDate, err = parseDate("START_DATE", getEnv("START_DATE", "2026-03-29")); err != nil {
		return nil, err
	}
	if cfg.EndDate, err = parseDate("END_DATE", getEnv("END_DATE", "2026-04-05")); err != nil {
		return nil, err
	}

	if cfg.TreeFieldPolicy, err = services.ParseFieldPolicy(getEnv("TREE_FIELD_POLICY", "strict")); err != nil {
		return nil, fmt.Errorf("config: TREE_FIELD_POLICY: %w", err)
	}
	if cfg.DOMFieldPolicy, err = services.ParseFieldPolicy(getEnv("DOM_FIELD_POLICY", "lenient")); err != nil {
		return nil, fmt.Errorf("config: DOM_FIELD_POLICY: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration with its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// SetDates overrides the date range with YYYY-MM-DD values. Empty values are ignored.
func (c *Config) SetDates(start, end string) error {
	var err error
	if start != "" {
		if c.StartDate, err = parseDate("start", start); err != nil {
			return err
		}
	}
	if end != "" {
		if c.EndDate, err = parseDate("end", end); err != nil {
			return err
		}
	}
	return c.Validate()
}

// Days returns the number of dates in the inclusive range.
func (c *Config) Days() int {
	if c.EndDate.Before(c.StartDate) {
		return 0
	}
	return int(c.EndDate.Sub(c.StartDate).Hours()/24) + 1
}

// DestinationNames returns the destination display names in sorted order.
func (c *Config) DestinationNames() []string {
	names := make([]string, 0, len(c.Destinations))
	for name := range c.Destinations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// QueryKeys returns the Cartesian product of the date range and the
// destinations: dates in order, destinations sorted by name within a date.
func (c *Config) QueryKeys() []models.QueryKey {
	names := c.DestinationNames()
	keys := make([]models.QueryKey, 0, c.Days()*len(names))
	for d := c.StartDate; !d.After(c.EndDate); d = d.AddDate(0, 0, 1) {
		for _, name := range names {
			keys = append(keys, models.QueryKey{
				Date:            d,
				Destination:     name,
				DestinationCode: c.Destinations[name],
			})
		}
	}
	return keys
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// ParseDestinations reads "Name=CODE,Name=CODE" pairs.
func ParseDestinations(raw string) (map[string]string, error) {
	dests := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, code, ok := strings.Cut(pair, "=")
		name, code = strings.TrimSpace(name), strings.TrimSpace(code)
		if !ok || name == "" || code == "" {
			return nil, fmt.Errorf("config: DESTINATIONS: malformed pair %q (want Name=CODE)", pair)
		}
		dests[name] = strings.ToUpper(code)
	}
	return dests, nil
}

func (c *Config) loadDestinationsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read destinations file %q: %w", path, err)
	}

	var f destinationsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("config: parse destinations file %q: %w", path, err)
	}
	if f.Origin != "" {
		c.Origin = strings.ToUpper(f.Origin)
	}
	if len(f.Destinations) > 0 {
		c.Destinations = make(map[string]string, len(f.Destinations))
		for name, code := range f.Destinations {
			c.Destinations[name] = strings.ToUpper(code)
		}
	}
	return nil
}

func parseDate(name, val string) (time.Time, error) {
	d, err := time.Parse(models.DateLayout, strings.TrimSpace(val))
	if err != nil {
		return time.Time{}, fmt.Errorf("config: %s: %w", name, err)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}
