package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Default upstream locations. Each may contain a "{key}" placeholder that the
// fetcher replaces with the requested key.
const (
	DefaultCovidTrackingURL = "https://covidtracking.com/api/v1/states/daily.csv"
	DefaultNYTimesURL       = "https://raw.githubusercontent.com/nytimes/covid-19-data/master/us-counties.csv"
	DefaultCensusURL        = "https://www2.census.gov/programs-surveys/popest/datasets/2010-2019/counties/totals/co-est2019-alldata.csv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	CacheRoot       string        `validate:"required"`
	HTTPAddr        string        `validate:"required"`
	HTTPTimeout     time.Duration `validate:"gt=0"`
	LogLevel        string        `validate:"oneof=debug info warn warning error"`
	LogFormat       string        `validate:"oneof=json text"`
	ShutdownTimeout time.Duration

	FetchMaxRetries     int           `validate:"gte=0,lte=10"`
	FetchInitialBackoff time.Duration `validate:"gt=0"`

	CovidTrackingURL string `validate:"required,url"`
	NYTimesURL       string `validate:"required,url"`
	CensusURL        string `validate:"required,url"`

	// Report request defaults; CLI flags override them.
	Locations    []string `validate:"min=1"`
	Metrics      []string `validate:"min=1"`
	Windows      []int    `validate:"min=1,dive,gte=0"`
	StartDate    time.Time
	EndDate      time.Time
	OutputFile   string
	ChecksumFile string

	RefreshInterval time.Duration `validate:"gte=1m"`

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

var validate = validator.New()

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first when present;
// variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	httpTimeout, err := parseDuration("HTTP_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	backoff, err := parseDuration("FETCH_INITIAL_BACKOFF", "500ms")
	if err != nil {
		return nil, err
	}
	refresh, err := parseDuration("REFRESH_INTERVAL", "1h")
	if err != nil {
		return nil, err
	}
	retries, err := parseInt("FETCH_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	windows, err := parseWindows(sharedcfg.EnvOrDefault("WINDOWS", "7"))
	if err != nil {
		return nil, err
	}
	start, err := parseDate("START_DATE")
	if err != nil {
		return nil, err
	}
	end, err := parseDate("END_DATE")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		CacheRoot:       sharedcfg.EnvOrDefault("CACHE_ROOT", "/tmp/covid-testing"),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		HTTPTimeout:     httpTimeout,
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		FetchMaxRetries:     retries,
		FetchInitialBackoff: backoff,

		CovidTrackingURL: sharedcfg.EnvOrDefault("SOURCE_COVIDTRACKING_URL", DefaultCovidTrackingURL),
		NYTimesURL:       sharedcfg.EnvOrDefault("SOURCE_NYTIMES_URL", DefaultNYTimesURL),
		CensusURL:        sharedcfg.EnvOrDefault("SOURCE_CENSUS_URL", DefaultCensusURL),

		Locations:    SplitList(sharedcfg.EnvOrDefault("LOCATIONS", "USA"), ";"),
		Metrics:      SplitList(sharedcfg.EnvOrDefault("METRICS", "cases"), ","),
		Windows:      windows,
		StartDate:    start,
		EndDate:      end,
		OutputFile:   os.Getenv("OUTPUT_FILE"),
		ChecksumFile: sharedcfg.EnvOrDefault("CHECKSUM_FILE", "/tmp/covid_data_checksums"),

		RefreshInterval: refresh,

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "covid-series"),
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.KafkaEnabled && (len(cfg.KafkaBrokers) == 0 || cfg.KafkaTopic == "") {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS or KAFKA_TOPIC is empty")
	}
	if !cfg.StartDate.IsZero() && !cfg.EndDate.IsZero() && cfg.EndDate.Before(cfg.StartDate) {
		return nil, errors.New("END_DATE is before START_DATE")
	}

	return cfg, nil
}

// SplitList splits s on sep, trimming blanks and dropping empty items.
func SplitList(s, sep string) []string {
	var out []string
	for _, item := range strings.Split(s, sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseWindows parses a comma-separated list of window sizes.
func parseWindows(s string) ([]int, error) {
	var out []int
	for _, item := range SplitList(s, ",") {
		n, err := strconv.Atoi(item)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid WINDOWS entry %q", item)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, errors.New("WINDOWS must list at least one window")
	}
	return out, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseDate(key string) (time.Time, error) {
	s := os.Getenv(key)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return t, nil
}
