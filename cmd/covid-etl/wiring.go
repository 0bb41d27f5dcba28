package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/adapter/census"
	"github.com/couchcryptid/covid-trends-etl/internal/adapter/covidtracking"
	"github.com/couchcryptid/covid-trends-etl/internal/adapter/fetch"
	"github.com/couchcryptid/covid-trends-etl/internal/adapter/file"
	kafkaadapter "github.com/couchcryptid/covid-trends-etl/internal/adapter/kafka"
	"github.com/couchcryptid/covid-trends-etl/internal/adapter/nytimes"
	"github.com/couchcryptid/covid-trends-etl/internal/config"
	"github.com/couchcryptid/covid-trends-etl/internal/observability"
	"github.com/couchcryptid/covid-trends-etl/internal/pipeline"
	"github.com/couchcryptid/covid-trends-etl/internal/report"
	"github.com/spf13/cobra"
)

// requestFlags override the report settings read from the environment.
type requestFlags struct {
	locations    []string
	metrics      []string
	windows      []int
	start        string
	end          string
	out          string
	checksumFile string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringArrayVarP(&f.locations, "location", "l", nil, `Location to report, e.g. "Allegheny, PA" (repeatable)`)
	pf.StringSliceVarP(&f.metrics, "metrics", "m", nil, "Comma-separated metrics (see the metrics command)")
	pf.IntSliceVarP(&f.windows, "windows", "w", nil, "Comma-separated moving average windows in days")
	pf.StringVar(&f.start, "start", "", "First date to include (YYYY-MM-DD)")
	pf.StringVar(&f.end, "end", "", "Last date to include (YYYY-MM-DD)")
	pf.StringVarP(&f.out, "out", "o", "", "Output file; stdout when empty")
	pf.StringVar(&f.checksumFile, "checksum-file", "", "File holding the checksums of the last written report")
}

// apply copies every flag set on the command line into cfg.
func (f *requestFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	fs := cmd.Flags()
	if fs.Changed("location") {
		cfg.Locations = f.locations
	}
	if fs.Changed("metrics") {
		cfg.Metrics = f.metrics
	}
	if fs.Changed("windows") {
		cfg.Windows = f.windows
	}
	if fs.Changed("start") {
		t, err := parseDateFlag("start", f.start)
		if err != nil {
			return err
		}
		cfg.StartDate = t
	}
	if fs.Changed("end") {
		t, err := parseDateFlag("end", f.end)
		if err != nil {
			return err
		}
		cfg.EndDate = t
	}
	if fs.Changed("out") {
		cfg.OutputFile = f.out
	}
	if fs.Changed("checksum-file") {
		cfg.ChecksumFile = f.checksumFile
	}
	return nil
}

func parseDateFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: want YYYY-MM-DD", name, value)
	}
	return t, nil
}

func loadConfig(cmd *cobra.Command, f *requestFlags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := f.apply(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRequest(cfg *config.Config) (report.Request, error) {
	return report.NewRequest(cfg.Locations, cfg.Metrics, cfg.Windows, cfg.StartDate, cfg.EndDate)
}

func newFetcher(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *fetch.Fetcher {
	return fetch.New(fetch.OptionsFromConfig(cfg), map[string]string{
		nytimes.Provider:       cfg.NYTimesURL,
		covidtracking.Provider: cfg.CovidTrackingURL,
		census.Provider:        cfg.CensusURL,
	}, logger, metrics)
}

// newSinks returns the file sink plus the Kafka sink when enabled, and a func
// that closes them. Without an output file, reports go to stdout; a nil stdout
// drops the file sink in that case.
func newSinks(cfg *config.Config, stdout io.Writer, logger *slog.Logger) ([]pipeline.Sink, func()) {
	var sinks []pipeline.Sink
	if cfg.OutputFile != "" || stdout != nil {
		sinks = append(sinks, file.NewWriter(cfg.OutputFile, cfg.ChecksumFile, stdout, logger))
	}
	if !cfg.KafkaEnabled {
		return sinks, func() {}
	}

	writer := kafkaadapter.NewWriter(cfg, logger)
	logger.Info("kafka sink enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	return append(sinks, writer), func() {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
}
