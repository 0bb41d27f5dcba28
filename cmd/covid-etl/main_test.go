package main

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseFlags(t *testing.T, args ...string) (*cobra.Command, *requestFlags) {
	t.Helper()
	var f requestFlags
	cmd := &cobra.Command{Use: "test"}
	f.register(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd, &f
}

func baseConfig() *config.Config {
	return &config.Config{
		Locations:    []string{"USA"},
		Metrics:      []string{"cases"},
		Windows:      []int{7},
		ChecksumFile: "/tmp/covid_data_checksums",
	}
}

func TestRequestFlags_Apply(t *testing.T) {
	cmd, f := parseFlags(t,
		"-l", "Allegheny, PA",
		"--location", "Ohio",
		"--metrics", "deaths,cases100k",
		"--windows", "1,14",
		"--start", "2020-04-01",
		"--end", "2020-05-01",
		"--out", "/tmp/report.json",
	)
	cfg := baseConfig()
	require.NoError(t, f.apply(cmd, cfg))

	assert.Equal(t, []string{"Allegheny, PA", "Ohio"}, cfg.Locations)
	assert.Equal(t, []string{"deaths", "cases100k"}, cfg.Metrics)
	assert.Equal(t, []int{1, 14}, cfg.Windows)
	assert.Equal(t, time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC), cfg.StartDate)
	assert.Equal(t, time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC), cfg.EndDate)
	assert.Equal(t, "/tmp/report.json", cfg.OutputFile)
	assert.Equal(t, "/tmp/covid_data_checksums", cfg.ChecksumFile, "unset flags keep the config value")
}

func TestRequestFlags_ApplyNothingSet(t *testing.T) {
	cmd, f := parseFlags(t)
	cfg := baseConfig()
	require.NoError(t, f.apply(cmd, cfg))
	assert.Equal(t, baseConfig(), cfg)
}

func TestRequestFlags_InvalidDate(t *testing.T) {
	cmd, f := parseFlags(t, "--start", "04/01/2020")
	err := f.apply(cmd, baseConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--start")
}

func TestNewRequest(t *testing.T) {
	cfg := baseConfig()
	cfg.Locations = []string{"Allegheny, PA", "USA"}
	req, err := newRequest(cfg)
	require.NoError(t, err)
	assert.Len(t, req.Locations, 2)

	cfg.Metrics = []string{"recoveries"}
	_, err = newRequest(cfg)
	assert.Error(t, err)
}

func TestNewSinks(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.Config
		stdout io.Writer
		names  []string
	}{
		{"stdout", config.Config{}, &bytes.Buffer{}, []string{"file"}},
		{"serve without output file", config.Config{}, nil, nil},
		{"output file", config.Config{OutputFile: filepath.Join(t.TempDir(), "out.json")}, nil, []string{"file"}},
		{"kafka", config.Config{KafkaEnabled: true, KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "covid-series"}, nil, []string{"kafka"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sinks, closeSinks := newSinks(&tt.cfg, tt.stdout, discardLogger())
			defer closeSinks()

			var names []string
			for _, s := range sinks {
				names = append(names, s.Name())
			}
			assert.Equal(t, tt.names, names)
		})
	}
}

func TestMetricsCommand(t *testing.T) {
	var out bytes.Buffer
	metricsCmd.SetOut(&out)
	t.Cleanup(func() { metricsCmd.SetOut(nil) })

	metricsCmd.Run(metricsCmd, nil)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 9)
	assert.Contains(t, out.String(), "positive-test-rate")
	assert.Contains(t, out.String(), "county-case")
}
