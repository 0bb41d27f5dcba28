package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/covid-trends-etl/internal/adapter/http"
	"github.com/couchcryptid/covid-trends-etl/internal/observability"
	"github.com/couchcryptid/covid-trends-etl/internal/pipeline"
	"github.com/couchcryptid/covid-trends-etl/internal/report"
	"github.com/spf13/cobra"
)

var flags requestFlags

var rootCmd = &cobra.Command{
	Use:   "covid-etl",
	Short: "Normalized COVID-19 trend series from public data feeds",
	Long: `Downloads county case counts, state test tracking and census population
estimates, and turns them into per-location daily series with moving averages,
positivity rates and per-100k values.`,
	SilenceUsage: true,
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build one report and write it to the configured sinks",
	Long: `Build one report. Without --out the report is written to stdout; with it,
the file is left untouched when the upstream data has not changed since the
last run.`,
	RunE: runBuild,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Rebuild the report on a schedule and serve it over HTTP",
	RunE:  runServe,
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "List the metrics a report can contain",
	Run: func(cmd *cobra.Command, _ []string) {
		for _, name := range report.MetricNames() {
			m, _ := report.LookupMetric(name)
			fmt.Fprintf(cmd.OutOrStdout(), "%-22s %s\n", name, m.Class)
		}
	},
}

func init() {
	flags.register(rootCmd)
	rootCmd.AddCommand(buildCmd, serveCmd, metricsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runBuild(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, &flags)
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	req, err := newRequest(cfg)
	if err != nil {
		return err
	}
	sinks, closeSinks := newSinks(cfg, cmd.OutOrStdout(), logger)
	defer closeSinks()

	builder := report.NewBuilder(newFetcher(cfg, logger, metrics), logger, metrics)
	p := pipeline.New(builder, req, sinks, logger, metrics)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return p.RunOnce(ctx)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, &flags)
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	req, err := newRequest(cfg)
	if err != nil {
		return err
	}
	sinks, closeSinks := newSinks(cfg, nil, logger)
	defer closeSinks()

	builder := report.NewBuilder(newFetcher(cfg, logger, metrics), logger, metrics)
	p := pipeline.New(builder, req, sinks, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the refresh scheduler.
	go func() {
		if err := p.Run(ctx, cfg.RefreshInterval); err != nil {
			logger.Error("scheduler error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
