package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/couchcryptid/covid-trends-etl/internal/observability"
	"github.com/couchcryptid/covid-trends-etl/internal/report"
)

// ReportBuilder computes a report for a request.
type ReportBuilder interface {
	Build(ctx context.Context, req report.Request) (*report.Report, error)
}

// Sink delivers a built report. Sinks that skip output built from unchanged
// upstream data return report.ErrUnchanged.
type Sink interface {
	Name() string
	Write(ctx context.Context, r *report.Report) error
}

// Pipeline builds the configured report and hands it to every sink.
type Pipeline struct {
	builder ReportBuilder
	request report.Request
	sinks   []Sink
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
	latest  atomic.Pointer[report.Report]
}

// New creates a Pipeline for req with the given builder and sinks.
func New(b ReportBuilder, req report.Request, sinks []Sink, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		builder: b,
		request: req,
		sinks:   sinks,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once a report has been built, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no report has been built yet")
	}
	return nil
}

// Ready reports whether a report has been built.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// Latest returns the most recently built report, or nil before the first build.
func (p *Pipeline) Latest() *report.Report {
	return p.latest.Load()
}

// RunOnce builds the report and writes it to every sink. Every sink is tried
// even when an earlier one fails; the failures are joined.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	rep, err := p.builder.Build(ctx, p.request)
	if err != nil {
		p.logger.Error("build report failed", "error", err)
		return err
	}
	p.latest.Store(rep)
	p.ready.Store(true)

	var errs []error
	for _, s := range p.sinks {
		err := s.Write(ctx, rep)
		switch {
		case errors.Is(err, report.ErrUnchanged):
			p.logger.Info("upstream data unchanged, output kept", "sink", s.Name())
			p.metrics.ReportsWritten.WithLabelValues(s.Name(), "unchanged").Inc()
		case err != nil:
			p.logger.Error("write report failed", "sink", s.Name(), "error", err)
			p.metrics.ReportsWritten.WithLabelValues(s.Name(), "error").Inc()
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name(), err))
		default:
			p.metrics.ReportsWritten.WithLabelValues(s.Name(), "written").Inc()
		}
	}
	return errors.Join(errs...)
}
