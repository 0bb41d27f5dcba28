package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/adapter/census"
	"github.com/couchcryptid/covid-trends-etl/internal/adapter/covidtracking"
	"github.com/couchcryptid/covid-trends-etl/internal/adapter/csvtable"
	"github.com/couchcryptid/covid-trends-etl/internal/adapter/nytimes"
	"github.com/couchcryptid/covid-trends-etl/internal/domain"
	"github.com/couchcryptid/covid-trends-etl/internal/observability"
)

// parsedCacheSize bounds how many parsed payloads are kept across builds.
const parsedCacheSize = 4

// feed describes how to fetch and parse the source behind a SourceClass.
type feed struct {
	provider string
	key      string
	parse    func(data []byte) (domain.Source, error)
}

var feeds = map[SourceClass]feed{
	ClassCountyCase: {
		provider: nytimes.Provider,
		key:      nytimes.Key,
		parse: func(data []byte) (domain.Source, error) {
			src, err := nytimes.Parse(data)
			if err != nil {
				return nil, err
			}
			return src, nil
		},
	},
	ClassTracking: {
		provider: covidtracking.Provider,
		key:      covidtracking.Key,
		parse: func(data []byte) (domain.Source, error) {
			src, err := covidtracking.Parse(data)
			if err != nil {
				return nil, err
			}
			return src, nil
		},
	},
}

// Builder turns a Request into a Report.
type Builder struct {
	fetcher    domain.CSVFetcher
	sources    *lruCache[domain.Source]
	population *lruCache[domain.PopulationTable]
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewBuilder creates a Builder reading upstream payloads through fetcher.
func NewBuilder(fetcher domain.CSVFetcher, logger *slog.Logger, metrics *observability.Metrics) *Builder {
	return &Builder{
		fetcher:    fetcher,
		sources:    newLRUCache[domain.Source](parsedCacheSize),
		population: newLRUCache[domain.PopulationTable](1),
		logger:     logger,
		metrics:    metrics,
	}
}

// Build computes every figure of req. A figure whose data is unavailable is
// logged, counted, and listed under Report.Skipped; only context cancellation
// fails the whole build.
func (b *Builder) Build(ctx context.Context, req Request) (*Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	run := &buildRun{
		Builder: b,
		ctx:     ctx,
		loaded:  make(map[SourceClass]domain.Source),
		failed:  make(map[SourceClass]error),
	}
	report := &Report{GeneratedAt: domain.Now(), Request: req}

	for _, name := range req.Metrics {
		m, err := LookupMetric(name)
		if err != nil {
			return nil, err
		}
		for _, w := range req.Windows {
			fig, err := run.figure(m, w, req)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("build report: %w", ctxErr)
			}
			if err != nil {
				reason := skipReason(err)
				b.logger.Warn("could not make figure",
					"metric", m.Name,
					"window", w,
					"reason", reason,
					"error", err,
				)
				b.metrics.FiguresSkipped.WithLabelValues(reason).Inc()
				report.Skipped = append(report.Skipped, Skipped{Metric: m.Name, Window: w, Reason: reason, Error: err.Error()})
				continue
			}
			b.metrics.FiguresBuilt.Inc()
			report.Figures = append(report.Figures, fig)
		}
	}

	report.Checksums = run.checksums
	b.metrics.ReportsBuilt.Inc()
	b.metrics.BuildDuration.Observe(time.Since(start).Seconds())
	b.metrics.LastBuildTimestamp.Set(float64(report.GeneratedAt.Unix()))
	b.logger.Info("report built",
		"figures", len(report.Figures),
		"skipped", len(report.Skipped),
		"duration", time.Since(start),
	)
	return report, nil
}

// buildRun memoizes the sources and population table of one build so each
// upstream payload is fetched at most once per build. Load failures are
// memoized too.
type buildRun struct {
	*Builder
	ctx       context.Context
	loaded    map[SourceClass]domain.Source
	failed    map[SourceClass]error
	table     domain.PopulationTable
	tableErr  error
	checksums []Checksum
}

func (r *buildRun) figure(m Metric, window int, req Request) (Figure, error) {
	src, err := r.source(m.Class)
	if err != nil {
		return Figure{}, err
	}

	var pop domain.PopulationLookup
	if m.PerCapita {
		if pop, err = r.populationTable(); err != nil {
			return Figure{}, err
		}
	}

	column := m.SeriesColumn(window)
	fig := Figure{Metric: m.Name, Window: window, Column: column}
	for _, loc := range locationsFor(m.Class, req.Locations) {
		s, err := domain.Resolve(src, loc)
		if err != nil {
			return Figure{}, err
		}
		if pop != nil {
			if s, err = domain.Normalize(s, pop); err != nil {
				return Figure{}, err
			}
		}
		s = domain.DateFilter(domain.WithMovingStats(s, window), req.Start, req.End)
		if s, err = s.Select(column); err != nil {
			return Figure{}, err
		}
		fig.Series = append(fig.Series, Trace{
			Location: s.Location(),
			Label:    s.Location().String(),
			Records:  s.Records(),
		})
	}
	return fig, nil
}

func (r *buildRun) source(class SourceClass) (domain.Source, error) {
	if src, ok := r.loaded[class]; ok {
		return src, nil
	}
	if err, ok := r.failed[class]; ok {
		return nil, err
	}
	src, err := r.loadSource(class)
	if err != nil {
		r.failed[class] = err
		return nil, err
	}
	r.loaded[class] = src
	return src, nil
}

func (r *buildRun) loadSource(class SourceClass) (domain.Source, error) {
	f, ok := feeds[class]
	if !ok {
		return nil, fmt.Errorf("no feed for source class %q", class)
	}
	data, err := r.fetcher.FetchCSV(r.ctx, f.provider, f.key)
	if err != nil {
		return nil, fmt.Errorf("load %s source: %w", class, err)
	}

	sum := csvtable.Checksum(data)
	cacheKey := f.provider + "|" + sum
	src, ok := r.sources.get(cacheKey)
	if !ok {
		if src, err = f.parse(data); err != nil {
			return nil, fmt.Errorf("load %s source: %w", class, err)
		}
		r.sources.put(cacheKey, src)
		r.logger.Debug("parsed source", "provider", f.provider, "checksum", sum)
	}

	r.checksums = append(r.checksums, Checksum{Provider: f.provider, SHA256: sum})
	return src, nil
}

func (r *buildRun) populationTable() (domain.PopulationTable, error) {
	if r.table == nil && r.tableErr == nil {
		r.table, r.tableErr = r.loadPopulation()
	}
	return r.table, r.tableErr
}

func (r *buildRun) loadPopulation() (domain.PopulationTable, error) {
	data, err := r.fetcher.FetchCSV(r.ctx, census.Provider, census.Key)
	if err != nil {
		return nil, fmt.Errorf("load population: %w", err)
	}

	sum := csvtable.Checksum(data)
	table, ok := r.population.get(sum)
	if !ok {
		if table, err = census.Parse(data); err != nil {
			return nil, fmt.Errorf("load population: %w", err)
		}
		r.population.put(sum, table)
	}

	r.checksums = append(r.checksums, Checksum{Provider: census.Provider, SHA256: sum})
	return table, nil
}

// locationsFor reduces locations to state granularity for sources without
// county data, dropping the duplicates that creates.
func locationsFor(class SourceClass, locs []domain.Location) []domain.Location {
	if class != ClassTracking {
		return locs
	}
	out := make([]domain.Location, 0, len(locs))
	seen := make(map[domain.Location]bool, len(locs))
	for _, loc := range locs {
		loc = loc.DropCounty()
		if seen[loc] {
			continue
		}
		seen[loc] = true
		out = append(out, loc)
	}
	return out
}
