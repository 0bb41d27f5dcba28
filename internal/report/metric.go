package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
)

// SourceClass names the kind of upstream feed a metric is computed from.
type SourceClass string

const (
	// ClassCountyCase is the cumulative county-level case feed.
	ClassCountyCase SourceClass = "county-case"
	// ClassTracking is the incremental state-level test-tracking feed. It has
	// no county data, so locations are reduced to state granularity.
	ClassTracking SourceClass = "tracking"
)

// Metric is one plottable quantity of the catalogue.
type Metric struct {
	Name      string
	Column    string
	PerCapita bool
	Class     SourceClass
}

// SeriesColumn returns the column of a fully processed series that holds the
// metric at the given smoothing window.
func (m Metric) SeriesColumn(window int) string {
	col := m.Column
	if m.PerCapita {
		col = domain.Per100kColumn(col)
	}
	return domain.ColumnName(col, window)
}

var catalogue = map[string]Metric{}

func init() {
	for _, c := range domain.CountColumns {
		class := ClassCountyCase
		if c == domain.ColumnTests || c == domain.ColumnHospitalizations {
			class = ClassTracking
		}
		catalogue[c] = Metric{Name: c, Column: c, Class: class}
		catalogue[c+"100k"] = Metric{Name: c + "100k", Column: c, PerCapita: true, Class: class}
	}
	catalogue[domain.ColumnPositivity] = Metric{
		Name:   domain.ColumnPositivity,
		Column: domain.ColumnPositivity,
		Class:  ClassTracking,
	}
}

// LookupMetric returns the catalogue entry for name.
func LookupMetric(name string) (Metric, error) {
	m, ok := catalogue[strings.TrimSpace(name)]
	if !ok {
		return Metric{}, fmt.Errorf("unknown metric %q (allowed: %s)", name, strings.Join(MetricNames(), ", "))
	}
	return m, nil
}

// MetricNames lists the catalogue in sorted order.
func MetricNames() []string {
	names := make([]string, 0, len(catalogue))
	for n := range catalogue {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
