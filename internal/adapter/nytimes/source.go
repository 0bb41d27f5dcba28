// Package nytimes adapts the New York Times county-level case feed
// (us-counties.csv) to domain.Source. The feed is cumulative, keyed by full
// state name, and carries no test or hospitalization counts.
package nytimes

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/adapter/csvtable"
	"github.com/couchcryptid/covid-trends-etl/internal/domain"
)

// Provider and Key address the feed through a domain.CSVFetcher.
const (
	Provider = "nytimes"
	Key      = "us-counties"
)

var columns = []string{domain.ColumnCases, domain.ColumnDeaths}

type row struct {
	date   time.Time
	state  string // postal abbreviation
	county string
	cases  float64
	deaths float64
}

// Source holds every parsed county row of one download.
type Source struct {
	rows     []row
	checksum string
	skipped  int
}

var _ domain.Source = (*Source)(nil)

// Load fetches the feed and parses it.
func Load(ctx context.Context, fetcher domain.CSVFetcher) (*Source, error) {
	data, err := fetcher.FetchCSV(ctx, Provider, Key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", Provider, err)
	}
	return Parse(data)
}

// Parse reads a us-counties.csv payload. Rows for territories outside the 50
// states and DC are skipped. A blank count repeats the county's previous
// running total; a count that is not a number fails the parse.
func Parse(data []byte) (*Source, error) {
	tbl, err := csvtable.Parse(data, "date", "county", "state", "cases", "deaths")
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", Provider, err)
	}

	src := &Source{rows: make([]row, 0, tbl.Len()), checksum: csvtable.Checksum(data)}
	for i := 0; i < tbl.Len(); i++ {
		date, err := time.Parse(time.DateOnly, tbl.String(i, "date"))
		if err != nil {
			return nil, fmt.Errorf("parse %s: row %d: invalid date %q", Provider, i+2, tbl.String(i, "date"))
		}
		st, err := domain.LookupState(tbl.String(i, "state"))
		if err != nil {
			src.skipped++
			continue
		}
		r := row{date: date, state: st.Abbrev, county: tbl.String(i, "county")}
		if r.cases, err = runningTotal(tbl, i, "cases"); err != nil {
			return nil, fmt.Errorf("parse %s: %w", Provider, err)
		}
		if r.deaths, err = runningTotal(tbl, i, "deaths"); err != nil {
			return nil, fmt.Errorf("parse %s: %w", Provider, err)
		}
		src.rows = append(src.rows, r)
	}
	carryForwardBlanks(src.rows)
	return src, nil
}

// runningTotal reads a cumulative count, returning NaN for a blank cell.
func runningTotal(tbl *csvtable.Table, i int, column string) (float64, error) {
	v, err := tbl.Float(i, column)
	if errors.Is(err, csvtable.ErrBlankCell) {
		return math.NaN(), nil
	}
	return v, err
}

// carryForwardBlanks replaces each blank running total with the same county's
// latest earlier total. Before its first row a county stands at zero, the
// baseline ToDeltas differences against.
func carryForwardBlanks(rows []row) {
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return rows[order[a]].date.Before(rows[order[b]].date)
	})

	type totals struct{ cases, deaths float64 }
	last := make(map[string]totals)
	for _, i := range order {
		r := &rows[i]
		key := r.state + "|" + strings.ToLower(r.county)
		prev := last[key]
		if math.IsNaN(r.cases) {
			r.cases = prev.cases
		}
		if math.IsNaN(r.deaths) {
			r.deaths = prev.deaths
		}
		last[key] = totals{cases: r.cases, deaths: r.deaths}
	}
}

// Name implements domain.Source.
func (s *Source) Name() string { return Provider }

// Checksum implements domain.Source.
func (s *Source) Checksum() string { return s.checksum }

// Skipped returns how many rows were dropped for an unrecognized state.
func (s *Source) Skipped() int { return s.skipped }

// Series returns daily national deltas.
func (s *Source) Series() (*domain.Series, error) {
	return toDeltas(domain.NationLocation(), s.rows), nil
}

// State narrows the source to one state.
func (s *Source) State(state string) (domain.StateSource, error) {
	st, err := domain.LookupState(state)
	if err != nil {
		return nil, err
	}
	var rows []row
	for _, r := range s.rows {
		if r.state == st.Abbrev {
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no %s rows for %s", domain.ErrUnknownState, Provider, st.Abbrev)
	}
	return &stateSource{loc: domain.Location{Nation: domain.Nation, State: st.Abbrev}, rows: rows}, nil
}

type stateSource struct {
	loc  domain.Location
	rows []row
}

func (s *stateSource) Series() (*domain.Series, error) {
	return toDeltas(s.loc, s.rows), nil
}

// County matches county names case-insensitively.
func (s *stateSource) County(county string) (*domain.Series, error) {
	var rows []row
	for _, r := range s.rows {
		if strings.EqualFold(r.county, county) {
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %q in %s", domain.ErrUnknownCounty, county, s.loc.State)
	}
	loc := s.loc
	loc.County = rows[0].county
	return toDeltas(loc, rows), nil
}

func toDeltas(loc domain.Location, rows []row) *domain.Series {
	in := make([]domain.Row, len(rows))
	for i, r := range rows {
		in[i] = domain.Row{
			Date: r.date,
			Values: map[string]float64{
				domain.ColumnCases:  r.cases,
				domain.ColumnDeaths: r.deaths,
			},
		}
	}
	return domain.ToDeltas(loc, columns, in)
}
