// Package covidtracking adapts the COVID Tracking Project state feed
// (states/daily.csv) to domain.Source. Counts are already daily increments
// and the feed has no county breakdown.
package covidtracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/adapter/csvtable"
	"github.com/couchcryptid/covid-trends-etl/internal/domain"
)

// Provider and Key address the feed through a domain.CSVFetcher.
const (
	Provider = "covidtracking"
	Key      = "daily"
)

// fieldColumns maps upstream increment fields to series columns.
var fieldColumns = []struct {
	field  string
	column string
}{
	{"positiveIncrease", domain.ColumnCases},
	{"deathIncrease", domain.ColumnDeaths},
	{"totalTestResultsIncrease", domain.ColumnTests},
	{"hospitalizedIncrease", domain.ColumnHospitalizations},
}

type row struct {
	state  string
	record domain.Row
}

// Source holds every parsed state row of one download.
type Source struct {
	rows     []row
	columns  []string
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

// Parse reads a states/daily.csv payload. Rows arrive newest first; order is
// irrelevant since rows are grouped by date. Territories are skipped. Only
// the increment fields present in the header become columns, so a payload
// without hospitalizedIncrease has no hospitalizations data at all. A blank
// cell is a day with nothing reported; a value that is not a number fails the
// parse.
func Parse(data []byte) (*Source, error) {
	tbl, err := csvtable.Parse(data, "date", "state", "positiveIncrease", "deathIncrease", "totalTestResultsIncrease")
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", Provider, err)
	}

	src := &Source{rows: make([]row, 0, tbl.Len()), checksum: csvtable.Checksum(data)}
	for _, fc := range fieldColumns {
		if tbl.Has(fc.field) {
			src.columns = append(src.columns, fc.column)
		}
	}
	for i := 0; i < tbl.Len(); i++ {
		date, err := parseDate(tbl.String(i, "date"))
		if err != nil {
			return nil, fmt.Errorf("parse %s: row %d: %w", Provider, i+2, err)
		}
		st, err := domain.LookupState(tbl.String(i, "state"))
		if err != nil {
			src.skipped++
			continue
		}
		values := make(map[string]float64, len(fieldColumns))
		for _, fc := range fieldColumns {
			if !tbl.Has(fc.field) {
				continue
			}
			v, err := tbl.Float(i, fc.field)
			if err != nil && !errors.Is(err, csvtable.ErrBlankCell) {
				return nil, fmt.Errorf("parse %s: %w", Provider, err)
			}
			values[fc.column] = v
		}
		src.rows = append(src.rows, row{state: st.Abbrev, record: domain.Row{Date: date, Values: values}})
	}
	return src, nil
}

// parseDate accepts the feed's YYYYMMDD form and ISO dates.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("20060102", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

// Name implements domain.Source.
func (s *Source) Name() string { return Provider }

// Checksum implements domain.Source.
func (s *Source) Checksum() string { return s.checksum }

// Skipped returns how many rows were dropped for an unrecognized state.
func (s *Source) Skipped() int { return s.skipped }

// Series sums every state per day.
func (s *Source) Series() (*domain.Series, error) {
	return fromIncrements(domain.NationLocation(), s.columns, s.rows), nil
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
	return &stateSource{loc: domain.Location{Nation: domain.Nation, State: st.Abbrev}, columns: s.columns, rows: rows}, nil
}

type stateSource struct {
	loc     domain.Location
	columns []string
	rows    []row
}

func (s *stateSource) Series() (*domain.Series, error) {
	return fromIncrements(s.loc, s.columns, s.rows), nil
}

func (s *stateSource) County(county string) (*domain.Series, error) {
	return nil, fmt.Errorf("%w: %s has no county breakdown (asked for %q)", domain.ErrCountyDataUnavailable, Provider, county)
}

func fromIncrements(loc domain.Location, columns []string, rows []row) *domain.Series {
	in := make([]domain.Row, len(rows))
	for i, r := range rows {
		in[i] = r.record
	}
	return domain.FromIncrements(loc, columns, in)
}
