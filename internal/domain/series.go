package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Count columns produced by the source adapters.
const (
	ColumnCases            = "cases"
	ColumnDeaths           = "deaths"
	ColumnTests            = "tests"
	ColumnHospitalizations = "hospitalizations"
)

// CountColumns lists the raw count columns in display order.
var CountColumns = []string{ColumnCases, ColumnDeaths, ColumnTests, ColumnHospitalizations}

// Series is a contiguous daily time series for a single location. Every
// operation returns a new Series; a Series is never modified after it is
// handed out, so projections share no mutable state with their parent.
type Series struct {
	location Location
	dates    []time.Time
	columns  []string
	values   map[string][]float64
}

// NewSeries creates a series with no columns over the given dates. Dates are
// truncated to UTC midnight and must be strictly ascending and contiguous.
func NewSeries(loc Location, dates []time.Time) (*Series, error) {
	ds := make([]time.Time, len(dates))
	for i, d := range dates {
		ds[i] = Day(d)
		if i > 0 && !ds[i].Equal(ds[i-1].AddDate(0, 0, 1)) {
			return nil, fmt.Errorf("new series: date %s does not follow %s", ds[i].Format(time.DateOnly), ds[i-1].Format(time.DateOnly))
		}
	}
	return &Series{
		location: loc,
		dates:    ds,
		values:   make(map[string][]float64),
	}, nil
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Location returns the location every row of the series belongs to.
func (s *Series) Location() Location { return s.location }

// Len returns the number of days in the series.
func (s *Series) Len() int { return len(s.dates) }

// Dates returns a copy of the series dates.
func (s *Series) Dates() []time.Time {
	out := make([]time.Time, len(s.dates))
	copy(out, s.dates)
	return out
}

// Columns returns the numeric column names in insertion order.
func (s *Series) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// HasColumn reports whether the named numeric column exists.
func (s *Series) HasColumn(name string) bool {
	_, ok := s.values[name]
	return ok
}

// Column returns a copy of the named column.
func (s *Series) Column(name string) ([]float64, bool) {
	v, ok := s.values[name]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out, true
}

// WithColumn returns a copy of s with the named column added or replaced.
func (s *Series) WithColumn(name string, v []float64) (*Series, error) {
	if len(v) != len(s.dates) {
		return nil, fmt.Errorf("column %q has %d values, series has %d days", name, len(v), len(s.dates))
	}
	out := s.clone()
	out.set(name, v)
	return out, nil
}

// Select returns a copy of s holding only the named columns. Unknown names are
// reported as an error.
func (s *Series) Select(names ...string) (*Series, error) {
	out := &Series{location: s.location, dates: s.dates, values: make(map[string][]float64, len(names))}
	for _, n := range names {
		v, ok := s.values[n]
		if !ok {
			return nil, fmt.Errorf("%w: series for %s has no column %q", ErrColumnUnavailable, s.location, n)
		}
		out.set(n, v)
	}
	return out, nil
}

// slice returns rows [from, to) as a new series.
func (s *Series) slice(from, to int) *Series {
	out := &Series{
		location: s.location,
		dates:    append([]time.Time(nil), s.dates[from:to]...),
		values:   make(map[string][]float64, len(s.columns)),
	}
	for _, c := range s.columns {
		out.set(c, s.values[c][from:to])
	}
	return out
}

func (s *Series) clone() *Series {
	return s.slice(0, len(s.dates))
}

// set copies v into the series. Callers check the length.
func (s *Series) set(name string, v []float64) {
	if _, ok := s.values[name]; !ok {
		s.columns = append(s.columns, name)
	}
	s.values[name] = append([]float64(nil), v...)
}

// DailyRecord is one row of a series with its location annotations.
type DailyRecord struct {
	Date     time.Time
	Nation   string
	State    string
	County   string
	Location string
	Values   map[string]float64
}

// Records expands the series into rows.
func (s *Series) Records() []DailyRecord {
	out := make([]DailyRecord, len(s.dates))
	for i, d := range s.dates {
		vals := make(map[string]float64, len(s.columns))
		for _, c := range s.columns {
			vals[c] = s.values[c][i]
		}
		out[i] = DailyRecord{
			Date:     d,
			Nation:   s.location.Nation,
			State:    s.location.State,
			County:   s.location.County,
			Location: s.location.String(),
			Values:   vals,
		}
	}
	return out
}

// MarshalJSON writes NaN values as null.
func (r DailyRecord) MarshalJSON() ([]byte, error) {
	vals := make(map[string]*float64, len(r.Values))
	for k, v := range r.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			vals[k] = nil
			continue
		}
		vals[k] = &v
	}
	return json.Marshal(struct {
		Date     string              `json:"date"`
		Nation   string              `json:"nation"`
		State    string              `json:"state,omitempty"`
		County   string              `json:"county,omitempty"`
		Location string              `json:"location"`
		Values   map[string]*float64 `json:"values"`
	}{
		Date:     r.Date.Format(time.DateOnly),
		Nation:   r.Nation,
		State:    r.State,
		County:   r.County,
		Location: r.Location,
		Values:   vals,
	})
}
