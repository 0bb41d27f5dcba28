package domain

import (
	"sort"
	"time"
)

// Row is a single upstream observation. Several rows may share a date (one
// per county, or one per state); they are summed per date.
type Row struct {
	Date   time.Time
	Values map[string]float64
}

// gapFill decides the value of a calendar day with no observation.
type gapFill int

const (
	// carryForward repeats the previous running total, yielding a zero delta.
	carryForward gapFill = iota
	// fillZero records no new events.
	fillZero
)

// ToDeltas converts cumulative rows into daily increments. Rows are grouped by
// day with every column summed, a synthetic all-zero row is placed before the
// first day, and the first difference is taken. The first real day therefore
// keeps its own cumulative count. Negative differences are kept as is.
// An empty input yields an empty series.
func ToDeltas(loc Location, columns []string, rows []Row) *Series {
	dates, totals := groupByDay(columns, rows, carryForward)
	s := &Series{location: loc, dates: dates, values: make(map[string][]float64, len(columns))}
	for _, c := range columns {
		cum := totals[c]
		deltas := make([]float64, len(cum))
		prev := 0.0
		for i, v := range cum {
			deltas[i] = v - prev
			prev = v
		}
		s.set(c, deltas)
	}
	return s
}

// FromIncrements groups rows that are already daily increments by day,
// summing every column. Days without an observation count as zero.
func FromIncrements(loc Location, columns []string, rows []Row) *Series {
	dates, totals := groupByDay(columns, rows, fillZero)
	s := &Series{location: loc, dates: dates, values: make(map[string][]float64, len(columns))}
	for _, c := range columns {
		s.set(c, totals[c])
	}
	return s
}

// CumulativeSum is the inverse of ToDeltas for a single column.
func CumulativeSum(v []float64) []float64 {
	out := make([]float64, len(v))
	total := 0.0
	for i, x := range v {
		total += x
		out[i] = total
	}
	return out
}

// groupByDay sums rows per UTC day and returns a contiguous date axis from the
// first to the last observed day with one value per column per day.
func groupByDay(columns []string, rows []Row, fill gapFill) ([]time.Time, map[string][]float64) {
	totals := make(map[string][]float64, len(columns))
	if len(rows) == 0 {
		for _, c := range columns {
			totals[c] = []float64{}
		}
		return []time.Time{}, totals
	}

	byDay := make(map[time.Time]map[string]float64)
	for _, r := range rows {
		d := Day(r.Date)
		sums, ok := byDay[d]
		if !ok {
			sums = make(map[string]float64, len(columns))
			byDay[d] = sums
		}
		for _, c := range columns {
			sums[c] += r.Values[c]
		}
	}

	observed := make([]time.Time, 0, len(byDay))
	for d := range byDay {
		observed = append(observed, d)
	}
	sort.Slice(observed, func(i, j int) bool { return observed[i].Before(observed[j]) })

	first, last := observed[0], observed[len(observed)-1]
	var dates []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}

	for _, c := range columns {
		vals := make([]float64, len(dates))
		for i, d := range dates {
			if sums, ok := byDay[d]; ok {
				vals[i] = sums[c]
				continue
			}
			if fill == carryForward && i > 0 {
				vals[i] = vals[i-1]
			}
		}
		totals[c] = vals
	}
	return dates, totals
}
