package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ColumnPositivity holds the positive test rate, cases over tests.
const ColumnPositivity = "positive-test-rate"

const avgSuffix = "day-avg"

// ColumnName returns the column that holds metric after WithMovingStats with
// the given window: the raw column for windows below two, otherwise
// "<metric>_<window>day-avg".
func ColumnName(metric string, window int) string {
	if window < 2 {
		return metric
	}
	return fmt.Sprintf("%s_%d%s", metric, window, avgSuffix)
}

// WithMovingStats appends a trailing moving average for every numeric column
// and, when both cases and tests are present, the positivity rate over the
// same window. An average is defined only once window values are available,
// so the first window-1 rows are NaN. A window of 0 or 1 adds no averages
// (each raw column already is its own average) and a per-day positivity rate.
func WithMovingStats(s *Series, window int) *Series {
	out := s.clone()
	if window < 1 {
		window = 1
	}

	if window > 1 {
		for _, c := range s.columns {
			if isDerived(c) {
				continue
			}
			out.set(ColumnName(c, window), rollingMean(s.values[c], window))
		}
	}

	cases, okCases := s.values[ColumnCases]
	tests, okTests := s.values[ColumnTests]
	if okCases && okTests {
		out.set(ColumnName(ColumnPositivity, window), rollingRatio(cases, tests, window))
	}
	return out
}

// DateFilter keeps the rows with start <= date <= end. A zero start or end
// leaves that side unbounded.
func DateFilter(s *Series, start, end time.Time) *Series {
	from, to := 0, len(s.dates)
	if !start.IsZero() {
		start = Day(start)
		for from < to && s.dates[from].Before(start) {
			from++
		}
	}
	if !end.IsZero() {
		end = Day(end)
		for to > from && s.dates[to-1].After(end) {
			to--
		}
	}
	return s.slice(from, to)
}

func isDerived(column string) bool {
	return strings.HasSuffix(column, avgSuffix) || strings.HasPrefix(column, ColumnPositivity)
}

// rollingSum returns trailing window sums; entries before a full window, or
// with a NaN inside the window, are NaN.
func rollingSum(v []float64, window int) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		sum := 0.0
		for _, x := range v[i-window+1 : i+1] {
			sum += x
		}
		out[i] = sum
	}
	return out
}

func rollingMean(v []float64, window int) []float64 {
	out := rollingSum(v, window)
	for i := range out {
		out[i] /= float64(window)
	}
	return out
}

// rollingRatio divides summed numerators by summed denominators. A zero
// denominator yields NaN.
func rollingRatio(num, den []float64, window int) []float64 {
	n := rollingSum(num, window)
	d := rollingSum(den, window)
	out := make([]float64, len(n))
	for i := range n {
		if d[i] == 0 || math.IsNaN(d[i]) || math.IsNaN(n[i]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = n[i] / d[i]
	}
	return out
}
