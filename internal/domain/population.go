package domain

import (
	"fmt"
	"strings"
)

// PopulationRecord is the population estimate of one county.
type PopulationRecord struct {
	State      string // postal abbreviation
	County     string
	Population int64
}

// PopulationLookup returns the total population of a location.
type PopulationLookup interface {
	Population(loc Location) (int64, error)
}

// PopulationTable is a county-level census snapshot.
type PopulationTable []PopulationRecord

// Population sums every record inside loc: all counties for the nation, the
// counties of a state, or the single matching county. County names match
// case-insensitively with suffixes such as "County" or "Parish" ignored.
func (t PopulationTable) Population(loc Location) (int64, error) {
	var (
		total   int64
		matched int
	)
	county := normalizeCountyName(loc.County)
	for _, r := range t {
		if loc.State != "" && r.State != loc.State {
			continue
		}
		if county != "" && normalizeCountyName(r.County) != county {
			continue
		}
		total += r.Population
		matched++
	}
	if matched == 0 {
		return 0, fmt.Errorf("%w: no census rows for %s", ErrPopulationUnavailable, loc)
	}
	return total, nil
}

// countySuffixes are stripped, longest first, before comparing county names.
var countySuffixes = []string{
	" city and borough",
	" census area",
	" municipality",
	" borough",
	" county",
	" parish",
}

func normalizeCountyName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, suf := range countySuffixes {
		if strings.HasSuffix(name, suf) {
			return strings.TrimSuffix(name, suf)
		}
	}
	return name
}

// Per100kColumn names the per-capita column derived from a count column.
func Per100kColumn(column string) string {
	return column + "_per_100k"
}

// Normalize appends "<column>_per_100k" for every count column of s, scaled
// by the population of the series location. It must run before
// WithMovingStats so the per-capita columns are smoothed themselves.
func Normalize(s *Series, lookup PopulationLookup) (*Series, error) {
	pop, err := lookup.Population(s.location)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", s.location, err)
	}
	if pop <= 0 {
		return nil, fmt.Errorf("normalize %s: %w: population is %d", s.location, ErrPopulationUnavailable, pop)
	}

	scale := float64(pop) / 100000
	out := s.clone()
	for _, c := range CountColumns {
		v, ok := s.values[c]
		if !ok {
			continue
		}
		scaled := make([]float64, len(v))
		for i, x := range v {
			scaled[i] = x / scale
		}
		out.set(Per100kColumn(c), scaled)
	}
	return out, nil
}
