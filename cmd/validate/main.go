// Command validate performs data integrity checks on downloaded provider
// payloads: the county case feed, the state test-tracking feed and the census
// estimates. It verifies that nation series equal the sum of their states,
// that positivity rates are proportions, that population nests county <
// state < nation, and that every reported state has a population.
//
// Usage:
//
//	go run ./cmd/validate -cache-root /tmp/covid-testing
//	go run ./cmd/validate -counties us-counties.csv -tracking daily.csv -census co-est2019-alldata.csv
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/adapter/census"
	"github.com/couchcryptid/covid-trends-etl/internal/adapter/covidtracking"
	"github.com/couchcryptid/covid-trends-etl/internal/adapter/fetch"
	"github.com/couchcryptid/covid-trends-etl/internal/adapter/nytimes"
	"github.com/couchcryptid/covid-trends-etl/internal/domain"
	"github.com/couchcryptid/covid-trends-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// tolerance absorbs float summation error when comparing aggregates.
const tolerance = 1e-6

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type inputs struct {
	counties []byte
	tracking []byte
	census   []byte
}

func main() {
	cacheRoot := flag.String("cache-root", "", "fetcher cache root; payloads of the -hour bucket are validated")
	hour := flag.String("hour", "", "cache hour (YYYY-MM-DDTHH, UTC); the current hour when empty")
	countiesPath := flag.String("counties", "", "path to us-counties.csv")
	trackingPath := flag.String("tracking", "", "path to states/daily.csv")
	censusPath := flag.String("census", "", "path to co-est2019-alldata.csv")
	flag.Parse()

	if *cacheRoot != "" {
		paths, err := cachePaths(*cacheRoot, *hour)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			os.Exit(1)
		}
		*countiesPath, *trackingPath, *censusPath = paths[0], paths[1], paths[2]
	}
	if *countiesPath == "" || *trackingPath == "" || *censusPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	in, err := readInputs(*countiesPath, *trackingPath, *censusPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	os.Exit(run(os.Stdout, in))
}

// cachePaths resolves the cached payload paths the fetcher would read.
func cachePaths(root, hour string) ([3]string, error) {
	clock := clockwork.NewRealClock()
	if hour != "" {
		at, err := time.Parse("2006-01-02T15", hour)
		if err != nil {
			return [3]string{}, fmt.Errorf("invalid -hour %q: %w", hour, err)
		}
		clock = clockwork.NewFakeClockAt(at)
	}
	f := fetch.New(fetch.Options{CacheRoot: root, Clock: clock}, nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
	return [3]string{
		f.CachePath(nytimes.Provider, nytimes.Key),
		f.CachePath(covidtracking.Provider, covidtracking.Key),
		f.CachePath(census.Provider, census.Key),
	}, nil
}

func readInputs(countiesPath, trackingPath, censusPath string) (inputs, error) {
	var in inputs
	var err error
	if in.counties, err = os.ReadFile(countiesPath); err != nil {
		return inputs{}, fmt.Errorf("read county feed: %w", err)
	}
	if in.tracking, err = os.ReadFile(trackingPath); err != nil {
		return inputs{}, fmt.Errorf("read tracking feed: %w", err)
	}
	if in.census, err = os.ReadFile(censusPath); err != nil {
		return inputs{}, fmt.Errorf("read census estimates: %w", err)
	}
	return in, nil
}

func run(out io.Writer, in inputs) int {
	fmt.Fprintln(out, "=== COVID Data Integrity Validation ===")
	fmt.Fprintln(out)

	counties, err := nytimes.Parse(in.counties)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}
	tracking, err := covidtracking.Parse(in.tracking)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}
	population, err := census.Parse(in.census)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateNationSum("Phase 1: County Feed (nation = sum of states)", counties, domain.ColumnCases, domain.ColumnDeaths),
		validateNationSum("Phase 2: Tracking Feed (nation = sum of states)", tracking, domain.ColumnCases, domain.ColumnTests),
		validatePositivity(tracking),
		validatePopulation(population),
		validateCoverage(population, counties, tracking),
	}

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-52s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Skipped rows: %d county feed, %d tracking feed; %d census counties\n",
		counties.Skipped(), tracking.Skipped(), len(population))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// stateSeries resolves every state the source has rows for.
func stateSeries(src domain.Source) (map[string]*domain.Series, error) {
	out := make(map[string]*domain.Series)
	for _, st := range domain.States() {
		s, err := domain.Resolve(src, domain.Location{Nation: domain.Nation, State: st.Abbrev})
		if errors.Is(err, domain.ErrUnknownState) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[st.Abbrev] = s
	}
	return out, nil
}

// ── Phase 1 and 2: Nation Sum ──

func validateNationSum(name string, src domain.Source, columns ...string) *phase {
	p := &phase{name: name}

	nation, err := src.Series()
	if err != nil {
		p.errorf("nation series: %v", err)
		return p
	}
	states, err := stateSeries(src)
	if err != nil {
		p.errorf("state series: %v", err)
		return p
	}
	if len(states) == 0 {
		p.errorf("no state has any rows")
		return p
	}

	for _, col := range columns {
		sums := make(map[time.Time]float64)
		for _, s := range states {
			vals, _ := s.Column(col)
			for i, d := range s.Dates() {
				sums[d] += vals[i]
			}
		}
		vals, _ := nation.Column(col)
		for i, d := range nation.Dates() {
			if math.Abs(sums[d]-vals[i]) > tolerance {
				p.errorf("%s on %s: nation=%g, sum of states=%g", col, d.Format(time.DateOnly), vals[i], sums[d])
			}
		}
	}
	return p
}

// ── Phase 3: Positivity ──

func validatePositivity(src domain.Source) *phase {
	p := &phase{name: "Phase 3: Positivity (7-day rate within [0, 1])"}

	states, err := stateSeries(src)
	if err != nil {
		p.errorf("state series: %v", err)
		return p
	}
	column := domain.ColumnName(domain.ColumnPositivity, 7)
	for _, st := range sortedKeys(states) {
		s := domain.WithMovingStats(states[st], 7)
		rates, ok := s.Column(column)
		if !ok {
			p.errorf("%s: no %s column", st, column)
			continue
		}
		for i, r := range rates {
			if math.IsNaN(r) {
				continue
			}
			if r < 0 || r > 1 {
				p.errorf("%s on %s: positivity %g", st, s.Dates()[i].Format(time.DateOnly), r)
			}
		}
	}
	return p
}

// ── Phase 4: Population Nesting ──

func validatePopulation(table domain.PopulationTable) *phase {
	p := &phase{name: "Phase 4: Population (county < state < nation)"}

	nation, err := table.Population(domain.NationLocation())
	if err != nil {
		p.errorf("nation: %v", err)
		return p
	}

	perState := make(map[string]int64)
	for _, r := range table {
		if r.Population <= 0 {
			p.errorf("%s, %s: population %d", r.County, r.State, r.Population)
		}
		perState[r.State] += r.Population
	}
	for _, st := range sortedKeys(perState) {
		total := perState[st]
		if total >= nation && len(perState) > 1 {
			p.errorf("%s: state population %d not below nation %d", st, total, nation)
		}
	}
	for _, r := range table {
		if r.Population > perState[r.State] {
			p.errorf("%s, %s: county population %d above state %d", r.County, r.State, r.Population, perState[r.State])
		}
	}
	return p
}

// ── Phase 5: Coverage ──

func validateCoverage(table domain.PopulationTable, sources ...domain.Source) *phase {
	p := &phase{name: "Phase 5: Coverage (every reported state has population)"}

	for _, src := range sources {
		states, err := stateSeries(src)
		if err != nil {
			p.errorf("%s: %v", src.Name(), err)
			continue
		}
		for _, st := range sortedKeys(states) {
			if _, err := table.Population(domain.Location{Nation: domain.Nation, State: st}); err != nil {
				p.errorf("%s reports %s: %v", src.Name(), st, err)
			}
		}
	}
	return p
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
