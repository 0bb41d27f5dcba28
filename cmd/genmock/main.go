// Command genmock writes deterministic mock payloads for the nytimes,
// covidtracking and census providers into the fetcher's hourly cache layout,
// so the service can build reports without network access.
//
// Usage:
//
//	go run ./cmd/genmock -cache-root /tmp/covid-testing -days 60
//	CACHE_ROOT=/tmp/covid-testing go run ./cmd/covid-etl build -l "Allegheny, PA"
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/adapter/census"
	"github.com/couchcryptid/covid-trends-etl/internal/adapter/covidtracking"
	"github.com/couchcryptid/covid-trends-etl/internal/adapter/fetch"
	"github.com/couchcryptid/covid-trends-etl/internal/adapter/nytimes"
	"github.com/couchcryptid/covid-trends-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cacheRoot := flag.String("cache-root", "/tmp/covid-testing", "fetcher cache root to write into")
	start := flag.String("start", "2020-03-01", "first mock date (YYYY-MM-DD)")
	days := flag.Int("days", 60, "number of mock days")
	hour := flag.String("hour", "", "cache hour to write (YYYY-MM-DDTHH, UTC); the current hour when empty")
	flag.Parse()

	first, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		return fmt.Errorf("invalid -start %q: %w", *start, err)
	}
	if *days < 1 {
		return fmt.Errorf("-days must be at least 1, got %d", *days)
	}

	clock := clockwork.NewRealClock()
	if *hour != "" {
		at, err := time.Parse("2006-01-02T15", *hour)
		if err != nil {
			return fmt.Errorf("invalid -hour %q: %w", *hour, err)
		}
		clock = clockwork.NewFakeClockAt(at)
	}

	// Only CachePath is used, so no provider URLs are needed.
	fetcher := fetch.New(fetch.Options{CacheRoot: *cacheRoot, Clock: clock}, nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())

	m := generate(first, *days)
	payloads := []struct {
		provider, key string
		data          []byte
	}{
		{nytimes.Provider, nytimes.Key, m.countiesCSV()},
		{covidtracking.Provider, covidtracking.Key, m.trackingCSV()},
		{census.Provider, census.Key, m.censusCSV()},
	}

	for _, p := range payloads {
		path := fetcher.CachePath(p.provider, p.key)
		if err := writeFile(path, p.data); err != nil {
			return fmt.Errorf("writing %s payload: %w", p.provider, err)
		}
		log.Printf("wrote %s: %s (%d bytes)", p.provider, path, len(p.data))
	}

	printStats(m)
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func printStats(m *mockData) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Days: %d (%s to %s)\n", len(m.dates),
		m.dates[0].Format(time.DateOnly), m.dates[len(m.dates)-1].Format(time.DateOnly))
	fmt.Printf("Counties: %d\n", len(m.counties))

	var cases, deaths int64
	for _, c := range m.counties {
		last := len(c.cases) - 1
		cases += c.cases[last]
		deaths += c.deaths[last]
		fmt.Printf("  %-28s pop=%-8d cases=%-7d deaths=%d\n", c.name+", "+c.state, c.population, c.cases[last], c.deaths[last])
	}
	fmt.Printf("Nation: cases=%d deaths=%d\n", cases, deaths)
}
