// Package census loads county population estimates from the Census Bureau
// co-est CSV files.
package census

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/couchcryptid/covid-trends-etl/internal/adapter/csvtable"
	"github.com/couchcryptid/covid-trends-etl/internal/domain"
)

// Provider and Key address the estimates file through a domain.CSVFetcher.
const (
	Provider = "census"
	Key      = "co-est2019-alldata"
)

// countyLevel is the SUMLEV code of county rows; state totals use 040.
const countyLevel = "050"

const estimatePrefix = "POPESTIMATE"

// Load fetches and parses the county estimates.
func Load(ctx context.Context, fetcher domain.CSVFetcher) (domain.PopulationTable, error) {
	data, err := fetcher.FetchCSV(ctx, Provider, Key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", Provider, err)
	}
	return Parse(data)
}

// Parse reads county rows, taking each county's most recent POPESTIMATE<year>
// column. State-total rows and territories are skipped.
func Parse(data []byte) (domain.PopulationTable, error) {
	tbl, err := csvtable.Parse(data, "SUMLEV", "STNAME", "CTYNAME")
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", Provider, err)
	}

	estimate := latestEstimateColumn(tbl.Columns())
	if estimate == "" {
		return nil, fmt.Errorf("parse %s: no %s<year> column", Provider, estimatePrefix)
	}

	table := make(domain.PopulationTable, 0, tbl.Len())
	for i := 0; i < tbl.Len(); i++ {
		if tbl.String(i, "SUMLEV") != countyLevel {
			continue
		}
		st, err := domain.LookupState(tbl.String(i, "STNAME"))
		if err != nil {
			continue
		}
		pop, err := strconv.ParseInt(tbl.String(i, estimate), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s: row %d: invalid %s %q", Provider, i+2, estimate, tbl.String(i, estimate))
		}
		table = append(table, domain.PopulationRecord{
			State:      st.Abbrev,
			County:     tbl.String(i, "CTYNAME"),
			Population: pop,
		})
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("parse %s: %w: no county rows", Provider, domain.ErrPopulationUnavailable)
	}
	return table, nil
}

// latestEstimateColumn picks the POPESTIMATE column with the greatest year.
func latestEstimateColumn(columns []string) string {
	best, bestYear := "", -1
	for _, c := range columns {
		if !strings.HasPrefix(c, estimatePrefix) {
			continue
		}
		year, err := strconv.Atoi(strings.TrimPrefix(c, estimatePrefix))
		if err != nil {
			continue
		}
		if year > bestYear {
			best, bestYear = c, year
		}
	}
	return best
}
