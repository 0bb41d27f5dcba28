package main

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strconv"
	"time"
)

// mockCounty is one county with cumulative counts per mock day.
type mockCounty struct {
	name       string
	suffix     string // census CTYNAME suffix
	state      string // postal abbreviation
	stateName  string
	fips       string
	population int64
	cases      []int64
	deaths     []int64
}

type mockData struct {
	dates    []time.Time
	counties []*mockCounty
}

var mockCounties = []mockCounty{
	{name: "Allegheny", suffix: " County", state: "PA", stateName: "Pennsylvania", fips: "42003", population: 1216045},
	{name: "Philadelphia", suffix: " County", state: "PA", stateName: "Pennsylvania", fips: "42101", population: 1584064},
	{name: "Erie", suffix: " County", state: "PA", stateName: "Pennsylvania", fips: "42049", population: 269728},
	{name: "Cuyahoga", suffix: " County", state: "OH", stateName: "Ohio", fips: "39035", population: 1235072},
	{name: "Franklin", suffix: " County", state: "OH", stateName: "Ohio", fips: "39049", population: 1316756},
	{name: "Kings", suffix: " County", state: "NY", stateName: "New York", fips: "36047", population: 2559903},
	{name: "Orleans", suffix: " Parish", state: "LA", stateName: "Louisiana", fips: "22071", population: 390144},
	{name: "Anchorage", suffix: " Municipality", state: "AK", stateName: "Alaska", fips: "02020", population: 288000},
}

// generate builds days of cumulative counts starting at first. Values depend
// only on the inputs: new cases follow a weekly cycle scaled by population,
// and each county reports its first case on a different day.
func generate(first time.Time, days int) *mockData {
	m := &mockData{dates: make([]time.Time, days)}
	for i := range m.dates {
		m.dates[i] = first.AddDate(0, 0, i)
	}

	for idx, tmpl := range mockCounties {
		c := tmpl
		c.cases = make([]int64, days)
		c.deaths = make([]int64, days)
		var cases, deaths int64
		for d := 0; d < days; d++ {
			if d >= idx {
				weekly := int64(1 + (d+idx)%7)
				cases += c.population / 100000 * weekly
				deaths += cases / 400
				if deaths > cases {
					deaths = cases
				}
			}
			c.cases[d] = cases
			c.deaths[d] = deaths
		}
		m.counties = append(m.counties, &c)
	}
	return m
}

// started reports whether county c has any cases on day d; the county feed
// omits counties before their first case.
func (c *mockCounty) started(d int) bool {
	return c.cases[d] > 0
}

// countiesCSV renders the cumulative county feed, oldest day first.
func (m *mockData) countiesCSV() []byte {
	rows := [][]string{{"date", "county", "state", "fips", "cases", "deaths"}}
	for d, date := range m.dates {
		for _, c := range m.counties {
			if !c.started(d) {
				continue
			}
			rows = append(rows, []string{
				date.Format(time.DateOnly),
				c.name,
				c.stateName,
				c.fips,
				strconv.FormatInt(c.cases[d], 10),
				strconv.FormatInt(c.deaths[d], 10),
			})
		}
	}
	return encode(rows)
}

// trackingCSV renders the state increment feed, newest day first. Positive
// increments match the county feed's state totals; tests are ten times
// positives plus a daily floor.
func (m *mockData) trackingCSV() []byte {
	states := m.states()
	rows := [][]string{{"date", "state", "positiveIncrease", "deathIncrease", "totalTestResultsIncrease", "hospitalizedIncrease"}}
	for d := len(m.dates) - 1; d >= 0; d-- {
		for _, st := range states {
			var cases, deaths int64
			for _, c := range m.counties {
				if c.state != st {
					continue
				}
				cases += c.cases[d]
				deaths += c.deaths[d]
				if d > 0 {
					cases -= c.cases[d-1]
					deaths -= c.deaths[d-1]
				}
			}
			rows = append(rows, []string{
				m.dates[d].Format("20060102"),
				st,
				strconv.FormatInt(cases, 10),
				strconv.FormatInt(deaths, 10),
				strconv.FormatInt(cases*10+100, 10),
				strconv.FormatInt(cases/20, 10),
			})
		}
	}
	return encode(rows)
}

// censusCSV renders the co-est file: one 040 row per state followed by its
// 050 county rows.
func (m *mockData) censusCSV() []byte {
	rows := [][]string{{"SUMLEV", "STATE", "COUNTY", "STNAME", "CTYNAME", "POPESTIMATE2018", "POPESTIMATE2019"}}
	for _, st := range m.states() {
		var (
			total    int64
			stName   string
			stFIPS   string
			counties [][]string
		)
		for _, c := range m.counties {
			if c.state != st {
				continue
			}
			total += c.population
			stName, stFIPS = c.stateName, c.fips[:2]
			counties = append(counties, []string{
				"050", stFIPS, c.fips[2:], c.stateName, c.name + c.suffix,
				strconv.FormatInt(c.population-1000, 10),
				strconv.FormatInt(c.population, 10),
			})
		}
		rows = append(rows, []string{
			"040", stFIPS, "000", stName, stName,
			strconv.FormatInt(total-int64(len(counties))*1000, 10),
			strconv.FormatInt(total, 10),
		})
		rows = append(rows, counties...)
	}
	return encode(rows)
}

// states lists the mock states in sorted order.
func (m *mockData) states() []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range m.counties {
		if !seen[c.state] {
			seen[c.state] = true
			out = append(out, c.state)
		}
	}
	sort.Strings(out)
	return out
}

func encode(rows [][]string) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.WriteAll(rows) // writes to a bytes.Buffer cannot fail
	return buf.Bytes()
}
