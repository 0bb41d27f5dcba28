package census

import (
	"context"
	"testing"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = "SUMLEV,REGION,DIVISION,STATE,COUNTY,STNAME,CTYNAME,CENSUS2010POP,POPESTIMATE2018,POPESTIMATE2019\n" +
	"040,1,2,42,000,Pennsylvania,Pennsylvania,12702379,12800000,12801989\n" +
	"050,1,2,42,003,Pennsylvania,Allegheny County,1223348,1218000,1216045\n" +
	"050,1,2,42,101,Pennsylvania,Philadelphia County,1526006,1580000,1584064\n" +
	"050,4,8,35,013,New Mexico,Do\xf1a Ana County,209233,217000,218195\n" +
	"050,3,7,22,071,Louisiana,Orleans Parish,343829,391000,390144\n" +
	"050,0,0,72,001,Puerto Rico,Adjuntas Municipio,19483,18000,17363\n"

func mustParse(t *testing.T) domain.PopulationTable {
	t.Helper()
	table, err := Parse([]byte(fixture))
	require.NoError(t, err)
	return table
}

func TestParse(t *testing.T) {
	table := mustParse(t)

	require.Len(t, table, 4, "state totals and territories are skipped")
	assert.Equal(t, domain.PopulationRecord{State: "PA", County: "Allegheny County", Population: 1216045}, table[0])
	assert.Equal(t, "Doña Ana County", table[2].County, "latin-1 names are decoded")
	assert.Equal(t, "NM", table[2].State)
}

func TestParse_PopulationNesting(t *testing.T) {
	table := mustParse(t)

	county, err := table.Population(domain.Location{Nation: "USA", State: "PA", County: "Allegheny"})
	require.NoError(t, err)
	state, err := table.Population(domain.Location{Nation: "USA", State: "PA"})
	require.NoError(t, err)
	nation, err := table.Population(domain.NationLocation())
	require.NoError(t, err)

	assert.Equal(t, int64(1216045), county)
	assert.Equal(t, int64(1216045+1584064), state)
	assert.Equal(t, int64(1216045+1584064+218195+390144), nation)
	assert.Less(t, county, state)
	assert.Less(t, state, nation)

	parish, err := table.Population(domain.Location{Nation: "USA", State: "LA", County: "orleans"})
	require.NoError(t, err)
	assert.Equal(t, int64(390144), parish)
}

func TestLatestEstimateColumn(t *testing.T) {
	assert.Equal(t, "POPESTIMATE2019", latestEstimateColumn([]string{"POPESTIMATE2010", "POPESTIMATE2019", "POPESTIMATE2015", "CTYNAME"}))
	assert.Equal(t, "", latestEstimateColumn([]string{"CTYNAME", "POPESTIMATEX"}))
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing columns", "SUMLEV,STNAME\n050,Ohio\n"},
		{"no estimate column", "SUMLEV,STNAME,CTYNAME\n050,Ohio,Franklin County\n"},
		{"bad estimate", "SUMLEV,STNAME,CTYNAME,POPESTIMATE2019\n050,Ohio,Franklin County,lots\n"},
		{"no county rows", "SUMLEV,STNAME,CTYNAME,POPESTIMATE2019\n040,Ohio,Ohio,11689100\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
		})
	}
}

type stubFetcher struct{}

func (stubFetcher) FetchCSV(_ context.Context, provider, key string) ([]byte, error) {
	if provider != Provider || key != Key {
		return nil, &domain.FetchError{Provider: provider, Key: key, StatusCode: 404}
	}
	return []byte(fixture), nil
}

func TestLoad(t *testing.T) {
	table, err := Load(context.Background(), stubFetcher{})
	require.NoError(t, err)
	assert.Len(t, table, 4)
}
