package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPopulation = PopulationTable{
	{State: "PA", County: "Allegheny County", Population: 1216045},
	{State: "PA", County: "Philadelphia County", Population: 1584064},
	{State: "OH", County: "Cuyahoga County", Population: 1235072},
	{State: "LA", County: "Orleans Parish", Population: 390144},
	{State: "AK", County: "Juneau City and Borough", Population: 31974},
}

func TestPopulationTable_Population(t *testing.T) {
	tests := []struct {
		name     string
		loc      Location
		expected int64
	}{
		{"county", Location{Nation: "USA", State: "PA", County: "Allegheny"}, 1216045},
		{"county case insensitive", Location{Nation: "USA", State: "PA", County: "ALLEGHENY"}, 1216045},
		{"county with suffix", Location{Nation: "USA", State: "PA", County: "Allegheny County"}, 1216045},
		{"parish", Location{Nation: "USA", State: "LA", County: "Orleans"}, 390144},
		{"city and borough", Location{Nation: "USA", State: "AK", County: "Juneau"}, 31974},
		{"state sums counties", Location{Nation: "USA", State: "PA"}, 1216045 + 1584064},
		{"nation sums everything", NationLocation(), 1216045 + 1584064 + 1235072 + 390144 + 31974},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pop, err := testPopulation.Population(tt.loc)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, pop)
		})
	}
}

func TestPopulationTable_StrictNesting(t *testing.T) {
	county, err := testPopulation.Population(Location{Nation: "USA", State: "PA", County: "Allegheny"})
	require.NoError(t, err)
	state, err := testPopulation.Population(Location{Nation: "USA", State: "PA"})
	require.NoError(t, err)
	nation, err := testPopulation.Population(NationLocation())
	require.NoError(t, err)

	assert.Less(t, county, state)
	assert.Less(t, state, nation)
}

func TestPopulationTable_Unavailable(t *testing.T) {
	tests := []struct {
		name string
		loc  Location
	}{
		{"unknown county", Location{Nation: "USA", State: "PA", County: "Cuyahoga"}},
		{"state without rows", Location{Nation: "USA", State: "WY"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testPopulation.Population(tt.loc)
			assert.ErrorIs(t, err, ErrPopulationUnavailable)
		})
	}

	t.Run("empty table", func(t *testing.T) {
		_, err := PopulationTable(nil).Population(NationLocation())
		assert.ErrorIs(t, err, ErrPopulationUnavailable)
	})
}

func TestNormalize(t *testing.T) {
	s := testSeries(t, map[string][]float64{
		ColumnCases:  {12160.45, 0},
		ColumnDeaths: {1216.045, 2432.09},
	})

	out, err := Normalize(s, testPopulation)
	require.NoError(t, err)

	cases, ok := out.Column("cases_per_100k")
	require.True(t, ok)
	assertFloats(t, []float64{1000, 0}, cases)

	deaths, ok := out.Column("deaths_per_100k")
	require.True(t, ok)
	assertFloats(t, []float64{100, 200}, deaths)

	assert.False(t, out.HasColumn("tests_per_100k"), "absent count columns are not invented")
	assert.False(t, s.HasColumn("cases_per_100k"), "input untouched")
}

func TestNormalize_PopulationUnavailable(t *testing.T) {
	s, err := NewSeries(Location{Nation: "USA", State: "WY", County: "Teton"}, nil)
	require.NoError(t, err)

	_, err = Normalize(s, testPopulation)
	assert.ErrorIs(t, err, ErrPopulationUnavailable)
}
