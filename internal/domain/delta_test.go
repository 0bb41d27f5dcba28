package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLoc = Location{Nation: "USA", State: "PA", County: "Allegheny"}

func day(n int) time.Time {
	return time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func cumRows(column string, values ...float64) []Row {
	rows := make([]Row, len(values))
	for i, v := range values {
		rows[i] = Row{Date: day(i), Values: map[string]float64{column: v}}
	}
	return rows
}

func TestToDeltas(t *testing.T) {
	s := ToDeltas(testLoc, []string{ColumnCases}, cumRows(ColumnCases, 2, 5, 5, 11))

	cases, ok := s.Column(ColumnCases)
	require.True(t, ok)
	assert.Equal(t, []float64{2, 3, 0, 6}, cases, "first day keeps its own cumulative count")
	assert.Equal(t, testLoc, s.Location())
	assert.Equal(t, []time.Time{day(0), day(1), day(2), day(3)}, s.Dates())
}

func TestToDeltas_RoundTrip(t *testing.T) {
	inputs := [][]float64{
		{0},
		{7},
		{1, 1, 1, 1},
		{3, 10, 42, 42, 100, 180},
		{5, 9, 8, 20}, // downward revision
	}

	for _, cum := range inputs {
		s := ToDeltas(testLoc, []string{ColumnCases}, cumRows(ColumnCases, cum...))
		deltas, _ := s.Column(ColumnCases)
		assert.Equal(t, cum, CumulativeSum(deltas))
	}
}

func TestToDeltas_Empty(t *testing.T) {
	s := ToDeltas(testLoc, []string{ColumnCases, ColumnDeaths}, nil)

	assert.Equal(t, 0, s.Len())
	cases, ok := s.Column(ColumnCases)
	require.True(t, ok)
	assert.Empty(t, cases)
}

func TestToDeltas_NegativeDeltaPassesThrough(t *testing.T) {
	s := ToDeltas(testLoc, []string{ColumnDeaths}, cumRows(ColumnDeaths, 10, 8, 12))

	deaths, _ := s.Column(ColumnDeaths)
	assert.Equal(t, []float64{10, -2, 4}, deaths)
}

func TestToDeltas_SumsRowsPerDay(t *testing.T) {
	rows := []Row{
		{Date: day(0), Values: map[string]float64{ColumnCases: 1, ColumnDeaths: 0}},
		{Date: day(0), Values: map[string]float64{ColumnCases: 4, ColumnDeaths: 1}},
		{Date: day(1), Values: map[string]float64{ColumnCases: 3, ColumnDeaths: 0}},
		{Date: day(1), Values: map[string]float64{ColumnCases: 9, ColumnDeaths: 2}},
	}

	s := ToDeltas(NationLocation(), []string{ColumnCases, ColumnDeaths}, rows)

	cases, _ := s.Column(ColumnCases)
	deaths, _ := s.Column(ColumnDeaths)
	assert.Equal(t, []float64{5, 7}, cases)
	assert.Equal(t, []float64{1, 1}, deaths)
}

func TestToDeltas_UnsortedInputAndGaps(t *testing.T) {
	rows := []Row{
		{Date: day(3), Values: map[string]float64{ColumnCases: 9}},
		{Date: day(0), Values: map[string]float64{ColumnCases: 2}},
		{Date: day(1), Values: map[string]float64{ColumnCases: 4}},
	}

	s := ToDeltas(testLoc, []string{ColumnCases}, rows)

	require.Equal(t, 4, s.Len(), "missing day is filled")
	cases, _ := s.Column(ColumnCases)
	assert.Equal(t, []float64{2, 2, 0, 5}, cases)
}

func TestToDeltas_TimeOfDayIgnored(t *testing.T) {
	rows := []Row{
		{Date: day(0).Add(3 * time.Hour), Values: map[string]float64{ColumnCases: 1}},
		{Date: day(0).Add(20 * time.Hour), Values: map[string]float64{ColumnCases: 2}},
	}

	s := ToDeltas(testLoc, []string{ColumnCases}, rows)

	require.Equal(t, 1, s.Len())
	cases, _ := s.Column(ColumnCases)
	assert.Equal(t, []float64{3}, cases)
}

func TestFromIncrements(t *testing.T) {
	rows := []Row{
		{Date: day(2), Values: map[string]float64{ColumnTests: 30}},
		{Date: day(0), Values: map[string]float64{ColumnTests: 10}},
		{Date: day(0), Values: map[string]float64{ColumnTests: 5}},
	}

	s := FromIncrements(NationLocation(), []string{ColumnTests}, rows)

	tests, _ := s.Column(ColumnTests)
	assert.Equal(t, []float64{15, 0, 30}, tests)
	assert.Equal(t, []time.Time{day(0), day(1), day(2)}, s.Dates())
}
