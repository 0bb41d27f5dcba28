package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSeries_RejectsGaps(t *testing.T) {
	_, err := NewSeries(testLoc, []time.Time{day(0), day(2)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not follow")

	_, err = NewSeries(testLoc, []time.Time{day(1), day(0)})
	require.Error(t, err)
}

func TestSeries_WithColumnLengthMismatch(t *testing.T) {
	s, err := NewSeries(testLoc, []time.Time{day(0), day(1)})
	require.NoError(t, err)

	_, err = s.WithColumn(ColumnCases, []float64{1})
	require.Error(t, err)
}

func TestSeries_ColumnReturnsCopy(t *testing.T) {
	s := testSeries(t, map[string][]float64{ColumnCases: {1, 2}})

	v, _ := s.Column(ColumnCases)
	v[0] = 100

	again, _ := s.Column(ColumnCases)
	assert.Equal(t, 1.0, again[0])
}

func TestSeries_Select(t *testing.T) {
	s := testSeries(t, map[string][]float64{ColumnCases: {1, 2}, ColumnDeaths: {0, 1}})

	out, err := s.Select(ColumnDeaths)
	require.NoError(t, err)
	assert.Equal(t, []string{ColumnDeaths}, out.Columns())

	_, err = s.Select("missing")
	require.ErrorIs(t, err, ErrColumnUnavailable)
}

func TestSeries_Records(t *testing.T) {
	s := testSeries(t, map[string][]float64{ColumnCases: {4, 5}})

	recs := s.Records()

	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, "USA", r.Nation)
		assert.Equal(t, "PA", r.State)
		assert.Equal(t, "Allegheny", r.County)
		assert.Equal(t, "Allegheny, PA, USA", r.Location)
	}
	assert.Equal(t, day(1), recs[1].Date)
	assert.Equal(t, 5.0, recs[1].Values[ColumnCases])
}

func TestDailyRecord_MarshalJSON(t *testing.T) {
	rec := DailyRecord{
		Date:     day(0),
		Nation:   "USA",
		State:    "PA",
		Location: "PA, USA",
		Values:   map[string]float64{"cases": 3, "cases_7day-avg": math.NaN()},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"date": "2020-03-01",
		"nation": "USA",
		"state": "PA",
		"location": "PA, USA",
		"values": {"cases": 3, "cases_7day-avg": null}
	}`, string(data))
}
