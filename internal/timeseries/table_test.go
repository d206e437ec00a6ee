package timeseries

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)

func weeklyRow(week int, group string, values map[string]float64) Row {
	return Row{
		Time:   t0.Add(time.Duration(week) * Week),
		Group:  group,
		Values: values,
	}
}

func TestRowValue(t *testing.T) {
	r := Row{Values: map[string]float64{"a": 1.5, "gap": math.NaN()}}

	v, ok := r.Value("a")
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)

	_, ok = r.Value("gap")
	assert.False(t, ok, "NaN cells report as missing")

	_, ok = r.Value("absent")
	assert.False(t, ok)
}

func TestGroupsSorted(t *testing.T) {
	tbl := New(
		weeklyRow(0, "b", map[string]float64{"x": 1}),
		weeklyRow(0, "a", map[string]float64{"x": 2}),
		weeklyRow(1, "b", map[string]float64{"x": 3}),
	)
	assert.Equal(t, []string{"a", "b"}, tbl.Groups())
}

func TestWithoutColumn(t *testing.T) {
	tbl := New(
		weeklyRow(0, "a", map[string]float64{"x": 1, "y": 2}),
		weeklyRow(1, "a", map[string]float64{"y": 3}),
	)

	out := tbl.WithoutColumn("y")
	require.Equal(t, 1, out.Len())
	assert.Equal(t, map[string]float64{"x": 1.0}, out.Rows()[0].Values)

	// Original table is untouched.
	assert.Equal(t, 2, tbl.Len())
	assert.Contains(t, tbl.Rows()[0].Values, "y")
}

func TestLastTime(t *testing.T) {
	tbl := New(
		weeklyRow(2, "a", map[string]float64{"x": 1}),
		weeklyRow(0, "a", map[string]float64{"x": 2}),
		weeklyRow(5, "b", map[string]float64{"x": 3}),
	)

	last, ok := tbl.LastTime("a")
	require.True(t, ok)
	assert.Equal(t, t0.Add(2*Week), last)

	_, ok = tbl.LastTime("missing")
	assert.False(t, ok)
}

func TestWeeklySeriesGaps(t *testing.T) {
	tbl := New(
		weeklyRow(0, "a", map[string]float64{"x": 1}),
		weeklyRow(1, "a", map[string]float64{"x": 2}),
		weeklyRow(3, "a", map[string]float64{"x": 4}),
	)

	s := tbl.WeeklySeries("a", "x")
	require.Len(t, s.Values, 4)
	assert.Equal(t, t0, s.Start)
	assert.Equal(t, 1.0, s.Values[0])
	assert.Equal(t, 2.0, s.Values[1])
	assert.True(t, math.IsNaN(s.Values[2]), "missing week becomes a gap")
	assert.Equal(t, 4.0, s.Values[3])
	assert.Equal(t, 3, s.Observed())
	assert.Equal(t, t0.Add(3*Week), s.End())
}

func TestWeeklySeriesSnapsOffGridObservations(t *testing.T) {
	tbl := New(
		weeklyRow(0, "a", map[string]float64{"x": 1}),
		// A day late; belongs to the week-1 slot, not a new one.
		Row{Time: t0.Add(Week + 24*time.Hour), Group: "a", Values: map[string]float64{"x": 2}},
	)

	s := tbl.WeeklySeries("a", "x")
	require.Len(t, s.Values, 2)
	assert.Equal(t, 2.0, s.Values[1])
}

func TestWeeklySeriesEmpty(t *testing.T) {
	tbl := New()
	s := tbl.WeeklySeries("a", "x")
	assert.Empty(t, s.Values)
}

func TestSortByTimeStable(t *testing.T) {
	tbl := New(
		weeklyRow(1, "b", map[string]float64{"x": 1}),
		weeklyRow(1, "a", map[string]float64{"x": 2}),
		weeklyRow(0, "b", map[string]float64{"x": 3}),
	)
	tbl.SortByTime()

	rows := tbl.Rows()
	assert.Equal(t, "b", rows[0].Group)
	assert.Equal(t, "a", rows[1].Group, "equal timestamps order by group")
	assert.Equal(t, "b", rows[2].Group)
}
