package timeseries

import (
	"math"
	"sort"
	"time"
)

// Week is the resampling cadence used throughout the surveillance datasets.
const Week = 7 * 24 * time.Hour

// Row is a single observation: a timestamp, the group it belongs to
// (disease, age band, virus type) and a set of named numeric values.
// Historical and forecast values live in distinct columns so callers can
// always tell fact from prediction.
type Row struct {
	Time   time.Time          `json:"time"`
	Group  string             `json:"group"`
	Values map[string]float64 `json:"values"`
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	values := make(map[string]float64, len(r.Values))
	for k, v := range r.Values {
		values[k] = v
	}
	return Row{Time: r.Time, Group: r.Group, Values: values}
}

// Value returns the named column value. Missing columns and NaN cells both
// report ok=false; gaps are represented, never errors.
func (r Row) Value(column string) (float64, bool) {
	v, ok := r.Values[column]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Table is a grouped time series: rows across one or more groups, each row
// carrying an arbitrary set of named columns. The zero value is usable.
type Table struct {
	rows []Row
}

// New creates a table from the given rows.
func New(rows ...Row) *Table {
	t := &Table{}
	t.Append(rows...)
	return t
}

// Append adds rows to the table.
func (t *Table) Append(rows ...Row) {
	t.rows = append(t.rows, rows...)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Rows returns the underlying rows in insertion order. The slice is shared;
// callers must not mutate it.
func (t *Table) Rows() []Row {
	return t.rows
}

// Groups returns the distinct group keys, sorted for deterministic iteration.
func (t *Table) Groups() []string {
	seen := make(map[string]bool)
	var groups []string
	for _, r := range t.rows {
		if !seen[r.Group] {
			seen[r.Group] = true
			groups = append(groups, r.Group)
		}
	}
	sort.Strings(groups)
	return groups
}

// Columns returns the sorted union of column names across all rows.
func (t *Table) Columns() []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range t.rows {
		for k := range r.Values {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

// FilterGroup returns a new table holding only the rows of the given group.
func (t *Table) FilterGroup(group string) *Table {
	out := &Table{}
	for _, r := range t.rows {
		if r.Group == group {
			out.rows = append(out.rows, r)
		}
	}
	return out
}

// WithoutColumn returns a copy of the table with the named column removed
// from every row. Rows left with no values are dropped.
func (t *Table) WithoutColumn(column string) *Table {
	out := &Table{}
	for _, r := range t.rows {
		if _, ok := r.Values[column]; !ok {
			out.rows = append(out.rows, r)
			continue
		}
		c := r.Clone()
		delete(c.Values, column)
		if len(c.Values) > 0 {
			out.rows = append(out.rows, c)
		}
	}
	return out
}

// LastTime returns the latest timestamp in the given group.
func (t *Table) LastTime(group string) (time.Time, bool) {
	var last time.Time
	found := false
	for _, r := range t.rows {
		if r.Group != group {
			continue
		}
		if !found || r.Time.After(last) {
			last = r.Time
			found = true
		}
	}
	return last, found
}

// SortByTime orders rows by timestamp, then group, for stable output.
func (t *Table) SortByTime() {
	sort.SliceStable(t.rows, func(i, j int) bool {
		if !t.rows[i].Time.Equal(t.rows[j].Time) {
			return t.rows[i].Time.Before(t.rows[j].Time)
		}
		return t.rows[i].Group < t.rows[j].Group
	})
}

// Series is one group's values for one column on a fixed weekly grid
// starting at Start. Weeks without an observation hold NaN.
type Series struct {
	Start  time.Time
	Values []float64
}

// End returns the timestamp of the last grid slot.
func (s Series) End() time.Time {
	if len(s.Values) == 0 {
		return s.Start
	}
	return s.Start.Add(time.Duration(len(s.Values)-1) * Week)
}

// Observed counts the non-gap values.
func (s Series) Observed() int {
	n := 0
	for _, v := range s.Values {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// WeeklySeries extracts one group's column onto a fixed weekly cadence.
// The grid is anchored at the group's earliest observation; observations that
// do not fall exactly on the grid are assigned to the nearest weekly slot so
// no real data point is silently dropped. Missing weeks become NaN gaps.
func (t *Table) WeeklySeries(group, column string) Series {
	type obs struct {
		time  time.Time
		value float64
	}
	var points []obs
	for _, r := range t.rows {
		if r.Group != group {
			continue
		}
		if v, ok := r.Value(column); ok {
			points = append(points, obs{time: r.Time, value: v})
		}
	}
	if len(points) == 0 {
		return Series{}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].time.Before(points[j].time) })

	start := points[0].time
	last := points[len(points)-1].time
	slots := int(math.Round(float64(last.Sub(start))/float64(Week))) + 1

	values := make([]float64, slots)
	for i := range values {
		values[i] = math.NaN()
	}
	for _, p := range points {
		slot := int(math.Round(float64(p.time.Sub(start)) / float64(Week)))
		if slot < 0 {
			slot = 0
		}
		if slot >= slots {
			slot = slots - 1
		}
		values[slot] = p.value
	}
	return Series{Start: start, Values: values}
}
