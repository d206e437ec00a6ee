package surveillance

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrDatasetUnavailable indicates a surveillance table could not be read or
// parsed at all. Individual malformed rows are skipped with a log instead.
var ErrDatasetUnavailable = errors.New("surveillance: dataset unavailable")

// ParseGrippeWeb reads the tab-delimited GrippeWeb weekly report table.
// Expected columns (by header): Kalenderwoche, Region, Altersgruppe,
// Erkrankung, Inzidenz.
func ParseGrippeWeb(r io.Reader) (*IncidenceDataset, error) {
	rows, header, err := readTSV(r)
	if err != nil {
		return nil, fmt.Errorf("%w: grippeweb: %v", ErrDatasetUnavailable, err)
	}

	col, err := columnLookup(header, "Kalenderwoche", "Region", "Erkrankung", "Inzidenz")
	if err != nil {
		return nil, fmt.Errorf("%w: grippeweb: %v", ErrDatasetUnavailable, err)
	}
	ageCol, hasAge := indexOf(header, "Altersgruppe")

	ds := &IncidenceDataset{}
	for i, fields := range rows {
		week := fields[col["Kalenderwoche"]]
		date, err := CalendarWeekFriday(week)
		if err != nil {
			log.Debug().Int("row", i+2).Str("week", week).Msg("grippeweb: skipping row with bad calendar week")
			continue
		}
		incidence, err := strconv.ParseFloat(fields[col["Inzidenz"]], 64)
		if err != nil {
			log.Debug().Int("row", i+2).Msg("grippeweb: skipping row with bad incidence")
			continue
		}

		rec := IncidenceRecord{
			Week:      week,
			Date:      date,
			Region:    fields[col["Region"]],
			Disease:   fields[col["Erkrankung"]],
			Incidence: incidence,
		}
		if hasAge {
			rec.AgeGroup = normalizeAgeGroup(fields[ageCol])
		}
		ds.Records = append(ds.Records, rec)
		if date.After(ds.UpdatedAt) {
			ds.UpdatedAt = date
		}
	}
	if len(ds.Records) == 0 {
		return nil, fmt.Errorf("%w: grippeweb: no usable rows", ErrDatasetUnavailable)
	}
	return ds, nil
}

// CalendarWeekFriday converts an ISO calendar week like "2024-W07" to the
// Friday of that week, the cadence anchor of the weekly series.
func CalendarWeekFriday(week string) (time.Time, error) {
	parts := strings.SplitN(week, "-W", 2)
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("malformed calendar week %q", week)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed calendar week %q", week)
	}
	wk, err := strconv.Atoi(parts[1])
	if err != nil || wk < 1 || wk > 53 {
		return time.Time{}, fmt.Errorf("malformed calendar week %q", week)
	}

	// January 4th always falls in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	week1Monday := jan4.AddDate(0, 0, 1-weekday)
	return week1Monday.AddDate(0, 0, (wk-1)*7+4), nil
}

// normalizeAgeGroup canonicalizes the Altersgruppe cell; the upstream table
// marks "no breakdown" rows with an empty cell or "00+".
func normalizeAgeGroup(s string) string {
	s = strings.TrimSpace(s)
	if s == "00+" {
		return ""
	}
	return s
}

// readTSV reads a tab-delimited table with a header row.
func readTSV(r io.Reader) ([][]string, []string, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}
	var rows [][]string
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading rows: %w", err)
		}
		if len(fields) < len(header) {
			continue
		}
		rows = append(rows, fields)
	}
	return rows, header, nil
}

// columnLookup maps required column names to their indices.
func columnLookup(header []string, names ...string) (map[string]int, error) {
	col := make(map[string]int, len(names))
	for _, name := range names {
		idx, ok := indexOf(header, name)
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		col[name] = idx
	}
	return col, nil
}

func indexOf(header []string, name string) (int, bool) {
	for i, h := range header {
		if strings.TrimSpace(h) == name {
			return i, true
		}
	}
	return 0, false
}

// distinctSorted extracts the distinct non-empty values of one field.
func distinctSorted[T any](records []T, field func(T) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		v := field(r)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
