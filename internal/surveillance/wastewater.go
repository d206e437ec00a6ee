package surveillance

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// ParseWastewater reads the tab-delimited AMELAG per-site table. Expected
// columns (by header): standort, bundesland, datum, typ, viruslast,
// loess_vorhersage. Rows for the aggregate "Influenza A+B" type are
// dropped; A and B are reported individually as well.
func ParseWastewater(r io.Reader) (*WastewaterDataset, error) {
	rows, header, err := readTSV(r)
	if err != nil {
		return nil, fmt.Errorf("%w: amelag: %v", ErrDatasetUnavailable, err)
	}

	col, err := columnLookup(header, "standort", "bundesland", "datum", "typ")
	if err != nil {
		return nil, fmt.Errorf("%w: amelag: %v", ErrDatasetUnavailable, err)
	}
	loadCol, hasLoad := indexOf(header, ColumnViralLoad)
	loessCol, hasLoess := indexOf(header, ColumnLoess)

	ds := &WastewaterDataset{}
	for i, fields := range rows {
		if fields[col["typ"]] == excludedVirusType {
			continue
		}
		date, err := time.Parse("2006-01-02", fields[col["datum"]])
		if err != nil {
			log.Debug().Int("row", i+2).Msg("amelag: skipping row with bad date")
			continue
		}

		rec := WastewaterRecord{
			Site:       fields[col["standort"]],
			Bundesland: fields[col["bundesland"]],
			Date:       date.UTC(),
			VirusType:  fields[col["typ"]],
			ViralLoad:  math.NaN(),
			Loess:      math.NaN(),
		}
		if hasLoad {
			rec.ViralLoad = parseOptionalFloat(fields[loadCol])
		}
		if hasLoess {
			rec.Loess = parseOptionalFloat(fields[loessCol])
		}
		if rec.Site == "" {
			continue
		}

		ds.Records = append(ds.Records, rec)
		if date.After(ds.UpdatedAt) {
			ds.UpdatedAt = date.UTC()
		}
	}
	if len(ds.Records) == 0 {
		return nil, fmt.Errorf("%w: amelag: no usable rows", ErrDatasetUnavailable)
	}
	return ds, nil
}

// parseOptionalFloat maps empty and "NA" cells to NaN gaps.
func parseOptionalFloat(s string) float64 {
	if s == "" || s == "NA" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
