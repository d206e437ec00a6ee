// Package surveillance loads the German respiratory-surveillance datasets
// (GrippeWeb weekly incidence, AMELAG wastewater viral load) and serves the
// forecast-augmented dashboard views built from them.
package surveillance

import (
	"time"

	"github.com/jmtatsch/virus-radar/internal/geo"
	"github.com/jmtatsch/virus-radar/internal/timeseries"
)

// Disease codes as used in the GrippeWeb table.
const (
	DiseaseARE = "ARE" // akute respiratorische Erkrankungen
	DiseaseILI = "ILI" // influenza-like illness
)

// Display terms for the dashboard, carried over from the product copy.
const (
	TermARE = "Influenza, COVID-19 und RSV-Infektionen"
	TermILI = "Fieber mit Husten oder Halsschmerzen"

	// ColumnPercentInfected is the derived incidence percentage column.
	ColumnPercentInfected = "Erkrankte Bevölkerung in %"

	// ColumnLoess is the smoothed viral-load column of the AMELAG table.
	ColumnLoess = "loess_vorhersage"

	// ColumnViralLoad is the raw viral-load column of the AMELAG table.
	ColumnViralLoad = "viruslast"
)

// RegionNationwide is the GrippeWeb region carrying age-group breakdowns.
const RegionNationwide = "Bundesweit"

// excludedVirusType aggregates two rows already present individually; the
// dashboard drops it to avoid double counting.
const excludedVirusType = "Influenza A+B"

// AgeGroups are the bands reported nationwide.
var AgeGroups = []string{"0-4", "5-14", "15-34", "35-59", "60+"}

// DiseaseTerm maps a disease code to its display term; unknown codes pass
// through unchanged.
func DiseaseTerm(code string) string {
	switch code {
	case DiseaseARE:
		return TermARE
	case DiseaseILI:
		return TermILI
	}
	return code
}

// IncidenceRecord is one GrippeWeb row: weekly incidence per 100,000 for a
// region, age band and disease.
type IncidenceRecord struct {
	Week      string    // ISO calendar week, e.g. "2024-W07"
	Date      time.Time // Friday of the calendar week, UTC
	Region    string
	AgeGroup  string
	Disease   string
	Incidence float64 // cases per 100,000
}

// PercentInfected converts the per-100k incidence to a population share.
func (r IncidenceRecord) PercentInfected() float64 {
	return r.Incidence / 100000 * 100
}

// IncidenceDataset is the parsed GrippeWeb table.
type IncidenceDataset struct {
	Records   []IncidenceRecord
	UpdatedAt time.Time // latest observation date
}

// Regions returns the distinct regions, sorted.
func (d *IncidenceDataset) Regions() []string {
	return distinctSorted(d.Records, func(r IncidenceRecord) string { return r.Region })
}

// RegionTable builds a disease-grouped weekly table of infection
// percentages for one region, using display terms as group keys. Age-band
// rows are excluded; regional series are reported without age breakdown.
func (d *IncidenceDataset) RegionTable(region string) *timeseries.Table {
	tbl := timeseries.New()
	for _, r := range d.Records {
		if r.Region != region || r.AgeGroup != "" {
			continue
		}
		tbl.Append(timeseries.Row{
			Time:   r.Date,
			Group:  DiseaseTerm(r.Disease),
			Values: map[string]float64{ColumnPercentInfected: r.PercentInfected()},
		})
	}
	return tbl
}

// AgeGroupTable builds an age-band-grouped weekly table of infection
// percentages for one disease. Age breakdowns only exist nationwide.
func (d *IncidenceDataset) AgeGroupTable(disease string, groups []string) *timeseries.Table {
	wanted := make(map[string]bool, len(groups))
	for _, g := range groups {
		wanted[g] = true
	}
	tbl := timeseries.New()
	for _, r := range d.Records {
		if r.Region != RegionNationwide || r.Disease != disease || !wanted[r.AgeGroup] {
			continue
		}
		tbl.Append(timeseries.Row{
			Time:   r.Date,
			Group:  r.AgeGroup,
			Values: map[string]float64{ColumnPercentInfected: r.PercentInfected()},
		})
	}
	return tbl
}

// WastewaterRecord is one AMELAG row: viral load measured at a treatment
// plant on a date for one virus type.
type WastewaterRecord struct {
	Site       string // "standort"
	Bundesland string
	Date       time.Time
	VirusType  string  // "typ"
	ViralLoad  float64 // raw measurement, NaN when unreported
	Loess      float64 // smoothed value, NaN when unreported
}

// WastewaterDataset is the parsed AMELAG per-site table.
type WastewaterDataset struct {
	Records   []WastewaterRecord
	UpdatedAt time.Time
}

// Sites returns the distinct monitored sites with their Bundesland.
func (d *WastewaterDataset) Sites() []geo.Site {
	seen := make(map[string]bool)
	var sites []geo.Site
	for _, r := range d.Records {
		if r.Site == "" || seen[r.Site] {
			continue
		}
		seen[r.Site] = true
		sites = append(sites, geo.Site{Name: r.Site, Bundesland: r.Bundesland})
	}
	return sites
}

// Bundeslaender returns the distinct state codes, sorted.
func (d *WastewaterDataset) Bundeslaender() []string {
	return distinctSorted(d.Records, func(r WastewaterRecord) string { return r.Bundesland })
}

// SitesIn returns the site names within one Bundesland, sorted.
func (d *WastewaterDataset) SitesIn(bundesland string) []string {
	var in []WastewaterRecord
	for _, r := range d.Records {
		if r.Bundesland == bundesland {
			in = append(in, r)
		}
	}
	return distinctSorted(in, func(r WastewaterRecord) string { return r.Site })
}

// SiteTable builds a virus-type-grouped table of smoothed and raw loads
// for one site.
func (d *WastewaterDataset) SiteTable(site string) *timeseries.Table {
	tbl := timeseries.New()
	for _, r := range d.Records {
		if r.Site != site {
			continue
		}
		tbl.Append(timeseries.Row{
			Time:  r.Date,
			Group: r.VirusType,
			Values: map[string]float64{
				ColumnLoess:     r.Loess,
				ColumnViralLoad: r.ViralLoad,
			},
		})
	}
	return tbl
}
