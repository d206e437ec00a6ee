package surveillance

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmtatsch/virus-radar/internal/forecast"
	"github.com/jmtatsch/virus-radar/internal/geo"
)

// stubStore serves fixed datasets without any loader involvement.
type stubStore struct {
	incidence  *IncidenceDataset
	wastewater *WastewaterDataset
}

func (s *stubStore) Incidence() (*IncidenceDataset, error) {
	if s.incidence == nil {
		return nil, fmt.Errorf("%w: grippeweb not loaded", ErrDatasetUnavailable)
	}
	return s.incidence, nil
}

func (s *stubStore) Wastewater() (*WastewaterDataset, error) {
	if s.wastewater == nil {
		return nil, fmt.Errorf("%w: amelag not loaded", ErrDatasetUnavailable)
	}
	return s.wastewater, nil
}

func (s *stubStore) SetIncidence(ds *IncidenceDataset)   { s.incidence = ds }
func (s *stubStore) SetWastewater(ds *WastewaterDataset) { s.wastewater = ds }

// fixtureIncidence builds a nationwide ARE/ILI history long enough to fit a
// model with a 4-week seasonal period.
func fixtureIncidence(weeks int) *IncidenceDataset {
	ds := &IncidenceDataset{}
	pattern := []float64{500, -200, -400, 100}
	for w := 0; w < weeks; w++ {
		week := fmt.Sprintf("2023-W%02d", w+1)
		date, _ := CalendarWeekFriday(week)
		for _, disease := range []string{DiseaseARE, DiseaseILI} {
			ds.Records = append(ds.Records, IncidenceRecord{
				Week:      week,
				Date:      date,
				Region:    RegionNationwide,
				Disease:   disease,
				Incidence: 5000 + 10*float64(w) + pattern[w%4],
			})
		}
		ds.UpdatedAt = date
	}
	return ds
}

func testService(store Store) *Service {
	return NewService(store, nil, ForecastConfig{
		Horizon:        4,
		SeasonalPeriod: 4,
		FitTimeout:     10 * time.Second,
		Workers:        2,
	})
}

func TestServiceUnloadedStore(t *testing.T) {
	svc := testService(&stubStore{})

	_, err := svc.Regions()
	assert.ErrorIs(t, err, ErrDatasetUnavailable)

	_, err = svc.RegionView(context.Background(), RegionNationwide)
	assert.ErrorIs(t, err, ErrDatasetUnavailable)

	_, err = svc.WastewaterView("Berlin-Ruhleben")
	assert.ErrorIs(t, err, ErrDatasetUnavailable)
}

func TestRegionViewForecasts(t *testing.T) {
	svc := testService(&stubStore{incidence: fixtureIncidence(16)})

	view, err := svc.RegionView(context.Background(), RegionNationwide)
	require.NoError(t, err)

	assert.NotEmpty(t, view.RunID)
	assert.Equal(t, ColumnPercentInfected, view.ValueColumn)
	assert.Equal(t, forecast.ForecastColumn(ColumnPercentInfected), view.ForecastColumn)
	assert.Empty(t, view.Skipped)

	// 16 weeks of history per disease plus 4 forecast rows per disease.
	assert.Len(t, view.Rows, 2*16+2*4)
}

func TestRegionViewUnknownRegion(t *testing.T) {
	svc := testService(&stubStore{incidence: fixtureIncidence(16)})

	_, err := svc.RegionView(context.Background(), "Mordor")
	assert.ErrorIs(t, err, ErrDatasetUnavailable)
}

func TestRegionViewKeepsHistoryForShortSeries(t *testing.T) {
	svc := testService(&stubStore{incidence: fixtureIncidence(5)})

	view, err := svc.RegionView(context.Background(), RegionNationwide)
	require.NoError(t, err)

	// Too short to fit: both disease groups are skipped but the history
	// still renders.
	assert.Len(t, view.Skipped, 2)
	assert.Len(t, view.Rows, 2*5)
}

func TestAgeGroupViewDefaultsToAllBands(t *testing.T) {
	ds := &IncidenceDataset{}
	date, _ := CalendarWeekFriday("2024-W01")
	for _, band := range AgeGroups {
		ds.Records = append(ds.Records, IncidenceRecord{
			Week: "2024-W01", Date: date, Region: RegionNationwide,
			AgeGroup: band, Disease: DiseaseARE, Incidence: 1000,
		})
	}
	ds.UpdatedAt = date
	svc := testService(&stubStore{incidence: ds})

	view, err := svc.AgeGroupView(context.Background(), DiseaseARE, nil)
	require.NoError(t, err)
	assert.Len(t, view.Rows, len(AgeGroups))
	assert.Equal(t, "Altersgruppe", view.GroupKey)
}

func TestWastewaterViewHasNoForecast(t *testing.T) {
	ds, err := ParseWastewater(strings.NewReader(wastewaterFixture))
	require.NoError(t, err)
	svc := testService(&stubStore{wastewater: ds})

	view, err := svc.WastewaterView("Berlin-Ruhleben")
	require.NoError(t, err)
	assert.Empty(t, view.ForecastColumn)
	assert.Empty(t, view.RunID)
	assert.Equal(t, ColumnLoess, view.ValueColumn)
	assert.NotEmpty(t, view.Rows)
}

func TestSiteSelectionFallsBackToDefault(t *testing.T) {
	ds, err := ParseWastewater(strings.NewReader(wastewaterFixture))
	require.NoError(t, err)
	svc := testService(&stubStore{wastewater: ds})

	sel, err := svc.SiteSelection(geo.Coordinate{}, false)
	require.NoError(t, err)
	assert.Equal(t, "default", sel.Source)
	assert.Equal(t, "Berlin-Ruhleben", sel.Site, "alphabetically first site")
	assert.Equal(t, "BE", sel.Bundesland)
}

func TestSiteSelectionEmptyDataset(t *testing.T) {
	svc := testService(&stubStore{wastewater: &WastewaterDataset{}})

	_, err := svc.SiteSelection(geo.Coordinate{}, false)
	assert.ErrorIs(t, err, ErrDatasetUnavailable)
}
