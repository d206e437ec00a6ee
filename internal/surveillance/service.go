package surveillance

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jmtatsch/virus-radar/internal/forecast"
	"github.com/jmtatsch/virus-radar/internal/geo"
	"github.com/jmtatsch/virus-radar/internal/timeseries"
)

// ForecastConfig carries the model settings used for every dashboard view.
type ForecastConfig struct {
	Horizon        int           // weekly steps to predict
	SeasonalPeriod int           // weeks per seasonal cycle
	FitTimeout     time.Duration // per-fit deadline
	Workers        int           // concurrent fits
}

// DefaultForecastConfig mirrors the dashboard defaults: half a year of
// weekly forecasts over a yearly seasonal cycle.
var DefaultForecastConfig = ForecastConfig{
	Horizon:        24,
	SeasonalPeriod: 52,
	FitTimeout:     15 * time.Second,
	Workers:        4,
}

// View is a forecast-augmented dashboard series. ForecastColumn names the
// single forecast column an overlay should draw; consumers must not guess
// by suffix.
type View struct {
	RunID          string            `json:"runId,omitempty"`
	GroupKey       string            `json:"groupKey"`
	ValueColumn    string            `json:"valueColumn"`
	ForecastColumn string            `json:"forecastColumn,omitempty"`
	Rows           []timeseries.Row  `json:"rows"`
	Skipped        map[string]string `json:"skipped,omitempty"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// SiteSelection is the wastewater preselection for a located (or not)
// visitor.
type SiteSelection struct {
	Bundesland string `json:"bundesland,omitempty"`
	Site       string `json:"site,omitempty"`
	Source     string `json:"source"` // "nearest" or "default"
}

// Service ties the datasets, the geo index and the forecaster together
// into the operations the HTTP layer exposes. All state it reads is either
// immutable (the geo index) or swapped atomically by the store, so it is
// safe for concurrent requests.
type Service struct {
	store Store
	index *geo.Index
	fc    ForecastConfig
}

// NewService creates a Service.
func NewService(store Store, index *geo.Index, fc ForecastConfig) *Service {
	return &Service{store: store, index: index, fc: fc}
}

// Regions lists the GrippeWeb regions for the region selector.
func (s *Service) Regions() ([]string, error) {
	ds, err := s.store.Incidence()
	if err != nil {
		return nil, err
	}
	return ds.Regions(), nil
}

// RegionView returns the ILI and ARE infection-percentage series for one
// region, augmented with best-effort forecasts. A region present in the
// selector but absent from the data yields an error; a group that cannot
// be forecast is reported in Skipped and keeps its history.
func (s *Service) RegionView(ctx context.Context, region string) (*View, error) {
	ds, err := s.store.Incidence()
	if err != nil {
		return nil, err
	}
	tbl := ds.RegionTable(region)
	if tbl.Len() == 0 {
		return nil, fmt.Errorf("%w: no data for region %q", ErrDatasetUnavailable, region)
	}
	return s.augment(ctx, tbl, "Erkrankung", ds.UpdatedAt)
}

// AgeGroupView returns nationwide series for one disease split by age
// band, forecast-augmented.
func (s *Service) AgeGroupView(ctx context.Context, disease string, groups []string) (*View, error) {
	ds, err := s.store.Incidence()
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		groups = AgeGroups
	}
	tbl := ds.AgeGroupTable(disease, groups)
	if tbl.Len() == 0 {
		return nil, fmt.Errorf("%w: no data for disease %q", ErrDatasetUnavailable, disease)
	}
	return s.augment(ctx, tbl, "Altersgruppe", ds.UpdatedAt)
}

// WastewaterView returns the smoothed viral-load series of one site by
// virus type. No forecast is attached: the weekly history is still shorter
// than the two seasonal cycles the model needs.
func (s *Service) WastewaterView(site string) (*View, error) {
	ds, err := s.store.Wastewater()
	if err != nil {
		return nil, err
	}
	tbl := ds.SiteTable(site)
	if tbl.Len() == 0 {
		return nil, fmt.Errorf("%w: no data for site %q", ErrDatasetUnavailable, site)
	}
	tbl.SortByTime()
	return &View{
		GroupKey:    "typ",
		ValueColumn: ColumnLoess,
		Rows:        tbl.Rows(),
		UpdatedAt:   ds.UpdatedAt,
	}, nil
}

// Bundeslaender lists the wastewater state selector values.
func (s *Service) Bundeslaender() ([]string, error) {
	ds, err := s.store.Wastewater()
	if err != nil {
		return nil, err
	}
	return ds.Bundeslaender(), nil
}

// SitesIn lists the site selector values for one Bundesland.
func (s *Service) SitesIn(bundesland string) ([]string, error) {
	ds, err := s.store.Wastewater()
	if err != nil {
		return nil, err
	}
	return ds.SitesIn(bundesland), nil
}

// SiteSelection preselects the wastewater site closest to the user. With
// no usable location, or when no site resolves through the geo index, it
// degrades to the first site alphabetically rather than failing the page.
func (s *Service) SiteSelection(user geo.Coordinate, located bool) (SiteSelection, error) {
	ds, err := s.store.Wastewater()
	if err != nil {
		return SiteSelection{}, err
	}
	sites := ds.Sites()

	if located {
		if site, ok := geo.ClosestSite(sites, user, s.index); ok {
			return SiteSelection{Bundesland: site.Bundesland, Site: site.Name, Source: "nearest"}, nil
		}
		log.Debug().Float64("lat", user.Latitude).Float64("lng", user.Longitude).
			Msg("no site resolved near user, falling back to default")
	}

	site, ok := geo.DefaultSite(sites)
	if !ok {
		return SiteSelection{}, fmt.Errorf("%w: no sites in dataset", ErrDatasetUnavailable)
	}
	return SiteSelection{Bundesland: site.Bundesland, Site: site.Name, Source: "default"}, nil
}

// augment runs the forecaster over a view table. Forecasting is
// best-effort: a run-level failure degrades to the plain historical view.
func (s *Service) augment(ctx context.Context, tbl *timeseries.Table, groupKey string, updatedAt time.Time) (*View, error) {
	view := &View{
		GroupKey:    groupKey,
		ValueColumn: ColumnPercentInfected,
		UpdatedAt:   updatedAt,
	}

	res, err := forecast.Run(ctx, tbl, forecast.Options{
		ValueColumns:   []string{ColumnPercentInfected},
		Horizon:        s.fc.Horizon,
		SeasonalPeriod: s.fc.SeasonalPeriod,
		FitTimeout:     s.fc.FitTimeout,
		Workers:        s.fc.Workers,
	})
	if err != nil {
		log.Warn().Err(err).Msg("forecast run failed, serving history only")
		tbl.SortByTime()
		view.Rows = tbl.Rows()
		return view, nil
	}

	view.RunID = res.RunID
	view.ForecastColumn = forecast.ForecastColumn(ColumnPercentInfected)
	view.Rows = res.Table.Rows()
	if len(res.Skipped) > 0 {
		view.Skipped = make(map[string]string, len(res.Skipped))
		for group, reason := range res.Skipped {
			view.Skipped[group] = reason.Error()
		}
	}
	return view, nil
}
