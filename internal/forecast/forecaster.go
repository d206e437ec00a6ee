package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/jmtatsch/virus-radar/internal/timeseries"
)

// ErrFitTimeout indicates a single model fit exceeded the configured
// per-fit deadline and its group was skipped.
var ErrFitTimeout = errors.New("forecast: model fit timed out")

// ForecastSuffix is appended to a value column's name to form its forecast
// column, keeping prediction distinct from history.
const ForecastSuffix = "_forecast"

// ForecastColumn derives the forecast column name for a value column.
func ForecastColumn(valueColumn string) string {
	return valueColumn + ForecastSuffix
}

// Options configures one forecasting run.
type Options struct {
	// ValueColumns are the historical columns to forecast.
	ValueColumns []string

	// Horizon is the number of weekly point forecasts per group.
	Horizon int

	// SeasonalPeriod is the seasonal cycle length in weeks.
	SeasonalPeriod int

	// FitTimeout bounds a single model fit. Zero means no deadline.
	FitTimeout time.Duration

	// Workers bounds concurrent fits. Zero or negative means sequential.
	Workers int
}

func (o Options) validate() error {
	if len(o.ValueColumns) == 0 {
		return errors.New("forecast: no value columns given")
	}
	if o.Horizon <= 0 {
		return fmt.Errorf("forecast: horizon must be positive, got %d", o.Horizon)
	}
	if o.SeasonalPeriod <= 0 {
		return fmt.Errorf("forecast: seasonal period must be positive, got %d", o.SeasonalPeriod)
	}
	return nil
}

// Result is the outcome of a forecasting run. Table holds every original
// row unchanged plus the forecast rows of all groups that could be fitted.
type Result struct {
	// RunID tags this run in logs and payloads.
	RunID string

	// Table is the forecast-augmented table.
	Table *timeseries.Table

	// Skipped maps group names to the reason no forecast was produced for
	// them. Skipping is best-effort degradation, never an error.
	Skipped map[string]error
}

// Run fits one model per (group, value column) and appends horizon forecast
// rows per group, tagged with the group key and stored under
// "<column>_forecast". Groups with insufficient history, or whose fit times
// out, are skipped; their historical rows are kept untouched. Fits run on a
// bounded worker pool so concurrent dashboard requests do not serialize
// behind a single slow series.
func Run(ctx context.Context, tbl *timeseries.Table, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	res := &Result{
		RunID:   uuid.NewString(),
		Table:   timeseries.New(),
		Skipped: make(map[string]error),
	}
	for _, r := range tbl.Rows() {
		res.Table.Append(r.Clone())
	}

	groups := tbl.Groups()

	type groupForecast struct {
		group string
		rows  []timeseries.Row
		err   error
	}
	results := make([]groupForecast, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)

	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			rows, err := forecastGroup(gctx, tbl, group, opts)
			results[i] = groupForecast{group: group, rows: rows, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, r := range results {
		if r.err != nil {
			log.Debug().
				Str("run", res.RunID).
				Str("group", r.group).
				Err(r.err).
				Msg("forecast skipped for group")
			res.Skipped[r.group] = r.err
			continue
		}
		res.Table.Append(r.rows...)
	}
	res.Table.SortByTime()
	return res, nil
}

// forecastGroup fits every requested value column for one group and builds
// its forecast rows. The first failing column skips the whole group so a
// group is either fully forecast or not at all.
func forecastGroup(ctx context.Context, tbl *timeseries.Table, group string, opts Options) ([]timeseries.Row, error) {
	rows := make([]timeseries.Row, 0, opts.Horizon)

	for _, column := range opts.ValueColumns {
		series := tbl.WeeklySeries(group, column)
		if len(series.Values) == 0 {
			return nil, fmt.Errorf("%w: column %q has no observations", ErrInsufficientHistory, column)
		}

		model, err := fitWithTimeout(ctx, series.Values, opts.SeasonalPeriod, opts.FitTimeout)
		if err != nil {
			return nil, err
		}

		forecastCol := ForecastColumn(column)
		for i, v := range model.Forecast(opts.Horizon) {
			ts := series.End().Add(time.Duration(i+1) * timeseries.Week)
			if i < len(rows) && rows[i].Time.Equal(ts) {
				rows[i].Values[forecastCol] = v
				continue
			}
			rows = append(rows, timeseries.Row{
				Time:   ts,
				Group:  group,
				Values: map[string]float64{forecastCol: v},
			})
		}
	}
	return rows, nil
}

// fitWithTimeout runs Fit under the per-fit deadline. Pathological series
// can make the weight search slow; the deadline bounds tail latency.
func fitWithTimeout(ctx context.Context, y []float64, period int, timeout time.Duration) (*HoltWinters, error) {
	type outcome struct {
		model *HoltWinters
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		m, err := Fit(y, period)
		done <- outcome{model: m, err: err}
	}()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case out := <-done:
		return out.model, out.err
	case <-deadline:
		return nil, ErrFitTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
