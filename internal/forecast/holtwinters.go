// Package forecast fits additive-trend, additive-seasonal exponential
// smoothing models to weekly surveillance series and produces best-effort
// point forecasts.
package forecast

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// ErrInsufficientHistory indicates a series is too short to support the
// requested seasonal period. The model needs at least two full seasonal
// cycles of observations to estimate the initial states.
var ErrInsufficientHistory = errors.New("forecast: insufficient history for seasonal period")

// Params are the smoothing weights of a Holt-Winters model, each in (0, 1).
type Params struct {
	Alpha float64 // level
	Beta  float64 // trend
	Gamma float64 // seasonal
}

// HoltWinters is a fitted additive/additive exponential smoothing model.
// Fitting is fully deterministic: the weight search starts from a fixed
// point with fixed convergence settings, so identical input always yields
// an identical model.
type HoltWinters struct {
	Params   Params
	Period   int
	SSE      float64
	level    float64
	trend    float64
	seasonal []float64 // seasonal state, indexed by step t mod Period
	steps    int       // number of observations consumed
}

// fitStart is the fixed starting point for the weight search.
var fitStart = Params{Alpha: 0.3, Beta: 0.1, Gamma: 0.2}

// Fit estimates a Holt-Winters model on y, a weekly series where gaps are
// NaN. Initialization is estimated from the first two seasonal cycles and
// the smoothing weights are chosen by minimizing the in-sample squared
// error (Nelder-Mead). No Box-Cox transform is applied.
func Fit(y []float64, period int) (*HoltWinters, error) {
	if period <= 0 {
		return nil, fmt.Errorf("forecast: seasonal period must be positive, got %d", period)
	}
	if len(y) < 2*period || observed(y) < 2*period {
		return nil, fmt.Errorf("%w: need %d observations, have %d", ErrInsufficientHistory, 2*period, observed(y))
	}

	level0, trend0, seasonal0 := estimateInitialState(y, period)

	objective := func(theta []float64) float64 {
		p := paramsFromTheta(theta)
		_, _, _, sse, _ := smooth(y, period, p, level0, trend0, seasonal0)
		return sse
	}

	theta0 := thetaFromParams(fitStart)
	best := fitStart
	result, err := optimize.Minimize(
		optimize.Problem{Func: objective},
		theta0,
		&optimize.Settings{Converger: &optimize.FunctionConverge{Absolute: 1e-10, Iterations: 100}},
		&optimize.NelderMead{},
	)
	if err == nil && result != nil && result.X != nil {
		best = paramsFromTheta(result.X)
	}
	// A failed search is not fatal; the fixed starting weights still give a
	// usable smoother.

	level, trend, seasonal, sse, steps := smooth(y, period, best, level0, trend0, seasonal0)
	return &HoltWinters{
		Params:   best,
		Period:   period,
		SSE:      sse,
		level:    level,
		trend:    trend,
		seasonal: seasonal,
		steps:    steps,
	}, nil
}

// Forecast produces h point forecasts for the steps immediately following
// the fitted series.
func (m *HoltWinters) Forecast(h int) []float64 {
	out := make([]float64, h)
	for i := 0; i < h; i++ {
		s := m.seasonal[(m.steps+i)%m.Period]
		out[i] = m.level + float64(i+1)*m.trend + s
	}
	return out
}

func observed(y []float64) int {
	n := 0
	for _, v := range y {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// estimateInitialState derives the starting level, trend and seasonal
// components from the first two cycles, ignoring gaps.
func estimateInitialState(y []float64, period int) (level, trend float64, seasonal []float64) {
	mean1 := cycleMean(y, 0, period)
	mean2 := cycleMean(y, period, 2*period)

	level = mean1
	trend = (mean2 - mean1) / float64(period)

	seasonal = make([]float64, period)
	for i := 0; i < period; i++ {
		var sum float64
		var n int
		for t := i; t < len(y) && t < 2*period; t += period {
			if math.IsNaN(y[t]) {
				continue
			}
			base := mean1
			if t >= period {
				base = mean2
			}
			sum += y[t] - base
			n++
		}
		if n > 0 {
			seasonal[i] = sum / float64(n)
		}
	}
	return level, trend, seasonal
}

func cycleMean(y []float64, from, to int) float64 {
	var sum float64
	var n int
	for t := from; t < to && t < len(y); t++ {
		if math.IsNaN(y[t]) {
			continue
		}
		sum += y[t]
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// smooth runs the Holt-Winters recursions over y. A gap advances the level
// along the trend without updating any state from data, and contributes
// nothing to the SSE.
func smooth(y []float64, period int, p Params, level0, trend0 float64, seasonal0 []float64) (level, trend float64, seasonal []float64, sse float64, steps int) {
	level, trend = level0, trend0
	seasonal = make([]float64, period)
	copy(seasonal, seasonal0)

	for t := 0; t < len(y); t++ {
		si := t % period
		predicted := level + trend + seasonal[si]

		if math.IsNaN(y[t]) {
			level += trend
			continue
		}

		diff := y[t] - predicted
		sse += diff * diff

		prevLevel := level
		level = p.Alpha*(y[t]-seasonal[si]) + (1-p.Alpha)*(prevLevel+trend)
		trend = p.Beta*(level-prevLevel) + (1-p.Beta)*trend
		seasonal[si] = p.Gamma*(y[t]-level) + (1-p.Gamma)*seasonal[si]
	}
	return level, trend, seasonal, sse, len(y)
}

// The weight search runs unconstrained; a logistic transform keeps each
// smoothing weight inside (0, 1).
func paramsFromTheta(theta []float64) Params {
	return Params{
		Alpha: sigmoid(theta[0]),
		Beta:  sigmoid(theta[1]),
		Gamma: sigmoid(theta[2]),
	}
}

func thetaFromParams(p Params) []float64 {
	return []float64{logit(p.Alpha), logit(p.Beta), logit(p.Gamma)}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}
