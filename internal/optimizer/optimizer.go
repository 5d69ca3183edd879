// Package optimizer runs walk-forward parameter optimization: repeated
// simulation over rolling train/test windows, a bounded grid search on the
// training window, and validation of the winning parameters on the unseen
// test window. Capital chains across folds, so the result is one continuous
// out-of-sample equity stream rather than independent experiments.
package optimizer

import (
	"math"
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfold/backtest/internal/engine"
	"github.com/quantfold/backtest/internal/logger"
	"github.com/quantfold/backtest/internal/types"
	"github.com/quantfold/backtest/internal/utils"
	"github.com/quantfold/backtest/pkg/errors"
)

// maxGridSize bounds the parameter grid per fold.
const maxGridSize = 100

// Fold is one train/test window pair handed to Optimize. Windows are
// expected to be disjoint with the test window immediately following the
// training window.
type Fold struct {
	TrainStart time.Time
	TrainEnd   time.Time
	TestStart  time.Time
	TestEnd    time.Time
}

// ParamSpace spans the search grid. Each axis left empty pins that
// parameter to its base-config value; a space with every axis empty makes
// Optimize fall back to a plain, non-optimized walk-forward run.
type ParamSpace struct {
	ConfidenceThresholds []float64
	PositionSizePcts     []float64
	StopLossPcts         []float64
	TakeProfitPcts       []float64
}

// IsEmpty reports whether no axis has any candidate values.
func (p ParamSpace) IsEmpty() bool {
	return len(p.ConfidenceThresholds) == 0 &&
		len(p.PositionSizePcts) == 0 &&
		len(p.StopLossPcts) == 0 &&
		len(p.TakeProfitPcts) == 0
}

// Grid enumerates the cross product of the space over the base parameters,
// capped at maxGridSize combinations. Enumeration order is deterministic;
// the search's first-wins tie-breaking depends on it.
func (p ParamSpace) Grid(base types.ParameterSet) []types.ParameterSet {
	if p.IsEmpty() {
		return nil
	}

	confidences := p.ConfidenceThresholds
	if len(confidences) == 0 {
		confidences = []float64{base.ConfidenceThreshold}
	}

	sizes := p.PositionSizePcts
	if len(sizes) == 0 {
		sizes = []float64{base.PositionSizePct}
	}

	stops := optionAxis(p.StopLossPcts, base.StopLossPct)
	targets := optionAxis(p.TakeProfitPcts, base.TakeProfitPct)

	var grid []types.ParameterSet

	for _, conf := range confidences {
		for _, size := range sizes {
			for _, sl := range stops {
				for _, tp := range targets {
					grid = append(grid, types.ParameterSet{
						ConfidenceThreshold: conf,
						PositionSizePct:     size,
						StopLossPct:         sl,
						TakeProfitPct:       tp,
					})

					if len(grid) >= maxGridSize {
						return grid
					}
				}
			}
		}
	}

	return grid
}

func optionAxis(values []float64, base optional.Option[float64]) []optional.Option[float64] {
	if len(values) == 0 {
		return []optional.Option[float64]{base}
	}

	axis := make([]optional.Option[float64], len(values))
	for i, v := range values {
		axis[i] = optional.Some(v)
	}

	return axis
}

// Optimizer orchestrates walk-forward runs on top of the simulation engine.
type Optimizer struct {
	engine *engine.Engine
	log    *logger.Logger
}

// New creates a walk-forward optimizer.
func New(eng *engine.Engine, log *logger.Logger) *Optimizer {
	return &Optimizer{engine: eng, log: log}
}

// Optimize walks the folds in order. Per fold it grid-searches the training
// window in parallel for the highest in-sample Sharpe (ties broken by
// enumeration order), re-runs the winner in-sample for reporting, then
// trades the test window with the winning parameters, carrying the ending
// capital into the next fold. An empty search space degrades to a plain
// walk-forward run with the base configuration unchanged.
func (o *Optimizer) Optimize(
	cfg types.BacktestConfig,
	barsBySymbol map[string][]types.HistoricalBar,
	signals []types.Signal,
	folds []Fold,
	space ParamSpace,
) (*types.OptimizedWalkForwardResult, error) {
	if len(folds) == 0 {
		return nil, errors.New(errors.ErrCodeNoFolds, "no walk-forward folds supplied")
	}

	baseParams := types.ParameterSetFromConfig(cfg)
	grid := space.Grid(baseParams)

	result := &types.OptimizedWalkForwardResult{
		BestParams: baseParams,
	}

	capital := cfg.InitialCapital
	bestOOSSharpe := math.Inf(-1)

	var (
		oosWins, oosTrades int
		sumISReturn        float64
		sumOOSReturn       float64
		sumOOSSharpe       float64
	)

	for i, fold := range folds {
		params := baseParams

		if len(grid) > 0 {
			winner, err := o.searchFold(cfg, barsBySymbol, signals, fold, capital, grid)
			if err != nil {
				return nil, err
			}

			params = winner
			result.OptimizedParams = append(result.OptimizedParams, winner)
		}

		inSample, err := o.runWindow(cfg, barsBySymbol, signals, params, fold.TrainStart, fold.TrainEnd, capital)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeFoldSimulation, err, "fold %d in-sample run failed", i)
		}

		outOfSample, err := o.runWindow(cfg, barsBySymbol, signals, params, fold.TestStart, fold.TestEnd, capital)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeFoldSimulation, err, "fold %d out-of-sample run failed", i)
		}

		capital = outOfSample.FinalCapital

		record := types.WalkForwardFold{
			Index:      i,
			TrainStart: fold.TrainStart,
			TrainEnd:   fold.TrainEnd,
			TestStart:  fold.TestStart,
			TestEnd:    fold.TestEnd,
			Params:     params,

			InSampleReturnPct:    inSample.TotalReturnPct,
			OutOfSampleReturnPct: outOfSample.TotalReturnPct,
			InSampleSharpe:       inSample.SharpeRatio,
			OutOfSampleSharpe:    outOfSample.SharpeRatio,
			InSampleTrades:       inSample.TotalTrades,
			OutOfSampleTrades:    outOfSample.TotalTrades,
		}
		result.Folds = append(result.Folds, record)

		sumISReturn += inSample.TotalReturnPct
		sumOOSReturn += outOfSample.TotalReturnPct
		sumOOSSharpe += outOfSample.SharpeRatio

		for _, t := range outOfSample.Trades {
			oosTrades++

			if t.IsWin() {
				oosWins++
			}
		}

		result.CombinedEquityCurve = append(result.CombinedEquityCurve, outOfSample.EquityCurve...)

		if outOfSample.SharpeRatio > bestOOSSharpe {
			bestOOSSharpe = outOfSample.SharpeRatio
			result.BestParams = params
		}

		o.log.Debug("walk-forward fold complete",
			zap.Int("fold", i),
			zap.Float64("in_sample_return_pct", inSample.TotalReturnPct),
			zap.Float64("out_of_sample_return_pct", outOfSample.TotalReturnPct),
			zap.String("capital", capital.String()),
		)
	}

	n := float64(len(folds))

	result.AvgInSampleReturnPct = sumISReturn / n
	result.AvgOutOfSampleReturnPct = sumOOSReturn / n
	result.MeanOutOfSampleSharpe = sumOOSSharpe / n
	result.OverfittingRatio = overfittingRatio(result.AvgInSampleReturnPct, result.AvgOutOfSampleReturnPct)
	result.FinalCapital = capital

	if oosTrades > 0 {
		result.OutOfSampleWinRate = float64(oosWins) / float64(oosTrades)
	}

	return result, nil
}

// searchFold evaluates every grid point's in-sample Sharpe in parallel.
// Each trial runs its own engine invocation with independent state, so
// trials never observe each other. Selection walks the results in
// enumeration order with a strict greater-than comparison, so the first of
// any tied trials wins. Trials that fail to simulate are skipped; the
// search only errors if every trial failed.
func (o *Optimizer) searchFold(
	cfg types.BacktestConfig,
	barsBySymbol map[string][]types.HistoricalBar,
	signals []types.Signal,
	fold Fold,
	capital decimal.Decimal,
	grid []types.ParameterSet,
) (types.ParameterSet, error) {
	type trial struct {
		sharpe float64
		err    error
	}

	trials := utils.ParallelMap(len(grid), 0, func(i int) trial {
		res, err := o.runWindow(cfg, barsBySymbol, signals, grid[i], fold.TrainStart, fold.TrainEnd, capital)
		if err != nil {
			return trial{err: err}
		}

		return trial{sharpe: res.SharpeRatio}
	})

	best := -1
	bestSharpe := math.Inf(-1)

	var lastErr error

	for i, t := range trials {
		if t.err != nil {
			lastErr = t.err

			continue
		}

		if t.sharpe > bestSharpe {
			bestSharpe = t.sharpe
			best = i
		}
	}

	if best < 0 {
		return types.ParameterSet{}, errors.Wrap(errors.ErrCodeFoldSimulation, "every grid trial failed", lastErr)
	}

	return grid[best], nil
}

func (o *Optimizer) runWindow(
	cfg types.BacktestConfig,
	barsBySymbol map[string][]types.HistoricalBar,
	signals []types.Signal,
	params types.ParameterSet,
	start, end time.Time,
	capital decimal.Decimal,
) (*types.BacktestResult, error) {
	windowCfg := params.ApplyTo(cfg)
	windowCfg.StartDate = start
	windowCfg.EndDate = end
	windowCfg.InitialCapital = capital

	return o.engine.Run(windowCfg, barsBySymbol, signals, optional.None[engine.OnBarCallback]())
}

// overfittingRatio divides average in-sample return by average out-of-sample
// return; a non-positive or negligible out-of-sample average yields the +inf
// sentinel rather than a misleading negative scale factor.
func overfittingRatio(avgIS, avgOOS float64) types.Ratio {
	if avgOOS <= 1e-9 {
		return types.Ratio(math.Inf(1))
	}

	return types.Ratio(avgIS / avgOOS)
}
