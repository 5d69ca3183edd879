package types

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
)

// ParameterSet is one point of the walk-forward search grid.
type ParameterSet struct {
	ConfidenceThreshold float64                  `json:"confidence_threshold"`
	PositionSizePct     float64                  `json:"position_size_pct"`
	StopLossPct         optional.Option[float64] `json:"stop_loss_pct,omitempty"`
	TakeProfitPct       optional.Option[float64] `json:"take_profit_pct,omitempty"`
}

// ParameterSetFromConfig extracts the tunable subset of a config.
func ParameterSetFromConfig(cfg BacktestConfig) ParameterSet {
	return ParameterSet{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		PositionSizePct:     cfg.PositionSizePct,
		StopLossPct:         cfg.StopLossPct,
		TakeProfitPct:       cfg.TakeProfitPct,
	}
}

// ApplyTo copies the parameter set onto a config.
func (p ParameterSet) ApplyTo(cfg BacktestConfig) BacktestConfig {
	cfg.ConfidenceThreshold = p.ConfidenceThreshold
	cfg.PositionSizePct = p.PositionSizePct
	cfg.StopLossPct = p.StopLossPct
	cfg.TakeProfitPct = p.TakeProfitPct

	return cfg
}

// WalkForwardFold is one train/test window pair with its realized results.
type WalkForwardFold struct {
	Index int `json:"index"`

	TrainStart time.Time `json:"train_start"`
	TrainEnd   time.Time `json:"train_end"`
	TestStart  time.Time `json:"test_start"`
	TestEnd    time.Time `json:"test_end"`

	Params ParameterSet `json:"params"`

	InSampleReturnPct    float64 `json:"in_sample_return_pct"`
	OutOfSampleReturnPct float64 `json:"out_of_sample_return_pct"`
	InSampleSharpe       float64 `json:"in_sample_sharpe"`
	OutOfSampleSharpe    float64 `json:"out_of_sample_sharpe"`
	InSampleTrades       int     `json:"in_sample_trades"`
	OutOfSampleTrades    int     `json:"out_of_sample_trades"`
}

// OptimizedWalkForwardResult aggregates a chained walk-forward optimization:
// folds share one capital stream, each fold trading out-of-sample with the
// parameters that won its in-sample grid search.
type OptimizedWalkForwardResult struct {
	Folds []WalkForwardFold `json:"folds"`

	// OptimizedParams lists each fold's winning parameter set, in fold
	// order; empty when the search space was empty and the run fell back
	// to the base configuration.
	OptimizedParams []ParameterSet `json:"optimized_params,omitempty"`

	// BestParams is the parameter set of the fold with the highest
	// out-of-sample Sharpe (the base config's parameters in fallback mode).
	BestParams ParameterSet `json:"best_params"`

	AvgInSampleReturnPct    float64 `json:"avg_in_sample_return_pct"`
	AvgOutOfSampleReturnPct float64 `json:"avg_out_of_sample_return_pct"`

	// OverfittingRatio is in-sample over out-of-sample average return;
	// +inf when the out-of-sample average is zero or negative-negligible.
	// Values far from 1.0 signal overfitting.
	OverfittingRatio Ratio `json:"overfitting_ratio"`

	OutOfSampleWinRate    float64 `json:"out_of_sample_win_rate"`
	MeanOutOfSampleSharpe float64 `json:"mean_out_of_sample_sharpe"`

	CombinedEquityCurve []EquityPoint   `json:"combined_equity_curve"`
	FinalCapital        decimal.Decimal `json:"final_capital"`
}
