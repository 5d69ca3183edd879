package types

import (
	"github.com/moznion/go-optional"
)

// ConfidenceIntervals holds 95% bootstrap bounds on the headline statistics.
// Lower is always <= upper for each pair; the point estimate is not
// guaranteed to fall inside (the resampled distribution may be shifted).
type ConfidenceIntervals struct {
	SharpeLower float64 `json:"sharpe_lower"`
	SharpeUpper float64 `json:"sharpe_upper"`

	WinRateLower float64 `json:"win_rate_lower"`
	WinRateUpper float64 `json:"win_rate_upper"`

	ProfitFactorLower float64 `json:"profit_factor_lower"`
	ProfitFactorUpper float64 `json:"profit_factor_upper"`

	Resamples int `json:"resamples"`
}

// HypothesisCorrection is the multiple-testing adjustment of one raw p-value.
// The BH value is a conservative single-test approximation (p x n), identical
// to Bonferroni; a full rank-based procedure would need the whole p-value
// vector from the calling context.
type HypothesisCorrection struct {
	RawPValue        float64 `json:"raw_p_value"`
	BonferroniPValue float64 `json:"bonferroni_p_value"`
	BHPValue         float64 `json:"bh_p_value"`

	SignificantBonferroni bool `json:"significant_bonferroni"`
	SignificantBH         bool `json:"significant_bh"`

	NumTests int `json:"num_tests"`
}

// CPCVResult aggregates combinatorially purged cross-validation over many
// train/test partitions of the trade ledger.
type CPCVResult struct {
	Combinations int `json:"combinations"`

	MeanOOSSharpe float64 `json:"mean_oos_sharpe"`
	StdOOSSharpe  float64 `json:"std_oos_sharpe"`

	// ProbabilityOfLoss is the fraction of combinations whose mean
	// out-of-sample trade return was negative.
	ProbabilityOfLoss float64 `json:"probability_of_loss"`

	// DeflatedSharpe is a t-statistic discounting apparent skill for the
	// number of combinations tested; absent when fewer than two
	// combinations were evaluated or their Sharpe spread is negligible.
	DeflatedSharpe optional.Option[float64] `json:"deflated_sharpe,omitempty"`
}

// MonteCarloResult summarizes many resampled equity paths.
type MonteCarloResult struct {
	Paths int `json:"paths"`

	// FinalReturnPercentiles maps "p5", "p25", "p50", "p75", "p95" to the
	// total return percent at that percentile of the path distribution.
	FinalReturnPercentiles map[string]float64 `json:"final_return_percentiles"`

	ProbabilityOfProfit float64 `json:"probability_of_profit"`
	ProbabilityOfRuin   float64 `json:"probability_of_ruin"`

	// RuinThresholdPct is the drawdown level (e.g. 50) that counted as ruin.
	RuinThresholdPct float64 `json:"ruin_threshold_pct"`
}
