package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// DrawdownEvent is one closed (or still open) peak-to-trough-to-recovery
// episode found by scanning the equity curve.
type DrawdownEvent struct {
	StartDate    time.Time                  `json:"start_date"`
	TroughDate   time.Time                  `json:"trough_date"`
	RecoveryDate optional.Option[time.Time] `json:"recovery_date,omitempty"`
	DepthPct     float64                    `json:"depth_pct"`
	LengthDays   int                        `json:"length_days"`
}

// MonthlyReturn is one cell of the monthly returns table, chain-linked from
// equity values across the month boundary.
type MonthlyReturn struct {
	Year      int        `json:"year"`
	Month     time.Month `json:"month"`
	ReturnPct float64    `json:"return_pct"`
}

// RollingSharpePoint is the annualized Sharpe of one fixed-size window of
// daily returns ending at Timestamp.
type RollingSharpePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Sharpe    float64   `json:"sharpe"`
}

// ExtendedMetrics is the deeper risk/performance layer computed on top of a
// finished run. Fields that need a benchmark or a minimum sample size are
// optional rather than zero-valued, so "not computable" stays distinguishable
// from "computed as zero".
type ExtendedMetrics struct {
	Beta         optional.Option[float64] `json:"beta,omitempty"`
	TreynorRatio optional.Option[float64] `json:"treynor_ratio,omitempty"`
	JensensAlpha optional.Option[float64] `json:"jensens_alpha,omitempty"`

	OmegaRatio optional.Option[Ratio]   `json:"omega_ratio,omitempty"`
	TailRatio  optional.Option[float64] `json:"tail_ratio,omitempty"`

	Skewness       optional.Option[float64] `json:"skewness,omitempty"`
	ExcessKurtosis optional.Option[float64] `json:"excess_kurtosis,omitempty"`

	DrawdownEvents []DrawdownEvent      `json:"drawdown_events,omitempty"`
	MonthlyReturns []MonthlyReturn      `json:"monthly_returns,omitempty"`
	RollingSharpe  []RollingSharpePoint `json:"rolling_sharpe,omitempty"`

	CDaR       float64 `json:"cdar"`
	UlcerIndex float64 `json:"ulcer_index"`
	PainIndex  float64 `json:"pain_index"`

	GainToPainRatio optional.Option[Ratio]   `json:"gain_to_pain_ratio,omitempty"`
	BurkeRatio      optional.Option[float64] `json:"burke_ratio,omitempty"`
	SterlingRatio   optional.Option[float64] `json:"sterling_ratio,omitempty"`
}

// BenchmarkComparison relates the strategy's daily returns to a benchmark
// series supplied by the caller.
type BenchmarkComparison struct {
	Beta             optional.Option[float64] `json:"beta,omitempty"`
	Alpha            optional.Option[float64] `json:"alpha,omitempty"`
	Correlation      optional.Option[float64] `json:"correlation,omitempty"`
	TrackingError    optional.Option[float64] `json:"tracking_error,omitempty"`
	InformationRatio optional.Option[float64] `json:"information_ratio,omitempty"`

	BenchmarkReturnPct float64 `json:"benchmark_return_pct"`
	ExcessReturnPct    float64 `json:"excess_return_pct"`
}
