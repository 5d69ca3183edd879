package types

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
)

// HoldingPeriodStats summarizes round-trip holding lengths in days.
type HoldingPeriodStats struct {
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// CostSummary totals the transaction costs charged during a run.
type CostSummary struct {
	Commission   decimal.Decimal `json:"commission"`
	Slippage     decimal.Decimal `json:"slippage"`
	MarketImpact decimal.Decimal `json:"market_impact"`
}

// Total returns the sum of all cost components.
func (c CostSummary) Total() decimal.Decimal {
	return c.Commission.Add(c.Slippage).Add(c.MarketImpact)
}

// SymbolStats is the per-instrument slice of a multi-symbol backtest.
type SymbolStats struct {
	Trades   int             `json:"trades"`
	Wins     int             `json:"wins"`
	WinRate  float64         `json:"win_rate"`
	TotalPnL decimal.Decimal `json:"total_pnl"`
}

// BacktestResult is the self-contained, replayable verdict on one strategy
// run: config echo, summary statistics, equity curve, trade ledger, and the
// optional statistical layers.
type BacktestResult struct {
	ID        string         `json:"id"`
	Config    BacktestConfig `json:"config"`
	CreatedAt time.Time      `json:"created_at"`

	InitialCapital decimal.Decimal `json:"initial_capital"`
	FinalCapital   decimal.Decimal `json:"final_capital"`

	TotalReturnPct      float64 `json:"total_return_pct"`
	AnnualizedReturnPct float64 `json:"annualized_return_pct"`

	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	ProfitFactor  Ratio   `json:"profit_factor"`

	SharpeRatio  float64 `json:"sharpe_ratio"`
	SortinoRatio Ratio   `json:"sortino_ratio"`
	CalmarRatio  Ratio   `json:"calmar_ratio"`

	MaxDrawdownPct       float64 `json:"max_drawdown_pct"`
	MaxConsecutiveWins   int     `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`

	HoldingPeriod HoldingPeriodStats `json:"holding_period"`
	Costs         CostSummary        `json:"costs"`

	EquityCurve []EquityPoint `json:"equity_curve"`
	Trades      []Trade       `json:"trades"`

	SymbolBreakdown map[string]SymbolStats `json:"symbol_breakdown,omitempty"`

	Extended            optional.Option[ExtendedMetrics]     `json:"extended_metrics,omitempty"`
	Benchmark           optional.Option[BenchmarkComparison] `json:"benchmark_comparison,omitempty"`
	ConfidenceIntervals optional.Option[ConfidenceIntervals] `json:"confidence_intervals,omitempty"`
}

// HealthSnapshot is the best-effort monitoring record written after a run
// for the strategy-monitoring subsystem.
type HealthSnapshot struct {
	StrategyName   string    `json:"strategy_name"`
	Timestamp      time.Time `json:"timestamp"`
	RollingSharpe  float64   `json:"rolling_sharpe"`
	WinRate        float64   `json:"win_rate"`
	ProfitFactor   float64   `json:"profit_factor"`
	TradeCount     int       `json:"trade_count"`
	MaxDrawdownPct float64   `json:"max_drawdown_pct"`
}
