// Package tearsheet assembles a finished backtest into one structured,
// serializable report. It performs no new computation; every number is
// already present in the BacktestResult or its optional statistical layers.
package tearsheet

import (
	"time"

	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"

	"github.com/quantfold/backtest/internal/types"
	"github.com/quantfold/backtest/internal/utils"
	"github.com/quantfold/backtest/pkg/errors"
)

const smallSampleTrades = 30

// SummarySection carries the headline performance numbers.
type SummarySection struct {
	StrategyName        string    `yaml:"strategy_name" json:"strategy_name"`
	StartDate           time.Time `yaml:"start_date" json:"start_date"`
	EndDate             time.Time `yaml:"end_date" json:"end_date"`
	InitialCapital      string    `yaml:"initial_capital" json:"initial_capital"`
	FinalCapital        string    `yaml:"final_capital" json:"final_capital"`
	TotalReturnPct      float64   `yaml:"total_return_pct" json:"total_return_pct"`
	AnnualizedReturnPct float64   `yaml:"annualized_return_pct" json:"annualized_return_pct"`
}

// RiskSection carries drawdown and risk-adjusted performance.
type RiskSection struct {
	SharpeRatio    float64     `yaml:"sharpe_ratio" json:"sharpe_ratio"`
	SortinoRatio   types.Ratio `yaml:"sortino_ratio" json:"sortino_ratio"`
	CalmarRatio    types.Ratio `yaml:"calmar_ratio" json:"calmar_ratio"`
	MaxDrawdownPct float64     `yaml:"max_drawdown_pct" json:"max_drawdown_pct"`

	UlcerIndex optional.Option[float64] `yaml:"ulcer_index,omitempty" json:"ulcer_index,omitempty"`
	PainIndex  optional.Option[float64] `yaml:"pain_index,omitempty" json:"pain_index,omitempty"`
	CDaR       optional.Option[float64] `yaml:"cdar,omitempty" json:"cdar,omitempty"`
}

// DayOfWeekStats breaks trades down by entry weekday.
type DayOfWeekStats struct {
	Day     time.Weekday `yaml:"day" json:"day"`
	Trades  int          `yaml:"trades" json:"trades"`
	Wins    int          `yaml:"wins" json:"wins"`
	WinRate float64      `yaml:"win_rate" json:"win_rate"`
}

// TradeSection summarizes the trade ledger.
type TradeSection struct {
	TotalTrades          int         `yaml:"total_trades" json:"total_trades"`
	WinningTrades        int         `yaml:"winning_trades" json:"winning_trades"`
	LosingTrades         int         `yaml:"losing_trades" json:"losing_trades"`
	WinRate              float64     `yaml:"win_rate" json:"win_rate"`
	ProfitFactor         types.Ratio `yaml:"profit_factor" json:"profit_factor"`
	MaxConsecutiveWins   int         `yaml:"max_consecutive_wins" json:"max_consecutive_wins"`
	MaxConsecutiveLosses int         `yaml:"max_consecutive_losses" json:"max_consecutive_losses"`

	HoldingDaysMin    int     `yaml:"holding_days_min" json:"holding_days_min"`
	HoldingDaysMedian float64 `yaml:"holding_days_median" json:"holding_days_median"`
	HoldingDaysMax    int     `yaml:"holding_days_max" json:"holding_days_max"`

	ByDayOfWeek []DayOfWeekStats `yaml:"by_day_of_week,omitempty" json:"by_day_of_week,omitempty"`

	BySymbol map[string]types.SymbolStats `yaml:"by_symbol,omitempty" json:"by_symbol,omitempty"`
}

// CostSection itemizes transaction costs as strings to keep decimal
// precision through serialization.
type CostSection struct {
	Commission   string `yaml:"commission" json:"commission"`
	Slippage     string `yaml:"slippage" json:"slippage"`
	MarketImpact string `yaml:"market_impact" json:"market_impact"`
	Total        string `yaml:"total" json:"total"`
}

// TearSheet is the complete report.
type TearSheet struct {
	GeneratedAt time.Time `yaml:"generated_at" json:"generated_at"`
	BacktestID  string    `yaml:"backtest_id" json:"backtest_id"`

	Summary SummarySection `yaml:"summary" json:"summary"`
	Risk    RiskSection    `yaml:"risk" json:"risk"`
	Trades  TradeSection   `yaml:"trades" json:"trades"`
	Costs   CostSection    `yaml:"costs" json:"costs"`

	Extended   optional.Option[types.ExtendedMetrics]     `yaml:"extended_metrics,omitempty" json:"extended_metrics,omitempty"`
	Benchmark  optional.Option[types.BenchmarkComparison] `yaml:"benchmark_comparison,omitempty" json:"benchmark_comparison,omitempty"`
	Confidence optional.Option[types.ConfidenceIntervals] `yaml:"confidence_intervals,omitempty" json:"confidence_intervals,omitempty"`
	MonteCarlo optional.Option[types.MonteCarloResult]    `yaml:"monte_carlo,omitempty" json:"monte_carlo,omitempty"`

	// DataQualityNotes flags conditions that weaken the statistical layers,
	// like an undersized trade sample.
	DataQualityNotes []string `yaml:"data_quality_notes,omitempty" json:"data_quality_notes,omitempty"`
}

// Build assembles a tear sheet from a finished result and an optional Monte
// Carlo summary.
func Build(result *types.BacktestResult, monteCarlo optional.Option[types.MonteCarloResult]) *TearSheet {
	sheet := &TearSheet{
		GeneratedAt: time.Now().UTC(),
		BacktestID:  result.ID,

		Summary: SummarySection{
			StrategyName:        result.Config.StrategyName,
			StartDate:           result.Config.StartDate,
			EndDate:             result.Config.EndDate,
			InitialCapital:      result.InitialCapital.String(),
			FinalCapital:        result.FinalCapital.String(),
			TotalReturnPct:      result.TotalReturnPct,
			AnnualizedReturnPct: result.AnnualizedReturnPct,
		},

		Risk: RiskSection{
			SharpeRatio:    result.SharpeRatio,
			SortinoRatio:   result.SortinoRatio,
			CalmarRatio:    result.CalmarRatio,
			MaxDrawdownPct: result.MaxDrawdownPct,
		},

		Trades: TradeSection{
			TotalTrades:          result.TotalTrades,
			WinningTrades:        result.WinningTrades,
			LosingTrades:         result.LosingTrades,
			WinRate:              result.WinRate,
			ProfitFactor:         result.ProfitFactor,
			MaxConsecutiveWins:   result.MaxConsecutiveWins,
			MaxConsecutiveLosses: result.MaxConsecutiveLosses,

			HoldingDaysMin:    result.HoldingPeriod.Min,
			HoldingDaysMedian: result.HoldingPeriod.Median,
			HoldingDaysMax:    result.HoldingPeriod.Max,

			ByDayOfWeek: dayOfWeekBreakdown(result.Trades),
			BySymbol:    result.SymbolBreakdown,
		},

		Costs: CostSection{
			Commission:   result.Costs.Commission.String(),
			Slippage:     result.Costs.Slippage.String(),
			MarketImpact: result.Costs.MarketImpact.String(),
			Total:        result.Costs.Total().String(),
		},

		Extended:   result.Extended,
		Benchmark:  result.Benchmark,
		Confidence: result.ConfidenceIntervals,
		MonteCarlo: monteCarlo,
	}

	if ext, err := result.Extended.Take(); err == nil {
		sheet.Risk.UlcerIndex = optional.Some(ext.UlcerIndex)
		sheet.Risk.PainIndex = optional.Some(ext.PainIndex)
		sheet.Risk.CDaR = optional.Some(ext.CDaR)
	}

	sheet.DataQualityNotes = qualityNotes(result)

	return sheet
}

func dayOfWeekBreakdown(trades []types.Trade) []DayOfWeekStats {
	if len(trades) == 0 {
		return nil
	}

	byDay := make(map[time.Weekday]*DayOfWeekStats)

	for _, t := range trades {
		day := t.EntryDate.Weekday()

		stats, ok := byDay[day]
		if !ok {
			stats = &DayOfWeekStats{Day: day}
			byDay[day] = stats
		}

		stats.Trades++

		if t.IsWin() {
			stats.Wins++
		}
	}

	var out []DayOfWeekStats

	for day := time.Sunday; day <= time.Saturday; day++ {
		stats, ok := byDay[day]
		if !ok {
			continue
		}

		stats.WinRate = float64(stats.Wins) / float64(stats.Trades)
		out = append(out, *stats)
	}

	return out
}

func qualityNotes(result *types.BacktestResult) []string {
	var notes []string

	if result.TotalTrades == 0 {
		notes = append(notes, "no trades were executed; every statistic is vacuous")

		return notes
	}

	if result.TotalTrades < smallSampleTrades {
		notes = append(notes, "fewer than 30 trades; statistical estimates have wide uncertainty")
	}

	if len(result.EquityCurve) < utils.TradingDaysPerYear/4 {
		notes = append(notes, "equity curve shorter than one quarter; annualized figures are extrapolated")
	}

	if result.ConfidenceIntervals.IsNone() {
		notes = append(notes, "bootstrap confidence intervals unavailable for this sample")
	}

	if result.Extended.IsNone() {
		notes = append(notes, "extended metrics were not computed")
	}

	return notes
}

// YAML serializes the report for export.
func (t *TearSheet) YAML() ([]byte, error) {
	out, err := yaml.Marshal(t)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeEncodeFailed, "marshal tear sheet", err)
	}

	return out, nil
}
