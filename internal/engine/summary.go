package engine

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quantfold/backtest/internal/types"
	"github.com/quantfold/backtest/internal/utils"
)

const (
	tradingDaysPerYear = 252
	// dailyRiskFree is the daily risk-free rate used in Sharpe-style ratios.
	dailyRiskFree = 0.02 / tradingDaysPerYear
)

// buildResult assembles the summary statistics from a finished simulation.
func buildResult(cfg types.BacktestConfig, state *simState) *types.BacktestResult {
	result := &types.BacktestResult{
		ID:             uuid.New().String(),
		Config:         cfg,
		CreatedAt:      time.Now().UTC(),
		InitialCapital: cfg.InitialCapital,
		FinalCapital:   state.cash,
		EquityCurve:    state.equityCurve,
		Trades:         state.trades,
		Costs:          state.costs,
	}

	if cfg.InitialCapital.IsPositive() {
		result.TotalReturnPct, _ = state.cash.Sub(cfg.InitialCapital).
			Div(cfg.InitialCapital).Mul(decimal.NewFromInt(100)).Float64()
	}

	bars := len(state.equityCurve)
	if bars > 0 {
		growth := 1 + result.TotalReturnPct/100
		if growth > 0 {
			result.AnnualizedReturnPct = (math.Pow(growth, tradingDaysPerYear/float64(bars)) - 1) * 100
		} else {
			result.AnnualizedReturnPct = -100
		}
	}

	summarizeTrades(result, state.trades)
	summarizeRisk(result, state.equityCurve)
	summarizeHoldingPeriods(result, state.trades)
	result.SymbolBreakdown = symbolBreakdown(state.trades)

	return result
}

func summarizeTrades(result *types.BacktestResult, trades []types.Trade) {
	grossProfit := decimal.Zero
	grossLoss := decimal.Zero

	currentWins, currentLosses := 0, 0

	for _, trade := range trades {
		result.TotalTrades++

		if trade.IsWin() {
			result.WinningTrades++
			grossProfit = grossProfit.Add(trade.PnL)

			currentWins++
			currentLosses = 0
		} else {
			result.LosingTrades++
			grossLoss = grossLoss.Add(trade.PnL.Abs())

			currentLosses++
			currentWins = 0
		}

		if currentWins > result.MaxConsecutiveWins {
			result.MaxConsecutiveWins = currentWins
		}

		if currentLosses > result.MaxConsecutiveLosses {
			result.MaxConsecutiveLosses = currentLosses
		}
	}

	if result.TotalTrades > 0 {
		result.WinRate = float64(result.WinningTrades) / float64(result.TotalTrades)
	}

	switch {
	case grossLoss.IsPositive():
		pf, _ := grossProfit.Div(grossLoss).Float64()
		result.ProfitFactor = types.Ratio(pf)
	case grossProfit.IsPositive():
		result.ProfitFactor = types.Ratio(math.Inf(1))
	default:
		result.ProfitFactor = 0
	}
}

func summarizeRisk(result *types.BacktestResult, curve []types.EquityPoint) {
	returns := types.DailyReturns(curve)

	maxDrawdown := 0.0
	for _, point := range curve {
		if point.DrawdownPct > maxDrawdown {
			maxDrawdown = point.DrawdownPct
		}
	}

	result.MaxDrawdownPct = maxDrawdown
	result.SharpeRatio = utils.AnnualizedSharpe(returns, dailyRiskFree)

	// Sortino: downside deviation only.
	downside := make([]float64, 0, len(returns))

	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}

	meanExcess := utils.Mean(returns) - dailyRiskFree

	switch {
	case len(downside) > 1 && utils.StdDev(downside) > 0:
		result.SortinoRatio = types.Ratio(meanExcess / utils.StdDev(downside) * math.Sqrt(tradingDaysPerYear))
	case meanExcess > 0:
		result.SortinoRatio = types.Ratio(math.Inf(1))
	default:
		result.SortinoRatio = 0
	}

	switch {
	case maxDrawdown > 0:
		result.CalmarRatio = types.Ratio(result.AnnualizedReturnPct / maxDrawdown)
	case result.AnnualizedReturnPct > 0:
		result.CalmarRatio = types.Ratio(math.Inf(1))
	default:
		result.CalmarRatio = 0
	}
}

func summarizeHoldingPeriods(result *types.BacktestResult, trades []types.Trade) {
	if len(trades) == 0 {
		return
	}

	days := make([]float64, len(trades))
	minDays, maxDays := trades[0].HoldingDays, trades[0].HoldingDays

	for i, trade := range trades {
		days[i] = float64(trade.HoldingDays)

		if trade.HoldingDays < minDays {
			minDays = trade.HoldingDays
		}

		if trade.HoldingDays > maxDays {
			maxDays = trade.HoldingDays
		}
	}

	result.HoldingPeriod = types.HoldingPeriodStats{
		Min:    minDays,
		Max:    maxDays,
		Mean:   utils.Mean(days),
		Median: utils.Median(days),
	}
}

func symbolBreakdown(trades []types.Trade) map[string]types.SymbolStats {
	if len(trades) == 0 {
		return nil
	}

	breakdown := make(map[string]types.SymbolStats)

	for _, trade := range trades {
		stats := breakdown[trade.Symbol]
		stats.Trades++

		if trade.IsWin() {
			stats.Wins++
		}

		stats.TotalPnL = stats.TotalPnL.Add(trade.PnL)
		breakdown[trade.Symbol] = stats
	}

	for symbol, stats := range breakdown {
		stats.WinRate = float64(stats.Wins) / float64(stats.Trades)
		breakdown[symbol] = stats
	}

	return breakdown
}

