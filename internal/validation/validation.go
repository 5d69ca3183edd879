// Package validation answers the question a point estimate cannot: is the
// strategy's edge distinguishable from luck? It resamples the trade ledger
// (bootstrap, CPCV, Monte Carlo) and corrects significance for multiple
// testing. Randomness in the whole engine lives only here; undersized inputs
// come back as absent Options rather than errors.
package validation

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/moznion/go-optional"

	"github.com/quantfold/backtest/internal/types"
	"github.com/quantfold/backtest/internal/utils"
)

const (
	// minBootstrapTrades is the floor below which resampling a trade ledger
	// is statistically meaningless.
	minBootstrapTrades = 5

	// profitFactorCeiling caps the resampled profit factor when a draw has
	// zero losing trades, keeping the interval bounds finite.
	profitFactorCeiling = 10.0

	significanceLevel = 0.05
)

// TradeReturns maps the ledger to fractional per-trade returns.
func TradeReturns(trades []types.Trade) []float64 {
	returns := make([]float64, len(trades))
	for i, t := range trades {
		returns[i] = t.PnLPct / 100
	}

	return returns
}

// tradeSharpe is the pseudo-Sharpe over per-trade returns, annualized by
// sqrt(252/n). Zero-variance samples yield 0.
func tradeSharpe(returns []float64) float64 {
	n := len(returns)
	if n < 2 {
		return 0
	}

	std := utils.StdDev(returns)
	if std == 0 {
		return 0
	}

	return utils.Mean(returns) / std * math.Sqrt(utils.TradingDaysPerYear/float64(n))
}

type resampleStats struct {
	winRate      float64
	profitFactor float64
	sharpe       float64
}

// Bootstrap draws nSamples resamples of the trade ledger with replacement
// and returns 95% percentile intervals on win rate, profit factor, and the
// trade-return pseudo-Sharpe. Absent with fewer than 5 trades or a
// non-positive sample count. Resamples are independent, so they fan out
// across a worker pool; the percentile reduce runs on the sorted collected
// statistics and is deterministic given the draws.
func Bootstrap(trades []types.Trade, nSamples int) optional.Option[types.ConfidenceIntervals] {
	if len(trades) < minBootstrapTrades || nSamples <= 0 {
		return optional.None[types.ConfidenceIntervals]()
	}

	stats := utils.ParallelMap(nSamples, 0, func(int) resampleStats {
		return resampleOnce(trades)
	})

	winRates := make([]float64, nSamples)
	profitFactors := make([]float64, nSamples)
	sharpes := make([]float64, nSamples)

	for i, s := range stats {
		winRates[i] = s.winRate
		profitFactors[i] = s.profitFactor
		sharpes[i] = s.sharpe
	}

	sort.Float64s(winRates)
	sort.Float64s(profitFactors)
	sort.Float64s(sharpes)

	return optional.Some(types.ConfidenceIntervals{
		SharpeLower:       utils.PercentileSorted(sharpes, 2.5),
		SharpeUpper:       utils.PercentileSorted(sharpes, 97.5),
		WinRateLower:      utils.PercentileSorted(winRates, 2.5),
		WinRateUpper:      utils.PercentileSorted(winRates, 97.5),
		ProfitFactorLower: utils.PercentileSorted(profitFactors, 2.5),
		ProfitFactorUpper: utils.PercentileSorted(profitFactors, 97.5),
		Resamples:         nSamples,
	})
}

func resampleOnce(trades []types.Trade) resampleStats {
	n := len(trades)

	wins := 0
	grossProfit, grossLoss := 0.0, 0.0
	returns := make([]float64, n)

	for i := 0; i < n; i++ {
		t := trades[rand.IntN(n)]

		if t.IsWin() {
			wins++
		}

		pnl, _ := t.PnL.Float64()
		if pnl > 0 {
			grossProfit += pnl
		} else {
			grossLoss += -pnl
		}

		returns[i] = t.PnLPct / 100
	}

	var pf float64

	switch {
	case grossLoss > 0:
		pf = grossProfit / grossLoss
		if pf > profitFactorCeiling {
			pf = profitFactorCeiling
		}
	case grossProfit > 0:
		pf = profitFactorCeiling
	default:
		pf = 0
	}

	return resampleStats{
		winRate:      float64(wins) / float64(n),
		profitFactor: pf,
		sharpe:       tradeSharpe(returns),
	}
}

// SharpePValue is a two-sided test of the Sharpe ratio against zero using
// the asymptotic standard error sqrt((1 + 0.5*sharpe^2)/n). Samples under 3
// observations are never significant.
func SharpePValue(sharpe float64, n int) float64 {
	if n < 3 {
		return 1.0
	}

	se := math.Sqrt((1 + 0.5*sharpe*sharpe) / float64(n))
	z := math.Abs(sharpe) / se

	return 2 * (1 - utils.NormalCDF(z))
}

// Correct applies multiple-testing adjustment to one raw p-value. Both
// corrections are min(p*n, 1); the BH value is a deliberate single-test
// approximation since only one p-value is available here.
func Correct(rawPValue float64, numTests int) types.HypothesisCorrection {
	if numTests < 1 {
		numTests = 1
	}

	adjusted := math.Min(rawPValue*float64(numTests), 1.0)

	return types.HypothesisCorrection{
		RawPValue:        rawPValue,
		BonferroniPValue: adjusted,
		BHPValue:         adjusted,

		SignificantBonferroni: adjusted < significanceLevel,
		SignificantBH:         adjusted < significanceLevel,

		NumTests: numTests,
	}
}
