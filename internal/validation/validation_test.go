package validation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/quantfold/backtest/internal/types"
)

type ValidationTestSuite struct {
	suite.Suite
}

func TestValidationTestSuite(t *testing.T) {
	suite.Run(t, new(ValidationTestSuite))
}

// tradeLedger builds n trades cycling through the given PnL percentages,
// with an absolute PnL of pnlPct dollars per trade.
func tradeLedger(n int, pnlPcts ...float64) []types.Trade {
	entry := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

	trades := make([]types.Trade, n)
	for i := range trades {
		pct := pnlPcts[i%len(pnlPcts)]

		trades[i] = types.Trade{
			Symbol:     "AAPL",
			Direction:  types.DirectionBuy,
			EntryDate:  entry.AddDate(0, 0, i*2),
			ExitDate:   entry.AddDate(0, 0, i*2+1),
			EntryPrice: decimal.NewFromInt(100),
			ExitPrice:  decimal.NewFromFloat(100 + pct),
			Shares:     decimal.NewFromInt(1),
			PnL:        decimal.NewFromFloat(pct),
			PnLPct:     pct,
			ExitReason: types.ExitReasonSignal,
		}
	}

	return trades
}

func (s *ValidationTestSuite) TestBootstrapRequiresMinimumTrades() {
	s.True(Bootstrap(tradeLedger(4, 1, -1), 100).IsNone())
	s.True(Bootstrap(tradeLedger(30, 1, -1), 0).IsNone())
	s.True(Bootstrap(nil, 100).IsNone())
}

func (s *ValidationTestSuite) TestBootstrapIntervalsOrdered() {
	trades := tradeLedger(40, 2.0, -1.0, 1.5, -0.5, 3.0)

	ci, err := Bootstrap(trades, 500).Take()
	require.NoError(s.T(), err)

	s.LessOrEqual(ci.SharpeLower, ci.SharpeUpper)
	s.LessOrEqual(ci.WinRateLower, ci.WinRateUpper)
	s.LessOrEqual(ci.ProfitFactorLower, ci.ProfitFactorUpper)
	s.Equal(500, ci.Resamples)

	s.GreaterOrEqual(ci.WinRateLower, 0.0)
	s.LessOrEqual(ci.WinRateUpper, 1.0)
	s.GreaterOrEqual(ci.ProfitFactorLower, 0.0)
	s.LessOrEqual(ci.ProfitFactorUpper, profitFactorCeiling)
}

func (s *ValidationTestSuite) TestBootstrapAllWinnersHitsCeiling() {
	trades := tradeLedger(20, 1.0, 2.0)

	ci, err := Bootstrap(trades, 200).Take()
	require.NoError(s.T(), err)

	// Every resample has zero losses, so the profit factor pins to the
	// ceiling sentinel and the win rate to 1.
	s.Equal(profitFactorCeiling, ci.ProfitFactorLower)
	s.Equal(profitFactorCeiling, ci.ProfitFactorUpper)
	s.Equal(1.0, ci.WinRateLower)
	s.Equal(1.0, ci.WinRateUpper)
}

func (s *ValidationTestSuite) TestBootstrapMoreSamplesNarrowOnAverage() {
	trades := tradeLedger(60, 2.0, -1.5, 1.0, -0.5)

	widthAt := func(samples int) float64 {
		total := 0.0

		for i := 0; i < 5; i++ {
			ci, err := Bootstrap(trades, samples).Take()
			require.NoError(s.T(), err)

			total += ci.SharpeUpper - ci.SharpeLower
		}

		return total / 5
	}

	// Percentile estimates stabilize with more resamples; allow slack since
	// the draws are not seeded.
	s.InDelta(widthAt(5000), widthAt(100), widthAt(5000)*0.5)
}

func (s *ValidationTestSuite) TestSharpePValue() {
	s.Equal(1.0, SharpePValue(3.0, 2))

	strong := SharpePValue(3.0, 252)
	weak := SharpePValue(0.1, 252)

	s.Less(strong, 0.001)
	s.Greater(weak, 0.05)
	s.Less(strong, weak)

	// Sign does not matter for a two-sided test.
	s.InDelta(SharpePValue(-1.5, 100), SharpePValue(1.5, 100), 1e-12)
}

func (s *ValidationTestSuite) TestCorrect() {
	c := Correct(0.01, 3)
	s.InDelta(0.03, c.BonferroniPValue, 1e-12)
	s.Equal(c.BonferroniPValue, c.BHPValue)
	s.True(c.SignificantBonferroni)
	s.True(c.SignificantBH)

	c = Correct(0.04, 10)
	s.InDelta(0.4, c.BonferroniPValue, 1e-12)
	s.False(c.SignificantBonferroni)

	c = Correct(0.9, 5)
	s.Equal(1.0, c.BonferroniPValue)

	c = Correct(0.2, 0)
	s.Equal(1, c.NumTests)
	s.InDelta(0.2, c.BonferroniPValue, 1e-12)
}

func (s *ValidationTestSuite) TestCPCVPreconditions() {
	trades := tradeLedger(40, 1.0, -0.5)

	s.True(CPCV(tradeLedger(19, 1, -1), 5, 2, 50, 0).IsNone(), "too few trades")
	s.True(CPCV(trades, 2, 1, 50, 0).IsNone(), "n_splits < 3")
	s.True(CPCV(trades, 5, 5, 50, 0).IsNone(), "test_size >= n_splits")
	s.True(CPCV(trades, 5, 0, 50, 0).IsNone(), "test_size < 1")
	s.True(CPCV(trades, 15, 2, 50, 0).IsNone(), "chunks under 3 trades")
}

func (s *ValidationTestSuite) TestCPCVEvaluatesAllCombinations() {
	trades := tradeLedger(50, 2.0, -1.0, 1.5)

	result, err := CPCV(trades, 5, 2, 50, 0).Take()
	require.NoError(s.T(), err)

	// C(5,2) = 10 combinations, all usable without an embargo.
	s.Equal(10, result.Combinations)
	s.GreaterOrEqual(result.ProbabilityOfLoss, 0.0)
	s.LessOrEqual(result.ProbabilityOfLoss, 1.0)
	s.True(result.DeflatedSharpe.IsSome())
}

func (s *ValidationTestSuite) TestCPCVRespectsMaxCombinations() {
	trades := tradeLedger(60, 2.0, -1.0)

	result, err := CPCV(trades, 6, 2, 4, 0).Take()
	require.NoError(s.T(), err)
	s.Equal(4, result.Combinations)
}

func (s *ValidationTestSuite) TestCPCVEmbargoShrinksTestSets() {
	trades := tradeLedger(30, 1.0, -0.5)

	// Chunks of 6; an embargo of 3 wipes every test chunk out entirely.
	s.True(CPCV(trades, 5, 2, 50, 3).IsNone())

	// An embargo of 1 leaves 4 trades per chunk, still usable.
	result, err := CPCV(trades, 5, 2, 50, 1).Take()
	require.NoError(s.T(), err)
	s.Equal(10, result.Combinations)
}

func (s *ValidationTestSuite) TestCPCVConsistentLosses() {
	trades := tradeLedger(40, -1.0, -2.0)

	result, err := CPCV(trades, 4, 1, 50, 0).Take()
	require.NoError(s.T(), err)
	s.Equal(1.0, result.ProbabilityOfLoss)
	s.Negative(result.MeanOOSSharpe)
}

func (s *ValidationTestSuite) TestCombinations() {
	s.Len(combinations(5, 2, 100), 10)
	s.Len(combinations(5, 2, 3), 3)
	s.Empty(combinations(4, 2, 0))

	first := combinations(4, 2, 100)[0]
	s.Equal([]int{0, 1}, first)
}

func (s *ValidationTestSuite) curveFrom(values ...float64) []types.EquityPoint {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

	curve := make([]types.EquityPoint, len(values))
	peak := values[0]

	for i, v := range values {
		if v > peak {
			peak = v
		}

		curve[i] = types.EquityPoint{
			Timestamp:   start.AddDate(0, 0, i),
			Equity:      decimal.NewFromFloat(v),
			DrawdownPct: (peak - v) / peak * 100,
		}
	}

	return curve
}

func (s *ValidationTestSuite) TestMonteCarloTooShort() {
	s.True(MonteCarlo(s.curveFrom(100, 101, 102), 500, 50).IsNone())

	values := make([]float64, 30)
	for i := range values {
		values[i] = 100 + float64(i)
	}

	s.True(MonteCarlo(s.curveFrom(values...), 0, 50).IsNone())
}

func (s *ValidationTestSuite) TestMonteCarloAllGains() {
	values := make([]float64, 30)
	values[0] = 100

	for i := 1; i < len(values); i++ {
		values[i] = values[i-1] * 1.01
	}

	result, err := MonteCarlo(s.curveFrom(values...), 300, 50).Take()
	require.NoError(s.T(), err)

	// Every daily return is +1%, so every resampled path is profitable and
	// never draws down.
	s.Equal(1.0, result.ProbabilityOfProfit)
	s.Zero(result.ProbabilityOfRuin)
	s.Equal(300, result.Paths)

	p5 := result.FinalReturnPercentiles["p5"]
	p95 := result.FinalReturnPercentiles["p95"]
	s.Positive(p5)
	s.LessOrEqual(p5, p95)
}

func (s *ValidationTestSuite) TestMonteCarloPercentilesOrdered() {
	values := make([]float64, 60)
	values[0] = 100

	for i := 1; i < len(values); i++ {
		growth := 1.015
		if i%3 == 0 {
			growth = 0.985
		}

		values[i] = values[i-1] * growth
	}

	result, err := MonteCarlo(s.curveFrom(values...), 500, 50).Take()
	require.NoError(s.T(), err)

	keys := []string{"p5", "p25", "p50", "p75", "p95"}
	for i := 1; i < len(keys); i++ {
		s.LessOrEqual(result.FinalReturnPercentiles[keys[i-1]], result.FinalReturnPercentiles[keys[i]])
	}
}
