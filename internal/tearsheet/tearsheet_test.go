package tearsheet

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gopkg.in/yaml.v3"

	"github.com/quantfold/backtest/internal/types"
)

type TearSheetTestSuite struct {
	suite.Suite
}

func TestTearSheetTestSuite(t *testing.T) {
	suite.Run(t, new(TearSheetTestSuite))
}

func (s *TearSheetTestSuite) sampleResult() *types.BacktestResult {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

	cfg := types.DefaultConfig()
	cfg.StrategyName = "momentum-demo"
	cfg.Symbols = []string{"AAPL"}
	cfg.StartDate = start
	cfg.EndDate = start.AddDate(0, 6, 0)

	trades := []types.Trade{
		{
			Symbol:     "AAPL",
			Direction:  types.DirectionBuy,
			EntryDate:  start,                  // Monday
			ExitDate:   start.AddDate(0, 0, 3), // Thursday
			PnL:        decimal.NewFromInt(500),
			PnLPct:     5,
			ExitReason: types.ExitReasonTakeProfit,
		},
		{
			Symbol:     "AAPL",
			Direction:  types.DirectionBuy,
			EntryDate:  start.AddDate(0, 0, 7), // Monday
			ExitDate:   start.AddDate(0, 0, 9),
			PnL:        decimal.NewFromInt(-200),
			PnLPct:     -2,
			ExitReason: types.ExitReasonStopLoss,
		},
		{
			Symbol:     "AAPL",
			Direction:  types.DirectionBuy,
			EntryDate:  start.AddDate(0, 0, 15), // Tuesday
			ExitDate:   start.AddDate(0, 0, 20),
			PnL:        decimal.NewFromInt(300),
			PnLPct:     3,
			ExitReason: types.ExitReasonSignal,
		},
	}

	curve := make([]types.EquityPoint, 30)
	for i := range curve {
		curve[i] = types.EquityPoint{
			Timestamp: start.AddDate(0, 0, i),
			Equity:    decimal.NewFromInt(int64(100_000 + i*20)),
		}
	}

	return &types.BacktestResult{
		ID:        "bt-1",
		Config:    cfg,
		CreatedAt: time.Now().UTC(),

		InitialCapital: decimal.NewFromInt(100_000),
		FinalCapital:   decimal.NewFromInt(100_600),

		TotalReturnPct:      0.6,
		AnnualizedReturnPct: 5.2,

		TotalTrades:   3,
		WinningTrades: 2,
		LosingTrades:  1,
		WinRate:       2.0 / 3.0,
		ProfitFactor:  types.Ratio(4),

		SharpeRatio:  1.1,
		SortinoRatio: types.Ratio(math.Inf(1)),
		CalmarRatio:  types.Ratio(2.5),

		MaxDrawdownPct: 1.8,

		HoldingPeriod: types.HoldingPeriodStats{Min: 2, Max: 5, Mean: 3.33, Median: 3},
		Costs: types.CostSummary{
			Commission:   decimal.NewFromFloat(30.5),
			Slippage:     decimal.NewFromFloat(15.25),
			MarketImpact: decimal.NewFromFloat(4.25),
		},

		EquityCurve: curve,
		Trades:      trades,
	}
}

func (s *TearSheetTestSuite) TestBuildSections() {
	result := s.sampleResult()

	sheet := Build(result, optional.None[types.MonteCarloResult]())

	s.Equal("bt-1", sheet.BacktestID)
	s.Equal("momentum-demo", sheet.Summary.StrategyName)
	s.Equal("100000", sheet.Summary.InitialCapital)
	s.Equal(3, sheet.Trades.TotalTrades)
	s.Equal(2, sheet.Trades.HoldingDaysMin)
	s.Equal("50", sheet.Costs.Total)

	// No extended metrics were attached.
	s.True(sheet.Risk.UlcerIndex.IsNone())
	s.True(sheet.Extended.IsNone())
}

func (s *TearSheetTestSuite) TestDayOfWeekBreakdown() {
	sheet := Build(s.sampleResult(), optional.None[types.MonteCarloResult]())

	byDay := sheet.Trades.ByDayOfWeek
	require.Len(s.T(), byDay, 2)

	// Ordered Sunday..Saturday: Monday first, then Tuesday.
	s.Equal(time.Monday, byDay[0].Day)
	s.Equal(2, byDay[0].Trades)
	s.Equal(1, byDay[0].Wins)
	s.InDelta(0.5, byDay[0].WinRate, 1e-9)

	s.Equal(time.Tuesday, byDay[1].Day)
	s.Equal(1, byDay[1].Trades)
	s.InDelta(1.0, byDay[1].WinRate, 1e-9)
}

func (s *TearSheetTestSuite) TestQualityNotes() {
	result := s.sampleResult()

	sheet := Build(result, optional.None[types.MonteCarloResult]())
	s.Contains(sheet.DataQualityNotes, "fewer than 30 trades; statistical estimates have wide uncertainty")
	s.Contains(sheet.DataQualityNotes, "equity curve shorter than one quarter; annualized figures are extrapolated")

	result.Trades = nil
	result.TotalTrades = 0

	sheet = Build(result, optional.None[types.MonteCarloResult]())
	require.Len(s.T(), sheet.DataQualityNotes, 1)
	s.Contains(sheet.DataQualityNotes[0], "no trades")
}

func (s *TearSheetTestSuite) TestExtendedMetricsLiftedIntoRisk() {
	result := s.sampleResult()
	result.Extended = optional.Some(types.ExtendedMetrics{
		UlcerIndex: 0.42,
		PainIndex:  0.18,
		CDaR:       2.4,
	})

	sheet := Build(result, optional.None[types.MonteCarloResult]())

	ulcer, err := sheet.Risk.UlcerIndex.Take()
	require.NoError(s.T(), err)
	s.InDelta(0.42, ulcer, 1e-12)
}

func (s *TearSheetTestSuite) TestYAMLExport() {
	sheet := Build(s.sampleResult(), optional.None[types.MonteCarloResult]())

	out, err := sheet.YAML()
	require.NoError(s.T(), err)

	var decoded map[string]any
	require.NoError(s.T(), yaml.Unmarshal(out, &decoded))

	s.Contains(decoded, "summary")
	s.Contains(decoded, "risk")
	s.Contains(decoded, "trades")
	s.Contains(decoded, "costs")
}

func (s *TearSheetTestSuite) TestRenderWritesEverySection() {
	result := s.sampleResult()
	result.ConfidenceIntervals = optional.Some(types.ConfidenceIntervals{
		SharpeLower: 0.2, SharpeUpper: 1.9,
		WinRateLower: 0.4, WinRateUpper: 0.9,
		ProfitFactorLower: 1.1, ProfitFactorUpper: 6.0,
		Resamples: 1000,
	})

	mc := optional.Some(types.MonteCarloResult{
		Paths: 500,
		FinalReturnPercentiles: map[string]float64{
			"p5": -2, "p25": 1, "p50": 3, "p75": 5, "p95": 9,
		},
		ProbabilityOfProfit: 0.8,
		ProbabilityOfRuin:   0.01,
		RuinThresholdPct:    50,
	})

	var buf bytes.Buffer

	Build(result, mc).Render(&buf)

	out := buf.String()
	s.Contains(out, "STRATEGY TEAR SHEET: momentum-demo")
	s.Contains(out, "RISK")
	s.Contains(out, "TRADES")
	s.Contains(out, "COSTS")
	s.Contains(out, "BOOTSTRAP 95% CONFIDENCE")
	s.Contains(out, "MONTE CARLO")
	s.Contains(out, "BY ENTRY WEEKDAY")
	s.Contains(out, "inf") // Sortino sentinel renders as text
}
