package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/quantfold/backtest/internal/types"
)

type MetricsTestSuite struct {
	suite.Suite

	start time.Time
}

func TestMetricsTestSuite(t *testing.T) {
	suite.Run(t, new(MetricsTestSuite))
}

func (s *MetricsTestSuite) SetupTest() {
	s.start = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
}

// curveFrom builds an equity curve from raw equity values, one point per day,
// with drawdown computed against the running peak.
func (s *MetricsTestSuite) curveFrom(values ...float64) []types.EquityPoint {
	curve := make([]types.EquityPoint, len(values))
	peak := values[0]

	for i, v := range values {
		if v > peak {
			peak = v
		}

		curve[i] = types.EquityPoint{
			Timestamp:   s.start.AddDate(0, 0, i),
			Equity:      decimal.NewFromFloat(v),
			DrawdownPct: (peak - v) / peak * 100,
		}
	}

	return curve
}

func (s *MetricsTestSuite) TestMonotonicCurveHasNoDrawdownEvents() {
	curve := s.curveFrom(100, 101, 102, 103, 104, 105)

	events := DrawdownEvents(curve, 10)
	s.Empty(events)
}

func (s *MetricsTestSuite) TestSingleDipProducesOneClosedEvent() {
	curve := s.curveFrom(100, 105, 95, 90, 100, 110)

	events := DrawdownEvents(curve, 10)
	require.Len(s.T(), events, 1)

	e := events[0]
	s.True(e.RecoveryDate.IsSome())
	s.Equal(s.start.AddDate(0, 0, 1), e.StartDate)
	s.Equal(s.start.AddDate(0, 0, 3), e.TroughDate)

	recovery, err := e.RecoveryDate.Take()
	require.NoError(s.T(), err)
	s.Equal(s.start.AddDate(0, 0, 5), recovery)

	// Peak 105, trough 90.
	s.InDelta((105.0-90.0)/105.0*100, e.DepthPct, 1e-9)
	s.Equal(4, e.LengthDays)
}

func (s *MetricsTestSuite) TestUnresolvedDrawdownKeptWithoutRecovery() {
	curve := s.curveFrom(100, 110, 100, 95, 96)

	events := DrawdownEvents(curve, 10)
	require.Len(s.T(), events, 1)
	s.True(events[0].RecoveryDate.IsNone())
}

func (s *MetricsTestSuite) TestDrawdownEventsRankedByDepth() {
	// Shallow dip (2%), recovery, deep dip (20%), recovery.
	curve := s.curveFrom(100, 98, 101, 102, 81.6, 103, 104)

	events := DrawdownEvents(curve, 1)
	require.Len(s.T(), events, 1)
	s.InDelta(20.0, events[0].DepthPct, 0.1)
}

func (s *MetricsTestSuite) TestMonthlyReturnsChainLink() {
	curve := []types.EquityPoint{
		{Timestamp: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), Equity: decimal.NewFromInt(100)},
		{Timestamp: time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC), Equity: decimal.NewFromInt(110)},
		{Timestamp: time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), Equity: decimal.NewFromInt(110)},
		{Timestamp: time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC), Equity: decimal.NewFromInt(99)},
	}

	months := MonthlyReturns(curve)
	require.Len(s.T(), months, 2)

	s.Equal(2023, months[0].Year)
	s.Equal(time.January, months[0].Month)
	s.InDelta(10.0, months[0].ReturnPct, 1e-9)

	s.Equal(time.February, months[1].Month)
	s.InDelta(-10.0, months[1].ReturnPct, 1e-9)

	// Chain-linked product recovers the full-period return.
	total := (1 + months[0].ReturnPct/100) * (1 + months[1].ReturnPct/100)
	s.InDelta(0.99, total, 1e-9)
}

func (s *MetricsTestSuite) TestRollingSharpeWindowAndOrder() {
	values := make([]float64, 70)
	values[0] = 100

	for i := 1; i < len(values); i++ {
		// Alternating daily gains, both well above the risk-free rate.
		growth := 1.002
		if i%2 == 0 {
			growth = 1.0005
		}

		values[i] = values[i-1] * growth
	}

	points := RollingSharpe(s.curveFrom(values...), 63)

	// 69 returns, window 63: 7 windows.
	require.Len(s.T(), points, 7)

	for i := 1; i < len(points); i++ {
		s.True(points[i].Timestamp.After(points[i-1].Timestamp))
	}

	for _, p := range points {
		s.Positive(p.Sharpe)
	}
}

func (s *MetricsTestSuite) TestRollingSharpeTooShort() {
	s.Nil(RollingSharpe(s.curveFrom(100, 101, 102), 63))
}

func (s *MetricsTestSuite) TestOmegaRatioSentinels() {
	allGains, err := OmegaRatio([]float64{0.01, 0.02}, 0).Take()
	require.NoError(s.T(), err)
	s.True(math.IsInf(allGains.Float64(), 1))

	s.True(OmegaRatio(nil, 0).IsNone())
	s.True(OmegaRatio([]float64{0, 0}, 0).IsNone())

	mixed, err := OmegaRatio([]float64{0.02, -0.01}, 0).Take()
	require.NoError(s.T(), err)
	s.InDelta(2.0, mixed.Float64(), 1e-9)
}

func (s *MetricsTestSuite) TestTailRatioNeedsTwentyPoints() {
	short := make([]float64, 19)
	s.True(TailRatio(short).IsNone())

	returns := make([]float64, 100)
	for i := range returns {
		returns[i] = float64(i%21-10) / 1000 // symmetric in [-0.01, 0.01]
	}

	tr, err := TailRatio(returns).Take()
	require.NoError(s.T(), err)
	s.InDelta(1.0, tr, 0.05)
}

func (s *MetricsTestSuite) TestBetaRequiresOverlapAndVariance() {
	s.True(Beta([]float64{0.01, 0.02}, []float64{0.01, 0.02}).IsNone())
	s.True(Beta([]float64{0.01, 0.02, 0.03}, []float64{0.01, 0.01, 0.01}).IsNone())

	// Strategy moves exactly twice the benchmark.
	bench := []float64{0.01, -0.02, 0.015, 0.005}
	strat := make([]float64, len(bench))

	for i, b := range bench {
		strat[i] = 2 * b
	}

	beta, err := Beta(strat, bench).Take()
	require.NoError(s.T(), err)
	s.InDelta(2.0, beta, 1e-9)
}

func (s *MetricsTestSuite) TestSkewnessAndKurtosis() {
	symmetric := []float64{-0.02, -0.01, 0, 0.01, 0.02}

	skew, err := Skewness(symmetric).Take()
	require.NoError(s.T(), err)
	s.InDelta(0.0, skew, 1e-9)

	s.True(Skewness([]float64{0.01, 0.02}).IsNone())
	s.True(ExcessKurtosis([]float64{0.01, 0.02, 0.03}).IsNone())

	kurt, err := ExcessKurtosis(symmetric).Take()
	require.NoError(s.T(), err)
	s.Less(kurt, 0.0) // uniform-ish sample is platykurtic
}

func (s *MetricsTestSuite) TestComputeFlatCurve() {
	values := make([]float64, 40)
	for i := range values {
		values[i] = 100
	}

	m := Compute(s.curveFrom(values...), nil, 0)

	s.Empty(m.DrawdownEvents)
	s.Zero(m.CDaR)
	s.Zero(m.UlcerIndex)
	s.Zero(m.PainIndex)
	s.True(m.OmegaRatio.IsNone())
	s.True(m.GainToPainRatio.IsNone())
	s.True(m.Beta.IsNone())
	s.True(m.BurkeRatio.IsNone())
}

func (s *MetricsTestSuite) TestCompareAgainstBenchmark() {
	curve := s.curveFrom(100, 102, 101, 104, 103, 106)
	bench := []float64{0.01, -0.005, 0.02, -0.01, 0.02}

	cmp, err := Compare(curve, bench, 6.0).Take()
	require.NoError(s.T(), err)

	benchTotal := 1.0
	for _, r := range bench {
		benchTotal *= 1 + r
	}

	s.InDelta((benchTotal-1)*100, cmp.BenchmarkReturnPct, 1e-9)
	s.InDelta(6.0-cmp.BenchmarkReturnPct, cmp.ExcessReturnPct, 1e-9)
	s.True(cmp.Beta.IsSome())
	s.True(cmp.Correlation.IsSome())
	s.True(cmp.TrackingError.IsSome())

	assert.True(s.T(), Compare(curve, nil, 6.0).IsNone())
}
