package store

import (
	"math"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/quantfold/backtest/internal/logger"
	"github.com/quantfold/backtest/internal/types"
	"github.com/quantfold/backtest/pkg/errors"
)

type StoreTestSuite struct {
	suite.Suite

	store *Store
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) SetupTest() {
	store, err := Open(":memory:", logger.NewTestLogger())
	require.NoError(s.T(), err)

	s.store = store
}

func (s *StoreTestSuite) TearDownTest() {
	s.store.Close()
}

func (s *StoreTestSuite) sampleResult(id, strategy string, createdAt time.Time) *types.BacktestResult {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

	cfg := types.DefaultConfig()
	cfg.StrategyName = strategy
	cfg.Symbols = []string{"AAPL"}
	cfg.StartDate = start
	cfg.EndDate = start.AddDate(0, 3, 0)

	return &types.BacktestResult{
		ID:        id,
		Config:    cfg,
		CreatedAt: createdAt,

		InitialCapital: decimal.NewFromInt(100_000),
		FinalCapital:   decimal.NewFromInt(103_000),
		TotalReturnPct: 3.0,
		TotalTrades:    2,
		WinningTrades:  2,
		WinRate:        1.0,
		ProfitFactor:   types.Ratio(math.Inf(1)),
		SharpeRatio:    1.4,

		EquityCurve: []types.EquityPoint{
			{Timestamp: start, Equity: decimal.NewFromInt(100_000)},
			{Timestamp: start.AddDate(0, 0, 1), Equity: decimal.NewFromInt(103_000)},
		},
		Trades: []types.Trade{
			{
				Symbol:     "AAPL",
				Direction:  types.DirectionBuy,
				EntryDate:  start,
				ExitDate:   start.AddDate(0, 0, 1),
				EntryPrice: decimal.NewFromInt(100),
				ExitPrice:  decimal.NewFromInt(103),
				Shares:     decimal.NewFromInt(1000),
				PnL:        decimal.NewFromInt(3000),
				PnLPct:     3,
				ExitReason: types.ExitReasonEndOfPeriod,
			},
		},
	}
}

func (s *StoreTestSuite) TestSaveLoadRoundTrip() {
	created := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	original := s.sampleResult("bt-1", "momentum", created)

	require.NoError(s.T(), s.store.Save(original))

	loaded, err := s.store.Load("bt-1")
	require.NoError(s.T(), err)

	s.Equal(original.ID, loaded.ID)
	s.Equal(original.Config.StrategyName, loaded.Config.StrategyName)

	// Persistence is lossless for the trade ledger and equity curve.
	require.Len(s.T(), loaded.Trades, len(original.Trades))

	for i, trade := range original.Trades {
		s.True(trade.PnL.Equal(loaded.Trades[i].PnL))
		s.True(trade.EntryPrice.Equal(loaded.Trades[i].EntryPrice))
		s.Equal(trade.ExitReason, loaded.Trades[i].ExitReason)
	}

	require.Len(s.T(), loaded.EquityCurve, len(original.EquityCurve))

	for i, point := range original.EquityCurve {
		s.True(point.Equity.Equal(loaded.EquityCurve[i].Equity))
		s.True(point.Timestamp.Equal(loaded.EquityCurve[i].Timestamp))
	}

	// The infinite profit factor survives the JSON document.
	s.True(math.IsInf(loaded.ProfitFactor.Float64(), 1))
}

func (s *StoreTestSuite) TestLoadMissing() {
	_, err := s.store.Load("does-not-exist")
	s.True(errors.HasCode(err, errors.ErrCodeResultNotFound))
}

func (s *StoreTestSuite) TestListFilters() {
	base := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(s.T(), s.store.Save(s.sampleResult("bt-1", "momentum", base)))
	require.NoError(s.T(), s.store.Save(s.sampleResult("bt-2", "momentum", base.AddDate(0, 0, 10))))
	require.NoError(s.T(), s.store.Save(s.sampleResult("bt-3", "meanrev", base.AddDate(0, 0, 20))))

	all, err := s.store.List(Filter{})
	require.NoError(s.T(), err)
	require.Len(s.T(), all, 3)

	// Newest first.
	s.Equal("bt-3", all[0].ID)

	momentum, err := s.store.List(Filter{StrategyName: optional.Some("momentum")})
	require.NoError(s.T(), err)
	s.Len(momentum, 2)

	window, err := s.store.List(Filter{
		From: optional.Some(base.AddDate(0, 0, 5)),
		To:   optional.Some(base.AddDate(0, 0, 15)),
	})
	require.NoError(s.T(), err)
	require.Len(s.T(), window, 1)
	s.Equal("bt-2", window[0].ID)
}

func (s *StoreTestSuite) TestRecordHealthSwallowsFailures() {
	snapshot := types.HealthSnapshot{
		StrategyName:  "momentum",
		Timestamp:     time.Now().UTC(),
		RollingSharpe: 1.2,
		WinRate:       0.6,
		TradeCount:    42,
	}

	s.store.RecordHealth(snapshot)

	// Closing the database makes the write fail; the call must not panic or
	// surface an error.
	s.store.Close()
	s.NotPanics(func() { s.store.RecordHealth(snapshot) })
}
