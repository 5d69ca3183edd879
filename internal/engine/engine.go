// Package engine implements the backtest simulation core: it replays a
// chronological signal stream through a simulated account over historical
// bars, applying commission, slippage, and market-impact costs, and produces
// a trade ledger plus an equity curve.
package engine

import (
	"sort"
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfold/backtest/internal/logger"
	"github.com/quantfold/backtest/internal/types"
	"github.com/quantfold/backtest/pkg/errors"
)

// minBarsRequired is the smallest date span that can evaluate any signal.
const minBarsRequired = 2

// OnBarCallback reports progress after each simulated bar.
type OnBarCallback func(current int, total int)

// Engine runs backtest simulations. It holds no per-run state; every Run
// call owns an independent simState and impact tracker, so concurrent runs
// (e.g. competing grid-search trials) never observe each other.
type Engine struct {
	log *logger.Logger
}

// New creates a simulation engine.
func New(log *logger.Logger) *Engine {
	return &Engine{log: log}
}

// Run simulates the signal stream against the bar history and returns the
// full backtest result. Identical inputs always produce identical output;
// the engine uses no randomness.
func (e *Engine) Run(
	cfg types.BacktestConfig,
	barsBySymbol map[string][]types.HistoricalBar,
	signals []types.Signal,
	onBar optional.Option[OnBarCallback],
) (*types.BacktestResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	inRange, clock, err := e.prepareBars(cfg, barsBySymbol)
	if err != nil {
		return nil, err
	}

	signalsByDate := groupSignalsByDate(cfg, signals)

	state := newSimState(cfg)

	rebalanceEvery, rebalanceErr := cfg.RebalanceIntervalDays.Take()
	rebalance := rebalanceErr == nil && rebalanceEvery > 0

	callback, callbackErr := onBar.Take()

	for barIndex, date := range clock {
		closes := make(map[string]decimal.Decimal, len(cfg.Symbols))

		for _, symbol := range cfg.Symbols {
			bar, ok := inRange.barAt(symbol, date)
			if !ok {
				continue
			}

			closes[symbol] = bar.Close

			// Feed the impact model's lookback before any fill today so
			// participation is measured against history through this bar.
			state.closeHistory[symbol] = append(state.closeHistory[symbol], bar.Close.InexactFloat64())
			state.volumeHistory[symbol] = append(state.volumeHistory[symbol], bar.Volume)
		}

		// 1. Stop-loss / take-profit checks on open positions.
		e.checkExits(state, date, closes)

		// 2. Signals dated on this bar.
		for _, sig := range signalsByDate[dateKey(date)] {
			px, ok := closes[sig.Symbol]
			if !ok {
				continue
			}

			e.applySignal(state, sig, px, date, closes)
		}

		// 3. Periodic rebalancing toward target weights.
		if rebalance && barIndex > 0 && barIndex%rebalanceEvery == 0 {
			e.rebalance(state, date, closes)
		}

		// 4. Mark to market and decay accumulated price pressure.
		state.markEquity(date, closes)
		state.tracker.Decay(cfg.Impact.DecayRate)

		if callbackErr == nil {
			callback(barIndex+1, len(clock))
		}
	}

	// Force-liquidate whatever is still open at the last available price,
	// then restate the final equity point so it reflects liquidation costs.
	e.liquidate(state, inRange, clock[len(clock)-1])

	if n := len(state.equityCurve); n > 0 {
		final := state.cash

		if final.GreaterThan(state.peakEquity) {
			state.peakEquity = final
		}

		drawdown := 0.0
		if state.peakEquity.IsPositive() {
			drawdown, _ = state.peakEquity.Sub(final).Div(state.peakEquity).Mul(decimal.NewFromInt(100)).Float64()
		}

		if drawdown < 0 {
			drawdown = 0
		}

		state.equityCurve[n-1].Equity = final
		state.equityCurve[n-1].DrawdownPct = drawdown
	}

	result := buildResult(cfg, state)

	e.log.Debug("backtest run complete",
		zap.String("strategy", cfg.StrategyName),
		zap.Int("bars", len(clock)),
		zap.Int("trades", result.TotalTrades),
		zap.Float64("total_return_pct", result.TotalReturnPct),
	)

	return result, nil
}

// symbolBars is the per-symbol bar history restricted to the configured
// range, with a date index for clock lookups.
type symbolBars struct {
	bars  map[string][]types.HistoricalBar
	index map[string]map[string]int
}

func (sb *symbolBars) barAt(symbol string, date time.Time) (types.HistoricalBar, bool) {
	idx, ok := sb.index[symbol][dateKey(date)]
	if !ok {
		return types.HistoricalBar{}, false
	}

	return sb.bars[symbol][idx], true
}

// lastBarUpTo returns the most recent bar of symbol at or before date.
func (sb *symbolBars) lastBarUpTo(symbol string, date time.Time) (types.HistoricalBar, bool) {
	bars := sb.bars[symbol]

	for i := len(bars) - 1; i >= 0; i-- {
		if !bars[i].Date.After(date) {
			return bars[i], true
		}
	}

	return types.HistoricalBar{}, false
}

func (e *Engine) prepareBars(cfg types.BacktestConfig, barsBySymbol map[string][]types.HistoricalBar) (*symbolBars, []time.Time, error) {
	inRange := &symbolBars{
		bars:  make(map[string][]types.HistoricalBar, len(cfg.Symbols)),
		index: make(map[string]map[string]int, len(cfg.Symbols)),
	}

	clockSet := make(map[string]time.Time)

	for _, symbol := range cfg.Symbols {
		all := barsBySymbol[symbol]

		if !types.BarsOrdered(all) {
			return nil, nil, errors.Newf(errors.ErrCodeUnorderedBars, "bars for %s are not in ascending date order", symbol)
		}

		var bars []types.HistoricalBar

		for _, bar := range all {
			if bar.Date.Before(cfg.StartDate) || bar.Date.After(cfg.EndDate) {
				continue
			}

			bars = append(bars, bar)
		}

		if len(bars) == 0 {
			return nil, nil, errors.Newf(errors.ErrCodeEmptySymbolData, "no bars for %s in backtest range", symbol)
		}

		index := make(map[string]int, len(bars))
		for i, bar := range bars {
			key := dateKey(bar.Date)
			index[key] = i
			clockSet[key] = bar.Date
		}

		inRange.bars[symbol] = bars
		inRange.index[symbol] = index
	}

	if len(clockSet) < minBarsRequired {
		return nil, nil, errors.Newf(errors.ErrCodeInsufficientRange,
			"date range covers %d bars, need at least %d", len(clockSet), minBarsRequired)
	}

	clock := make([]time.Time, 0, len(clockSet))
	for _, date := range clockSet {
		clock = append(clock, date)
	}

	sort.Slice(clock, func(i, j int) bool { return clock[i].Before(clock[j]) })

	return inRange, clock, nil
}

func groupSignalsByDate(cfg types.BacktestConfig, signals []types.Signal) map[string][]types.Signal {
	sorted := make([]types.Signal, len(signals))
	copy(sorted, signals)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	grouped := make(map[string][]types.Signal)

	for _, sig := range sorted {
		if sig.Confidence < cfg.ConfidenceThreshold {
			continue
		}

		key := dateKey(sig.Date)
		grouped[key] = append(grouped[key], sig)
	}

	return grouped
}

func (e *Engine) checkExits(state *simState, date time.Time, closes map[string]decimal.Decimal) {
	stopLoss, slErr := state.cfg.StopLossPct.Take()
	takeProfit, tpErr := state.cfg.TakeProfitPct.Take()

	if slErr != nil && tpErr != nil {
		return
	}

	for _, symbol := range sortedPositionSymbols(state) {
		pos := state.positions[symbol]

		px, ok := closes[symbol]
		if !ok || pos.entryPrice.LessThanOrEqual(decimal.Zero) {
			continue
		}

		move, _ := px.Sub(pos.entryPrice).Div(pos.entryPrice).Float64()
		if pos.direction == types.DirectionSell {
			move = -move
		}

		switch {
		case slErr == nil && move <= -stopLoss:
			state.closePosition(pos, px, date, types.ExitReasonStopLoss)
		case tpErr == nil && move >= takeProfit:
			state.closePosition(pos, px, date, types.ExitReasonTakeProfit)
		}
	}
}

func (e *Engine) applySignal(state *simState, sig types.Signal, px decimal.Decimal, date time.Time, closes map[string]decimal.Decimal) {
	pos, open := state.positions[sig.Symbol]

	if open {
		if pos.direction == sig.Direction {
			// Same-direction signal on an open position is a no-op.
			return
		}

		state.closePosition(pos, px, date, types.ExitReasonSignal)
	}

	target := state.targetCapital(sig.Symbol, closes)
	state.openPosition(sig.Symbol, sig.Direction, px, date, target)
}

// targetCapital sizes a new position: custom/equal weights when a
// multi-symbol allocation is configured, otherwise position_size_pct of
// current equity.
func (s *simState) targetCapital(symbol string, closes map[string]decimal.Decimal) decimal.Decimal {
	equity := s.equityAt(closes)

	if alloc, err := s.cfg.Allocation.Take(); err == nil {
		switch alloc.Mode {
		case types.AllocationCustom:
			return equity.Mul(decimal.NewFromFloat(alloc.Weights[symbol]))
		case types.AllocationEqualWeight:
			return equity.DivRound(decimal.NewFromInt(int64(len(s.cfg.Symbols))), 8)
		}
	}

	return equity.Mul(decimal.NewFromFloat(s.cfg.PositionSizePct))
}

func (e *Engine) rebalance(state *simState, date time.Time, closes map[string]decimal.Decimal) {
	for _, symbol := range sortedPositionSymbols(state) {
		pos := state.positions[symbol]

		px, ok := closes[symbol]
		if !ok {
			continue
		}

		state.resizePosition(pos, px, date, state.targetCapital(symbol, closes))
	}
}

func (e *Engine) liquidate(state *simState, inRange *symbolBars, lastDate time.Time) {
	for _, symbol := range sortedPositionSymbols(state) {
		pos := state.positions[symbol]

		bar, ok := inRange.lastBarUpTo(symbol, lastDate)
		if !ok {
			bar = types.HistoricalBar{Date: lastDate, Close: pos.entryPrice}
		}

		state.closePosition(pos, bar.Close, lastDate, types.ExitReasonEndOfPeriod)
	}
}

// sortedPositionSymbols keeps map iteration deterministic.
func sortedPositionSymbols(state *simState) []string {
	symbols := make([]string, 0, len(state.positions))
	for symbol := range state.positions {
		symbols = append(symbols, symbol)
	}

	sort.Strings(symbols)

	return symbols
}

func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
