package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfold/backtest/internal/engine/impact"
	"github.com/quantfold/backtest/internal/types"
)

// position is one open holding. Shares are always positive; Direction
// distinguishes long from short.
type position struct {
	symbol     string
	direction  types.Direction
	shares     decimal.Decimal
	entryPrice decimal.Decimal
	entryDate  time.Time

	// Entry-leg costs carried until the close so the round-trip trade can
	// report its full cost attribution.
	entryCommission decimal.Decimal
	entrySlippage   decimal.Decimal
}

// simState is the mutable book of one simulation run: cash, open positions,
// the permanent-impact tracker, and the output ledgers. It is owned by
// exactly one Run invocation and never shared.
type simState struct {
	cfg types.BacktestConfig

	cash      decimal.Decimal
	positions map[string]*position
	tracker   *impact.PermanentTracker

	trades      []types.Trade
	equityCurve []types.EquityPoint
	peakEquity  decimal.Decimal

	costs types.CostSummary

	// Rolling per-symbol close/volume history feeding the impact model.
	closeHistory  map[string][]float64
	volumeHistory map[string][]float64
}

func newSimState(cfg types.BacktestConfig) *simState {
	return &simState{
		cfg:           cfg,
		cash:          cfg.InitialCapital,
		positions:     make(map[string]*position),
		tracker:       impact.NewPermanentTracker(),
		peakEquity:    cfg.InitialCapital,
		closeHistory:  make(map[string][]float64),
		volumeHistory: make(map[string][]float64),
	}
}

// fill is the outcome of pricing one order leg.
type fill struct {
	price      decimal.Decimal
	commission decimal.Decimal
	slippage   decimal.Decimal
	impactCost decimal.Decimal
}

// priceFill computes the executed price for an order of shares at the bar's
// close, layering accumulated permanent impact, slippage, and this order's
// own market impact. Buys pay up on every layer; sells receive less.
func (s *simState) priceFill(symbol string, barClose decimal.Decimal, shares decimal.Decimal, isBuy bool) fill {
	base := barClose.Mul(decimal.NewFromFloat(s.tracker.Multiplier(symbol)))

	slipFrac := decimal.NewFromFloat(s.cfg.SlippageRate)

	var slipped decimal.Decimal
	if isBuy {
		slipped = base.Mul(decimal.NewFromInt(1).Add(slipFrac))
	} else {
		slipped = base.Mul(decimal.NewFromInt(1).Sub(slipFrac))
	}

	slippageCost := base.Mul(slipFrac).Mul(shares).Abs()

	executed := slipped

	var impactCost decimal.Decimal

	sharesF, _ := shares.Float64()

	im, err := impact.Estimate(sharesF, s.volumeHistory[symbol], s.closeHistory[symbol], s.cfg.Impact)
	if err == nil {
		executed = impact.ApplyImpact(slipped, isBuy, im)
		impactCost = executed.Sub(slipped).Mul(shares).Abs()
		s.tracker.Record(symbol, im.Permanent, isBuy)
	}

	commission := executed.Mul(shares).Abs().Mul(decimal.NewFromFloat(s.cfg.CommissionRate))

	return fill{
		price:      executed,
		commission: commission,
		slippage:   slippageCost,
		impactCost: impactCost,
	}
}

// openPosition opens a new position of the given direction, spending at most
// targetCapital but never more than the cash floor allows.
func (s *simState) openPosition(symbol string, direction types.Direction, barClose decimal.Decimal, date time.Time, targetCapital decimal.Decimal) {
	if barClose.LessThanOrEqual(decimal.Zero) {
		return
	}

	spendable := targetCapital
	if spendable.GreaterThan(s.cash) {
		// Cap to the spendable cash floor rather than going negative.
		spendable = s.cash
	}

	if spendable.LessThanOrEqual(decimal.Zero) {
		return
	}

	// Reserve room for slippage and commission so cash cannot go negative
	// on the fill.
	denom := barClose.Mul(decimal.NewFromFloat((1 + s.cfg.SlippageRate) * (1 + s.cfg.CommissionRate)))
	shares := spendable.DivRound(denom, 8)

	if shares.LessThanOrEqual(decimal.Zero) {
		return
	}

	isBuy := direction == types.DirectionBuy
	f := s.priceFill(symbol, barClose, shares, isBuy)
	gross := f.price.Mul(shares)

	// Market impact can push the executed price past the reservation; scale
	// the order down so total cost lands exactly on the cash floor.
	if isBuy && gross.Add(f.commission).GreaterThan(s.cash) {
		scale := s.cash.DivRound(gross.Add(f.commission), 12)
		shares = shares.Mul(scale)
		gross = gross.Mul(scale)
		f.commission = f.commission.Mul(scale)
		f.slippage = f.slippage.Mul(scale)
		f.impactCost = f.impactCost.Mul(scale)
	}

	if isBuy {
		s.cash = s.cash.Sub(gross).Sub(f.commission)
	} else {
		// Short entry: proceeds land in cash, liability tracked via the
		// position book at mark-to-market.
		s.cash = s.cash.Add(gross).Sub(f.commission)
	}

	s.costs.Commission = s.costs.Commission.Add(f.commission)
	s.costs.Slippage = s.costs.Slippage.Add(f.slippage)
	s.costs.MarketImpact = s.costs.MarketImpact.Add(f.impactCost)

	s.positions[symbol] = &position{
		symbol:          symbol,
		direction:       direction,
		shares:          shares,
		entryPrice:      f.price,
		entryDate:       date,
		entryCommission: f.commission,
		entrySlippage:   f.slippage,
	}
}

// closePosition liquidates the full position at the bar's close and records
// the round-trip trade.
func (s *simState) closePosition(pos *position, barClose decimal.Decimal, date time.Time, reason types.ExitReason) {
	isBuyToCover := pos.direction == types.DirectionSell
	f := s.priceFill(pos.symbol, barClose, pos.shares, isBuyToCover)
	gross := f.price.Mul(pos.shares)

	if pos.direction == types.DirectionBuy {
		s.cash = s.cash.Add(gross).Sub(f.commission)
	} else {
		s.cash = s.cash.Sub(gross).Sub(f.commission)
	}

	s.costs.Commission = s.costs.Commission.Add(f.commission)
	s.costs.Slippage = s.costs.Slippage.Add(f.slippage)
	s.costs.MarketImpact = s.costs.MarketImpact.Add(f.impactCost)

	commission := pos.entryCommission.Add(f.commission)
	slippage := pos.entrySlippage.Add(f.slippage)

	var pnl decimal.Decimal
	if pos.direction == types.DirectionBuy {
		pnl = f.price.Sub(pos.entryPrice).Mul(pos.shares).Sub(commission)
	} else {
		pnl = pos.entryPrice.Sub(f.price).Mul(pos.shares).Sub(commission)
	}

	entryValue := pos.entryPrice.Mul(pos.shares)

	pnlPct := 0.0
	if entryValue.IsPositive() {
		pnlPct, _ = pnl.Div(entryValue).Mul(decimal.NewFromInt(100)).Float64()
	}

	s.trades = append(s.trades, types.Trade{
		Symbol:      pos.symbol,
		Direction:   pos.direction,
		EntryDate:   pos.entryDate,
		ExitDate:    date,
		EntryPrice:  pos.entryPrice,
		ExitPrice:   f.price,
		Shares:      pos.shares,
		PnL:         pnl,
		PnLPct:      pnlPct,
		HoldingDays: holdingDays(pos.entryDate, date),
		Commission:  commission,
		Slippage:    slippage,
		ExitReason:  reason,
	})

	delete(s.positions, pos.symbol)
}

// resizePosition adjusts an open position toward targetValue during a
// rebalance, buying or selling the difference at the bar's close. Reductions
// book a partial round-trip trade with the rebalance exit reason.
func (s *simState) resizePosition(pos *position, barClose decimal.Decimal, date time.Time, targetValue decimal.Decimal) {
	currentValue := barClose.Mul(pos.shares)
	diff := targetValue.Sub(currentValue)

	// Skip adjustments below 0.5% of the target to avoid churning.
	if diff.Abs().LessThan(targetValue.Mul(decimal.NewFromFloat(0.005))) {
		return
	}

	if barClose.LessThanOrEqual(decimal.Zero) {
		return
	}

	deltaShares := diff.Abs().DivRound(barClose, 8)

	if diff.IsPositive() {
		// Growing the position. Long adds by buying, short adds by selling.
		isBuy := pos.direction == types.DirectionBuy

		f := s.priceFill(pos.symbol, barClose, deltaShares, isBuy)
		gross := f.price.Mul(deltaShares)
		cost := gross.Add(f.commission)

		if isBuy && cost.GreaterThan(s.cash) {
			// Cap to spendable cash.
			deltaShares = s.cash.DivRound(f.price.Mul(decimal.NewFromFloat(1+s.cfg.CommissionRate)), 8)
			if deltaShares.LessThanOrEqual(decimal.Zero) {
				return
			}

			gross = f.price.Mul(deltaShares)
			f.commission = gross.Mul(decimal.NewFromFloat(s.cfg.CommissionRate))
		}

		if isBuy {
			s.cash = s.cash.Sub(gross).Sub(f.commission)
		} else {
			s.cash = s.cash.Add(gross).Sub(f.commission)
		}

		s.costs.Commission = s.costs.Commission.Add(f.commission)
		s.costs.Slippage = s.costs.Slippage.Add(f.slippage)
		s.costs.MarketImpact = s.costs.MarketImpact.Add(f.impactCost)

		// Blend the entry price so later PnL stays consistent.
		oldValue := pos.entryPrice.Mul(pos.shares)
		newValue := f.price.Mul(deltaShares)
		pos.shares = pos.shares.Add(deltaShares)
		pos.entryPrice = oldValue.Add(newValue).DivRound(pos.shares, 8)

		return
	}

	// Shrinking the position: book a partial close.
	if deltaShares.GreaterThanOrEqual(pos.shares) {
		s.closePosition(pos, barClose, date, types.ExitReasonRebalance)
		return
	}

	isBuyToCover := pos.direction == types.DirectionSell
	f := s.priceFill(pos.symbol, barClose, deltaShares, isBuyToCover)
	gross := f.price.Mul(deltaShares)

	if pos.direction == types.DirectionBuy {
		s.cash = s.cash.Add(gross).Sub(f.commission)
	} else {
		s.cash = s.cash.Sub(gross).Sub(f.commission)
	}

	s.costs.Commission = s.costs.Commission.Add(f.commission)
	s.costs.Slippage = s.costs.Slippage.Add(f.slippage)
	s.costs.MarketImpact = s.costs.MarketImpact.Add(f.impactCost)

	var pnl decimal.Decimal
	if pos.direction == types.DirectionBuy {
		pnl = f.price.Sub(pos.entryPrice).Mul(deltaShares).Sub(f.commission)
	} else {
		pnl = pos.entryPrice.Sub(f.price).Mul(deltaShares).Sub(f.commission)
	}

	entryValue := pos.entryPrice.Mul(deltaShares)

	pnlPct := 0.0
	if entryValue.IsPositive() {
		pnlPct, _ = pnl.Div(entryValue).Mul(decimal.NewFromInt(100)).Float64()
	}

	s.trades = append(s.trades, types.Trade{
		Symbol:      pos.symbol,
		Direction:   pos.direction,
		EntryDate:   pos.entryDate,
		ExitDate:    date,
		EntryPrice:  pos.entryPrice,
		ExitPrice:   f.price,
		Shares:      deltaShares,
		PnL:         pnl,
		PnLPct:      pnlPct,
		HoldingDays: holdingDays(pos.entryDate, date),
		Commission:  f.commission,
		Slippage:    f.slippage,
		ExitReason:  types.ExitReasonRebalance,
	})

	pos.shares = pos.shares.Sub(deltaShares)
}

// markEquity records one equity point at the given date using the supplied
// close prices (symbol -> close) for mark-to-market.
func (s *simState) markEquity(date time.Time, closes map[string]decimal.Decimal) {
	equity := s.equityAt(closes)

	if equity.GreaterThan(s.peakEquity) {
		s.peakEquity = equity
	}

	drawdown := 0.0
	if s.peakEquity.IsPositive() {
		drawdown, _ = s.peakEquity.Sub(equity).Div(s.peakEquity).Mul(decimal.NewFromInt(100)).Float64()
	}

	if drawdown < 0 {
		drawdown = 0
	}

	s.equityCurve = append(s.equityCurve, types.EquityPoint{
		Timestamp:   date,
		Equity:      equity,
		DrawdownPct: drawdown,
	})
}

// equityAt is cash plus long market value minus short liability.
func (s *simState) equityAt(closes map[string]decimal.Decimal) decimal.Decimal {
	equity := s.cash

	for symbol, pos := range s.positions {
		close, ok := closes[symbol]
		if !ok {
			// No bar today; fall back to entry price.
			close = pos.entryPrice
		}

		value := close.Mul(pos.shares)
		if pos.direction == types.DirectionBuy {
			equity = equity.Add(value)
		} else {
			equity = equity.Sub(value)
		}
	}

	return equity
}

func holdingDays(entry, exit time.Time) int {
	days := int(exit.Sub(entry).Hours() / 24)
	if days < 0 {
		return 0
	}

	return days
}
