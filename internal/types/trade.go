package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExitReason explains why a round-trip trade was closed.
type ExitReason string

const (
	ExitReasonSignal      ExitReason = "signal_reversal"
	ExitReasonStopLoss    ExitReason = "stop_loss"
	ExitReasonTakeProfit  ExitReason = "take_profit"
	ExitReasonEndOfPeriod ExitReason = "end_of_period"
	ExitReasonRebalance   ExitReason = "rebalance"
)

// Trade is one closed round-trip: entry fill to exit fill on a single
// instrument. Money fields are decimals; PnLPct is a ratio and stays float.
type Trade struct {
	Symbol      string          `json:"symbol"`
	Direction   Direction       `json:"direction"`
	EntryDate   time.Time       `json:"entry_date"`
	ExitDate    time.Time       `json:"exit_date"`
	EntryPrice  decimal.Decimal `json:"entry_price"`
	ExitPrice   decimal.Decimal `json:"exit_price"`
	Shares      decimal.Decimal `json:"shares"`
	PnL         decimal.Decimal `json:"pnl"`
	PnLPct      float64         `json:"pnl_pct"`
	HoldingDays int             `json:"holding_days"`
	Commission  decimal.Decimal `json:"commission"`
	Slippage    decimal.Decimal `json:"slippage"`
	ExitReason  ExitReason      `json:"exit_reason"`
}

// IsWin reports whether the trade closed with a positive PnL.
func (t Trade) IsWin() bool {
	return t.PnL.IsPositive()
}

// DailyReturns derives simple returns from consecutive equity-curve ratios.
// Points following a non-positive equity value are skipped.
func DailyReturns(curve []EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(curve)-1)

	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if !prev.IsPositive() {
			continue
		}

		ratio, _ := curve[i].Equity.Div(prev).Float64()
		returns = append(returns, ratio-1)
	}

	return returns
}

// EquityPoint is one marked-to-market snapshot of total account value,
// recorded once per simulated bar. DrawdownPct is the percent decline from
// the running equity peak at that instant (0 when at a new high).
type EquityPoint struct {
	Timestamp   time.Time       `json:"timestamp"`
	Equity      decimal.Decimal `json:"equity"`
	DrawdownPct float64         `json:"drawdown_pct"`
}
