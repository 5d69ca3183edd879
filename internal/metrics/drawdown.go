package metrics

import (
	"sort"
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"

	"github.com/quantfold/backtest/internal/types"
	"github.com/quantfold/backtest/internal/utils"
)

// DrawdownEvents scans the equity curve maintaining a running peak. An event
// opens the first time equity drops below the peak, deepens while it stays
// under, and closes when equity recovers to a new high. An episode still
// underwater at the end of the curve is kept with no recovery date. Events
// are ranked by depth and at most topN are returned.
func DrawdownEvents(curve []types.EquityPoint, topN int) []types.DrawdownEvent {
	if len(curve) < 2 || topN <= 0 {
		return nil
	}

	var (
		events  []types.DrawdownEvent
		current *types.DrawdownEvent
		trough  decimal.Decimal
	)

	peak := curve[0].Equity
	peakDate := curve[0].Timestamp

	for _, p := range curve[1:] {
		switch {
		case p.Equity.GreaterThan(peak):
			if current != nil {
				current.RecoveryDate = optional.Some(p.Timestamp)
				current.LengthDays = daysBetween(current.StartDate, p.Timestamp)
				events = append(events, *current)
				current = nil
			}

			peak = p.Equity
			peakDate = p.Timestamp

		case p.Equity.LessThan(peak):
			if current == nil {
				current = &types.DrawdownEvent{
					StartDate:  peakDate,
					TroughDate: p.Timestamp,
				}
				trough = p.Equity
			}

			if p.Equity.LessThan(trough) {
				trough = p.Equity
				current.TroughDate = p.Timestamp
			}

			if !peak.IsZero() {
				depth, _ := peak.Sub(trough).Div(peak).Mul(decimal.NewFromInt(100)).Float64()
				if depth > current.DepthPct {
					current.DepthPct = depth
				}
			}
		}
	}

	if current != nil {
		current.LengthDays = daysBetween(current.StartDate, curve[len(curve)-1].Timestamp)
		events = append(events, *current)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].DepthPct > events[j].DepthPct
	})

	if len(events) > topN {
		events = events[:topN]
	}

	return events
}

// MonthlyReturns chain-links equity values across month boundaries. The first
// month is measured from the first equity point in the series.
func MonthlyReturns(curve []types.EquityPoint) []types.MonthlyReturn {
	if len(curve) < 2 {
		return nil
	}

	var out []types.MonthlyReturn

	base := curve[0].Equity
	year, month, _ := curve[0].Timestamp.Date()
	last := curve[0].Equity

	flush := func() {
		if base.IsZero() {
			return
		}

		ret, _ := last.Sub(base).Div(base).Mul(decimal.NewFromInt(100)).Float64()
		out = append(out, types.MonthlyReturn{Year: year, Month: month, ReturnPct: ret})
	}

	for _, p := range curve[1:] {
		y, m, _ := p.Timestamp.Date()
		if y != year || m != month {
			flush()

			base = last
			year, month = y, m
		}

		last = p.Equity
	}

	flush()

	return out
}

// RollingSharpe computes the annualized Sharpe of every trailing window of
// daily returns, one point per bar once the window fills. Windows are
// independent, so they fan out across a worker pool; results land in
// chronological order regardless of scheduling.
func RollingSharpe(curve []types.EquityPoint, window int) []types.RollingSharpePoint {
	returns := types.DailyReturns(curve)
	if window <= 1 || len(returns) < window {
		return nil
	}

	n := len(returns) - window + 1

	return utils.ParallelMap(n, 0, func(i int) types.RollingSharpePoint {
		return types.RollingSharpePoint{
			// returns[j] spans curve[j] to curve[j+1], so the window ending
			// at return index i+window-1 ends at curve point i+window.
			Timestamp: curve[i+window].Timestamp,
			Sharpe:    utils.AnnualizedSharpe(returns[i:i+window], dailyRiskFree),
		}
	})
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
