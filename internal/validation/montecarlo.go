package validation

import (
	"math/rand/v2"
	"sort"

	"github.com/moznion/go-optional"

	"github.com/quantfold/backtest/internal/types"
	"github.com/quantfold/backtest/internal/utils"
)

const minMonteCarloReturns = 10

// MonteCarlo resamples the realized daily return series into nPaths
// alternative equity paths and summarizes the distribution of final returns.
// Ruin means the resampled path's drawdown ever reached ruinThresholdPct.
// Absent with fewer than 10 daily returns or a non-positive path count.
func MonteCarlo(curve []types.EquityPoint, nPaths int, ruinThresholdPct float64) optional.Option[types.MonteCarloResult] {
	returns := types.DailyReturns(curve)
	if len(returns) < minMonteCarloReturns || nPaths <= 0 {
		return optional.None[types.MonteCarloResult]()
	}

	type pathOutcome struct {
		finalReturnPct float64
		ruined         bool
	}

	outcomes := utils.ParallelMap(nPaths, 0, func(int) pathOutcome {
		equity := 1.0
		peak := 1.0
		ruined := false

		for range returns {
			equity *= 1 + returns[rand.IntN(len(returns))]

			if equity > peak {
				peak = equity
			}

			if (peak-equity)/peak*100 >= ruinThresholdPct {
				ruined = true
			}
		}

		return pathOutcome{finalReturnPct: (equity - 1) * 100, ruined: ruined}
	})

	finals := make([]float64, nPaths)
	profitable, ruined := 0, 0

	for i, o := range outcomes {
		finals[i] = o.finalReturnPct

		if o.finalReturnPct > 0 {
			profitable++
		}

		if o.ruined {
			ruined++
		}
	}

	sort.Float64s(finals)

	return optional.Some(types.MonteCarloResult{
		Paths: nPaths,
		FinalReturnPercentiles: map[string]float64{
			"p5":  utils.PercentileSorted(finals, 5),
			"p25": utils.PercentileSorted(finals, 25),
			"p50": utils.PercentileSorted(finals, 50),
			"p75": utils.PercentileSorted(finals, 75),
			"p95": utils.PercentileSorted(finals, 95),
		},
		ProbabilityOfProfit: float64(profitable) / float64(nPaths),
		ProbabilityOfRuin:   float64(ruined) / float64(nPaths),
		RuinThresholdPct:    ruinThresholdPct,
	})
}
