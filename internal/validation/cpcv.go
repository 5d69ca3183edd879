package validation

import (
	"math"

	"github.com/moznion/go-optional"

	"github.com/quantfold/backtest/internal/types"
	"github.com/quantfold/backtest/internal/utils"
)

const (
	minCPCVTrades = 20

	// minChunkTrades applies both to the partition chunks and to the
	// embargoed test set of a single combination.
	minChunkTrades = 3
)

// CPCV runs combinatorially purged cross-validation over the trade ledger.
// Trades are partitioned into nSplits contiguous chunks; every way of
// choosing testSize chunks as the test set (up to maxCombinations) is
// evaluated, with embargoBars trades trimmed from both ends of each chosen
// test chunk to stop leakage across the train/test boundary. Absent when the
// ledger is under 20 trades, nSplits < 3, testSize is outside [1, nSplits),
// or the chunks would fall under 3 trades each.
func CPCV(trades []types.Trade, nSplits, testSize, maxCombinations, embargoBars int) optional.Option[types.CPCVResult] {
	if len(trades) < minCPCVTrades || nSplits < minChunkTrades {
		return optional.None[types.CPCVResult]()
	}

	if testSize < 1 || testSize >= nSplits {
		return optional.None[types.CPCVResult]()
	}

	chunkSize := len(trades) / nSplits
	if chunkSize < minChunkTrades {
		return optional.None[types.CPCVResult]()
	}

	chunks := make([][]types.Trade, nSplits)
	for i := 0; i < nSplits; i++ {
		start := i * chunkSize

		end := start + chunkSize
		if i == nSplits-1 {
			end = len(trades) // last chunk absorbs the remainder
		}

		chunks[i] = trades[start:end]
	}

	var (
		sharpes     []float64
		losingSets int
	)

	for _, combo := range combinations(nSplits, testSize, maxCombinations) {
		var returns []float64

		for _, ci := range combo {
			returns = append(returns, embargoed(chunks[ci], embargoBars)...)
		}

		if len(returns) < minChunkTrades {
			continue
		}

		sharpes = append(sharpes, tradeSharpe(returns))

		if utils.Mean(returns) < 0 {
			losingSets++
		}
	}

	if len(sharpes) == 0 {
		return optional.None[types.CPCVResult]()
	}

	result := types.CPCVResult{
		Combinations:      len(sharpes),
		MeanOOSSharpe:     utils.Mean(sharpes),
		StdOOSSharpe:      utils.StdDev(sharpes),
		ProbabilityOfLoss: float64(losingSets) / float64(len(sharpes)),
	}

	if len(sharpes) > 1 && result.StdOOSSharpe > 1e-10 {
		count := float64(len(sharpes))
		result.DeflatedSharpe = optional.Some(result.MeanOOSSharpe / (result.StdOOSSharpe / math.Sqrt(count)))
	}

	return optional.Some(result)
}

// embargoed trims embargoBars trades off both ends of a test chunk and maps
// the survivors to fractional returns.
func embargoed(chunk []types.Trade, embargoBars int) []float64 {
	if embargoBars < 0 {
		embargoBars = 0
	}

	start := embargoBars
	end := len(chunk) - embargoBars

	if start >= end {
		return nil
	}

	return TradeReturns(chunk[start:end])
}

// combinations enumerates up to limit distinct k-subsets of [0, n) in
// lexicographic order.
func combinations(n, k, limit int) [][]int {
	if limit <= 0 {
		return nil
	}

	var out [][]int

	current := make([]int, 0, k)

	var recurse func(start int)

	recurse = func(start int) {
		if len(out) >= limit {
			return
		}

		if len(current) == k {
			out = append(out, append([]int(nil), current...))

			return
		}

		for i := start; i < n; i++ {
			current = append(current, i)
			recurse(i + 1)
			current = current[:len(current)-1]
		}
	}

	recurse(0)

	return out
}
