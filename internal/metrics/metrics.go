// Package metrics computes the extended performance and risk layer on top of
// a finished backtest: risk-adjusted ratios, drawdown events, monthly
// returns, and rolling Sharpe. Everything here is a pure calculation;
// "not computable" is represented as an absent Option, never an error, so an
// undersized sample still returns its point-estimate metrics.
package metrics

import (
	"math"

	"github.com/moznion/go-optional"

	"github.com/quantfold/backtest/internal/types"
	"github.com/quantfold/backtest/internal/utils"
)

const (
	annualRiskFree = 0.02
	dailyRiskFree  = annualRiskFree / utils.TradingDaysPerYear

	// rollingWindow is one quarter of trading days.
	rollingWindow = 63

	// topDrawdownEvents caps how many ranked events are retained.
	topDrawdownEvents = 10

	// tailRatioMinPoints guards the 5th/95th percentile estimate.
	tailRatioMinPoints = 20
)

// Compute derives the full ExtendedMetrics block from an equity curve and an
// optional benchmark return series (nil when absent).
func Compute(
	curve []types.EquityPoint,
	benchmark []float64,
	annualizedReturnPct float64,
) types.ExtendedMetrics {
	returns := types.DailyReturns(curve)

	m := types.ExtendedMetrics{
		OmegaRatio:     OmegaRatio(returns, 0),
		TailRatio:      TailRatio(returns),
		Skewness:       Skewness(returns),
		ExcessKurtosis: ExcessKurtosis(returns),
		DrawdownEvents: DrawdownEvents(curve, topDrawdownEvents),
		MonthlyReturns: MonthlyReturns(curve),
		RollingSharpe:  RollingSharpe(curve, rollingWindow),
	}

	m.CDaR = conditionalDrawdown(curve, 0.95)
	m.UlcerIndex, m.PainIndex = painMetrics(curve)
	m.GainToPainRatio = gainToPain(returns)
	m.BurkeRatio = burkeRatio(annualizedReturnPct, m.DrawdownEvents)
	m.SterlingRatio = sterlingRatio(annualizedReturnPct, m.DrawdownEvents)

	if beta := Beta(returns, benchmark); beta.IsSome() {
		b := beta.Unwrap()
		m.Beta = beta
		m.TreynorRatio = treynor(annualizedReturnPct, b)
		m.JensensAlpha = jensensAlpha(returns, benchmark, b)
	}

	return m
}

// Beta is covariance(returns, benchmark) / variance(benchmark), requiring at
// least 3 overlapping points and a non-degenerate benchmark.
func Beta(returns, benchmark []float64) optional.Option[float64] {
	n := len(returns)
	if len(benchmark) < n {
		n = len(benchmark)
	}

	if n < 3 {
		return optional.None[float64]()
	}

	r := returns[:n]
	b := benchmark[:n]

	meanR := utils.Mean(r)
	meanB := utils.Mean(b)

	cov, varB := 0.0, 0.0

	for i := 0; i < n; i++ {
		cov += (r[i] - meanR) * (b[i] - meanB)
		varB += (b[i] - meanB) * (b[i] - meanB)
	}

	if varB == 0 {
		return optional.None[float64]()
	}

	return optional.Some(cov / varB)
}

// treynor is annualized excess return over beta; undefined for beta near 0.
func treynor(annualizedReturnPct, beta float64) optional.Option[float64] {
	if math.Abs(beta) < 1e-9 {
		return optional.None[float64]()
	}

	return optional.Some((annualizedReturnPct/100 - annualRiskFree) / beta)
}

// jensensAlpha is the annualized CAPM residual: mean return minus what beta
// exposure to the benchmark would have earned.
func jensensAlpha(returns, benchmark []float64, beta float64) optional.Option[float64] {
	n := len(returns)
	if len(benchmark) < n {
		n = len(benchmark)
	}

	if n == 0 {
		return optional.None[float64]()
	}

	meanR := utils.Mean(returns[:n])
	meanB := utils.Mean(benchmark[:n])

	daily := meanR - (dailyRiskFree + beta*(meanB-dailyRiskFree))

	return optional.Some(daily * utils.TradingDaysPerYear)
}

// OmegaRatio is the sum of returns above the threshold over the sum of
// shortfalls below it. With gains and zero losses it is the +inf sentinel;
// with neither it is absent.
func OmegaRatio(returns []float64, threshold float64) optional.Option[types.Ratio] {
	gains, losses := 0.0, 0.0

	for _, r := range returns {
		if r > threshold {
			gains += r - threshold
		} else {
			losses += threshold - r
		}
	}

	switch {
	case losses > 0:
		return optional.Some(types.Ratio(gains / losses))
	case gains > 0:
		return optional.Some(types.Ratio(math.Inf(1)))
	default:
		return optional.None[types.Ratio]()
	}
}

// TailRatio is the 95th percentile of daily returns over the magnitude of
// the 5th percentile; absent below 20 points or with a vanishing left tail.
func TailRatio(returns []float64) optional.Option[float64] {
	if len(returns) < tailRatioMinPoints {
		return optional.None[float64]()
	}

	upper := utils.Percentile(returns, 95)
	lower := utils.Percentile(returns, 5)

	if math.Abs(lower) < 1e-12 {
		return optional.None[float64]()
	}

	return optional.Some(upper / math.Abs(lower))
}

// Skewness is the third standardized moment.
func Skewness(returns []float64) optional.Option[float64] {
	n := len(returns)
	if n < 3 {
		return optional.None[float64]()
	}

	mean := utils.Mean(returns)

	m2, m3 := 0.0, 0.0

	for _, r := range returns {
		d := r - mean
		m2 += d * d
		m3 += d * d * d
	}

	m2 /= float64(n)
	m3 /= float64(n)

	if m2 == 0 {
		return optional.None[float64]()
	}

	return optional.Some(m3 / math.Pow(m2, 1.5))
}

// ExcessKurtosis is the fourth standardized moment minus 3 (normal = 0).
func ExcessKurtosis(returns []float64) optional.Option[float64] {
	n := len(returns)
	if n < 4 {
		return optional.None[float64]()
	}

	mean := utils.Mean(returns)

	m2, m4 := 0.0, 0.0

	for _, r := range returns {
		d := r - mean
		m2 += d * d
		m4 += d * d * d * d
	}

	m2 /= float64(n)
	m4 /= float64(n)

	if m2 == 0 {
		return optional.None[float64]()
	}

	return optional.Some(m4/(m2*m2) - 3)
}

// conditionalDrawdown averages the worst (1-level) share of per-bar drawdown
// observations (CDaR at the given confidence level, in percent).
func conditionalDrawdown(curve []types.EquityPoint, level float64) float64 {
	if len(curve) == 0 {
		return 0
	}

	drawdowns := make([]float64, len(curve))
	for i, p := range curve {
		drawdowns[i] = p.DrawdownPct
	}

	cutoff := utils.Percentile(drawdowns, level*100)

	tail := make([]float64, 0)

	for _, d := range drawdowns {
		if d >= cutoff {
			tail = append(tail, d)
		}
	}

	return utils.Mean(tail)
}

// painMetrics returns the Ulcer Index (RMS of drawdowns) and the Pain Index
// (mean drawdown), both in percent.
func painMetrics(curve []types.EquityPoint) (ulcer, pain float64) {
	if len(curve) == 0 {
		return 0, 0
	}

	sumSq, sum := 0.0, 0.0

	for _, p := range curve {
		sumSq += p.DrawdownPct * p.DrawdownPct
		sum += p.DrawdownPct
	}

	n := float64(len(curve))

	return math.Sqrt(sumSq / n), sum / n
}

func gainToPain(returns []float64) optional.Option[types.Ratio] {
	gains, pain := 0.0, 0.0

	for _, r := range returns {
		if r > 0 {
			gains += r
		} else {
			pain += -r
		}
	}

	switch {
	case pain > 0:
		return optional.Some(types.Ratio(gains / pain))
	case gains > 0:
		return optional.Some(types.Ratio(math.Inf(1)))
	default:
		return optional.None[types.Ratio]()
	}
}

// burkeRatio divides annualized excess return by the square root of summed
// squared drawdown-event depths.
func burkeRatio(annualizedReturnPct float64, events []types.DrawdownEvent) optional.Option[float64] {
	if len(events) == 0 {
		return optional.None[float64]()
	}

	sumSq := 0.0
	for _, e := range events {
		sumSq += e.DepthPct * e.DepthPct
	}

	if sumSq == 0 {
		return optional.None[float64]()
	}

	return optional.Some((annualizedReturnPct - annualRiskFree*100) / math.Sqrt(sumSq))
}

// sterlingRatio divides annualized return by the average drawdown-event
// depth plus the conventional 10% cushion.
func sterlingRatio(annualizedReturnPct float64, events []types.DrawdownEvent) optional.Option[float64] {
	if len(events) == 0 {
		return optional.None[float64]()
	}

	depths := make([]float64, len(events))
	for i, e := range events {
		depths[i] = e.DepthPct
	}

	return optional.Some(annualizedReturnPct / (utils.Mean(depths) + 10))
}

// Compare relates the strategy's daily returns to a benchmark series and is
// absent entirely when no overlap exists.
func Compare(curve []types.EquityPoint, benchmark []float64, totalReturnPct float64) optional.Option[types.BenchmarkComparison] {
	if len(benchmark) == 0 {
		return optional.None[types.BenchmarkComparison]()
	}

	returns := types.DailyReturns(curve)

	n := len(returns)
	if len(benchmark) < n {
		n = len(benchmark)
	}

	benchTotal := 1.0
	for _, r := range benchmark {
		benchTotal *= 1 + r
	}

	comparison := types.BenchmarkComparison{
		Beta:               Beta(returns, benchmark),
		BenchmarkReturnPct: (benchTotal - 1) * 100,
	}
	comparison.ExcessReturnPct = totalReturnPct - comparison.BenchmarkReturnPct

	if n >= 3 {
		r := returns[:n]
		b := benchmark[:n]

		if corr := correlation(r, b); !math.IsNaN(corr) {
			comparison.Correlation = optional.Some(corr)
		}

		active := make([]float64, n)
		for i := 0; i < n; i++ {
			active[i] = r[i] - b[i]
		}

		te := utils.StdDev(active) * math.Sqrt(utils.TradingDaysPerYear)
		if te > 0 {
			comparison.TrackingError = optional.Some(te)
			comparison.InformationRatio = optional.Some(utils.Mean(active) * utils.TradingDaysPerYear / te)
		}

		if beta, err := comparison.Beta.Take(); err == nil {
			comparison.Alpha = jensensAlpha(r, b, beta)
		}
	}

	return optional.Some(comparison)
}

func correlation(a, b []float64) float64 {
	stdA := utils.StdDev(a)
	stdB := utils.StdDev(b)

	if stdA == 0 || stdB == 0 {
		return math.NaN()
	}

	meanA := utils.Mean(a)
	meanB := utils.Mean(b)

	cov := 0.0
	for i := range a {
		cov += (a[i] - meanA) * (b[i] - meanB)
	}

	cov /= float64(len(a) - 1)

	return cov / (stdA * stdB)
}
