// Package impact implements a square-root market-impact model: the expected
// price concession of an order scales with the square root of its size
// relative to average daily volume, split into a permanent component that
// keeps pressing the price and a temporary component that dissipates.
package impact

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/quantfold/backtest/pkg/errors"
)

const tradingDaysPerYear = 252

// Config holds the impact model parameters.
type Config struct {
	// ADVLookbackDays is the number of recent volumes averaged into ADV.
	ADVLookbackDays int `yaml:"adv_lookback_days" json:"adv_lookback_days" jsonschema:"title=ADV Lookback Days,minimum=1" validate:"gt=0"`
	// VolLookbackDays is the number of recent prices used for the volatility estimate.
	VolLookbackDays int `yaml:"vol_lookback_days" json:"vol_lookback_days" jsonschema:"title=Volatility Lookback Days,minimum=2" validate:"gt=1"`
	// Gamma scales the square-root impact term.
	Gamma float64 `yaml:"gamma" json:"gamma" jsonschema:"title=Gamma,minimum=0" validate:"gte=0"`
	// MinParticipationForFullImpact is the participation rate below which
	// impact scales linearly instead of by square root, so tiny orders are
	// not overcharged near zero.
	MinParticipationForFullImpact float64 `yaml:"min_participation_for_full_impact" json:"min_participation_for_full_impact" validate:"gt=0"`
	// PermanentImpactFraction is the share of total impact that persists.
	PermanentImpactFraction float64 `yaml:"permanent_impact_fraction" json:"permanent_impact_fraction" validate:"gte=0,lte=1"`
	// DecayRate is the per-day multiplier applied to accumulated permanent
	// impact, modeling mean reversion of price pressure.
	DecayRate float64 `yaml:"decay_rate" json:"decay_rate" validate:"gt=0,lte=1"`
}

// DefaultConfig returns the parameters used when a backtest configuration
// does not override the impact model.
func DefaultConfig() Config {
	return Config{
		ADVLookbackDays:               20,
		VolLookbackDays:               20,
		Gamma:                         0.2,
		MinParticipationForFullImpact: 0.01,
		PermanentImpactFraction:       0.6,
		DecayRate:                     0.97,
	}
}

// Impact is the estimated price impact of one order, expressed as signed-free
// fractions of the fill price. Permanent + Temporary always equals Total.
type Impact struct {
	Total             float64
	Permanent         float64
	Temporary         float64
	ParticipationRate float64
}

// Estimate computes the expected impact of an order of orderSize shares given
// the instrument's recent volume and price history. recentVolumes and
// recentPrices are ordered oldest to newest. It returns an
// InsufficientDataError when fewer than 2 prices or no volumes are supplied,
// or when the average daily volume is zero.
func Estimate(orderSize float64, recentVolumes, recentPrices []float64, cfg Config) (Impact, error) {
	if len(recentPrices) < 2 {
		return Impact{}, errors.NewInsufficientDataErrorf(2, len(recentPrices), "",
			"impact model needs at least 2 prices, have %d", len(recentPrices))
	}

	if len(recentVolumes) == 0 {
		return Impact{}, errors.NewInsufficientDataError(1, 0, "", "impact model needs volume history")
	}

	adv := averageDailyVolume(recentVolumes, cfg.ADVLookbackDays)
	if adv == 0 {
		return Impact{}, errors.NewInsufficientDataError(1, 0, "", "average daily volume is zero")
	}

	participation := math.Abs(orderSize) / adv
	vol := annualizedVolatility(recentPrices, cfg.VolLookbackDays)
	base := vol * cfg.Gamma * math.Sqrt(participation)

	total := base
	if participation < cfg.MinParticipationForFullImpact {
		// Linear sub-scaling below the threshold.
		total = base * (participation / cfg.MinParticipationForFullImpact)
	}

	permanent := total * cfg.PermanentImpactFraction

	return Impact{
		Total:             total,
		Permanent:         permanent,
		Temporary:         total - permanent,
		ParticipationRate: participation,
	}, nil
}

// ApplyImpact adjusts a base fill price by the total impact fraction:
// buys pay up, sells receive less.
func ApplyImpact(basePrice decimal.Decimal, isBuy bool, im Impact) decimal.Decimal {
	frac := decimal.NewFromFloat(im.Total)
	if isBuy {
		return basePrice.Mul(decimal.NewFromInt(1).Add(frac))
	}

	return basePrice.Mul(decimal.NewFromInt(1).Sub(frac))
}

func averageDailyVolume(volumes []float64, lookback int) float64 {
	window := volumes
	if lookback > 0 && len(volumes) > lookback {
		window = volumes[len(volumes)-lookback:]
	}

	sum := 0.0
	for _, v := range window {
		sum += v
	}

	return sum / float64(len(window))
}

func annualizedVolatility(prices []float64, lookback int) float64 {
	window := prices
	if lookback > 0 && len(prices) > lookback+1 {
		window = prices[len(prices)-lookback-1:]
	}

	logReturns := make([]float64, 0, len(window)-1)

	for i := 1; i < len(window); i++ {
		if window[i-1] <= 0 || window[i] <= 0 {
			continue
		}

		logReturns = append(logReturns, math.Log(window[i]/window[i-1]))
	}

	if len(logReturns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range logReturns {
		mean += r
	}

	mean /= float64(len(logReturns))

	variance := 0.0
	for _, r := range logReturns {
		variance += (r - mean) * (r - mean)
	}

	variance /= float64(len(logReturns) - 1)

	return math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear)
}
