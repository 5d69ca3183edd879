package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfold/backtest/pkg/errors"
)

// Direction is the normalized side of a trading signal.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// ParseDirection maps the free-form direction strings emitted by upstream
// analyzers ("BUY", "Long", "sell", ...) onto the two canonical directions.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "long":
		return DirectionBuy, nil
	case "sell", "short":
		return DirectionSell, nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidDirection, "unknown signal direction %q", s)
	}
}

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == DirectionBuy {
		return DirectionSell
	}

	return DirectionBuy
}

// Signal is one point-in-time trading signal produced by the analysis layer.
// The engine trusts that signals were generated on truncated bar windows;
// it only guarantees strict date-order processing.
type Signal struct {
	Date       time.Time       `json:"date"`
	Symbol     string          `json:"symbol"`
	Direction  Direction       `json:"direction"`
	Confidence float64         `json:"confidence"`
	Price      decimal.Decimal `json:"price"`
	Rationale  string          `json:"rationale,omitempty"`
}
