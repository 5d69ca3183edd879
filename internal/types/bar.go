package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoricalBar is one OHLCV bar of an instrument's history. Prices are
// decimals so that money arithmetic downstream does not accumulate
// floating-point drift; volume stays a float since it only ever feeds
// ratio calculations.
type HistoricalBar struct {
	Date   time.Time       `json:"date" csv:"date"`
	Open   decimal.Decimal `json:"open" csv:"open"`
	High   decimal.Decimal `json:"high" csv:"high"`
	Low    decimal.Decimal `json:"low" csv:"low"`
	Close  decimal.Decimal `json:"close" csv:"close"`
	Volume float64         `json:"volume" csv:"volume"`
}

// BarsOrdered reports whether the bars are sorted ascending by date.
// Equal timestamps are allowed.
func BarsOrdered(bars []HistoricalBar) bool {
	for i := 1; i < len(bars); i++ {
		if bars[i].Date.Before(bars[i-1].Date) {
			return false
		}
	}

	return true
}
