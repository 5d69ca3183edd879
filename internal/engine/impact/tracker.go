package impact

// PermanentTracker is a per-run ledger of cumulative signed permanent impact
// per instrument. Buys push the fraction up, sells push it down, and a
// periodic decay pulls it back toward zero. It is owned by exactly one
// simulation run and is never shared across goroutines.
type PermanentTracker struct {
	impacts map[string]float64
}

// NewPermanentTracker creates an empty tracker.
func NewPermanentTracker() *PermanentTracker {
	return &PermanentTracker{
		impacts: make(map[string]float64),
	}
}

// Record accumulates the permanent component of one fill. The sign follows
// the trade direction: buying adds upward pressure, selling downward.
func (t *PermanentTracker) Record(symbol string, permanent float64, isBuy bool) {
	if isBuy {
		t.impacts[symbol] += permanent
	} else {
		t.impacts[symbol] -= permanent
	}
}

// Multiplier returns the price multiplier subsequent fills of symbol should
// apply on top of the quoted price: 1.0 when no pressure has accumulated.
func (t *PermanentTracker) Multiplier(symbol string) float64 {
	return 1.0 + t.impacts[symbol]
}

// Cumulative returns the raw signed impact fraction stored for symbol.
func (t *PermanentTracker) Cumulative(symbol string) float64 {
	return t.impacts[symbol]
}

// Decay scales every stored fraction by rate, modeling mean reversion of
// price pressure. Typical rates are 0.95-0.99 applied once per trading day.
func (t *PermanentTracker) Decay(rate float64) {
	for symbol := range t.impacts {
		t.impacts[symbol] *= rate
	}
}
