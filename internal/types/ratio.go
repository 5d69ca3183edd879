package types

import (
	"fmt"
	"math"
	"strconv"
)

// Ratio is a float64 that survives JSON round-trips even when the value is
// infinite or NaN, which the performance formulas produce as documented
// sentinels (e.g. an omega ratio with zero losses, or an overfitting ratio
// with a zero out-of-sample return). encoding/json rejects those values for
// a plain float64.
type Ratio float64

// Float64 returns the ratio as a plain float64.
func (r Ratio) Float64() float64 {
	return float64(r)
}

// IsInf reports whether the ratio is positive or negative infinity.
func (r Ratio) IsInf() bool {
	return math.IsInf(float64(r), 0)
}

// String formats the ratio for display, using the same sentinel spellings as
// the JSON form.
func (r Ratio) String() string {
	v := float64(r)

	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsNaN(v):
		return "nan"
	default:
		return strconv.FormatFloat(v, 'f', 3, 64)
	}
}

// MarshalJSON implements json.Marshaler.
func (r Ratio) MarshalJSON() ([]byte, error) {
	v := float64(r)

	switch {
	case math.IsInf(v, 1):
		return []byte(`"inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-inf"`), nil
	case math.IsNaN(v):
		return []byte(`"nan"`), nil
	default:
		return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Ratio) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"inf"`:
		*r = Ratio(math.Inf(1))
		return nil
	case `"-inf"`:
		*r = Ratio(math.Inf(-1))
		return nil
	case `"nan"`:
		*r = Ratio(math.NaN())
		return nil
	}

	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("ratio: cannot parse %q: %w", string(data), err)
	}

	*r = Ratio(v)

	return nil
}
