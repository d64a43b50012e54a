package models

import (
	"fmt"
	"math"
)

// Cents is a euro amount in hundredths.
type Cents int64

// MaxPayment caps a single recorded payment (one billion euros).
const MaxPayment Cents = 1e9 * 100

// CentsFromFloat rounds a decimal euro amount to cents. Values outside the
// int64 range saturate instead of wrapping; NaN maps to zero.
func CentsFromFloat(v float64) Cents {
	c := math.Round(v * 100)
	switch {
	case math.IsNaN(c):
		return 0
	case c >= math.MaxInt64:
		return math.MaxInt64
	case c <= math.MinInt64:
		return math.MinInt64
	}
	return Cents(c)
}

func (c Cents) Float() float64 { return float64(c) / 100 }

func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
