package utils

import (
	"math"

	"github.com/strongo/decimal"
)

// RoundFloat rounds a float64 to a specified number of decimal places.
func RoundFloat(val float64, precision uint) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}

// ToAmount converts a float to cents, rounding half away from zero.
func ToAmount(v float64) decimal.Decimal64p2 {
	return decimal.Decimal64p2(math.Round(v * 100))
}

// SumAmounts adds amounts exactly.
func SumAmounts(amounts ...decimal.Decimal64p2) decimal.Decimal64p2 {
	var total decimal.Decimal64p2
	for _, a := range amounts {
		total += a
	}
	return total
}
