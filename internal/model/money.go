package model

import "math"

// RoundMoney rounds to whole cents.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
