package utils

import "math"

func RoundWithTwoDecimalPlace(f float64) float64 {
	if f == 0 {
		return 0
	}

	return math.Round(f*100) / 100
}

// PercentChange retorna a variação percentual de from para to. O chamador
// garante from diferente de zero.
func PercentChange(from, to float64) float64 {
	return (to - from) / from * 100
}
