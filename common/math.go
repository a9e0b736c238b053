package common

import "math"

// https://stackoverflow.com/questions/18390266/how-can-we-truncate-float64-type-to-a-particular-precision
func Round(num float64) int {
	return int(num + math.Copysign(0.5, num))
}

func DecimalToFixed(num float64, precision int) float64 {
	output := math.Pow(10, float64(precision))
	return float64(Round(num*output)) / output
}

// IsFinite reports whether f is neither NaN nor ±Inf.
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// FloorDiv divides and floors, so -1/256 is -1, not 0.
func FloorDiv(v, d float64) int {
	return int(math.Floor(v / d))
}

// Mod is the always-non-negative modulus, so Mod(-1, 4) is 3.
func Mod(v, m int) int {
	if m == 0 {
		return 0
	}
	r := v % m
	if r < 0 {
		r += m
	}
	return r
}
