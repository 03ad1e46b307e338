// Package util provides small numeric and string helpers shared by the engines.
package util

import (
	"math"
	"strings"
)

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// Lerp linearly interpolates between a and b.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Clamp01 limits x to [0,1]. NaN maps to 0.
func Clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Clamp limits x to [lo,hi].
func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// EaseInOutCubic remaps a linear [0,1] factor. EaseInOutCubic(0.5) == 0.5.
func EaseInOutCubic(f float64) float64 {
	if f < 0.5 {
		return 2 * f * f
	}
	return 1 - math.Pow(-2*f+2, 2)/2
}

// Factor returns (x-a)/(b-a), or 0 when the span is empty.
func Factor(x, a, b float64) float64 {
	if b == a {
		return 0
	}
	return (x - a) / (b - a)
}

// IsFinite reports whether every value is neither NaN nor infinite.
func IsFinite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
