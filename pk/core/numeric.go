package core

import "math"

const defaultEpsilon = 1e-12

// Clamp limits value to the inclusive range [min, max].
func Clamp(value, min, max float64) float64 {
	if min > max {
		min, max = max, min
	}

	if value < min {
		return min
	}

	if value > max {
		return max
	}

	return value
}

// NearlyEqual reports whether a and b are equal within eps.
func NearlyEqual(a, b, eps float64) bool {
	if eps <= 0 {
		eps = defaultEpsilon
	}

	diff := math.Abs(a - b)
	if diff <= eps {
		return true
	}

	largest := math.Max(math.Abs(a), math.Abs(b))
	if largest == 0 {
		return diff <= eps
	}

	return diff/largest <= eps
}

// IsFinite reports whether x is neither NaN nor infinite.
func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// FinitePrefix returns the length of the leading run of finite values in x.
func FinitePrefix(x []float64) int {
	for i, v := range x {
		if !IsFinite(v) {
			return i
		}
	}

	return len(x)
}

// StrictlyIncreasing reports whether x has at least one element and every
// element is larger than its predecessor.
func StrictlyIncreasing(x []float64) bool {
	if len(x) == 0 {
		return false
	}

	for i := 1; i < len(x); i++ {
		if !(x[i] > x[i-1]) {
			return false
		}
	}

	return true
}

// LogSpace returns n points logarithmically spaced between lo and hi, both
// included. lo and hi must be positive.
func LogSpace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}

	out := make([]float64, n)
	if n == 1 {
		out[0] = lo
		return out
	}

	step := math.Log(hi/lo) / float64(n-1)
	for i := range out {
		out[i] = lo * math.Exp(step*float64(i))
	}
	out[n-1] = hi

	return out
}

// Trapezoid integrates y(x) with the trapezoidal rule on a possibly
// non-uniform grid. Slices of different length are truncated to the shorter.
func Trapezoid(x, y []float64) float64 {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}

	sum := 0.0
	for i := 1; i < n; i++ {
		sum += 0.5 * (x[i] - x[i-1]) * (y[i] + y[i-1])
	}

	return sum
}

// NextPowerOf2 returns the next power of 2 >= n.
func NextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}

	p := 1
	for p < n {
		p *= 2
	}

	return p
}
