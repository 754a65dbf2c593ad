package nonlinear

import "math"

const (
	eulerGamma      = 0.57721566490153286061
	trigSeriesLimit = 8.0
)

// sineCosineIntegrals returns Si(x) and Ci(x) for x > 0.
func sineCosineIntegrals(x float64) (si, ci float64) {
	if x <= trigSeriesLimit {
		return trigSeries(x)
	}

	// Rational approximations of the auxiliary functions f and g
	// (Abramowitz & Stegun 5.2.38, 5.2.39), absolute error below 5e-7.
	y := x * x
	f := (((y+38.027264)*y+265.187033)*y+335.677320)*y + 38.102495
	f /= x * ((((y+40.021433)*y+322.624911)*y+570.236280)*y + 157.105423)
	g := (((y+42.242855)*y+302.757865)*y+352.018498)*y + 21.821899
	g /= y * ((((y+48.196927)*y+482.485984)*y+1114.978885)*y + 449.690326)

	sin, cos := math.Sincos(x)
	return math.Pi/2 - f*cos - g*sin, f*sin - g*cos
}

func trigSeries(x float64) (si, ci float64) {
	x2 := x * x
	si = x
	ci = eulerGamma + math.Log(x)

	// term = (-1)^n x^(2n) / (2n)! for Ci, (-1)^n x^(2n+1) / (2n+1)! for Si.
	even := 1.0
	odd := x
	for n := 1; n < 60; n++ {
		even *= -x2 / float64((2*n-1)*(2*n))
		odd *= -x2 / float64((2*n)*(2*n+1))
		dc := even / float64(2*n)
		ds := odd / float64(2*n+1)
		ci += dc
		si += ds
		if math.Abs(dc) < 1e-17*math.Abs(ci) && math.Abs(ds) < 1e-17*math.Abs(si) {
			break
		}
	}

	return si, ci
}
