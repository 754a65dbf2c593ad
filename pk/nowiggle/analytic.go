package nowiggle

import (
	"errors"
	"fmt"

	"github.com/katalvlaran/lvlath/matrix"

	"github.com/cwbudde/algo-pk/pk/core"
)

// Errors returned by the no-wiggle builders.
var (
	ErrTooFewSamples = errors.New("nowiggle: not enough samples for fit")
	ErrZeroSpectrum  = errors.New("nowiggle: spectrum vanishes inside the smoothing range")
)

// MaxOrder is the largest polynomial order accepted by [FitPolynomial].
const MaxOrder = 5

// FitPolynomial returns the least-squares coefficients c of
// y ~ sum_j c[j] * t^j, where t maps [x[0], x[len-1]] onto [-1, 1].
func FitPolynomial(x, y []float64, order int) ([]float64, error) {
	if order < 0 || order > MaxOrder {
		return nil, fmt.Errorf("nowiggle: polynomial order must be in [0,%d]: %d", MaxOrder, order)
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("nowiggle: %d abscissae for %d values", len(x), len(y))
	}
	if len(x) <= order {
		return nil, fmt.Errorf("%w: %d points for order %d", ErrTooFewSamples, len(x), order)
	}

	lo, hi := x[0], x[len(x)-1]
	cols := order + 1

	a, err := matrix.NewDense(len(x), cols)
	if err != nil {
		return nil, fmt.Errorf("nowiggle: design matrix: %w", err)
	}
	for i, xi := range x {
		t := scaled(xi, lo, hi)
		pow := 1.0
		for j := 0; j < cols; j++ {
			if err := a.Set(i, j, pow); err != nil {
				return nil, fmt.Errorf("nowiggle: design matrix: %w", err)
			}
			pow *= t
		}
	}

	at, err := matrix.Transpose(a)
	if err != nil {
		return nil, fmt.Errorf("nowiggle: transpose: %w", err)
	}
	normal, err := matrix.Mul(at, a)
	if err != nil {
		return nil, fmt.Errorf("nowiggle: normal matrix: %w", err)
	}
	inv, err := matrix.Inverse(normal)
	if err != nil {
		return nil, fmt.Errorf("nowiggle: normal matrix inverse: %w", err)
	}
	rhs, err := matrix.MatVec(at, y)
	if err != nil {
		return nil, fmt.Errorf("nowiggle: right-hand side: %w", err)
	}

	coeffs, err := matrix.MatVec(inv, rhs)
	if err != nil {
		return nil, fmt.Errorf("nowiggle: solve: %w", err)
	}

	return coeffs, nil
}

func scaled(x, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	return (2*x - lo - hi) / (hi - lo)
}

// Analytic is a smooth, wiggle-free model of ln P(k): an analytic shape
// corrected by a polynomial in ln k fitted to a reference spectrum. The
// polynomial is held at its end values outside the fitted range.
type Analytic struct {
	shape  func(lnK float64) float64
	coeffs []float64
	lo, hi float64
}

// NewAnalytic fits ln P - shape over the finite samples of (lnK, lnPk).
// shape returns the logarithm of the analytic no-wiggle spectrum up to an
// additive constant.
func NewAnalytic(lnK, lnPk []float64, shape func(lnK float64) float64, order int) (*Analytic, error) {
	if shape == nil {
		return nil, errors.New("nowiggle: nil shape")
	}
	if len(lnK) != len(lnPk) {
		return nil, fmt.Errorf("nowiggle: %d wavenumbers for %d values", len(lnK), len(lnPk))
	}

	n := core.FinitePrefix(lnPk)
	x := lnK[:n]
	resid := make([]float64, n)
	for i := range resid {
		resid[i] = lnPk[i] - shape(x[i])
	}

	coeffs, err := FitPolynomial(x, resid, order)
	if err != nil {
		return nil, err
	}

	return &Analytic{shape: shape, coeffs: coeffs, lo: x[0], hi: x[n-1]}, nil
}

// LnPower returns the no-wiggle ln P at ln k.
func (a *Analytic) LnPower(lnK float64) float64 {
	t := scaled(core.Clamp(lnK, a.lo, a.hi), a.lo, a.hi)

	poly := 0.0
	for j := len(a.coeffs) - 1; j >= 0; j-- {
		poly = poly*t + a.coeffs[j]
	}

	return a.shape(lnK) + poly
}

// Coefficients returns the fitted polynomial coefficients.
func (a *Analytic) Coefficients() []float64 {
	return append([]float64(nil), a.coeffs...)
}
