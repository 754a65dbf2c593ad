package table

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-pk/pk/interp"
)

// ErrNotSplined is returned when time interpolation is requested before
// [Tensor.SplineTime] has run.
var ErrNotSplined = errors.New("table: second derivatives not computed")

// Tensor is a dense time x k x pair array stored row-major with time as the
// slowest index. Each time row ("slab") has width K()*Pairs().
type Tensor struct {
	nTau  int
	nK    int
	nPair int

	values []float64
	dd     []float64
	lnTau  []float64
}

// New allocates a zeroed tensor.
func New(nTau, nK, nPair int) (*Tensor, error) {
	if nTau <= 0 || nK <= 0 || nPair <= 0 {
		return nil, fmt.Errorf("table: dimensions must be > 0: %d x %d x %d", nTau, nK, nPair)
	}

	return &Tensor{
		nTau:   nTau,
		nK:     nK,
		nPair:  nPair,
		values: make([]float64, nTau*nK*nPair),
	}, nil
}

// Dims returns the time, k and pair sizes.
func (t *Tensor) Dims() (nTau, nK, nPair int) {
	return t.nTau, t.nK, t.nPair
}

// Width returns the number of values in one time slab.
func (t *Tensor) Width() int {
	return t.nK * t.nPair
}

// Index returns the flat offset of (tau, k, pair).
func (t *Tensor) Index(tau, k, pair int) int {
	return (tau*t.nK+k)*t.nPair + pair
}

// At returns the value at (tau, k, pair).
func (t *Tensor) At(tau, k, pair int) float64 {
	return t.values[t.Index(tau, k, pair)]
}

// Slab returns the writable time row tau.
func (t *Tensor) Slab(tau int) []float64 {
	w := t.Width()
	return t.values[tau*w : (tau+1)*w]
}

// SplineTime computes natural-spline second derivatives along ln tau for
// every (k, pair) column. lnTau must have one entry per time row. A single
// time row is accepted and can only be read back at that exact time.
func (t *Tensor) SplineTime(lnTau []float64) error {
	if len(lnTau) != t.nTau {
		return fmt.Errorf("table: %d times for %d rows", len(lnTau), t.nTau)
	}

	t.lnTau = append(t.lnTau[:0], lnTau...)
	if t.dd == nil {
		t.dd = make([]float64, len(t.values))
	}
	if t.nTau == 1 {
		return nil
	}

	return interp.NaturalColumns(t.lnTau, t.values, t.dd, t.Width())
}

// InterpolateTime writes the slab interpolated at lnTau into dst, which must
// have length Width().
func (t *Tensor) InterpolateTime(lnTau float64, dst []float64) error {
	if t.lnTau == nil {
		return ErrNotSplined
	}
	if len(dst) != t.Width() {
		return fmt.Errorf("table: destination length %d, want %d", len(dst), t.Width())
	}

	if t.nTau == 1 {
		if lnTau != t.lnTau[0] {
			return fmt.Errorf("%w: %g, only %g tabulated", interp.ErrOutOfRange, lnTau, t.lnTau[0])
		}
		copy(dst, t.values)
		return nil
	}

	return interp.EvalColumns(t.lnTau, t.values, t.dd, lnTau, dst)
}
