package interp

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Errors returned by spline construction and evaluation.
var (
	ErrTooFewPoints   = errors.New("interp: at least two points required")
	ErrNotMonotonic   = errors.New("interp: abscissae must be strictly increasing")
	ErrLengthMismatch = errors.New("interp: buffer length mismatch")
	ErrOutOfRange     = errors.New("interp: abscissa outside tabulated range")
)

// Natural computes the second derivatives of the natural cubic spline
// through (x, y) and stores them in dd. All three slices must have the same
// length. Two points give a straight line (dd = 0).
func Natural(x, y, dd []float64) error {
	if err := validate(x, len(y)); err != nil {
		return err
	}
	if len(dd) != len(x) {
		return ErrLengthMismatch
	}

	u := make([]float64, len(x))
	natural(x, y, 1, dd, 1, u)

	return nil
}

// natural solves the tridiagonal system for strided y and dd.
func natural(x, y []float64, ys int, dd []float64, ds int, u []float64) {
	n := len(x)
	dd[0] = 0
	u[0] = 0

	for i := 1; i < n-1; i++ {
		sig := (x[i] - x[i-1]) / (x[i+1] - x[i-1])
		p := sig*dd[(i-1)*ds] + 2
		dd[i*ds] = (sig - 1) / p
		slope := (y[(i+1)*ys]-y[i*ys])/(x[i+1]-x[i]) - (y[i*ys]-y[(i-1)*ys])/(x[i]-x[i-1])
		u[i] = (6*slope/(x[i+1]-x[i-1]) - sig*u[i-1]) / p
	}

	dd[(n-1)*ds] = 0
	for i := n - 2; i >= 0; i-- {
		dd[i*ds] = dd[i*ds]*dd[(i+1)*ds] + u[i]
	}
}

// NaturalColumns computes natural-spline second derivatives along x for every
// column of a row-major table with len(x) rows of the given width. A column
// holding a non-finite value gets zero second derivatives, which makes
// evaluation fall back to linear interpolation for it.
func NaturalColumns(x, values, dd []float64, width int) error {
	if width <= 0 {
		return fmt.Errorf("interp: column width must be > 0: %d", width)
	}
	if err := validate(x, len(values)/width); err != nil {
		return err
	}
	if len(values) != len(x)*width || len(dd) != len(values) {
		return ErrLengthMismatch
	}

	u := make([]float64, len(x))
	for c := 0; c < width; c++ {
		if !columnFinite(values, c, width) {
			for r := range x {
				dd[r*width+c] = 0
			}
			continue
		}
		natural(x, values[c:], width, dd[c:], width, u)
	}

	return nil
}

func columnFinite(values []float64, c, width int) bool {
	for i := c; i < len(values); i += width {
		v := values[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func validate(x []float64, ny int) error {
	if len(x) < 2 {
		return ErrTooFewPoints
	}
	if ny != len(x) {
		return ErrLengthMismatch
	}
	for i := 1; i < len(x); i++ {
		if !(x[i] > x[i-1]) {
			return fmt.Errorf("%w: x[%d]=%g, x[%d]=%g", ErrNotMonotonic, i-1, x[i-1], i, x[i])
		}
	}
	return nil
}

// Locate returns the index i of the segment [x[i], x[i+1]] holding xq.
func Locate(x []float64, xq float64) (int, error) {
	n := len(x)
	if n < 2 {
		return 0, ErrTooFewPoints
	}
	if math.IsNaN(xq) || xq < x[0] || xq > x[n-1] {
		return 0, fmt.Errorf("%w: %g not in [%g, %g]", ErrOutOfRange, xq, x[0], x[n-1])
	}

	i := sort.SearchFloat64s(x, xq)
	if i > 0 {
		i--
	}
	if i > n-2 {
		i = n - 2
	}
	return i, nil
}

// Segment evaluates the cubic spline piece between (x0, y0) and (x1, y1)
// with second derivatives d0 and d1 at xq.
func Segment(x0, x1, y0, y1, d0, d1, xq float64) float64 {
	h := x1 - x0
	a := (x1 - xq) / h
	b := (xq - x0) / h

	if b == 0 {
		return y0
	}
	if a == 0 {
		return y1
	}
	if math.IsInf(y0, -1) || math.IsInf(y1, -1) {
		return math.Inf(-1)
	}

	return a*y0 + b*y1 + ((a*a*a-a)*d0+(b*b*b-b)*d1)*h*h/6
}

// EvalColumns interpolates every column of a row-major table at xq and
// writes the results into dst, which must have the table width.
func EvalColumns(x, values, dd []float64, xq float64, dst []float64) error {
	width := len(dst)
	if width == 0 || len(values) != len(x)*width || len(dd) != len(values) {
		return ErrLengthMismatch
	}

	i, err := Locate(x, xq)
	if err != nil {
		return err
	}

	lo := values[i*width : (i+1)*width]
	hi := values[(i+1)*width : (i+2)*width]
	dlo := dd[i*width : (i+1)*width]
	dhi := dd[(i+1)*width : (i+2)*width]
	for c := range dst {
		dst[c] = Segment(x[i], x[i+1], lo[c], hi[c], dlo[c], dhi[c], xq)
	}

	return nil
}

// Spline is a natural cubic spline over a strictly increasing abscissa.
type Spline struct {
	x  []float64
	y  []float64
	dd []float64
}

// NewSpline builds a natural cubic spline through copies of x and y.
func NewSpline(x, y []float64) (*Spline, error) {
	s := &Spline{
		x:  append([]float64(nil), x...),
		y:  append([]float64(nil), y...),
		dd: make([]float64, len(x)),
	}
	if err := Natural(s.x, s.y, s.dd); err != nil {
		return nil, err
	}
	return s, nil
}

// At evaluates the spline at xq.
func (s *Spline) At(xq float64) (float64, error) {
	i, err := Locate(s.x, xq)
	if err != nil {
		return 0, err
	}
	return Segment(s.x[i], s.x[i+1], s.y[i], s.y[i+1], s.dd[i], s.dd[i+1], xq), nil
}

// Domain returns the first and last abscissa.
func (s *Spline) Domain() (float64, float64) {
	return s.x[0], s.x[len(s.x)-1]
}
