package fourier

import (
	"math"

	"github.com/cwbudde/algo-pk/pk/core"
	"github.com/cwbudde/algo-pk/pk/interp"
)

// lnKSpline is a natural spline of ln P in ln k over the finite prefix of
// a row. Beyond that prefix the power is zero.
type lnKSpline struct {
	lnK []float64
	lnP []float64
	dd  []float64
	// end is the upper edge of the row, finite or not.
	end float64
}

func newLnKSpline(lnK, lnP []float64) *lnKSpline {
	s := &lnKSpline{end: lnK[len(lnK)-1]}
	n := core.FinitePrefix(lnP)
	if n < 2 {
		if n == 1 {
			s.lnK, s.lnP = lnK[:1], lnP[:1]
		}
		return s
	}

	s.lnK = lnK[:n]
	s.lnP = lnP[:n]
	s.dd = make([]float64, n)
	if err := interp.Natural(s.lnK, s.lnP, s.dd); err != nil {
		// Only reachable with a non-increasing grid, rejected by buildGrid.
		s.lnK, s.lnP, s.dd = nil, nil, nil
	}
	return s
}

// eval returns ln P at lnK, which must lie inside the row.
func (s *lnKSpline) eval(lnK float64) float64 {
	switch len(s.lnK) {
	case 0:
		return math.Inf(-1)
	case 1:
		if lnK == s.lnK[0] {
			return s.lnP[0]
		}
		return math.Inf(-1)
	}

	if lnK > s.lnK[len(s.lnK)-1] {
		return math.Inf(-1)
	}
	i, err := interp.Locate(s.lnK, lnK)
	if err != nil {
		return math.Inf(-1)
	}
	return interp.Segment(s.lnK[i], s.lnK[i+1], s.lnP[i], s.lnP[i+1], s.dd[i], s.dd[i+1], lnK)
}

// Domain implements sigma.Spectrum.
func (s *lnKSpline) Domain() (float64, float64) {
	if len(s.lnK) == 0 {
		return 0, 0
	}
	return s.lnK[0], s.lnK[len(s.lnK)-1]
}

// Power implements sigma.Spectrum.
func (s *lnKSpline) Power(lnK float64) float64 {
	return math.Exp(s.eval(lnK))
}
