package nowiggle

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-pk/pk/conv"
	"github.com/cwbudde/algo-pk/pk/core"
	"github.com/cwbudde/algo-pk/pk/interp"
	"github.com/cwbudde/algo-pk/pk/window"
)

const (
	defaultFilterSamples = 512
	defaultFilterWidth   = 0.25
)

// FilterConfig holds the numerical de-wiggling parameters.
type FilterConfig struct {
	Samples int     // uniform ln k samples used for smoothing
	Width   float64 // Gaussian standard deviation in ln k
}

// DefaultFilterConfig returns the engine defaults.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{Samples: defaultFilterSamples, Width: defaultFilterWidth}
}

// Filter removes oscillatory features from ln P by Gaussian smoothing of
// its ratio to a smooth reference in ln k.
type Filter struct {
	cfg FilterConfig
}

// NewFilter validates cfg and returns a filter.
func NewFilter(cfg FilterConfig) (*Filter, error) {
	if cfg.Samples < 16 {
		return nil, fmt.Errorf("nowiggle: filter needs at least 16 samples: %d", cfg.Samples)
	}
	if !(cfg.Width > 0) {
		return nil, fmt.Errorf("nowiggle: filter width must be > 0: %g", cfg.Width)
	}
	return &Filter{cfg: cfg}, nil
}

// Apply returns ln P_nw on the lnK grid given ln P and the smooth reference
// ln P_ref on the same grid:
//
//	ln P_nw = ln P_ref + G * (ln P - ln P_ref)
//
// where G is a Gaussian in ln k.
func (f *Filter) Apply(lnK, lnPk, lnRef []float64) ([]float64, error) {
	if len(lnK) != len(lnPk) || len(lnK) != len(lnRef) {
		return nil, fmt.Errorf("nowiggle: grid length mismatch: %d, %d, %d", len(lnK), len(lnPk), len(lnRef))
	}
	if n := core.FinitePrefix(lnPk); n != len(lnPk) {
		return nil, fmt.Errorf("%w: ln P not finite at k=%g", ErrZeroSpectrum, math.Exp(lnK[n]))
	}

	ratio := make([]float64, len(lnK))
	for i := range ratio {
		ratio[i] = lnPk[i] - lnRef[i]
	}

	s, err := interp.NewSpline(lnK, ratio)
	if err != nil {
		return nil, fmt.Errorf("nowiggle: ratio spline: %w", err)
	}

	lo, hi := lnK[0], lnK[len(lnK)-1]
	n := f.cfg.Samples
	step := (hi - lo) / float64(n-1)

	uniform := make([]float64, n)
	grid := make([]float64, n)
	for i := range uniform {
		grid[i] = lo + float64(i)*step
		if i == n-1 {
			grid[i] = hi
		}
		if uniform[i], err = s.At(grid[i]); err != nil {
			return nil, err
		}
	}

	kernel, err := window.Gauss(f.cfg.Width / step)
	if err != nil {
		return nil, err
	}
	if len(kernel)/2 >= n {
		return nil, fmt.Errorf("nowiggle: smoothing width %g wider than the ln k range %g", f.cfg.Width, hi-lo)
	}

	smooth, err := conv.Smooth(uniform, kernel)
	if err != nil {
		return nil, err
	}

	back, err := interp.NewSpline(grid, smooth)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(lnK))
	for i, x := range lnK {
		v, err := back.At(x)
		if err != nil {
			return nil, err
		}
		out[i] = lnRef[i] + v
	}

	return out, nil
}
