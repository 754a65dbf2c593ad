package sigma

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-pk/pk/window"
)

const (
	defaultKPerDecade = 40.0
	defaultMaxPoints  = 1 << 16
	defaultRelTol     = 1e-6
	minIntervals      = 8
)

// Errors returned by the variance integrator.
var (
	ErrInvalidRadius     = errors.New("sigma: radius must be > 0")
	ErrNotConverged      = errors.New("sigma: quadrature did not converge")
	ErrUnsupportedWindow = errors.New("sigma: window has no derivative")
	ErrEmptySpectrum     = errors.New("sigma: spectrum has no support")
)

// Output selects the smoothed-field statistic.
type Output int

const (
	// Sigma is the rms density contrast in spheres of radius R.
	Sigma Output = iota
	// SigmaPrime is the logarithmic slope d ln(sigma) / d ln(R).
	SigmaPrime
	// SigmaDisp is the rms one-dimensional linear displacement [Mpc].
	SigmaDisp
)

// String implements fmt.Stringer.
func (o Output) String() string {
	switch o {
	case Sigma:
		return "sigma"
	case SigmaPrime:
		return "sigma_prime"
	case SigmaDisp:
		return "sigma_disp"
	default:
		return fmt.Sprintf("output(%d)", int(o))
	}
}

// Spectrum is a linear power spectrum P(k) [Mpc^3] sampled on a finite
// range of ln k.
type Spectrum interface {
	// Domain returns the integration bounds in ln k.
	Domain() (lnKMin, lnKMax float64)
	// Power returns P(k) at ln k inside the domain.
	Power(lnK float64) float64
}

// Config holds quadrature parameters.
type Config struct {
	KPerDecade float64 // initial samples per decade in k
	MaxPoints  int     // largest number of quadrature intervals tried
	RelTol     float64 // relative change between refinements accepted as converged
	Window     window.Type
}

// DefaultConfig returns the settings used by the engine.
func DefaultConfig() Config {
	return Config{
		KPerDecade: defaultKPerDecade,
		MaxPoints:  defaultMaxPoints,
		RelTol:     defaultRelTol,
		Window:     window.TypeTopHat,
	}
}

func normalizeConfig(cfg Config) Config {
	if !(cfg.KPerDecade > 0) {
		cfg.KPerDecade = defaultKPerDecade
	}
	if cfg.MaxPoints <= 0 {
		cfg.MaxPoints = defaultMaxPoints
	}
	if !(cfg.RelTol > 0) {
		cfg.RelTol = defaultRelTol
	}
	return cfg
}

// Calculator evaluates smoothed variances. It holds no mutable state and is
// safe for concurrent use.
type Calculator struct {
	cfg Config
}

// NewCalculator creates a calculator; non-positive settings take defaults.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: normalizeConfig(cfg)}
}

// Config returns the normalized configuration.
func (c *Calculator) Config() Config {
	return c.cfg
}

// Compute is a one-shot evaluation with cfg.
func Compute(p Spectrum, r float64, out Output, cfg Config) (float64, error) {
	return NewCalculator(cfg).Compute(p, r, out)
}

// Compute returns the requested statistic of p smoothed on radius r [Mpc].
func (c *Calculator) Compute(p Spectrum, r float64, out Output) (float64, error) {
	if !(r > 0) || math.IsInf(r, 1) {
		return 0, fmt.Errorf("%w: %g", ErrInvalidRadius, r)
	}
	if out == SigmaPrime && !window.Info(c.cfg.Window).Differentiable {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedWindow, c.cfg.Window)
	}

	lo, hi := p.Domain()
	if !(hi > lo) {
		return 0, fmt.Errorf("%w: ln k in [%g, %g]", ErrEmptySpectrum, lo, hi)
	}

	n := int(math.Ceil((hi - lo) / math.Ln10 * c.cfg.KPerDecade))
	if n < minIntervals {
		n = minIntervals
	}
	n += n % 2

	var prevI, prevJ float64
	for iter := 0; ; iter++ {
		if n > c.cfg.MaxPoints {
			return 0, fmt.Errorf("%w: %s at R=%g after %d intervals", ErrNotConverged, out, r, n/2)
		}

		i, j := c.integrate(p, r, out, lo, hi, n)
		if iter > 0 && converged(i, prevI, c.cfg.RelTol) && (out != SigmaPrime || converged(j, prevJ, c.cfg.RelTol)) {
			return finish(out, i, j)
		}

		prevI, prevJ = i, j
		n *= 2
	}
}

func converged(cur, prev, tol float64) bool {
	return math.Abs(cur-prev) <= tol*math.Abs(cur)
}

func finish(out Output, i, j float64) (float64, error) {
	switch out {
	case SigmaPrime:
		if i <= 0 {
			return 0, ErrEmptySpectrum
		}
		return j / i, nil
	default:
		return math.Sqrt(math.Max(i, 0)), nil
	}
}

// integrate applies composite Simpson on n (even) intervals of ln k. The
// first result is the variance integral selected by out; the second is the
// window-derivative moment used by SigmaPrime.
func (c *Calculator) integrate(p Spectrum, r float64, out Output, lo, hi float64, n int) (float64, float64) {
	h := (hi - lo) / float64(n)
	weights := make([]float64, n+1)
	fi := make([]float64, n+1)

	var fj []float64
	if out == SigmaPrime {
		fj = make([]float64, n+1)
	}

	ks := make([]float64, n+1)
	xs := make([]float64, n+1)
	for m := 0; m <= n; m++ {
		switch {
		case m == 0 || m == n:
			weights[m] = h / 3
		case m%2 == 1:
			weights[m] = 4 * h / 3
		default:
			weights[m] = 2 * h / 3
		}

		lnk := lo + float64(m)*h
		if m == n {
			lnk = hi
		}
		ks[m] = math.Exp(lnk)
		xs[m] = ks[m] * r
		fi[m] = p.Power(lnk)
	}

	ws := make([]float64, n+1)
	window.EvalBlock(c.cfg.Window, ws, xs)

	for m, k := range ks {
		pk, w := fi[m], ws[m]
		switch out {
		case SigmaDisp:
			fi[m] = pk * k * w * w / (6 * math.Pi * math.Pi)
		default:
			delta2 := k * k * k * pk / (2 * math.Pi * math.Pi)
			fi[m] = delta2 * w * w
			if fj != nil {
				fj[m] = delta2 * w * window.Derivative(c.cfg.Window, xs[m]) * xs[m]
			}
		}
	}

	i := vecmath.DotProduct(weights, fi)
	if fj == nil {
		return i, 0
	}
	return i, vecmath.DotProduct(weights, fj)
}
