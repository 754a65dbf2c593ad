package fiducial

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-pk/cosmo"
	"github.com/cwbudde/algo-pk/pk/interp"
)

// Speed of light over 100 km/s/Mpc, in Mpc.
const hubbleDistance = 2997.92458

// Start of the integration, deep in radiation domination.
const aStart = 1e-6

// ErrOutOfRange is returned for times or redshifts outside the tabulated history.
var ErrOutOfRange = errors.New("fiducial: outside tabulated history")

// Cosmology holds the parameters of a flat w0waCDM model with radiation.
type Cosmology struct {
	H        float64 // reduced Hubble constant
	OmegaB   float64
	OmegaCDM float64
	OmegaNu  float64 // massive neutrinos, counted as matter
	NuMassEV float64
	TCMB     float64 // [K]
	W0       float64
	Wa       float64
	NEff     float64
}

// Planck returns a Planck 2018-like cosmology with a cosmological constant.
func Planck() Cosmology {
	return Cosmology{
		H:        0.6736,
		OmegaB:   0.0493,
		OmegaCDM: 0.2645,
		TCMB:     2.7255,
		W0:       -1,
		NEff:     3.046,
	}
}

func (c Cosmology) validate() error {
	switch {
	case !(c.H > 0):
		return fmt.Errorf("fiducial: h must be > 0: %g", c.H)
	case c.OmegaB < 0 || c.OmegaCDM < 0 || c.OmegaNu < 0:
		return fmt.Errorf("fiducial: negative density parameter")
	case !(c.OmegaB+c.OmegaCDM+c.OmegaNu > 0):
		return fmt.Errorf("fiducial: no matter")
	case !(c.TCMB > 0):
		return fmt.Errorf("fiducial: T_cmb must be > 0: %g", c.TCMB)
	}
	return nil
}

// Background is a tabulated expansion and growth history. It implements
// [cosmo.Background].
type Background struct {
	c       Cosmology
	h0      float64 // [1/Mpc]
	omegaM  float64
	omegaR  float64
	omegaDE float64

	lnA    []float64
	tau    []float64
	growth []float64

	tauOfLnA    *interp.Spline
	lnAOfTau    *interp.Spline
	growthOfLnA *interp.Spline
}

// NewBackground integrates the history of c on steps points in ln a.
func NewBackground(c Cosmology, steps int) (*Background, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	if steps < 16 {
		steps = 2000
	}
	if c.NEff == 0 {
		c.NEff = 3.046
	}

	b := &Background{
		c:      c,
		h0:     c.H / hubbleDistance,
		omegaM: c.OmegaB + c.OmegaCDM + c.OmegaNu,
	}
	t := c.TCMB / 2.7255
	omegaGamma := 2.469e-5 * t * t * t * t / (c.H * c.H)
	b.omegaR = omegaGamma * (1 + 0.2271*c.NEff)
	b.omegaDE = 1 - b.omegaM - b.omegaR

	b.integrate(steps)

	var err error
	if b.tauOfLnA, err = interp.NewSpline(b.lnA, b.tau); err != nil {
		return nil, err
	}
	if b.lnAOfTau, err = interp.NewSpline(b.tau, b.lnA); err != nil {
		return nil, err
	}
	if b.growthOfLnA, err = interp.NewSpline(b.lnA, b.growth); err != nil {
		return nil, err
	}
	return b, nil
}

// w returns the dark-energy equation of state at scale factor a.
func (b *Background) w(a float64) float64 {
	return b.c.W0 + b.c.Wa*(1-a)
}

// e2 returns (H/H0)^2 and d ln E^2 / d ln a.
func (b *Background) e2(a float64) (e2, dlnE2 float64) {
	rho := math.Pow(a, -3*(1+b.c.W0+b.c.Wa)) * math.Exp(-3*b.c.Wa*(1-a))
	r := b.omegaR / (a * a * a * a)
	m := b.omegaM / (a * a * a)
	de := b.omegaDE * rho
	e2 = r + m + de
	dlnE2 = (-4*r - 3*m - 3*(1+b.w(a))*de) / e2
	return e2, dlnE2
}

// integrate fills conformal time and growth on a uniform ln a grid with RK4.
func (b *Background) integrate(steps int) {
	lo := math.Log(aStart)
	dx := -lo / float64(steps-1)

	b.lnA = make([]float64, steps)
	b.tau = make([]float64, steps)
	b.growth = make([]float64, steps)

	// d tau / d ln a and the growth system (D, dD/dln a).
	rhs := func(x float64, y [3]float64) [3]float64 {
		a := math.Exp(x)
		e2, dlnE2 := b.e2(a)
		om := b.omegaM / (a * a * a) / e2
		return [3]float64{
			1 / (a * b.h0 * math.Sqrt(e2)),
			y[2],
			-(2+dlnE2/2)*y[2] + 1.5*om*y[1],
		}
	}

	aEq := b.omegaR / b.omegaM
	y0 := aStart / aEq
	y := [3]float64{
		aStart / (b.h0 * math.Sqrt(b.omegaR)),
		1 + 1.5*y0,
		1.5 * y0,
	}

	for i := 0; i < steps; i++ {
		x := lo + float64(i)*dx
		if i == steps-1 {
			x = 0
		}
		b.lnA[i] = x
		b.tau[i] = y[0]
		b.growth[i] = y[1]
		if i == steps-1 {
			break
		}

		k1 := rhs(x, y)
		k2 := rhs(x+dx/2, axpy(y, k1, dx/2))
		k3 := rhs(x+dx/2, axpy(y, k2, dx/2))
		k4 := rhs(x+dx, axpy(y, k3, dx))
		for j := range y {
			y[j] += dx / 6 * (k1[j] + 2*k2[j] + 2*k3[j] + k4[j])
		}
	}

	d0 := b.growth[steps-1]
	for i := range b.growth {
		b.growth[i] /= d0
	}
}

func axpy(y, k [3]float64, h float64) [3]float64 {
	return [3]float64{y[0] + h*k[0], y[1] + h*k[1], y[2] + h*k[2]}
}

// ConformalAge returns the conformal time today [Mpc].
func (b *Background) ConformalAge() float64 {
	return b.tau[len(b.tau)-1]
}

// TauOfZ implements cosmo.Background.
func (b *Background) TauOfZ(z float64) (float64, error) {
	if z < 0 || !(z <= 1/aStart-1) {
		return 0, fmt.Errorf("%w: z=%g", ErrOutOfRange, z)
	}
	if z == 0 {
		return b.ConformalAge(), nil
	}
	return b.tauOfLnA.At(-math.Log1p(z))
}

// At implements cosmo.Background.
func (b *Background) At(tau float64) (cosmo.Snapshot, error) {
	lnA, err := b.lnAOfTau.At(tau)
	if err != nil {
		return cosmo.Snapshot{}, fmt.Errorf("%w: tau=%g", ErrOutOfRange, tau)
	}
	lnA = math.Min(lnA, 0)
	d, err := b.growthOfLnA.At(lnA)
	if err != nil {
		return cosmo.Snapshot{}, fmt.Errorf("%w: tau=%g", ErrOutOfRange, tau)
	}

	a := math.Exp(lnA)
	e2, _ := b.e2(a)
	rho := math.Pow(a, -3*(1+b.c.W0+b.c.Wa)) * math.Exp(-3*b.c.Wa*(1-a))
	return cosmo.Snapshot{
		Tau:     tau,
		Z:       1/a - 1,
		A:       a,
		OmegaM:  b.omegaM / (a * a * a) / e2,
		OmegaDE: b.omegaDE * rho / e2,
		W:       b.w(a),
		Growth:  d,
	}, nil
}

// Params implements cosmo.Background.
func (b *Background) Params() cosmo.Params {
	return cosmo.Params{
		H:        b.c.H,
		OmegaB:   b.c.OmegaB,
		OmegaCDM: b.c.OmegaCDM,
		OmegaNu:  b.c.OmegaNu,
		OmegaM:   b.omegaM,
		TCMB:     b.c.TCMB,
		KEq:      b.h0 * math.Sqrt2 * b.omegaM / math.Sqrt(b.omegaR),
		NuMassEV: b.c.NuMassEV,
	}
}
