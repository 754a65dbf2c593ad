package nonlinear

import (
	"math"

	"github.com/cwbudde/algo-pk/pk/core"
)

const (
	defaultTolSigma = 1e-6
	defaultMaxIter  = 100
)

// HalofitConfig holds root-search settings.
type HalofitConfig struct {
	TolSigma float64 // accepted |sigma(R_nl) - 1|
	MaxIter  int
}

// Halofit implements the Takahashi et al. (2012) revision of the Smith et
// al. (2003) fitting function, with the Bird et al. (2012) massive-neutrino
// terms.
type Halofit struct {
	cfg HalofitConfig
}

// NewHalofit returns a Halofit strategy; non-positive settings take defaults.
func NewHalofit(cfg HalofitConfig) *Halofit {
	if !(cfg.TolSigma > 0) {
		cfg.TolSigma = defaultTolSigma
	}
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = defaultMaxIter
	}
	return &Halofit{cfg: cfg}
}

// Method implements Strategy.
func (h *Halofit) Method() Method { return Halofit }

// gaussMoments returns Int Delta^2 (kR)^(2j) exp(-(kR)^2) dln k for j = 0, 1, 2.
func gaussMoments(s spectrum, r float64) (i0, i2, i4 float64) {
	f0 := make([]float64, len(s.k))
	f2 := make([]float64, len(s.k))
	f4 := make([]float64, len(s.k))
	for i, k := range s.k {
		y2 := k * k * r * r
		e := s.delta2[i] * math.Exp(-y2)
		f0[i] = e
		f2[i] = e * y2
		f4[i] = e * y2 * y2
	}
	return core.Trapezoid(s.lnK, f0), core.Trapezoid(s.lnK, f2), core.Trapezoid(s.lnK, f4)
}

// Correct implements Strategy.
func (h *Halofit) Correct(in Input, corr []float64) (float64, error) {
	if err := in.validate(); err != nil {
		return 0, err
	}

	s := newSpectrum(in.LnK, in.LnPk)

	// sigma_G(R) = 1 defines R_nl; sigma decreases with R.
	f := func(lnR float64) float64 {
		i0, _, _ := gaussMoments(s, math.Exp(lnR))
		return math.Log(i0) / 2
	}
	lnR, err := bisect(f, -math.Log(s.kMax()), -math.Log(s.kMin()), h.cfg.TolSigma, h.cfg.MaxIter)
	if err != nil {
		return 0, err
	}

	rnl := math.Exp(lnR)
	i0, i2, i4 := gaussMoments(s, rnl)
	neff := -3 + 2*i2/i0
	c := 4*i2/i0 - 4*i4/i0 + 4*i2*i2/(i0*i0)

	om := in.State.OmegaM
	ov := in.State.OmegaDE
	w := in.State.W
	fnu := 0.0
	if in.Params.OmegaM > 0 {
		fnu = in.Params.OmegaNu / in.Params.OmegaM
	}

	n2 := neff * neff
	n3 := n2 * neff
	n4 := n3 * neff

	an := math.Pow(10, 1.5222+2.8553*neff+2.3706*n2+0.9903*n3+0.2250*n4-0.6038*c+0.1749*ov*(1+w))
	bn := math.Pow(10, -0.5642+0.5864*neff+0.5716*n2-1.5474*c+0.2279*ov*(1+w))
	cn := math.Pow(10, 0.3698+2.0404*neff+0.8161*n2+0.5869*c)
	gamma := 0.1971 - 0.0843*neff + 0.8460*c
	alpha := math.Abs(6.0835 + 1.3373*neff - 0.1959*n2 - 5.5274*c)
	beta := 2.0379 - 0.7354*neff + 0.3157*n2 + 1.2490*n3 + 0.3980*n4 - 0.1682*c + fnu*(-6.4868+1.4373*n2)
	nu := math.Pow(10, 5.2105+3.6902*neff)
	const mu = 0.0

	frac := 0.0
	if om < 1 {
		frac = ov / (1 - om)
	}
	f1 := frac*math.Pow(om, -0.0307) + (1-frac)*math.Pow(om, -0.0732)
	f2 := frac*math.Pow(om, -0.0585) + (1-frac)*math.Pow(om, -0.1423)
	f3 := frac*math.Pow(om, 0.0743) + (1-frac)*math.Pow(om, 0.0725)

	hh := in.Params.H
	for i := 0; i < in.KSize; i++ {
		if i >= len(s.k) {
			corr[i] = 1
			continue
		}

		k := s.k[i]
		dl := s.delta2[i]
		y := k * rnl

		kh := k
		if hh > 0 {
			kh = k / hh
		}
		dlNu := dl * (1 + fnu*47.48*kh*kh/(1+1.5*kh*kh))

		dq := dl * math.Pow(1+dlNu, beta) / (1 + alpha*dlNu) * math.Exp(-y/4-y*y/8)
		dh := an * math.Pow(y, 3*f1) / (1 + bn*math.Pow(y, f2) + math.Pow(cn*f3*y, 3-gamma))
		dh = dh / (1 + mu/y + nu/(y*y)) * (1 + fnu*0.977)

		corr[i] = math.Sqrt((dq + dh) / dl)
	}

	return 1 / rnl, nil
}
