package nonlinear

import (
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-pk/cosmo"
	"github.com/cwbudde/algo-pk/pk/core"
	"github.com/cwbudde/algo-pk/pk/interp"
	"github.com/cwbudde/algo-pk/pk/window"
)

// Critical density today in units of h^2 Msun / Mpc^3.
const rhoCrit0 = 2.775e11

// Sheth-Tormen mass function parameters.
const (
	stNorm = 0.2162
	stA    = 0.707
	stP    = 0.3
)

// HMcodeVersion selects the calibration of the halo-model fit.
type HMcodeVersion int

const (
	// HMcode2015 uses the Mead et al. (2015) parameter fits.
	HMcode2015 HMcodeVersion = iota
	// HMcode2020 uses the Mead et al. (2021) fits. Its two-halo term is
	// built from the BAO-damped spectrum P_nw + (P_lin - P_nw) exp(-k^2 sigma_v^2).
	HMcode2020
	// HMcode2020Unfitted is the plain halo model of the 2020 version with
	// every fitted parameter switched off.
	HMcode2020Unfitted
	// HMcode2020Baryonic adds the gas and stellar halo components of
	// Mead et al. (2021), calibrated by the AGN heating temperature.
	HMcode2020Baryonic
)

var versionNames = [...]string{
	HMcode2015:         "2015",
	HMcode2020:         "2020",
	HMcode2020Unfitted: "2020_unfitted",
	HMcode2020Baryonic: "2020_baryonic",
}

// Dewiggled reports whether the version needs the no-wiggle spectrum.
func (v HMcodeVersion) Dewiggled() bool {
	return v == HMcode2020 || v == HMcode2020Baryonic
}

// String implements fmt.Stringer.
func (v HMcodeVersion) String() string {
	if v >= 0 && int(v) < len(versionNames) {
		return versionNames[v]
	}
	return fmt.Sprintf("hmcode_version(%d)", int(v))
}

// ParseHMcodeVersion resolves a version name as printed by String.
func ParseHMcodeVersion(name string) (HMcodeVersion, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for v, s := range versionNames {
		if s == n {
			return HMcodeVersion(v), nil
		}
	}
	return 0, fmt.Errorf("nonlinear: unknown hmcode version %q", name)
}

// Feedback selects the baryonic-feedback calibration of the concentration
// amplitude A and the halo bloating eta_0.
type Feedback int

const (
	EmuDMOnly Feedback = iota
	OWLSDMOnly
	OWLSRef
	OWLSAGN
	OWLSDBLim
	FeedbackUserDefined
)

type feedbackParams struct {
	name string
	cMin float64
	eta0 float64
}

var feedbackTable = [...]feedbackParams{
	EmuDMOnly:           {name: "emu_dmonly", cMin: 3.13, eta0: 0.603},
	OWLSDMOnly:          {name: "owls_dmonly", cMin: 3.43, eta0: 0.64},
	OWLSRef:             {name: "owls_ref", cMin: 3.01, eta0: 0.70},
	OWLSAGN:             {name: "owls_agn", cMin: 2.32, eta0: 0.76},
	OWLSDBLim:           {name: "owls_dblim", cMin: 3.13, eta0: 0.60},
	FeedbackUserDefined: {name: "user_defined"},
}

// String implements fmt.Stringer.
func (f Feedback) String() string {
	if f >= 0 && int(f) < len(feedbackTable) {
		return feedbackTable[f].name
	}
	return fmt.Sprintf("feedback(%d)", int(f))
}

// ParseFeedback resolves a feedback model name as printed by String.
func ParseFeedback(name string) (Feedback, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for f, p := range feedbackTable {
		if p.name == n {
			return Feedback(f), nil
		}
	}
	return 0, fmt.Errorf("nonlinear: unknown feedback model %q", name)
}

// Range of the AGN heating temperature the baryonic fits were calibrated on.
const (
	MinLog10THeat = 7.1
	MaxLog10THeat = 8.5
)

// HMcodeConfig holds the halo-model settings.
type HMcodeConfig struct {
	Version HMcodeVersion
	// Feedback selects the HMcode2015 concentration and bloating amplitudes.
	Feedback Feedback
	// CMin and Eta0 are read only for FeedbackUserDefined.
	CMin float64
	Eta0 float64
	// Log10THeat is log10 of the AGN heating temperature [K] of HMcode2020Baryonic.
	Log10THeat float64
	// ZInfinity is the early redshift of the dark-energy concentration correction.
	ZInfinity float64
	// ZMax bounds the formation-redshift search.
	ZMax       float64
	MassPoints int
	MassMin    float64 // [Msun]
	MassMax    float64 // [Msun]
	TolSigma   float64
	MaxIter    int
}

// DefaultHMcodeConfig returns the engine defaults.
func DefaultHMcodeConfig() HMcodeConfig {
	return HMcodeConfig{
		Version:    HMcode2020,
		Feedback:   EmuDMOnly,
		Log10THeat: 7.8,
		ZInfinity:  10,
		ZMax:       100,
		MassPoints: 128,
		MassMin:    1e2,
		MassMax:    1e18,
		TolSigma:   defaultTolSigma,
		MaxIter:    defaultMaxIter,
	}
}

// HMcode implements the Mead et al. halo-model fit.
type HMcode struct {
	cfg  HMcodeConfig
	cMin float64
	eta0 float64

	// z as a function of the growth factor, for formation redshifts.
	zOfGrowth *interp.Spline
	dMin      float64
	gInfRatio float64
	params    cosmo.Params
}

// NewHMcode tabulates the growth history of bg and returns the strategy.
func NewHMcode(bg cosmo.Background, cfg HMcodeConfig) (*HMcode, error) {
	def := DefaultHMcodeConfig()
	if cfg.MassPoints < 16 {
		cfg.MassPoints = def.MassPoints
	}
	if !(cfg.MassMin > 0) || !(cfg.MassMax > cfg.MassMin) {
		cfg.MassMin, cfg.MassMax = def.MassMin, def.MassMax
	}
	if !(cfg.ZInfinity > 0) {
		cfg.ZInfinity = def.ZInfinity
	}
	if !(cfg.ZMax > cfg.ZInfinity) {
		cfg.ZMax = math.Max(def.ZMax, 2*cfg.ZInfinity)
	}
	if !(cfg.TolSigma > 0) {
		cfg.TolSigma = def.TolSigma
	}
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = def.MaxIter
	}
	if cfg.Feedback < 0 || int(cfg.Feedback) >= len(feedbackTable) {
		return nil, fmt.Errorf("nonlinear: unknown feedback model %d", int(cfg.Feedback))
	}
	if cfg.Version < 0 || int(cfg.Version) >= len(versionNames) {
		return nil, fmt.Errorf("nonlinear: unknown hmcode version %d", int(cfg.Version))
	}
	if cfg.Version == HMcode2020Baryonic && !(cfg.Log10THeat >= MinLog10THeat && cfg.Log10THeat <= MaxLog10THeat) {
		return nil, fmt.Errorf("nonlinear: log10 T_heat must be in [%g, %g]: %g", MinLog10THeat, MaxLog10THeat, cfg.Log10THeat)
	}

	h := &HMcode{cfg: cfg, params: bg.Params()}
	fb := feedbackTable[cfg.Feedback]
	h.cMin, h.eta0 = fb.cMin, fb.eta0
	if cfg.Feedback == FeedbackUserDefined {
		if !(cfg.CMin > 0) {
			return nil, fmt.Errorf("nonlinear: user-defined c_min must be > 0: %g", cfg.CMin)
		}
		h.cMin, h.eta0 = cfg.CMin, cfg.Eta0
	}

	if err := h.tabulateGrowth(bg); err != nil {
		return nil, err
	}

	return h, nil
}

func (h *HMcode) tabulateGrowth(bg cosmo.Background) error {
	const n = 256

	zs := core.LogSpace(1, 1+h.cfg.ZMax, n)
	growth := make([]float64, n)
	redshift := make([]float64, n)
	for i := range zs {
		// Ascending growth means descending redshift.
		z := zs[n-1-i] - 1
		tau, err := bg.TauOfZ(z)
		if err != nil {
			return fmt.Errorf("nonlinear: growth table at z=%g: %w", z, err)
		}
		st, err := bg.At(tau)
		if err != nil {
			return fmt.Errorf("nonlinear: growth table at z=%g: %w", z, err)
		}
		growth[i] = st.Growth
		redshift[i] = z
	}

	s, err := interp.NewSpline(growth, redshift)
	if err != nil {
		return fmt.Errorf("nonlinear: growth history not monotonic: %w", err)
	}
	h.zOfGrowth = s
	h.dMin = growth[0]

	tauInf, err := bg.TauOfZ(h.cfg.ZInfinity)
	if err != nil {
		return fmt.Errorf("nonlinear: growth at z_infinity=%g: %w", h.cfg.ZInfinity, err)
	}
	stInf, err := bg.At(tauInf)
	if err != nil {
		return fmt.Errorf("nonlinear: growth at z_infinity=%g: %w", h.cfg.ZInfinity, err)
	}
	h.gInfRatio = stInf.Growth / lcdmGrowth(h.params.OmegaM, 1/(1+h.cfg.ZInfinity))

	return nil
}

// lcdmGrowth is the Carroll, Press & Turner (1992) growth approximation for
// flat LCDM, normalized to 1 today.
func lcdmGrowth(om0, a float64) float64 {
	g := func(a float64) float64 {
		ol0 := 1 - om0
		e2 := om0/(a*a*a) + ol0
		om := om0 / (a * a * a) / e2
		ol := ol0 / e2
		return a * 2.5 * om / (math.Pow(om, 4.0/7) - ol + (1+om/2)*(1+ol/70))
	}
	return g(a) / g(1)
}

// Method implements Strategy.
func (h *HMcode) Method() Method { return HMcode }

// Config returns the normalized configuration.
func (h *HMcode) Config() HMcodeConfig { return h.cfg }

func tophatSigma2(s spectrum, r float64, scratch []float64) float64 {
	for i, k := range s.k {
		w := window.Eval(window.TypeTopHat, k*r)
		scratch[i] = s.delta2[i] * w * w
	}
	return core.Trapezoid(s.lnK, scratch)
}

// Spherical-collapse linear threshold in an Einstein-de Sitter universe.
var deltaCEdS = 3.0 / 20 * math.Pow(12*math.Pi, 2.0/3)

// haloParams holds the version-dependent halo-model parameters at one time.
type haloParams struct {
	version HMcodeVersion
	deltaC  float64
	deltaV  float64 // virial overdensity relative to the mean density
	conc    float64 // concentration amplitude
	eta     float64 // halo bloating exponent

	fDamp float64 // two-halo damping amplitude
	kd    float64 // two-halo damping scale [1/Mpc] (2020)
	kStar float64 // one-halo damping scale [1/Mpc]
	alpha float64 // transition smoothing

	// Baryonic components: gas follows the halo above massB, stars sit at
	// the centre. Zero fStar and massB mean dark matter only.
	massB   float64 // [Msun]
	fStar   float64
	fBaryon float64
}

// bryanNorman is the Bryan & Norman (1998) virial overdensity converted to
// the mean matter density.
func bryanNorman(omz float64) float64 {
	x := omz - 1
	return (18*math.Pi*math.Pi + 82*x - 39*x*x) / omz
}

func (h *HMcode) fit(z, omz, sigma8 float64, p cosmo.Params) haloParams {
	hp := haloParams{version: h.cfg.Version}
	switch h.cfg.Version {
	case HMcode2015:
		hp.deltaC = 1.59 + 0.0314*math.Log(sigma8)
		hp.deltaV = 418 * math.Pow(omz, -0.352)
		hp.conc = h.cMin
		hp.eta = h.eta0 - 0.3*sigma8
		hp.fDamp = core.Clamp(0.188*math.Pow(sigma8, 4.29), 1e-3, 0.99)
	case HMcode2020Unfitted:
		hp.deltaC = deltaCEdS * (1 + 0.0123*math.Log10(omz))
		hp.deltaV = bryanNorman(omz)
		hp.conc = 4
		hp.alpha = 1
	default:
		hp.deltaC = deltaCEdS * (1 + 0.0123*math.Log10(omz))
		hp.deltaV = bryanNorman(omz)
		hp.conc = 5.196
		hp.eta = 0.1281 * math.Pow(sigma8, -0.3644)
		hp.fDamp = 0.2696 * math.Pow(sigma8, 0.9403)
		hp.kd = 0.05699 * math.Pow(sigma8, -1.089) * p.H
		hp.kStar = 0.05618 * math.Pow(sigma8, -1.013) * p.H
	}

	if h.cfg.Version == HMcode2020Baryonic {
		theta := h.cfg.Log10THeat - 7.8
		hp.conc = (3.44 - 0.496*theta) * math.Pow(10, z*(-0.0671-0.0371*theta))
		hp.massB = math.Pow(10, 13.87+1.81*theta+z*(-0.108+0.195*theta)) / p.H
		hp.fBaryon = p.OmegaB / p.OmegaM
		hp.fStar = math.Min((2.01-0.30*theta)*1e-2*math.Pow(10, z*(0.409+0.0224*theta)), hp.fBaryon)
	}
	return hp
}

// twoHalo returns the suppression factor of the two-halo term.
func (hp haloParams) twoHalo(k, sigmaV float64) float64 {
	switch hp.version {
	case HMcode2015:
		th := math.Tanh(k * sigmaV / math.Sqrt(hp.fDamp))
		return 1 - hp.fDamp*th*th
	case HMcode2020Unfitted:
		return 1
	default:
		x := math.Pow(k/hp.kd, 2.853)
		return 1 - hp.fDamp*x/(1+x)
	}
}

// oneHalo returns the large-scale damping factor of the one-halo term.
func (hp haloParams) oneHalo(k float64) float64 {
	switch hp.version {
	case HMcode2015:
		return 1 - math.Exp(-(k/hp.kStar)*(k/hp.kStar))
	case HMcode2020Unfitted:
		return 1
	default:
		y := math.Pow(k/hp.kStar, 4)
		return y / (1 + y)
	}
}

// Correct implements Strategy.
func (h *HMcode) Correct(in Input, corr []float64) (float64, error) {
	if err := in.validate(); err != nil {
		return 0, err
	}
	dewiggle := h.cfg.Version.Dewiggled()
	if dewiggle && len(in.LnPkNoWiggle) != len(in.LnK) {
		return 0, fmt.Errorf("%w: hmcode %s needs the no-wiggle spectrum", ErrMissingInput, h.cfg.Version)
	}

	s := newSpectrum(in.LnK, in.LnPk)
	scratch := make([]float64, len(s.k))
	sigma := func(r float64) float64 { return math.Sqrt(tophatSigma2(s, r, scratch)) }

	z := in.State.Z
	rhoBar := rhoCrit0 * in.Params.H * in.Params.H * in.Params.OmegaM
	radius := func(m float64) float64 { return math.Cbrt(3 * m / (4 * math.Pi * rhoBar)) }

	sigma8 := sigma(8 / in.Params.H)
	hp := h.fit(z, in.State.OmegaM, sigma8, in.Params)

	// sigma(R_nl) = delta_c.
	lnR, err := bisect(func(lnR float64) float64 {
		return math.Log(sigma(math.Exp(lnR)) / hp.deltaC)
	}, math.Log(radius(h.cfg.MassMin)), math.Log(radius(h.cfg.MassMax)), h.cfg.TolSigma, h.cfg.MaxIter)
	if err != nil {
		return 0, err
	}
	rnl := math.Exp(lnR)

	neff := h.effectiveIndex(s, rnl, scratch)

	// One-dimensional linear displacement.
	for i := range s.k {
		scratch[i] = s.pk[i] * s.k[i] / (6 * math.Pi * math.Pi)
	}
	sigmaV := math.Sqrt(core.Trapezoid(s.lnK, scratch))

	switch h.cfg.Version {
	case HMcode2015:
		hp.alpha = core.Clamp(2.93*math.Pow(1.77, neff), 0.5, 2)
		hp.kStar = 0.584 / sigmaV
	case HMcode2020, HMcode2020Baryonic:
		hp.alpha = core.Clamp(1.875*math.Pow(1.603, neff), 0.5, 2)
	}

	halos, err := h.haloTable(in, hp, rhoBar, z, radius, sigma)
	if err != nil {
		return 0, err
	}

	for i := 0; i < in.KSize; i++ {
		if i >= len(s.k) {
			corr[i] = 1
			continue
		}

		k := s.k[i]
		dl := s.delta2[i]

		base := dl
		if dewiggle {
			pnw := math.Exp(in.LnPkNoWiggle[i])
			pdw := pnw + (s.pk[i]-pnw)*math.Exp(-k*k*sigmaV*sigmaV)
			base = k * k * k * pdw / (2 * math.Pi * math.Pi)
		}
		twoHalo := hp.twoHalo(k, sigmaV) * base

		oneHalo := halos.power(k, hp.eta) * k * k * k / (2 * math.Pi * math.Pi)
		oneHalo *= hp.oneHalo(k)

		dnl := math.Pow(math.Pow(twoHalo, hp.alpha)+math.Pow(oneHalo, hp.alpha), 1/hp.alpha)
		corr[i] = math.Sqrt(dnl / dl)
	}

	return 1 / rnl, nil
}

// effectiveIndex returns n_eff = -3 - d ln sigma^2 / d ln R at r.
func (h *HMcode) effectiveIndex(s spectrum, r float64, scratch []float64) float64 {
	s2 := tophatSigma2(s, r, scratch)
	for i, k := range s.k {
		x := k * r
		scratch[i] = s.delta2[i] * window.Eval(window.TypeTopHat, x) * window.Derivative(window.TypeTopHat, x) * x
	}
	dlns2 := 2 * core.Trapezoid(s.lnK, scratch) / s2
	return -3 - dlns2
}

// haloes tabulates the quantities of the one-halo integral on the mass grid.
type haloes struct {
	nu      []float64
	mass    []float64 // M / rho_bar [Mpc^3]
	rs      []float64 // NFW scale radius [Mpc]
	conc    []float64
	weights []float64 // f(nu) by trapezoid weights in nu
	// bound is the mass fraction following the NFW profile; stars the
	// point-like central fraction.
	bound []float64
	stars float64
}

func (h *HMcode) haloTable(in Input, hp haloParams, rhoBar, z float64,
	radius func(float64) float64, sigma func(float64) float64,
) (haloes, error) {
	n := h.cfg.MassPoints
	masses := core.LogSpace(h.cfg.MassMin, h.cfg.MassMax, n)

	growthZ := in.State.Growth
	dark := math.Abs(in.State.W+1) > 1e-6

	t := haloes{
		nu:      make([]float64, n),
		mass:    make([]float64, n),
		rs:      make([]float64, n),
		conc:    make([]float64, n),
		weights: make([]float64, n),
		bound:   make([]float64, n),
		stars:   hp.fStar,
	}

	for i, m := range masses {
		t.nu[i] = hp.deltaC / sigma(radius(m))
		t.mass[i] = m / rhoBar

		t.bound[i] = 1
		if hp.massB > 0 {
			x := (m / hp.massB) * (m / hp.massB)
			t.bound[i] = 1 - hp.fBaryon + (hp.fBaryon-hp.fStar)*x/(1+x)
		}

		// Bullock et al. (2001) formation redshift from the collapse of 1% of the mass.
		zf := z
		target := growthZ * hp.deltaC / sigma(radius(0.01*m))
		if target < growthZ {
			if target <= h.dMin {
				zf = h.cfg.ZMax
			} else {
				v, err := h.zOfGrowth.At(target)
				if err != nil {
					return haloes{}, fmt.Errorf("nonlinear: formation redshift: %w", err)
				}
				zf = math.Max(v, z)
			}
		}
		c := hp.conc * (1 + zf) / (1 + z)
		if dark {
			c *= h.gInfRatio
		}
		t.conc[i] = c

		rv := math.Cbrt(3 * m / (4 * math.Pi * rhoBar * hp.deltaV))
		t.rs[i] = rv / c
	}

	for i := 0; i < n; i++ {
		var dnu float64
		if i > 0 {
			dnu += 0.5 * math.Max(t.nu[i]-t.nu[i-1], 0)
		}
		if i < n-1 {
			dnu += 0.5 * math.Max(t.nu[i+1]-t.nu[i], 0)
		}
		t.weights[i] = shethTormen(t.nu[i]) * dnu
	}

	return t, nil
}

// shethTormen is the mass function f(nu), normalized to unit integral over nu.
func shethTormen(nu float64) float64 {
	anu2 := stA * nu * nu
	return stNorm * (1 + math.Pow(anu2, -stP)) * math.Exp(-anu2/2)
}

// power returns the one-halo power P_1h(k) [Mpc^3] with halo bloating eta.
func (t haloes) power(k, eta float64) float64 {
	sum := 0.0
	for i := range t.nu {
		u := t.bound[i]*nfwWindow(math.Pow(t.nu[i], eta)*k, t.rs[i], t.conc[i]) + t.stars
		sum += t.weights[i] * t.mass[i] * u * u
	}
	return sum
}

// nfwWindow is the normalized Fourier transform of a truncated NFW profile.
func nfwWindow(k, rs, c float64) float64 {
	ks := k * rs
	if ks < 1e-3 {
		return 1
	}

	siA, ciA := sineCosineIntegrals(ks)
	siB, ciB := sineCosineIntegrals((1 + c) * ks)
	sin, cos := math.Sincos(ks)

	num := sin*(siB-siA) + cos*(ciB-ciA) - math.Sin(c*ks)/((1+c)*ks)
	return num / (math.Log(1+c) - c/(1+c))
}
