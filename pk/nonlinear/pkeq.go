package nonlinear

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-pk/cosmo"
	"github.com/cwbudde/algo-pk/pk/core"
	"github.com/cwbudde/algo-pk/pk/interp"
)

// ZRecombination is the redshift the equivalent distances are matched to.
const ZRecombination = 1090.0

const (
	pkEqSamples = 257
	pkEqWMin    = -3.0
	pkEqWMax    = 0.5
	pkEqTol     = 1e-8
)

// PkEq tabulates the equivalent constant-w cosmology of a dynamical dark
// energy history (McDonald, Trac & Contaldi 2006) over conformal time.
//
// At each time tau the equivalent model is flat, shares h, the matter and
// radiation densities of the true model, and has the constant w for which
// the conformal distance from tau back to recombination equals the true one.
type PkEq struct {
	lnTau []float64
	w     *interp.Spline
	om    *interp.Spline
}

// NewPkEq solves for the equivalent cosmology of bg at size log-spaced
// conformal times in [tauMin, tauMax].
func NewPkEq(bg cosmo.Background, tauMin, tauMax float64, size int) (*PkEq, error) {
	if !(tauMin > 0) || !(tauMax > tauMin) {
		return nil, fmt.Errorf("nonlinear: invalid pk_eq time range [%g, %g]", tauMin, tauMax)
	}
	if size < 2 {
		return nil, fmt.Errorf("nonlinear: pk_eq table needs at least two times, got %d", size)
	}

	h, err := newHistory(bg)
	if err != nil {
		return nil, err
	}
	if !(tauMin > h.tauRec) {
		return nil, fmt.Errorf("nonlinear: pk_eq time %g precedes recombination (tau=%g)", tauMin, h.tauRec)
	}

	taus := core.LogSpace(tauMin, tauMax, size)
	p := &PkEq{lnTau: make([]float64, size)}
	ws := make([]float64, size)
	oms := make([]float64, size)
	for i, tau := range taus {
		w, om, err := h.equivalent(tau)
		if err != nil {
			return nil, fmt.Errorf("nonlinear: pk_eq at tau=%g: %w", tau, err)
		}
		p.lnTau[i] = math.Log(tau)
		ws[i] = w
		oms[i] = om
	}

	if p.w, err = interp.NewSpline(p.lnTau, ws); err != nil {
		return nil, err
	}
	if p.om, err = interp.NewSpline(p.lnTau, oms); err != nil {
		return nil, err
	}
	return p, nil
}

// history reads the true expansion from a background.
type history struct {
	bg      cosmo.Background
	omegaM0 float64
	omegaD0 float64
	tauRec  float64
}

func newHistory(bg cosmo.Background) (*history, error) {
	h := &history{bg: bg, omegaM0: bg.Params().OmegaM}
	if !(h.omegaM0 > 0) {
		return nil, fmt.Errorf("nonlinear: pk_eq needs Omega_m > 0, got %g", h.omegaM0)
	}

	tau0, err := bg.TauOfZ(0)
	if err != nil {
		return nil, fmt.Errorf("nonlinear: pk_eq today: %w", err)
	}
	today, err := bg.At(tau0)
	if err != nil {
		return nil, fmt.Errorf("nonlinear: pk_eq today: %w", err)
	}
	h.omegaD0 = today.OmegaDE

	if h.tauRec, err = bg.TauOfZ(ZRecombination); err != nil {
		return nil, fmt.Errorf("nonlinear: pk_eq recombination: %w", err)
	}
	return h, nil
}

// equivalent returns the constant w and the matter density parameter at tau
// of the equivalent model.
func (h *history) equivalent(tau float64) (w, omegaM float64, err error) {
	taus := core.LogSpace(h.tauRec, tau, pkEqSamples)
	lnTau := make([]float64, pkEqSamples)
	zp1 := make([]float64, pkEqSamples)
	eTrue := make([]float64, pkEqSamples)
	rest := make([]float64, pkEqSamples) // E^2 without dark energy
	for i, t := range taus {
		st, err := h.bg.At(t)
		if err != nil {
			return 0, 0, err
		}
		if !(st.OmegaM > 0) {
			return 0, 0, fmt.Errorf("matter density vanishes at tau=%g", t)
		}
		zp1[i] = 1 + st.Z
		e2 := h.omegaM0 * zp1[i] * zp1[i] * zp1[i] / st.OmegaM
		eTrue[i] = math.Sqrt(e2)
		rest[i] = e2 * (1 - st.OmegaDE)
		lnTau[i] = math.Log(t)
	}

	e2Eq := func(i int, w float64) float64 {
		return rest[i] + h.omegaD0*math.Pow(zp1[i], 3*(1+w))
	}
	integrand := make([]float64, pkEqSamples)
	// Decreasing in w: more dark energy in the past shortens the distance.
	mismatch := func(w float64) float64 {
		for i := range integrand {
			integrand[i] = (eTrue[i]/math.Sqrt(e2Eq(i, w)) - 1) * taus[i]
		}
		return core.Trapezoid(lnTau, integrand)
	}

	lo, hi := pkEqWMin, pkEqWMax
	flo, fhi := mismatch(lo), mismatch(hi)
	if flo < 0 || fhi > 0 {
		return 0, 0, fmt.Errorf("%w: no equivalent w in [%g, %g]", ErrNotConverged, lo, hi)
	}
	for hi-lo > pkEqTol {
		mid := 0.5 * (lo + hi)
		if mismatch(mid) > 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	w = 0.5 * (lo + hi)

	last := pkEqSamples - 1
	omegaM = h.omegaM0 * zp1[last] * zp1[last] * zp1[last] / e2Eq(last, w)
	return w, omegaM, nil
}

// At returns the equivalent w and the equivalent Omega_m(tau).
func (p *PkEq) At(tau float64) (w, omegaM float64, err error) {
	lt := math.Log(tau)
	if w, err = p.w.At(lt); err != nil {
		return 0, 0, fmt.Errorf("nonlinear: pk_eq at tau=%g: %w", tau, err)
	}
	if omegaM, err = p.om.At(lt); err != nil {
		return 0, 0, fmt.Errorf("nonlinear: pk_eq at tau=%g: %w", tau, err)
	}
	return w, omegaM, nil
}

// Wrap returns a strategy that evaluates s in the equivalent cosmology of
// each input's time.
func (p *PkEq) Wrap(s Strategy) Strategy {
	return &pkEqStrategy{eq: p, inner: s}
}

type pkEqStrategy struct {
	eq    *PkEq
	inner Strategy
}

func (s *pkEqStrategy) Method() Method { return s.inner.Method() }

func (s *pkEqStrategy) Correct(in Input, corr []float64) (float64, error) {
	w, om, err := s.eq.At(in.State.Tau)
	if err != nil {
		return 0, err
	}

	in.State.OmegaM = om
	in.State.OmegaDE = 1 - om
	in.State.W = w

	return s.inner.Correct(in, corr)
}
