package fiducial

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-pk/cosmo"
	"github.com/cwbudde/algo-pk/pk/core"
	"github.com/cwbudde/algo-pk/pk/nowiggle"
)

// Isocurvature-like modes decay above this scale [1/Mpc].
const isoScale = 0.05

// PerturbationConfig sets the sampling and content of the synthetic
// transfer functions.
type PerturbationConfig struct {
	KMin      float64 // [1/Mpc]
	KMax      float64 // [1/Mpc]
	KPoints   int
	ZMax      float64
	TauPoints int
	ICs       int
	// BAO adds a damped acoustic oscillation to the smooth transfer.
	BAO bool
	// ColdBaryon exposes a distinct cdm+baryon source when neutrinos are massive.
	ColdBaryon bool
}

// DefaultPerturbationConfig returns a single-ic setup covering z <= 5.
func DefaultPerturbationConfig() PerturbationConfig {
	return PerturbationConfig{
		KMin:       1e-4,
		KMax:       10,
		KPoints:    200,
		ZMax:       5,
		TauPoints:  40,
		ICs:        1,
		BAO:        true,
		ColdBaryon: true,
	}
}

// Perturbations provides Eisenstein-Hu shaped transfer functions scaled by
// the linear growth. It implements [cosmo.Perturbations].
type Perturbations struct {
	bg    *Background
	cfg   PerturbationConfig
	k     []float64
	tau   []float64
	shape []float64 // growth-independent part of the cb transfer
}

// NewPerturbations samples the transfer functions of bg.
func NewPerturbations(bg *Background, cfg PerturbationConfig) (*Perturbations, error) {
	if !(cfg.KMin > 0) || !(cfg.KMax > cfg.KMin) || cfg.KPoints < 2 {
		return nil, fmt.Errorf("fiducial: invalid k sampling [%g, %g] x %d", cfg.KMin, cfg.KMax, cfg.KPoints)
	}
	if cfg.ZMax < 0 || cfg.TauPoints < 1 {
		return nil, fmt.Errorf("fiducial: invalid time sampling z_max=%g x %d", cfg.ZMax, cfg.TauPoints)
	}
	if cfg.ICs < 0 {
		return nil, fmt.Errorf("fiducial: negative ic count %d", cfg.ICs)
	}

	tauMin, err := bg.TauOfZ(cfg.ZMax)
	if err != nil {
		return nil, err
	}

	p := &Perturbations{
		bg:  bg,
		cfg: cfg,
		k:   core.LogSpace(cfg.KMin, cfg.KMax, cfg.KPoints),
	}
	if cfg.TauPoints == 1 || cfg.ZMax == 0 {
		p.tau = []float64{bg.ConformalAge()}
	} else {
		p.tau = core.LogSpace(tauMin, bg.ConformalAge(), cfg.TauPoints)
	}

	par := bg.Params()
	s := nowiggle.SoundHorizon(par)
	norm := 2.0 / 5 / (par.OmegaM * bg.h0 * bg.h0)
	p.shape = make([]float64, len(p.k))
	for i, k := range p.k {
		t := nowiggle.EisensteinHu(k, par) * k * k * norm
		if cfg.BAO {
			t *= 1 + 0.05*math.Sin(k*s)*math.Exp(-math.Pow(k/0.15, 1.4))
		}
		p.shape[i] = t
	}
	return p, nil
}

// K implements cosmo.Perturbations.
func (p *Perturbations) K() []float64 { return p.k }

// Tau implements cosmo.Perturbations.
func (p *Perturbations) Tau() []float64 { return p.tau }

// ICs implements cosmo.Perturbations.
func (p *Perturbations) ICs() int { return p.cfg.ICs }

// HasColdBaryon implements cosmo.Perturbations.
func (p *Perturbations) HasColdBaryon() bool {
	return p.cfg.ColdBaryon && p.bg.c.OmegaNu > 0
}

// Transfer implements cosmo.Perturbations.
func (p *Perturbations) Transfer(t cosmo.SpectrumType, ic, iTau int) ([]float64, error) {
	if ic < 0 || ic >= p.cfg.ICs {
		return nil, fmt.Errorf("fiducial: ic %d outside [0, %d)", ic, p.cfg.ICs)
	}
	if iTau < 0 || iTau >= len(p.tau) {
		return nil, fmt.Errorf("fiducial: time index %d outside [0, %d)", iTau, len(p.tau))
	}
	if t == cosmo.ColdBaryon && !p.HasColdBaryon() {
		return nil, fmt.Errorf("fiducial: no distinct %s source", t)
	}

	st, err := p.bg.At(p.tau[iTau])
	if err != nil {
		return nil, err
	}

	par := p.bg.Params()
	fnu := par.OmegaNu / par.OmegaM
	kfs := 0.82 * math.Sqrt(st.A) * par.NuMassEV * par.H

	out := make([]float64, len(p.k))
	for i, k := range p.k {
		v := p.shape[i] * st.Growth
		if ic > 0 {
			v *= math.Pow(0.5*isoScale/(k+isoScale), float64(ic))
		}
		if t == cosmo.Matter && fnu > 0 {
			nu := 1.0
			if kfs > 0 {
				nu = 1 / (1 + (k/kfs)*(k/kfs))
			}
			v *= 1 - fnu + fnu*nu
		}
		out[i] = v
	}
	return out, nil
}
