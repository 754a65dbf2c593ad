package fiducial

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-pk/cosmo"
)

// PrimordialConfig describes a power-law primordial spectrum shared by all
// initial conditions up to an amplitude ratio.
type PrimordialConfig struct {
	As     float64
	Ns     float64
	KPivot float64 // [1/Mpc]
	// Ratios scales the auto-spectrum of each ic; missing entries are 1.
	Ratios []float64
	// Correlation is the cosine between every pair of distinct ics.
	Correlation float64
}

// DefaultPrimordialConfig returns Planck 2018 values.
func DefaultPrimordialConfig() PrimordialConfig {
	return PrimordialConfig{As: 2.1e-9, Ns: 0.9649, KPivot: 0.05}
}

// Primordial implements [cosmo.Primordial].
type Primordial struct {
	cfg PrimordialConfig
	ics int
}

// NewPrimordial returns the spectrum for ics initial conditions.
func NewPrimordial(cfg PrimordialConfig, ics int) (*Primordial, error) {
	if !(cfg.As > 0) || !(cfg.KPivot > 0) {
		return nil, fmt.Errorf("fiducial: amplitude and pivot must be > 0: A_s=%g k_pivot=%g", cfg.As, cfg.KPivot)
	}
	if math.Abs(cfg.Correlation) > 1 {
		return nil, fmt.Errorf("fiducial: correlation outside [-1, 1]: %g", cfg.Correlation)
	}
	for i, r := range cfg.Ratios {
		if !(r > 0) {
			return nil, fmt.Errorf("fiducial: ratio %d must be > 0: %g", i, r)
		}
	}
	return &Primordial{cfg: cfg, ics: ics}, nil
}

func (p *Primordial) ratio(ic int) float64 {
	if ic < len(p.cfg.Ratios) {
		return p.cfg.Ratios[ic]
	}
	return 1
}

// Spectrum implements cosmo.Primordial.
func (p *Primordial) Spectrum(k float64, out []float64) error {
	if len(out) != cosmo.PairCount(p.ics) {
		return fmt.Errorf("fiducial: %d pair slots for %d ics", len(out), p.ics)
	}
	if !(k > 0) {
		return fmt.Errorf("fiducial: k must be > 0: %g", k)
	}

	base := p.cfg.As * math.Pow(k/p.cfg.KPivot, p.cfg.Ns-1)
	for i := 0; i < p.ics; i++ {
		for j := i; j < p.ics; j++ {
			v := base * math.Sqrt(p.ratio(i)*p.ratio(j))
			if i != j {
				v *= p.cfg.Correlation
			}
			out[cosmo.PairIndex(i, j, p.ics)] = v
		}
	}
	return nil
}
