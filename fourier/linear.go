package fourier

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-pk/measure/sigma"
	"github.com/cwbudde/algo-pk/pk/table"
	"github.com/cwbudde/algo-pk/pk/window"
)

// Cosines this close to +-1 are stored as exactly +-1.
const correlationSnap = 1e-10

// fillPrimordial tabulates the primordial spectrum on the extended grid.
func (e *Engine) fillPrimordial() error {
	np := e.idx.PairSize
	e.prim = make([]float64, e.grid.kSizeExtra()*np)
	for i, k := range e.grid.k {
		if err := e.pm.Spectrum(k, e.prim[i*np:(i+1)*np]); err != nil {
			return fmt.Errorf("fourier: primordial spectrum at k=%g: %w", k, err)
		}
	}
	return nil
}

// primordialAt returns the primordial pair spectrum at index i of the
// extended grid.
func (e *Engine) primordialAt(i int) []float64 {
	np := e.idx.PairSize
	return e.prim[i*np : (i+1)*np]
}

// diagonalSum returns the sum of the primordial auto-spectra in prim.
func (e *Engine) diagonalSum(prim []float64) float64 {
	sum := 0.0
	for ic := 0; ic < e.idx.ICSize; ic++ {
		sum += prim[e.idx.Pair(ic, ic)]
	}
	return sum
}

func (e *Engine) workers() int {
	if e.cfg.Workers > 0 {
		return e.cfg.Workers
	}
	return len(e.grid.lnTau)
}

// assembleLinear fills, splines and normalizes the linear tables of every
// spectrum type.
func (e *Engine) assembleLinear() error {
	if err := e.fillPrimordial(); err != nil {
		return err
	}

	nTau := len(e.grid.lnTau)
	e.spectra = make([]*spectrumTables, e.idx.Size)
	for ti := range e.spectra {
		s := &spectrumTables{typ: e.idx.Type(ti)}
		var err error
		if s.lnPkIC, err = table.New(nTau, e.grid.kSize, e.idx.PairSize); err != nil {
			return err
		}
		if s.lnPk, err = table.New(nTau, e.grid.kSizeExtra(), 1); err != nil {
			return err
		}

		var g errgroup.Group
		g.SetLimit(e.workers())
		for r := 0; r < nTau; r++ {
			g.Go(func() error { return e.fillLinearRow(s, r) })
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if err := s.lnPkIC.SplineTime(e.grid.lnTau); err != nil {
			return typedError("spline linear pairs", s.typ, 0, err)
		}
		if err := s.lnPk.SplineTime(e.grid.lnTau); err != nil {
			return typedError("spline linear spectrum", s.typ, 0, err)
		}

		if s.sigma8, err = e.sigma8(s); err != nil {
			return typedError("sigma8", s.typ, 0, err)
		}
		e.logger.Info("linear spectrum", "type", s.typ, "sigma8", s.sigma8)
		e.spectra[ti] = s
	}

	return nil
}

// fillLinearRow combines transfers and primordial power at one time.
func (e *Engine) fillLinearRow(s *spectrumTables, r int) error {
	iTau := e.grid.tauOffset + r
	tau := math.Exp(e.grid.lnTau[r])
	nk := e.grid.kSize
	nIC := e.idx.ICSize

	transfers := make([][]float64, nIC)
	for ic := range transfers {
		t, err := e.pt.Transfer(s.typ, ic, iTau)
		if err != nil {
			return typedError("transfer", s.typ, tau, err)
		}
		if len(t) != nk {
			return typedError("transfer", s.typ, tau,
				fmt.Errorf("%w: %d values for %d wavenumbers", ErrInvalidConfig, len(t), nk))
		}

		ext := make([]float64, e.grid.kSizeExtra())
		copy(ext, t)
		tail := e.tail(t[nk-1])
		for i := nk; i < len(ext); i++ {
			ext[i] = e.policy.Source(e.grid.k[i], tail)
		}
		transfers[ic] = ext
	}

	// Per-ic power 2 pi^2 / k^3 Delta_ii T_i^2, filled blockwise.
	pii := make([][]float64, nIC)
	for ic := range pii {
		pii[ic] = make([]float64, len(e.grid.k))
		vecmath.MulBlock(pii[ic], transfers[ic], transfers[ic])
		for i, k := range e.grid.k {
			pii[ic][i] *= 2 * math.Pi * math.Pi / (k * k * k) * e.primordialAt(i)[e.idx.Pair(ic, ic)]
		}
	}

	row := s.lnPk.Slab(r)
	pairs := s.lnPkIC.Slab(r)
	np := e.idx.PairSize
	for i := range e.grid.k {
		prim := e.primordialAt(i)
		total := 0.0
		for a := 0; a < nIC; a++ {
			for b := a; b < nIC; b++ {
				p := e.idx.Pair(a, b)
				if a == b {
					total += pii[a][i]
					if i < nk {
						pairs[i*np+p] = safeLog(pii[a][i])
					}
					continue
				}

				c := 0.0
				if e.idx.NonZero[p] {
					c = crossCosine(prim[p], prim[e.idx.Pair(a, a)], prim[e.idx.Pair(b, b)],
						transfers[a][i]*transfers[b][i])
				}
				total += 2 * c * math.Sqrt(pii[a][i]*pii[b][i])
				if i < nk {
					pairs[i*np+p] = c
				}
			}
		}
		row[i] = safeLog(total)
	}

	return nil
}

// crossCosine returns the correlation cosine of a pair with primordial
// cross-spectrum cross, auto-spectra autoA and autoB and transfer product tt.
func crossCosine(cross, autoA, autoB, tt float64) float64 {
	if !(autoA > 0) || !(autoB > 0) {
		return 0
	}
	c := cross / math.Sqrt(autoA*autoB)
	if tt < 0 {
		c = -c
	}
	switch {
	case c >= 1-correlationSnap:
		return 1
	case c <= -1+correlationSnap:
		return -1
	}
	return c
}

func safeLog(p float64) float64 {
	if !(p > 0) {
		return math.Inf(-1)
	}
	return math.Log(p)
}

// sigma8 evaluates the top-hat variance at 8 Mpc/h at the last stored time.
func (e *Engine) sigma8(s *spectrumTables) (float64, error) {
	last := len(e.grid.lnTau) - 1
	ps := newLnKSpline(e.grid.lnK, s.lnPk.Slab(last))

	cfg := e.sigma.Config()
	cfg.Window = window.TypeTopHat
	return sigma.Compute(ps, 8/e.params.H, sigma.Sigma, cfg)
}

// linearSlab returns the extended linear ln P of s at lnTau.
func (e *Engine) linearSlab(s *spectrumTables, lnTau float64) ([]float64, error) {
	dst := make([]float64, s.lnPk.Width())
	if err := s.lnPk.InterpolateTime(lnTau, dst); err != nil {
		return nil, err
	}
	return dst, nil
}
