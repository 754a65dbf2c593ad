package fourier

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-pk/cosmo"
	"github.com/cwbudde/algo-pk/pk/core"
)

// Relative tolerance when matching tau(z_max_pk) to stored times.
const tauTolerance = 1e-12

// grid holds the wavenumber and time sampling of the tables.
type grid struct {
	// k and lnK cover the native range followed by the extrapolated tail.
	k     []float64
	lnK   []float64
	kSize int

	// lnTau is the retained suffix of the perturbation times, starting at
	// tauOffset in the perturbation grid.
	lnTau     []float64
	tauOffset int
}

func (g grid) kSizeExtra() int { return len(g.k) }

func (g grid) kMax() float64 { return g.k[g.kSize-1] }

func buildGrid(cfg Config, bg cosmo.Background, pt cosmo.Perturbations) (grid, error) {
	var g grid

	native := pt.K()
	if len(native) < 2 || !(native[0] > 0) || !core.StrictlyIncreasing(native) {
		return grid{}, fmt.Errorf("%w: perturbation k grid must be positive and strictly increasing", ErrInvalidConfig)
	}
	g.kSize = len(native)

	kMax := native[len(native)-1]
	tail := 0
	if cfg.KMaxExtra > kMax {
		tail = int(math.Ceil(math.Log10(cfg.KMaxExtra/kMax) * cfg.KPerDecadeExtra))
	}
	if g.kSize+tail > MaxExtrapolationPoints {
		return grid{}, fmt.Errorf("%w: %d > %d", ErrTooManyExtrapolationPoints, g.kSize+tail, MaxExtrapolationPoints)
	}

	g.k = make([]float64, g.kSize, g.kSize+tail)
	copy(g.k, native)
	if tail > 0 {
		ext := core.LogSpace(kMax, cfg.KMaxExtra, tail+1)
		g.k = append(g.k, ext[1:]...)
	}
	g.lnK = make([]float64, len(g.k))
	for i, k := range g.k {
		g.lnK[i] = math.Log(k)
	}

	taus := pt.Tau()
	if len(taus) == 0 || !(taus[0] > 0) || !core.StrictlyIncreasing(taus) {
		return grid{}, fmt.Errorf("%w: perturbation time grid must be positive and strictly increasing", ErrInvalidConfig)
	}

	tauMin, err := bg.TauOfZ(cfg.ZMaxPk)
	if err != nil {
		return grid{}, fmt.Errorf("%w: z_max_pk=%g: %w", ErrOutOfRange, cfg.ZMaxPk, err)
	}
	first, last := taus[0], taus[len(taus)-1]
	if (tauMin < first && !core.NearlyEqual(tauMin, first, tauTolerance)) ||
		(tauMin > last && !core.NearlyEqual(tauMin, last, tauTolerance)) {
		return grid{}, fmt.Errorf("%w: z_max_pk=%g maps to tau=%g outside [%g, %g]",
			ErrOutOfRange, cfg.ZMaxPk, tauMin, first, last)
	}

	// Keep the last stored time at or before tau(z_max).
	for i, tau := range taus {
		if tau <= tauMin || core.NearlyEqual(tau, tauMin, tauTolerance) {
			g.tauOffset = i
		}
	}
	g.lnTau = make([]float64, len(taus)-g.tauOffset)
	for i := range g.lnTau {
		g.lnTau[i] = math.Log(taus[g.tauOffset+i])
	}

	return g, nil
}
