package fourier

import (
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-pk/pk/core"
	"github.com/cwbudde/algo-pk/pk/interp"
	"github.com/cwbudde/algo-pk/pk/nowiggle"
	"github.com/cwbudde/algo-pk/pk/table"
)

// smoothShape returns ln of the Eisenstein-Hu no-wiggle spectrum, up to a
// constant, on the extended grid.
func (e *Engine) smoothShape() []float64 {
	shape := make([]float64, e.grid.kSizeExtra())
	for i, k := range e.grid.k {
		tk := nowiggle.EisensteinHu(k, e.params)
		shape[i] = safeLog(e.diagonalSum(e.primordialAt(i))) + e.grid.lnK[i] + 2*safeLog(tk)
	}
	return shape
}

// splitWiggles builds the requested no-wiggle outputs for the clustering
// reference type.
func (e *Engine) splitWiggles() error {
	if !e.cfg.AnalyticNoWiggle && !e.cfg.needsNumericalNoWiggle() {
		return nil
	}

	ref := e.spectra[e.idx.Cluster]
	lnShape := e.smoothShape()

	if e.cfg.AnalyticNoWiggle {
		if err := e.analyticNoWiggle(ref, lnShape); err != nil {
			return typedError("analytic no-wiggle", ref.typ, 0, err)
		}
	}
	if e.cfg.needsNumericalNoWiggle() {
		if err := e.numericalNoWiggle(ref, lnShape); err != nil {
			return typedError("numerical no-wiggle", ref.typ, 0, err)
		}
	}
	return nil
}

func (e *Engine) analyticNoWiggle(ref *spectrumTables, lnShape []float64) error {
	spline, err := interp.NewSpline(e.grid.lnK, lnShape)
	if err != nil {
		return err
	}
	lo, hi := spline.Domain()
	shape := func(lnK float64) float64 {
		v, _ := spline.At(core.Clamp(lnK, lo, hi))
		return v
	}

	last := len(e.grid.lnTau) - 1
	nk := e.grid.kSize
	fit, err := nowiggle.NewAnalytic(e.grid.lnK[:nk], ref.lnPk.Slab(last)[:nk], shape, e.cfg.NoWiggleOrder)
	if err != nil {
		return err
	}

	e.lnPkAnalytic = make([]float64, e.grid.kSizeExtra())
	for i, x := range e.grid.lnK {
		e.lnPkAnalytic[i] = fit.LnPower(x)
	}
	e.logger.Debug("analytic no-wiggle fit", "coefficients", fit.Coefficients())
	return nil
}

func (e *Engine) numericalNoWiggle(ref *spectrumTables, lnShape []float64) error {
	filter, err := nowiggle.NewFilter(e.cfg.NoWiggleFilter)
	if err != nil {
		return err
	}

	nTau := len(e.grid.lnTau)
	if e.lnPkNW, err = table.New(nTau, e.grid.kSizeExtra(), 1); err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(e.workers())
	for r := 0; r < nTau; r++ {
		g.Go(func() error {
			nw, err := filter.Apply(e.grid.lnK, ref.lnPk.Slab(r), lnShape)
			if err != nil {
				return typedError("filter", ref.typ, math.Exp(e.grid.lnTau[r]), err)
			}
			copy(e.lnPkNW.Slab(r), nw)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	e.logger.Debug("numerical no-wiggle table", "rows", nTau, "samples", e.cfg.NoWiggleFilter.Samples)
	return e.lnPkNW.SplineTime(e.grid.lnTau)
}

// analyticSlab returns the analytic no-wiggle ln P at lnTau, rescaled from
// the last stored time by the linear growth at the smallest wavenumber.
func (e *Engine) analyticSlab(lnTau float64) ([]float64, error) {
	ref := e.spectra[e.idx.Cluster]
	lin, err := e.linearSlab(ref, lnTau)
	if err != nil {
		return nil, err
	}
	last := len(e.grid.lnTau) - 1
	shift := lin[0] - ref.lnPk.At(last, 0, 0)

	out := make([]float64, len(e.lnPkAnalytic))
	for i, v := range e.lnPkAnalytic {
		out[i] = v + shift
	}
	return out, nil
}
