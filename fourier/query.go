package fourier

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-pk/cosmo"
	"github.com/cwbudde/algo-pk/measure/sigma"
	"github.com/cwbudde/algo-pk/pk/interp"
	"github.com/cwbudde/algo-pk/pk/table"
)

// Output selects which spectrum a query reads.
type Output int

const (
	Linear Output = iota
	Nonlinear
	// NumericalNoWiggle is the Gaussian-filtered linear spectrum.
	NumericalNoWiggle
	// AnalyticNoWiggle is the fitted smooth spectrum, rescaled by growth.
	AnalyticNoWiggle
)

var outputNames = [...]string{
	Linear:            "linear",
	Nonlinear:         "nonlinear",
	NumericalNoWiggle: "numerical_nowiggle",
	AnalyticNoWiggle:  "analytic_nowiggle",
}

// String implements fmt.Stringer.
func (o Output) String() string {
	if o >= 0 && int(o) < len(outputNames) {
		return outputNames[o]
	}
	return fmt.Sprintf("output(%d)", int(o))
}

// ParseOutput resolves an output name as printed by String.
func ParseOutput(name string) (Output, error) {
	for o, s := range outputNames {
		if s == name {
			return Output(o), nil
		}
	}
	return 0, fmt.Errorf("fourier: unknown output %q", name)
}

// Selection chooses the spectrum types a query returns.
type Selection int

const (
	SelectMatter Selection = iota
	// SelectColdBaryon falls back to the matter spectrum without a cb source.
	SelectColdBaryon
	SelectBoth
)

// Scale chooses logarithmic or linear grid output.
type Scale int

const (
	LogScale Scale = iota
	LinearScale
)

// Spectrum is one type's result on the native wavenumber grid.
type Spectrum struct {
	Type cosmo.SpectrumType
	// Values holds P [Mpc^3] or ln P per native wavenumber.
	Values []float64
	// Pairs holds per ic pair P (or ln P) on diagonal pairs and the
	// correlation cosine on the others. It is set for linear output with
	// more than one initial condition.
	Pairs [][]float64
}

// Point is one type's result at a single wavenumber.
type Point struct {
	Type  cosmo.SpectrumType
	P     float64 // [Mpc^3]
	Pairs []float64
}

// Grid is one type's result on a (z, k) product grid.
type Grid struct {
	Type cosmo.SpectrumType
	// Values[iz][ik] is P [Mpc^3] at zs[iz], ks[ik].
	Values [][]float64
}

// selected resolves sel into table indices. No-wiggle outputs exist only
// for the clustering reference.
func (e *Engine) selected(out Output, sel Selection) ([]*spectrumTables, error) {
	switch out {
	case Linear:
	case Nonlinear:
		if e.strategy == nil {
			return nil, fmt.Errorf("%w: nonlinear spectrum (method none)", ErrUnavailable)
		}
	case NumericalNoWiggle:
		if e.lnPkNW == nil {
			return nil, fmt.Errorf("%w: numerical no-wiggle spectrum not requested", ErrUnavailable)
		}
		return []*spectrumTables{e.spectra[e.idx.Cluster]}, nil
	case AnalyticNoWiggle:
		if e.lnPkAnalytic == nil {
			return nil, fmt.Errorf("%w: analytic no-wiggle spectrum not requested", ErrUnavailable)
		}
		return []*spectrumTables{e.spectra[e.idx.Cluster]}, nil
	default:
		return nil, fmt.Errorf("%w: unknown output %d", ErrInvalidConfig, int(out))
	}

	switch sel {
	case SelectMatter:
		s, err := e.tables(cosmo.Matter)
		if err != nil {
			return nil, err
		}
		return []*spectrumTables{s}, nil
	case SelectColdBaryon:
		return []*spectrumTables{e.spectra[e.idx.Cluster]}, nil
	case SelectBoth:
		if e.idx.Total == e.idx.Cluster {
			return []*spectrumTables{e.spectra[e.idx.Total]}, nil
		}
		return []*spectrumTables{e.spectra[e.idx.Total], e.spectra[e.idx.Cluster]}, nil
	default:
		return nil, fmt.Errorf("%w: unknown selection %d", ErrInvalidConfig, int(sel))
	}
}

// slab returns the ln P row of out for s at lnTau: extended width for
// linear and no-wiggle outputs, native width for nonlinear.
func (e *Engine) slab(out Output, s *spectrumTables, lnTau float64) ([]float64, error) {
	var t *table.Tensor
	switch out {
	case Linear:
		t = s.lnPk
	case Nonlinear:
		t = s.lnPkNL
	case NumericalNoWiggle:
		t = e.lnPkNW
	case AnalyticNoWiggle:
		return e.analyticSlab(lnTau)
	}

	dst := make([]float64, t.Width())
	if err := t.InterpolateTime(lnTau, dst); err != nil {
		return nil, typedError("time interpolation", s.typ, math.Exp(lnTau), err)
	}
	return dst, nil
}

func (e *Engine) pairSlab(s *spectrumTables, lnTau float64) ([]float64, error) {
	dst := make([]float64, s.lnPkIC.Width())
	if err := s.lnPkIC.InterpolateTime(lnTau, dst); err != nil {
		return nil, typedError("time interpolation", s.typ, math.Exp(lnTau), err)
	}
	return dst, nil
}

// PkAtZ returns the spectra of out at redshift z on the native grid.
func (e *Engine) PkAtZ(out Output, z float64, sel Selection, scale Scale) ([]Spectrum, error) {
	if err := e.checkAllocated(); err != nil {
		return nil, err
	}
	lnTau, err := e.lnTauAt(z)
	if err != nil {
		return nil, err
	}
	tables, err := e.selected(out, sel)
	if err != nil {
		return nil, err
	}

	nk := e.grid.kSize
	res := make([]Spectrum, 0, len(tables))
	for _, s := range tables {
		row, err := e.slab(out, s, lnTau)
		if err != nil {
			return nil, err
		}
		sp := Spectrum{Type: s.typ, Values: scaled(row[:nk], scale)}

		if out == Linear && e.idx.ICSize > 1 {
			pairs, err := e.pairSlab(s, lnTau)
			if err != nil {
				return nil, err
			}
			sp.Pairs = e.splitPairs(pairs, scale)
		}
		res = append(res, sp)
	}
	return res, nil
}

func scaled(lnP []float64, scale Scale) []float64 {
	out := append([]float64(nil), lnP...)
	if scale == LinearScale {
		for i, v := range out {
			out[i] = math.Exp(v)
		}
	}
	return out
}

// splitPairs turns a k x pair slab into per-pair rows.
func (e *Engine) splitPairs(slab []float64, scale Scale) [][]float64 {
	np := e.idx.PairSize
	nk := len(slab) / np
	pairs := make([][]float64, np)
	for p := range pairs {
		pairs[p] = make([]float64, nk)
	}
	for i := 0; i < nk; i++ {
		for a := 0; a < e.idx.ICSize; a++ {
			for b := a; b < e.idx.ICSize; b++ {
				p := e.idx.Pair(a, b)
				v := slab[i*np+p]
				if a == b && scale == LinearScale {
					v = math.Exp(v)
				}
				pairs[p][i] = v
			}
		}
	}
	return pairs
}

// kEvaluator interpolates one time row in ln k. The native range and the
// extrapolated tail are splined separately, so the tail never changes
// in-range values.
type kEvaluator struct {
	e      *Engine
	native *lnKSpline
	tail   *lnKSpline
	lnP0   float64
	prim0  float64
}

func (e *Engine) newKEvaluator(row []float64) *kEvaluator {
	nk := e.grid.kSize
	ev := &kEvaluator{
		e:      e,
		native: newLnKSpline(e.grid.lnK[:nk], row[:nk]),
		lnP0:   row[0],
		prim0:  e.diagonalSum(e.primordialAt(0)),
	}
	if len(row) > nk {
		ev.tail = newLnKSpline(e.grid.lnK[nk-1:], row[nk-1:])
	}
	return ev
}

// lnPower returns ln P at k.
func (ev *kEvaluator) lnPower(k float64) (float64, error) {
	if !(k > 0) {
		return 0, fmt.Errorf("%w: k=%g", ErrOutOfRange, k)
	}
	g := ev.e.grid
	lnK := math.Log(k)

	switch {
	case lnK < g.lnK[0]:
		ratio, err := ev.e.primordialRatio(k, ev.prim0)
		if err != nil {
			return 0, err
		}
		return ev.lnP0 + lnK - g.lnK[0] + ratio, nil
	case lnK <= g.lnK[g.kSize-1]:
		return ev.native.eval(lnK), nil
	case ev.tail != nil && lnK <= ev.tail.end:
		return ev.tail.eval(lnK), nil
	default:
		return 0, fmt.Errorf("%w: k=%g above the tabulated maximum", ErrOutOfRange, k)
	}
}

// primordialRatio returns ln(Delta(k)/Delta(k_min)) of the summed auto-spectra.
func (e *Engine) primordialRatio(k, prim0 float64) (float64, error) {
	prim := make([]float64, e.idx.PairSize)
	if err := e.pm.Spectrum(k, prim); err != nil {
		return 0, fmt.Errorf("fourier: primordial spectrum at k=%g: %w", k, err)
	}
	return safeLog(e.diagonalSum(prim)) - safeLog(prim0), nil
}

// pairsAt returns the per-pair linear values at k inside or below the
// native range, or nil above it.
func (e *Engine) pairsAt(slab []float64, k float64) ([]float64, error) {
	g := e.grid
	lnK := math.Log(k)
	if lnK > g.lnK[g.kSize-1] {
		return nil, nil
	}

	np := e.idx.PairSize
	out := make([]float64, np)
	col := make([]float64, g.kSize)
	for a := 0; a < e.idx.ICSize; a++ {
		for b := a; b < e.idx.ICSize; b++ {
			p := e.idx.Pair(a, b)
			for i := range col {
				col[i] = slab[i*np+p]
			}

			if lnK < g.lnK[0] {
				if a != b {
					out[p] = col[0]
					continue
				}
				prim := make([]float64, np)
				if err := e.pm.Spectrum(k, prim); err != nil {
					return nil, err
				}
				out[p] = math.Exp(col[0] + lnK - g.lnK[0] + safeLog(prim[p]) - safeLog(e.primordialAt(0)[p]))
				continue
			}

			if a != b {
				dd := make([]float64, len(col))
				if err := interp.Natural(g.lnK[:g.kSize], col, dd); err != nil {
					return nil, err
				}
				i, err := interp.Locate(g.lnK[:g.kSize], lnK)
				if err != nil {
					return nil, err
				}
				out[p] = interp.Segment(g.lnK[i], g.lnK[i+1], col[i], col[i+1], dd[i], dd[i+1], lnK)
				continue
			}
			out[p] = math.Exp(newLnKSpline(g.lnK[:g.kSize], col).eval(lnK))
		}
	}
	return out, nil
}

// PkAtKZ returns P [Mpc^3] of out at wavenumber k [1/Mpc] and redshift z.
func (e *Engine) PkAtKZ(out Output, k, z float64, sel Selection) ([]Point, error) {
	if err := e.checkAllocated(); err != nil {
		return nil, err
	}
	lnTau, err := e.lnTauAt(z)
	if err != nil {
		return nil, err
	}
	tables, err := e.selected(out, sel)
	if err != nil {
		return nil, err
	}

	res := make([]Point, 0, len(tables))
	for _, s := range tables {
		row, err := e.slab(out, s, lnTau)
		if err != nil {
			return nil, err
		}
		lnP, err := e.newKEvaluator(row).lnPower(k)
		if err != nil {
			return nil, typedError("pk at k", s.typ, math.Exp(lnTau), err)
		}
		pt := Point{Type: s.typ, P: math.Exp(lnP)}

		if out == Linear && e.idx.ICSize > 1 {
			pairs, err := e.pairSlab(s, lnTau)
			if err != nil {
				return nil, err
			}
			if pt.Pairs, err = e.pairsAt(pairs, k); err != nil {
				return nil, typedError("pk pairs at k", s.typ, math.Exp(lnTau), err)
			}
		}
		res = append(res, pt)
	}
	return res, nil
}

// PkAtKZVec returns P [Mpc^3] of out on the product of zs and ks.
func (e *Engine) PkAtKZVec(out Output, ks, zs []float64, sel Selection) ([]Grid, error) {
	if err := e.checkAllocated(); err != nil {
		return nil, err
	}
	tables, err := e.selected(out, sel)
	if err != nil {
		return nil, err
	}

	res := make([]Grid, len(tables))
	for ti, s := range tables {
		res[ti] = Grid{Type: s.typ, Values: make([][]float64, len(zs))}
	}

	for iz, z := range zs {
		lnTau, err := e.lnTauAt(z)
		if err != nil {
			return nil, err
		}
		for ti, s := range tables {
			row, err := e.slab(out, s, lnTau)
			if err != nil {
				return nil, err
			}
			ev := e.newKEvaluator(row)
			vals := make([]float64, len(ks))
			for ik, k := range ks {
				lnP, err := ev.lnPower(k)
				if err != nil {
					return nil, typedError("pk at k", s.typ, math.Exp(lnTau), err)
				}
				vals[ik] = math.Exp(lnP)
			}
			res[ti].Values[iz] = vals
		}
	}
	return res, nil
}

// Tilt returns d ln P / d ln k of out at (k, z) for type t by a centered
// difference of width Config.TiltStep.
func (e *Engine) Tilt(out Output, k, z float64, t cosmo.SpectrumType) (float64, error) {
	if err := e.checkAllocated(); err != nil {
		return 0, err
	}
	sel := SelectMatter
	if t == cosmo.ColdBaryon {
		sel = SelectColdBaryon
	}
	lnTau, err := e.lnTauAt(z)
	if err != nil {
		return 0, err
	}
	tables, err := e.selected(out, sel)
	if err != nil {
		return 0, err
	}
	s := tables[0]

	row, err := e.slab(out, s, lnTau)
	if err != nil {
		return 0, err
	}
	ev := e.newKEvaluator(row)

	h := e.cfg.TiltStep
	hi, err := ev.lnPower(k * math.Exp(h))
	if err != nil {
		return 0, typedError("tilt", s.typ, math.Exp(lnTau), err)
	}
	lo, err := ev.lnPower(k * math.Exp(-h))
	if err != nil {
		return 0, typedError("tilt", s.typ, math.Exp(lnTau), err)
	}
	if math.IsInf(hi, 0) || math.IsInf(lo, 0) || math.IsNaN(hi) || math.IsNaN(lo) {
		return 0, typedError("tilt", s.typ, math.Exp(lnTau),
			fmt.Errorf("%w: no finite power around k=%g", ErrOutOfRange, k))
	}
	return (hi - lo) / (2 * h), nil
}

// Sigma returns the smoothed statistic o of the linear spectrum of type t
// on radius r [Mpc] at redshift z.
func (e *Engine) Sigma(r, z float64, t cosmo.SpectrumType, o sigma.Output) (float64, error) {
	if err := e.checkAllocated(); err != nil {
		return 0, err
	}
	s, err := e.tables(t)
	if err != nil {
		return 0, err
	}
	lnTau, err := e.lnTauAt(z)
	if err != nil {
		return 0, err
	}
	row, err := e.linearSlab(s, lnTau)
	if err != nil {
		return 0, typedError("time interpolation", s.typ, math.Exp(lnTau), err)
	}

	v, err := e.sigma.Compute(newLnKSpline(e.grid.lnK, row), r, o)
	if err != nil {
		return 0, typedError(o.String(), s.typ, math.Exp(lnTau), err)
	}
	return v, nil
}

// KNonlinear returns the nonlinear wavenumber [1/Mpc] of the total and the
// clustering spectra at z. It fails with ErrUnavailable without a
// nonlinear method and for times in the linear regime.
func (e *Engine) KNonlinear(z float64) (kNL, kNLcb float64, err error) {
	if err := e.checkAllocated(); err != nil {
		return 0, 0, err
	}
	if e.strategy == nil {
		return 0, 0, fmt.Errorf("%w: k_nl needs a nonlinear method", ErrUnavailable)
	}
	lnTau, err := e.lnTauAt(z)
	if err != nil {
		return 0, 0, err
	}

	if kNL, err = e.kNonlinear(e.spectra[e.idx.Total], lnTau); err != nil {
		return 0, 0, err
	}
	if kNLcb, err = e.kNonlinear(e.spectra[e.idx.Cluster], lnTau); err != nil {
		return 0, 0, err
	}
	return kNL, kNLcb, nil
}
