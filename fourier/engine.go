package fourier

import (
	"errors"
	"fmt"
	"math"

	"github.com/charmbracelet/log"

	"github.com/cwbudde/algo-pk/cosmo"
	"github.com/cwbudde/algo-pk/measure/sigma"
	"github.com/cwbudde/algo-pk/pk/core"
	"github.com/cwbudde/algo-pk/pk/extrap"
	"github.com/cwbudde/algo-pk/pk/interp"
	"github.com/cwbudde/algo-pk/pk/nonlinear"
	"github.com/cwbudde/algo-pk/pk/table"
)

// Halofit is not calibrated for neutrino masses above this value [eV].
const halofitMaxNuMass = 10.0

// spectrumTables holds every table of one spectrum type.
type spectrumTables struct {
	typ cosmo.SpectrumType

	// lnPkIC is tau x native k x pair: ln P on diagonal pairs, the
	// correlation cosine on the others.
	lnPkIC *table.Tensor
	// lnPk is the ic-summed ln P on the extended grid.
	lnPk *table.Tensor
	// lnPkNL is the nonlinear ln P on the native grid.
	lnPkNL *table.Tensor
	// corr is sqrt(P_nl / P_lin) on the native grid.
	corr *table.Tensor

	kNL       []float64 // per time, 0 in the linear regime
	kNLSpline *interp.Spline
	sigma8    float64
}

// Engine computes the power spectrum tables once and answers read-only
// queries. Queries may run concurrently until [Engine.Close].
type Engine struct {
	cfg    Config
	bg     cosmo.Background
	pt     cosmo.Perturbations
	pm     cosmo.Primordial
	params cosmo.Params
	logger *log.Logger

	policy   extrap.Policy
	strategy nonlinear.Strategy
	sigma    *sigma.Calculator

	idx  Indices
	grid grid

	// prim is k_extra x pair primordial power.
	prim    []float64
	spectra []*spectrumTables

	// No-wiggle outputs describe the clustering reference type.
	lnPkNW        *table.Tensor
	lnPkAnalytic  []float64
	indexTauMinNL int

	allocated bool
}

// New validates cfg, builds all tables and returns a ready engine.
func New(bg cosmo.Background, pt cosmo.Perturbations, pm cosmo.Primordial, cfg Config, opts ...Option) (*Engine, error) {
	if bg == nil || pt == nil || pm == nil {
		return nil, fmt.Errorf("%w: nil collaborator", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	e := &Engine{
		cfg:    cfg,
		bg:     bg,
		pt:     pt,
		pm:     pm,
		params: bg.Params(),
		logger: o.logger,
		sigma:  sigma.NewCalculator(cfg.Sigma),
	}
	e.logger.SetLevel(logLevel(cfg.Verbose))

	if err := e.selectPolicy(o.policy); err != nil {
		return nil, err
	}

	var err error
	if e.idx, err = buildIndices(cfg, pt, pm); err != nil {
		return nil, err
	}
	if e.grid, err = buildGrid(cfg, bg, pt); err != nil {
		return nil, err
	}
	e.logger.Info("grids built",
		"types", e.idx.Size, "ics", e.idx.ICSize,
		"k_size", e.grid.kSize, "k_size_extra", e.grid.kSizeExtra(),
		"tau_size", len(e.grid.lnTau))

	if err := e.selectStrategy(o.strategy); err != nil {
		return nil, err
	}

	if err := e.assembleLinear(); err != nil {
		return nil, err
	}
	if err := e.splitWiggles(); err != nil {
		return nil, err
	}
	if err := e.applyNonlinear(); err != nil {
		return nil, err
	}

	e.allocated = true
	return e, nil
}

func logLevel(verbose int) log.Level {
	switch {
	case verbose >= 2:
		return log.DebugLevel
	case verbose == 1:
		return log.InfoLevel
	default:
		return log.WarnLevel
	}
}

func (e *Engine) selectPolicy(p extrap.Policy) error {
	if p == nil {
		var err error
		if p, err = extrap.New(e.cfg.Extrapolation); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	tail := e.tail(1)
	if err := p.Validate(tail); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if e.cfg.needsNumericalNoWiggle() && p.Kind() == extrap.Zero {
		return fmt.Errorf("%w: numerical no-wiggle spectrum needs a non-zero extrapolation", ErrInvalidConfig)
	}

	e.policy = p
	e.logger.Info("extrapolation", "policy", p.Kind())
	return nil
}

// tail anchors the extrapolation policy at the largest native wavenumber.
func (e *Engine) tail(sourceMax float64) extrap.Tail {
	k := e.pt.K()
	kMax := 0.0
	if len(k) > 0 {
		kMax = k[len(k)-1]
	}
	return extrap.Tail{
		KMax:      kMax,
		SourceMax: sourceMax,
		KEq:       e.params.KEq,
		Gamma:     e.params.OmegaM * e.params.H * e.params.H,
	}
}

func (e *Engine) selectStrategy(s nonlinear.Strategy) error {
	if s == nil {
		switch e.cfg.Method {
		case nonlinear.None:
			e.logger.Info("no nonlinear correction")
			return nil
		case nonlinear.Halofit:
			s = nonlinear.NewHalofit(e.cfg.Halofit)
			if e.params.NuMassEV > halofitMaxNuMass {
				e.logger.Warn("halofit is not calibrated for this neutrino mass",
					"m_nu", e.params.NuMassEV, "limit", halofitMaxNuMass)
			}
		case nonlinear.HMcode:
			hm, err := nonlinear.NewHMcode(e.bg, e.cfg.HMcode)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
			}
			s = hm
		}
	}

	if e.cfg.PkEq {
		wrapped, err := e.wrapPkEq(s)
		if err != nil {
			return err
		}
		s = wrapped
	}

	e.strategy = s
	e.logger.Info("nonlinear correction", "method", s.Method(), "pk_eq", e.cfg.PkEq)
	return nil
}

// wrapPkEq returns s unchanged when w is constant over the tables.
func (e *Engine) wrapPkEq(s nonlinear.Strategy) (nonlinear.Strategy, error) {
	lnTau := e.grid.lnTau
	tauMin := math.Exp(lnTau[0])
	tauMax := math.Exp(lnTau[len(lnTau)-1])
	first, err := e.bg.At(tauMin)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutOfRange, err)
	}
	last, err := e.bg.At(tauMax)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutOfRange, err)
	}
	if core.NearlyEqual(first.W, last.W, 1e-10) {
		e.logger.Debug("constant w, pk_eq not needed", "w", last.W)
		return s, nil
	}

	pkEq, err := nonlinear.NewPkEq(e.bg, tauMin, tauMax, e.cfg.PkEqTauSize)
	if err != nil {
		return nil, fmt.Errorf("pk_eq table: %w", err)
	}
	e.logger.Debug("pk_eq table built", "size", e.cfg.PkEqTauSize)
	return pkEq.Wrap(s), nil
}

// Close releases every table. Later queries return ErrNotAllocated.
func (e *Engine) Close() error {
	if !e.allocated {
		return ErrNotAllocated
	}
	e.allocated = false
	e.spectra = nil
	e.prim = nil
	e.lnPkNW = nil
	e.lnPkAnalytic = nil
	return nil
}

func (e *Engine) checkAllocated() error {
	if !e.allocated {
		return ErrNotAllocated
	}
	return nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config { return e.cfg }

// Indices returns the spectrum-type and ic-pair indices.
func (e *Engine) Indices() Indices { return e.idx }

// K returns the extended wavenumber grid [1/Mpc]; the first KSize entries
// are the native sampling.
func (e *Engine) K() []float64 { return append([]float64(nil), e.grid.k...) }

// KSize returns the number of native wavenumbers.
func (e *Engine) KSize() int { return e.grid.kSize }

// LnTau returns the retained ln(tau [Mpc]) grid.
func (e *Engine) LnTau() []float64 { return append([]float64(nil), e.grid.lnTau...) }

// IndexTauMinNL returns the first time index with a nonlinear correction.
// It equals len(LnTau()) when no time is corrected.
func (e *Engine) IndexTauMinNL() int { return e.indexTauMinNL }

// Sigma8 returns sigma(R = 8 Mpc/h) of type t at the last stored time.
func (e *Engine) Sigma8(t cosmo.SpectrumType) (float64, error) {
	if err := e.checkAllocated(); err != nil {
		return 0, err
	}
	s, err := e.tables(t)
	if err != nil {
		return 0, err
	}
	return s.sigma8, nil
}

// tables resolves t to its tables; a missing cb spectrum falls back to the
// clustering reference.
func (e *Engine) tables(t cosmo.SpectrumType) (*spectrumTables, error) {
	switch t {
	case cosmo.Matter:
		if e.idx.Matter < 0 {
			return nil, fmt.Errorf("%w: %s spectrum not requested", ErrUnavailable, t)
		}
		return e.spectra[e.idx.Matter], nil
	case cosmo.ColdBaryon:
		return e.spectra[e.idx.Cluster], nil
	default:
		return nil, fmt.Errorf("%w: unknown spectrum type %d", ErrInvalidConfig, int(t))
	}
}

// lnTauAt maps z to ln tau inside the stored grid.
func (e *Engine) lnTauAt(z float64) (float64, error) {
	if z < 0 || math.IsNaN(z) {
		return 0, fmt.Errorf("%w: z=%g", ErrOutOfRange, z)
	}
	tau, err := e.bg.TauOfZ(z)
	if err != nil {
		return 0, fmt.Errorf("%w: z=%g: %w", ErrOutOfRange, z, err)
	}

	lt := math.Log(tau)
	lo, hi := e.grid.lnTau[0], e.grid.lnTau[len(e.grid.lnTau)-1]
	const eps = 1e-10
	switch {
	case lt < lo-eps || lt > hi+eps:
		return 0, fmt.Errorf("%w: z=%g (tau=%g) outside stored times [%g, %g]",
			ErrOutOfRange, z, tau, math.Exp(lo), math.Exp(hi))
	case lt < lo:
		lt = lo
	case lt > hi:
		lt = hi
	}
	return lt, nil
}

func isLinearRegime(err error) bool {
	return errors.Is(err, nonlinear.ErrLinearRegime)
}
