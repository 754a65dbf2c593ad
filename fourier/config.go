package fourier

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-pk/measure/sigma"
	"github.com/cwbudde/algo-pk/pk/extrap"
	"github.com/cwbudde/algo-pk/pk/nonlinear"
	"github.com/cwbudde/algo-pk/pk/nowiggle"
)

// MaxExtrapolationPoints bounds the size of the extended wavenumber grid.
const MaxExtrapolationPoints = 100000

// Config holds every tunable of the engine. It is read once by [New].
type Config struct {
	// HasPkM requests the total matter spectrum.
	HasPkM bool
	// HasPkCB requests the cdm+baryon spectrum; it is only built when the
	// perturbations provide a distinct source.
	HasPkCB bool
	// ZMaxPk is the largest redshift queries may use.
	ZMaxPk float64

	Method        nonlinear.Method
	Extrapolation extrap.Kind
	// KMaxExtra is the upper end of the extended grid [1/Mpc].
	KMaxExtra       float64
	KPerDecadeExtra float64

	Sigma sigma.Config

	AnalyticNoWiggle  bool
	NumericalNoWiggle bool
	// NoWiggleOrder is the polynomial order of the analytic fit.
	NoWiggleOrder  int
	NoWiggleFilter nowiggle.FilterConfig

	// PkEq evaluates the nonlinear strategy in the equivalent constant-w
	// cosmology when w varies in time.
	PkEq        bool
	PkEqTauSize int

	Halofit nonlinear.HalofitConfig
	HMcode  nonlinear.HMcodeConfig

	// TiltStep is the half-width in ln k of the tilt finite difference.
	TiltStep float64
	// Workers bounds the parallel table fill; 0 uses one worker per time.
	Workers int
	// Verbose gates Info (>= 1) and Debug (>= 2) log messages.
	Verbose int
}

// DefaultConfig returns a linear configuration of the total matter and the
// cold dark matter plus baryon spectra up to z = 5.
func DefaultConfig() Config {
	return Config{
		HasPkM:          true,
		HasPkCB:         true,
		ZMaxPk:          5,
		Method:          nonlinear.None,
		Extrapolation:   extrap.MaxScaled,
		KMaxExtra:       50,
		KPerDecadeExtra: 20,
		Sigma:           sigma.DefaultConfig(),
		NoWiggleOrder:   1,
		NoWiggleFilter:  nowiggle.DefaultFilterConfig(),
		PkEqTauSize:     100,
		HMcode:          nonlinear.DefaultHMcodeConfig(),
		TiltStep:        1e-3,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case !c.HasPkM && !c.HasPkCB:
		return ErrNoSpectrumType
	case c.ZMaxPk < 0 || math.IsNaN(c.ZMaxPk):
		return fmt.Errorf("%w: z_max_pk must be >= 0: %g", ErrInvalidConfig, c.ZMaxPk)
	case !(c.KMaxExtra > 0):
		return fmt.Errorf("%w: k_max_extra must be > 0: %g", ErrInvalidConfig, c.KMaxExtra)
	case !(c.KPerDecadeExtra > 0):
		return fmt.Errorf("%w: k_per_decade_extra must be > 0: %g", ErrInvalidConfig, c.KPerDecadeExtra)
	case c.NoWiggleOrder < 0 || c.NoWiggleOrder > nowiggle.MaxOrder:
		return fmt.Errorf("%w: no-wiggle order %d outside [0, %d]", ErrInvalidConfig, c.NoWiggleOrder, nowiggle.MaxOrder)
	case !(c.TiltStep > 0):
		return fmt.Errorf("%w: tilt step must be > 0: %g", ErrInvalidConfig, c.TiltStep)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers must be >= 0: %d", ErrInvalidConfig, c.Workers)
	case c.PkEq && c.PkEqTauSize < 2:
		return fmt.Errorf("%w: pk_eq table needs at least two times: %d", ErrInvalidConfig, c.PkEqTauSize)
	case c.Method == nonlinear.HMcode && c.HMcode.Version == nonlinear.HMcode2020Baryonic &&
		!(c.HMcode.Log10THeat >= nonlinear.MinLog10THeat && c.HMcode.Log10THeat <= nonlinear.MaxLog10THeat):
		return fmt.Errorf("%w: hmcode log10 T_heat outside [%g, %g]: %g", ErrInvalidConfig,
			nonlinear.MinLog10THeat, nonlinear.MaxLog10THeat, c.HMcode.Log10THeat)
	case c.needsNumericalNoWiggle() && c.Extrapolation == extrap.Zero:
		return fmt.Errorf("%w: numerical no-wiggle spectrum needs a non-zero extrapolation", ErrInvalidConfig)
	}

	if _, err := nonlinear.ParseMethod(c.Method.String()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := extrap.ParseKind(c.Extrapolation.String()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// needsNumericalNoWiggle reports whether the numerical no-wiggle table is
// built, either as a requested output or as the input of a dewiggled
// HMcode version.
func (c Config) needsNumericalNoWiggle() bool {
	return c.NumericalNoWiggle || (c.Method == nonlinear.HMcode && c.HMcode.Version.Dewiggled())
}
