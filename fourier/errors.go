package fourier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cwbudde/algo-pk/cosmo"
)

// Errors returned by the engine. Numerical failures of the nonlinear
// strategies and the variance integrator keep their own sentinels
// (nonlinear.ErrNotConverged, sigma.ErrNotConverged) and are wrapped.
var (
	// ErrNoSpectrumType reports a configuration requesting neither m nor cb.
	ErrNoSpectrumType = errors.New("fourier: no spectrum type requested")
	// ErrNoInitialConditions reports perturbations without initial conditions.
	ErrNoInitialConditions = errors.New("fourier: no initial conditions")
	// ErrInvalidConfig reports an invalid or inconsistent setting.
	ErrInvalidConfig = errors.New("fourier: invalid configuration")
	// ErrTooManyExtrapolationPoints reports an extended k grid above MaxExtrapolationPoints.
	ErrTooManyExtrapolationPoints = errors.New("fourier: too many extrapolation points")
	// ErrOutOfRange reports a redshift or wavenumber outside the tables.
	ErrOutOfRange = errors.New("fourier: outside tabulated range")
	// ErrNotAllocated reports a query on an engine that was closed.
	ErrNotAllocated = errors.New("fourier: engine not allocated")
	// ErrUnavailable reports an output that was not computed.
	ErrUnavailable = errors.New("fourier: output not available")
)

// Error attaches the failing operation, spectrum type and conformal time
// to an underlying error.
type Error struct {
	Op      string
	Type    cosmo.SpectrumType
	HasType bool
	Tau     float64 // 0 when the failure is not tied to a time
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("fourier: ")
	b.WriteString(e.Op)
	if e.HasType {
		fmt.Fprintf(&b, " [%s]", e.Type)
	}
	if e.Tau != 0 {
		fmt.Fprintf(&b, " at tau=%g", e.Tau)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func typedError(op string, t cosmo.SpectrumType, tau float64, err error) error {
	return &Error{Op: op, Type: t, HasType: true, Tau: tau, Err: err}
}
