package nonlinear

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-pk/cosmo"
	"github.com/cwbudde/algo-pk/pk/core"
)

// Errors reported by nonlinear strategies.
var (
	// ErrLinearRegime reports that no nonlinear scale exists inside the
	// tabulated range at this time; the spectrum is linear on all scales.
	ErrLinearRegime = errors.New("nonlinear: no nonlinear scale in tabulated range")
	// ErrNotConverged reports a failed root search for the nonlinear scale.
	ErrNotConverged = errors.New("nonlinear: root search did not converge")
	// ErrMissingInput reports an input field the strategy requires.
	ErrMissingInput = errors.New("nonlinear: missing input")
)

// Method enumerates the nonlinear correction methods.
type Method int

const (
	None Method = iota
	Halofit
	HMcode
)

var methodNames = [...]string{None: "none", Halofit: "halofit", HMcode: "hmcode"}

// String implements fmt.Stringer.
func (m Method) String() string {
	if m >= 0 && int(m) < len(methodNames) {
		return methodNames[m]
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// ParseMethod resolves a method name as printed by [Method.String].
func ParseMethod(name string) (Method, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for m, s := range methodNames {
		if s == n {
			return Method(m), nil
		}
	}
	return 0, fmt.Errorf("nonlinear: unknown method %q", name)
}

// Input is the linear state a strategy corrects at one time.
type Input struct {
	// LnK is the extended wavenumber grid, ln(k [1/Mpc]).
	LnK []float64
	// LnPk is the linear ln P [Mpc^3] on LnK; a zero tail is -Inf.
	LnPk []float64
	// LnPkNoWiggle is the de-wiggled linear ln P on LnK, or nil.
	LnPkNoWiggle []float64
	// KSize is the number of leading wavenumbers receiving a correction.
	KSize  int
	State  cosmo.Snapshot
	Params cosmo.Params
}

func (in Input) validate() error {
	if len(in.LnK) != len(in.LnPk) {
		return fmt.Errorf("%w: %d wavenumbers for %d spectrum values", ErrMissingInput, len(in.LnK), len(in.LnPk))
	}
	if in.KSize <= 0 || in.KSize > len(in.LnK) {
		return fmt.Errorf("%w: correction size %d outside [1, %d]", ErrMissingInput, in.KSize, len(in.LnK))
	}
	if core.FinitePrefix(in.LnPk) < 2 {
		return fmt.Errorf("%w: fewer than two finite spectrum values", ErrMissingInput)
	}
	return nil
}

// Strategy computes nonlinear corrections at one time.
type Strategy interface {
	Method() Method
	// Correct writes sqrt(P_nl/P_lin) for the first in.KSize wavenumbers
	// into corr and returns the nonlinear wavenumber k_nl [1/Mpc].
	Correct(in Input, corr []float64) (float64, error)
}

// spectrum holds the finite part of a linear spectrum in the forms the
// strategies integrate.
type spectrum struct {
	lnK    []float64
	k      []float64
	pk     []float64
	delta2 []float64 // k^3 P / (2 pi^2)
}

func newSpectrum(lnK, lnPk []float64) spectrum {
	n := core.FinitePrefix(lnPk)
	s := spectrum{
		lnK:    lnK[:n],
		k:      make([]float64, n),
		pk:     make([]float64, n),
		delta2: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		s.k[i] = math.Exp(lnK[i])
		s.pk[i] = math.Exp(lnPk[i])
		s.delta2[i] = s.k[i] * s.k[i] * s.k[i] * s.pk[i] / (2 * math.Pi * math.Pi)
	}
	return s
}

func (s spectrum) kMin() float64 { return s.k[0] }

func (s spectrum) kMax() float64 { return s.k[len(s.k)-1] }

// bisect finds ln R with f(ln R) = 0 for f decreasing on [lo, hi].
func bisect(f func(float64) float64, lo, hi, tol float64, maxIter int) (float64, error) {
	flo, fhi := f(lo), f(hi)
	if flo < 0 {
		return 0, ErrLinearRegime
	}
	if fhi > 0 {
		return 0, fmt.Errorf("%w: nonlinear on all tabulated scales", ErrNotConverged)
	}

	for i := 0; i < maxIter; i++ {
		mid := 0.5 * (lo + hi)
		fm := f(mid)
		if math.Abs(fm) <= tol {
			return mid, nil
		}
		if fm > 0 {
			lo = mid
		} else {
			hi = mid
		}
	}

	return 0, fmt.Errorf("%w after %d iterations", ErrNotConverged, maxIter)
}
