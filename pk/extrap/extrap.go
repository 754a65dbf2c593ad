package extrap

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidTail is returned when an anchor cannot support a policy.
var ErrInvalidTail = errors.New("extrap: invalid tail anchor")

// Kind enumerates the extrapolation policies for transfer functions beyond
// the largest natively sampled wavenumber.
type Kind int

const (
	Zero Kind = iota
	OnlyMax
	OnlyMaxUnits
	MaxScaled
	HMcode
	UserDefined
)

var kindNames = [...]string{
	Zero:         "zero",
	OnlyMax:      "only_max",
	OnlyMaxUnits: "only_max_units",
	MaxScaled:    "max_scaled",
	HMcode:       "hmcode",
	UserDefined:  "user_defined",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("extrap(%d)", int(k))
}

// ParseKind resolves a policy name as printed by [Kind.String].
func ParseKind(name string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for k, s := range kindNames {
		if s == n {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("extrap: unknown policy %q", name)
}

// Tail anchors a policy to the last native sample of one transfer function.
type Tail struct {
	KMax      float64 // largest native wavenumber [1/Mpc]
	SourceMax float64 // transfer function at KMax
	KEq       float64 // matter-radiation equality scale [1/Mpc]
	Gamma     float64 // shape parameter Omega_m h^2 [1/Mpc]
}

// Func computes a user-defined transfer value at k > tail.KMax.
type Func func(k float64, tail Tail) float64

// Policy extends a transfer function beyond tail.KMax.
type Policy interface {
	Kind() Kind
	Validate(tail Tail) error
	Source(k float64, tail Tail) float64
}

// New returns the built-in policy for kind. UserDefined requires [Custom].
func New(kind Kind) (Policy, error) {
	switch kind {
	case Zero, OnlyMax, OnlyMaxUnits, MaxScaled, HMcode:
		return builtin(kind), nil
	case UserDefined:
		return nil, fmt.Errorf("extrap: %s policy needs a function, use Custom", kind)
	default:
		return nil, fmt.Errorf("extrap: unknown policy %d", int(kind))
	}
}

// Custom wraps f as a user-defined policy.
func Custom(f Func) (Policy, error) {
	if f == nil {
		return nil, errors.New("extrap: nil user-defined function")
	}
	return custom(f), nil
}

type builtin Kind

func (b builtin) Kind() Kind { return Kind(b) }

func (b builtin) Validate(tail Tail) error {
	if !(tail.KMax > 0) {
		return fmt.Errorf("%w: k_max must be > 0: %g", ErrInvalidTail, tail.KMax)
	}
	switch Kind(b) {
	case MaxScaled:
		if !(tail.KEq > 0) || tail.KMax <= tail.KEq {
			return fmt.Errorf("%w: %s needs 0 < k_eq < k_max, got k_eq=%g k_max=%g",
				ErrInvalidTail, Kind(b), tail.KEq, tail.KMax)
		}
	case HMcode:
		if !(tail.Gamma > 0) {
			return fmt.Errorf("%w: %s needs a positive shape parameter: %g", ErrInvalidTail, Kind(b), tail.Gamma)
		}
	}
	return nil
}

func (b builtin) Source(k float64, tail Tail) float64 {
	switch Kind(b) {
	case OnlyMax:
		return tail.SourceMax
	case OnlyMaxUnits:
		return tail.SourceMax * k / tail.KMax
	case MaxScaled:
		return tail.SourceMax * math.Log(k/tail.KEq) / math.Log(tail.KMax/tail.KEq)
	case HMcode:
		q := k / tail.Gamma
		qMax := tail.KMax / tail.Gamma
		return tail.SourceMax * math.Log1p(2.34*q) / math.Log1p(2.34*qMax)
	default:
		return 0
	}
}

type custom Func

func (c custom) Kind() Kind { return UserDefined }

func (c custom) Validate(tail Tail) error {
	if !(tail.KMax > 0) {
		return fmt.Errorf("%w: k_max must be > 0: %g", ErrInvalidTail, tail.KMax)
	}
	return nil
}

func (c custom) Source(k float64, tail Tail) float64 {
	return c(k, tail)
}
