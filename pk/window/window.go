package window

import (
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-vecmath"
)

// Type identifies a Fourier-space smoothing window W(kR).
type Type int

const (
	TypeTopHat Type = iota
	TypeGauss
	TypeSharpK
)

// Metadata holds static properties of a window type.
type Metadata struct {
	Name string
	// Differentiable is false when dW/dx is a distribution rather than a function.
	Differentiable bool
}

var metadataByType = map[Type]Metadata{
	TypeTopHat: {Name: "tophat", Differentiable: true},
	TypeGauss:  {Name: "gauss", Differentiable: true},
	TypeSharpK: {Name: "sharp-k", Differentiable: false},
}

// Info returns static metadata for a window type.
func Info(t Type) Metadata {
	if m, ok := metadataByType[t]; ok {
		return m
	}

	return Metadata{}
}

// String implements fmt.Stringer.
func (t Type) String() string {
	if m, ok := metadataByType[t]; ok {
		return m.Name
	}
	return fmt.Sprintf("window(%d)", int(t))
}

// Parse resolves a window name as printed by [Type.String].
func Parse(name string) (Type, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for t, m := range metadataByType {
		if m.Name == n {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown window %q", name)
}

// Below this argument the top-hat window uses its Taylor series.
const tophatSeriesLimit = 1e-2

// Eval returns W(x) for x = kR >= 0.
func Eval(t Type, x float64) float64 {
	switch t {
	case TypeTopHat:
		if x < tophatSeriesLimit {
			x2 := x * x
			return 1 - x2/10 + x2*x2/280
		}
		return 3 * (math.Sin(x) - x*math.Cos(x)) / (x * x * x)
	case TypeGauss:
		return math.Exp(-0.5 * x * x)
	case TypeSharpK:
		if x <= 1 {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// Derivative returns dW/dx at x = kR. The sharp-k window returns 0; callers
// needing its distributional derivative must check [Metadata.Differentiable].
func Derivative(t Type, x float64) float64 {
	switch t {
	case TypeTopHat:
		if x < tophatSeriesLimit {
			return -x/5 + x*x*x/70
		}
		x2 := x * x
		return 3 * ((x2-3)*math.Sin(x) + 3*x*math.Cos(x)) / (x2 * x2)
	case TypeGauss:
		return -x * math.Exp(-0.5*x*x)
	default:
		return 0
	}
}

// EvalBlock fills dst with W(x[i]) for every x.
func EvalBlock(t Type, dst, x []float64) {
	for i, v := range x {
		dst[i] = Eval(t, v)
	}
}

// Gauss returns a unit-sum sampled Gaussian kernel with standard deviation
// sigma (in samples), truncated at four standard deviations on each side.
func Gauss(sigma float64) ([]float64, error) {
	if err := validateGauss(sigma); err != nil {
		return nil, err
	}

	half := int(math.Ceil(4 * sigma))
	out := make([]float64, 2*half+1)
	for i := range out {
		d := float64(i-half) / sigma
		out[i] = math.Exp(-0.5 * d * d)
	}

	vecmath.ScaleBlockInPlace(out, 1/vecmath.Sum(out))

	return out, nil
}
