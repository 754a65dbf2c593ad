package conv

import (
	"errors"
	"fmt"

	algofft "github.com/cwbudde/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-pk/pk/core"
)

// Errors returned by convolution functions.
var (
	ErrEmptyInput     = errors.New("conv: empty input")
	ErrEmptyKernel    = errors.New("conv: empty kernel")
	ErrLengthMismatch = errors.New("conv: buffer length mismatch")
	ErrKernelTooLong  = errors.New("conv: kernel longer than signal")
)

// Mode specifies the output mode for convolution.
type Mode int

const (
	// ModeFull returns the full convolution result with length len(a)+len(b)-1.
	ModeFull Mode = iota

	// ModeSame returns output with the same length as the first input.
	ModeSame
)

// Direct performs direct linear convolution of a and b.
// Returns a new slice of length len(a) + len(b) - 1.
func Direct(a, b []float64) ([]float64, error) {
	if len(a) == 0 {
		return nil, ErrEmptyInput
	}
	if len(b) == 0 {
		return nil, ErrEmptyKernel
	}

	result := make([]float64, len(a)+len(b)-1)
	temp := make([]float64, len(b))

	for i := range a {
		vecmath.ScaleBlock(temp, b, a[i])
		vecmath.AddBlockInPlace(result[i:i+len(b)], temp)
	}

	return result, nil
}

// FFT performs linear convolution through a single zero-padded FFT of
// power-of-two size. Returns a new slice of length len(a) + len(b) - 1.
func FFT(a, b []float64) ([]float64, error) {
	if len(a) == 0 {
		return nil, ErrEmptyInput
	}
	if len(b) == 0 {
		return nil, ErrEmptyKernel
	}

	outLen := len(a) + len(b) - 1
	n := core.NextPowerOf2(outLen)

	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return nil, fmt.Errorf("conv: failed to create FFT plan: %w", err)
	}

	fa := make([]complex128, n)
	fb := make([]complex128, n)
	for i, v := range a {
		fa[i] = complex(v, 0)
	}
	for i, v := range b {
		fb[i] = complex(v, 0)
	}

	if err := plan.Forward(fa, fa); err != nil {
		return nil, fmt.Errorf("conv: forward FFT failed: %w", err)
	}
	if err := plan.Forward(fb, fb); err != nil {
		return nil, fmt.Errorf("conv: forward FFT failed: %w", err)
	}

	for i := range fa {
		fa[i] *= fb[i]
	}

	if err := plan.Inverse(fa, fa); err != nil {
		return nil, fmt.Errorf("conv: inverse FFT failed: %w", err)
	}

	out := make([]float64, outLen)
	for i := range out {
		out[i] = real(fa[i])
	}

	return out, nil
}

// Convolve performs linear convolution with automatic algorithm selection:
// direct for kernels up to 64 samples, FFT otherwise.
func Convolve(a, b []float64) ([]float64, error) {
	if len(a) == 0 {
		return nil, ErrEmptyInput
	}
	if len(b) == 0 {
		return nil, ErrEmptyKernel
	}

	const directThreshold = 64
	if len(b) <= directThreshold || len(a) <= directThreshold {
		return Direct(a, b)
	}

	return FFT(a, b)
}

// ConvolveMode performs convolution with the specified output mode.
func ConvolveMode(a, b []float64, mode Mode) ([]float64, error) {
	full, err := Convolve(a, b)
	if err != nil {
		return nil, err
	}

	return trimToMode(full, len(a), len(b), mode), nil
}

// trimToMode extracts the appropriate portion of a full convolution result.
func trimToMode(full []float64, lenA, lenB int, mode Mode) []float64 {
	switch mode {
	case ModeSame:
		start := (lenB - 1) / 2
		return full[start : start+lenA]
	default:
		return full
	}
}

// Smooth convolves signal with an odd-length, centered kernel and returns a
// slice of the same length as signal. The signal is mirrored about its end
// points before filtering, so a linear trend passes through a symmetric
// unit-sum kernel unchanged.
func Smooth(signal, kernel []float64) ([]float64, error) {
	if len(signal) == 0 {
		return nil, ErrEmptyInput
	}
	if len(kernel) == 0 {
		return nil, ErrEmptyKernel
	}
	if len(kernel)%2 == 0 {
		return nil, fmt.Errorf("conv: smoothing kernel length must be odd: %d", len(kernel))
	}

	half := len(kernel) / 2
	if half >= len(signal) {
		return nil, fmt.Errorf("%w: half-width %d, signal %d", ErrKernelTooLong, half, len(signal))
	}

	padded := reflectPad(signal, half)

	same, err := ConvolveMode(padded, kernel, ModeSame)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(signal))
	copy(out, same[half:half+len(signal)])

	return out, nil
}

// reflectPad extends x by n samples on each side using odd reflection about
// the end points, x[-i] = 2x[0] - x[i].
func reflectPad(x []float64, n int) []float64 {
	last := len(x) - 1
	out := make([]float64, len(x)+2*n)
	copy(out[n:], x)

	for i := 1; i <= n; i++ {
		out[n-i] = 2*x[0] - x[i]
		out[n+last+i] = 2*x[last] - x[last-i]
	}

	return out
}
