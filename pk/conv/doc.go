// Package conv provides the convolution routines used to smooth tabulated
// spectra.
//
//   - [Direct]: O(N*M) time-domain convolution, best for short kernels
//   - [FFT]: single-shot zero-padded FFT convolution
//   - [Convolve]: picks one of the two from the input sizes
//   - [Smooth]: same-length filtering with mirrored edges
//
// # Usage
//
//	kernel, err := window.Gauss(sigmaSamples)
//	smooth, err := conv.Smooth(samples, kernel)
package conv
