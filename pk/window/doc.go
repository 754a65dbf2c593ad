// Package window provides Fourier-space smoothing windows used to filter a
// density field on a comoving scale R, and sampled Gaussian kernels used to
// smooth tabulated spectra.
//
// Windows are functions of x = kR:
//
//   - [TypeTopHat]: spherical top-hat, W = 3(sin x - x cos x)/x^3
//   - [TypeGauss]:  Gaussian, W = exp(-x^2/2)
//   - [TypeSharpK]: step in k, W = 1 for x <= 1
package window
