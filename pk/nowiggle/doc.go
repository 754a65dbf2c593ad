// Package nowiggle builds smooth, oscillation-free versions of the linear
// matter power spectrum.
//
// [Analytic] combines the Eisenstein & Hu (1998) no-wiggle transfer function
// with a low-order polynomial in ln k, fitted by least squares to the full
// spectrum so that the broadband shape matches while baryon acoustic
// oscillations average out.
//
// [Filter] removes the oscillations numerically: the ratio of the spectrum
// to a smooth reference is resampled on a uniform ln k grid, convolved with
// a Gaussian through the FFT, and multiplied back.
package nowiggle
