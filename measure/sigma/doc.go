// Package sigma integrates a linear power spectrum against a smoothing
// window to obtain the variance of the density field on a comoving scale R:
//
//	sigma^2(R)      = Int dln k  k^3 P(k) / (2 pi^2)  W(kR)^2
//	sigma_prime(R)  = d ln sigma / d ln R
//	sigma_disp^2(R) = Int dk  P(k) W(kR)^2 / (6 pi^2)
//
// Integrals use composite Simpson quadrature in ln k; the sampling density is
// doubled until two successive estimates agree within the configured
// relative tolerance.
package sigma
