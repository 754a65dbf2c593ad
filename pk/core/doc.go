// Package core holds small numeric helpers shared by the power spectrum
// packages: comparisons with tolerance, grid construction, simple quadrature
// and buffer filling.
package core
