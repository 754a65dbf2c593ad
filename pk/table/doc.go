// Package table stores power spectrum tables addressed by (time, k, pair)
// with O(1) accessors, together with their natural-spline second derivatives
// in ln(tau).
package table
