// Package interp provides natural cubic spline interpolation for tabulated
// power spectra.
//
// Two entry points are offered:
//
//   - [Spline]: a single curve y(x), used for k-space profiles.
//   - [NaturalColumns] / [EvalColumns]: many curves sharing one abscissa,
//     stored row-major, used for tables splined along ln(tau).
//
// Splines pass exactly through their knots. Columns containing -Inf (a
// power spectrum that is identically zero) are interpolated linearly and
// evaluate to -Inf inside any segment touching such a value.
package interp
