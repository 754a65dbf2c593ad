// Package nonlinear computes the correction factor sqrt(P_nl/P_lin) that
// maps a linear matter power spectrum onto its nonlinear counterpart at one
// conformal time.
//
// Strategies:
//
//   - [Halofit]: Takahashi et al. (2012) fit with Bird et al. (2012)
//     massive-neutrino terms
//   - [HMcode]: Mead et al. (2015, 2021) halo model with baryonic feedback
//     calibrations
//
// [PkEq.Wrap] evaluates any strategy in the equivalent constant-w cosmology
// of a time-varying dark energy history.
//
// A strategy reports [ErrLinearRegime] when no nonlinear scale exists in
// the tabulated wavenumber range; callers treat that time and every earlier
// one as linear.
package nonlinear
