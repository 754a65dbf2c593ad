// Package extrap extends transfer functions beyond the largest natively
// sampled wavenumber k_max. Every policy is anchored on the transfer value
// S_max at k_max and is continuous there:
//
//   - [Zero]:         S = 0, the power spectrum vanishes beyond k_max
//   - [OnlyMax]:      S = S_max
//   - [OnlyMaxUnits]: S = S_max * k/k_max
//   - [MaxScaled]:    S = S_max * ln(k/k_eq) / ln(k_max/k_eq)
//   - [HMcode]:       S = S_max * ln(1+2.34q) / ln(1+2.34q_max), q = k/Gamma
//   - [UserDefined]:  caller-provided [Func]
//
// The MaxScaled and HMcode forms follow the logarithmic growth of small-scale
// density modes that entered the horizon during radiation domination.
package extrap
