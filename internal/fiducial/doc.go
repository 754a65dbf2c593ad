// Package fiducial provides analytic stand-ins for the background,
// perturbation and primordial collaborators of the power spectrum engine.
//
// The background integrates a flat w0waCDM model with radiation; the
// transfer functions follow the Eisenstein-Hu no-wiggle shape, optionally
// modulated by a damped acoustic oscillation, and scale with the linear
// growth. They are accurate to tens of percent and exist to drive tests,
// examples and the command-line tool.
package fiducial
