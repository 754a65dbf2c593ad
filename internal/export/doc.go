// Package export stores power spectra, smoothed variances and nonlinear
// scales of engine runs in a SQLite database. Each run gets a UUID and
// keeps the configuration it was built from.
package export
