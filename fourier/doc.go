// Package fourier builds matter power spectrum tables from linear transfer
// functions and a primordial spectrum, and answers point and grid queries
// on them.
//
// [New] runs every stage once: it assigns spectrum-type and
// initial-condition pair indices, extends the wavenumber grid above the
// native sampling, combines transfers and primordial power into linear
// ln P tables, optionally splits off smooth no-wiggle spectra, and applies
// a nonlinear strategy (Halofit or HMcode) from the latest time backwards
// until the linear regime is reached. The engine is read-only afterwards
// and its query methods may run concurrently until [Engine.Close].
//
// Lengths are Mpc, wavenumbers 1/Mpc and spectra Mpc^3. Tables are splined
// in ln tau and queried by redshift through the background.
package fourier
