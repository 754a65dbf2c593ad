// Package cosmo declares the collaborators the power spectrum engine reads
// from: the homogeneous background, the linear perturbations and the
// primordial spectrum. Units are Mpc for lengths and 1/Mpc for wavenumbers.
package cosmo

// Params holds the present-day cosmological parameters the engine needs
// for fitting formulas and scale conversions.
type Params struct {
	H        float64 // reduced Hubble constant h
	OmegaB   float64 // baryons today
	OmegaCDM float64 // cold dark matter today
	OmegaNu  float64 // massive neutrinos today
	OmegaM   float64 // total non-relativistic matter today
	TCMB     float64 // CMB temperature [K]
	KEq      float64 // wavenumber entering the horizon at matter-radiation equality [1/Mpc]
	NuMassEV float64 // summed neutrino mass [eV]
}

// Snapshot describes the background at one conformal time.
type Snapshot struct {
	Tau     float64 // conformal time [Mpc]
	Z       float64
	A       float64 // scale factor, 1 today
	OmegaM  float64 // matter density parameter at this time
	OmegaDE float64 // dark-energy density parameter at this time
	W       float64 // dark-energy equation of state
	Growth  float64 // linear growth factor, 1 today
}

// Background maps redshift to conformal time and reports background
// quantities.
type Background interface {
	// TauOfZ returns the conformal time at redshift z. It fails for
	// redshifts outside the tabulated range.
	TauOfZ(z float64) (float64, error)
	// At returns the background state at conformal time tau.
	At(tau float64) (Snapshot, error)
	// Params returns the present-day parameters.
	Params() Params
}

// SpectrumType selects the density field a spectrum describes.
type SpectrumType int

const (
	// Matter is the total non-relativistic matter density.
	Matter SpectrumType = iota
	// ColdBaryon is the cold dark matter plus baryon density.
	ColdBaryon
)

// String implements fmt.Stringer.
func (s SpectrumType) String() string {
	switch s {
	case Matter:
		return "m"
	case ColdBaryon:
		return "cb"
	default:
		return "unknown"
	}
}

// Perturbations exposes linear transfer functions on the native grids.
type Perturbations interface {
	// K returns the native wavenumber sampling, strictly increasing.
	K() []float64
	// Tau returns the conformal times of the stored sources, increasing.
	Tau() []float64
	// ICs returns the number of initial conditions.
	ICs() int
	// HasColdBaryon reports whether a distinct cdm+baryon source exists.
	HasColdBaryon() bool
	// Transfer returns the density transfer function of type t for initial
	// condition ic at time index iTau, one value per native wavenumber.
	Transfer(t SpectrumType, ic, iTau int) ([]float64, error)
}

// Primordial provides the dimensionless primordial spectrum.
type Primordial interface {
	// Spectrum writes the primordial power for every initial-condition pair
	// at wavenumber k into out, using the symmetric pair ordering
	// (0,0), (0,1), ..., (0,N-1), (1,1), ... Diagonal entries are the
	// positive auto-spectra; off-diagonal entries are cross-spectra.
	Spectrum(k float64, out []float64) error
}

// PairIndex returns the symmetric index of (ic1, ic2) among n initial
// conditions.
func PairIndex(ic1, ic2, n int) int {
	if ic1 > ic2 {
		ic1, ic2 = ic2, ic1
	}
	return ic1*n + ic2 - ic1*(ic1+1)/2
}

// PairCount returns n(n+1)/2.
func PairCount(n int) int {
	return n * (n + 1) / 2
}
