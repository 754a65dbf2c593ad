// Package config loads pkinfo run descriptions with Viper.
//
// A run is a YAML (or any format Viper reads) file with four sections:
// cosmology, perturbations, primordial and fourier. Missing keys take the
// values of [DefaultConfig]; PKINFO_<SECTION>_<KEY> environment variables
// override both.
package config
