package nowiggle

import (
	"math"

	"github.com/cwbudde/algo-pk/cosmo"
)

// SoundHorizon returns the Eisenstein-Hu fit to the sound horizon at the
// drag epoch [Mpc].
func SoundHorizon(p cosmo.Params) float64 {
	omh2 := p.OmegaM * p.H * p.H
	obh2 := p.OmegaB * p.H * p.H
	return 44.5 * math.Log(9.83/omh2) / math.Sqrt(1+10*math.Pow(obh2, 0.75))
}

// EisensteinHu returns the Eisenstein & Hu (1998) zero-baryon-wiggle
// transfer function at k [1/Mpc]. It tends to 1 on large scales.
func EisensteinHu(k float64, p cosmo.Params) float64 {
	h := p.H
	omh2 := p.OmegaM * h * h
	fb := p.OmegaB / p.OmegaM
	theta := p.TCMB / 2.7
	s := SoundHorizon(p)

	alphaGamma := 1 - 0.328*math.Log(431*omh2)*fb + 0.38*math.Log(22.3*omh2)*fb*fb
	ks := 0.43 * k * s
	gammaEff := p.OmegaM * h * (alphaGamma + (1-alphaGamma)/(1+ks*ks*ks*ks))

	q := k * theta * theta / (gammaEff * h)
	l0 := math.Log(2*math.E + 1.8*q)
	c0 := 14.2 + 731/(1+62.5*q)

	return l0 / (l0 + c0*q*q)
}
