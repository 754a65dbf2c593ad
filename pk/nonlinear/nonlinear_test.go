package nonlinear

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-pk/cosmo"
	"github.com/cwbudde/algo-pk/internal/fiducial"
	"github.com/cwbudde/algo-pk/pk/nowiggle"
)

func planck() cosmo.Params {
	return cosmo.Params{H: 0.67, OmegaB: 0.049, OmegaCDM: 0.265, OmegaM: 0.314, TCMB: 2.7255}
}

// flatLCDM is a background whose conformal time is the scale factor.
type flatLCDM struct{ p cosmo.Params }

func (b flatLCDM) TauOfZ(z float64) (float64, error) {
	if z < 0 || z > 1e4 {
		return 0, errors.New("z out of range")
	}
	return 1 / (1 + z), nil
}

func (b flatLCDM) At(tau float64) (cosmo.Snapshot, error) {
	a := tau
	om := b.p.OmegaM / (a * a * a)
	e2 := om + 1 - b.p.OmegaM
	return cosmo.Snapshot{
		Tau:     tau,
		Z:       1/a - 1,
		A:       a,
		OmegaM:  om / e2,
		OmegaDE: (1 - b.p.OmegaM) / e2,
		W:       -1,
		Growth:  lcdmGrowth(b.p.OmegaM, a),
	}, nil
}

func (b flatLCDM) Params() cosmo.Params { return b.p }

func linearInput(t *testing.T, sigma8 float64) Input {
	t.Helper()

	p := planck()
	n := 400
	in := Input{
		LnK:    make([]float64, n),
		LnPk:   make([]float64, n),
		KSize:  n,
		Params: p,
		State:  cosmo.Snapshot{Tau: 1, A: 1, OmegaM: p.OmegaM, OmegaDE: 1 - p.OmegaM, W: -1, Growth: 1},
	}
	for i := range in.LnK {
		in.LnK[i] = math.Log(1e-4) + float64(i)*math.Log(1e6)/float64(n-1)
		k := math.Exp(in.LnK[i])
		tk := nowiggle.EisensteinHu(k, p)
		in.LnPk[i] = math.Log(k * tk * tk)
	}

	s := newSpectrum(in.LnK, in.LnPk)
	s8 := math.Sqrt(tophatSigma2(s, 8/p.H, make([]float64, n)))
	shift := 2 * math.Log(sigma8/s8)
	for i := range in.LnPk {
		in.LnPk[i] += shift
	}
	return in
}

func correctionAt(in Input, corr []float64, k float64) float64 {
	best := 0
	for i, x := range in.LnK {
		if math.Abs(x-math.Log(k)) < math.Abs(in.LnK[best]-math.Log(k)) {
			best = i
		}
	}
	return corr[best]
}

func TestParseMethod(t *testing.T) {
	for _, m := range []Method{None, Halofit, HMcode} {
		got, err := ParseMethod(m.String())
		require.NoError(t, err)
		require.Equal(t, m, got)
	}
	_, err := ParseMethod("fitting")
	require.Error(t, err)
}

func TestHalofitCorrection(t *testing.T) {
	in := linearInput(t, 0.8)
	corr := make([]float64, in.KSize)

	knl, err := NewHalofit(HalofitConfig{}).Correct(in, corr)
	require.NoError(t, err)
	require.Greater(t, knl, 0.05)
	require.Less(t, knl, 5.0)

	require.InDelta(t, 1, correctionAt(in, corr, 1e-3), 1e-2)
	require.Greater(t, correctionAt(in, corr, 1), 1.2)
	for i, c := range corr {
		require.False(t, math.IsNaN(c) || math.IsInf(c, 0), "corr[%d]=%g", i, c)
	}
}

func TestHalofitZeroTailGetsUnitCorrection(t *testing.T) {
	in := linearInput(t, 0.8)
	for i := len(in.LnPk) - 10; i < len(in.LnPk); i++ {
		in.LnPk[i] = math.Inf(-1)
	}
	corr := make([]float64, in.KSize)

	_, err := NewHalofit(HalofitConfig{}).Correct(in, corr)
	require.NoError(t, err)
	for i := len(corr) - 10; i < len(corr); i++ {
		require.Equal(t, 1.0, corr[i])
	}
}

func TestLinearRegime(t *testing.T) {
	in := linearInput(t, 1e-6)
	corr := make([]float64, in.KSize)

	_, err := NewHalofit(HalofitConfig{}).Correct(in, corr)
	require.ErrorIs(t, err, ErrLinearRegime)

	hm, err := NewHMcode(flatLCDM{planck()}, DefaultHMcodeConfig())
	require.NoError(t, err)
	in.LnPkNoWiggle = append([]float64(nil), in.LnPk...)
	_, err = hm.Correct(in, corr)
	require.ErrorIs(t, err, ErrLinearRegime)
}

func TestInputValidation(t *testing.T) {
	in := linearInput(t, 0.8)
	in.KSize = 0
	_, err := NewHalofit(HalofitConfig{}).Correct(in, make([]float64, 1))
	require.ErrorIs(t, err, ErrMissingInput)
}

func TestHMcodeVersionNames(t *testing.T) {
	tests := []struct {
		name      string
		want      HMcodeVersion
		dewiggled bool
	}{
		{"2015", HMcode2015, false},
		{"2020", HMcode2020, true},
		{"2020_unfitted", HMcode2020Unfitted, false},
		{"2020_baryonic", HMcode2020Baryonic, true},
	}
	for _, tt := range tests {
		got, err := ParseHMcodeVersion(tt.name)
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
		require.Equal(t, tt.name, got.String())
		require.Equal(t, tt.dewiggled, got.Dewiggled())
	}

	_, err := ParseHMcodeVersion("2016")
	require.Error(t, err)
}

// hmcodeCorrection runs cfg on a smooth sigma8 = 0.8 spectrum.
func hmcodeCorrection(t *testing.T, cfg HMcodeConfig) (Input, []float64) {
	t.Helper()

	hm, err := NewHMcode(flatLCDM{planck()}, cfg)
	require.NoError(t, err)

	in := linearInput(t, 0.8)
	in.LnPkNoWiggle = append([]float64(nil), in.LnPk...)
	corr := make([]float64, in.KSize)
	knl, err := hm.Correct(in, corr)
	require.NoError(t, err)
	require.Greater(t, knl, 0.0)
	return in, corr
}

func TestHMcodeCorrection(t *testing.T) {
	for _, v := range []HMcodeVersion{HMcode2015, HMcode2020, HMcode2020Unfitted, HMcode2020Baryonic} {
		t.Run(v.String(), func(t *testing.T) {
			cfg := DefaultHMcodeConfig()
			cfg.Version = v
			in, corr := hmcodeCorrection(t, cfg)

			require.InDelta(t, 1, correctionAt(in, corr, 1e-3), 1e-2)
			require.Greater(t, correctionAt(in, corr, 1), 1.2)
			for i, c := range corr {
				require.False(t, math.IsNaN(c) || math.IsInf(c, 0), "corr[%d] = %g", i, c)
			}
		})
	}
}

func TestHMcodeVersionsDiffer(t *testing.T) {
	at := func(v HMcodeVersion) float64 {
		cfg := DefaultHMcodeConfig()
		cfg.Version = v
		in, corr := hmcodeCorrection(t, cfg)
		return correctionAt(in, corr, 2)
	}

	c2015 := at(HMcode2015)
	c2020 := at(HMcode2020)
	unfitted := at(HMcode2020Unfitted)
	require.Greater(t, math.Abs(c2020/c2015-1), 1e-3)
	require.Greater(t, math.Abs(c2020/unfitted-1), 1e-3)
}

func TestHMcodeBaryonicFeedback(t *testing.T) {
	cfg := DefaultHMcodeConfig()
	cfg.Version = HMcode2020Baryonic
	cfg.Log10THeat = 9
	_, err := NewHMcode(flatLCDM{planck()}, cfg)
	require.Error(t, err)

	// Without the baryonic version the heating temperature is ignored.
	cfg.Version = HMcode2020
	_, err = NewHMcode(flatLCDM{planck()}, cfg)
	require.NoError(t, err)

	at := func(log10T float64) float64 {
		c := DefaultHMcodeConfig()
		c.Version = HMcode2020Baryonic
		c.Log10THeat = log10T
		in, corr := hmcodeCorrection(t, c)
		return correctionAt(in, corr, 3)
	}

	// Stronger AGN heating removes more gas from haloes.
	weak, strong := at(7.3), at(8.3)
	require.Less(t, strong, weak)

	dmo := DefaultHMcodeConfig()
	in, corr := hmcodeCorrection(t, dmo)
	require.Less(t, strong, correctionAt(in, corr, 3))
}

func TestHMcodeDewiggledNeedsNoWiggle(t *testing.T) {
	cfg := DefaultHMcodeConfig()
	cfg.Version = HMcode2020
	hm, err := NewHMcode(flatLCDM{planck()}, cfg)
	require.NoError(t, err)

	in := linearInput(t, 0.8)
	corr := make([]float64, in.KSize)
	_, err = hm.Correct(in, corr)
	require.ErrorIs(t, err, ErrMissingInput)

	// The unfitted version works on the linear spectrum alone.
	cfg.Version = HMcode2020Unfitted
	hm, err = NewHMcode(flatLCDM{planck()}, cfg)
	require.NoError(t, err)
	_, err = hm.Correct(in, corr)
	require.NoError(t, err)
}

func TestHMcodeFeedback(t *testing.T) {
	for f := EmuDMOnly; f < FeedbackUserDefined; f++ {
		got, err := ParseFeedback(f.String())
		require.NoError(t, err)
		require.Equal(t, f, got)
	}

	cfg := DefaultHMcodeConfig()
	cfg.Version = HMcode2015
	cfg.Feedback = FeedbackUserDefined
	_, err := NewHMcode(flatLCDM{planck()}, cfg)
	require.Error(t, err)

	cfg.CMin, cfg.Eta0 = 2.5, 0.7
	hm, err := NewHMcode(flatLCDM{planck()}, cfg)
	require.NoError(t, err)
	require.Equal(t, 2.5, hm.cMin)
	require.Equal(t, 0.7, hm.eta0)

	// The feedback amplitudes only enter the 2015 fit.
	low := cfg
	low.CMin = 2
	_, cLow := hmcodeCorrection(t, low)
	in, cHigh := hmcodeCorrection(t, cfg)
	require.Less(t, correctionAt(in, cLow, 3), correctionAt(in, cHigh, 3))
}

func TestSineCosineIntegrals(t *testing.T) {
	tests := []struct {
		x, si, ci float64
	}{
		{1, 0.946083070367183, 0.337403922900968},
		{10, 1.658347594218874, -0.045456433004455},
		{20, 1.548241701043439, 0.044419820845353},
	}
	for _, tt := range tests {
		si, ci := sineCosineIntegrals(tt.x)
		require.InDelta(t, tt.si, si, 1e-6, "Si(%g)", tt.x)
		require.InDelta(t, tt.ci, ci, 1e-6, "Ci(%g)", tt.x)
	}

	loS, loC := sineCosineIntegrals(trigSeriesLimit)
	hiS, hiC := sineCosineIntegrals(math.Nextafter(trigSeriesLimit, 9))
	require.InDelta(t, loS, hiS, 1e-6)
	require.InDelta(t, loC, hiC, 1e-6)
}

func TestNFWWindow(t *testing.T) {
	require.Equal(t, 1.0, nfwWindow(1e-4, 1, 5))
	require.InDelta(t, 1, nfwWindow(1e-2, 1, 5), 1e-3)
	require.Less(t, nfwWindow(10, 1, 5), nfwWindow(1, 1, 5))
}

func TestShethTormenNormalized(t *testing.T) {
	n := 200000
	lo, hi := math.Log(1e-14), math.Log(100.0)
	sum := 0.0
	for i := 0; i < n; i++ {
		a := lo + (hi-lo)*float64(i)/float64(n)
		b := lo + (hi-lo)*float64(i+1)/float64(n)
		fa := shethTormen(math.Exp(a)) * math.Exp(a)
		fb := shethTormen(math.Exp(b)) * math.Exp(b)
		sum += 0.5 * (fa + fb) * (b - a)
	}
	require.InDelta(t, 1, sum, 1e-3)
}

type recorder struct{ in Input }

func (r *recorder) Method() Method { return Halofit }

func (r *recorder) Correct(in Input, corr []float64) (float64, error) {
	r.in = in
	return 0.5, nil
}

func TestPkEqConstantW(t *testing.T) {
	bg := flatLCDM{planck()}
	eq, err := NewPkEq(bg, 1.0/6, 1, 12)
	require.NoError(t, err)

	for _, tau := range []float64{1.0 / 6, 0.5, 1} {
		w, om, err := eq.At(tau)
		require.NoError(t, err)
		st, err := bg.At(tau)
		require.NoError(t, err)
		require.InDelta(t, -1, w, 1e-6, "tau=%g", tau)
		require.InDelta(t, st.OmegaM, om, 1e-6, "tau=%g", tau)
	}

	_, err = NewPkEq(bg, 1, 0.5, 12)
	require.Error(t, err)
	_, err = NewPkEq(bg, 1e-5, 1, 12)
	require.Error(t, err)
}

func TestPkEqEvolvingDarkEnergy(t *testing.T) {
	c := fiducial.Planck()
	c.W0, c.Wa = -0.9, -0.3
	bg, err := fiducial.NewBackground(c, 0)
	require.NoError(t, err)

	tau1, err := bg.TauOfZ(1)
	require.NoError(t, err)
	tau0 := bg.ConformalAge()
	eq, err := NewPkEq(bg, tau1, tau0, 16)
	require.NoError(t, err)

	// The distance to recombination averages w over the past, so the
	// equivalent w is well below the instantaneous one today.
	w, om, err := eq.At(tau0)
	require.NoError(t, err)
	require.InDelta(t, -0.981, w, 1e-2)
	require.Less(t, w, -0.95)
	require.InDelta(t, bg.Params().OmegaM, om, 1e-3)

	w, om, err = eq.At(tau1)
	require.NoError(t, err)
	require.InDelta(t, -1.013, w, 1e-2)
	st, err := bg.At(tau1)
	require.NoError(t, err)
	require.Greater(t, w, st.W+0.02)
	require.Greater(t, om, 0.7)
	require.Less(t, om, 0.82)
}

func TestPkEqReplacesBackgroundState(t *testing.T) {
	eq, err := NewPkEq(flatLCDM{planck()}, 0.1, 1, 10)
	require.NoError(t, err)
	wantW, wantOM, err := eq.At(0.5)
	require.NoError(t, err)

	rec := &recorder{}
	s := eq.Wrap(rec)
	require.Equal(t, Halofit, s.Method())

	in := Input{State: cosmo.Snapshot{Tau: 0.5, Z: 1, OmegaM: 0.9, W: -0.5}, Params: planck()}
	knl, err := s.Correct(in, nil)
	require.NoError(t, err)
	require.Equal(t, 0.5, knl)

	require.Equal(t, wantW, rec.in.State.W)
	require.Equal(t, wantOM, rec.in.State.OmegaM)
	require.InDelta(t, 1-wantOM, rec.in.State.OmegaDE, 1e-15)
	require.Equal(t, planck(), rec.in.Params)

	_, err = s.Correct(Input{State: cosmo.Snapshot{Tau: 5}}, nil)
	require.Error(t, err)
}
