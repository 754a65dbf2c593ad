package fourier

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cwbudde/algo-pk/cosmo"
	"github.com/cwbudde/algo-pk/internal/fiducial"
	"github.com/cwbudde/algo-pk/internal/testutil"
	"github.com/cwbudde/algo-pk/measure/sigma"
	"github.com/cwbudde/algo-pk/pk/core"
	"github.com/cwbudde/algo-pk/pk/extrap"
	"github.com/cwbudde/algo-pk/pk/nonlinear"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testAmplitude = 2e-9

// scaleFactorBackground has conformal time equal to the scale factor and
// linear growth equal to the scale factor.
type scaleFactorBackground struct{}

func (scaleFactorBackground) TauOfZ(z float64) (float64, error) {
	if z < 0 || z > 100 {
		return 0, fmt.Errorf("z=%g out of range", z)
	}
	return 1 / (1 + z), nil
}

func (scaleFactorBackground) At(tau float64) (cosmo.Snapshot, error) {
	return cosmo.Snapshot{Tau: tau, Z: 1/tau - 1, A: tau, OmegaM: 1, W: -1, Growth: tau}, nil
}

func (scaleFactorBackground) Params() cosmo.Params {
	return cosmo.Params{H: 0.7, OmegaB: 0.05, OmegaCDM: 0.25, OmegaM: 0.3, TCMB: 2.7255, KEq: 0.01}
}

// powerLawPerturbations has T = D k^2 for every ic, so that a constant
// primordial spectrum gives P = 2 pi^2 A D^2 k.
type powerLawPerturbations struct {
	k, tau    []float64
	ics       int
	coldRatio float64 // 0 disables the cb source
}

func newPowerLaw(ics int) *powerLawPerturbations {
	return &powerLawPerturbations{
		k:   core.LogSpace(1e-3, 1, 60),
		tau: core.LogSpace(1.0/6, 1, 11),
		ics: ics,
	}
}

func (p *powerLawPerturbations) K() []float64        { return p.k }
func (p *powerLawPerturbations) Tau() []float64      { return p.tau }
func (p *powerLawPerturbations) ICs() int            { return p.ics }
func (p *powerLawPerturbations) HasColdBaryon() bool { return p.coldRatio > 0 }

func (p *powerLawPerturbations) Transfer(t cosmo.SpectrumType, ic, iTau int) ([]float64, error) {
	scale := p.tau[iTau]
	if t == cosmo.ColdBaryon {
		scale *= p.coldRatio
	}
	out := make([]float64, len(p.k))
	for i, k := range p.k {
		out[i] = scale * k * k
	}
	return out, nil
}

// constantPrimordial has auto-spectra A r_i and cross-spectra
// c A sqrt(r_i r_j).
type constantPrimordial struct {
	ics    int
	ratios []float64
	corr   float64
}

func (p constantPrimordial) Spectrum(k float64, out []float64) error {
	for i := 0; i < p.ics; i++ {
		for j := i; j < p.ics; j++ {
			v := testAmplitude * math.Sqrt(p.ratio(i)*p.ratio(j))
			if i != j {
				v *= p.corr
			}
			out[cosmo.PairIndex(i, j, p.ics)] = v
		}
	}
	return nil
}

func (p constantPrimordial) ratio(i int) float64 {
	if i < len(p.ratios) {
		return p.ratios[i]
	}
	return 1
}

func powerLawConfig() Config {
	cfg := DefaultConfig()
	cfg.KMaxExtra = 10
	cfg.Extrapolation = extrap.OnlyMaxUnits
	return cfg
}

func newPowerLawEngine(t *testing.T, pt *powerLawPerturbations, pm cosmo.Primordial, cfg Config, opts ...Option) *Engine {
	t.Helper()
	e, err := New(scaleFactorBackground{}, pt, pm, cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func powerLaw(k, z float64) float64 {
	d := 1 / (1 + z)
	return 2 * math.Pi * math.Pi * testAmplitude * d * d * k
}

func fiducialEngine(t *testing.T, c fiducial.Cosmology, cfg Config, opts ...Option) *Engine {
	t.Helper()
	bg, err := fiducial.NewBackground(c, 0)
	require.NoError(t, err)
	pt, err := fiducial.NewPerturbations(bg, fiducial.DefaultPerturbationConfig())
	require.NoError(t, err)
	pm, err := fiducial.NewPrimordial(fiducial.DefaultPrimordialConfig(), 1)
	require.NoError(t, err)

	e, err := New(bg, pt, pm, cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.True(t, cfg.HasPkM)
	require.True(t, cfg.HasPkCB)
	require.Equal(t, nonlinear.None, cfg.Method)
	require.Equal(t, 5.0, cfg.ZMaxPk)
}

func TestIndices(t *testing.T) {
	pt := newPowerLaw(1)
	pt.coldRatio = 0.9
	e := newPowerLawEngine(t, pt, constantPrimordial{ics: 1}, powerLawConfig())

	want := Indices{
		Matter: 0, ColdBaryon: 1, Total: 0, Cluster: 1,
		Size: 2, ICSize: 1, PairSize: 1, NonZero: []bool{true},
	}
	if diff := cmp.Diff(want, e.Indices()); diff != "" {
		t.Fatalf("indices mismatch (-want +got):\n%s", diff)
	}
}

func TestIndicesWithoutColdBaryonSource(t *testing.T) {
	e := newPowerLawEngine(t, newPowerLaw(1), constantPrimordial{ics: 1}, powerLawConfig())

	want := Indices{
		Matter: 0, ColdBaryon: -1, Total: 0, Cluster: 0,
		Size: 1, ICSize: 1, PairSize: 1, NonZero: []bool{true},
	}
	if diff := cmp.Diff(want, e.Indices()); diff != "" {
		t.Fatalf("indices mismatch (-want +got):\n%s", diff)
	}

	// cb queries fall back to the total matter spectrum.
	m, err := e.PkAtZ(Linear, 0, SelectMatter, LogScale)
	require.NoError(t, err)
	cb, err := e.PkAtZ(Linear, 0, SelectColdBaryon, LogScale)
	require.NoError(t, err)
	require.Equal(t, m[0].Values, cb[0].Values)

	both, err := e.PkAtZ(Linear, 0, SelectBoth, LogScale)
	require.NoError(t, err)
	require.Len(t, both, 1)
}

func TestColdBaryonOnly(t *testing.T) {
	pt := newPowerLaw(1)
	pt.coldRatio = 0.5
	cfg := powerLawConfig()
	cfg.HasPkM = false
	e := newPowerLawEngine(t, pt, constantPrimordial{ics: 1}, cfg)

	require.Equal(t, -1, e.Indices().Matter)
	require.Equal(t, 0, e.Indices().Total)

	_, err := e.PkAtZ(Linear, 0, SelectMatter, LogScale)
	require.ErrorIs(t, err, ErrUnavailable)

	got, err := e.PkAtKZ(Linear, 0.1, 0, SelectColdBaryon)
	require.NoError(t, err)
	testutil.RequireRelNearlyEqual(t, "P_cb", got[0].P, 0.25*powerLaw(0.1, 0), 1e-10)
}

func TestPowerLawSpectrum(t *testing.T) {
	e := newPowerLawEngine(t, newPowerLaw(1), constantPrimordial{ics: 1}, powerLawConfig())

	for _, z := range []float64{0, 0.7, 2.5, 5} {
		for _, k := range []float64{2e-4, 1e-3, 0.0123, 0.5, 1} {
			got, err := e.PkAtKZ(Linear, k, z, SelectMatter)
			require.NoError(t, err)
			require.Len(t, got, 1)
			require.Equal(t, cosmo.Matter, got[0].Type)
			testutil.RequireRelNearlyEqual(t, fmt.Sprintf("P(%g, %g)", k, z), got[0].P, powerLaw(k, z), 1e-9)
		}
	}

	tilt, err := e.Tilt(Linear, 0.05, 1, cosmo.Matter)
	require.NoError(t, err)
	require.InDelta(t, 1, tilt, 1e-6)
}

func TestTiltAtZeroTail(t *testing.T) {
	cfg := powerLawConfig()
	cfg.Extrapolation = extrap.Zero
	e := newPowerLawEngine(t, newPowerLaw(1), constantPrimordial{ics: 1}, cfg)

	tilt, err := e.Tilt(Linear, 0.05, 0, cosmo.Matter)
	require.NoError(t, err)
	require.InDelta(t, 1, tilt, 1e-6)

	// The upper stencil point falls in the zero tail above k_max.
	_, err = e.Tilt(Linear, 1, 0, cosmo.Matter)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestPkAtZOnStoredTimes(t *testing.T) {
	pt := newPowerLaw(1)
	e := newPowerLawEngine(t, pt, constantPrimordial{ics: 1}, powerLawConfig())

	for _, tau := range pt.tau {
		z := 1/tau - 1
		lin, err := e.PkAtZ(Linear, z, SelectMatter, LinearScale)
		require.NoError(t, err)
		require.Len(t, lin[0].Values, len(pt.k))
		require.Nil(t, lin[0].Pairs)

		want := make([]float64, len(pt.k))
		for i, k := range pt.k {
			want[i] = powerLaw(k, z)
		}
		testutil.RequireSliceRelNearlyEqual(t, "P", lin[0].Values, want, 1e-9)

		logs, err := e.PkAtZ(Linear, z, SelectMatter, LogScale)
		require.NoError(t, err)
		require.InDelta(t, math.Log(want[10]), logs[0].Values[10], 1e-9)
	}
}

func TestPkAtKZVec(t *testing.T) {
	pt := newPowerLaw(1)
	pt.coldRatio = 0.8
	e := newPowerLawEngine(t, pt, constantPrimordial{ics: 1}, powerLawConfig())

	ks := []float64{0.01, 0.1, 0.9}
	zs := []float64{0, 1, 3}
	grids, err := e.PkAtKZVec(Linear, ks, zs, SelectBoth)
	require.NoError(t, err)
	require.Len(t, grids, 2)
	require.Equal(t, cosmo.Matter, grids[0].Type)
	require.Equal(t, cosmo.ColdBaryon, grids[1].Type)

	for iz, z := range zs {
		for ik, k := range ks {
			testutil.RequireRelNearlyEqual(t, "P_m", grids[0].Values[iz][ik], powerLaw(k, z), 1e-9)
			testutil.RequireRelNearlyEqual(t, "P_cb", grids[1].Values[iz][ik], 0.64*powerLaw(k, z), 1e-9)
		}
	}
}

func TestQueryRanges(t *testing.T) {
	e := newPowerLawEngine(t, newPowerLaw(1), constantPrimordial{ics: 1}, powerLawConfig())

	_, err := e.PkAtZ(Linear, 5.5, SelectMatter, LogScale)
	require.ErrorIs(t, err, ErrOutOfRange)
	_, err = e.PkAtZ(Linear, -1, SelectMatter, LogScale)
	require.ErrorIs(t, err, ErrOutOfRange)

	// The tail is tabulated for linear output up to KMaxExtra.
	p, err := e.PkAtKZ(Linear, 5, 0, SelectMatter)
	require.NoError(t, err)
	require.Greater(t, p[0].P, 0.0)

	_, err = e.PkAtKZ(Linear, 20, 0, SelectMatter)
	require.ErrorIs(t, err, ErrOutOfRange)
	_, err = e.PkAtKZ(Linear, 0, 0, SelectMatter)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestCrossCorrelation(t *testing.T) {
	for _, tc := range []struct {
		corr    float64
		want    float64
		nonZero bool
	}{
		{corr: 0, want: 0, nonZero: false},
		{corr: 1, want: 1, nonZero: true},
		{corr: -1, want: -1, nonZero: true},
		{corr: 0.5, want: 0.5, nonZero: true},
	} {
		t.Run(fmt.Sprint(tc.corr), func(t *testing.T) {
			pm := constantPrimordial{ics: 2, ratios: []float64{1, 4}, corr: tc.corr}
			e := newPowerLawEngine(t, newPowerLaw(2), pm, powerLawConfig())

			ix := e.Indices()
			require.Equal(t, 3, ix.PairSize)
			require.Equal(t, []bool{true, tc.nonZero, true}, ix.NonZero)

			res, err := e.PkAtZ(Linear, 0, SelectMatter, LinearScale)
			require.NoError(t, err)
			pairs := res[0].Pairs
			require.Len(t, pairs, 3)

			for i, k := range e.K()[:e.KSize()] {
				require.InDelta(t, tc.want, pairs[ix.Pair(0, 1)][i], 1e-12)

				p00 := powerLaw(k, 0)
				testutil.RequireRelNearlyEqual(t, "P_00", pairs[ix.Pair(0, 0)][i], p00, 1e-9)
				testutil.RequireRelNearlyEqual(t, "P_11", pairs[ix.Pair(1, 1)][i], 4*p00, 1e-9)
				testutil.RequireRelNearlyEqual(t, "P", res[0].Values[i], p00*(5+4*tc.want), 1e-9)
			}

			pt, err := e.PkAtKZ(Linear, 0.02, 1, SelectMatter)
			require.NoError(t, err)
			require.Len(t, pt[0].Pairs, 3)
			require.InDelta(t, tc.want, pt[0].Pairs[ix.Pair(0, 1)], 1e-9)
		})
	}
}

func TestCrossCosineSnapsToUnity(t *testing.T) {
	require.Equal(t, 1.0, crossCosine(1-1e-12, 1, 1, 1))
	require.Equal(t, -1.0, crossCosine(1-1e-12, 1, 1, -1))
	require.Equal(t, 0.0, crossCosine(0.3, 0, 1, 1))
	require.InDelta(t, -0.3, crossCosine(0.3, 1, 1, -2), 1e-15)
}

// switchStrategy is linear above zSwitch and applies a constant factor below.
type switchStrategy struct {
	zSwitch float64
	factor  float64
}

func (s switchStrategy) Method() nonlinear.Method { return nonlinear.Halofit }

func (s switchStrategy) Correct(in nonlinear.Input, corr []float64) (float64, error) {
	if in.State.Z > s.zSwitch {
		return 0, nonlinear.ErrLinearRegime
	}
	core.Fill(corr[:in.KSize], s.factor)
	return 0.3 + 0.1*in.State.A, nil
}

func TestNonlinearCorrectionStartsAtIndex(t *testing.T) {
	pt := newPowerLaw(1)
	pt.coldRatio = 0.9
	strategy := switchStrategy{zSwitch: 2, factor: 1.5}
	e := newPowerLawEngine(t, pt, constantPrimordial{ics: 1}, powerLawConfig(), WithStrategy(strategy))

	// tau_i = 6^(i/10) / 6 crosses z = 2 between i = 3 and i = 4.
	require.Equal(t, 4, e.IndexTauMinNL())

	for _, s := range e.spectra {
		for r := range e.grid.lnTau {
			want := strategy.factor
			if r < e.IndexTauMinNL() {
				want = 1
			}
			for _, c := range s.corr.Slab(r) {
				require.Equal(t, want, c)
			}
		}
	}

	lin, err := e.PkAtZ(Linear, 0, SelectMatter, LogScale)
	require.NoError(t, err)
	nl, err := e.PkAtZ(Nonlinear, 0, SelectMatter, LogScale)
	require.NoError(t, err)
	for i := range nl[0].Values {
		require.InDelta(t, lin[0].Values[i]+2*math.Log(1.5), nl[0].Values[i], 1e-9)
	}

	early := 1/pt.tau[2] - 1
	lin, err = e.PkAtZ(Linear, early, SelectMatter, LogScale)
	require.NoError(t, err)
	nl, err = e.PkAtZ(Nonlinear, early, SelectMatter, LogScale)
	require.NoError(t, err)
	testutil.RequireSliceNearlyEqual(t, nl[0].Values, lin[0].Values, 1e-9)

	kNL, kNLcb, err := e.KNonlinear(0)
	require.NoError(t, err)
	require.InDelta(t, 0.4, kNL, 1e-12)
	require.InDelta(t, 0.4, kNLcb, 1e-12)

	_, _, err = e.KNonlinear(4)
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, err, nonlinear.ErrLinearRegime)

	// Nonlinear output has no extrapolated tail.
	_, err = e.PkAtKZ(Nonlinear, 5, 0, SelectMatter)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestMethodNone(t *testing.T) {
	e := newPowerLawEngine(t, newPowerLaw(1), constantPrimordial{ics: 1}, powerLawConfig())

	require.Equal(t, len(e.LnTau()), e.IndexTauMinNL())

	_, _, err := e.KNonlinear(0)
	require.ErrorIs(t, err, ErrUnavailable)
	_, err = e.PkAtZ(Nonlinear, 0, SelectMatter, LogScale)
	require.ErrorIs(t, err, ErrUnavailable)
	_, err = e.PkAtZ(NumericalNoWiggle, 0, SelectMatter, LogScale)
	require.ErrorIs(t, err, ErrUnavailable)
	_, err = e.PkAtZ(AnalyticNoWiggle, 0, SelectMatter, LogScale)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestClose(t *testing.T) {
	e, err := New(scaleFactorBackground{}, newPowerLaw(1), constantPrimordial{ics: 1}, powerLawConfig())
	require.NoError(t, err)
	require.NoError(t, e.Close())

	_, err = e.PkAtZ(Linear, 0, SelectMatter, LogScale)
	require.ErrorIs(t, err, ErrNotAllocated)
	_, err = e.PkAtKZ(Linear, 0.1, 0, SelectMatter)
	require.ErrorIs(t, err, ErrNotAllocated)
	_, err = e.Sigma(8, 0, cosmo.Matter, sigma.Sigma)
	require.ErrorIs(t, err, ErrNotAllocated)
	_, err = e.Sigma8(cosmo.Matter)
	require.ErrorIs(t, err, ErrNotAllocated)
	_, _, err = e.KNonlinear(0)
	require.ErrorIs(t, err, ErrNotAllocated)
	require.ErrorIs(t, e.Close(), ErrNotAllocated)
}

type noICs struct{ *powerLawPerturbations }

func (noICs) ICs() int { return 0 }

func TestNewErrors(t *testing.T) {
	pm := constantPrimordial{ics: 1}
	for _, tc := range []struct {
		name   string
		mutate func(*Config)
		pt     cosmo.Perturbations
		want   error
	}{
		{
			name:   "no types",
			mutate: func(c *Config) { c.HasPkM, c.HasPkCB = false, false },
			want:   ErrNoSpectrumType,
		},
		{
			name:   "cb without source",
			mutate: func(c *Config) { c.HasPkM = false },
			want:   ErrNoSpectrumType,
		},
		{
			name: "no ics",
			pt:   noICs{newPowerLaw(1)},
			want: ErrNoInitialConditions,
		},
		{
			name:   "k max extra",
			mutate: func(c *Config) { c.KMaxExtra = 0 },
			want:   ErrInvalidConfig,
		},
		{
			name:   "tilt step",
			mutate: func(c *Config) { c.TiltStep = 0 },
			want:   ErrInvalidConfig,
		},
		{
			name:   "too many tail points",
			mutate: func(c *Config) { c.KMaxExtra, c.KPerDecadeExtra = 1e10, 1e4 },
			want:   ErrTooManyExtrapolationPoints,
		},
		{
			name:   "z beyond tables",
			mutate: func(c *Config) { c.ZMaxPk = 9 },
			want:   ErrOutOfRange,
		},
		{
			name:   "numerical no-wiggle without tail",
			mutate: func(c *Config) { c.NumericalNoWiggle, c.Extrapolation = true, extrap.Zero },
			want:   ErrInvalidConfig,
		},
		{
			name: "dewiggled hmcode without tail",
			mutate: func(c *Config) {
				c.Method = nonlinear.HMcode
				c.HMcode.Version = nonlinear.HMcode2020
				c.Extrapolation = extrap.Zero
			},
			want: ErrInvalidConfig,
		},
		{
			name:   "max scaled below k_eq",
			pt:     &powerLawPerturbations{k: core.LogSpace(1e-4, 5e-3, 20), tau: []float64{1}, ics: 1},
			mutate: func(c *Config) { c.ZMaxPk = 0; c.Extrapolation = extrap.MaxScaled },
			want:   ErrInvalidConfig,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := powerLawConfig()
			if tc.mutate != nil {
				tc.mutate(&cfg)
			}
			pt := tc.pt
			if pt == nil {
				pt = newPowerLaw(1)
			}
			_, err := New(scaleFactorBackground{}, pt, pm, cfg)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestErrorCarriesType(t *testing.T) {
	err := typedError("transfer", cosmo.ColdBaryon, 2.5, ErrOutOfRange)
	require.ErrorIs(t, err, ErrOutOfRange)

	var fe *Error
	require.True(t, errors.As(err, &fe))
	require.Equal(t, cosmo.ColdBaryon, fe.Type)
	require.Contains(t, err.Error(), "[cb]")
	require.Contains(t, err.Error(), "tau=2.5")
}

func TestExtrapolationLeavesNativeRangeUnchanged(t *testing.T) {
	c := fiducial.Planck()
	var ref []Spectrum
	var refPoint []Point
	for _, kind := range []extrap.Kind{extrap.Zero, extrap.OnlyMax, extrap.OnlyMaxUnits, extrap.MaxScaled, extrap.HMcode} {
		cfg := DefaultConfig()
		cfg.Extrapolation = kind
		e := fiducialEngine(t, c, cfg)

		got, err := e.PkAtZ(Linear, 1.3, SelectMatter, LogScale)
		require.NoError(t, err)
		pt, err := e.PkAtKZ(Linear, 0.731, 0.4, SelectMatter)
		require.NoError(t, err)

		if ref == nil {
			ref, refPoint = got, pt
			continue
		}
		require.Equal(t, ref, got, kind.String())
		require.Equal(t, refPoint, pt, kind.String())
	}
}

func TestSigmaDecreasesWithRadius(t *testing.T) {
	e := fiducialEngine(t, fiducial.Planck(), DefaultConfig())

	prev := math.Inf(1)
	for _, r := range []float64{1, 2, 4, 8, 16, 32} {
		s, err := e.Sigma(r, 0, cosmo.Matter, sigma.Sigma)
		require.NoError(t, err)
		require.Less(t, s, prev, "R=%g", r)
		prev = s
	}

	s8, err := e.Sigma8(cosmo.Matter)
	require.NoError(t, err)
	s, err := e.Sigma(8/fiducial.Planck().H, 0, cosmo.Matter, sigma.Sigma)
	require.NoError(t, err)
	testutil.RequireRelNearlyEqual(t, "sigma8", s, s8, 1e-6)

	early, err := e.Sigma(8, 2, cosmo.Matter, sigma.Sigma)
	require.NoError(t, err)
	late, err := e.Sigma(8, 0, cosmo.Matter, sigma.Sigma)
	require.NoError(t, err)
	require.Less(t, early, late)

	slope, err := e.Sigma(8, 0, cosmo.Matter, sigma.SigmaPrime)
	require.NoError(t, err)
	require.Less(t, slope, 0.0)

	_, err = e.Sigma(0, 0, cosmo.Matter, sigma.Sigma)
	require.ErrorIs(t, err, sigma.ErrInvalidRadius)
}

func TestHalofitEngine(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Method = nonlinear.Halofit
	e := fiducialEngine(t, fiducial.Planck(), cfg)

	require.Less(t, e.IndexTauMinNL(), len(e.LnTau()))

	kNL, _, err := e.KNonlinear(0)
	require.NoError(t, err)
	require.Greater(t, kNL, 0.0)

	lin, err := e.PkAtKZ(Linear, 1, 0, SelectMatter)
	require.NoError(t, err)
	nl, err := e.PkAtKZ(Nonlinear, 1, 0, SelectMatter)
	require.NoError(t, err)
	require.Greater(t, nl[0].P, lin[0].P)

	large, err := e.PkAtKZ(Nonlinear, 1e-3, 0, SelectMatter)
	require.NoError(t, err)
	linLarge, err := e.PkAtKZ(Linear, 1e-3, 0, SelectMatter)
	require.NoError(t, err)
	testutil.RequireRelNearlyEqual(t, "P_nl(k=1e-3)", large[0].P, linLarge[0].P, 2e-2)
}

func TestHMcodeEngine(t *testing.T) {
	for _, v := range []nonlinear.HMcodeVersion{
		nonlinear.HMcode2015, nonlinear.HMcode2020, nonlinear.HMcode2020Unfitted, nonlinear.HMcode2020Baryonic,
	} {
		t.Run(v.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Method = nonlinear.HMcode
			cfg.HMcode.Version = v
			e := fiducialEngine(t, fiducial.Planck(), cfg)

			kNL, _, err := e.KNonlinear(0)
			require.NoError(t, err)
			require.Greater(t, kNL, 0.0)

			lin, err := e.PkAtKZ(Linear, 1, 0, SelectMatter)
			require.NoError(t, err)
			nl, err := e.PkAtKZ(Nonlinear, 1, 0, SelectMatter)
			require.NoError(t, err)
			require.Greater(t, nl[0].P, lin[0].P)

			// Dewiggled versions build the numerical no-wiggle table themselves.
			_, err = e.PkAtKZ(NumericalNoWiggle, 0.1, 0, SelectMatter)
			if v.Dewiggled() {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrUnavailable)
			}
		})
	}
}

func TestPkEqWithEvolvingDarkEnergy(t *testing.T) {
	c := fiducial.Planck()
	c.W0, c.Wa = -0.9, -0.3
	cfg := DefaultConfig()
	cfg.Method = nonlinear.Halofit
	cfg.ZMaxPk = 2

	plain := fiducialEngine(t, c, cfg)
	cfg.PkEq = true
	eq := fiducialEngine(t, c, cfg)

	kNL, _, err := eq.KNonlinear(0)
	require.NoError(t, err)
	require.Greater(t, kNL, 0.0)

	// Today the equivalent w is more negative than w(z=0), which changes
	// the Halofit coefficients on small scales only.
	for _, k := range []float64{1e-3, 1} {
		a, err := plain.PkAtKZ(Nonlinear, k, 0, SelectMatter)
		require.NoError(t, err)
		b, err := eq.PkAtKZ(Nonlinear, k, 0, SelectMatter)
		require.NoError(t, err)
		if k < 0.01 {
			require.InDelta(t, 1, b[0].P/a[0].P, 1e-3)
		} else {
			require.Greater(t, math.Abs(b[0].P/a[0].P-1), 1e-4)
		}
	}
}

func TestNoWiggleSpectra(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AnalyticNoWiggle = true
	cfg.NumericalNoWiggle = true
	e := fiducialEngine(t, fiducial.Planck(), cfg)

	lin, err := e.PkAtZ(Linear, 0, SelectMatter, LinearScale)
	require.NoError(t, err)
	for _, out := range []Output{NumericalNoWiggle, AnalyticNoWiggle} {
		t.Run(out.String(), func(t *testing.T) {
			for _, z := range []float64{0, 2} {
				nw, err := e.PkAtZ(out, z, SelectBoth, LinearScale)
				require.NoError(t, err)
				require.Len(t, nw, 1)
				testutil.RequireFinite(t, nw[0].Values)
			}

			nw, err := e.PkAtZ(out, 0, SelectMatter, LinearScale)
			require.NoError(t, err)
			k := e.K()
			for i := range nw[0].Values {
				if k[i] < 0.02 || k[i] > 0.5 {
					continue
				}
				ratio := lin[0].Values[i] / nw[0].Values[i]
				require.InDelta(t, 1, ratio, 0.3, "k=%g", k[i])
			}
		})
	}
}

func TestOutputNames(t *testing.T) {
	for _, o := range []Output{Linear, Nonlinear, NumericalNoWiggle, AnalyticNoWiggle} {
		got, err := ParseOutput(o.String())
		require.NoError(t, err)
		require.Equal(t, o, got)
	}
	_, err := ParseOutput("quadratic")
	require.Error(t, err)
}
