package sigma

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-pk/internal/testutil"
	"github.com/cwbudde/algo-pk/pk/window"
)

// powerLaw is P(k) = A k^n on [kMin, kMax].
type powerLaw struct {
	a, n       float64
	kMin, kMax float64
}

func (p powerLaw) Domain() (float64, float64) { return math.Log(p.kMin), math.Log(p.kMax) }

func (p powerLaw) Power(lnK float64) float64 { return p.a * math.Exp(p.n*lnK) }

// turnover is a smooth CDM-like spectrum turning over near k = 0.02/Mpc.
type turnover struct{}

func (turnover) Domain() (float64, float64) { return math.Log(1e-5), math.Log(10) }

func (turnover) Power(lnK float64) float64 {
	k := math.Exp(lnK)
	x := k / 0.02
	return 2e4 * x / math.Pow(1+x*x, 1.3)
}

func TestTopHatPowerLawRegression(t *testing.T) {
	const a = 3.7
	p := powerLaw{a: a, n: 1, kMin: 1e-4, kMax: 1}

	got, err := Compute(p, 1e-3, Sigma, DefaultConfig())
	if err != nil {
		t.Fatalf("Compute error: %v", err)
	}

	want := math.Sqrt(a * (math.Pow(p.kMax, 4) - math.Pow(p.kMin, 4)) / (8 * math.Pi * math.Pi))
	testutil.RequireRelNearlyEqual(t, "sigma", got, want, 1e-4)
}

func TestPowerLawRadiusScaling(t *testing.T) {
	p := powerLaw{a: 1, n: -2, kMin: 1e-5, kMax: 1e3}
	cfg := DefaultConfig()

	s1, err := Compute(p, 1, Sigma, cfg)
	if err != nil {
		t.Fatalf("Compute error: %v", err)
	}
	s2, err := Compute(p, 2, Sigma, cfg)
	if err != nil {
		t.Fatalf("Compute error: %v", err)
	}

	// sigma^2 scales as R^-(n+3) for a power law.
	testutil.RequireRelNearlyEqual(t, "sigma ratio", s1/s2, math.Sqrt2, 1e-3)

	slope, err := Compute(p, 1, SigmaPrime, cfg)
	if err != nil {
		t.Fatalf("Compute error: %v", err)
	}
	testutil.RequireRelNearlyEqual(t, "sigma_prime", slope, -0.5, 1e-3)
}

func TestSigmaMonotonicInRadius(t *testing.T) {
	c := NewCalculator(DefaultConfig())

	prev := math.Inf(1)
	for _, r := range []float64{0.5, 1, 2, 4, 8, 16, 32, 64} {
		s, err := c.Compute(turnover{}, r, Sigma)
		if err != nil {
			t.Fatalf("Compute(R=%v) error: %v", r, err)
		}
		if !(s < prev) {
			t.Fatalf("sigma(R=%v) = %v not below previous %v", r, s, prev)
		}
		prev = s
	}
}

func TestSigmaPrimeMatchesFiniteDifference(t *testing.T) {
	c := NewCalculator(Config{RelTol: 1e-9, MaxPoints: 1 << 20})
	r := 8.0
	const h = 1e-3

	up, err := c.Compute(turnover{}, r*math.Exp(h), Sigma)
	if err != nil {
		t.Fatalf("Compute error: %v", err)
	}
	down, err := c.Compute(turnover{}, r*math.Exp(-h), Sigma)
	if err != nil {
		t.Fatalf("Compute error: %v", err)
	}
	fd := (math.Log(up) - math.Log(down)) / (2 * h)

	got, err := c.Compute(turnover{}, r, SigmaPrime)
	if err != nil {
		t.Fatalf("Compute error: %v", err)
	}
	if math.Abs(got-fd) > 1e-4 {
		t.Fatalf("sigma_prime = %v, finite difference %v", got, fd)
	}
}

func TestSigmaDispGaussianWindow(t *testing.T) {
	const a = 2.0
	p := powerLaw{a: a, n: 0, kMin: 1e-6, kMax: 1e3}

	got, err := Compute(p, 1, SigmaDisp, Config{Window: window.TypeGauss})
	if err != nil {
		t.Fatalf("Compute error: %v", err)
	}

	want := math.Sqrt(a * math.Sqrt(math.Pi) / 2 / (6 * math.Pi * math.Pi))
	testutil.RequireRelNearlyEqual(t, "sigma_disp", got, want, 1e-5)
}

func TestComputeErrors(t *testing.T) {
	p := powerLaw{a: 1, n: 1, kMin: 1e-3, kMax: 1}

	for _, r := range []float64{0, -1, math.NaN()} {
		if _, err := Compute(p, r, Sigma, DefaultConfig()); !errors.Is(err, ErrInvalidRadius) {
			t.Fatalf("R=%v: expected ErrInvalidRadius, got %v", r, err)
		}
	}

	_, err := Compute(p, 1, SigmaPrime, Config{Window: window.TypeSharpK})
	if !errors.Is(err, ErrUnsupportedWindow) {
		t.Fatalf("expected ErrUnsupportedWindow, got %v", err)
	}

	_, err = Compute(turnover{}, 8, Sigma, Config{KPerDecade: 2, MaxPoints: 16, RelTol: 1e-15})
	if !errors.Is(err, ErrNotConverged) {
		t.Fatalf("expected ErrNotConverged, got %v", err)
	}

	_, err = Compute(powerLaw{a: 1, n: 1, kMin: 1, kMax: 1}, 1, Sigma, DefaultConfig())
	if !errors.Is(err, ErrEmptySpectrum) {
		t.Fatalf("expected ErrEmptySpectrum, got %v", err)
	}
}
