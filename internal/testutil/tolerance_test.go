package testutil

import (
	"math"
	"testing"
)

func TestMaxRelDiff(t *testing.T) {
	d, i, err := MaxRelDiff([]float64{1, 2, 4}, []float64{1, 2.2, 4})
	if err != nil {
		t.Fatalf("MaxRelDiff error: %v", err)
	}
	if i != 1 || math.Abs(d-0.2/2.2) > 1e-15 {
		t.Fatalf("MaxRelDiff = %v at %d, want %v at 1", d, i, 0.2/2.2)
	}

	d, i, err = MaxRelDiff([]float64{0, 3}, []float64{0, 3})
	if err != nil || d != 0 || i != -1 {
		t.Fatalf("MaxRelDiff identical = %v at %d (%v), want 0 at -1", d, i, err)
	}
}

func TestMaxRelDiffLengthMismatch(t *testing.T) {
	if _, _, err := MaxRelDiff([]float64{1}, []float64{1, 2}); err == nil {
		t.Fatal("expected error for length mismatch")
	}
}

func TestRelDiff(t *testing.T) {
	if d := RelDiff(0, 0); d != 0 {
		t.Fatalf("RelDiff(0, 0) = %v, want 0", d)
	}
	if d := RelDiff(2, 1); math.Abs(d-0.5) > 1e-15 {
		t.Fatalf("RelDiff(2, 1) = %v, want 0.5", d)
	}
}
