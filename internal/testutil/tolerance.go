package testutil

import (
	"fmt"
	"math"
	"testing"
)

// RequireSliceNearlyEqual fails t if got and want differ in length or if
// any element pair exceeds eps (absolute tolerance).
func RequireSliceNearlyEqual(t *testing.T, got, want []float64, eps float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range got {
		diff := math.Abs(got[i] - want[i])
		if diff > eps {
			t.Fatalf("index %d: got %v, want %v (diff %v > eps %v)", i, got[i], want[i], diff, eps)
		}
	}
}

// RequireRelNearlyEqual fails t if got deviates from want by more than the
// relative tolerance rel.
func RequireRelNearlyEqual(t *testing.T, name string, got, want, rel float64) {
	t.Helper()
	if d := RelDiff(got, want); d > rel {
		t.Fatalf("%s = %v, want %v (relative diff %v > %v)", name, got, want, d, rel)
	}
}

// RequireFinite fails t if any element is NaN or Inf.
func RequireFinite(t *testing.T, data []float64) {
	t.Helper()
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("index %d: non-finite value %v", i, v)
		}
	}
}

// RelDiff returns |a-b| / max(|a|, |b|), or 0 when both are zero.
func RelDiff(a, b float64) float64 {
	largest := math.Max(math.Abs(a), math.Abs(b))
	if largest == 0 {
		return 0
	}
	return math.Abs(a-b) / largest
}

// MaxRelDiff returns the largest [RelDiff] over element pairs and its index.
func MaxRelDiff(a, b []float64) (float64, int, error) {
	if len(a) != len(b) {
		return 0, -1, fmt.Errorf("length mismatch: %d vs %d", len(a), len(b))
	}
	worst, at := 0.0, -1
	for i := range a {
		if d := RelDiff(a[i], b[i]); d > worst {
			worst, at = d, i
		}
	}
	return worst, at, nil
}

// RequireSliceRelNearlyEqual fails t if any element of got deviates from want
// by more than the relative tolerance rel.
func RequireSliceRelNearlyEqual(t *testing.T, name string, got, want []float64, rel float64) {
	t.Helper()
	d, i, err := MaxRelDiff(got, want)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	if d > rel {
		t.Fatalf("%s[%d] = %v, want %v (relative diff %v > %v)", name, i, got[i], want[i], d, rel)
	}
}
