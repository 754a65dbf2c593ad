package core

import "testing"

func TestFill(t *testing.T) {
	buf := []float64{1, 2, 3}
	Fill(buf, 4)

	for i, v := range buf {
		if v != 4 {
			t.Fatalf("buf[%d] = %v, want 4", i, v)
		}
	}
}
