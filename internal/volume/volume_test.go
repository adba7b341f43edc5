package volume

import (
	"math"
	"testing"
)

func TestIndexing(t *testing.T) {
	v := New(3, 4, 5)
	v.Set(2, 3, 4, 7.5)
	if got := v.At(2, 3, 4); got != 7.5 {
		t.Errorf("At(2,3,4) = %v, want 7.5", got)
	}
	if got := v.At(-1, 0, 0); got != 0 {
		t.Errorf("out-of-range At = %v, want 0", got)
	}
	v.Set(3, 0, 0, 1) // out of range, must be ignored
	for i, d := range v.Data {
		if d != 0 && i != 2+3*(3+4*4) {
			t.Fatalf("unexpected nonzero voxel at %d", i)
		}
	}
}

func TestCloneIndependence(t *testing.T) {
	v := New(2, 2, 2)
	v.Set(0, 0, 0, 1)
	c := v.Clone()
	c.Set(0, 0, 0, 9)
	if v.At(0, 0, 0) != 1 {
		t.Errorf("clone mutation leaked into original")
	}
	if c.Spacing != v.Spacing || c.Affine != v.Affine {
		t.Errorf("clone lost geometry")
	}
}

func TestMidSlice(t *testing.T) {
	v := New(2, 3, 5)
	v.Set(1, 2, 2, 4) // z=2 is the middle of 5
	slice := v.MidSlice()
	if len(slice) != 3 || len(slice[0]) != 2 {
		t.Fatalf("slice shape = %dx%d, want 3x2", len(slice), len(slice[0]))
	}
	if slice[2][1] != 4 {
		t.Errorf("slice[2][1] = %v, want 4", slice[2][1])
	}
}

func TestMinMaxAndStats(t *testing.T) {
	v := New(2, 1, 1)
	v.Data[0] = -2
	v.Data[1] = 6
	lo, hi := v.MinMax()
	if lo != -2 || hi != 6 {
		t.Errorf("MinMax = (%v, %v), want (-2, 6)", lo, hi)
	}
	if got := v.Mean(); got != 2 {
		t.Errorf("Mean = %v, want 2", got)
	}
}

func TestHasNaN(t *testing.T) {
	v := New(2, 2, 2)
	if v.HasNaN() {
		t.Error("zero volume reported NaN")
	}
	v.Data[3] = math.NaN()
	if !v.HasNaN() {
		t.Error("NaN voxel not detected")
	}
}

func TestNormalizedSlice(t *testing.T) {
	v := New(2, 2, 1)
	v.Set(0, 0, 0, 10)
	v.Set(1, 1, 0, 30)
	slice := v.NormalizedSlice()
	for _, row := range slice {
		for _, val := range row {
			if val < 0 || val > 1 {
				t.Fatalf("normalized value %v out of [0,1]", val)
			}
		}
	}
	if slice[1][1] != 1 {
		t.Errorf("max voxel normalized to %v, want 1", slice[1][1])
	}
}
