package render

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func testSlice(n int) [][]float64 {
	out := make([][]float64, n)
	for y := range out {
		out[y] = make([]float64, n)
		for x := range out[y] {
			out[y][x] = float64(x) / float64(n-1)
		}
	}
	return out
}

func TestWriteComparison(t *testing.T) {
	path := filepath.Join(t.TempDir(), "figures", "comparison.png")
	panels := []Panel{
		{Title: "initial", Slice: testSlice(16)},
		{Title: "denoising", Slice: testSlice(8)},
		{Title: "normalization", Slice: testSlice(32)},
	}
	if err := WriteComparison(path, panels); err != nil {
		t.Fatalf("WriteComparison: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open figure: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode figure: %v", err)
	}
	wantWidth := 3*256 + 2*4
	if got := img.Bounds().Dx(); got != wantWidth {
		t.Errorf("figure width = %d, want %d", got, wantWidth)
	}
}

func TestWriteComparisonNoPanels(t *testing.T) {
	if err := WriteComparison(filepath.Join(t.TempDir(), "out.png"), nil); err == nil {
		t.Error("expected failure for empty panel list")
	}
}
