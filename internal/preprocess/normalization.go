package preprocess

import (
	"sort"

	"github.com/mrsinham/voxelprep/internal/config"
	"github.com/mrsinham/voxelprep/internal/volume"
	"gonum.org/v1/gonum/stat"
)

// Normalization rescales voxel intensities. Methods are alternatives: the
// first enabled one in declaration order (intensity, zscore, histogram)
// produces the stage result.
type Normalization struct {
	cfg config.NormalizationConfig
}

func NewNormalization(cfg *config.Config) Stage {
	return &Normalization{cfg: cfg.Normalization}
}

func (n *Normalization) Name() string { return "normalization" }

func (n *Normalization) Run(img *volume.Volume, path string) (*volume.Volume, error) {
	switch {
	case n.cfg.Methods.Intensity.Enabled:
		return n.intensity(img), nil
	case n.cfg.Methods.ZScore.Enabled:
		return n.zscore(img)
	case n.cfg.Methods.Histogram.Enabled:
		return n.histogram(img), nil
	}
	return nil, noMethodEnabled(n.Name())
}

// intensity rescales into [0, 1]. A constant image passes through unchanged.
func (n *Normalization) intensity(img *volume.Volume) *volume.Volume {
	lo, hi := img.MinMax()
	if hi <= lo {
		return img
	}
	out := img.Shaped()
	for i, d := range img.Data {
		out.Data[i] = (d - lo) / (hi - lo)
	}
	return out
}

func (n *Normalization) zscore(img *volume.Volume) (*volume.Volume, error) {
	mean, std := stat.MeanStdDev(img.Data, nil)
	if std == 0 {
		return nil, stageFailf(n.Name(), "zscore undefined for constant image")
	}
	out := img.Shaped()
	for i, d := range img.Data {
		out.Data[i] = (d - mean) / std
	}
	return out, nil
}

// histogram equalizes intensities through the empirical CDF, mapping the
// result into [0, 1].
func (n *Normalization) histogram(img *volume.Volume) *volume.Volume {
	bins := n.cfg.Methods.Histogram.Bins
	if bins < 2 {
		bins = 256
	}
	lo, hi := img.MinMax()
	if hi <= lo {
		return img
	}

	hist := make([]int, bins)
	scale := float64(bins-1) / (hi - lo)
	for _, d := range img.Data {
		b := int((d - lo) * scale)
		if b < 0 {
			b = 0
		}
		if b >= bins {
			b = bins - 1
		}
		hist[b]++
	}

	cdf := make([]float64, bins)
	total := float64(len(img.Data))
	running := 0
	for b, c := range hist {
		running += c
		cdf[b] = float64(running) / total
	}

	out := img.Shaped()
	for i, d := range img.Data {
		b := int((d - lo) * scale)
		if b < 0 {
			b = 0
		}
		if b >= bins {
			b = bins - 1
		}
		out.Data[i] = cdf[b]
	}
	return out
}

// quantiles returns the q-quantile boundaries of the voxel intensities,
// shared with the binning stage.
func quantiles(data []float64, cuts int) []float64 {
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	out := make([]float64, cuts+1)
	for i := 0; i <= cuts; i++ {
		out[i] = stat.Quantile(float64(i)/float64(cuts), stat.Empirical, sorted, nil)
	}
	return out
}
