package preprocess

import (
	"math"

	"github.com/mrsinham/voxelprep/internal/config"
	"github.com/mrsinham/voxelprep/internal/volume"
)

// Binning discretizes voxel intensities into bin indices. Methods are
// alternatives: the first enabled one in declaration order (fixed_width,
// quantile) produces the stage result.
type Binning struct {
	cfg config.BinningConfig
}

func NewBinning(cfg *config.Config) Stage {
	return &Binning{cfg: cfg.Binning}
}

func (b *Binning) Name() string { return "binning" }

func (b *Binning) Run(img *volume.Volume, path string) (*volume.Volume, error) {
	switch {
	case b.cfg.Methods.FixedWidth.Enabled:
		return b.fixedWidth(img)
	case b.cfg.Methods.Quantile.Enabled:
		return b.quantile(img)
	}
	return nil, noMethodEnabled(b.Name())
}

func (b *Binning) fixedWidth(img *volume.Volume) (*volume.Volume, error) {
	width := b.cfg.Methods.FixedWidth.BinWidth
	if width <= 0 {
		return nil, &ConfigError{Stage: b.Name(), Reason: "fixed_width bin_width must be positive"}
	}
	lo, _ := img.MinMax()
	out := img.Shaped()
	for i, d := range img.Data {
		out.Data[i] = math.Floor((d-lo)/width) + 1
	}
	return out, nil
}

func (b *Binning) quantile(img *volume.Volume) (*volume.Volume, error) {
	numBins := b.cfg.Methods.Quantile.NumBins
	if numBins < 1 {
		return nil, &ConfigError{Stage: b.Name(), Reason: "quantile num_bins must be positive"}
	}
	edges := quantiles(img.Data, numBins)

	out := img.Shaped()
	for i, d := range img.Data {
		bin := 1
		for j := 1; j < len(edges)-1; j++ {
			if d >= edges[j] {
				bin = j + 1
			}
		}
		out.Data[i] = float64(bin)
	}
	return out, nil
}
