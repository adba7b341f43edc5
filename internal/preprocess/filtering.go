package preprocess

import (
	"github.com/mrsinham/voxelprep/internal/config"
	"github.com/mrsinham/voxelprep/internal/volume"
)

// Filtering applies a spatial filter or a binary threshold. Methods are
// alternatives: the first enabled one in declaration order (gaussian,
// median, otsu) produces the stage result.
type Filtering struct {
	cfg config.FilteringConfig
}

func NewFiltering(cfg *config.Config) Stage {
	return &Filtering{cfg: cfg.Filtering}
}

func (f *Filtering) Name() string { return "filtering" }

func (f *Filtering) Run(img *volume.Volume, path string) (*volume.Volume, error) {
	switch {
	case f.cfg.Methods.Gaussian.Enabled:
		sigma := f.cfg.Methods.Gaussian.Sigma
		if sigma <= 0 {
			sigma = 1
		}
		return gaussianSmooth(img, sigma), nil
	case f.cfg.Methods.Median.Enabled:
		return medianFilter(img, f.cfg.Methods.Median.Radius), nil
	case f.cfg.Methods.Otsu.Enabled:
		return binarize(img, otsuThreshold(img)), nil
	}
	return nil, noMethodEnabled(f.Name())
}
