package preprocess

import (
	"github.com/mrsinham/voxelprep/internal/config"
	"github.com/mrsinham/voxelprep/internal/volume"
)

// Denoising suppresses acquisition noise. Enabled methods chain in
// declaration order (gaussian, median), each consuming the previous
// method's output.
type Denoising struct {
	cfg config.DenoisingConfig
}

func NewDenoising(cfg *config.Config) Stage {
	return &Denoising{cfg: cfg.Denoising}
}

func (d *Denoising) Name() string { return "denoising" }

func (d *Denoising) Run(img *volume.Volume, path string) (*volume.Volume, error) {
	applied := false
	out := img
	if d.cfg.Methods.Gaussian.Enabled {
		sigma := d.cfg.Methods.Gaussian.Sigma
		if sigma <= 0 {
			sigma = 1
		}
		out = gaussianSmooth(out, sigma)
		applied = true
	}
	if d.cfg.Methods.Median.Enabled {
		out = medianFilter(out, d.cfg.Methods.Median.Radius)
		applied = true
	}
	if !applied {
		return nil, noMethodEnabled(d.Name())
	}
	return out, nil
}
