package preprocess

import (
	"os"

	"github.com/mrsinham/voxelprep/internal/config"
	"github.com/mrsinham/voxelprep/internal/volume"
)

// SkullStripping masks out non-brain tissue. Methods are alternatives: the
// first enabled one in declaration order (threshold, morphological, atlas)
// produces the stage result.
type SkullStripping struct {
	cfg config.SkullStrippingConfig
}

func NewSkullStripping(cfg *config.Config) Stage {
	return &SkullStripping{cfg: cfg.SkullStripping}
}

func (s *SkullStripping) Name() string { return "skull_stripping" }

func (s *SkullStripping) Run(img *volume.Volume, path string) (*volume.Volume, error) {
	switch {
	case s.cfg.Methods.Threshold.Enabled:
		return s.threshold(img), nil
	case s.cfg.Methods.Morphological.Enabled:
		return s.morphological(img), nil
	case s.cfg.Methods.Atlas.Enabled:
		return s.atlas(img)
	}
	return nil, noMethodEnabled(s.Name())
}

// threshold keeps voxels above the configured fraction of the intensity range.
func (s *SkullStripping) threshold(img *volume.Volume) *volume.Volume {
	frac := s.cfg.Methods.Threshold.Value
	if frac <= 0 {
		frac = 0.1
	}
	lo, hi := img.MinMax()
	cut := lo + frac*(hi-lo)
	return applyMask(img, binarize(img, cut))
}

// morphological closes an Otsu foreground mask before applying it, filling
// small holes left inside the brain envelope.
func (s *SkullStripping) morphological(img *volume.Volume) *volume.Volume {
	iterations := s.cfg.Methods.Morphological.Iterations
	if iterations < 1 {
		iterations = 2
	}
	mask := binarize(img, otsuThreshold(img))
	for i := 0; i < iterations; i++ {
		mask = dilate(mask)
	}
	for i := 0; i < iterations; i++ {
		mask = erode(mask)
	}
	return applyMask(img, mask)
}

// atlas masks the image with a binary atlas volume resampled to its grid.
func (s *SkullStripping) atlas(img *volume.Volume) (*volume.Volume, error) {
	atlasPath := s.cfg.Methods.Atlas.Path
	if atlasPath == "" {
		return nil, &ConfigError{Stage: s.Name(), Reason: "atlas method requires a path"}
	}
	if _, err := os.Stat(atlasPath); err != nil {
		return nil, stageFailf(s.Name(), "no atlas file at %s", atlasPath)
	}
	atlas, err := volume.ReadNIfTI(atlasPath)
	if err != nil {
		return nil, stageFailf(s.Name(), "load atlas %s: %v", atlasPath, err)
	}
	if atlas.Nx != img.Nx || atlas.Ny != img.Ny || atlas.Nz != img.Nz {
		atlas = resampleToGrid(atlas, img)
	}
	return applyMask(img, binarize(atlas, 0)), nil
}

func applyMask(img, mask *volume.Volume) *volume.Volume {
	out := img.Shaped()
	for i := range img.Data {
		if mask.Data[i] > 0 {
			out.Data[i] = img.Data[i]
		}
	}
	return out
}
