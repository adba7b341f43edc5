package preprocess

import (
	"math"

	"github.com/mrsinham/voxelprep/internal/config"
	"github.com/mrsinham/voxelprep/internal/volume"
)

// QualityControl verifies the image against expected dimensions and voxel
// size and scans for NaN values. It never modifies the image: a passing
// image flows through unchanged, a failing one raises a StageError so the
// pipeline records the problem and moves on.
type QualityControl struct {
	cfg config.QualityControlConfig
}

func NewQualityControl(cfg *config.Config) Stage {
	return &QualityControl{cfg: cfg.QualityControl}
}

func (q *QualityControl) Name() string { return "quality_control" }

func (q *QualityControl) Run(img *volume.Volume, path string) (*volume.Volume, error) {
	if dims := q.cfg.ExpectedDims; len(dims) == 3 {
		if img.Nx != dims[0] || img.Ny != dims[1] || img.Nz != dims[2] {
			return nil, stageFailf(q.Name(), "image %s has dimensions %dx%dx%d, expected %dx%dx%d",
				path, img.Nx, img.Ny, img.Nz, dims[0], dims[1], dims[2])
		}
	}
	if want := q.cfg.ExpectedVoxelSize; len(want) == 3 {
		for i := 0; i < 3; i++ {
			if math.Abs(img.Spacing[i]-want[i]) > 1e-6 {
				return nil, stageFailf(q.Name(), "image %s has voxel size %v, expected %v",
					path, img.Spacing, want)
			}
		}
	}
	if img.HasNaN() {
		return nil, stageFailf(q.Name(), "image %s contains NaN values", path)
	}
	return img, nil
}
