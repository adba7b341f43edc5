package preprocess

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrsinham/voxelprep/internal/config"
	"github.com/mrsinham/voxelprep/internal/volume"
)

// Resampling regrids the image onto the configured voxel spacing. Methods
// are alternative interpolators; the first enabled one in declaration order
// (trilinear, nearest) produces the stage result. With saving_files set, the
// resampled intermediate is also written under output_dir as a side effect.
type Resampling struct {
	cfg config.ResamplingConfig
}

func NewResampling(cfg *config.Config) Stage {
	return &Resampling{cfg: cfg.Resampling}
}

func (r *Resampling) Name() string { return "resampling" }

func (r *Resampling) Run(img *volume.Volume, path string) (*volume.Volume, error) {
	if len(r.cfg.Spacing) != 3 {
		return nil, &ConfigError{Stage: r.Name(), Reason: fmt.Sprintf("spacing must have 3 components, got %v", r.cfg.Spacing)}
	}
	spacing := [3]float64{r.cfg.Spacing[0], r.cfg.Spacing[1], r.cfg.Spacing[2]}

	var out *volume.Volume
	var method string
	switch {
	case r.cfg.Methods.Trilinear.Enabled:
		out = resample(img, spacing, true)
		method = "trilinear"
	case r.cfg.Methods.Nearest.Enabled:
		out = resample(img, spacing, false)
		method = "nearest"
	default:
		return nil, noMethodEnabled(r.Name())
	}

	if r.cfg.SavingFiles {
		if err := r.saveIntermediate(out, path, method); err != nil {
			return nil, &StageError{Stage: r.Name(), Err: err}
		}
	}
	return out, nil
}

func (r *Resampling) saveIntermediate(img *volume.Volume, path, method string) error {
	id := strings.TrimSuffix(strings.TrimSuffix(filepath.Base(path), ".gz"), ".nii")
	id = strings.TrimSuffix(id, filepath.Ext(id))
	dir := filepath.Join(r.cfg.OutputDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	name := filepath.Join(dir, fmt.Sprintf("%s_%s_resampled.nii.gz", id, method))
	return volume.WriteNIfTI(name, img)
}

func resample(img *volume.Volume, spacing [3]float64, trilinear bool) *volume.Volume {
	scale := [3]float64{
		img.Spacing[0] / spacing[0],
		img.Spacing[1] / spacing[1],
		img.Spacing[2] / spacing[2],
	}
	nx := max(1, int(math.Round(float64(img.Nx)*scale[0])))
	ny := max(1, int(math.Round(float64(img.Ny)*scale[1])))
	nz := max(1, int(math.Round(float64(img.Nz)*scale[2])))

	out := volume.New(nx, ny, nz)
	out.Spacing = spacing
	out.Affine = img.Affine
	for i := 0; i < 3; i++ {
		norm := math.Sqrt(img.Affine[0][i]*img.Affine[0][i] +
			img.Affine[1][i]*img.Affine[1][i] +
			img.Affine[2][i]*img.Affine[2][i])
		if norm == 0 {
			out.Affine[i][i] = spacing[i]
			continue
		}
		for row := 0; row < 3; row++ {
			out.Affine[row][i] = img.Affine[row][i] / norm * spacing[i]
		}
	}

	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				fx := float64(x) / scale[0]
				fy := float64(y) / scale[1]
				fz := float64(z) / scale[2]
				var val float64
				if trilinear {
					val = sampleTrilinear(img, fx, fy, fz)
				} else {
					val = img.At(int(math.Round(fx)), int(math.Round(fy)), int(math.Round(fz)))
				}
				out.Set(x, y, z, val)
			}
		}
	}
	return out
}
