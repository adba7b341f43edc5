package imageio

import (
	"github.com/mrsinham/voxelprep/internal/config"
	"github.com/mrsinham/voxelprep/internal/volume"
)

// Converter reorients images into a canonical axis orientation before the
// preprocessing stages run. Axes whose principal affine direction points
// negative are flipped so every direction cosine ends up positive.
type Converter struct {
	enabled bool
}

func NewConverter(cfg *config.Config) *Converter {
	return &Converter{enabled: cfg.ImageConversion.Enabled}
}

func (c *Converter) Enabled() bool { return c.enabled }

// Apply returns the canonically oriented image, or the input untouched when
// conversion is disabled or already canonical.
func (c *Converter) Apply(img *volume.Volume) *volume.Volume {
	if !c.enabled {
		return img
	}

	flip := [3]bool{}
	needed := false
	for axis := 0; axis < 3; axis++ {
		if img.Affine[axis][axis] < 0 {
			flip[axis] = true
			needed = true
		}
	}
	if !needed {
		return img
	}

	out := img.Shaped()
	out.Affine = img.Affine
	for axis := 0; axis < 3; axis++ {
		if !flip[axis] {
			continue
		}
		extent := [3]int{img.Nx - 1, img.Ny - 1, img.Nz - 1}[axis]
		for row := 0; row < 3; row++ {
			out.Affine[row][3] += out.Affine[row][axis] * float64(extent)
			out.Affine[row][axis] = -out.Affine[row][axis]
		}
	}
	for z := 0; z < img.Nz; z++ {
		for y := 0; y < img.Ny; y++ {
			for x := 0; x < img.Nx; x++ {
				sx, sy, sz := x, y, z
				if flip[0] {
					sx = img.Nx - 1 - x
				}
				if flip[1] {
					sy = img.Ny - 1 - y
				}
				if flip[2] {
					sz = img.Nz - 1 - z
				}
				out.Set(x, y, z, img.At(sx, sy, sz))
			}
		}
	}
	return out
}
