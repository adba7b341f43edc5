// Package volume holds the in-memory representation of a volumetric medical
// image: a voxel grid with an affine orientation transform and voxel spacing.
package volume

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Volume is a 3D scalar image. Data is stored x-fastest: the voxel at
// (x, y, z) lives at Data[x + Nx*(y + Ny*z)].
type Volume struct {
	Data       []float64
	Nx, Ny, Nz int
	Spacing    [3]float64
	Affine     [4][4]float64
}

// New allocates a zero-filled volume with unit spacing and identity affine.
func New(nx, ny, nz int) *Volume {
	v := &Volume{
		Data:    make([]float64, nx*ny*nz),
		Nx:      nx,
		Ny:      ny,
		Nz:      nz,
		Spacing: [3]float64{1, 1, 1},
	}
	for i := 0; i < 4; i++ {
		v.Affine[i][i] = 1
	}
	return v
}

// At returns the voxel value at (x, y, z). Out-of-range coordinates return 0.
func (v *Volume) At(x, y, z int) float64 {
	if x < 0 || y < 0 || z < 0 || x >= v.Nx || y >= v.Ny || z >= v.Nz {
		return 0
	}
	return v.Data[x+v.Nx*(y+v.Ny*z)]
}

// Set writes the voxel value at (x, y, z). Out-of-range coordinates are ignored.
func (v *Volume) Set(x, y, z int, val float64) {
	if x < 0 || y < 0 || z < 0 || x >= v.Nx || y >= v.Ny || z >= v.Nz {
		return
	}
	v.Data[x+v.Nx*(y+v.Ny*z)] = val
}

// Dims returns the grid dimensions as (nx, ny, nz).
func (v *Volume) Dims() (int, int, int) {
	return v.Nx, v.Ny, v.Nz
}

// Clone returns a deep copy sharing no storage with the receiver.
func (v *Volume) Clone() *Volume {
	out := &Volume{
		Data:    make([]float64, len(v.Data)),
		Nx:      v.Nx,
		Ny:      v.Ny,
		Nz:      v.Nz,
		Spacing: v.Spacing,
		Affine:  v.Affine,
	}
	copy(out.Data, v.Data)
	return out
}

// Shaped returns an empty volume with the same geometry as the receiver.
func (v *Volume) Shaped() *Volume {
	return &Volume{
		Data:    make([]float64, len(v.Data)),
		Nx:      v.Nx,
		Ny:      v.Ny,
		Nz:      v.Nz,
		Spacing: v.Spacing,
		Affine:  v.Affine,
	}
}

// MidSlice extracts the axial slice at the middle index along the last
// spatial axis, as rows indexed [y][x].
func (v *Volume) MidSlice() [][]float64 {
	z := v.Nz / 2
	out := make([][]float64, v.Ny)
	for y := 0; y < v.Ny; y++ {
		row := make([]float64, v.Nx)
		for x := 0; x < v.Nx; x++ {
			row[x] = v.At(x, y, z)
		}
		out[y] = row
	}
	return out
}

// MinMax returns the smallest and largest voxel values.
func (v *Volume) MinMax() (float64, float64) {
	if len(v.Data) == 0 {
		return 0, 0
	}
	lo, hi := v.Data[0], v.Data[0]
	for _, d := range v.Data {
		if d < lo {
			lo = d
		}
		if d > hi {
			hi = d
		}
	}
	return lo, hi
}

// Mean returns the mean voxel intensity.
func (v *Volume) Mean() float64 {
	return stat.Mean(v.Data, nil)
}

// StdDev returns the voxel intensity standard deviation.
func (v *Volume) StdDev() float64 {
	return stat.StdDev(v.Data, nil)
}

// HasNaN reports whether any voxel is NaN.
func (v *Volume) HasNaN() bool {
	for _, d := range v.Data {
		if math.IsNaN(d) {
			return true
		}
	}
	return false
}

// NormalizedSlice extracts the middle axial slice rescaled into [0, 1] for
// display. A constant slice is returned unchanged.
func (v *Volume) NormalizedSlice() [][]float64 {
	slice := v.MidSlice()
	lo := math.Inf(1)
	hi := math.Inf(-1)
	for _, row := range slice {
		for _, val := range row {
			if val < lo {
				lo = val
			}
			if val > hi {
				hi = val
			}
		}
	}
	if hi <= lo {
		return slice
	}
	for y := range slice {
		for x := range slice[y] {
			slice[y][x] = (slice[y][x] - lo) / (hi - lo)
		}
	}
	return slice
}
