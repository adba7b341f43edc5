package preprocess

import (
	"math"
	"sort"

	"github.com/mrsinham/voxelprep/internal/volume"
)

// Shared voxel-domain filters used by several stages.

// gaussianKernel builds a normalized 1D kernel truncated at three sigma.
func gaussianKernel(sigma float64) []float64 {
	if sigma <= 0 {
		sigma = 1
	}
	radius := int(math.Ceil(3 * sigma))
	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := -radius; i <= radius; i++ {
		w := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = w
		sum += w
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// gaussianSmooth applies a separable gaussian along each axis. Borders are
// handled by renormalizing over in-range taps.
func gaussianSmooth(v *volume.Volume, sigma float64) *volume.Volume {
	kernel := gaussianKernel(sigma)
	radius := len(kernel) / 2

	out := v
	for axis := 0; axis < 3; axis++ {
		src := out
		dst := src.Shaped()
		for z := 0; z < src.Nz; z++ {
			for y := 0; y < src.Ny; y++ {
				for x := 0; x < src.Nx; x++ {
					acc, norm := 0.0, 0.0
					for k := -radius; k <= radius; k++ {
						xx, yy, zz := x, y, z
						switch axis {
						case 0:
							xx += k
						case 1:
							yy += k
						case 2:
							zz += k
						}
						if xx < 0 || yy < 0 || zz < 0 || xx >= src.Nx || yy >= src.Ny || zz >= src.Nz {
							continue
						}
						w := kernel[k+radius]
						acc += w * src.At(xx, yy, zz)
						norm += w
					}
					if norm > 0 {
						dst.Set(x, y, z, acc/norm)
					}
				}
			}
		}
		out = dst
	}
	return out
}

// medianFilter replaces each voxel with the median of its cubic
// neighborhood of the given radius.
func medianFilter(v *volume.Volume, radius int) *volume.Volume {
	if radius < 1 {
		radius = 1
	}
	out := v.Shaped()
	window := make([]float64, 0, (2*radius+1)*(2*radius+1)*(2*radius+1))
	for z := 0; z < v.Nz; z++ {
		for y := 0; y < v.Ny; y++ {
			for x := 0; x < v.Nx; x++ {
				window = window[:0]
				for dz := -radius; dz <= radius; dz++ {
					for dy := -radius; dy <= radius; dy++ {
						for dx := -radius; dx <= radius; dx++ {
							xx, yy, zz := x+dx, y+dy, z+dz
							if xx < 0 || yy < 0 || zz < 0 || xx >= v.Nx || yy >= v.Ny || zz >= v.Nz {
								continue
							}
							window = append(window, v.At(xx, yy, zz))
						}
					}
				}
				sort.Float64s(window)
				out.Set(x, y, z, window[len(window)/2])
			}
		}
	}
	return out
}

// otsuThreshold computes the threshold maximizing between-class variance
// over a 256-bin histogram of the intensity range.
func otsuThreshold(v *volume.Volume) float64 {
	const bins = 256
	lo, hi := v.MinMax()
	if hi <= lo {
		return lo
	}

	var hist [bins]int
	scale := float64(bins-1) / (hi - lo)
	for _, d := range v.Data {
		b := int((d - lo) * scale)
		if b < 0 {
			b = 0
		}
		if b >= bins {
			b = bins - 1
		}
		hist[b]++
	}

	total := len(v.Data)
	var sumAll float64
	for b, n := range hist {
		sumAll += float64(b) * float64(n)
	}

	var sumB, wB float64
	bestVar, bestBin := -1.0, 0
	for b := 0; b < bins; b++ {
		wB += float64(hist[b])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(b) * float64(hist[b])
		mB := sumB / wB
		mF := (sumAll - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > bestVar {
			bestVar = between
			bestBin = b
		}
	}
	return lo + float64(bestBin)/scale
}

// binarize maps voxels above the threshold to 1 and the rest to 0.
func binarize(v *volume.Volume, threshold float64) *volume.Volume {
	out := v.Shaped()
	for i, d := range v.Data {
		if d > threshold {
			out.Data[i] = 1
		}
	}
	return out
}

// dilate and erode implement 6-connected binary morphology on 0/1 volumes.
func dilate(v *volume.Volume) *volume.Volume {
	out := v.Shaped()
	for z := 0; z < v.Nz; z++ {
		for y := 0; y < v.Ny; y++ {
			for x := 0; x < v.Nx; x++ {
				if v.At(x, y, z) > 0 ||
					v.At(x-1, y, z) > 0 || v.At(x+1, y, z) > 0 ||
					v.At(x, y-1, z) > 0 || v.At(x, y+1, z) > 0 ||
					v.At(x, y, z-1) > 0 || v.At(x, y, z+1) > 0 {
					out.Set(x, y, z, 1)
				}
			}
		}
	}
	return out
}

func erode(v *volume.Volume) *volume.Volume {
	out := v.Shaped()
	for z := 0; z < v.Nz; z++ {
		for y := 0; y < v.Ny; y++ {
			for x := 0; x < v.Nx; x++ {
				if v.At(x, y, z) > 0 &&
					x > 0 && v.At(x-1, y, z) > 0 && x < v.Nx-1 && v.At(x+1, y, z) > 0 &&
					y > 0 && v.At(x, y-1, z) > 0 && y < v.Ny-1 && v.At(x, y+1, z) > 0 &&
					z > 0 && v.At(x, y, z-1) > 0 && z < v.Nz-1 && v.At(x, y, z+1) > 0 {
					out.Set(x, y, z, 1)
				}
			}
		}
	}
	return out
}

// centerOfMass returns the intensity-weighted centroid in voxel coordinates.
func centerOfMass(v *volume.Volume) (float64, float64, float64) {
	var cx, cy, cz, mass float64
	for z := 0; z < v.Nz; z++ {
		for y := 0; y < v.Ny; y++ {
			for x := 0; x < v.Nx; x++ {
				w := v.At(x, y, z)
				if w < 0 {
					continue
				}
				cx += w * float64(x)
				cy += w * float64(y)
				cz += w * float64(z)
				mass += w
			}
		}
	}
	if mass == 0 {
		return float64(v.Nx) / 2, float64(v.Ny) / 2, float64(v.Nz) / 2
	}
	return cx / mass, cy / mass, cz / mass
}

// sampleTrilinear interpolates v at fractional voxel coordinates, returning
// 0 outside the grid.
func sampleTrilinear(v *volume.Volume, fx, fy, fz float64) float64 {
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	z0 := int(math.Floor(fz))
	dx := fx - float64(x0)
	dy := fy - float64(y0)
	dz := fz - float64(z0)

	var acc float64
	for dzi := 0; dzi <= 1; dzi++ {
		for dyi := 0; dyi <= 1; dyi++ {
			for dxi := 0; dxi <= 1; dxi++ {
				wx := dx
				if dxi == 0 {
					wx = 1 - dx
				}
				wy := dy
				if dyi == 0 {
					wy = 1 - dy
				}
				wz := dz
				if dzi == 0 {
					wz = 1 - dz
				}
				acc += wx * wy * wz * v.At(x0+dxi, y0+dyi, z0+dzi)
			}
		}
	}
	return acc
}
