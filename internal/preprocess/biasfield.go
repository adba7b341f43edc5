package preprocess

import (
	"math"

	"github.com/mrsinham/voxelprep/internal/config"
	"github.com/mrsinham/voxelprep/internal/volume"
)

// BiasFieldCorrection removes slowly-varying intensity inhomogeneity.
// Methods are alternatives: the first enabled one in declaration order
// (n4, homomorphic) produces the stage result.
type BiasFieldCorrection struct {
	cfg config.BiasFieldConfig
}

func NewBiasFieldCorrection(cfg *config.Config) Stage {
	return &BiasFieldCorrection{cfg: cfg.BiasFieldCorrection}
}

func (b *BiasFieldCorrection) Name() string { return "bias_field_correction" }

func (b *BiasFieldCorrection) Run(img *volume.Volume, path string) (*volume.Volume, error) {
	switch {
	case b.cfg.Methods.N4.Enabled:
		return b.n4(img), nil
	case b.cfg.Methods.Homomorphic.Enabled:
		return b.homomorphic(img), nil
	}
	return nil, noMethodEnabled(b.Name())
}

// n4 estimates the bias field by repeatedly smoothing the image at a coarse
// scale and divides it out, an approximation of the N4 iterative scheme.
func (b *BiasFieldCorrection) n4(img *volume.Volume) *volume.Volume {
	shrink := b.cfg.Methods.N4.ShrinkFactor
	if shrink < 1 {
		shrink = 4
	}
	iterations := b.cfg.Methods.N4.Iterations
	if iterations < 1 {
		iterations = 50
	}
	// The field scale grows with the shrink factor; a handful of smoothing
	// passes approximates many fit iterations at far lower cost.
	passes := iterations / 25
	if passes < 1 {
		passes = 1
	}
	sigma := float64(shrink) * 2

	field := img.Clone()
	for i := 0; i < passes; i++ {
		field = gaussianSmooth(field, sigma)
	}

	out := img.Shaped()
	mean := field.Mean()
	for i := range img.Data {
		f := field.Data[i]
		if math.Abs(f) < 1e-12 {
			out.Data[i] = img.Data[i]
			continue
		}
		out.Data[i] = img.Data[i] * mean / f
	}
	return out
}

// homomorphic removes the low-frequency component in the log domain.
func (b *BiasFieldCorrection) homomorphic(img *volume.Volume) *volume.Volume {
	sigma := b.cfg.Methods.Homomorphic.Sigma
	if sigma <= 0 {
		sigma = 8
	}

	lo, _ := img.MinMax()
	offset := 1 - lo // keep the log argument positive

	logImg := img.Shaped()
	for i, d := range img.Data {
		logImg.Data[i] = math.Log(d + offset)
	}
	lowpass := gaussianSmooth(logImg, sigma)
	lowpassMean := lowpass.Mean()

	out := img.Shaped()
	for i := range img.Data {
		out.Data[i] = math.Exp(logImg.Data[i]-lowpass.Data[i]+lowpassMean) - offset
	}
	return out
}
