package preprocess

import (
	"reflect"
	"testing"

	"github.com/mrsinham/voxelprep/internal/config"
	"github.com/mrsinham/voxelprep/internal/volume"
)

// gradientVolume builds a small deterministic test image.
func gradientVolume(n int) *volume.Volume {
	v := volume.New(n, n, n)
	for i := range v.Data {
		v.Data[i] = float64(i % 17)
	}
	return v
}

func TestDefaultRegistryOrder(t *testing.T) {
	want := []string{
		"quality_control", "bias_field_correction", "resampling", "registration",
		"skull_stripping", "denoising", "normalization", "filtering", "binning",
	}
	if got := DefaultRegistry().Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("registry order = %v, want %v", got, want)
	}
}

func TestEnabledFollowsRegistryOrder(t *testing.T) {
	// Enablement order here is deliberately scrambled relative to the
	// registry; the registry order must win.
	cfg := config.Default()
	cfg.ImageLoading.InputDir = []string{"d"}
	cfg.Binning.Enabled = true
	cfg.QualityControl.Enabled = true
	cfg.Denoising.Enabled = true

	var got []string
	for _, st := range DefaultRegistry().Enabled(cfg) {
		got = append(got, st.Name())
	}
	want := []string{"quality_control", "denoising", "binning"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("enabled stages = %v, want %v", got, want)
	}
}

func TestEnabledSkipsDisabled(t *testing.T) {
	cfg := config.Default()
	if stages := DefaultRegistry().Enabled(cfg); len(stages) != 0 {
		t.Errorf("all-disabled config produced %d stages", len(stages))
	}
}

func TestRegistryDeterminism(t *testing.T) {
	cfg := config.Default()
	cfg.Resampling.Enabled = true
	cfg.Normalization.Enabled = true

	first := DefaultRegistry()
	second := DefaultRegistry()
	var a, b []string
	for _, st := range first.Enabled(cfg) {
		a = append(a, st.Name())
	}
	for _, st := range second.Enabled(cfg) {
		b = append(b, st.Name())
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("two registries disagree: %v vs %v", a, b)
	}
}
