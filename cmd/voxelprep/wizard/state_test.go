package wizard

import (
	"reflect"
	"strings"
	"testing"

	"github.com/mrsinham/voxelprep/internal/config"
)

func TestToConfigMapsStages(t *testing.T) {
	s := DefaultState()
	s.InputDirs = "data/cohort , extra"
	s.Stages = []string{"denoising", "normalization"}

	cfg, err := s.ToConfig()
	if err != nil {
		t.Fatalf("ToConfig: %v", err)
	}
	if want := []string{"data/cohort", "extra"}; !reflect.DeepEqual(cfg.ImageLoading.InputDir, want) {
		t.Errorf("input dirs = %v, want %v", cfg.ImageLoading.InputDir, want)
	}
	if !cfg.Denoising.Enabled || !cfg.Denoising.Methods.Gaussian.Enabled {
		t.Error("denoising selection did not enable the stage and its standard method")
	}
	if !cfg.Normalization.Enabled || !cfg.Normalization.Methods.Intensity.Enabled {
		t.Error("normalization selection did not enable the stage and its standard method")
	}
	if cfg.Binning.Enabled {
		t.Error("unselected stage ended up enabled")
	}
}

func TestToConfigSpacingValidation(t *testing.T) {
	tests := []struct {
		name    string
		spacing string
		wantErr bool
	}{
		{"default", "1,1,1", false},
		{"spaced", " 0.5 , 0.5 , 2 ", false},
		{"two components", "1,1", true},
		{"negative", "1,-1,1", true},
		{"garbage", "a,b,c", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultState()
			s.InputDirs = "data"
			s.Spacing = tt.spacing
			_, err := s.ToConfig()
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestToConfigRequiresInput(t *testing.T) {
	s := DefaultState()
	if _, err := s.ToConfig(); err == nil || !strings.Contains(err.Error(), "image_loading") {
		t.Errorf("err = %v, want image_loading validation failure", err)
	}
}

func TestToConfigUnknownStage(t *testing.T) {
	s := DefaultState()
	s.InputDirs = "data"
	s.Stages = []string{"sharpening"}
	if _, err := s.ToConfig(); err == nil {
		t.Error("expected failure for unknown stage name")
	}
}

func TestFromConfigRoundTrip(t *testing.T) {
	cfg := config.Default()
	cfg.ExperimentName = "pilot"
	cfg.ImageLoading.InputDir = []string{"a", "b"}
	cfg.ImageLoading.Recursive = true
	cfg.Resampling.Spacing = []float64{2, 2, 3}
	cfg.Registration.Reference = "tpl.nii.gz"
	cfg.Denoising.Enabled = true
	cfg.Binning.Enabled = true

	s := FromConfig(cfg)
	if s.ExperimentName != "pilot" || s.InputDirs != "a,b" || !s.Recursive {
		t.Errorf("state = %+v", s)
	}
	if s.Spacing != "2,2,3" {
		t.Errorf("spacing = %q, want 2,2,3", s.Spacing)
	}
	if want := []string{"denoising", "binning"}; !reflect.DeepEqual(s.Stages, want) {
		t.Errorf("stages = %v, want %v", s.Stages, want)
	}
}
