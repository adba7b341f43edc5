package wizard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mrsinham/voxelprep/internal/config"
)

// StageNames lists the selectable stages in pipeline order.
var StageNames = []string{
	"quality_control",
	"bias_field_correction",
	"resampling",
	"registration",
	"skull_stripping",
	"denoising",
	"normalization",
	"filtering",
	"binning",
}

// WizardState holds the form-bound answers. Everything is a string or bool
// so it can bind directly to form fields; ToConfig parses and validates.
type WizardState struct {
	ExperimentName string
	CSVPath        string
	InputDirs      string
	Recursive      bool
	OutputDir      string
	Visualize      bool

	Stages    []string
	Reference string
	Spacing   string
}

// DefaultState returns the answers prefilled from the configuration defaults.
func DefaultState() *WizardState {
	cfg := config.Default()
	return &WizardState{
		ExperimentName: cfg.ExperimentName,
		OutputDir:      cfg.ImageSaving.OutputDir,
		Spacing:        "1,1,1",
	}
}

// FromConfig prefills the answers from an existing configuration.
func FromConfig(cfg *config.Config) *WizardState {
	s := DefaultState()
	s.ExperimentName = cfg.ExperimentName
	s.CSVPath = cfg.ImageLoading.FilePath
	s.InputDirs = strings.Join(cfg.ImageLoading.InputDir, ",")
	s.Recursive = cfg.ImageLoading.Recursive
	s.OutputDir = cfg.ImageSaving.OutputDir
	s.Visualize = cfg.ImageVisualization.Enabled
	s.Reference = cfg.Registration.Reference

	if len(cfg.Resampling.Spacing) == 3 {
		parts := make([]string, 3)
		for i, v := range cfg.Resampling.Spacing {
			parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		s.Spacing = strings.Join(parts, ",")
	}
	for _, name := range StageNames {
		if settings, ok := cfg.Step(name); ok && settings.Enabled {
			s.Stages = append(s.Stages, name)
		}
	}
	return s
}

// ToConfig converts the answers into a validated configuration. Each selected
// stage gets its standard method enabled; parameters keep their defaults.
func (s *WizardState) ToConfig() (*config.Config, error) {
	cfg := config.Default()
	cfg.ExperimentName = strings.TrimSpace(s.ExperimentName)
	cfg.ImageLoading.FilePath = strings.TrimSpace(s.CSVPath)
	cfg.ImageLoading.Recursive = s.Recursive
	for _, dir := range strings.Split(s.InputDirs, ",") {
		if d := strings.TrimSpace(dir); d != "" {
			cfg.ImageLoading.InputDir = append(cfg.ImageLoading.InputDir, d)
		}
	}
	cfg.ImageSaving.OutputDir = strings.TrimSpace(s.OutputDir)
	if len(cfg.ImageLoading.InputDir) == 1 {
		cfg.ImageSaving.InputDir = cfg.ImageLoading.InputDir[0]
	}
	cfg.ImageVisualization.Enabled = s.Visualize
	cfg.Registration.Reference = strings.TrimSpace(s.Reference)

	spacing, err := parseSpacing(s.Spacing)
	if err != nil {
		return nil, err
	}
	cfg.Resampling.Spacing = spacing

	for _, name := range s.Stages {
		switch name {
		case "quality_control":
			cfg.QualityControl.Enabled = true
		case "bias_field_correction":
			cfg.BiasFieldCorrection.Enabled = true
			cfg.BiasFieldCorrection.Methods.N4.Enabled = true
		case "resampling":
			cfg.Resampling.Enabled = true
			cfg.Resampling.Methods.Trilinear.Enabled = true
		case "registration":
			cfg.Registration.Enabled = true
			cfg.Registration.Methods.ResampleToReference.Enabled = true
		case "skull_stripping":
			cfg.SkullStripping.Enabled = true
			cfg.SkullStripping.Methods.Threshold.Enabled = true
		case "denoising":
			cfg.Denoising.Enabled = true
			cfg.Denoising.Methods.Gaussian.Enabled = true
		case "normalization":
			cfg.Normalization.Enabled = true
			cfg.Normalization.Methods.Intensity.Enabled = true
		case "filtering":
			cfg.Filtering.Enabled = true
			cfg.Filtering.Methods.Gaussian.Enabled = true
		case "binning":
			cfg.Binning.Enabled = true
			cfg.Binning.Methods.FixedWidth.Enabled = true
		default:
			return nil, fmt.Errorf("unknown stage %q", name)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseSpacing(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("spacing must be three comma-separated values, got %q", raw)
	}
	out := make([]float64, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("spacing component %q: %w", p, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("spacing components must be positive, got %v", v)
		}
		out[i] = v
	}
	return out, nil
}
