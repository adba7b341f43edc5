// Package config defines the statically-typed pipeline configuration schema
// and its loading/validation. One entry per stage, each carrying an enabled
// flag, an optional display_step flag, and either scalar parameters or a
// methods mapping of independently-enabled algorithm variants.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// StepSettings carries the two orthogonal per-stage flags. DisplayStep
// defaults to true when absent from the configuration file.
type StepSettings struct {
	Enabled     bool  `json:"enabled" yaml:"enabled"`
	DisplayStep *bool `json:"display_step,omitempty" yaml:"display_step,omitempty"`
}

// Display reports whether the stage counts toward substep progress and
// per-stage visualization. A stage can run with Display false.
func (s StepSettings) Display() bool {
	return s.DisplayStep == nil || *s.DisplayStep
}

// MethodSettings is the enable flag shared by all method sub-configurations.
type MethodSettings struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// LoadingConfig selects the input cohort: either a CSV file with an
// image_path column, or an explicit list of directories/files.
type LoadingConfig struct {
	FilePath  string   `json:"file_path,omitempty" yaml:"file_path,omitempty"`
	InputDir  []string `json:"input_dir,omitempty" yaml:"input_dir,omitempty"`
	Recursive bool     `json:"recursive" yaml:"recursive"`
}

// ConversionConfig gates the canonical-orientation pass applied before the
// preprocessing stages.
type ConversionConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// SavingConfig controls where processed images land. The input-relative
// directory structure is mirrored under OutputDir.
type SavingConfig struct {
	InputDir  string `json:"input_dir" yaml:"input_dir"`
	OutputDir string `json:"output_dir" yaml:"output_dir"`
}

// VisualizationConfig gates the per-image comparison figure.
type VisualizationConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	OutputFile string `json:"output_file,omitempty" yaml:"output_file,omitempty"`
}

type QualityControlConfig struct {
	StepSettings      `yaml:",inline"`
	ExpectedDims      []int     `json:"expected_dims,omitempty" yaml:"expected_dims,omitempty"`
	ExpectedVoxelSize []float64 `json:"expected_voxel_size,omitempty" yaml:"expected_voxel_size,omitempty"`
}

type N4Method struct {
	MethodSettings `yaml:",inline"`
	ShrinkFactor   int `json:"shrink_factor,omitempty" yaml:"shrink_factor,omitempty"`
	Iterations     int `json:"number_of_iterations,omitempty" yaml:"number_of_iterations,omitempty"`
}

type HomomorphicMethod struct {
	MethodSettings `yaml:",inline"`
	Sigma          float64 `json:"sigma,omitempty" yaml:"sigma,omitempty"`
}

type BiasFieldMethods struct {
	N4          N4Method          `json:"n4" yaml:"n4"`
	Homomorphic HomomorphicMethod `json:"homomorphic" yaml:"homomorphic"`
}

type BiasFieldConfig struct {
	StepSettings `yaml:",inline"`
	Methods      BiasFieldMethods `json:"methods" yaml:"methods"`
}

type ResamplingMethods struct {
	Trilinear MethodSettings `json:"trilinear" yaml:"trilinear"`
	Nearest   MethodSettings `json:"nearest" yaml:"nearest"`
}

type ResamplingConfig struct {
	StepSettings `yaml:",inline"`
	Spacing      []float64         `json:"spacing,omitempty" yaml:"spacing,omitempty"`
	SavingFiles  bool              `json:"saving_files" yaml:"saving_files"`
	OutputDir    string            `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	Methods      ResamplingMethods `json:"methods" yaml:"methods"`
}

type RegistrationMethods struct {
	Rigid               MethodSettings `json:"rigid" yaml:"rigid"`
	ResampleToReference MethodSettings `json:"resample_to_reference" yaml:"resample_to_reference"`
}

type RegistrationConfig struct {
	StepSettings `yaml:",inline"`
	Reference    string              `json:"reference,omitempty" yaml:"reference,omitempty"`
	Methods      RegistrationMethods `json:"methods" yaml:"methods"`
}

type ThresholdMethod struct {
	MethodSettings `yaml:",inline"`
	Value          float64 `json:"value,omitempty" yaml:"value,omitempty"`
}

type MorphologicalMethod struct {
	MethodSettings `yaml:",inline"`
	Iterations     int `json:"iterations,omitempty" yaml:"iterations,omitempty"`
}

type AtlasMethod struct {
	MethodSettings `yaml:",inline"`
	Path           string `json:"path,omitempty" yaml:"path,omitempty"`
}

type SkullStrippingMethods struct {
	Threshold     ThresholdMethod     `json:"threshold" yaml:"threshold"`
	Morphological MorphologicalMethod `json:"morphological" yaml:"morphological"`
	Atlas         AtlasMethod         `json:"atlas" yaml:"atlas"`
}

type SkullStrippingConfig struct {
	StepSettings `yaml:",inline"`
	Methods      SkullStrippingMethods `json:"methods" yaml:"methods"`
}

type GaussianMethod struct {
	MethodSettings `yaml:",inline"`
	Sigma          float64 `json:"sigma,omitempty" yaml:"sigma,omitempty"`
}

type MedianMethod struct {
	MethodSettings `yaml:",inline"`
	Radius         int `json:"radius,omitempty" yaml:"radius,omitempty"`
}

type DenoisingMethods struct {
	Gaussian GaussianMethod `json:"gaussian" yaml:"gaussian"`
	Median   MedianMethod   `json:"median" yaml:"median"`
}

type DenoisingConfig struct {
	StepSettings `yaml:",inline"`
	Methods      DenoisingMethods `json:"methods" yaml:"methods"`
}

type HistogramMethod struct {
	MethodSettings `yaml:",inline"`
	Bins           int `json:"bins,omitempty" yaml:"bins,omitempty"`
}

type NormalizationMethods struct {
	Intensity MethodSettings  `json:"intensity" yaml:"intensity"`
	ZScore    MethodSettings  `json:"zscore" yaml:"zscore"`
	Histogram HistogramMethod `json:"histogram" yaml:"histogram"`
}

type NormalizationConfig struct {
	StepSettings `yaml:",inline"`
	Methods      NormalizationMethods `json:"methods" yaml:"methods"`
}

type FilteringMethods struct {
	Gaussian GaussianMethod `json:"gaussian" yaml:"gaussian"`
	Median   MedianMethod   `json:"median" yaml:"median"`
	Otsu     MethodSettings `json:"otsu" yaml:"otsu"`
}

type FilteringConfig struct {
	StepSettings `yaml:",inline"`
	Methods      FilteringMethods `json:"methods" yaml:"methods"`
}

type FixedWidthMethod struct {
	MethodSettings `yaml:",inline"`
	BinWidth       float64 `json:"bin_width,omitempty" yaml:"bin_width,omitempty"`
}

type QuantileMethod struct {
	MethodSettings `yaml:",inline"`
	NumBins        int `json:"num_bins,omitempty" yaml:"num_bins,omitempty"`
}

type BinningMethods struct {
	FixedWidth FixedWidthMethod `json:"fixed_width" yaml:"fixed_width"`
	Quantile   QuantileMethod   `json:"quantile" yaml:"quantile"`
}

type BinningConfig struct {
	StepSettings `yaml:",inline"`
	Methods      BinningMethods `json:"methods" yaml:"methods"`
}

// Config is the full pipeline configuration. The utility entries
// (image_loading, image_conversion, image_saving, image_visualization) are
// consumed by their collaborators directly and are not registry stages.
type Config struct {
	ExperimentName string `json:"experiment_name,omitempty" yaml:"experiment_name,omitempty"`

	ImageLoading       LoadingConfig       `json:"image_loading" yaml:"image_loading"`
	ImageConversion    ConversionConfig    `json:"image_conversion" yaml:"image_conversion"`
	ImageSaving        SavingConfig        `json:"image_saving" yaml:"image_saving"`
	ImageVisualization VisualizationConfig `json:"image_visualization" yaml:"image_visualization"`

	QualityControl      QualityControlConfig `json:"quality_control" yaml:"quality_control"`
	BiasFieldCorrection BiasFieldConfig      `json:"bias_field_correction" yaml:"bias_field_correction"`
	Resampling          ResamplingConfig     `json:"resampling" yaml:"resampling"`
	Registration        RegistrationConfig   `json:"registration" yaml:"registration"`
	SkullStripping      SkullStrippingConfig `json:"skull_stripping" yaml:"skull_stripping"`
	Denoising           DenoisingConfig      `json:"denoising" yaml:"denoising"`
	Normalization       NormalizationConfig  `json:"normalization" yaml:"normalization"`
	Filtering           FilteringConfig      `json:"filtering" yaml:"filtering"`
	Binning             BinningConfig        `json:"binning" yaml:"binning"`
}

// Default returns a configuration with sensible parameter defaults and every
// stage disabled.
func Default() *Config {
	cfg := &Config{}
	cfg.ExperimentName = "preprocessing"
	cfg.ImageSaving.OutputDir = "processed"
	cfg.ImageVisualization.OutputFile = filepath.Join("figures", "comparison.png")
	cfg.BiasFieldCorrection.Methods.N4.ShrinkFactor = 4
	cfg.BiasFieldCorrection.Methods.N4.Iterations = 50
	cfg.BiasFieldCorrection.Methods.Homomorphic.Sigma = 8
	cfg.Resampling.Spacing = []float64{1, 1, 1}
	cfg.SkullStripping.Methods.Threshold.Value = 0.1
	cfg.SkullStripping.Methods.Morphological.Iterations = 2
	cfg.Denoising.Methods.Gaussian.Sigma = 1
	cfg.Denoising.Methods.Median.Radius = 1
	cfg.Normalization.Methods.Histogram.Bins = 256
	cfg.Filtering.Methods.Gaussian.Sigma = 1
	cfg.Filtering.Methods.Median.Radius = 1
	cfg.Binning.Methods.FixedWidth.BinWidth = 10
	cfg.Binning.Methods.Quantile.NumBins = 16
	return cfg
}

// Load reads and validates a configuration file. The format is selected by
// extension: .yaml/.yml parse as YAML, everything else as JSON. Any failure
// here is fatal to pipeline construction.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configuration file: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, cfg)
	default:
		err = json.Unmarshal(raw, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse configuration file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func Save(path string, cfg *Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, raw, 0o644)
}

// Validate checks structural soundness. Per-stage semantic problems (for
// example a methods stage with no method enabled) are deliberately left to
// stage run time so they are absorbed per stage instead of aborting a batch.
func (c *Config) Validate() error {
	if c.ImageLoading.FilePath == "" && len(c.ImageLoading.InputDir) == 0 {
		return fmt.Errorf("image_loading: either file_path or input_dir must be set")
	}
	if c.ImageSaving.OutputDir == "" {
		return fmt.Errorf("image_saving: output_dir must be set")
	}
	if c.Resampling.Enabled {
		if len(c.Resampling.Spacing) != 3 {
			return fmt.Errorf("resampling: spacing must have exactly 3 components")
		}
		for _, s := range c.Resampling.Spacing {
			if s <= 0 {
				return fmt.Errorf("resampling: spacing components must be positive, got %v", s)
			}
		}
		if c.Resampling.SavingFiles && c.Resampling.OutputDir == "" {
			return fmt.Errorf("resampling: saving_files requires output_dir")
		}
	}
	if c.ImageVisualization.Enabled && c.ImageVisualization.OutputFile == "" {
		return fmt.Errorf("image_visualization: output_file must be set")
	}
	return nil
}

// Step returns the enabled/display settings for a registry stage name.
func (c *Config) Step(name string) (StepSettings, bool) {
	switch name {
	case "quality_control":
		return c.QualityControl.StepSettings, true
	case "bias_field_correction":
		return c.BiasFieldCorrection.StepSettings, true
	case "resampling":
		return c.Resampling.StepSettings, true
	case "registration":
		return c.Registration.StepSettings, true
	case "skull_stripping":
		return c.SkullStripping.StepSettings, true
	case "denoising":
		return c.Denoising.StepSettings, true
	case "normalization":
		return c.Normalization.StepSettings, true
	case "filtering":
		return c.Filtering.StepSettings, true
	case "binning":
		return c.Binning.StepSettings, true
	}
	return StepSettings{}, false
}
