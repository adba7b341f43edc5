package config

import (
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// WriteSummary renders the per-stage configuration as a table, mirroring the
// stage order used by the pipeline.
func WriteSummary(w io.Writer, c *Config) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Stage", "Enabled", "Display", "Methods"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	rows := []struct {
		name     string
		settings StepSettings
		methods  []string
	}{
		{"quality_control", c.QualityControl.StepSettings, nil},
		{"bias_field_correction", c.BiasFieldCorrection.StepSettings, c.biasFieldMethods()},
		{"resampling", c.Resampling.StepSettings, c.resamplingMethods()},
		{"registration", c.Registration.StepSettings, c.registrationMethods()},
		{"skull_stripping", c.SkullStripping.StepSettings, c.skullStrippingMethods()},
		{"denoising", c.Denoising.StepSettings, c.denoisingMethods()},
		{"normalization", c.Normalization.StepSettings, c.normalizationMethods()},
		{"filtering", c.Filtering.StepSettings, c.filteringMethods()},
		{"binning", c.Binning.StepSettings, c.binningMethods()},
	}

	for _, row := range rows {
		table.Append([]string{
			row.name,
			yesNo(row.settings.Enabled),
			yesNo(row.settings.Display()),
			strings.Join(row.methods, ", "),
		})
	}
	table.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func appendIf(names []string, enabled bool, name string) []string {
	if enabled {
		return append(names, name)
	}
	return names
}

func (c *Config) biasFieldMethods() []string {
	var names []string
	names = appendIf(names, c.BiasFieldCorrection.Methods.N4.Enabled, "n4")
	names = appendIf(names, c.BiasFieldCorrection.Methods.Homomorphic.Enabled, "homomorphic")
	return names
}

func (c *Config) resamplingMethods() []string {
	var names []string
	names = appendIf(names, c.Resampling.Methods.Trilinear.Enabled, "trilinear")
	names = appendIf(names, c.Resampling.Methods.Nearest.Enabled, "nearest")
	return names
}

func (c *Config) registrationMethods() []string {
	var names []string
	names = appendIf(names, c.Registration.Methods.Rigid.Enabled, "rigid")
	names = appendIf(names, c.Registration.Methods.ResampleToReference.Enabled, "resample_to_reference")
	return names
}

func (c *Config) skullStrippingMethods() []string {
	var names []string
	names = appendIf(names, c.SkullStripping.Methods.Threshold.Enabled, "threshold")
	names = appendIf(names, c.SkullStripping.Methods.Morphological.Enabled, "morphological")
	names = appendIf(names, c.SkullStripping.Methods.Atlas.Enabled, "atlas")
	return names
}

func (c *Config) denoisingMethods() []string {
	var names []string
	names = appendIf(names, c.Denoising.Methods.Gaussian.Enabled, "gaussian")
	names = appendIf(names, c.Denoising.Methods.Median.Enabled, "median")
	return names
}

func (c *Config) normalizationMethods() []string {
	var names []string
	names = appendIf(names, c.Normalization.Methods.Intensity.Enabled, "intensity")
	names = appendIf(names, c.Normalization.Methods.ZScore.Enabled, "zscore")
	names = appendIf(names, c.Normalization.Methods.Histogram.Enabled, "histogram")
	return names
}

func (c *Config) filteringMethods() []string {
	var names []string
	names = appendIf(names, c.Filtering.Methods.Gaussian.Enabled, "gaussian")
	names = appendIf(names, c.Filtering.Methods.Median.Enabled, "median")
	names = appendIf(names, c.Filtering.Methods.Otsu.Enabled, "otsu")
	return names
}

func (c *Config) binningMethods() []string {
	var names []string
	names = appendIf(names, c.Binning.Methods.FixedWidth.Enabled, "fixed_width")
	names = appendIf(names, c.Binning.Methods.Quantile.Enabled, "quantile")
	return names
}
