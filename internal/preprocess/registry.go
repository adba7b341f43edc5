package preprocess

import (
	"github.com/mrsinham/voxelprep/internal/config"
)

// Constructor builds a stage instance from the pipeline configuration.
type Constructor func(cfg *config.Config) Stage

type entry struct {
	name  string
	build Constructor
}

// Registry is an ordered mapping from stage name to constructor. Iteration
// order is the canonical processing order, fixed at build time and
// independent of configuration key order.
type Registry struct {
	entries []entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a stage to the processing order. Registration happens at
// pipeline-build time only; the registry is not mutated mid-run.
func (r *Registry) Register(name string, build Constructor) {
	r.entries = append(r.entries, entry{name: name, build: build})
}

// Names returns the stage names in processing order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.name
	}
	return names
}

// Enabled instantiates the stages whose configuration entry is enabled, in
// registration order.
func (r *Registry) Enabled(cfg *config.Config) []Stage {
	var stages []Stage
	for _, e := range r.entries {
		step, ok := cfg.Step(e.name)
		if !ok || !step.Enabled {
			continue
		}
		stages = append(stages, e.build(cfg))
	}
	return stages
}

// DefaultRegistry declares the fixed universe and order of preprocessing
// stages. The order is load-bearing: registration assumes resampling already
// ran, skull stripping assumes registration, and the intensity stages come
// after the spatial ones.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("quality_control", NewQualityControl)
	r.Register("bias_field_correction", NewBiasFieldCorrection)
	r.Register("resampling", NewResampling)
	r.Register("registration", NewRegistration)
	r.Register("skull_stripping", NewSkullStripping)
	r.Register("denoising", NewDenoising)
	r.Register("normalization", NewNormalization)
	r.Register("filtering", NewFiltering)
	r.Register("binning", NewBinning)
	return r
}
