// Package pipeline orchestrates a preprocessing run: it enumerates the
// cohort, threads each image through the enabled stages in registry order,
// absorbs per-stage and per-image failures, and reports progress to an
// attached observer. Processing is single-threaded; one image, one stage at
// a time.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrsinham/voxelprep/internal/config"
	"github.com/mrsinham/voxelprep/internal/imageio"
	"github.com/mrsinham/voxelprep/internal/preprocess"
	"github.com/mrsinham/voxelprep/internal/render"
	"github.com/mrsinham/voxelprep/internal/volume"
	"github.com/rs/zerolog"
)

// Snapshot captures a stage's output for the comparison figure. Only stages
// with display_step true are snapshotted.
type Snapshot struct {
	Stage   string
	Substep int
	Slice   [][]float64
}

// StepOutcome is the result of running the enabled stages over one image.
type StepOutcome struct {
	Processed     []*volume.Volume
	Applied       []string
	Snapshots     []Snapshot
	Errors        []string
	TotalSubsteps int
}

// Pipeline owns the stage registry and the run collaborators.
type Pipeline struct {
	cfg       *config.Config
	registry  *preprocess.Registry
	source    *imageio.Source
	saver     *imageio.Saver
	converter *imageio.Converter
	reporter  Reporter
	log       zerolog.Logger

	status Status
}

// New builds a pipeline from a validated configuration. A nil reporter is
// replaced with a no-op one.
func New(cfg *config.Config, logger zerolog.Logger, reporter Reporter) *Pipeline {
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Pipeline{
		cfg:       cfg,
		registry:  preprocess.DefaultRegistry(),
		source:    imageio.NewSource(cfg),
		saver:     imageio.NewSaver(cfg),
		converter: imageio.NewConverter(cfg),
		reporter:  reporter,
		log:       logger,
	}
}

// Run processes the whole cohort. Only cohort enumeration can fail the run;
// every per-image and per-stage problem is logged and absorbed. The returned
// summary records what happened to each image.
func (p *Pipeline) Run() (*RunSummary, error) {
	paths, err := p.source.Enumerate()
	if err != nil {
		return nil, fmt.Errorf("enumerate images: %w", err)
	}

	summary := newRunSummary(p.cfg.ExperimentName, len(paths))
	p.status = Status{TotalImages: len(paths)}
	p.log.Info().Int("total_images", len(paths)).Str("experiment", p.cfg.ExperimentName).Msg("starting run")

	for i, path := range paths {
		p.status.CurrentImage = i + 1
		p.status.Progress = float64(i+1) / float64(len(paths))
		p.processImage(path, summary)
	}

	p.publish("completed", 0, 0)
	summary.finish()
	if err := summary.write(); err != nil {
		p.log.Warn().Err(err).Msg("write experiment log")
	}
	return summary, nil
}

func (p *Pipeline) processImage(path string, summary *RunSummary) {
	name := imageName(path)
	record := &ImageRecord{Path: path, Name: name}
	defer func() { summary.Images = append(summary.Images, *record) }()

	p.publish("loading "+name, 0, 0)
	img, err := p.source.Load(path)
	if err != nil {
		p.log.Error().Err(err).Str("image", name).Msg("load failed")
		p.reporter.Log(err.Error())
		record.Errors = append(record.Errors, err.Error())
		return
	}

	img = p.converter.Apply(img)
	initial := img.Clone()

	final, outcome := p.ApplySteps(img, path)
	record.AppliedSteps = outcome.Applied
	record.Errors = append(record.Errors, outcome.Errors...)

	p.publish("saving "+name, outcome.TotalSubsteps, outcome.TotalSubsteps)
	dest, err := p.saver.Save(final, path)
	if err != nil {
		p.log.Error().Err(err).Str("image", name).Msg("save failed")
		p.reporter.Log(err.Error())
		record.Errors = append(record.Errors, err.Error())
	} else {
		record.SavedTo = dest
	}

	if p.cfg.ImageVisualization.Enabled {
		p.publish("visualizing "+name, outcome.TotalSubsteps, outcome.TotalSubsteps)
		if err := p.visualize(name, initial, outcome); err != nil {
			p.log.Warn().Err(err).Str("image", name).Msg("visualization failed")
			record.Errors = append(record.Errors, err.Error())
		}
	}
}

// ApplySteps runs the enabled stages over the image in registry order. A
// failing stage is logged and skipped; the image carried into the next stage
// is whatever existed before the failure. The returned volume is the final
// carried image.
func (p *Pipeline) ApplySteps(img *volume.Volume, path string) (*volume.Volume, StepOutcome) {
	stages := p.registry.Enabled(p.cfg)

	outcome := StepOutcome{}
	for _, st := range stages {
		if settings, ok := p.cfg.Step(st.Name()); ok && settings.Display() {
			outcome.TotalSubsteps++
		}
	}

	current := img
	substep := 0
	for _, st := range stages {
		settings, _ := p.cfg.Step(st.Name())
		display := settings.Display()
		if display {
			substep++
		}
		p.publish("applying "+st.Name(), substep-1, outcome.TotalSubsteps)

		result, err := st.Run(current, path)
		if err != nil {
			p.log.Error().Err(err).Str("stage", st.Name()).Str("image", path).Msg("stage failed")
			p.reporter.Log(fmt.Sprintf("error in %s: %v", st.Name(), err))
			outcome.Errors = append(outcome.Errors, err.Error())
			continue
		}

		current = result
		outcome.Processed = append(outcome.Processed, result)
		outcome.Applied = append(outcome.Applied, st.Name())
		if display {
			outcome.Snapshots = append(outcome.Snapshots, Snapshot{
				Stage:   st.Name(),
				Substep: substep,
				Slice:   result.NormalizedSlice(),
			})
		}
		p.publish("applied "+st.Name(), substep, outcome.TotalSubsteps)
	}
	return current, outcome
}

// visualize writes the comparison figure: the initial image, the reference
// template when one is configured and readable, then one panel per snapshot.
func (p *Pipeline) visualize(name string, initial *volume.Volume, outcome StepOutcome) error {
	panels := []render.Panel{{Title: "initial", Slice: initial.NormalizedSlice()}}
	if ref := p.cfg.Registration.Reference; ref != "" {
		if _, err := os.Stat(ref); err == nil {
			if refImg, err := volume.ReadNIfTI(ref); err == nil {
				panels = append(panels, render.Panel{Title: "reference", Slice: refImg.NormalizedSlice()})
			}
		}
	}
	for _, snap := range outcome.Snapshots {
		panels = append(panels, render.Panel{Title: snap.Stage, Slice: snap.Slice})
	}
	return render.WriteComparison(figurePath(p.cfg.ImageVisualization.OutputFile, name), panels)
}

// figurePath derives a per-image figure path from the configured output file
// so one image's figure never overwrites another's.
func figurePath(outputFile, name string) string {
	dir := filepath.Dir(outputFile)
	base := filepath.Base(outputFile)
	return filepath.Join(dir, name+"_"+base)
}

func (p *Pipeline) publish(step string, substep, totalSubsteps int) {
	s := p.status
	s.CurrentStep = step
	s.CurrentSubstep = substep
	s.TotalSubsteps = totalSubsteps
	if totalSubsteps > 0 {
		s.SubstepProgress = float64(substep) / float64(totalSubsteps)
	}
	p.reporter.Publish(s)
}

// imageName derives the display name from the source path.
func imageName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, ".nii")
	return strings.TrimSuffix(base, filepath.Ext(base))
}
