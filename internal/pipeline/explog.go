package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const experimentLogDir = "experiment_logs"

// ImageRecord is the per-image entry of the run summary.
type ImageRecord struct {
	Path         string   `json:"path"`
	Name         string   `json:"name"`
	AppliedSteps []string `json:"applied_steps"`
	Errors       []string `json:"errors,omitempty"`
	SavedTo      string   `json:"saved_to,omitempty"`
}

// RunSummary is the experiment log written at the end of a run.
type RunSummary struct {
	Experiment  string        `json:"experiment"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	TotalImages int           `json:"total_images"`
	Images      []ImageRecord `json:"images"`
}

func newRunSummary(experiment string, totalImages int) *RunSummary {
	return &RunSummary{
		Experiment:  experiment,
		StartedAt:   time.Now(),
		TotalImages: totalImages,
	}
}

func (s *RunSummary) finish() {
	s.FinishedAt = time.Now()
}

// Failures counts images that recorded at least one error.
func (s *RunSummary) Failures() int {
	n := 0
	for _, img := range s.Images {
		if len(img.Errors) > 0 {
			n++
		}
	}
	return n
}

// write stores the summary as experiment_logs/experiment_<timestamp>_<name>.json.
func (s *RunSummary) write() error {
	if err := os.MkdirAll(experimentLogDir, 0o755); err != nil {
		return fmt.Errorf("create experiment log directory: %w", err)
	}
	name := strings.ReplaceAll(s.Experiment, " ", "_")
	path := filepath.Join(experimentLogDir,
		fmt.Sprintf("experiment_%s_%s.json", s.StartedAt.Format("20060102_150405"), name))

	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode experiment log: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}
