package pipeline

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/mrsinham/voxelprep/internal/config"
	"github.com/mrsinham/voxelprep/internal/volume"
	"github.com/rs/zerolog"
)

func testVolume(n int) *volume.Volume {
	v := volume.New(n, n, n)
	for i := range v.Data {
		v.Data[i] = float64(i % 17)
	}
	return v
}

func writeNIfTI(t *testing.T, path string, img *volume.Volume) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := volume.WriteNIfTI(path, img); err != nil {
		t.Fatal(err)
	}
}

// threeStageConfig enables resampling, registration and denoising. The
// registration reference is written under dir when it is non-empty, so an
// empty dir yields a deterministic registration failure.
func threeStageConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.ImageLoading.InputDir = []string{"unused"}
	cfg.Resampling.Enabled = true
	cfg.Resampling.Methods.Trilinear.Enabled = true
	cfg.Registration.Enabled = true
	cfg.Registration.Methods.ResampleToReference.Enabled = true
	cfg.Denoising.Enabled = true
	cfg.Denoising.Methods.Gaussian.Enabled = true

	if dir == "" {
		cfg.Registration.Reference = filepath.Join(t.TempDir(), "absent_reference.nii.gz")
		return cfg
	}
	ref := filepath.Join(dir, "reference.nii.gz")
	cfg.Registration.Reference = ref
	writeNIfTI(t, ref, testVolume(6))
	return cfg
}

func TestApplyStepsOrderAndSnapshots(t *testing.T) {
	cfg := threeStageConfig(t, t.TempDir())
	p := New(cfg, zerolog.Nop(), nil)

	_, outcome := p.ApplySteps(testVolume(6), "img.nii")
	want := []string{"resampling", "registration", "denoising"}
	if !reflect.DeepEqual(outcome.Applied, want) {
		t.Errorf("applied = %v, want %v", outcome.Applied, want)
	}
	if outcome.TotalSubsteps != 3 {
		t.Errorf("total substeps = %d, want 3", outcome.TotalSubsteps)
	}
	if len(outcome.Snapshots) != 3 {
		t.Errorf("snapshots = %d, want 3", len(outcome.Snapshots))
	}
	if len(outcome.Errors) != 0 {
		t.Errorf("unexpected errors: %v", outcome.Errors)
	}
}

func TestApplyStepsFailedStageIsSkipped(t *testing.T) {
	// No reference file on disk, so registration fails deterministically.
	cfg := threeStageConfig(t, "")
	rep := &BufferReporter{}
	p := New(cfg, zerolog.Nop(), rep)

	_, outcome := p.ApplySteps(testVolume(6), "img.nii")
	want := []string{"resampling", "denoising"}
	if !reflect.DeepEqual(outcome.Applied, want) {
		t.Errorf("applied = %v, want %v", outcome.Applied, want)
	}
	if len(outcome.Snapshots) != 2 {
		t.Errorf("snapshots = %d, want 2", len(outcome.Snapshots))
	}
	if len(outcome.Errors) != 1 || !strings.Contains(outcome.Errors[0], "registration") {
		t.Errorf("errors = %v, want one mentioning registration", outcome.Errors)
	}
	found := false
	for _, line := range rep.Lines() {
		if strings.Contains(line, "registration") {
			found = true
		}
	}
	if !found {
		t.Error("reporter log lines never mention the failed stage")
	}
}

func TestApplyStepsFailureDiscardsTransformation(t *testing.T) {
	cfg := threeStageConfig(t, "")
	p := New(cfg, zerolog.Nop(), nil)

	_, outcome := p.ApplySteps(testVolume(6), "img.nii")
	if len(outcome.Processed) != 2 {
		t.Fatalf("processed = %d results, want 2", len(outcome.Processed))
	}
	// Denoising must have consumed the resampling output, not some partial
	// registration result: resampling at identity spacing preserves the
	// 6x6x6 grid, while the reference grid (never loaded here) would not.
	if got := outcome.Processed[1]; got.Nx != 6 || got.Ny != 6 || got.Nz != 6 {
		t.Errorf("post-failure stage input had wrong geometry: %dx%dx%d", got.Nx, got.Ny, got.Nz)
	}
}

func TestApplyStepsGating(t *testing.T) {
	cfg := threeStageConfig(t, t.TempDir())
	off := false
	cfg.Denoising.DisplayStep = &off

	p := New(cfg, zerolog.Nop(), nil)
	_, outcome := p.ApplySteps(testVolume(6), "img.nii")

	want := []string{"resampling", "registration", "denoising"}
	if !reflect.DeepEqual(outcome.Applied, want) {
		t.Errorf("applied = %v, want %v", outcome.Applied, want)
	}
	if outcome.TotalSubsteps != 2 {
		t.Errorf("total substeps = %d, want 2 with denoising display off", outcome.TotalSubsteps)
	}
	if len(outcome.Snapshots) != 2 {
		t.Fatalf("snapshots = %d, want 2", len(outcome.Snapshots))
	}
	for _, snap := range outcome.Snapshots {
		if snap.Stage == "denoising" {
			t.Error("display-off stage must not be snapshotted")
		}
	}
}

func TestApplyStepsNoOpConfiguration(t *testing.T) {
	cfg := config.Default()
	cfg.ImageLoading.InputDir = []string{"unused"}
	p := New(cfg, zerolog.Nop(), nil)

	img := testVolume(4)
	final, outcome := p.ApplySteps(img, "img.nii")
	if len(outcome.Applied) != 0 {
		t.Errorf("applied = %v, want none", outcome.Applied)
	}
	if final != img {
		t.Error("no-op configuration must return the input image itself")
	}
}

func TestSubstepProgressIsExact(t *testing.T) {
	cfg := threeStageConfig(t, t.TempDir())
	rep := &BufferReporter{}
	p := New(cfg, zerolog.Nop(), rep)
	p.ApplySteps(testVolume(6), "img.nii")

	seen := 0
	for _, s := range rep.Statuses() {
		if !strings.HasPrefix(s.CurrentStep, "applied ") {
			continue
		}
		seen++
		want := float64(seen) / 3
		if s.CurrentSubstep != seen || s.SubstepProgress != want {
			t.Errorf("substep %d: progress = %v (counter %d), want exactly %v",
				seen, s.SubstepProgress, s.CurrentSubstep, want)
		}
	}
	if seen != 3 {
		t.Errorf("saw %d substep completions, want 3", seen)
	}
}

func TestRunSkipsUnloadableImage(t *testing.T) {
	t.Chdir(t.TempDir())

	in := t.TempDir()
	out := t.TempDir()
	if err := os.WriteFile(filepath.Join(in, "a_broken.dcm"), []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeNIfTI(t, filepath.Join(in, "b_good.nii.gz"), testVolume(5))

	cfg := config.Default()
	cfg.ImageLoading.InputDir = []string{in}
	cfg.ImageSaving.InputDir = in
	cfg.ImageSaving.OutputDir = out
	cfg.Denoising.Enabled = true
	cfg.Denoising.Methods.Median.Enabled = true

	rep := &BufferReporter{}
	summary, err := New(cfg, zerolog.Nop(), rep).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.TotalImages != 2 {
		t.Errorf("total images = %d, want 2", summary.TotalImages)
	}
	if len(summary.Images) != 2 {
		t.Fatalf("records = %d, want 2", len(summary.Images))
	}
	if len(summary.Images[0].Errors) == 0 {
		t.Error("broken image recorded no error")
	}
	if summary.Images[0].SavedTo != "" {
		t.Error("broken image should not have been saved")
	}
	second := summary.Images[1]
	if len(second.Errors) != 0 {
		t.Errorf("good image recorded errors: %v", second.Errors)
	}
	if !reflect.DeepEqual(second.AppliedSteps, []string{"denoising"}) {
		t.Errorf("good image applied = %v, want [denoising]", second.AppliedSteps)
	}
	if second.SavedTo == "" {
		t.Fatal("good image was not saved")
	}
	if _, err := os.Stat(second.SavedTo); err != nil {
		t.Errorf("saved output missing: %v", err)
	}
}

func TestRunWritesVisualization(t *testing.T) {
	t.Chdir(t.TempDir())

	in := t.TempDir()
	out := t.TempDir()
	writeNIfTI(t, filepath.Join(in, "subj.nii.gz"), testVolume(5))

	figDir := t.TempDir()
	cfg := config.Default()
	cfg.ImageLoading.InputDir = []string{in}
	cfg.ImageSaving.InputDir = in
	cfg.ImageSaving.OutputDir = out
	cfg.ImageVisualization.Enabled = true
	cfg.ImageVisualization.OutputFile = filepath.Join(figDir, "comparison.png")
	cfg.Normalization.Enabled = true
	cfg.Normalization.Methods.Intensity.Enabled = true

	if _, err := New(cfg, zerolog.Nop(), nil).Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(figDir, "subj_comparison.png")); err != nil {
		t.Errorf("figure missing: %v", err)
	}
}

func TestRunEnumerationFailureIsFatal(t *testing.T) {
	cfg := config.Default()
	cfg.ImageLoading.InputDir = []string{filepath.Join(t.TempDir(), "absent")}
	if _, err := New(cfg, zerolog.Nop(), nil).Run(); err == nil {
		t.Error("expected enumeration failure to fail the run")
	}
}

func TestOverallProgressFraction(t *testing.T) {
	t.Chdir(t.TempDir())

	in := t.TempDir()
	writeNIfTI(t, filepath.Join(in, "a.nii.gz"), testVolume(4))
	writeNIfTI(t, filepath.Join(in, "b.nii.gz"), testVolume(4))

	cfg := config.Default()
	cfg.ImageLoading.InputDir = []string{in}
	cfg.ImageSaving.OutputDir = t.TempDir()

	rep := &BufferReporter{}
	if _, err := New(cfg, zerolog.Nop(), rep).Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, s := range rep.Statuses() {
		if s.CurrentImage == 0 {
			continue
		}
		if want := float64(s.CurrentImage) / 2; math.Abs(s.Progress-want) > 0 {
			t.Errorf("image %d: progress = %v, want exactly %v", s.CurrentImage, s.Progress, want)
		}
	}
}
