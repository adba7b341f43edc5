package imageio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrsinham/voxelprep/internal/config"
	"github.com/mrsinham/voxelprep/internal/volume"
)

// Saver writes processed images under output_dir, mirroring the path
// structure relative to the configured input_dir.
type Saver struct {
	cfg config.SavingConfig
}

func NewSaver(cfg *config.Config) *Saver {
	return &Saver{cfg: cfg.ImageSaving}
}

// Save writes the image as compressed NIfTI and returns the written path.
// The source file's relative location is preserved and its extension is
// rewritten to _pp.nii.gz.
func (s *Saver) Save(img *volume.Volume, srcPath string) (string, error) {
	rel := srcPath
	if s.cfg.InputDir != "" {
		if r, err := filepath.Rel(s.cfg.InputDir, srcPath); err == nil && !strings.HasPrefix(r, "..") {
			rel = r
		} else {
			rel = filepath.Base(srcPath)
		}
	} else {
		rel = filepath.Base(srcPath)
	}

	dest := filepath.Join(s.cfg.OutputDir, filepath.Dir(rel), imageStem(rel)+"_pp.nii.gz")
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	if err := volume.WriteNIfTI(dest, img); err != nil {
		return "", err
	}
	return dest, nil
}

// imageStem strips the image extension chain (.nii.gz, .nii, .dcm) from the
// base name.
func imageStem(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, ".nii")
	return strings.TrimSuffix(base, filepath.Ext(base))
}
