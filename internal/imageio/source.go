// Package imageio enumerates and decodes the input cohort and writes
// processed results. Decoding covers DICOM files and the NIfTI-1 formats the
// volume package handles natively.
package imageio

import (
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/mrsinham/voxelprep/internal/config"
	"github.com/mrsinham/voxelprep/internal/volume"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// LoadError reports a single image that could not be decoded. The
// orchestrator logs it and moves to the next image.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Source resolves the configured cohort into an ordered list of image paths
// and decodes them one at a time.
type Source struct {
	cfg config.LoadingConfig
}

func NewSource(cfg *config.Config) *Source {
	return &Source{cfg: cfg.ImageLoading}
}

// Enumerate returns the ordered cohort paths. A CSV file_path takes
// precedence over input_dir; CSV rows keep their file order, directory scans
// are sorted so runs are reproducible.
func (s *Source) Enumerate() ([]string, error) {
	if s.cfg.FilePath != "" {
		return s.enumerateCSV()
	}
	return s.enumerateDirs()
}

func (s *Source) enumerateCSV() ([]string, error) {
	f, err := os.Open(s.cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("open image list: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read image list header: %w", err)
	}
	col := -1
	for i, name := range header {
		if strings.TrimSpace(name) == "image_path" {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("image list %s has no image_path column", s.cfg.FilePath)
	}

	var paths []string
	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		if col >= len(record) {
			continue
		}
		if p := strings.TrimSpace(record[col]); p != "" {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

func (s *Source) enumerateDirs() ([]string, error) {
	var paths []string
	for _, root := range s.cfg.InputDir {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("input directory %s: %w", root, err)
		}
		if !info.IsDir() {
			if supportedImage(root) {
				paths = append(paths, root)
			}
			continue
		}

		if s.cfg.Recursive {
			err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && supportedImage(p) {
					paths = append(paths, p)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("scan %s: %w", root, err)
			}
			continue
		}

		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", root, err)
		}
		for _, e := range entries {
			if p := filepath.Join(root, e.Name()); !e.IsDir() && supportedImage(p) {
				paths = append(paths, p)
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func supportedImage(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".dcm") ||
		strings.HasSuffix(lower, ".nii") ||
		strings.HasSuffix(lower, ".nii.gz")
}

// Load decodes one image, dispatching on the file extension.
func (s *Source) Load(path string) (*volume.Volume, error) {
	var img *volume.Volume
	var err error
	switch {
	case strings.HasSuffix(strings.ToLower(path), ".dcm"):
		img, err = loadDICOM(path)
	case volume.IsNIfTI(path):
		img, err = volume.ReadNIfTI(path)
	default:
		err = fmt.Errorf("unsupported image format")
	}
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return img, nil
}

// loadDICOM stacks the file's frames along z. Intensities come from the
// decoded grayscale image, spacing from PixelSpacing and SliceThickness with
// unit fallbacks.
func loadDICOM(path string) (*volume.Volume, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("parse dicom: %w", err)
	}
	pixelElem, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("no pixel data: %w", err)
	}
	info := dicom.MustGetPixelDataInfo(pixelElem.Value)
	if len(info.Frames) == 0 {
		return nil, fmt.Errorf("pixel data has no frames")
	}

	first, err := info.Frames[0].GetImage()
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	bounds := first.Bounds()
	nx, ny := bounds.Dx(), bounds.Dy()

	out := volume.New(nx, ny, len(info.Frames))
	for z, fr := range info.Frames {
		img, err := fr.GetImage()
		if err != nil {
			return nil, fmt.Errorf("decode frame %d: %w", z, err)
		}
		if b := img.Bounds(); b.Dx() != nx || b.Dy() != ny {
			return nil, fmt.Errorf("frame %d is %dx%d, expected %dx%d", z, b.Dx(), b.Dy(), nx, ny)
		}
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				gray, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				out.Set(x, y, z, float64(gray))
			}
		}
	}

	out.Spacing = dicomSpacing(ds)
	for i := 0; i < 3; i++ {
		out.Affine[i][i] = out.Spacing[i]
	}
	return out, nil
}

func dicomSpacing(ds dicom.Dataset) [3]float64 {
	spacing := [3]float64{1, 1, 1}
	if elem, err := ds.FindElementByTag(tag.PixelSpacing); err == nil {
		if vals, ok := elem.Value.GetValue().([]string); ok && len(vals) == 2 {
			// PixelSpacing is row spacing then column spacing.
			if v, err := strconv.ParseFloat(strings.TrimSpace(vals[0]), 64); err == nil && v > 0 {
				spacing[1] = v
			}
			if v, err := strconv.ParseFloat(strings.TrimSpace(vals[1]), 64); err == nil && v > 0 {
				spacing[0] = v
			}
		}
	}
	if elem, err := ds.FindElementByTag(tag.SliceThickness); err == nil {
		if vals, ok := elem.Value.GetValue().([]string); ok && len(vals) == 1 {
			if v, err := strconv.ParseFloat(strings.TrimSpace(vals[0]), 64); err == nil && v > 0 {
				spacing[2] = v
			}
		}
	}
	return spacing
}
