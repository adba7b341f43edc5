package imageio

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/mrsinham/voxelprep/internal/config"
	"github.com/mrsinham/voxelprep/internal/volume"
)

func writeTestNIfTI(t *testing.T, path string) *volume.Volume {
	t.Helper()
	img := volume.New(4, 4, 4)
	for i := range img.Data {
		img.Data[i] = float64(i)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := volume.WriteNIfTI(path, img); err != nil {
		t.Fatal(err)
	}
	return img
}

func TestEnumerateCSV(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "cohort.csv")
	content := "subject,image_path,site\n" +
		"s1,/data/s1.nii.gz,a\n" +
		"s2,/data/s2.dcm,b\n" +
		"s3,,c\n" +
		"s4,/data/s4.nii,a\n"
	if err := os.WriteFile(list, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.ImageLoading.FilePath = list
	got, err := NewSource(cfg).Enumerate()
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	want := []string{"/data/s1.nii.gz", "/data/s2.dcm", "/data/s4.nii"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("paths = %v, want %v", got, want)
	}
}

func TestEnumerateCSVMissingColumn(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "cohort.csv")
	if err := os.WriteFile(list, []byte("subject,path\ns1,/data/s1.nii\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.ImageLoading.FilePath = list
	if _, err := NewSource(cfg).Enumerate(); err == nil {
		t.Error("expected failure for CSV without image_path column")
	}
}

func TestEnumerateDirectories(t *testing.T) {
	dir := t.TempDir()
	writeTestNIfTI(t, filepath.Join(dir, "b.nii.gz"))
	writeTestNIfTI(t, filepath.Join(dir, "a.nii"))
	writeTestNIfTI(t, filepath.Join(dir, "nested", "c.nii.gz"))
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.ImageLoading.InputDir = []string{dir}

	t.Run("flat", func(t *testing.T) {
		got, err := NewSource(cfg).Enumerate()
		if err != nil {
			t.Fatalf("Enumerate: %v", err)
		}
		want := []string{filepath.Join(dir, "a.nii"), filepath.Join(dir, "b.nii.gz")}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("paths = %v, want %v", got, want)
		}
	})

	t.Run("recursive", func(t *testing.T) {
		rc := config.Default()
		rc.ImageLoading.InputDir = []string{dir}
		rc.ImageLoading.Recursive = true
		got, err := NewSource(rc).Enumerate()
		if err != nil {
			t.Fatalf("Enumerate: %v", err)
		}
		if len(got) != 3 {
			t.Errorf("recursive scan found %d paths, want 3: %v", len(got), got)
		}
	})

	t.Run("missing root", func(t *testing.T) {
		mc := config.Default()
		mc.ImageLoading.InputDir = []string{filepath.Join(dir, "absent")}
		if _, err := NewSource(mc).Enumerate(); err == nil {
			t.Error("expected failure for missing input directory")
		}
	})
}

func TestLoadNIfTI(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.nii.gz")
	want := writeTestNIfTI(t, path)

	cfg := config.Default()
	cfg.ImageLoading.InputDir = []string{dir}
	got, err := NewSource(cfg).Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Nx != want.Nx || got.Ny != want.Ny || got.Nz != want.Nz {
		t.Errorf("dims = %dx%dx%d, want %dx%dx%d", got.Nx, got.Ny, got.Nz, want.Nx, want.Ny, want.Nz)
	}
}

func TestLoadFailuresAreLoadErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "broken.dcm")
	if err := os.WriteFile(garbage, []byte("not a dicom file"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.ImageLoading.InputDir = []string{dir}
	src := NewSource(cfg)

	tests := []struct {
		name string
		path string
	}{
		{"garbage dicom", garbage},
		{"missing nifti", filepath.Join(dir, "absent.nii.gz")},
		{"unsupported format", filepath.Join(dir, "scan.png")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := src.Load(tt.path)
			var le *LoadError
			if !errors.As(err, &le) {
				t.Fatalf("error = %v (%T), want LoadError", err, err)
			}
			if le.Path != tt.path {
				t.Errorf("LoadError.Path = %q, want %q", le.Path, tt.path)
			}
		})
	}
}
