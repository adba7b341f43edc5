package volume

import (
	"os"
	"path/filepath"
	"testing"
)

func makeVolume() *Volume {
	v := New(4, 3, 2)
	for i := range v.Data {
		v.Data[i] = float64(i) * 0.5
	}
	v.Spacing = [3]float64{1, 2, 3}
	v.Affine[0][3] = -10
	return v
}

func TestNIfTIRoundTrip(t *testing.T) {
	for _, name := range []string{"vol.nii", "vol.nii.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			want := makeVolume()
			if err := WriteNIfTI(path, want); err != nil {
				t.Fatalf("WriteNIfTI: %v", err)
			}
			got, err := ReadNIfTI(path)
			if err != nil {
				t.Fatalf("ReadNIfTI: %v", err)
			}
			if got.Nx != want.Nx || got.Ny != want.Ny || got.Nz != want.Nz {
				t.Fatalf("dims = %dx%dx%d, want %dx%dx%d",
					got.Nx, got.Ny, got.Nz, want.Nx, want.Ny, want.Nz)
			}
			for i := range want.Data {
				if got.Data[i] != want.Data[i] {
					t.Fatalf("voxel %d = %v, want %v", i, got.Data[i], want.Data[i])
				}
			}
			if got.Spacing != want.Spacing {
				t.Errorf("spacing = %v, want %v", got.Spacing, want.Spacing)
			}
			if got.Affine[0][3] != -10 {
				t.Errorf("affine translation lost: %v", got.Affine[0][3])
			}
		})
	}
}

func TestReadNIfTIRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.nii")
	if err := os.WriteFile(path, []byte("definitely not a nifti file"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadNIfTI(path); err == nil {
		t.Fatal("expected error for non-nifti payload")
	}
}

func TestIsNIfTI(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"a.nii", true},
		{"a.NII.GZ", true},
		{"a.dcm", false},
		{"a.txt", false},
	}
	for _, tt := range tests {
		if got := IsNIfTI(tt.path); got != tt.want {
			t.Errorf("IsNIfTI(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
