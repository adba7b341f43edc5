package volume

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// NIfTI-1 single-file format: 348-byte header, 4 bytes of extension flags,
// voxel data at vox_offset. See https://nifti.nimh.nih.gov/nifti-1.

const (
	niftiHeaderSize = 348

	dtUint8   = 2
	dtInt16   = 4
	dtInt32   = 8
	dtFloat32 = 16
	dtFloat64 = 64
)

type nifti1Header struct {
	SizeofHdr      int32
	DataTypeUnused [10]byte
	DBName         [18]byte
	Extents        int32
	SessionError   int16
	Regular        byte
	DimInfo        byte
	Dim            [8]int16
	IntentP1       float32
	IntentP2       float32
	IntentP3       float32
	IntentCode     int16
	Datatype       int16
	Bitpix         int16
	SliceStart     int16
	Pixdim         [8]float32
	VoxOffset      float32
	SclSlope       float32
	SclInter       float32
	SliceEnd       int16
	SliceCode      byte
	XyztUnits      byte
	CalMax         float32
	CalMin         float32
	SliceDuration  float32
	Toffset        float32
	Glmax          int32
	Glmin          int32
	Descrip        [80]byte
	AuxFile        [24]byte
	QformCode      int16
	SformCode      int16
	QuaternB       float32
	QuaternC       float32
	QuaternD       float32
	QoffsetX       float32
	QoffsetY       float32
	QoffsetZ       float32
	SrowX          [4]float32
	SrowY          [4]float32
	SrowZ          [4]float32
	IntentName     [16]byte
	Magic          [4]byte
}

// IsNIfTI reports whether path carries a NIfTI file extension.
func IsNIfTI(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".nii") || strings.HasSuffix(lower, ".nii.gz") || strings.HasSuffix(lower, ".gz")
}

// ReadNIfTI decodes a .nii or .nii.gz file into a Volume. Scaling
// (scl_slope/scl_inter) is applied to the voxel values.
func ReadNIfTI(path string) (*Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream of %s: %w", path, err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}
	return decodeNIfTI(r, path)
}

func decodeNIfTI(r io.Reader, path string) (*Volume, error) {
	raw := make([]byte, niftiHeaderSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("read nifti header of %s: %w", path, err)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if binary.LittleEndian.Uint32(raw[0:4]) != niftiHeaderSize {
		if binary.BigEndian.Uint32(raw[0:4]) != niftiHeaderSize {
			return nil, fmt.Errorf("%s: not a nifti-1 file", path)
		}
		order = binary.BigEndian
	}

	var hdr nifti1Header
	if _, err := binary.Decode(raw, order, &hdr); err != nil {
		return nil, fmt.Errorf("decode nifti header of %s: %w", path, err)
	}
	if hdr.Dim[0] < 1 || hdr.Dim[0] > 7 {
		return nil, fmt.Errorf("%s: implausible dim[0]=%d", path, hdr.Dim[0])
	}

	nx, ny, nz := int(hdr.Dim[1]), 1, 1
	if hdr.Dim[0] >= 2 {
		ny = int(hdr.Dim[2])
	}
	if hdr.Dim[0] >= 3 {
		nz = int(hdr.Dim[3])
	}
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return nil, fmt.Errorf("%s: invalid dimensions %dx%dx%d", path, nx, ny, nz)
	}

	// Skip from end of header to vox_offset.
	skip := int64(hdr.VoxOffset) - niftiHeaderSize
	if skip < 0 {
		return nil, fmt.Errorf("%s: vox_offset %v before end of header", path, hdr.VoxOffset)
	}
	if _, err := io.CopyN(io.Discard, r, skip); err != nil {
		return nil, fmt.Errorf("seek voxel data of %s: %w", path, err)
	}

	n := nx * ny * nz
	var bytesPerVoxel int
	switch hdr.Datatype {
	case dtUint8:
		bytesPerVoxel = 1
	case dtInt16:
		bytesPerVoxel = 2
	case dtInt32, dtFloat32:
		bytesPerVoxel = 4
	case dtFloat64:
		bytesPerVoxel = 8
	default:
		return nil, fmt.Errorf("%s: unsupported nifti datatype %d", path, hdr.Datatype)
	}

	buf := make([]byte, n*bytesPerVoxel)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read voxel data of %s: %w", path, err)
	}

	slope := float64(hdr.SclSlope)
	inter := float64(hdr.SclInter)
	if slope == 0 {
		slope, inter = 1, 0
	}

	v := New(nx, ny, nz)
	for i := 0; i < n; i++ {
		var val float64
		switch hdr.Datatype {
		case dtUint8:
			val = float64(buf[i])
		case dtInt16:
			val = float64(int16(order.Uint16(buf[i*2:])))
		case dtInt32:
			val = float64(int32(order.Uint32(buf[i*4:])))
		case dtFloat32:
			val = float64(math.Float32frombits(order.Uint32(buf[i*4:])))
		case dtFloat64:
			val = math.Float64frombits(order.Uint64(buf[i*8:]))
		}
		v.Data[i] = val*slope + inter
	}

	for i := 0; i < 3; i++ {
		p := float64(hdr.Pixdim[i+1])
		if p <= 0 {
			p = 1
		}
		v.Spacing[i] = p
	}

	if hdr.SformCode > 0 {
		rows := [3][4]float32{hdr.SrowX, hdr.SrowY, hdr.SrowZ}
		for i := 0; i < 3; i++ {
			for j := 0; j < 4; j++ {
				v.Affine[i][j] = float64(rows[i][j])
			}
		}
		v.Affine[3] = [4]float64{0, 0, 0, 1}
	} else {
		v.Affine = [4][4]float64{}
		for i := 0; i < 3; i++ {
			v.Affine[i][i] = v.Spacing[i]
		}
		v.Affine[3][3] = 1
	}

	return v, nil
}

// WriteNIfTI encodes the volume as a single-file NIfTI-1 image with float32
// voxels. A .gz suffix selects gzip compression. Parent directories must
// already exist.
func WriteNIfTI(path string, v *Volume) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}

	if err := encodeNIfTI(w, v); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("write %s: %w", filepath.Base(path), err)
		}
	}
	return f.Close()
}

func encodeNIfTI(w io.Writer, v *Volume) error {
	hdr := nifti1Header{
		SizeofHdr: niftiHeaderSize,
		Regular:   'r',
		Datatype:  dtFloat32,
		Bitpix:    32,
		VoxOffset: 352,
		SclSlope:  1,
		SformCode: 1,
		QformCode: 0,
		Magic:     [4]byte{'n', '+', '1', 0},
	}
	hdr.Dim[0] = 3
	hdr.Dim[1] = int16(v.Nx)
	hdr.Dim[2] = int16(v.Ny)
	hdr.Dim[3] = int16(v.Nz)
	for i := 4; i < 8; i++ {
		hdr.Dim[i] = 1
	}
	hdr.Pixdim[0] = 1
	for i := 0; i < 3; i++ {
		hdr.Pixdim[i+1] = float32(v.Spacing[i])
	}
	for j := 0; j < 4; j++ {
		hdr.SrowX[j] = float32(v.Affine[0][j])
		hdr.SrowY[j] = float32(v.Affine[1][j])
		hdr.SrowZ[j] = float32(v.Affine[2][j])
	}
	copy(hdr.Descrip[:], "voxelprep")

	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	// Four zero bytes: no header extensions.
	if _, err := w.Write([]byte{0, 0, 0, 0}); err != nil {
		return err
	}

	buf := make([]byte, len(v.Data)*4)
	for i, d := range v.Data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(d)))
	}
	_, err := w.Write(buf)
	return err
}
