package metaimage

import (
	"bufio"
	"compress/zlib"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"mrivolumestopng/internal/models"
	"mrivolumestopng/pkg/volume"
)

// ErrRead is returned when an acquisition file is missing or unreadable
var ErrRead = errors.New("cannot read acquisition")

// Reader loads volumes from MetaImage files and lays them out as frames
// taken along one axis
type Reader struct {
	axis volume.Axis
}

// NewReader creates a reader with the default frame layout: frame k is the
// file's first axis at k, rows run along the third axis and columns along
// the second
func NewReader() *Reader {
	return NewReaderAlong(volume.DefaultAxis)
}

// NewReaderAlong creates a reader that takes frames along axis
func NewReaderAlong(axis volume.Axis) *Reader {
	return &Reader{axis: axis}
}

// Read loads the volume stored at path as (depth, height, width)
func (r *Reader) Read(path string) (*models.Volume, error) {
	v, err := ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrRead, "%s: %v", path, err)
	}
	out, err := volume.Reslice(v, r.axis)
	if err != nil {
		return nil, errors.Wrapf(ErrRead, "%s: %v", path, err)
	}
	return out, nil
}

// ReadFile parses a .mha or .mhd file in storage order, with x varying
// fastest and z slowest
func ReadFile(path string) (*models.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	h, err := parseHeader(br)
	if err != nil {
		return nil, err
	}

	var data io.Reader = br
	if h.DataFile != LocalDataFile {
		raw, err := os.Open(filepath.Join(filepath.Dir(path), h.DataFile))
		if err != nil {
			return nil, errors.Wrap(err, "opening data file")
		}
		defer raw.Close()
		data = bufio.NewReader(raw)
	}

	return Decode(h, data)
}

// Decode reads the voxel payload described by h from r
func Decode(h *Header, r io.Reader) (*models.Volume, error) {
	if h.Compressed {
		if h.CompressedSize > 0 {
			r = io.LimitReader(r, h.CompressedSize)
		}
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "opening compressed data")
		}
		defer zr.Close()
		r = zr
	}

	size := h.ElementType.Size()
	buf := make([]byte, h.Voxels()*size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Wrapf(err, "reading %d voxels", h.Voxels())
	}

	w, ht, d := h.dims()
	v := models.NewVolume(w, ht, d)
	decodeElements(h.ElementType, h.ByteOrder(), buf, v.Data)

	if len(h.ElementSpacing) > 0 {
		v.VoxelSize.X = h.ElementSpacing[0]
	}
	if len(h.ElementSpacing) > 1 {
		v.VoxelSize.Y = h.ElementSpacing[1]
	}
	if len(h.ElementSpacing) > 2 {
		v.VoxelSize.Z = h.ElementSpacing[2]
	}
	return v, nil
}

func decodeElements(t ElementType, order binary.ByteOrder, buf []byte, out []float64) {
	size := t.Size()
	for i := range out {
		b := buf[i*size : (i+1)*size]
		switch t {
		case MetUChar:
			out[i] = float64(b[0])
		case MetChar:
			out[i] = float64(int8(b[0]))
		case MetUShort:
			out[i] = float64(order.Uint16(b))
		case MetShort:
			out[i] = float64(int16(order.Uint16(b)))
		case MetUInt, MetULong:
			out[i] = float64(order.Uint32(b))
		case MetInt, MetLong:
			out[i] = float64(int32(order.Uint32(b)))
		case MetULongLong:
			out[i] = float64(order.Uint64(b))
		case MetLongLong:
			out[i] = float64(int64(order.Uint64(b)))
		case MetFloat:
			out[i] = float64(math.Float32frombits(order.Uint32(b)))
		case MetDouble:
			out[i] = math.Float64frombits(order.Uint64(b))
		}
	}
}
