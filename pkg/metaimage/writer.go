package metaimage

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"

	"mrivolumestopng/internal/models"
)

// WriteOptions controls how a volume is encoded
type WriteOptions struct {
	ElementType ElementType
	MSB         bool
	Compressed  bool
}

// Encode writes v as an inline (.mha) MetaImage
func Encode(w io.Writer, v *models.Volume, opts WriteOptions) error {
	if opts.ElementType == "" {
		opts.ElementType = MetFloat
	}
	size := opts.ElementType.Size()
	if size == 0 {
		return errors.Errorf("unsupported ElementType %q", opts.ElementType)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if opts.MSB {
		order = binary.BigEndian
	}

	payload := make([]byte, len(v.Data)*size)
	for i, val := range v.Data {
		encodeElement(opts.ElementType, order, payload[i*size:(i+1)*size], val)
	}

	if opts.Compressed {
		var zbuf bytes.Buffer
		zw := zlib.NewWriter(&zbuf)
		if _, err := zw.Write(payload); err != nil {
			return errors.Wrap(err, "compressing voxels")
		}
		if err := zw.Close(); err != nil {
			return errors.Wrap(err, "compressing voxels")
		}
		payload = zbuf.Bytes()
	}

	var hdr bytes.Buffer
	fmt.Fprintf(&hdr, "ObjectType = Image\n")
	fmt.Fprintf(&hdr, "NDims = 3\n")
	fmt.Fprintf(&hdr, "BinaryData = True\n")
	fmt.Fprintf(&hdr, "BinaryDataByteOrderMSB = %s\n", boolString(opts.MSB))
	fmt.Fprintf(&hdr, "CompressedData = %s\n", boolString(opts.Compressed))
	if opts.Compressed {
		fmt.Fprintf(&hdr, "CompressedDataSize = %d\n", len(payload))
	}
	fmt.Fprintf(&hdr, "ElementSpacing = %g %g %g\n", spacing(v.VoxelSize.X), spacing(v.VoxelSize.Y), spacing(v.VoxelSize.Z))
	fmt.Fprintf(&hdr, "DimSize = %d %d %d\n", v.Width, v.Height, v.Depth)
	fmt.Fprintf(&hdr, "ElementType = %s\n", opts.ElementType)
	fmt.Fprintf(&hdr, "ElementDataFile = %s\n", LocalDataFile)

	if _, err := w.Write(hdr.Bytes()); err != nil {
		return errors.Wrap(err, "writing header")
	}
	if _, err := w.Write(payload); err != nil {
		return errors.Wrap(err, "writing voxels")
	}
	return nil
}

// WriteFile encodes v into a new file at path
func WriteFile(path string, v *models.Volume, opts WriteOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, v, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encodeElement(t ElementType, order binary.ByteOrder, b []byte, v float64) {
	switch t {
	case MetUChar:
		b[0] = uint8(v)
	case MetChar:
		b[0] = uint8(int8(v))
	case MetUShort:
		order.PutUint16(b, uint16(v))
	case MetShort:
		order.PutUint16(b, uint16(int16(v)))
	case MetUInt, MetULong:
		order.PutUint32(b, uint32(v))
	case MetInt, MetLong:
		order.PutUint32(b, uint32(int32(v)))
	case MetULongLong:
		order.PutUint64(b, uint64(v))
	case MetLongLong:
		order.PutUint64(b, uint64(int64(v)))
	case MetFloat:
		order.PutUint32(b, math.Float32bits(float32(v)))
	case MetDouble:
		order.PutUint64(b, math.Float64bits(v))
	}
}

func boolString(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func spacing(s float64) float64 {
	if s == 0 {
		return 1
	}
	return s
}
