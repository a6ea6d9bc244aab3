// Package metaimage reads and writes MetaImage (.mha / .mhd) volumes.
//
// A MetaImage file starts with a text header of "Key = Value" lines. The
// ElementDataFile key is always last: LOCAL means the voxel data follows
// the header in the same file, anything else names a sibling raw file.
// Voxels are stored x fastest, then y, then z
package metaimage

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ElementType is a MetaImage voxel type
type ElementType string

// Supported element types
const (
	MetUChar     ElementType = "MET_UCHAR"
	MetChar      ElementType = "MET_CHAR"
	MetUShort    ElementType = "MET_USHORT"
	MetShort     ElementType = "MET_SHORT"
	MetUInt      ElementType = "MET_UINT"
	MetInt       ElementType = "MET_INT"
	MetULong     ElementType = "MET_ULONG"
	MetLong      ElementType = "MET_LONG"
	MetULongLong ElementType = "MET_ULONG_LONG"
	MetLongLong  ElementType = "MET_LONG_LONG"
	MetFloat     ElementType = "MET_FLOAT"
	MetDouble    ElementType = "MET_DOUBLE"
)

// Size returns the byte width of one element, or 0 if the type is unknown
func (t ElementType) Size() int {
	switch t {
	case MetUChar, MetChar:
		return 1
	case MetUShort, MetShort:
		return 2
	case MetUInt, MetInt, MetULong, MetLong, MetFloat:
		return 4
	case MetULongLong, MetLongLong, MetDouble:
		return 8
	}
	return 0
}

// LocalDataFile marks voxel data stored inline after the header
const LocalDataFile = "LOCAL"

// Header is the parsed MetaImage header
type Header struct {
	NDims          int
	DimSize        []int
	ElementSpacing []float64
	ElementType    ElementType
	Channels       int
	MSB            bool
	Compressed     bool
	CompressedSize int64
	DataFile       string

	// Fields keeps every raw key/value pair in file order
	Fields [][2]string
}

// ByteOrder returns the voxel byte order
func (h *Header) ByteOrder() binary.ByteOrder {
	if h.MSB {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// MaxVoxels bounds the element count of a single volume
const MaxVoxels = 1 << 30

// Voxels returns the number of elements described by DimSize
func (h *Header) Voxels() int {
	n := 1
	for _, d := range h.DimSize {
		n *= d
	}
	return n
}

// dims returns width, height, depth; 2D images have depth 1
func (h *Header) dims() (int, int, int) {
	w, ht, d := h.DimSize[0], 1, 1
	if len(h.DimSize) > 1 {
		ht = h.DimSize[1]
	}
	if len(h.DimSize) > 2 {
		d = h.DimSize[2]
	}
	return w, ht, d
}

func parseHeader(r *bufio.Reader) (*Header, error) {
	h := &Header{Channels: 1}

	for {
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			return nil, errors.Wrap(err, "header ended before ElementDataFile")
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			if err != nil {
				return nil, errors.Wrap(err, "header ended before ElementDataFile")
			}
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, errors.Errorf("malformed header line %q", line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		h.Fields = append(h.Fields, [2]string{key, value})

		if perr := h.set(key, value); perr != nil {
			return nil, errors.Wrapf(perr, "header key %s", key)
		}
		if key == "ElementDataFile" {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "header ended before ElementDataFile")
		}
	}

	return h, h.validate()
}

func (h *Header) set(key, value string) error {
	var err error
	switch key {
	case "ObjectType":
		if !strings.EqualFold(value, "Image") {
			return errors.Errorf("unsupported object type %q", value)
		}
	case "NDims":
		h.NDims, err = strconv.Atoi(value)
	case "DimSize":
		h.DimSize, err = parseInts(value)
	case "ElementSpacing", "ElementSize":
		if h.ElementSpacing == nil || key == "ElementSpacing" {
			h.ElementSpacing, err = parseFloats(value)
		}
	case "ElementType":
		h.ElementType = ElementType(value)
	case "ElementNumberOfChannels":
		h.Channels, err = strconv.Atoi(value)
	case "BinaryDataByteOrderMSB", "ElementByteOrderMSB":
		h.MSB, err = parseBool(value)
	case "BinaryData":
		var isBinary bool
		if isBinary, err = parseBool(value); err == nil && !isBinary {
			return errors.New("ASCII voxel data is not supported")
		}
	case "CompressedData":
		h.Compressed, err = parseBool(value)
	case "CompressedDataSize":
		h.CompressedSize, err = strconv.ParseInt(value, 10, 64)
	case "ElementDataFile":
		h.DataFile = value
	}
	return err
}

func (h *Header) validate() error {
	if h.NDims < 2 || h.NDims > 3 {
		return errors.Errorf("unsupported NDims %d (must be 2 or 3)", h.NDims)
	}
	if len(h.DimSize) != h.NDims {
		return errors.Errorf("DimSize has %d entries, NDims is %d", len(h.DimSize), h.NDims)
	}
	n := 1
	for _, d := range h.DimSize {
		if d <= 0 {
			return errors.Errorf("invalid DimSize %v", h.DimSize)
		}
		if d > MaxVoxels/n {
			return errors.Errorf("DimSize %v exceeds %d voxels", h.DimSize, MaxVoxels)
		}
		n *= d
	}
	if h.ElementType.Size() == 0 {
		return errors.Errorf("unsupported ElementType %q", h.ElementType)
	}
	if h.Channels != 1 {
		return errors.Errorf("unsupported ElementNumberOfChannels %d", h.Channels)
	}
	if h.DataFile == "" || h.DataFile == "LIST" || strings.ContainsRune(h.DataFile, ' ') {
		return errors.Errorf("unsupported ElementDataFile %q", h.DataFile)
	}
	return nil
}

func parseInts(s string) ([]int, error) {
	fields := strings.Fields(s)
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseFloats(s string) ([]float64, error) {
	fields := strings.Fields(s)
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}
