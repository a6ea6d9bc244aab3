package metaimage

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mrivolumestopng/internal/models"
	"mrivolumestopng/pkg/volume"
)

func sampleVolume() *models.Volume {
	v := models.NewVolume(3, 2, 2)
	for i := range v.Data {
		v.Data[i] = float64(i*10 - 20)
	}
	v.VoxelSize.X, v.VoxelSize.Y, v.VoxelSize.Z = 1.5, 1.5, 5
	return v
}

func TestWriteReadFile(t *testing.T) {
	cases := map[string]WriteOptions{
		"short lsb":        {ElementType: MetShort},
		"short msb":        {ElementType: MetShort, MSB: true},
		"float compressed": {ElementType: MetFloat, Compressed: true},
		"double":           {ElementType: MetDouble},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "A_001.mha")
			want := sampleVolume()
			require.NoError(t, WriteFile(path, want, opts))

			got, err := ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, [3]int{2, 2, 3}, got.Shape())
			assert.Equal(t, want.Data, got.Data)
			assert.Equal(t, 5.0, got.VoxelSize.Z)
		})
	}
}

// indexVolume stores 100x + 10y + z at storage offset z*W*H + y*W + x
func indexVolume(w, h, d int) *models.Volume {
	v := models.NewVolume(w, h, d)
	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v.Data[z*w*h+y*w+x] = float64(100*x + 10*y + z)
			}
		}
	}
	return v
}

func TestReadDefaultLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "A_001.mha")
	require.NoError(t, WriteFile(path, indexVolume(2, 3, 4), WriteOptions{ElementType: MetShort}))

	v, err := NewReader().Read(path)
	require.NoError(t, err)
	// depth follows DimSize[0], rows DimSize[2] and columns DimSize[1]
	require.Equal(t, [3]int{2, 4, 3}, v.Shape())
	for k := 0; k < v.Depth; k++ {
		f := v.Frame(k)
		for row := 0; row < f.Height; row++ {
			for col := 0; col < f.Width; col++ {
				assert.Equal(t, float64(100*k+10*col+row), f.At(col, row), "frame %d column %d row %d", k, col, row)
			}
		}
	}
}

func TestReadAlongZ(t *testing.T) {
	path := filepath.Join(t.TempDir(), "A_001.mha")
	want := indexVolume(2, 3, 4)
	require.NoError(t, WriteFile(path, want, WriteOptions{ElementType: MetShort}))

	v, err := NewReaderAlong(volume.AxisZ).Read(path)
	require.NoError(t, err)
	assert.Equal(t, [3]int{4, 3, 2}, v.Shape())
	assert.Equal(t, want.Data, v.Data)
}

func TestEncodeUnsignedCharHeader(t *testing.T) {
	v := models.NewVolume(2, 1, 1)
	v.Data[0], v.Data[1] = 0, 255

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, v, WriteOptions{ElementType: MetUChar}))

	h, err := parseHeader(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, MetUChar, h.ElementType)
}

func TestReadDetachedData(t *testing.T) {
	dir := t.TempDir()
	header := "ObjectType = Image\nNDims = 2\nDimSize = 2 2\nElementType = MET_USHORT\nElementDataFile = frame.raw\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame.mhd"), []byte(header), 0644))

	raw := make([]byte, 8)
	for i, v := range []uint16{1, 2, 300, 65535} {
		binary.LittleEndian.PutUint16(raw[i*2:], v)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame.raw"), raw, 0644))

	v, err := ReadFile(filepath.Join(dir, "frame.mhd"))
	require.NoError(t, err)
	assert.Equal(t, 1, v.Depth)
	assert.Equal(t, []float64{1, 2, 300, 65535}, v.Data)
}

func TestReadErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		return p
	}

	cases := map[string]string{
		"missing":        filepath.Join(dir, "nope.mha"),
		"no data file":   write("a.mha", "ObjectType = Image\nNDims = 3\nDimSize = 1 1 1\nElementType = MET_UCHAR\n"),
		"bad type":       write("b.mha", "NDims = 3\nDimSize = 1 1 1\nElementType = MET_COMPLEX\nElementDataFile = LOCAL\n"),
		"dims mismatch":  write("c.mha", "NDims = 3\nDimSize = 1 1\nElementType = MET_UCHAR\nElementDataFile = LOCAL\n"),
		"short payload":  write("d.mha", "NDims = 3\nDimSize = 2 2 2\nElementType = MET_UCHAR\nElementDataFile = LOCAL\nabc"),
		"multi channel":  write("e.mha", "NDims = 2\nDimSize = 1 1\nElementType = MET_UCHAR\nElementNumberOfChannels = 3\nElementDataFile = LOCAL\nabc"),
		"malformed line": write("f.mha", "NDims 3\n"),
		"ascii":          write("g.mha", "NDims = 2\nBinaryData = False\nDimSize = 1 1\nElementType = MET_UCHAR\nElementDataFile = LOCAL\n1"),
		"dims overflow":  write("h.mha", "NDims = 3\nDimSize = 4294967296 4294967296 2\nElementType = MET_UCHAR\nElementDataFile = LOCAL\n"),
		"dims too large": write("i.mha", "NDims = 3\nDimSize = 1024 1024 1025\nElementType = MET_UCHAR\nElementDataFile = LOCAL\n"),
	}
	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewReader().Read(path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrRead))
		})
	}
}

func TestParseHeaderRejectsOverflow(t *testing.T) {
	header := "NDims = 3\nDimSize = 4294967296 4294967296 2\nElementType = MET_FLOAT\nElementDataFile = LOCAL\n"
	_, err := parseHeader(bufio.NewReader(strings.NewReader(header)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestHeaderFields(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleVolume(), WriteOptions{ElementType: MetInt}))

	h, err := parseHeader(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 2}, h.DimSize)
	assert.Equal(t, 12, h.Voxels())
	assert.Equal(t, binary.LittleEndian, h.ByteOrder())
	assert.Equal(t, [2]string{"ObjectType", "Image"}, h.Fields[0])
	assert.Equal(t, LocalDataFile, h.DataFile)
}
