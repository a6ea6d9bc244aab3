package models

import (
	"fmt"
	"image"
	"image/color"
	"sort"
)

// Volume represents a 3D acquisition read from a single scan file
type Volume struct {
	// Data is the 3D volume data as a 1D array in row-major order
	// (depth, height, width)
	Data []float64

	// Width is the width of the volume in voxels
	Width int

	// Height is the height of the volume in voxels
	Height int

	// Depth is the number of frames in the volume
	Depth int

	// VoxelSize is the physical size of each voxel in mm
	VoxelSize struct {
		X, Y, Z float64
	}
}

// NewVolume allocates a zero-filled volume of the given dimensions
func NewVolume(width, height, depth int) *Volume {
	return &Volume{
		Data:   make([]float64, width*height*depth),
		Width:  width,
		Height: height,
		Depth:  depth,
	}
}

// Frame returns the z-th frame of the volume. The returned frame shares
// storage with the volume and must be treated as read-only
func (v *Volume) Frame(z int) Frame {
	size := v.Width * v.Height
	return Frame{
		Data:   v.Data[z*size : (z+1)*size],
		Width:  v.Width,
		Height: v.Height,
	}
}

// Shape returns (depth, height, width)
func (v *Volume) Shape() [3]int {
	return [3]int{v.Depth, v.Height, v.Width}
}

// Frame is a single 2D slice of a volume in row-major order
type Frame struct {
	Data   []float64
	Width  int
	Height int
}

// NewFrame allocates a zero-filled frame
func NewFrame(width, height int) Frame {
	return Frame{
		Data:   make([]float64, width*height),
		Width:  width,
		Height: height,
	}
}

// At returns the sample at column x, row y
func (f Frame) At(x, y int) float64 {
	return f.Data[y*f.Width+x]
}

// SameShape reports whether two frames have identical height and width
func (f Frame) SameShape(o Frame) bool {
	return f.Width == o.Width && f.Height == o.Height
}

// GrayFrame is an 8-bit single channel frame
type GrayFrame struct {
	Pix    []uint8
	Width  int
	Height int
}

// NewGrayFrame allocates an all-black gray frame
func NewGrayFrame(width, height int) GrayFrame {
	return GrayFrame{
		Pix:    make([]uint8, width*height),
		Width:  width,
		Height: height,
	}
}

// Image converts the frame to an image.Gray without copying pixels
func (g GrayFrame) Image() image.Image {
	return &image.Gray{
		Pix:    g.Pix,
		Stride: g.Width,
		Rect:   image.Rect(0, 0, g.Width, g.Height),
	}
}

// RGBFrame is an 8-bit three channel frame, channels interleaved per pixel
type RGBFrame struct {
	Pix    []uint8
	Width  int
	Height int
}

// NewRGBFrame allocates an all-black RGB frame
func NewRGBFrame(width, height int) RGBFrame {
	return RGBFrame{
		Pix:    make([]uint8, width*height*3),
		Width:  width,
		Height: height,
	}
}

// RGBAt returns the three channels of the pixel at column x, row y
func (r RGBFrame) RGBAt(x, y int) [3]uint8 {
	i := (y*r.Width + x) * 3
	return [3]uint8{r.Pix[i], r.Pix[i+1], r.Pix[i+2]}
}

// Image converts the frame to an opaque image.RGBA
func (r RGBFrame) Image() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			p := r.RGBAt(x, y)
			img.SetRGBA(x, y, color.RGBA{R: p[0], G: p[1], B: p[2], A: 255})
		}
	}
	return img
}

// NamedVolumeSet maps a volume name (source filename without extension)
// to its volume
type NamedVolumeSet map[string]*Volume

// Names returns the volume names in lexical order
func (s NamedVolumeSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Shapes returns a printable summary of every volume's shape
func (s NamedVolumeSet) Shapes() map[string]string {
	shapes := make(map[string]string, len(s))
	for name, v := range s {
		shape := v.Shape()
		shapes[name] = fmt.Sprintf("(%d, %d, %d)", shape[0], shape[1], shape[2])
	}
	return shapes
}

// PatientMetadata holds the per-patient acquisition descriptors
type PatientMetadata struct {
	// BFieldStrength is the scanner field strength in tesla
	BFieldStrength float64

	// FrameRate is the cine acquisition rate in frames per second
	FrameRate float64

	// ScannedRegion names the anatomical region, e.g. "abdomen"
	ScannedRegion string
}
