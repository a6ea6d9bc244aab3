// Package overlay blends a translucent highlight over the annotated pixels
// of a normalized image frame
package overlay

import (
	"math"

	"github.com/pkg/errors"

	"mrivolumestopng/internal/models"
	"mrivolumestopng/pkg/normalize"
)

// ErrShapeMismatch is returned when the image and label frames differ in
// height or width
var ErrShapeMismatch = errors.New("image and label frames differ in shape")

// ErrInvalidAlpha is returned for an opacity outside [0, 1]
var ErrInvalidAlpha = errors.New("alpha must be within [0, 1]")

// Color is an RGB overlay color
type Color struct {
	R, G, B uint8
}

// DefaultColor is dark blue
var DefaultColor = Color{R: 0, G: 0, B: 128}

// DefaultAlpha is the default overlay opacity
const DefaultAlpha = 0.5

// Options controls the blend
type Options struct {
	// Alpha is the overlay opacity; 0 keeps the image, 1 paints the color
	Alpha float64

	// Color is painted over every pixel whose label is > 0
	Color Color
}

// DefaultOptions returns alpha 0.5 and dark blue
func DefaultOptions() Options {
	return Options{Alpha: DefaultAlpha, Color: DefaultColor}
}

// Validate checks that the opacity is in range
func (o Options) Validate() error {
	if math.IsNaN(o.Alpha) || o.Alpha < 0 || o.Alpha > 1 {
		return errors.Wrapf(ErrInvalidAlpha, "got %v", o.Alpha)
	}
	return nil
}

// Compositor fuses image frames with their label masks
type Compositor struct {
	normalizer normalize.Normalizer
	opts       Options
}

// NewCompositor creates a compositor. A nil normalizer selects min/max
// normalization
func NewCompositor(n normalize.Normalizer, opts Options) (*Compositor, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if n == nil {
		n = normalize.MinMax{}
	}
	return &Compositor{normalizer: n, opts: opts}, nil
}

// Composite normalizes img to grayscale, broadcasts it to RGB and blends
// the overlay color into every pixel where label > 0
func (c *Compositor) Composite(img, label models.Frame) (models.RGBFrame, error) {
	if !img.SameShape(label) {
		return models.RGBFrame{}, errors.Wrapf(ErrShapeMismatch,
			"image %dx%d, label %dx%d", img.Width, img.Height, label.Width, label.Height)
	}

	gray := c.normalizer.Normalize(img)
	out := models.NewRGBFrame(gray.Width, gray.Height)

	// Blending is done in float32
	a := float32(c.opts.Alpha)
	overlay := [3]float32{float32(c.opts.Color.R), float32(c.opts.Color.G), float32(c.opts.Color.B)}

	for i, g := range gray.Pix {
		o := i * 3
		if !(label.Data[i] > 0) {
			out.Pix[o], out.Pix[o+1], out.Pix[o+2] = g, g, g
			continue
		}
		base := float32(g)
		for ch := 0; ch < 3; ch++ {
			out.Pix[o+ch] = clampUint8((1-a)*base + a*overlay[ch])
		}
	}
	return out, nil
}

// Composite blends with the given options using min/max normalization
func Composite(img, label models.Frame, opts Options) (models.RGBFrame, error) {
	c, err := NewCompositor(nil, opts)
	if err != nil {
		return models.RGBFrame{}, err
	}
	return c.Composite(img, label)
}

// MaskArea counts the annotated pixels of a label frame
func MaskArea(label models.Frame) int {
	n := 0
	for _, v := range label.Data {
		if v > 0 {
			n++
		}
	}
	return n
}

func clampUint8(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}
