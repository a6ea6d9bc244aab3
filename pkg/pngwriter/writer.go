// Package pngwriter persists frames as PNG files and builds the output
// path layout
package pngwriter

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// Output kinds, one directory each under <root>/<patientID>
const (
	KindImages  = "images"
	KindLabels  = "labels"
	KindLabeled = "labeled"
)

// LabeledSuffix is inserted between the volume name and the frame number
// of overlay frames
const LabeledSuffix = "labeled_"

// FramePath returns <root>/<patientID>/<kind>/<volume>/<volume>_<suffix><NNNN>.png
// with a 1-based four digit frame number
func FramePath(root, patientID, kind, volumeName, suffix string, index int) string {
	file := fmt.Sprintf("%s_%s%04d.png", volumeName, suffix, index+1)
	return filepath.Join(root, patientID, kind, volumeName, file)
}

// Writer encodes images as PNG, optionally resizing them first
type Writer struct {
	width  uint
	height uint
}

// NewWriter creates a writer. Zero width and height keep the native size;
// a single zero dimension preserves the aspect ratio
func NewWriter(width, height uint) *Writer {
	return &Writer{width: width, height: height}
}

// WritePNG encodes img at path, creating parent directories. The file is
// written to a temporary name in the same directory and renamed into
// place, so a failed write never leaves a partial PNG behind
func (w *Writer) WritePNG(img image.Image, path string) error {
	if w.width > 0 || w.height > 0 {
		// Nearest neighbour keeps label masks binary
		img = resize.Resize(w.width, w.height, img, resize.NearestNeighbor)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create image file")
	}
	tmpName := tmp.Name()

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to encode image")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to close image file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to move image into place")
	}
	return nil
}
