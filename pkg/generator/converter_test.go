package generator

import (
	"context"
	"image"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mrivolumestopng/internal/logging"
	"mrivolumestopng/internal/models"
	"mrivolumestopng/pkg/metrics"
	"mrivolumestopng/pkg/normalize"
	"mrivolumestopng/pkg/overlay"
)

// memWriter records every image handed to it
type memWriter struct {
	mu     sync.Mutex
	images map[string]image.Image
	fail   error
}

func newMemWriter() *memWriter {
	return &memWriter{images: make(map[string]image.Image)}
}

func (w *memWriter) WritePNG(img image.Image, path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		return w.fail
	}
	w.images[path] = img
	return nil
}

func (w *memWriter) get(t *testing.T, path string) image.Image {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	img, ok := w.images[path]
	require.True(t, ok, "missing output %s", path)
	return img
}

func (w *memWriter) has(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.images[path]
	return ok
}

func newTestConverter(t *testing.T, w FrameWriter) (*Converter, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	c, err := NewConverter(Params{OutputDir: "out", NumCores: 3, Overlay: overlay.DefaultOptions()}, w, m, logging.NewNop())
	require.NoError(t, err)
	return c, m
}

// rampVolume holds 0..15 in every 4x4 frame, offset by the frame index
func rampVolume(depth int) *models.Volume {
	v := models.NewVolume(4, 4, depth)
	for z := 0; z < depth; z++ {
		f := v.Frame(z)
		for i := range f.Data {
			f.Data[i] = float64(i + z)
		}
	}
	return v
}

func rgbAt(img image.Image, x, y int) [3]uint8 {
	r, g, b, _ := img.At(x, y).RGBA()
	return [3]uint8{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)}
}

func TestGenerateLabeledFramesScenario(t *testing.T) {
	images := models.NamedVolumeSet{"p01_02": rampVolume(5)}
	labels := models.NewVolume(4, 4, 3)
	block := labels.Frame(2)
	for _, i := range []int{5, 6, 9, 10} {
		block.Data[i] = 1
	}

	w := newMemWriter()
	c, m := newTestConverter(t, w)

	res, err := c.GenerateLabeledFrames(context.Background(), "P1", images, models.NamedVolumeSet{"p01_02_labels": labels})
	require.NoError(t, err)
	require.Len(t, res.Pairs, 1)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TruncatedFrames))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.FramesWritten.WithLabelValues("labeled")))

	dir := filepath.Join("out", "P1", "labeled", "p01_02")
	for _, n := range []string{"0001", "0002", "0003"} {
		assert.True(t, w.has(filepath.Join(dir, "p01_02_labeled_"+n+".png")), n)
	}
	for _, n := range []string{"0004", "0005"} {
		assert.False(t, w.has(filepath.Join(dir, "p01_02_labeled_"+n+".png")), n)
	}

	gray := normalize.Frame(images["p01_02"].Frame(2))
	img := w.get(t, filepath.Join(dir, "p01_02_labeled_0003.png"))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			g := gray.Pix[y*4+x]
			inBlock := x >= 1 && x <= 2 && y >= 1 && y <= 2
			want := [3]uint8{g, g, g}
			if inBlock {
				half := float32(g) * 0.5
				want = [3]uint8{uint8(half), uint8(half), uint8(half + 64)}
			}
			assert.Equal(t, want, rgbAt(img, x, y), "pixel (%d,%d)", x, y)
		}
	}

	// Frames with an empty mask are plain grayscale
	img = w.get(t, filepath.Join(dir, "p01_02_labeled_0001.png"))
	gray = normalize.Frame(images["p01_02"].Frame(0))
	assert.Equal(t, [3]uint8{gray.Pix[5], gray.Pix[5], gray.Pix[5]}, rgbAt(img, 1, 1))
}

func TestGenerateLabeledFramesNoLabels(t *testing.T) {
	w := newMemWriter()
	c, m := newTestConverter(t, w)

	res, err := c.GenerateLabeledFrames(context.Background(), "P1",
		models.NamedVolumeSet{"p01_02": rampVolume(2)}, models.NamedVolumeSet{})
	require.NoError(t, err)
	assert.Empty(t, res.Pairs)
	assert.Equal(t, []string{"p01_02"}, res.Unmatched)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnmatchedVolume))
	assert.Empty(t, w.images)
}

func TestGenerateLabeledFramesShapeMismatchSkipped(t *testing.T) {
	w := newMemWriter()
	c, m := newTestConverter(t, w)

	labels := models.NamedVolumeSet{"p01_02_labels": models.NewVolume(3, 4, 2)}
	_, err := c.GenerateLabeledFrames(context.Background(), "P1", models.NamedVolumeSet{"p01_02": rampVolume(2)}, labels)
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ShapeMismatches))
	assert.Empty(t, w.images)
}

func TestGenerateFrames(t *testing.T) {
	w := newMemWriter()
	c, m := newTestConverter(t, w)

	set := models.NamedVolumeSet{"A_001": rampVolume(2), "A_002": rampVolume(3)}
	require.NoError(t, c.GenerateFrames(context.Background(), "P1", "images", set))
	assert.Len(t, w.images, 5)
	assert.Equal(t, 5.0, testutil.ToFloat64(m.FramesWritten.WithLabelValues("images")))

	img := w.get(t, filepath.Join("out", "P1", "images", "A_002", "A_002_0003.png"))
	gray, ok := img.(*image.Gray)
	require.True(t, ok)
	assert.Equal(t, uint8(0), gray.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), gray.GrayAt(3, 3).Y)
}

func TestGenerateFramesWriteError(t *testing.T) {
	w := newMemWriter()
	w.fail = errors.New("disk full")
	c, _ := newTestConverter(t, w)

	err := c.GenerateFrames(context.Background(), "P1", "images", models.NamedVolumeSet{"A_001": rampVolume(4)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestGenerateFramesCancelled(t *testing.T) {
	w := newMemWriter()
	c, _ := newTestConverter(t, w)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.GenerateFrames(ctx, "P1", "images", models.NamedVolumeSet{"A_001": rampVolume(4)})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, w.images)
}

func TestNewConverterRejectsAlpha(t *testing.T) {
	_, err := NewConverter(Params{Overlay: overlay.Options{Alpha: 2}}, newMemWriter(), nil, nil)
	assert.True(t, errors.Is(err, overlay.ErrInvalidAlpha))
}
