// Package generator turns patient volumes into PNG frame trees.
//
// A Converter holds the shared capabilities (normalization, compositing,
// writing, metrics). Labeled and Unlabeled are the two pipeline
// configurations built on top of it
package generator

import (
	"context"
	"image"
	"iter"
	"log/slog"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"mrivolumestopng/internal/models"
	"mrivolumestopng/pkg/metrics"
	"mrivolumestopng/pkg/normalize"
	"mrivolumestopng/pkg/overlay"
	"mrivolumestopng/pkg/pairing"
	"mrivolumestopng/pkg/pngwriter"
)

// FrameWriter persists a raster at path
type FrameWriter interface {
	WritePNG(img image.Image, path string) error
}

// Params configures a Converter
type Params struct {
	// OutputDir is the root of the PNG tree
	OutputDir string

	// NumCores bounds how many frames are converted at once
	NumCores int

	// Overlay controls the labeled frame blend
	Overlay overlay.Options

	// Naming derives label volume names; nil selects pairing.LabelName
	Naming pairing.NamingStrategy
}

// Converter converts frames to PNGs concurrently
type Converter struct {
	params     Params
	normalizer normalize.Normalizer
	compositor *overlay.Compositor
	writer     FrameWriter
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewConverter creates a converter. Nil metrics or logger are replaced
// by private instances
func NewConverter(params Params, writer FrameWriter, m *metrics.Metrics, logger *slog.Logger) (*Converter, error) {
	if params.NumCores < 1 {
		params.NumCores = runtime.NumCPU()
	}
	normalizer := normalize.MinMax{}
	compositor, err := overlay.NewCompositor(normalizer, params.Overlay)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{
		params:     params,
		normalizer: normalizer,
		compositor: compositor,
		writer:     writer,
		metrics:    m,
		logger:     logger,
	}, nil
}

// job is one output frame
type job struct {
	patientID string
	kind      string
	volume    string
	index     int
	image     models.Frame
	label     *models.Frame
}

func (c *Converter) path(j job) string {
	suffix := ""
	if j.kind == pngwriter.KindLabeled {
		suffix = pngwriter.LabeledSuffix
	}
	return pngwriter.FramePath(c.params.OutputDir, j.patientID, j.kind, j.volume, suffix, j.index)
}

// convert renders and writes one frame. A shape mismatch only skips the
// frame; write failures are returned
func (c *Converter) convert(j job) error {
	path := c.path(j)
	logger := c.logger.With("patient", j.patientID, "volume", j.volume, "frame", j.index+1)

	var img image.Image
	if j.label == nil {
		if logger.Enabled(context.Background(), slog.LevelDebug) {
			s := normalize.Summarize(j.image)
			logger.Debug("generating frame", "kind", j.kind, "min", s.Min, "max", s.Max, "mean", s.Mean)
		}
		img = c.normalizer.Normalize(j.image).Image()
	} else {
		if logger.Enabled(context.Background(), slog.LevelDebug) {
			logger.Debug("generating labeled frame", "mask", overlay.MaskArea(*j.label))
		}
		rgb, err := c.compositor.Composite(j.image, *j.label)
		if errors.Is(err, overlay.ErrShapeMismatch) {
			c.metrics.ShapeMismatches.Inc()
			logger.Warn("skipping frame pair", "error", err)
			return nil
		}
		if err != nil {
			return err
		}
		img = rgb.Image()
	}

	if err := c.writer.WritePNG(img, path); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	c.metrics.FramesWritten.WithLabelValues(j.kind).Inc()
	return nil
}

// run converts jobs with at most NumCores in flight. The first write
// error or a cancelled ctx stops scheduling further frames
func (c *Converter) run(ctx context.Context, jobs iter.Seq[job]) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.params.NumCores)

	for j := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return c.convert(j)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// volumeJobs yields one job per frame of every volume in the set
func volumeJobs(patientID, kind string, set models.NamedVolumeSet) iter.Seq[job] {
	return func(yield func(job) bool) {
		for _, name := range set.Names() {
			v := set[name]
			for z := 0; z < v.Depth; z++ {
				if !yield(job{patientID: patientID, kind: kind, volume: name, index: z, image: v.Frame(z)}) {
					return
				}
			}
		}
	}
}

// pairJobs yields one labeled job per paired frame
func pairJobs(patientID string, pairs []pairing.Pair) iter.Seq[job] {
	return func(yield func(job) bool) {
		for _, p := range pairs {
			for fp := range p.Frames() {
				label := fp.Label
				j := job{
					patientID: patientID,
					kind:      pngwriter.KindLabeled,
					volume:    p.Name,
					index:     fp.Index,
					image:     fp.Image,
					label:     &label,
				}
				if !yield(j) {
					return
				}
			}
		}
	}
}

// GenerateFrames writes every frame of every volume in set as a grayscale
// PNG under <output>/<patientID>/<kind>
func (c *Converter) GenerateFrames(ctx context.Context, patientID, kind string, set models.NamedVolumeSet) error {
	return c.run(ctx, volumeJobs(patientID, kind, set))
}

// GenerateLabeledFrames pairs image and label volumes and writes one
// overlay PNG per paired frame. Unmatched image volumes are skipped and
// reported in the result
func (c *Converter) GenerateLabeledFrames(ctx context.Context, patientID string, images, labels models.NamedVolumeSet) (pairing.Result, error) {
	res := pairing.Match(images, labels, c.params.Naming)

	for _, name := range res.Unmatched {
		c.metrics.UnmatchedVolume.Inc()
		c.logger.Info("no matching labels found, skipping labeled frames for this series",
			"patient", patientID, "volume", name)
	}
	for _, p := range res.Pairs {
		if d := p.Dropped(); d > 0 {
			c.metrics.TruncatedFrames.Add(float64(d))
			c.logger.Warn("image and label volumes differ in depth, trailing frames dropped",
				"patient", patientID, "volume", p.Name,
				"imageFrames", p.Image.Depth, "labelFrames", p.Label.Depth, "dropped", d)
		}
	}

	return res, c.run(ctx, pairJobs(patientID, res.Pairs))
}
