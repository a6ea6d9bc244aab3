package generator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"mrivolumestopng/internal/models"
	"mrivolumestopng/pkg/patient"
	"mrivolumestopng/pkg/pngwriter"
)

// Generator produces the PNG outputs of one patient
type Generator interface {
	Generate(ctx context.Context) error
	PatientID() string
	String() string
}

// Record is a loaded patient directory
type Record struct {
	ID       string
	Dir      string
	Metadata models.PatientMetadata
	Images   models.NamedVolumeSet
}

// Loader reads patient records from a dataset root
type Loader struct {
	Repo *patient.Repository
}

func (l Loader) load(root, id string) (*Record, error) {
	dir := filepath.Join(root, id)
	if _, err := os.Stat(dir); err != nil {
		return nil, errors.Wrapf(patient.ErrNotFound, "patient data for %s", id)
	}

	md, err := l.Repo.LoadMetadata(dir)
	if err != nil {
		return nil, err
	}
	images, err := l.volumes(filepath.Join(dir, patient.ImagesDir))
	if err != nil {
		return nil, err
	}
	return &Record{ID: id, Dir: dir, Metadata: md, Images: images}, nil
}

func (l Loader) volumes(dir string) (models.NamedVolumeSet, error) {
	return l.Repo.LoadVolumes(dir)
}

// Labeled generates images, labels and overlays for one patient of the
// labeled dataset
type Labeled struct {
	*Record
	Labels models.NamedVolumeSet

	conv *Converter
}

// LoadLabeled reads <root>/<id> including its targets directory
func (l Loader) LoadLabeled(root, id string, conv *Converter) (*Labeled, error) {
	rec, err := l.load(root, id)
	if err != nil {
		return nil, err
	}
	labels, err := l.volumes(filepath.Join(rec.Dir, patient.TargetsDir))
	if err != nil {
		return nil, err
	}
	return &Labeled{Record: rec, Labels: labels, conv: conv}, nil
}

// PatientID implements Generator
func (g *Labeled) PatientID() string { return g.ID }

// Generate implements Generator
func (g *Labeled) Generate(ctx context.Context) error {
	if err := g.GenerateImages(ctx); err != nil {
		return err
	}
	if err := g.GenerateLabels(ctx); err != nil {
		return err
	}
	_, err := g.GenerateLabeledFrames(ctx)
	return err
}

// GenerateImages writes the normalized image frames
func (g *Labeled) GenerateImages(ctx context.Context) error {
	return g.conv.GenerateFrames(ctx, g.ID, pngwriter.KindImages, g.Images)
}

// GenerateLabels writes the label frames, normalized like images
func (g *Labeled) GenerateLabels(ctx context.Context) error {
	return g.conv.GenerateFrames(ctx, g.ID, pngwriter.KindLabels, g.Labels)
}

// GenerateLabeledFrames writes the overlay frames
func (g *Labeled) GenerateLabeledFrames(ctx context.Context) (int, error) {
	res, err := g.conv.GenerateLabeledFrames(ctx, g.ID, g.Images, g.Labels)
	return len(res.Pairs), err
}

func (g *Labeled) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Labeled patient:\n")
	writeRecord(&b, g.Record)
	fmt.Fprintf(&b, "    labels: %v\n", g.Labels.Shapes())
	return b.String()
}

// Unlabeled generates images for one patient of the unlabeled dataset
type Unlabeled struct {
	*Record

	conv *Converter
}

// LoadUnlabeled reads <root>/<id> without targets
func (l Loader) LoadUnlabeled(root, id string, conv *Converter) (*Unlabeled, error) {
	rec, err := l.load(root, id)
	if err != nil {
		return nil, err
	}
	return &Unlabeled{Record: rec, conv: conv}, nil
}

// PatientID implements Generator
func (g *Unlabeled) PatientID() string { return g.ID }

// Generate implements Generator
func (g *Unlabeled) Generate(ctx context.Context) error {
	return g.conv.GenerateFrames(ctx, g.ID, pngwriter.KindImages, g.Images)
}

func (g *Unlabeled) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Unlabeled patient:\n")
	writeRecord(&b, g.Record)
	return b.String()
}

func writeRecord(b *strings.Builder, r *Record) {
	fmt.Fprintf(b, "    patient_id: %s\n", r.ID)
	fmt.Fprintf(b, "    patient_data_path: %s\n", r.Dir)
	fmt.Fprintf(b, "    metadata:\n")
	fmt.Fprintf(b, "        b_field_strength: %g\n", r.Metadata.BFieldStrength)
	fmt.Fprintf(b, "        frame_rate: %g\n", r.Metadata.FrameRate)
	fmt.Fprintf(b, "        scanned_region: %s\n", r.Metadata.ScannedRegion)
	fmt.Fprintf(b, "    images: %v\n", r.Images.Shapes())
}
