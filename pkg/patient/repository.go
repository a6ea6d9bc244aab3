// Package patient enumerates patient directories and loads their
// acquisitions and metadata.
//
// A patient directory looks like
//
//	<root>/<patientID>/
//	    b-field-strength.json
//	    frame-rate.json
//	    scanned-region.json
//	    images/<series>_<index>.mha
//	    targets/<series>_<index>_labels.mha
package patient

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"mrivolumestopng/internal/models"
)

// ErrNotFound is returned when a directory or metadata file is absent
var ErrNotFound = errors.New("not found")

// Directory and file names inside a patient directory
const (
	ImagesDir          = "images"
	TargetsDir         = "targets"
	BFieldStrengthFile = "b-field-strength.json"
	FrameRateFile      = "frame-rate.json"
	ScannedRegionFile  = "scanned-region.json"
)

// DefaultExtension is the acquisition file extension
const DefaultExtension = ".mha"

// VolumeReader loads one acquisition file
type VolumeReader interface {
	Read(path string) (*models.Volume, error)
}

// Repository reads patient records from the filesystem
type Repository struct {
	extension string
	reader    VolumeReader
	logger    *slog.Logger
}

// NewRepository creates a repository that loads files ending in extension
// with reader. An empty extension selects DefaultExtension
func NewRepository(reader VolumeReader, extension string, logger *slog.Logger) *Repository {
	if extension == "" {
		extension = DefaultExtension
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{extension: extension, reader: reader, logger: logger}
}

// ListPatients returns the sorted patient directory names under baseDir
func (r *Repository) ListPatients(baseDir string) ([]string, error) {
	entries, err := readDir(baseDir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ListVolumeFiles returns the sorted acquisition filenames in dir
func (r *Repository) ListVolumeFiles(dir string) ([]string, error) {
	entries, err := readDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), r.extension) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// LoadVolumes reads every acquisition in dir keyed by the filename up to
// its first '.'
func (r *Repository) LoadVolumes(dir string) (models.NamedVolumeSet, error) {
	files, err := r.ListVolumeFiles(dir)
	if err != nil {
		return nil, err
	}

	set := make(models.NamedVolumeSet, len(files))
	for _, file := range files {
		r.logger.Debug("reading file", "file", file)
		v, err := r.reader.Read(filepath.Join(dir, file))
		if err != nil {
			return nil, err
		}
		set[VolumeName(file)] = v
	}
	return set, nil
}

// LoadMetadata reads the three metadata files of a patient directory
func (r *Repository) LoadMetadata(patientDir string) (models.PatientMetadata, error) {
	var md models.PatientMetadata
	var err error

	if md.BFieldStrength, err = readFloat(filepath.Join(patientDir, BFieldStrengthFile)); err != nil {
		return md, err
	}
	if md.FrameRate, err = readFloat(filepath.Join(patientDir, FrameRateFile)); err != nil {
		return md, err
	}
	if md.ScannedRegion, err = readString(filepath.Join(patientDir, ScannedRegionFile)); err != nil {
		return md, err
	}
	return md, nil
}

// VolumeName strips everything from the first '.' of a filename
func VolumeName(file string) string {
	name, _, _ := strings.Cut(filepath.Base(file), ".")
	return name
}

func readDir(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(ErrNotFound, "directory %s", dir)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", dir)
	}
	return entries, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(ErrNotFound, "metadata %s", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return data, nil
}

func readFloat(path string) (float64, error) {
	data, err := readFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing %s", path)
	}
	return v, nil
}

// readString accepts either a JSON string or bare text
func readString(path string) (string, error) {
	data, err := readFile(path)
	if err != nil {
		return "", err
	}
	var s string
	if json.Unmarshal(data, &s) == nil {
		return s, nil
	}
	return strings.TrimSpace(string(data)), nil
}
