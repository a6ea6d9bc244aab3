// Package batch drives the generators over every patient of the labeled
// and unlabeled datasets. A failing patient is recorded and the run moves
// on to the next one
package batch

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"mrivolumestopng/pkg/generator"
	"mrivolumestopng/pkg/metrics"
	"mrivolumestopng/pkg/patient"
)

// Dataset names
const (
	DatasetLabeled   = "labeled"
	DatasetUnlabeled = "unlabeled"
)

// Failure records one patient whose run was aborted
type Failure struct {
	Dataset   string
	PatientID string
	Err       error
}

// Summary is the outcome of a batch run
type Summary struct {
	Processed map[string]int
	Failures  []Failure
	Elapsed   time.Duration
}

// Failed reports whether any patient failed
func (s *Summary) Failed() bool {
	return len(s.Failures) > 0
}

// Runner enumerates and processes patients
type Runner struct {
	repo    *patient.Repository
	loader  generator.Loader
	conv    *generator.Converter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRunner creates a batch runner
func NewRunner(loader generator.Loader, conv *generator.Converter, m *metrics.Metrics, logger *slog.Logger) *Runner {
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{repo: loader.Repo, loader: loader, conv: conv, metrics: m, logger: logger}
}

// Options selects which datasets are processed
type Options struct {
	LabeledDir   string
	UnlabeledDir string
}

// Run processes every patient under the configured dataset roots. An
// empty root skips that dataset. The returned error is non-nil only when
// ctx is cancelled; per-patient errors are collected in the summary
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	start := time.Now()
	s := &Summary{Processed: make(map[string]int)}

	if opts.LabeledDir != "" {
		if err := r.runDataset(ctx, s, DatasetLabeled, opts.LabeledDir); err != nil {
			return s, err
		}
	}
	if opts.UnlabeledDir != "" {
		if err := r.runDataset(ctx, s, DatasetUnlabeled, opts.UnlabeledDir); err != nil {
			return s, err
		}
	}

	s.Elapsed = time.Since(start)
	return s, nil
}

func (r *Runner) runDataset(ctx context.Context, s *Summary, dataset, root string) error {
	ids, err := r.repo.ListPatients(root)
	if err != nil {
		r.logger.Error("cannot list patients", "dataset", dataset, "dir", root, "error", err)
		s.Failures = append(s.Failures, Failure{Dataset: dataset, Err: err})
		r.metrics.PatientsFailed.WithLabelValues(dataset).Inc()
		return nil
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := r.RunPatient(ctx, dataset, root, id)
		if err == nil {
			s.Processed[dataset]++
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.Failures = append(s.Failures, Failure{Dataset: dataset, PatientID: id, Err: err})
	}
	return nil
}

// RunPatient loads and generates one patient
func (r *Runner) RunPatient(ctx context.Context, dataset, root, id string) error {
	logger := r.logger.With("dataset", dataset, "patient", id)
	logger.Info("processing patient")

	g, err := r.load(dataset, root, id)
	if err == nil {
		logger.Debug(g.String())
		err = g.Generate(ctx)
	}
	if err != nil {
		r.metrics.PatientsFailed.WithLabelValues(dataset).Inc()
		level := slog.LevelError
		if errors.Is(err, patient.ErrNotFound) {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "patient failed", "error", err)
		return err
	}

	r.metrics.PatientsDone.WithLabelValues(dataset).Inc()
	return nil
}

func (r *Runner) load(dataset, root, id string) (generator.Generator, error) {
	switch dataset {
	case DatasetLabeled:
		return r.loader.LoadLabeled(root, id, r.conv)
	case DatasetUnlabeled:
		return r.loader.LoadUnlabeled(root, id, r.conv)
	}
	return nil, errors.Errorf("unknown dataset %q", dataset)
}
