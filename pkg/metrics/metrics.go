// Package metrics counts pipeline outcomes for a batch run
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the batch counters on a private registry
type Metrics struct {
	registry *prometheus.Registry

	FramesWritten   *prometheus.CounterVec
	ShapeMismatches prometheus.Counter
	TruncatedFrames prometheus.Counter
	UnmatchedVolume prometheus.Counter
	PatientsFailed  *prometheus.CounterVec
	PatientsDone    *prometheus.CounterVec
}

// New registers a fresh set of counters
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FramesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mrivolumestopng_frames_written_total",
			Help: "PNG frames written, by output kind",
		}, []string{"kind"}),
		ShapeMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mrivolumestopng_shape_mismatches_total",
			Help: "Frame pairs skipped because image and label shapes differ",
		}),
		TruncatedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mrivolumestopng_truncated_frames_total",
			Help: "Trailing frames dropped because paired volumes differ in depth",
		}),
		UnmatchedVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mrivolumestopng_unmatched_volumes_total",
			Help: "Image volumes with no matching label volume",
		}),
		PatientsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mrivolumestopng_patients_failed_total",
			Help: "Patients whose run was aborted, by dataset",
		}, []string{"dataset"}),
		PatientsDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mrivolumestopng_patients_processed_total",
			Help: "Patients processed successfully, by dataset",
		}, []string{"dataset"}),
	}
	m.registry.MustRegister(
		m.FramesWritten,
		m.ShapeMismatches,
		m.TruncatedFrames,
		m.UnmatchedVolume,
		m.PatientsFailed,
		m.PatientsDone,
	)
	return m
}

// WriteTextfile dumps the counters in the node exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
