package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.FramesWritten.WithLabelValues("labeled").Add(3)
	m.ShapeMismatches.Inc()

	assert.Equal(t, 3.0, testutil.ToFloat64(m.FramesWritten.WithLabelValues("labeled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ShapeMismatches))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.TruncatedFrames))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.TruncatedFrames.Add(2)

	path := filepath.Join(t.TempDir(), "batch.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "mrivolumestopng_truncated_frames_total 2")
}
