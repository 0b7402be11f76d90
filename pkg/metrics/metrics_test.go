package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()

	c.CandidateProcessed()
	c.CandidateProcessed()
	c.PostAccepted()
	c.ChapterSkipped("image")
	c.ChapterSkipped("image")
	c.ChapterSkipped("render")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.candidates))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.accepted))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.chaptersSkipped.WithLabelValues("image")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.chaptersSkipped.WithLabelValues("render")))
}

func TestWriteTextfile(t *testing.T) {
	c := NewCollector()
	c.ChapterWritten()
	c.AssetRepaired()

	path := filepath.Join(t.TempDir(), "igepub.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "igepub_chapters_written_total 1")
	assert.Contains(t, string(data), "igepub_assets_repaired_total 1")

	assert.NoError(t, c.WriteTextfile(""))
}

func TestNopSatisfiesRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.ChapterSkipped("anything")
}
