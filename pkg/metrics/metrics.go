// Package metrics counts pipeline events with Prometheus collectors and
// writes them in the text exposition format for a node-exporter textfile
// collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is what pipeline components report to
type Recorder interface {
	CandidateProcessed()
	PostAccepted()
	DownloadFailed()
	AssetRepaired()
	AssetUnresolved()
	ChapterWritten()
	ChapterSkipped(reason string)
}

// Collector is the Prometheus-backed Recorder
type Collector struct {
	registry *prometheus.Registry

	candidates      prometheus.Counter
	accepted        prometheus.Counter
	downloadFails   prometheus.Counter
	repaired        prometheus.Counter
	unresolved      prometheus.Counter
	chaptersWritten prometheus.Counter
	chaptersSkipped *prometheus.CounterVec
}

// NewCollector creates a Collector with its own registry
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		candidates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "igepub_fetch_candidates_total",
			Help: "Posts yielded by the provider and processed by the fetch loop.",
		}),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "igepub_fetch_accepted_total",
			Help: "Posts that matched, downloaded and were added to the collection.",
		}),
		downloadFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "igepub_download_failures_total",
			Help: "Single-attempt image downloads that failed.",
		}),
		repaired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "igepub_assets_repaired_total",
			Help: "Missing local images re-downloaded by the resolver.",
		}),
		unresolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "igepub_assets_unresolved_total",
			Help: "Records left without a local image after resolution.",
		}),
		chaptersWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "igepub_chapters_written_total",
			Help: "Chapters added to the archive.",
		}),
		chaptersSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "igepub_chapters_skipped_total",
			Help: "Chapters dropped from the archive by reason.",
		}, []string{"reason"}),
	}

	c.registry.MustRegister(
		c.candidates,
		c.accepted,
		c.downloadFails,
		c.repaired,
		c.unresolved,
		c.chaptersWritten,
		c.chaptersSkipped,
	)
	return c
}

func (c *Collector) CandidateProcessed() { c.candidates.Inc() }
func (c *Collector) PostAccepted()       { c.accepted.Inc() }
func (c *Collector) DownloadFailed()     { c.downloadFails.Inc() }
func (c *Collector) AssetRepaired()      { c.repaired.Inc() }
func (c *Collector) AssetUnresolved()    { c.unresolved.Inc() }
func (c *Collector) ChapterWritten()     { c.chaptersWritten.Inc() }

func (c *Collector) ChapterSkipped(reason string) {
	c.chaptersSkipped.WithLabelValues(reason).Inc()
}

// Registry exposes the underlying registry, mostly for tests
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WriteTextfile writes every collected metric to path atomically.
// An empty path is a no-op.
func (c *Collector) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Nop discards every event
type Nop struct{}

func (Nop) CandidateProcessed()   {}
func (Nop) PostAccepted()         {}
func (Nop) DownloadFailed()       {}
func (Nop) AssetRepaired()        {}
func (Nop) AssetUnresolved()      {}
func (Nop) ChapterWritten()       {}
func (Nop) ChapterSkipped(string) {}
