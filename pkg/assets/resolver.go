// Package assets repairs missing working-directory images before a build.
package assets

import (
	"context"
	"os"

	"igepub/internal/downloader"
	"igepub/pkg/logger"
	"igepub/pkg/metrics"
	"igepub/pkg/models"
)

// Report summarizes a resolve pass
type Report struct {
	Present    int
	Repaired   int
	Unresolved []string
}

// Resolver makes a single best-effort pass over a collection. A record
// whose image is missing is downloaded again from its source URL once;
// records that cannot be repaired are left for the builder to drop.
type Resolver struct {
	downloader *downloader.Downloader
	metrics    metrics.Recorder
	logger     logger.Logger
}

// NewResolver creates a resolver fetching from source into images
func NewResolver(source downloader.Source, images downloader.ImageStorage, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Resolver{
		downloader: downloader.New(source, images, log),
		metrics:    metrics.Nop{},
		logger:     log,
	}
}

// SetMetrics sets the recorder for repair counters
func (r *Resolver) SetMetrics(m metrics.Recorder) {
	if m != nil {
		r.metrics = m
	}
}

// Resolve patches LocalImagePath in place and returns the same collection.
// Only LocalImagePath of repaired records changes.
func (r *Resolver) Resolve(ctx context.Context, collection models.Collection) (models.Collection, Report) {
	var report Report

	for i := range collection {
		rec := &collection[i]
		if usable(rec.LocalImagePath) {
			report.Present++
			continue
		}

		fields := map[string]interface{}{
			"post_id":    rec.ID,
			"local_path": rec.LocalImagePath,
		}
		if rec.ImageURL == "" {
			r.logger.WarnWithFields("Image missing and no source URL, cannot repair", fields)
			report.Unresolved = append(report.Unresolved, rec.ID)
			r.metrics.AssetUnresolved()
			continue
		}

		r.logger.InfoWithFields("Image missing, downloading again", fields)
		res := r.downloader.Fetch(ctx, downloader.DownloadJob{ID: rec.ID, URL: rec.ImageURL})
		if !res.Success() {
			report.Unresolved = append(report.Unresolved, rec.ID)
			r.metrics.AssetUnresolved()
			continue
		}

		rec.LocalImagePath = res.Path
		report.Repaired++
		r.metrics.AssetRepaired()
	}

	if report.Repaired > 0 || len(report.Unresolved) > 0 {
		r.logger.InfoWithFields("Asset check finished", map[string]interface{}{
			"present":    report.Present,
			"repaired":   report.Repaired,
			"unresolved": len(report.Unresolved),
		})
	}
	return collection, report
}

// usable reports whether path is a non-empty regular file. A zero-byte file
// is what an interrupted copy leaves behind and counts as missing.
func usable(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
