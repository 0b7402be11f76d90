// Package downloader performs the single-attempt image downloads shared by
// the fetch loop and the asset resolver.
package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	igerrors "igepub/pkg/errors"
	"igepub/pkg/logger"
	"igepub/pkg/storage"
)

// Source fetches the bytes behind a URL
type Source interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// ImageStorage saves downloaded images into the working directory
type ImageStorage interface {
	SaveImage(r io.Reader, name string) (string, int64, error)
}

// DownloadJob represents a single download task
type DownloadJob struct {
	ID  string
	URL string
}

// DownloadResult represents the result of a download job
type DownloadResult struct {
	Job      DownloadJob
	Path     string
	Size     int64
	Error    error
	Duration time.Duration
}

// Success reports whether the image was saved
func (r DownloadResult) Success() bool {
	return r.Error == nil
}

// Downloader saves one image per job. There is no retry: a failed job is
// reported once and left to the caller.
type Downloader struct {
	source  Source
	storage ImageStorage
	logger  logger.Logger
}

// New creates a downloader writing through storage
func New(source Source, storage ImageStorage, log logger.Logger) *Downloader {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Downloader{source: source, storage: storage, logger: log}
}

// Fetch downloads job.URL and saves it as <id><ext>
func (d *Downloader) Fetch(ctx context.Context, job DownloadJob) DownloadResult {
	start := time.Now()
	result := DownloadResult{Job: job}

	if job.URL == "" {
		result.Error = igerrors.New(igerrors.ErrorTypeAsset, fmt.Sprintf("no source URL for %s", job.ID))
		return result
	}

	data, err := d.source.Download(ctx, job.URL)
	if err != nil {
		result.Error = fmt.Errorf("download failed: %w", err)
		result.Duration = time.Since(start)
		logger.LogDownload(d.logger, job.ID, job.URL, 0, result.Error)
		return result
	}

	name := storage.ImageFilename(job.ID, job.URL)
	path, size, err := d.storage.SaveImage(bytes.NewReader(data), name)
	if err != nil {
		result.Error = igerrors.Wrap(igerrors.ErrorTypeAsset, err, "save failed")
		result.Duration = time.Since(start)
		logger.LogDownload(d.logger, job.ID, job.URL, 0, result.Error)
		return result
	}

	result.Path = path
	result.Size = size
	result.Duration = time.Since(start)
	logger.LogDownload(d.logger, job.ID, job.URL, size, nil)
	return result
}
