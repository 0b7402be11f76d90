// Package pipeline is the command surface of igepub: fetch, build, clean
// and the combined all. Fetch and build share nothing but the posts
// document, so a single crawl can feed several builds.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"igepub/internal/downloader"
	"igepub/pkg/archive"
	"igepub/pkg/assets"
	"igepub/pkg/config"
	"igepub/pkg/epub"
	igerrors "igepub/pkg/errors"
	"igepub/pkg/hashtag"
	"igepub/pkg/logger"
	"igepub/pkg/metadata"
	"igepub/pkg/metrics"
	"igepub/pkg/scraper"
	"igepub/pkg/storage"
)

// Notifier tells the user a long command has ended
type Notifier interface {
	SendSuccess(title, message string)
	SendError(title, message string)
}

// Dependencies are the collaborators a Pipeline talks to. Provider is only
// needed by Fetch and All; the rest fall back to the production defaults.
type Dependencies struct {
	Provider scraper.Provider
	Packager archive.Packager
	Source   downloader.Source
	Progress scraper.Progress
	Notifier Notifier
}

// Summary is the outcome of All
type Summary struct {
	Fetch   *scraper.Result
	Build   *archive.Report
	Cleaned bool
}

// Pipeline runs the commands against one configuration
type Pipeline struct {
	cfg     *config.Config
	deps    Dependencies
	store   *metadata.Store
	images  *storage.Manager
	metrics *metrics.Collector
	logger  logger.Logger
}

// New creates a pipeline
func New(cfg *config.Config, deps Dependencies, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.GetLogger()
	}
	if deps.Packager == nil {
		deps.Packager = epub.NewPackager()
	}
	if deps.Source == nil {
		deps.Source = downloader.NewHTTPSource(cfg.Download.Timeout, cfg.Download.SafeURLs, cfg.Instagram.UserAgent)
	}
	store := metadata.NewStore(cfg.Storage.PostsFile)
	store.SetLogger(log)
	return &Pipeline{
		cfg:     cfg,
		deps:    deps,
		store:   store,
		images:  storage.NewManager(cfg.Storage.ImageDir),
		metrics: metrics.NewCollector(),
		logger:  log,
	}
}

// Metrics exposes the counters collected so far
func (p *Pipeline) Metrics() *metrics.Collector {
	return p.metrics
}

// Fetch collects posts and replaces the posts document with them. A fetch
// that accepts nothing leaves the existing document alone.
func (p *Pipeline) Fetch(ctx context.Context, opts scraper.Options) (*scraper.Result, error) {
	result, err := p.fetch(ctx, opts)
	p.finish("Fetch", err)
	return result, err
}

func (p *Pipeline) fetch(ctx context.Context, opts scraper.Options) (*scraper.Result, error) {
	if p.deps.Provider == nil {
		return nil, errors.New("no post provider configured")
	}
	if opts.MaxPosts == 0 {
		opts.MaxPosts = p.cfg.Fetch.MaxPosts
	}
	if opts.SessionName == "" {
		opts.SessionName = p.cfg.Instagram.DefaultSession
	}

	fetcher := scraper.NewFetcher(p.deps.Provider, p.images, scraper.Settings{
		Delay:            p.cfg.Fetch.Delay,
		ProgressInterval: p.cfg.Fetch.ProgressInterval,
	}, p.logger)
	fetcher.SetMetrics(p.metrics)
	if p.deps.Progress != nil {
		fetcher.SetProgress(p.deps.Progress)
	}

	result, err := fetcher.Fetch(ctx, opts)
	if err != nil {
		return nil, err
	}

	if len(result.Posts) == 0 {
		p.logger.WarnWithFields("Nothing matched, posts document left unchanged", map[string]interface{}{
			"path":      p.store.Path(),
			"processed": result.Processed,
		})
		return result, nil
	}

	if err := p.store.Save(result.Posts); err != nil {
		return result, err
	}
	p.logger.InfoWithFields("Posts document written", map[string]interface{}{
		"path":  p.store.Path(),
		"posts": len(result.Posts),
	})
	return result, nil
}

// Build reads the posts document, repairs missing images and writes the
// archive. An empty document is a skipped build, not an error.
func (p *Pipeline) Build(ctx context.Context, opts archive.Options) (*archive.Report, error) {
	report, err := p.build(ctx, opts)
	p.finish("Build", err)
	if err == nil && !report.Empty {
		p.notifySuccess("Archive ready", fmt.Sprintf("%s: %d chapters", report.Output, report.Chapters))
	}
	return report, err
}

func (p *Pipeline) build(ctx context.Context, opts archive.Options) (*archive.Report, error) {
	collection, err := p.store.Load()
	if igerrors.Is(err, igerrors.ErrorTypeNotFound) {
		return nil, igerrors.Precondition("nothing to build: %s does not exist, run fetch first", p.store.Path())
	}
	if err != nil {
		return nil, err
	}
	if len(collection) == 0 {
		p.logger.WithField("path", p.store.Path()).Warn("Posts document is empty, skipping build")
		return &archive.Report{Empty: true}, nil
	}

	collection.SortByCapturedAt()

	resolver := assets.NewResolver(p.deps.Source, p.images, p.logger)
	resolver.SetMetrics(p.metrics)
	collection, resolved := resolver.Resolve(ctx, collection)
	if len(resolved.Unresolved) > 0 {
		p.logger.WarnWithFields("Some images could not be repaired, their chapters will be skipped", map[string]interface{}{
			"ids": resolved.Unresolved,
		})
	}

	htmlPath, cssPath := p.cfg.LayoutPaths()
	builder := archive.NewBuilder(p.deps.Packager, archive.Settings{
		Archive:    p.cfg.Archive,
		LayoutHTML: htmlPath,
		LayoutCSS:  cssPath,
	}, p.logger)
	builder.SetMetrics(p.metrics)

	report, err := builder.Build(collection, opts)
	if err != nil {
		return nil, err
	}
	if !report.Empty {
		p.logger.InfoWithFields("Archive written", map[string]interface{}{
			"output":   report.Output,
			"chapters": report.Chapters,
			"skipped":  len(report.Skipped),
			"repaired": resolved.Repaired,
		})
	}
	return report, nil
}

// Clean removes the working image directory
func (p *Pipeline) Clean() error {
	err := p.images.Cleanup()
	if err == nil {
		p.logger.WithField("dir", p.images.Dir()).Info("Working image directory removed")
	}
	p.finish("Clean", err)
	return err
}

// All runs fetch, build and clean in order. It needs a hashtag or a target
// user. The working directory is only removed after an archive was written.
func (p *Pipeline) All(ctx context.Context, fetch scraper.Options, build archive.Options) (*Summary, error) {
	tags := hashtag.Normalize(fetch.Tags)
	user := strings.TrimSpace(fetch.TargetUser)
	if len(tags) == 0 && user == "" {
		err := igerrors.Precondition("all needs at least one hashtag or a target user")
		p.finish("All", err)
		return nil, err
	}
	fetch.Tags = tags
	fetch.TargetUser = user
	if build.Output == "" {
		build.Output = hashtag.ArchiveName(tags, user, p.cfg.Archive.Output)
	}

	summary := &Summary{}
	result, err := p.Fetch(ctx, fetch)
	if err != nil {
		return summary, err
	}
	summary.Fetch = result

	// An interrupt only cuts the fetch short; the build still repairs images
	report, err := p.Build(context.WithoutCancel(ctx), build)
	if err != nil {
		return summary, err
	}
	summary.Build = report
	if report.Empty {
		p.logger.Warn("No archive written, keeping working image directory")
		return summary, nil
	}

	if err := p.Clean(); err != nil {
		return summary, err
	}
	summary.Cleaned = true
	return summary, nil
}

// finish flushes the metrics textfile and reports failures
func (p *Pipeline) finish(command string, err error) {
	if werr := p.metrics.WriteTextfile(p.cfg.Metrics.Textfile); werr != nil {
		p.logger.WithError(werr).Warn("Failed to write metrics textfile")
	}
	if err != nil {
		p.logger.WithError(err).WithField("error_type", string(igerrors.TypeOf(err))).Error(command + " failed")
		p.notifyError(command+" failed", err.Error())
	}
}

func (p *Pipeline) notifySuccess(title, message string) {
	n := p.cfg.Notifications
	if p.deps.Notifier != nil && n.Enabled && n.OnComplete {
		p.deps.Notifier.SendSuccess(title, message)
	}
}

func (p *Pipeline) notifyError(title, message string) {
	n := p.cfg.Notifications
	if p.deps.Notifier != nil && n.Enabled && n.OnError {
		p.deps.Notifier.SendError(title, message)
	}
}
