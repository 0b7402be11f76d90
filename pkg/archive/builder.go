// Package archive assembles the e-book from a post collection and a chapter
// layout. The container format itself is produced by a Packager.
package archive

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"igepub/pkg/config"
	igerrors "igepub/pkg/errors"
	"igepub/pkg/layout"
	"igepub/pkg/logger"
	"igepub/pkg/metrics"
	"igepub/pkg/models"
)

// Chapter skip reasons, used as metric labels
const (
	SkipImage   = "image"
	SkipRender  = "render"
	SkipPackage = "package"
)

// Settings configures a Builder
type Settings struct {
	Archive    config.ArchiveConfig
	LayoutHTML string
	LayoutCSS  string
}

// Options override the configured defaults for one build
type Options struct {
	Title  string
	Author string
	Output string
}

// SkippedChapter records a post left out of the archive
type SkippedChapter struct {
	ID     string
	Reason string
	Err    error
}

// Report describes a finished build
type Report struct {
	Output   string
	Title    string
	Chapters int
	Skipped  []SkippedChapter
	// Empty is set when the collection had no posts and nothing was written
	Empty bool
}

// Builder renders one chapter per post and hands them to a Packager
type Builder struct {
	packager Packager
	settings Settings
	captions *bluemonday.Policy
	metrics  metrics.Recorder
	logger   logger.Logger
}

// NewBuilder creates a builder packaging through p
func NewBuilder(p Packager, settings Settings, log logger.Logger) *Builder {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Builder{
		packager: p,
		settings: settings,
		captions: bluemonday.StrictPolicy(),
		metrics:  metrics.Nop{},
		logger:   log,
	}
}

// SetMetrics sets the recorder for chapter counters
func (b *Builder) SetMetrics(r metrics.Recorder) {
	if r != nil {
		b.metrics = r
	}
}

// Build writes the archive for collection, in collection order.
//
// Failures that concern the whole archive (layout, cover image, packaging,
// writing) return an error and leave no output file. A chapter whose image
// cannot be read or whose layout cannot be rendered is skipped and listed
// in the report. An empty collection writes nothing and reports Empty.
func (b *Builder) Build(collection models.Collection, opts Options) (*Report, error) {
	tmpl, err := layout.Load(b.settings.LayoutHTML, b.settings.LayoutCSS)
	if err != nil {
		b.logger.WithError(err).ErrorWithFields("Layout invalid, no archive written", map[string]interface{}{
			"html": b.settings.LayoutHTML,
			"css":  b.settings.LayoutCSS,
		})
		return nil, err
	}
	if len(tmpl.Unknown) > 0 {
		b.logger.WarnWithFields("Layout references undeclared fields; chapters will not render", map[string]interface{}{
			"fields": tmpl.Unknown,
		})
	}

	report := b.resolveOptions(opts)
	if len(collection) == 0 {
		report.Empty = true
		b.logger.Warn("No posts to build, skipping archive")
		return report, nil
	}

	meta := Metadata{
		Identifier: b.settings.Archive.Identifier,
		Title:      report.Title,
		Author:     firstNonEmpty(opts.Author, b.settings.Archive.Author),
		Language:   b.settings.Archive.Language,
	}
	if meta.Identifier == "" {
		meta.Identifier = "urn:uuid:" + uuid.NewString()
	}

	book, err := b.packager.New(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}

	cssRef, err := book.AddStylesheet("layout.css", tmpl.CSS)
	if err != nil {
		return nil, fmt.Errorf("failed to add stylesheet: %w", err)
	}

	if err := b.setCover(book, collection[0]); err != nil {
		return nil, err
	}

	for i, rec := range collection {
		if err := b.addChapter(book, tmpl, cssRef, i, rec); err != nil {
			skip := SkippedChapter{ID: rec.ID, Reason: skipReason(igerrors.TypeOf(err)), Err: err}
			report.Skipped = append(report.Skipped, skip)
			b.metrics.ChapterSkipped(skip.Reason)
			logger.LogChapterSkipped(b.logger, rec.ID, err)
			continue
		}
		report.Chapters++
		b.metrics.ChapterWritten()
	}

	if err := writeAtomic(book, report.Output); err != nil {
		return nil, err
	}

	b.logger.InfoWithFields("Archive written", map[string]interface{}{
		"output":   report.Output,
		"chapters": report.Chapters,
		"skipped":  len(report.Skipped),
	})
	return report, nil
}

func (b *Builder) resolveOptions(opts Options) *Report {
	output := firstNonEmpty(opts.Output, b.settings.Archive.Output)
	title := opts.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(output), filepath.Ext(output))
	}
	return &Report{Output: output, Title: title}
}

// setCover uses the first post's image. Without it the archive is not built.
func (b *Builder) setCover(book Archive, first models.PostRecord) error {
	data, err := os.ReadFile(first.LocalImagePath)
	if err != nil {
		return igerrors.Wrap(igerrors.ErrorTypeAsset, err, fmt.Sprintf("cover image for %s unreadable", first.ID))
	}
	img, err := prepareImage("cover", data, b.settings.Archive.MaxImageWidth)
	if err != nil {
		return igerrors.Wrap(igerrors.ErrorTypeAsset, err, fmt.Sprintf("cover image for %s", first.ID))
	}
	if err := book.SetCover(img); err != nil {
		return fmt.Errorf("failed to set cover: %w", err)
	}
	return nil
}

func (b *Builder) addChapter(book Archive, tmpl *layout.Template, cssRef string, i int, rec models.PostRecord) error {
	data, err := os.ReadFile(rec.LocalImagePath)
	if err != nil {
		return igerrors.Wrap(igerrors.ErrorTypeAsset, err, "image unreadable")
	}
	img, err := prepareImage(rec.ID, data, b.settings.Archive.MaxImageWidth)
	if err != nil {
		return igerrors.Wrap(igerrors.ErrorTypeAsset, err, "image unreadable")
	}

	title := b.chapterTitle(i, rec)
	body, err := tmpl.Render(layout.Fields{
		ChapterTitle:  html.EscapeString(title),
		ImageFilename: book.ImageRef(img.Name),
		CaptionHTML:   b.captionHTML(rec.Caption),
		PostURL:       html.EscapeString(rec.PostURL),
	})
	if err != nil {
		return err
	}

	ch := Chapter{
		Title:         title,
		Filename:      fmt.Sprintf("chapter_%d.xhtml", i+1),
		Body:          body,
		StylesheetRef: cssRef,
	}
	if err := book.AddChapter(ch, img); err != nil {
		return fmt.Errorf("failed to add chapter: %w", err)
	}
	return nil
}

// chapterTitle formats the title with the post's date, or its id when the
// capture time does not parse
func (b *Builder) chapterTitle(i int, rec models.PostRecord) string {
	suffix := rec.ID
	if t, ok := rec.CapturedTime(); ok {
		suffix = t.Format(b.settings.Archive.DateFormat)
	}
	return fmt.Sprintf(b.settings.Archive.TitleFormat, i+1, suffix)
}

// captionHTML escapes the caption and turns line breaks into <br />
func (b *Builder) captionHTML(caption string) string {
	if strings.TrimSpace(caption) == "" {
		caption = b.settings.Archive.CaptionPlaceholder
	}
	caption = strings.ReplaceAll(caption, "\r\n", "\n")
	return strings.ReplaceAll(b.captions.Sanitize(caption), "\n", "<br />")
}

func skipReason(t igerrors.ErrorType) string {
	switch t {
	case igerrors.ErrorTypeAsset:
		return SkipImage
	case igerrors.ErrorTypeChapter:
		return SkipRender
	default:
		return SkipPackage
	}
}

// writeAtomic writes the archive next to path and renames it into place
func writeAtomic(book Archive, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary archive: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := book.Write(tmpPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write archive: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move archive into place: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
