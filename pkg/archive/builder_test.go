package archive

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igepub/pkg/config"
	igerrors "igepub/pkg/errors"
	"igepub/pkg/layout"
	"igepub/pkg/logger"
	"igepub/pkg/models"
)

const testLayout = `<html><head><style>{css_content}</style></head><body>` +
	`<h1>{chapter_title}</h1><img src="{image_filename}"/><p>{caption_html}</p><a href="{post_url}">post</a>` +
	`</body></html>`

type buildEnv struct {
	dir      string
	packager *fakePackager
	builder  *Builder
	log      *logger.TestLogger
	settings Settings
}

func newBuildEnv(t *testing.T, html string) *buildEnv {
	t.Helper()
	dir := t.TempDir()
	layoutDir := filepath.Join(dir, "book_layout")
	require.NoError(t, os.MkdirAll(layoutDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(layoutDir, "layout.html"), []byte(html), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(layoutDir, "layout.css"), []byte("img { width: 100%; }"), 0644))

	settings := Settings{
		Archive:    config.DefaultConfig().Archive,
		LayoutHTML: filepath.Join(layoutDir, "layout.html"),
		LayoutCSS:  filepath.Join(layoutDir, "layout.css"),
	}
	packager := &fakePackager{}
	log := logger.NewTestLogger()
	return &buildEnv{
		dir:      dir,
		packager: packager,
		builder:  NewBuilder(packager, settings, log),
		log:      log,
		settings: settings,
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func (e *buildEnv) record(t *testing.T, id, caption, date string) models.PostRecord {
	t.Helper()
	path := filepath.Join(e.dir, "temp_images", id+".png")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, pngBytes(t, 4, 4), 0644))
	return models.PostRecord{
		ID:             id,
		Caption:        caption,
		LocalImagePath: path,
		PostURL:        "https://www.instagram.com/p/" + id + "/",
		ImageURL:       "https://cdn.example.com/" + id + ".png",
		CapturedAt:     date,
	}
}

func (e *buildEnv) output() string {
	return filepath.Join(e.dir, "out", "book.epub")
}

func TestBuildTwoPosts(t *testing.T) {
	env := newBuildEnv(t, testLayout)
	collection := models.Collection{
		env.record(t, "AAA", "cap1", "2024-01-01T09:00:00Z"),
		env.record(t, "BBB", "cap2", "2024-01-02"),
	}

	report, err := env.builder.Build(collection, Options{Output: env.output()})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Chapters)
	assert.Empty(t, report.Skipped)
	assert.Equal(t, "book", report.Title)
	assert.FileExists(t, env.output())

	book := env.packager.last()
	assert.Equal(t, []string{"Post 1: 2024-01-01", "Post 2: 2024-01-02"}, book.titles())
	assert.Equal(t, "book", book.meta.Title)
	assert.Equal(t, "Instagram Collection", book.meta.Author)
	assert.Equal(t, "ja", book.meta.Language)
	assert.True(t, strings.HasPrefix(book.meta.Identifier, "urn:uuid:"))

	require.NotNil(t, book.cover)
	firstImage, err := os.ReadFile(collection[0].LocalImagePath)
	require.NoError(t, err)
	assert.Equal(t, firstImage, book.cover.Data)
	assert.Equal(t, "cover.png", book.cover.Name)

	ch := book.chapters[0]
	assert.Equal(t, "chapter_1.xhtml", ch.Filename)
	assert.Equal(t, "../css/layout.css", ch.StylesheetRef)
	assert.Contains(t, ch.Body, `<style>img { width: 100%; }</style>`)
	assert.Contains(t, ch.Body, `<img src="../images/AAA.png"/>`)
	assert.Contains(t, ch.Body, `<p>cap1</p>`)
	assert.Contains(t, ch.Body, `href="https://www.instagram.com/p/AAA/"`)
	assert.Equal(t, "image/png", book.images[0].MediaType)

	manifest, err := os.ReadFile(env.output())
	require.NoError(t, err)
	assert.Equal(t, "title=book\nchapter=Post 1: 2024-01-01\nchapter=Post 2: 2024-01-02\n", string(manifest))
}

func TestBuildOptionsOverrideDefaults(t *testing.T) {
	env := newBuildEnv(t, testLayout)
	env.settings.Archive.Identifier = "urn:isbn:123"
	builder := NewBuilder(env.packager, env.settings, logger.NewNopLogger())

	_, err := builder.Build(models.Collection{env.record(t, "A", "", "")},
		Options{Output: env.output(), Title: "My Trip", Author: "Me"})
	require.NoError(t, err)

	meta := env.packager.last().meta
	assert.Equal(t, "My Trip", meta.Title)
	assert.Equal(t, "Me", meta.Author)
	assert.Equal(t, "urn:isbn:123", meta.Identifier)
}

func TestBuildMissingChapterTitleWritesNothing(t *testing.T) {
	env := newBuildEnv(t, `<h1>title</h1><p>{caption_html}</p>`)

	report, err := env.builder.Build(models.Collection{env.record(t, "A", "x", "")}, Options{Output: env.output()})

	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, igerrors.Is(err, igerrors.ErrorTypeLayout))
	assert.NoFileExists(t, env.output())
	assert.Empty(t, env.packager.archives)
}

func TestBuildMissingLayoutFileWritesNothing(t *testing.T) {
	env := newBuildEnv(t, testLayout)
	require.NoError(t, os.Remove(env.settings.LayoutCSS))

	_, err := env.builder.Build(models.Collection{env.record(t, "A", "x", "")}, Options{Output: env.output()})

	assert.True(t, igerrors.Is(err, igerrors.ErrorTypeLayout))
	assert.NoFileExists(t, env.output())
}

func TestBuildSkipsUnreadableImage(t *testing.T) {
	env := newBuildEnv(t, testLayout)
	bad := env.record(t, "BAD", "b", "2024-01-02")
	require.NoError(t, os.Remove(bad.LocalImagePath))
	corrupt := env.record(t, "CORRUPT", "c", "2024-01-03")
	require.NoError(t, os.WriteFile(corrupt.LocalImagePath, []byte("not an image"), 0644))

	collection := models.Collection{
		env.record(t, "A", "a", "2024-01-01"),
		bad,
		corrupt,
		env.record(t, "D", "d", "2024-01-04"),
	}

	report, err := env.builder.Build(collection, Options{Output: env.output()})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Chapters)
	require.Len(t, report.Skipped, 2)
	assert.Equal(t, "BAD", report.Skipped[0].ID)
	assert.Equal(t, SkipImage, report.Skipped[0].Reason)
	assert.Equal(t, "CORRUPT", report.Skipped[1].ID)
	assert.Equal(t, []string{"Post 1: 2024-01-01", "Post 4: 2024-01-04"}, env.packager.last().titles())
	assert.True(t, env.log.HasMessage("Chapter skipped"))
}

func TestBuildUnreadableCoverIsFatal(t *testing.T) {
	env := newBuildEnv(t, testLayout)
	first := env.record(t, "A", "a", "")
	require.NoError(t, os.Remove(first.LocalImagePath))

	_, err := env.builder.Build(models.Collection{first, env.record(t, "B", "b", "")}, Options{Output: env.output()})

	require.Error(t, err)
	assert.True(t, igerrors.Is(err, igerrors.ErrorTypeAsset))
	assert.NoFileExists(t, env.output())
}

func TestBuildCaptionRendering(t *testing.T) {
	env := newBuildEnv(t, testLayout)
	collection := models.Collection{
		env.record(t, "A", "line one\r\nline <b>two</b> & more", ""),
		env.record(t, "B", "", ""),
	}

	_, err := env.builder.Build(collection, Options{Output: env.output()})
	require.NoError(t, err)

	book := env.packager.last()
	assert.Contains(t, book.chapters[0].Body, "<p>line one<br />line two &amp; more</p>")
	assert.Contains(t, book.chapters[1].Body, "<p>（説明文なし）</p>")
}

func TestBuildTitleFallsBackToID(t *testing.T) {
	env := newBuildEnv(t, testLayout)

	_, err := env.builder.Build(models.Collection{env.record(t, "XYZ", "a", "sometime last week")}, Options{Output: env.output()})
	require.NoError(t, err)

	assert.Equal(t, []string{"Post 1: XYZ"}, env.packager.last().titles())
}

func TestBuildUnknownPlaceholderDropsChapters(t *testing.T) {
	env := newBuildEnv(t, `<h1>{chapter_title}</h1><p>{author}</p>`)

	report, err := env.builder.Build(models.Collection{env.record(t, "A", "a", "")}, Options{Output: env.output()})
	require.NoError(t, err)

	assert.Zero(t, report.Chapters)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, SkipRender, report.Skipped[0].Reason)
	assert.FileExists(t, env.output())
	assert.NotNil(t, env.packager.last().cover)
	assert.True(t, env.log.HasMessageContaining("undeclared fields"))
}

func TestBuildPackagerRejection(t *testing.T) {
	env := newBuildEnv(t, testLayout)

	report, err := env.builder.Build(models.Collection{
		env.record(t, "A", "fine", ""),
		env.record(t, "B", "REJECT", ""),
	}, Options{Output: env.output()})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Chapters)
	assert.Equal(t, SkipPackage, report.Skipped[0].Reason)
}

func TestBuildEmptyCollection(t *testing.T) {
	env := newBuildEnv(t, testLayout)

	report, err := env.builder.Build(models.Collection{}, Options{Output: env.output()})
	require.NoError(t, err)

	assert.True(t, report.Empty)
	assert.NoFileExists(t, env.output())
	assert.Empty(t, env.packager.archives)
}

func TestBuildWriteFailureLeavesNoFile(t *testing.T) {
	env := newBuildEnv(t, testLayout)
	env.packager.writeErr = errors.New("zip failed")

	_, err := env.builder.Build(models.Collection{env.record(t, "A", "a", "")}, Options{Output: env.output()})

	require.Error(t, err)
	assert.NoFileExists(t, env.output())
	entries, err := os.ReadDir(filepath.Dir(env.output()))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBuildDownscalesWideImages(t *testing.T) {
	env := newBuildEnv(t, testLayout)
	env.settings.Archive.MaxImageWidth = 10
	builder := NewBuilder(env.packager, env.settings, logger.NewNopLogger())

	rec := env.record(t, "WIDE", "a", "")
	require.NoError(t, os.WriteFile(rec.LocalImagePath, pngBytes(t, 40, 20), 0644))

	_, err := builder.Build(models.Collection{rec}, Options{Output: env.output()})
	require.NoError(t, err)

	img := env.packager.last().images[0]
	assert.Equal(t, "WIDE.jpg", img.Name)
	assert.Equal(t, "image/jpeg", img.MediaType)

	decoded, err := jpeg.Decode(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, 10, decoded.Bounds().Dx())
	assert.Equal(t, 5, decoded.Bounds().Dy())
}

func TestDefaultLayoutRenders(t *testing.T) {
	env := newBuildEnv(t, layout.DefaultHTML())

	report, err := env.builder.Build(models.Collection{env.record(t, "A", "hello", "2024-05-06")}, Options{Output: env.output()})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Chapters)
	assert.Contains(t, env.packager.last().chapters[0].Body, "<h1>Post 1: 2024-05-06</h1>")
}
