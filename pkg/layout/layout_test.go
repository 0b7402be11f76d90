package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	igerrors "igepub/pkg/errors"
)

func writeLayout(t *testing.T, html, css string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "layout.html")
	cssPath := filepath.Join(dir, "layout.css")
	require.NoError(t, os.WriteFile(htmlPath, []byte(html), 0644))
	require.NoError(t, os.WriteFile(cssPath, []byte(css), 0644))
	return htmlPath, cssPath
}

func TestLoadAndRender(t *testing.T) {
	htmlPath, cssPath := writeLayout(t,
		`<style>{css_content}</style><h1>{chapter_title}</h1><img src="{image_filename}"/><p>{caption_html}</p><a href="{post_url}">link</a>`,
		"body { margin: 0; }")

	tmpl, err := Load(htmlPath, cssPath)
	require.NoError(t, err)
	assert.Empty(t, tmpl.Unknown)

	out, err := tmpl.Render(Fields{
		ChapterTitle:  "Post 1: 2024-01-01",
		ImageFilename: "images/A.jpg",
		CaptionHTML:   "line1<br />line2",
		PostURL:       "https://www.instagram.com/p/A/",
	})
	require.NoError(t, err)
	assert.Equal(t,
		`<style>body { margin: 0; }</style><h1>Post 1: 2024-01-01</h1><img src="images/A.jpg"/><p>line1<br />line2</p><a href="https://www.instagram.com/p/A/">link</a>`,
		out)
}

func TestLoadMissingFiles(t *testing.T) {
	htmlPath, cssPath := writeLayout(t, "{chapter_title}", "")
	dir := filepath.Dir(htmlPath)

	_, err := Load(filepath.Join(dir, "absent.html"), cssPath)
	assert.True(t, igerrors.Is(err, igerrors.ErrorTypeLayout))

	_, err = Load(htmlPath, filepath.Join(dir, "absent.css"))
	assert.True(t, igerrors.Is(err, igerrors.ErrorTypeLayout))
}

func TestLoadRequiresChapterTitle(t *testing.T) {
	htmlPath, cssPath := writeLayout(t, "<h1>{{chapter_title}}</h1><p>{caption_html}</p>", "")

	_, err := Load(htmlPath, cssPath)
	require.Error(t, err)
	assert.True(t, igerrors.Is(err, igerrors.ErrorTypeLayout))
	assert.Contains(t, err.Error(), "{chapter_title} placeholder not found")
}

func TestBraces(t *testing.T) {
	tmpl, err := Parse("p{color:red} { spaced } {{literal}} {chapter_title} {} {9x}", "")
	require.NoError(t, err)

	out, err := tmpl.Render(Fields{ChapterTitle: "T"})
	require.NoError(t, err)
	assert.Equal(t, "p{color:red} { spaced } {literal} T {} {9x}", out)
}

func TestCSSRulesInTemplate(t *testing.T) {
	src := "<style>@media print { h1 { color: black } } p{margin:0}</style><h1>{chapter_title}</h1>"
	tmpl, err := Parse(src, "")
	require.NoError(t, err)
	assert.Empty(t, tmpl.Unknown)

	out, err := tmpl.Render(Fields{ChapterTitle: "T"})
	require.NoError(t, err)
	assert.Equal(t, "<style>@media print { h1 { color: black } } p{margin:0}</style><h1>T</h1>", out)
}

func TestUnclosedBrace(t *testing.T) {
	_, err := Parse("<h1>{chapter_title}</h1> p { color: red", "")
	require.Error(t, err)
	assert.True(t, igerrors.Is(err, igerrors.ErrorTypeLayout))
}

func TestCSSContentIsNotReparsed(t *testing.T) {
	tmpl, err := Parse("<style>{css_content}</style>{chapter_title}", "a { b: c } {post_url}")
	require.NoError(t, err)

	out, err := tmpl.Render(Fields{ChapterTitle: "T", PostURL: "u"})
	require.NoError(t, err)
	assert.Equal(t, "<style>a { b: c } {post_url}</style>T", out)
}

func TestUnknownPlaceholder(t *testing.T) {
	tmpl, err := Parse("{chapter_title} {author} {author} {date}", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"author", "date"}, tmpl.Unknown)

	_, err = tmpl.Render(Fields{ChapterTitle: "T"})
	require.Error(t, err)
	assert.True(t, igerrors.Is(err, igerrors.ErrorTypeChapter))
	assert.Contains(t, err.Error(), "{author}")
}

func TestOptionalPlaceholders(t *testing.T) {
	tmpl, err := Parse("<h1>{chapter_title}</h1>", "ignored")
	require.NoError(t, err)
	assert.True(t, tmpl.Uses(ChapterTitle))
	assert.False(t, tmpl.Uses(CSSContent))

	out, err := tmpl.Render(Fields{ChapterTitle: "only title"})
	require.NoError(t, err)
	assert.Equal(t, "<h1>only title</h1>", out)
}

func TestDefaultLayoutIsValid(t *testing.T) {
	tmpl, err := Parse(DefaultHTML(), DefaultCSS())
	require.NoError(t, err)
	assert.Empty(t, tmpl.Unknown)
	for name := range known {
		assert.True(t, tmpl.Uses(name), name)
	}
}

func TestWriteDefaultsKeepsExistingFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "book_layout")
	require.NoError(t, os.MkdirAll(dir, 0755))
	custom := filepath.Join(dir, "layout.css")
	require.NoError(t, os.WriteFile(custom, []byte("/* mine */"), 0644))

	written, err := WriteDefaults(dir, "layout.html", "layout.css")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "layout.html")}, written)

	data, err := os.ReadFile(custom)
	require.NoError(t, err)
	assert.Equal(t, "/* mine */", string(data))

	_, err = Load(filepath.Join(dir, "layout.html"), custom)
	assert.NoError(t, err)
}
