// Package layout loads the two-file chapter layout and renders chapters
// through its named placeholders.
//
// A layout is an HTML template plus a CSS file. The template refers to
// fields as {name}; "{{" and "}}" produce literal braces. A brace pair that
// does not hold an identifier is copied as is, so plain CSS rules inside the
// template need no escaping. An opening brace that is never closed is a
// layout error.
package layout

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/valyala/fasttemplate"

	igerrors "igepub/pkg/errors"
)

// Placeholder names recognized in a template
const (
	ChapterTitle  = "chapter_title"
	CSSContent    = "css_content"
	ImageFilename = "image_filename"
	CaptionHTML   = "caption_html"
	PostURL       = "post_url"
)

var known = map[string]bool{
	ChapterTitle:  true,
	CSSContent:    true,
	ImageFilename: true,
	CaptionHTML:   true,
	PostURL:       true,
}

// Fields are the per-chapter substitution values
type Fields struct {
	ChapterTitle  string
	ImageFilename string
	CaptionHTML   string
	PostURL       string
}

func (f Fields) lookup(name, css string) string {
	switch name {
	case ChapterTitle:
		return f.ChapterTitle
	case CSSContent:
		return css
	case ImageFilename:
		return f.ImageFilename
	case CaptionHTML:
		return f.CaptionHTML
	case PostURL:
		return f.PostURL
	}
	return ""
}

// Escaped braces are parked on noncharacters while fasttemplate splits tags
const (
	openBrace  = "\uFDD0"
	closeBrace = "\uFDD1"
)

var (
	escapeBraces   = strings.NewReplacer("{{", openBrace, "}}", closeBrace)
	unescapeBraces = strings.NewReplacer(openBrace, "{", closeBrace, "}")
)

// Template is a validated, compiled layout
type Template struct {
	CSS string

	// Unknown lists placeholders the template uses that no Fields value
	// provides, in order of first use
	Unknown []string

	tmpl *fasttemplate.Template
	used map[string]bool
}

// Load reads and validates the layout pair. A missing file or a template
// without {chapter_title} is a layout error.
func Load(htmlPath, cssPath string) (*Template, error) {
	html, err := os.ReadFile(htmlPath)
	if err != nil {
		return nil, igerrors.Wrap(igerrors.ErrorTypeLayout, err, "layout template not readable")
	}
	css, err := os.ReadFile(cssPath)
	if err != nil {
		return nil, igerrors.Wrap(igerrors.ErrorTypeLayout, err, "layout stylesheet not readable")
	}
	return Parse(string(html), string(css))
}

// Parse compiles template text and checks the required placeholder
func Parse(html, css string) (*Template, error) {
	tmpl, err := fasttemplate.NewTemplate(escapeBraces.Replace(html), "{", "}")
	if err != nil {
		return nil, igerrors.New(igerrors.ErrorTypeLayout, "invalid layout structure: a '{' is never closed")
	}

	t := &Template{CSS: css, tmpl: tmpl, used: make(map[string]bool)}
	// dry run to collect the placeholders in order of use
	if _, err := tmpl.ExecuteFuncStringWithErr(t.collect); err != nil {
		return nil, igerrors.Wrap(igerrors.ErrorTypeLayout, err, "invalid layout structure")
	}

	if !t.used[ChapterTitle] {
		return nil, igerrors.New(igerrors.ErrorTypeLayout,
			fmt.Sprintf("invalid layout structure: {%s} placeholder not found", ChapterTitle))
	}
	return t, nil
}

func (t *Template) collect(w io.Writer, tag string) (int, error) {
	if !isIdentifier(tag) {
		return 0, nil
	}
	if !t.used[tag] && !known[tag] {
		t.Unknown = append(t.Unknown, tag)
	}
	t.used[tag] = true
	return 0, nil
}

// isIdentifier matches the names a placeholder may have
func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		isLetter := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !isLetter && (i == 0 || r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// Uses reports whether the template references the named placeholder
func (t *Template) Uses(name string) bool {
	return t.used[name]
}

// Render substitutes f into the template. A template that references an
// undeclared field cannot be rendered; the error is a chapter error.
func (t *Template) Render(f Fields) (string, error) {
	out, err := t.tmpl.ExecuteFuncStringWithErr(func(w io.Writer, tag string) (int, error) {
		if !isIdentifier(tag) {
			return io.WriteString(w, "{"+tag+"}")
		}
		if !known[tag] {
			return 0, igerrors.New(igerrors.ErrorTypeChapter,
				fmt.Sprintf("layout references undeclared field {%s}", tag))
		}
		return io.WriteString(w, f.lookup(tag, t.CSS))
	})
	if err != nil {
		return "", err
	}
	return unescapeBraces.Replace(out), nil
}
