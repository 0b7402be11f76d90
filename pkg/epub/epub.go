// Package epub packages archives as EPUB files with go-epub.
package epub

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	goepub "github.com/go-shiori/go-epub"

	"igepub/pkg/archive"
)

// imageDir is where go-epub places images relative to the section files
const imageDir = "../images/"

// Packager creates EPUB archives
type Packager struct{}

// NewPackager creates an EPUB packager
func NewPackager() *Packager {
	return &Packager{}
}

// New starts an EPUB with the given metadata
func (p *Packager) New(meta archive.Metadata) (archive.Archive, error) {
	book, err := goepub.NewEpub(meta.Title)
	if err != nil {
		return nil, fmt.Errorf("failed to create epub: %w", err)
	}
	book.SetAuthor(meta.Author)
	if meta.Language != "" {
		book.SetLang(meta.Language)
	}
	if meta.Identifier != "" {
		book.SetIdentifier(meta.Identifier)
	}
	return &Book{book: book}, nil
}

// Book is an EPUB under construction
type Book struct {
	book *goepub.Epub
}

func (b *Book) AddStylesheet(name, css string) (string, error) {
	ref, err := b.book.AddCSS(dataURL("text/css", []byte(css)), name)
	if err != nil {
		return "", fmt.Errorf("failed to add stylesheet %s: %w", name, err)
	}
	return ref, nil
}

func (b *Book) SetCover(img archive.Image) error {
	ref, err := b.book.AddImage(dataURL(img.MediaType, img.Data), img.Name)
	if err != nil {
		return fmt.Errorf("failed to add cover image: %w", err)
	}
	return b.book.SetCover(ref, "")
}

func (b *Book) ImageRef(name string) string {
	return imageDir + name
}

// AddChapter adds the image and a section holding the body of the rendered
// document. The head of the document is dropped; go-epub writes its own and
// links the stylesheet.
func (b *Book) AddChapter(ch archive.Chapter, img archive.Image) error {
	ref, err := b.book.AddImage(dataURL(img.MediaType, img.Data), img.Name)
	if err != nil {
		return fmt.Errorf("failed to add image %s: %w", img.Name, err)
	}

	body, err := bodyHTML(ch.Body)
	if err != nil {
		return err
	}
	if predicted := b.ImageRef(img.Name); ref != predicted {
		body = strings.ReplaceAll(body, predicted, ref)
	}

	if _, err := b.book.AddSection(body, ch.Title, ch.Filename, ch.StylesheetRef); err != nil {
		return fmt.Errorf("failed to add section %s: %w", ch.Filename, err)
	}
	return nil
}

func (b *Book) Write(path string) error {
	return b.book.Write(path)
}

// bodyHTML returns the inner HTML of the document's body. Fragments are
// returned as parsed.
func bodyHTML(document string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return "", fmt.Errorf("failed to parse chapter: %w", err)
	}
	body, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("failed to render chapter body: %w", err)
	}
	return strings.TrimSpace(body), nil
}

func dataURL(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
