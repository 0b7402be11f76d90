package archive

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// fakePackager records what the builder hands it. Write produces a small
// text manifest so tests can check the output file.
type fakePackager struct {
	archives []*fakeArchive
	writeErr error
}

func (p *fakePackager) New(meta Metadata) (Archive, error) {
	a := &fakeArchive{meta: meta, writeErr: p.writeErr}
	p.archives = append(p.archives, a)
	return a, nil
}

func (p *fakePackager) last() *fakeArchive {
	return p.archives[len(p.archives)-1]
}

type fakeArchive struct {
	meta        Metadata
	stylesheets map[string]string
	cover       *Image
	chapters    []Chapter
	images      []Image
	writeErr    error
}

func (a *fakeArchive) AddStylesheet(name, css string) (string, error) {
	if a.stylesheets == nil {
		a.stylesheets = make(map[string]string)
	}
	a.stylesheets[name] = css
	return "../css/" + name, nil
}

func (a *fakeArchive) SetCover(img Image) error {
	a.cover = &img
	return nil
}

func (a *fakeArchive) ImageRef(name string) string {
	return "../images/" + name
}

func (a *fakeArchive) AddChapter(ch Chapter, img Image) error {
	if strings.Contains(ch.Body, "REJECT") {
		return errors.New("packager rejected chapter")
	}
	a.chapters = append(a.chapters, ch)
	a.images = append(a.images, img)
	return nil
}

func (a *fakeArchive) Write(path string) error {
	if a.writeErr != nil {
		return a.writeErr
	}
	var b strings.Builder
	fmt.Fprintf(&b, "title=%s\n", a.meta.Title)
	for _, ch := range a.chapters {
		fmt.Fprintf(&b, "chapter=%s\n", ch.Title)
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

func (a *fakeArchive) titles() []string {
	titles := make([]string, len(a.chapters))
	for i, ch := range a.chapters {
		titles[i] = ch.Title
	}
	return titles
}
