package archive

// Metadata is set once when an archive is created
type Metadata struct {
	Identifier string
	Title      string
	Author     string
	Language   string
}

// Image is an image resource ready for packaging
type Image struct {
	// Name is the file name inside the archive, e.g. "ABC123.jpg"
	Name      string
	MediaType string
	Data      []byte
}

// Chapter is one rendered post
type Chapter struct {
	Title    string
	Filename string
	// Body is the rendered layout document
	Body string
	// StylesheetRef is the value AddStylesheet returned, or empty
	StylesheetRef string
}

// Packager creates archives. Implementations own the container format.
type Packager interface {
	New(meta Metadata) (Archive, error)
}

// Archive is an archive under construction. Chapters appear in the
// navigation in the order they are added.
type Archive interface {
	AddStylesheet(name, css string) (string, error)
	SetCover(img Image) error
	// ImageRef returns how a chapter body must refer to an image with the
	// given name once it is added with AddChapter
	ImageRef(name string) string
	AddChapter(ch Chapter, img Image) error
	Write(path string) error
}
